// Package media materializes remote or inline images into temporary local
// files for the share and gallery flows.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/wizmarket/wizapp/internal/platform"
)

var (
	ErrNoSource   = errors.New("media: no source")
	ErrEmpty      = errors.New("media: downloaded file is empty")
	ErrBadDataURL = errors.New("media: malformed data url")
	ErrHTTPStatus = errors.New("media: unexpected http status")
)

const (
	DefaultFilename = "image.jpg"
	DefaultTimeout  = 30 * time.Second
)

var extPattern = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|webp|gif)(\?|#|$)`)

// GuessExt picks the image extension from a URL, defaulting to jpg.
func GuessExt(src string) string {
	if strings.HasPrefix(src, "data:") {
		mime, _, _ := strings.Cut(strings.TrimPrefix(src, "data:"), ";")
		return extFromMime(mime)
	}
	if m := extPattern.FindStringSubmatch(src); m != nil {
		return strings.ToLower(m[1])
	}
	lower := strings.ToLower(src)
	for _, ext := range []string{"png", "webp", "gif"} {
		if strings.Contains(lower, "."+ext) {
			return ext
		}
	}
	return "jpg"
}

func MimeOf(ext string) string {
	switch strings.ToLower(ext) {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	}
	return "image/jpeg"
}

func extFromMime(mime string) string {
	switch strings.ToLower(mime) {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	}
	return "jpg"
}

// SafeName returns the name a saved image is reported under: the supplied
// name when it has an extension, DefaultFilename otherwise.
func SafeName(name string) string {
	if !strings.Contains(name, ".") {
		return DefaultFilename
	}
	return name
}

var tempSanitizer = strings.NewReplacer("/", "_", `\`, "_", "*", "_")

// TempPrefix returns the temp file prefix for materializing src as name.
// The file ends up named like name with the source extension appended when
// it differs, e.g. "poster.jpg" from a png source becomes
// "<kind>poster.jpg_<random>.png".
func TempPrefix(kind, name, src string) string {
	name = SafeName(name)
	ext := GuessExt(src)
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "."+ext):
		name = name[:len(name)-len(ext)-1]
	case ext == "jpg" && strings.HasSuffix(lower, ".jpeg"):
		name = name[:len(name)-len(".jpeg")]
	}
	return kind + tempSanitizer.Replace(name) + "_"
}

// DecodeDataURL parses an RFC 2397 data URL.
func DecodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", ErrBadDataURL
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrBadDataURL
	}
	mime, params, _ := strings.Cut(meta, ";")
	if mime == "" {
		mime = "text/plain"
	}
	if strings.Contains(params, "base64") {
		out, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			out, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		}
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrBadDataURL, err)
		}
		return out, mime, nil
	}
	out, err := url.PathUnescape(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	return []byte(out), mime, nil
}

// TempFile is a handler-scoped local copy. Callers must Remove it on every
// exit path.
type TempFile struct {
	Path string
	Ext  string
	Size int64
}

func (t *TempFile) URL() string { return "file://" + t.Path }

func (t *TempFile) Mime() string { return MimeOf(t.Ext) }

// Remove deletes the file. It is safe on a nil receiver and idempotent.
func (t *TempFile) Remove() error {
	if t == nil || t.Path == "" {
		return nil
	}
	err := os.Remove(t.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

type Fetcher struct {
	client *http.Client
	dir    string
	logger *slog.Logger
}

func NewFetcher(dir string, client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{client: client, dir: dir, logger: logger}
}

// Fetch writes src (an http(s) or data: URL) to a new temporary file named
// prefix*.ext. The file is removed again if anything fails.
func (f *Fetcher) Fetch(ctx context.Context, src, prefix string) (*TempFile, error) {
	if src == "" {
		return nil, ErrNoSource
	}
	ext := GuessExt(src)

	out, err := os.CreateTemp(f.dir, prefix+"*."+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmp := &TempFile{Path: out.Name(), Ext: ext}

	n, err := f.write(ctx, out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n <= 0 {
		err = ErrEmpty
	}
	if err != nil {
		_ = tmp.Remove()
		return nil, err
	}
	tmp.Size = n
	f.logger.Debug("media materialized", "path", tmp.Path, "bytes", n)
	return tmp, nil
}

func (f *Fetcher) write(ctx context.Context, w io.Writer, src string) (int64, error) {
	if strings.HasPrefix(src, "data:") {
		data, _, err := DecodeDataURL(src)
		if err != nil {
			return 0, err
		}
		n, err := w.Write(data)
		return int64(n), err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}
	return io.Copy(w, resp.Body)
}

const (
	PermissionReadMediaImages = "android.permission.READ_MEDIA_IMAGES"
	PermissionWriteStorage    = "android.permission.WRITE_EXTERNAL_STORAGE"

	// android13 is the first API level with per-media read permissions.
	android13 = 33
)

// PermissionFor names the runtime permission needed before saving to the
// photo store, or "" when the OS does not gate it.
func PermissionFor(info platform.Info) string {
	if info.OS != "android" {
		return ""
	}
	if info.OSVersion >= android13 {
		return PermissionReadMediaImages
	}
	return PermissionWriteStorage
}
