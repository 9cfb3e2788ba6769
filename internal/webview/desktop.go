package webview

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/toqueteos/webbrowser"

	"github.com/wizmarket/wizapp/internal/platform"
)

// BrowserOpener opens external URLs in the system browser.
type BrowserOpener struct{}

func (BrowserOpener) OpenURL(_ context.Context, url string) error {
	return webbrowser.Open(url)
}

type SystemClipboard struct{}

func (SystemClipboard) SetString(text string) error {
	if clipboard.Unsupported {
		return platform.ErrNotSupported
	}
	return clipboard.WriteAll(text)
}

// Sharer has no per-app targets on desktop. The generic sheet copies the
// text and link so the user can paste them anywhere.
type Sharer struct {
	Clipboard platform.Clipboard
}

func (Sharer) ShareSingle(context.Context, platform.ShareOptions) error {
	return platform.ErrNotSupported
}

func (Sharer) ShareURLs(context.Context, platform.ShareOptions) error {
	return platform.ErrNotSupported
}

func (s Sharer) Open(_ context.Context, opts platform.ShareOptions) error {
	parts := []string{}
	if opts.Message != "" {
		parts = append(parts, opts.Message)
	}
	if strings.HasPrefix(opts.URL, "http://") || strings.HasPrefix(opts.URL, "https://") {
		if !strings.Contains(opts.Message, opts.URL) {
			parts = append(parts, opts.URL)
		}
	}
	if len(parts) == 0 {
		return fmt.Errorf("nothing to share")
	}
	return s.Clipboard.SetString(strings.Join(parts, "\n"))
}

// Gallery saves photos into a folder; desktops have no runtime permission
// for it.
type Gallery struct {
	Dir string
	Now func() time.Time
}

func DefaultGallery() Gallery {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return Gallery{Dir: filepath.Join(home, "Pictures", "wizapp")}
}

func (Gallery) RequestPermission(context.Context, string) (bool, error) {
	return true, nil
}

func (g Gallery) SavePhoto(_ context.Context, path string) error {
	if err := os.MkdirAll(g.Dir, 0755); err != nil {
		return err
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	name := fmt.Sprintf("wizmarket_%d%s", now().UnixMilli(), filepath.Ext(path))
	dst, err := os.OpenFile(filepath.Join(g.Dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
