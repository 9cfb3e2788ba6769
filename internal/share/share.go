// Package share runs per-channel share plans against the native share
// sheets, falling back through each plan's steps.
package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/wizmarket/wizapp/internal/media"
	"github.com/wizmarket/wizapp/internal/outbound"
	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/protocol"
)

const (
	CodeShareFailed = "share_failed"
	CodeCancelled   = "cancelled"
)

// Content is what the web asks to share.
type Content struct {
	File          string
	Caption       string
	Hashtags      []string
	CouponEnabled bool
	Link          string
}

// Result is the SHARE_RESULT payload.
type Result struct {
	Success   bool    `json:"success"`
	Cancelled bool    `json:"cancelled,omitempty"`
	Platform  string  `json:"platform"`
	PostID    *string `json:"post_id"`
	Step      Step    `json:"step,omitempty"`
	ErrorCode string  `json:"error_code,omitempty"`
	Message   string  `json:"message,omitempty"`
}

type Toast struct {
	Message string `json:"message"`
}

// BuildText joins caption, hashtags, the coupon line and the link.
func BuildText(c Content, couponLine string) string {
	var b strings.Builder
	b.WriteString(c.Caption)
	if tags := strings.Join(c.Hashtags, " "); strings.TrimSpace(tags) != "" {
		b.WriteString("\n\n")
		b.WriteString(tags)
	}
	if c.CouponEnabled && couponLine != "" {
		b.WriteString("\n\n")
		b.WriteString(couponLine)
	}
	if c.Link != "" {
		b.WriteString("\n")
		b.WriteString(c.Link)
	}
	return strings.TrimSpace(b.String())
}

var (
	imageURLPattern = regexp.MustCompile(`(?i)https?://\S+\.(?:png|jpe?g|webp|gif)(?:\?\S*)?`)
	blankRunPattern = regexp.MustCompile(`[ \t]{2,}`)
)

// StripImageURLs removes direct image links from text that is pasted next
// to an attached image.
func StripImageURLs(text string) string {
	out := imageURLPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(blankRunPattern.ReplaceAllString(out, " "))
}

type Options struct {
	Catalog   *Catalog
	Sharer    platform.Sharer
	Clipboard platform.Clipboard
	Fetcher   *media.Fetcher
	Out       outbound.Sender
	Logger    *slog.Logger
}

type Runner struct {
	catalog   *Catalog
	sharer    platform.Sharer
	clipboard platform.Clipboard
	fetcher   *media.Fetcher
	out       outbound.Sender
	logger    *slog.Logger
}

func NewRunner(opts Options) *Runner {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Sharer == nil {
		opts.Sharer = platform.Unsupported{}
	}
	if opts.Clipboard == nil {
		opts.Clipboard = platform.Unsupported{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Fetcher == nil {
		opts.Fetcher = media.NewFetcher("", nil, opts.Logger)
	}
	return &Runner{
		catalog:   opts.Catalog,
		sharer:    opts.Sharer,
		clipboard: opts.Clipboard,
		fetcher:   opts.Fetcher,
		out:       opts.Out,
		logger:    opts.Logger,
	}
}

// Share walks the channel's plan. A step failure falls through to the next
// step; cancellation ends the walk. Any temporary file is removed before
// Share returns.
func (r *Runner) Share(ctx context.Context, channel string, c Content) Result {
	key, plan := r.catalog.Lookup(channel)
	res := Result{Platform: strings.ToUpper(channel)}
	if res.Platform == "" {
		res.Platform = key
	}

	text := BuildText(c, r.catalog.CouponLine)
	if plan.ClipboardCaption && text != "" {
		if err := r.clipboard.SetString(text); err != nil {
			r.logger.Warn("caption copy failed", "channel", key, "err", err)
		} else if r.out != nil {
			r.out.Send(protocol.EventToast, Toast{Message: r.catalog.Toast})
		}
	}
	message := text
	if plan.StripImageURLs {
		message = StripImageURLs(text)
	}

	steps := plan.Steps
	file, ext := c.File, media.GuessExt(c.File)
	if plan.LocalFile && c.File != "" {
		tmp, err := r.fetcher.Fetch(ctx, c.File, "share_")
		if err != nil {
			r.logger.Warn("share file download failed, using generic sheet", "channel", key, "err", err)
			steps = steps[len(steps)-1:]
		} else {
			defer func() {
				if err := tmp.Remove(); err != nil {
					r.logger.Warn("failed to remove share file", "path", tmp.Path, "err", err)
				}
			}()
			file, ext = tmp.URL(), tmp.Ext
		}
	}

	var lastErr error
	for _, step := range steps {
		opts := r.options(step, plan, file, ext, message, c.Link)
		err := r.run(ctx, step, opts)
		if err == nil {
			res.Success = true
			res.Step = step
			r.logger.Info("shared", "channel", key, "step", step)
			return res
		}
		if platform.IsCancelled(err) {
			r.logger.Info("share cancelled", "channel", key, "step", step)
			res.Cancelled = true
			res.ErrorCode = CodeCancelled
			return res
		}
		r.logger.Warn("share step failed", "channel", key, "step", step, "err", err)
		lastErr = err
	}

	res.ErrorCode = CodeShareFailed
	if lastErr == nil {
		lastErr = errors.New("no share step ran")
	}
	res.Message = platform.Message(lastErr)
	return res
}

func (r *Runner) options(step Step, plan Plan, file, ext, message, link string) platform.ShareOptions {
	filename := ""
	if file != "" {
		filename = "share." + ext
	}
	mime := ""
	if file != "" {
		mime = media.MimeOf(ext)
	}

	switch step {
	case StepSingle:
		opts := platform.ShareOptions{Social: plan.Social}
		if plan.BackgroundImage {
			opts.BackgroundImage = file
			opts.AttributionURL = link
			return opts
		}
		opts.URL, opts.Type, opts.Filename = file, mime, filename
		if !plan.ClipboardCaption {
			opts.Message = message
		}
		return opts
	case StepURLs:
		opts := platform.ShareOptions{Social: plan.Social, Message: message}
		if file != "" {
			opts.URLs = []string{file}
		}
		return opts
	}
	return platform.ShareOptions{
		Title:    r.catalog.title(plan),
		URL:      file,
		Message:  message,
		Type:     mime,
		Filename: filename,
	}
}

func (r *Runner) run(ctx context.Context, step Step, opts platform.ShareOptions) error {
	switch step {
	case StepSingle:
		return r.sharer.ShareSingle(ctx, opts)
	case StepURLs:
		return r.sharer.ShareURLs(ctx, opts)
	case StepOpen:
		return r.sharer.Open(ctx, opts)
	}
	return fmt.Errorf("unknown share step %q", step)
}
