package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/wizmarket/wizapp/internal/media"
	"github.com/wizmarket/wizapp/internal/protocol"
)

const codeSaveFailed = "save_failed"

var errNoURL = errors.New("no_url")

type DownloadResult struct {
	Success   bool   `json:"success"`
	Filename  string `json:"filename,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (h *Handler) handleDownloadImage(ctx context.Context, msg protocol.Message) error {
	var p protocol.DownloadPayload
	if err := msg.Bind(&p); err != nil {
		return err
	}

	name, err := h.saveToGallery(ctx, p)
	if err != nil {
		h.logger.Warn("image save failed", "err", err)
		h.send(protocol.EventDownloadResult, DownloadResult{
			ErrorCode: codeSaveFailed,
			Message:   err.Error(),
		})
		h.dialogs.Alert(ctx, "Error", "Could not save the image: "+err.Error())
		return nil
	}

	h.logger.Info("image saved", "filename", name)
	h.send(protocol.EventDownloadResult, DownloadResult{Success: true, Filename: name})
	h.dialogs.Alert(ctx, "Done", "The image was saved to your gallery.")
	return nil
}

// saveToGallery materializes the image, persists it to the photo store and
// removes the temporary copy on every path.
func (h *Handler) saveToGallery(ctx context.Context, p protocol.DownloadPayload) (string, error) {
	src := p.Source()
	if src == "" {
		return "", errNoURL
	}
	name := media.SafeName(p.Filename)

	if perm := media.PermissionFor(h.sess.Info); perm != "" {
		granted, err := h.gallery.RequestPermission(ctx, perm)
		if err != nil {
			return "", fmt.Errorf("request %s: %w", perm, err)
		}
		if !granted {
			return "", fmt.Errorf("%s denied", perm)
		}
	}

	tmp, err := h.fetcher.Fetch(ctx, src, media.TempPrefix("download_", name, src))
	if err != nil {
		return "", err
	}
	defer func() {
		if err := tmp.Remove(); err != nil {
			h.logger.Warn("failed to remove downloaded image", "path", tmp.Path, "err", err)
		}
	}()

	if err := h.gallery.SavePhoto(ctx, tmp.Path); err != nil {
		return "", fmt.Errorf("save to gallery: %w", err)
	}
	return name, nil
}
