package handlers

import (
	"context"

	"github.com/wizmarket/wizapp/internal/protocol"
	"github.com/wizmarket/wizapp/internal/share"
)

// handleStartShare presents the generic share sheet, whatever platform the
// web names, and echoes that platform unchanged.
func (h *Handler) handleStartShare(ctx context.Context, msg protocol.Message) error {
	p := protocol.ParseShare(msg)
	res := h.share.Share(ctx, share.SystemChannel, contentOf(p))
	res.Platform = p.Platform
	h.send(protocol.EventShareResult, res)
	return nil
}

func (h *Handler) handleShareToChannel(ctx context.Context, msg protocol.Message) error {
	p := protocol.ParseShare(msg)
	h.send(protocol.EventShareResult, h.share.Share(ctx, p.Social, contentOf(p)))
	return nil
}

func contentOf(p protocol.SharePayload) share.Content {
	return share.Content{
		File:          p.File,
		Caption:       p.Caption,
		Hashtags:      p.Hashtags,
		CouponEnabled: p.CouponEnabled,
		Link:          p.Link,
	}
}
