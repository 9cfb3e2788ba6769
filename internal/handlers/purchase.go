package handlers

import (
	"context"
	"strings"

	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/protocol"
)

func (h *Handler) handleStartSubscription(_ context.Context, msg protocol.Message) error {
	var p protocol.PurchasePayload
	if err := msg.Bind(&p); err != nil {
		return err
	}
	kind := platform.KindSubscription
	switch strings.ToLower(p.ProductType) {
	case "one_time", "inapp", "consumable":
		kind = platform.KindOneTime
	}
	h.startPurchase(p.ProductID, kind)
	return nil
}

func (h *Handler) handleStartOneTimePurchase(_ context.Context, msg protocol.Message) error {
	var p protocol.PurchasePayload
	if err := msg.Bind(&p); err != nil {
		return err
	}
	h.startPurchase(p.ProductID, platform.KindOneTime)
	return nil
}

// startPurchase claims the guard in message order and opens the store
// sheet in the background.
func (h *Handler) startPurchase(productID string, kind platform.ProductKind) {
	req, ok := h.sess.Purchases.Begin(productID, kind)
	if !ok {
		return
	}
	h.spawn("purchase", func(ctx context.Context) error {
		h.sess.Purchases.Launch(ctx, req)
		return nil
	})
}

func (h *Handler) handleRestoreSubscriptions(ctx context.Context, _ protocol.Message) error {
	h.sess.Purchases.Restore(ctx)
	return nil
}
