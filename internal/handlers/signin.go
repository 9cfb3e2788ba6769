package handlers

import (
	"context"

	"github.com/wizmarket/wizapp/internal/protocol"
)

func (h *Handler) handleStartSignin(ctx context.Context, msg protocol.Message) error {
	var p protocol.SigninPayload
	if err := msg.Bind(&p); err != nil {
		return err
	}
	h.send(protocol.EventSigninResult, h.auth.SignIn(ctx, p.Provider, msg.Payload))
	return nil
}

func (h *Handler) handleStartSignout(ctx context.Context, _ protocol.Message) error {
	h.send(protocol.EventSignoutResult, h.auth.SignOut(ctx))
	return nil
}
