package handlers

import (
	"context"

	"github.com/wizmarket/wizapp/internal/navigation"
	"github.com/wizmarket/wizapp/internal/protocol"
)

type navEnvelope struct {
	Nav navigation.State `json:"nav"`
	At  int64            `json:"at"`
}

func (h *Handler) handleNavState(_ context.Context, msg protocol.Message) error {
	st := navigation.FromPayload(msg.Payload)
	h.sess.Nav.Update(st)
	h.send(protocol.EventNavStateAck, navEnvelope{Nav: st, At: h.sess.Now()})
	return nil
}

func (h *Handler) handleBackPressed(_ context.Context, _ protocol.Message) error {
	h.BeginBack()
	return nil
}

// BeginBack handles a back press from the hardware key or the web. It
// takes the decision against the current navigation state and leaves any
// exit confirmation to a background task, so messages behind it are not
// held up by the dialog. The platform back action is always consumed.
func (h *Handler) BeginBack() navigation.Decision {
	d, confirm := h.decideBack()
	if confirm != nil {
		h.spawn("exit_confirm", func(ctx context.Context) error {
			confirm(ctx)
			return nil
		})
	}
	return d
}

// decideBack returns the exit confirmation to show, if any. The tracker's
// confirm gate is already held when it is returned.
func (h *Handler) decideBack() (navigation.Decision, func(context.Context)) {
	st := h.sess.Nav.Snapshot()
	d := navigation.Decide(st)
	h.logger.Debug("back pressed", "decision", d, "path", st.Path)

	if d == navigation.DelegateToWeb {
		h.send(protocol.EventBackRequest, navEnvelope{Nav: st, At: h.sess.Now()})
		return d, nil
	}

	if !h.sess.Nav.BeginConfirm() {
		return d, nil
	}
	return d, h.confirmExit
}

func (h *Handler) confirmExit(ctx context.Context) {
	defer h.sess.Nav.EndConfirm()

	ok, err := h.dialogs.Confirm(ctx, "Exit app", "Do you want to exit the app?", "Exit", "Cancel")
	if err != nil {
		h.logger.Warn("exit confirmation failed", "err", err)
		return
	}
	if ok {
		h.logger.Info("exit confirmed")
		h.lifecycle.Exit()
	}
}
