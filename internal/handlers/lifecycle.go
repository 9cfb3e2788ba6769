package handlers

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/wizmarket/wizapp/internal/protocol"
	"github.com/wizmarket/wizapp/internal/session"
)

type stamped struct {
	At int64 `json:"at"`
}

// LoadStarted arms the readiness countdown for a new page load.
func (h *Handler) LoadStarted() {
	h.sess.Boot.Arm()
}

func (h *Handler) handleWebReady(_ context.Context, _ protocol.Message) error {
	h.sess.Boot.Disarm()
	h.send(protocol.EventWebReadyAck, stamped{At: h.sess.Now()})
	return nil
}

// handleWebError echoes the web's report back with a timestamp and tells
// the web to show its offline fallback.
func (h *Handler) handleWebError(_ context.Context, msg protocol.Message) error {
	h.sess.Boot.Disarm()
	now := h.sess.Now()

	ack, err := sjson.SetBytes(append([]byte(nil), msg.Payload...), "at", now)
	if err != nil {
		h.logger.Warn("web error ack fallback", "err", err)
		ack, _ = json.Marshal(stamped{At: now})
	}
	h.send(protocol.EventWebErrorAck, json.RawMessage(ack))

	reason := gjson.GetBytes(msg.Payload, "reason").String()
	if reason == "" {
		reason = "js_error"
	}
	h.logger.Warn("web content reported an error", "reason", reason)
	h.send(protocol.EventOfflineFallback, session.OfflineFallback{Reason: reason, At: now})
	return nil
}

func (h *Handler) handleExitApp(_ context.Context, _ protocol.Message) error {
	h.logger.Info("exit requested by web content")
	h.lifecycle.Exit()
	return nil
}

func (h *Handler) handleOpenSettings(ctx context.Context, _ protocol.Message) error {
	return h.settings.OpenSettings(ctx)
}
