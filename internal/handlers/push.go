package handlers

import (
	"context"

	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/protocol"
)

const (
	PushReceived = "received"
	PushClicked  = "clicked"
)

type PushToken struct {
	Token      string `json:"token"`
	Platform   string `json:"platform"`
	AppVersion string `json:"app_version"`
	InstallID  string `json:"install_id"`
	TS         int64  `json:"ts"`
	Error      string `json:"error,omitempty"`
}

type PushEvent struct {
	Event     string            `json:"event"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Deeplink  string            `json:"deeplink"`
	Extra     map[string]string `json:"extra,omitempty"`
	MessageID string            `json:"messageId"`
	TS        int64             `json:"ts"`
}

// EmitPushToken fetches the device token and announces it. Failures are
// logged only; the web can ask again with GET_PUSH_TOKEN.
func (h *Handler) EmitPushToken(ctx context.Context) {
	tok, err := h.sess.PushToken(ctx)
	if err != nil {
		h.logger.Warn("push token unavailable", "err", err)
		return
	}
	h.send(protocol.EventPushToken, h.pushToken(tok, nil))
}

// TokenRefreshed records a token the push SDK rotated and announces it.
func (h *Handler) TokenRefreshed(token string) {
	h.sess.SetPushToken(token)
	h.send(protocol.EventPushToken, h.pushToken(token, nil))
}

func (h *Handler) handleGetPushToken(ctx context.Context, _ protocol.Message) error {
	tok, err := h.sess.PushToken(ctx)
	h.send(protocol.EventPushToken, h.pushToken(tok, err))
	return nil
}

func (h *Handler) pushToken(token string, err error) PushToken {
	p := PushToken{
		Token:      token,
		Platform:   h.sess.Info.OS,
		AppVersion: h.sess.Info.AppVersion,
		InstallID:  h.sess.InstallID(),
		TS:         h.sess.Now(),
	}
	if err != nil {
		p.Token = ""
		p.Error = platform.Message(err)
	}
	return p
}

// PushReceived forwards a foreground notification.
func (h *Handler) PushReceived(n platform.PushNotification) {
	h.forwardPush(PushReceived, n)
}

// PushOpened forwards a notification the user tapped.
func (h *Handler) PushOpened(n platform.PushNotification) {
	h.forwardPush(PushClicked, n)
}

// forwardPush drops a message id already forwarded for the same event, as
// push SDKs redeliver on reconnect.
func (h *Handler) forwardPush(event string, n platform.PushNotification) {
	if n.MessageID != "" {
		key := event + ":" + n.MessageID
		if found, _ := h.pushSeen.ContainsOrAdd(key, struct{}{}); found {
			h.logger.Debug("duplicate push dropped", "event", event, "message_id", n.MessageID)
			return
		}
	}
	h.send(protocol.EventPushEvent, PushEvent{
		Event:     event,
		Title:     n.Title,
		Body:      n.Body,
		Deeplink:  n.Deeplink,
		Extra:     n.Extra,
		MessageID: n.MessageID,
		TS:        h.sess.Now(),
	})
}
