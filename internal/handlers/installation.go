package handlers

import (
	"context"

	"github.com/wizmarket/wizapp/internal/protocol"
)

type installationID struct {
	InstallID string `json:"install_id"`
	TS        int64  `json:"ts"`
}

func (h *Handler) handleGetInstallationID(_ context.Context, _ protocol.Message) error {
	h.send(protocol.EventInstallationID, installationID{
		InstallID: h.sess.InstallID(),
		TS:        h.sess.Now(),
	})
	return nil
}
