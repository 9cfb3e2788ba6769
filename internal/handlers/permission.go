package handlers

import (
	"context"

	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/protocol"
)

type locationStatus struct {
	Granted bool `json:"granted"`
}

// PermissionStatus is the PERMISSION_STATUS payload.
type PermissionStatus struct {
	Push      platform.Permission `json:"push"`
	Location  *locationStatus     `json:"location,omitempty"`
	Latitude  *float64            `json:"latitude,omitempty"`
	Longitude *float64            `json:"longitude,omitempty"`
	Token     string              `json:"token"`
	InstallID string              `json:"install_id"`
}

func (h *Handler) handleCheckPermission(ctx context.Context, _ protocol.Message) error {
	perm, err := h.notifications.Status(ctx)
	if err != nil {
		h.logger.Warn("notification status unavailable", "err", err)
		perm = platform.Permission{}
	}
	h.send(protocol.EventPermissionStatus, h.permissionStatus(perm))
	return nil
}

// handleRequestPermission prompts for notifications, and for location when
// the host provides it. Denial is a reportable outcome, not an error.
func (h *Handler) handleRequestPermission(ctx context.Context, _ protocol.Message) error {
	perm, err := h.notifications.Request(ctx)
	if err != nil {
		h.logger.Warn("notification permission request failed", "err", err)
		perm = platform.Permission{}
	}
	status := h.permissionStatus(perm)

	if h.location != nil {
		loc, err := h.location.Request(ctx)
		if err != nil {
			h.logger.Warn("location permission request failed", "err", err)
		}
		status.Location = &locationStatus{Granted: err == nil && loc.Granted}
		if status.Location.Granted {
			if pos, err := h.location.Current(ctx); err != nil {
				h.logger.Warn("current position unavailable", "err", err)
			} else {
				status.Latitude, status.Longitude = &pos.Latitude, &pos.Longitude
			}
		}
	}

	h.send(protocol.EventPermissionStatus, status)
	return nil
}

func (h *Handler) permissionStatus(perm platform.Permission) PermissionStatus {
	return PermissionStatus{
		Push:      perm,
		Token:     h.sess.CachedPushToken(),
		InstallID: h.sess.InstallID(),
	}
}
