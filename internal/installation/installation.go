// Package installation owns the opaque per-install identifier that tags
// push-token and permission events.
package installation

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/wizmarket/wizapp/internal/store"
)

const storeKey = "app:installation_id"

// Provider creates the identifier lazily on first use and persists it so it
// survives relaunches. Without a store the identifier lives for the process.
type Provider struct {
	store  *store.Store
	logger *slog.Logger
	group  singleflight.Group

	mu sync.RWMutex
	id string
}

func New(s *store.Store, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{store: s, logger: logger}
}

func (p *Provider) ID() (string, error) {
	p.mu.RLock()
	id := p.id
	p.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	v, err, _ := p.group.Do(storeKey, func() (any, error) {
		p.mu.RLock()
		id := p.id
		p.mu.RUnlock()
		if id != "" {
			return id, nil
		}

		id, err := p.loadOrCreate()
		if err != nil {
			return "", err
		}
		p.mu.Lock()
		p.id = id
		p.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *Provider) loadOrCreate() (string, error) {
	fresh := uuid.NewString()
	if p.store == nil {
		return fresh, nil
	}
	val, created, err := p.store.SetIfAbsent(storeKey, []byte(fresh))
	if err != nil {
		return "", fmt.Errorf("persist installation id: %w", err)
	}
	if created {
		p.logger.Info("installation id created", "id", fresh)
	}
	return string(val), nil
}
