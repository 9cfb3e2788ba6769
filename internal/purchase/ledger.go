package purchase

import (
	"log/slog"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/wizmarket/wizapp/internal/store"
)

const ledgerPrefix = "txn:"

type entryState string

const (
	// entryReported: the terminal result went to the web but the store
	// has not confirmed the consume or acknowledge yet.
	entryReported   entryState = "reported"
	entryFinalizing entryState = "finalizing"
	entryFinalized  entryState = "finalized"
)

// Ledger is the append-only set of transaction keys that have produced a
// terminal result. Entries are never evicted. When backed by a store, keys
// survive restarts so a redelivered purchase is not reported twice, while
// one whose finalization failed can still be finalized on redelivery.
type Ledger struct {
	seen   *xsync.Map[string, entryState]
	store  *store.Store
	logger *slog.Logger
}

func NewLedger(s *store.Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &Ledger{
		seen:   xsync.NewMap[string, entryState](),
		store:  s,
		logger: logger,
	}
	if s != nil {
		keys, err := s.Keys(ledgerPrefix)
		if err != nil {
			logger.Error("failed to load purchase ledger", "err", err)
		}
		for _, k := range keys {
			st := entryFinalized
			if v, err := s.Get(ledgerPrefix + k); err == nil && entryState(v) == entryReported {
				st = entryReported
			}
			l.seen.Store(k, st)
		}
		logger.Debug("purchase ledger loaded", "entries", len(keys))
	}
	return l
}

// Claim records key and reports whether this call was the first to do so.
// Concurrent claims for the same key have exactly one winner, which must
// follow up with Settle or Release.
func (l *Ledger) Claim(key string) bool {
	if key == "" {
		return true
	}
	if _, loaded := l.seen.LoadOrStore(key, entryFinalizing); loaded {
		return false
	}
	l.persist(key, entryReported)
	return true
}

// Retry takes a key whose finalization failed earlier. At most one caller
// holds it at a time, and it must follow up with Settle or Release.
func (l *Ledger) Retry(key string) bool {
	taken := false
	l.seen.Compute(key, func(old entryState, loaded bool) (entryState, xsync.ComputeOp) {
		if !loaded || old != entryReported {
			return old, xsync.CancelOp
		}
		taken = true
		return entryFinalizing, xsync.UpdateOp
	})
	return taken
}

// Settle records that the store finalized key.
func (l *Ledger) Settle(key string) {
	if key == "" {
		return
	}
	l.seen.Store(key, entryFinalized)
	l.persist(key, entryFinalized)
}

// Release hands back a claimed key whose finalization failed, leaving it
// open to Retry.
func (l *Ledger) Release(key string) {
	if key == "" {
		return
	}
	l.seen.Store(key, entryReported)
}

func (l *Ledger) Seen(key string) bool {
	_, ok := l.seen.Load(key)
	return ok
}

func (l *Ledger) Len() int {
	return l.seen.Size()
}

func (l *Ledger) persist(key string, st entryState) {
	if l.store == nil {
		return
	}
	if err := l.store.Set(ledgerPrefix+key, []byte(st)); err != nil {
		l.logger.Error("failed to persist ledger entry", "txn", key, "state", st, "err", err)
	}
}
