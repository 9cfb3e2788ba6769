package purchase

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wizmarket/wizapp/internal/platform"
)

var (
	ErrBusy      = errors.New("purchase: request already in flight")
	ErrDebounced = errors.New("purchase: request too soon after previous")
)

const (
	DefaultDebounce       = 800 * time.Millisecond
	DefaultPendingTimeout = 15 * time.Minute
)

type Phase int

const (
	Idle Phase = iota
	Requesting
)

func (p Phase) String() string {
	if p == Requesting {
		return "requesting"
	}
	return "idle"
}

// Request is the single in-flight purchase intent.
type Request struct {
	ID        uint64
	ProductID string
	Kind      platform.ProductKind
	StartedAt time.Time
	Pending   bool
}

type GuardOptions struct {
	Debounce       time.Duration
	PendingTimeout time.Duration
	Now            func() time.Time
}

// Guard admits at most one purchase request at a time, and no sooner than
// Debounce after the previously admitted one.
type Guard struct {
	mu      sync.Mutex
	phase   Phase
	req     Request
	nextID  uint64
	limiter *rate.Limiter
	now     func() time.Time

	pendingTimeout time.Duration
	pendingTimer   *time.Timer
}

func NewGuard(opts GuardOptions) *Guard {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PendingTimeout == 0 {
		opts.PendingTimeout = DefaultPendingTimeout
	}
	limit := rate.Inf
	if opts.Debounce > 0 {
		limit = rate.Every(opts.Debounce)
	}
	return &Guard{
		limiter:        rate.NewLimiter(limit, 1),
		now:            opts.Now,
		pendingTimeout: opts.PendingTimeout,
	}
}

// Begin moves IDLE→REQUESTING. A busy guard is checked before the
// debounce so a rejected tap does not consume the next slot.
func (g *Guard) Begin(productID string, kind platform.ProductKind) (Request, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == Requesting {
		return Request{}, ErrBusy
	}
	now := g.now()
	if !g.limiter.AllowN(now, 1) {
		return Request{}, ErrDebounced
	}

	g.nextID++
	g.phase = Requesting
	g.req = Request{
		ID:        g.nextID,
		ProductID: productID,
		Kind:      kind,
		StartedAt: now,
	}
	return g.req, nil
}

func (g *Guard) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Current returns the in-flight request, if any.
func (g *Guard) Current() (Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.req, g.phase == Requesting
}

// Release returns the guard to IDLE if request id is still the one in
// flight. It reports false when that request was already released.
func (g *Guard) Release(id uint64) (Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.releaseLocked(id)
}

func (g *Guard) releaseLocked(id uint64) (Request, bool) {
	if g.phase != Requesting || g.req.ID != id {
		return Request{}, false
	}
	if g.pendingTimer != nil {
		g.pendingTimer.Stop()
		g.pendingTimer = nil
	}
	req := g.req
	g.phase = Idle
	g.req = Request{}
	return req, true
}

// MarkPending flags the in-flight request as awaiting external approval
// and arms the release timer. onTimeout runs after the guard has been
// released if no terminal callback arrives in time. Repeated pending
// reports keep the first deadline.
func (g *Guard) MarkPending(id uint64, onTimeout func(Request)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != Requesting || g.req.ID != id {
		return false
	}
	g.req.Pending = true
	if g.pendingTimer != nil {
		return true
	}
	g.pendingTimer = time.AfterFunc(g.pendingTimeout, func() {
		g.mu.Lock()
		req, ok := g.releaseLocked(id)
		g.mu.Unlock()
		if ok && onTimeout != nil {
			onTimeout(req)
		}
	})
	return true
}
