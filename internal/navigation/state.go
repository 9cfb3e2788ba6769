package navigation

import (
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"
)

// State is the web content's self-reported navigation position.
type State struct {
	IsRoot         bool   `json:"isRoot"`
	Path           string `json:"path"`
	CanGoBackInWeb bool   `json:"canGoBackInWeb"`
	HasBlockingUI  bool   `json:"hasBlockingUI"`
	NeedsConfirm   bool   `json:"needsConfirm"`
}

// FromPayload normalises a NAV_STATE payload. canGoBack is accepted as an
// alias of canGoBackInWeb.
func FromPayload(payload []byte) State {
	p := gjson.ParseBytes(payload)
	return State{
		IsRoot:         p.Get("isRoot").Bool(),
		Path:           p.Get("path").String(),
		CanGoBackInWeb: p.Get("canGoBackInWeb").Bool() || p.Get("canGoBack").Bool(),
		HasBlockingUI:  p.Get("hasBlockingUI").Bool(),
		NeedsConfirm:   p.Get("needsConfirm").Bool(),
	}
}

type Decision int

const (
	// DelegateToWeb sends BACK_REQUEST and consumes the platform back action.
	DelegateToWeb Decision = iota
	// ConfirmExit shows the native exit confirmation.
	ConfirmExit
)

func (d Decision) String() string {
	if d == ConfirmExit {
		return "confirm_exit"
	}
	return "delegate"
}

// Decide maps a back press to an action. Only a root page with nothing
// open and nothing to confirm leaves the decision to native.
func Decide(s State) Decision {
	if !s.IsRoot || s.HasBlockingUI || s.NeedsConfirm || s.CanGoBackInWeb {
		return DelegateToWeb
	}
	return ConfirmExit
}

// Tracker holds the last reported State. Writes are last-write-wins.
type Tracker struct {
	mu    sync.RWMutex
	state State

	confirming atomic.Bool
}

// NewTracker starts from the conservative default (not at root) so that an
// early back press is always offered to the web content first.
func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Update(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// BeginConfirm claims the exit dialog. It returns false while another
// confirmation is already on screen.
func (t *Tracker) BeginConfirm() bool {
	return t.confirming.CompareAndSwap(false, true)
}

func (t *Tracker) EndConfirm() {
	t.confirming.Store(false)
}
