// Package platformtest provides in-memory collaborators for tests.
package platformtest

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/protocol"
)

// Event is one recorded Native→Web event.
type Event struct {
	Type    string
	Payload map[string]any
}

// Recorder captures outbound events. It works both as an outbound.Poster
// and directly as an outbound.Sender.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) PostMessage(msg string) error {
	in, err := protocol.Decode(msg)
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(in.Payload, &payload); err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, Event{Type: in.Type, Payload: payload})
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Send(msgType string, payload any) {
	raw, err := protocol.Encode(msgType, payload)
	if err != nil {
		panic(err)
	}
	if err := r.PostMessage(raw); err != nil {
		panic(err)
	}
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *Recorder) OfType(msgType string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == msgType {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent event of msgType and whether one exists.
func (r *Recorder) Last(msgType string) (Event, bool) {
	evs := r.OfType(msgType)
	if len(evs) == 0 {
		return Event{}, false
	}
	return evs[len(evs)-1], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type Billing struct {
	mu sync.Mutex

	RequestErr     error
	AcknowledgeErr []error
	ConsumeErr     error
	Restored       []platform.Purchase
	RestoreErr     error

	Requested    []string
	Acknowledged []string
	Consumed     []string
}

func (b *Billing) RequestSubscription(_ context.Context, productID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Requested = append(b.Requested, "sub:"+productID)
	return b.RequestErr
}

func (b *Billing) RequestPurchase(_ context.Context, productID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Requested = append(b.Requested, "iap:"+productID)
	return b.RequestErr
}

// Acknowledge returns the queued errors in order, then nil.
func (b *Billing) Acknowledge(_ context.Context, p platform.Purchase) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Acknowledged = append(b.Acknowledged, p.Key())
	if len(b.AcknowledgeErr) == 0 {
		return nil
	}
	err := b.AcknowledgeErr[0]
	b.AcknowledgeErr = b.AcknowledgeErr[1:]
	return err
}

func (b *Billing) Consume(_ context.Context, p platform.Purchase) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Consumed = append(b.Consumed, p.Key())
	return b.ConsumeErr
}

func (b *Billing) Restore(context.Context) ([]platform.Purchase, error) {
	return b.Restored, b.RestoreErr
}

func (b *Billing) RequestCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Requested)
}

type Dialogs struct {
	mu       sync.Mutex
	Answer   bool
	Err      error
	Block    chan struct{}
	Alerts   []string
	Confirms int
}

func (d *Dialogs) Alert(_ context.Context, title, message string) {
	d.mu.Lock()
	d.Alerts = append(d.Alerts, title+": "+message)
	d.mu.Unlock()
}

func (d *Dialogs) Confirm(ctx context.Context, _, _, _, _ string) (bool, error) {
	d.mu.Lock()
	d.Confirms++
	block := d.Block
	d.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return d.Answer, d.Err
}

func (d *Dialogs) ConfirmCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Confirms
}

func (d *Dialogs) AlertCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Alerts)
}

type Lifecycle struct {
	mu    sync.Mutex
	Exits int
}

func (l *Lifecycle) Exit() {
	l.mu.Lock()
	l.Exits++
	l.mu.Unlock()
}

func (l *Lifecycle) ExitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Exits
}

type URLOpener struct {
	mu     sync.Mutex
	Err    error
	Opened []string
}

func (o *URLOpener) OpenURL(_ context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Opened = append(o.Opened, url)
	return o.Err
}

func (o *URLOpener) OpenSettings(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Opened = append(o.Opened, "settings:")
	return o.Err
}

type Notifications struct {
	Granted bool
	Err     error
	Asked   int
}

func (n *Notifications) Status(context.Context) (platform.Permission, error) {
	return platform.Permission{Granted: n.Granted}, n.Err
}

func (n *Notifications) Request(context.Context) (platform.Permission, error) {
	n.Asked++
	return platform.Permission{Granted: n.Granted}, n.Err
}

type Location struct {
	Granted  bool
	Position platform.Position
	Err      error
}

func (l *Location) Request(context.Context) (platform.Permission, error) {
	return platform.Permission{Granted: l.Granted}, nil
}

func (l *Location) Current(context.Context) (platform.Position, error) {
	return l.Position, l.Err
}

type Push struct {
	mu      sync.Mutex
	Tok     string
	Err     error
	Fetches int
}

func (p *Push) Token(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Fetches++
	return p.Tok, p.Err
}

type AuthProvider struct {
	Identity   platform.Identity
	Err        error
	SignOutErr error
	SignIns    int
	SignOuts   int
}

func (a *AuthProvider) SignIn(context.Context, []byte) (platform.Identity, error) {
	a.SignIns++
	return a.Identity, a.Err
}

func (a *AuthProvider) SignOut(context.Context) error {
	a.SignOuts++
	return a.SignOutErr
}

// ShareCall is one recorded share attempt.
type ShareCall struct {
	Mode string
	Opts platform.ShareOptions
	// FileExisted reports whether a local file:// URL pointed at an existing
	// file when the share was attempted.
	FileExisted bool
}

type Sharer struct {
	mu       sync.Mutex
	SingleErr error
	URLsErr   error
	OpenErr   error
	Calls     []ShareCall
}

func (s *Sharer) record(mode string, opts platform.ShareOptions) {
	existed := false
	if path, ok := localPath(opts.URL); ok {
		_, err := os.Stat(path)
		existed = err == nil
	}
	s.mu.Lock()
	s.Calls = append(s.Calls, ShareCall{Mode: mode, Opts: opts, FileExisted: existed})
	s.mu.Unlock()
}

func (s *Sharer) ShareSingle(_ context.Context, opts platform.ShareOptions) error {
	s.record("single", opts)
	return s.SingleErr
}

func (s *Sharer) ShareURLs(_ context.Context, opts platform.ShareOptions) error {
	s.record("urls", opts)
	return s.URLsErr
}

func (s *Sharer) Open(_ context.Context, opts platform.ShareOptions) error {
	s.record("open", opts)
	return s.OpenErr
}

func (s *Sharer) Modes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Calls))
	for i, c := range s.Calls {
		out[i] = c.Mode
	}
	return out
}

func localPath(url string) (string, bool) {
	const prefix = "file://"
	if len(url) > len(prefix) && url[:len(prefix)] == prefix {
		return url[len(prefix):], true
	}
	return "", false
}

type Clipboard struct {
	mu   sync.Mutex
	Text string
}

func (c *Clipboard) SetString(text string) error {
	c.mu.Lock()
	c.Text = text
	c.mu.Unlock()
	return nil
}

type Gallery struct {
	Granted bool
	SaveErr error
	// Asked records the permissions requested.
	Asked []string
	// SavedExisted reports whether the file existed when SavePhoto ran.
	SavedExisted bool
	Saved        []string
}

func (g *Gallery) RequestPermission(_ context.Context, name string) (bool, error) {
	g.Asked = append(g.Asked, name)
	return g.Granted, nil
}

func (g *Gallery) SavePhoto(_ context.Context, path string) error {
	_, err := os.Stat(path)
	g.SavedExisted = err == nil
	g.Saved = append(g.Saved, path)
	return g.SaveErr
}
