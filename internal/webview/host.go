package webview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/wizmarket/wizapp/internal/platform"
)

const (
	nativeBinding = "__wizNative"
	dialogBinding = "__wizDialog"
	loadBinding   = "__wizLoad"
)

// initScript gives the page the postMessage primitive mobile web views
// provide, and routes cross-origin links through the legacy open command.
const initScript = `(function () {
  if (window.` + loadBinding + `) window.` + loadBinding + `();
  if (window.ReactNativeWebView) return;
  window.ReactNativeWebView = {
    postMessage: function (msg) { window.` + nativeBinding + `(String(msg)); }
  };
  document.addEventListener("click", function (e) {
    var a = e.target.closest && e.target.closest("a");
    if (!a || !a.href) return;
    try {
      if (new URL(a.href, location.href).origin === location.origin) return;
    } catch (_) { return; }
    e.preventDefault();
    window.` + nativeBinding + `("open::" + a.href);
  });
})();`

// view is the part of WebView the host drives.
type view interface {
	Init(js string)
	Eval(js string)
	Dispatch(f func())
	Bind(name string, f interface{}) error
	Terminate()
}

// Host connects a desktop web view to the bridge: inbound strings arrive
// through a bound function, outbound envelopes are dispatched as message
// events. It also provides the dialog and lifecycle collaborators.
type Host struct {
	view    view
	pending *xsync.Map[string, chan bool]
	seq     atomic.Uint64
	logger  *slog.Logger
}

var _ interface {
	platform.Dialogs
	platform.Lifecycle
} = (*Host)(nil)

func NewHost(v view, onMessage func(raw string), logger *slog.Logger) (*Host, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Host{
		view:    v,
		pending: xsync.NewMap[string, chan bool](),
		logger:  logger,
	}

	v.Init(initScript)
	if err := v.Bind(nativeBinding, func(raw string) {
		onMessage(raw)
	}); err != nil {
		return nil, fmt.Errorf("bind %s: %w", nativeBinding, err)
	}
	if err := v.Bind(dialogBinding, h.resolveDialog); err != nil {
		return nil, fmt.Errorf("bind %s: %w", dialogBinding, err)
	}
	return h, nil
}

// BindLoadStart calls fn each time a page starts loading. It must be
// called before Navigate.
func (h *Host) BindLoadStart(fn func()) error {
	return h.view.Bind(loadBinding, func() {
		fn()
	})
}

// PostMessage delivers msg to the page as a MessageEvent on both window
// and document, as mobile web views do.
func (h *Host) PostMessage(msg string) error {
	script := DispatchScript(msg)
	h.view.Dispatch(func() {
		h.view.Eval(script)
	})
	return nil
}

func DispatchScript(msg string) string {
	return `(function (d) {
  window.dispatchEvent(new MessageEvent("message", { data: d }));
  document.dispatchEvent(new MessageEvent("message", { data: d }));
})(` + jsString(msg) + `);`
}

func (h *Host) Alert(_ context.Context, title, message string) {
	script := "window.alert(" + jsString(title+"\n\n"+message) + ");"
	h.view.Dispatch(func() {
		h.view.Eval(script)
	})
}

// Confirm shows window.confirm and waits for the bound callback to report
// the answer. The labels are ignored; browsers do not allow custom ones.
func (h *Host) Confirm(ctx context.Context, title, message, _, _ string) (bool, error) {
	id := strconv.FormatUint(h.seq.Add(1), 10)
	answer := make(chan bool, 1)
	h.pending.Store(id, answer)
	defer h.pending.Delete(id)

	script := fmt.Sprintf("window.%s(%s, window.confirm(%s));",
		dialogBinding, jsString(id), jsString(title+"\n\n"+message))
	h.view.Dispatch(func() {
		h.view.Eval(script)
	})

	select {
	case ok := <-answer:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (h *Host) resolveDialog(id string, ok bool) {
	ch, found := h.pending.LoadAndDelete(id)
	if !found {
		h.logger.Warn("dialog answer for unknown id", "id", id)
		return
	}
	ch <- ok
}

// Exit closes the window; Run returns afterwards.
func (h *Host) Exit() {
	h.view.Dispatch(h.view.Terminate)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
