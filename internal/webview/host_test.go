package webview

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/platform/platformtest"
)

type fakeView struct {
	mu         sync.Mutex
	inits      []string
	evals      []string
	bound      map[string]interface{}
	terminated bool
}

func (v *fakeView) Init(js string) { v.inits = append(v.inits, js) }

func (v *fakeView) Eval(js string) {
	v.mu.Lock()
	v.evals = append(v.evals, js)
	v.mu.Unlock()
}

func (v *fakeView) Dispatch(f func()) { f() }

func (v *fakeView) Bind(name string, f interface{}) error {
	if v.bound == nil {
		v.bound = map[string]interface{}{}
	}
	v.bound[name] = f
	return nil
}

func (v *fakeView) Terminate() { v.terminated = true }

func (v *fakeView) Evals() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.evals...)
}

func newTestHost(t *testing.T) (*Host, *fakeView, *[]string) {
	t.Helper()
	v := &fakeView{}
	var got []string
	h, err := NewHost(v, func(raw string) { got = append(got, raw) }, nil)
	require.NoError(t, err)
	return h, v, &got
}

func TestHost_InboundBinding(t *testing.T) {
	_, v, got := newTestHost(t)

	require.Len(t, v.inits, 1)
	assert.Contains(t, v.inits[0], "window.ReactNativeWebView")
	assert.Contains(t, v.inits[0], `"open::"`)

	fn, ok := v.bound[nativeBinding].(func(string))
	require.True(t, ok)
	fn(`{"type":"WEB_READY"}`)
	assert.Equal(t, []string{`{"type":"WEB_READY"}`}, *got)
}

func TestHost_LoadStart(t *testing.T) {
	h, v, _ := newTestHost(t)
	loads := 0
	require.NoError(t, h.BindLoadStart(func() { loads++ }))

	assert.Contains(t, v.inits[0], "window.__wizLoad()")
	v.bound[loadBinding].(func())()
	assert.Equal(t, 1, loads)
}

func TestHost_PostMessageQuotes(t *testing.T) {
	h, v, _ := newTestHost(t)

	require.NoError(t, h.PostMessage(`{"type":"TOAST","payload":{"message":"</script> '"}}`))

	evals := v.Evals()
	require.Len(t, evals, 1)
	assert.Contains(t, evals[0], `new MessageEvent("message"`)
	assert.Contains(t, evals[0], `"{\"type\":\"TOAST\"`)
	assert.NotContains(t, evals[0], "</script>")
}

func TestHost_Confirm(t *testing.T) {
	h, v, _ := newTestHost(t)
	resolve := v.bound[dialogBinding].(func(string, bool))

	done := make(chan bool)
	go func() {
		ok, err := h.Confirm(context.Background(), "Exit app", "Do you want to exit the app?", "Exit", "Cancel")
		assert.NoError(t, err)
		done <- ok
	}()

	idPattern := regexp.MustCompile(`__wizDialog\("(\d+)"`)
	var id string
	require.Eventually(t, func() bool {
		for _, e := range v.Evals() {
			if m := idPattern.FindStringSubmatch(e); m != nil {
				id = m[1]
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	resolve("999", false)
	resolve(id, true)
	assert.True(t, <-done)
	assert.Zero(t, h.pending.Size())
}

func TestHost_ConfirmCancelled(t *testing.T) {
	h, _, _ := newTestHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Confirm(ctx, "t", "m", "", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.pending.Size())
}

func TestHost_ExitTerminates(t *testing.T) {
	h, v, _ := newTestHost(t)
	h.Exit()
	assert.True(t, v.terminated)
}

func TestSharer_OpenCopiesText(t *testing.T) {
	cb := &platformtest.Clipboard{}
	s := Sharer{Clipboard: cb}

	require.NoError(t, s.Open(context.Background(), platform.ShareOptions{Message: "hello", URL: "https://wizmarket.ai/p/1"}))
	assert.Equal(t, "hello\nhttps://wizmarket.ai/p/1", cb.Text)

	assert.ErrorIs(t, s.ShareSingle(context.Background(), platform.ShareOptions{}), platform.ErrNotSupported)
	assert.Error(t, s.Open(context.Background(), platform.ShareOptions{URL: "file:///tmp/a.jpg"}))
}

func TestGallery_SavePhoto(t *testing.T) {
	src := filepath.Join(t.TempDir(), "download_1.png")
	require.NoError(t, os.WriteFile(src, []byte("png"), 0600))

	g := Gallery{Dir: filepath.Join(t.TempDir(), "Pictures"), Now: func() time.Time { return time.UnixMilli(1700000000000) }}
	require.NoError(t, g.SavePhoto(context.Background(), src))

	data, err := os.ReadFile(filepath.Join(g.Dir, "wizmarket_1700000000000.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	assert.Error(t, g.SavePhoto(context.Background(), src), "same name is not overwritten")
}
