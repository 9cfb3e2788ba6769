package app_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/wizmarket/wizapp/internal/app"
	"github.com/wizmarket/wizapp/internal/auth"
	"github.com/wizmarket/wizapp/internal/config"
	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/platform/platformtest"
	"github.com/wizmarket/wizapp/internal/protocol"
)

type fixture struct {
	rec       *platformtest.Recorder
	billing   *platformtest.Billing
	dialogs   *platformtest.Dialogs
	lifecycle *platformtest.Lifecycle
	collabs   app.Collaborators
	cfg       *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	keyring.MockInit()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	f := &fixture{
		rec:       &platformtest.Recorder{},
		billing:   &platformtest.Billing{},
		dialogs:   &platformtest.Dialogs{Answer: true},
		lifecycle: &platformtest.Lifecycle{},
		cfg:       &cfg,
	}
	f.collabs = app.Collaborators{
		Lifecycle: f.lifecycle,
		Dialogs:   f.dialogs,
		Push:      &platformtest.Push{Tok: "fcm"},
		Billing:   f.billing,
		Auth: map[string]auth.Variant{
			"google": auth.Google(&platformtest.AuthProvider{}),
		},
	}
	return f
}

func (f *fixture) open(t *testing.T) *app.App {
	t.Helper()
	a, err := app.New(f.cfg, platform.Info{OS: "android", OSVersion: 34}, f.collabs, f.rec, nil)
	require.NoError(t, err)
	return a
}

func TestApp_StartAnnouncesPushToken(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	defer a.Close()

	a.Start()
	a.Wait()

	ev, ok := f.rec.Last(protocol.EventPushToken)
	require.True(t, ok)
	assert.Equal(t, "fcm", ev.Payload["token"])
	assert.Equal(t, "android", ev.Payload["platform"])
	assert.Equal(t, "dev", ev.Payload["app_version"])
	assert.NotEmpty(t, ev.Payload["install_id"])
}

func TestApp_InstallIDSurvivesRelaunch(t *testing.T) {
	f := newFixture(t)

	first := f.open(t)
	first.OnMessage(`{"type":"GET_INSTALLATION_ID"}`)
	first.Wait()
	require.NoError(t, first.Close())

	second := f.open(t)
	second.OnMessage(`{"type":"GET_INSTALLATION_ID"}`)
	second.Wait()
	require.NoError(t, second.Close())

	evs := f.rec.OfType(protocol.EventInstallationID)
	require.Len(t, evs, 2)
	assert.Equal(t, evs[0].Payload["install_id"], evs[1].Payload["install_id"])
}

func TestApp_HardwareBackAtRoot(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	defer a.Close()

	a.OnMessage(`{"type":"NAV_STATE","payload":{"isRoot":true,"path":"/home"}}`)
	a.OnBackPressed()
	a.Wait()

	assert.Equal(t, 1, f.dialogs.ConfirmCount())
	assert.Equal(t, 1, f.lifecycle.ExitCount())
	assert.Empty(t, f.rec.OfType(protocol.EventBackRequest))
}

func TestApp_WebBackPressedSeesPrecedingNavState(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	defer a.Close()

	a.OnMessage(`{"type":"NAV_STATE","payload":{"isRoot":true,"path":"/home"}}`)
	a.OnMessage(`{"type":"BACK_PRESSED","payload":{}}`)
	a.Wait()

	assert.Equal(t, 1, f.dialogs.ConfirmCount())
	assert.Equal(t, 1, f.lifecycle.ExitCount())
	assert.Empty(t, f.rec.OfType(protocol.EventBackRequest))
}

func TestApp_LatestNavStateWins(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	defer a.Close()

	a.OnMessage(`{"type":"NAV_STATE","payload":{"isRoot":true,"path":"/a"}}`)
	a.OnMessage(`{"type":"NAV_STATE","payload":{"isRoot":false,"path":"/b"}}`)
	a.OnMessage(`{"type":"BACK_PRESSED","payload":{}}`)
	a.Wait()

	acks := f.rec.OfType(protocol.EventNavStateAck)
	require.Len(t, acks, 2)
	assert.Equal(t, "/a", acks[0].Payload["nav"].(map[string]any)["path"])
	assert.Equal(t, "/b", acks[1].Payload["nav"].(map[string]any)["path"])

	req, ok := f.rec.Last(protocol.EventBackRequest)
	require.True(t, ok)
	assert.Equal(t, "/b", req.Payload["nav"].(map[string]any)["path"])
	assert.Zero(t, f.dialogs.ConfirmCount())
}

func TestApp_MessagesHandledInArrivalOrder(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	defer a.Close()

	const n = 100
	for i := range n {
		a.OnMessage(fmt.Sprintf(`{"type":"NAV_STATE","payload":{"isRoot":false,"path":"/p/%d"}}`, i))
		a.OnBackPressed()
	}
	a.Wait()

	reqs := f.rec.OfType(protocol.EventBackRequest)
	require.Len(t, reqs, n)
	for i, req := range reqs {
		assert.Equal(t, fmt.Sprintf("/p/%d", i), req.Payload["nav"].(map[string]any)["path"])
	}
}

func TestApp_PurchaseRoundTrip(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	defer a.Close()

	a.OnMessage(`{"type":"START_ONE_TIME_PURCHASE","payload":{"product_id":"wm_basic_n"}}`)
	a.Wait()
	a.OnPurchaseUpdated(platform.Purchase{TransactionID: "GPA.7", ProductID: "wm_basic_n", State: platform.StatePurchased})
	a.Wait()
	a.OnPurchaseUpdated(platform.Purchase{TransactionID: "GPA.7", ProductID: "wm_basic_n", State: platform.StatePurchased})
	a.Wait()

	evs := f.rec.OfType(protocol.EventPurchaseResult)
	require.Len(t, evs, 1)
	assert.Equal(t, true, evs[0].Payload["success"])
	assert.Equal(t, []string{"GPA.7"}, f.billing.Consumed)
}

func TestApp_PurchaseError(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	defer a.Close()

	a.OnMessage(`{"type":"START_SUBSCRIPTION","payload":{"product_id":"pro"}}`)
	a.Wait()
	a.OnPurchaseError(platform.NewError(platform.CodeCancelled, "closed"))
	a.Wait()

	ev, ok := f.rec.Last(protocol.EventSubscriptionResult)
	require.True(t, ok)
	assert.Equal(t, true, ev.Payload["cancelled"])
}

func TestApp_LegacyOpenWithoutOpener(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	defer a.Close()

	a.OnMessage("open::https://wizmarket.ai")
	a.Wait()

	assert.Empty(t, f.rec.Events())
}

func TestApp_AttachSwapsPoster(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	defer a.Close()

	other := &platformtest.Recorder{}
	a.Attach(other)
	a.OnPushReceived(platform.PushNotification{MessageID: "m", Title: "hi"})

	assert.Empty(t, f.rec.Events())
	assert.Equal(t, []string{protocol.EventPushEvent}, other.Types())
}
