package purchase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/platform/platformtest"
	"github.com/wizmarket/wizapp/internal/protocol"
	"github.com/wizmarket/wizapp/internal/purchase"
	"github.com/wizmarket/wizapp/internal/store"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc     *purchase.Service
	rec     *platformtest.Recorder
	billing *platformtest.Billing
	dialogs *platformtest.Dialogs
	clock   *clock
}

func newFixture(t *testing.T, pendingTimeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		rec:     &platformtest.Recorder{},
		billing: &platformtest.Billing{},
		dialogs: &platformtest.Dialogs{},
		clock:   &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.svc = purchase.NewService(purchase.Options{
		Guard: purchase.NewGuard(purchase.GuardOptions{
			Debounce:       purchase.DefaultDebounce,
			PendingTimeout: pendingTimeout,
			Now:            f.clock.Now,
		}),
		Billing: f.billing,
		Out:     f.rec,
		Dialogs: f.dialogs,
	})
	return f
}

func TestService_DoubleTapWithinDebounce(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.svc.Start(ctx, "coins_100", platform.KindOneTime)
	f.svc.HandleError(ctx, platform.NewError(platform.CodeCancelled, "user cancelled"))
	f.rec.Reset()

	f.clock.Advance(500 * time.Millisecond)
	f.svc.Start(ctx, "coins_100", platform.KindOneTime)

	assert.Equal(t, 1, f.billing.RequestCount())
	assert.Empty(t, f.rec.Events(), "dropped request emits nothing")
	assert.Equal(t, purchase.Idle, f.svc.Guard().Phase())
}

func TestService_BusyRequestDropped(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.svc.Start(ctx, "coins_100", platform.KindOneTime)
	f.clock.Advance(3 * time.Second)
	f.svc.Start(ctx, "coins_500", platform.KindOneTime)

	assert.Equal(t, []string{"iap:coins_100"}, f.billing.Requested)
	assert.Empty(t, f.rec.Events())
	assert.Equal(t, purchase.Requesting, f.svc.Guard().Phase())
}

func TestService_Cancellation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.svc.Start(ctx, "coins_100", platform.KindOneTime)
	f.svc.HandleError(ctx, platform.NewError(platform.CodeCancelled, "user cancelled"))

	evs := f.rec.OfType(protocol.EventPurchaseResult)
	require.Len(t, evs, 1)
	assert.Equal(t, false, evs[0].Payload["success"])
	assert.Equal(t, true, evs[0].Payload["cancelled"])
	assert.Equal(t, "cancelled", evs[0].Payload["error_code"])
	assert.Equal(t, purchase.Idle, f.svc.Guard().Phase())
	assert.Zero(t, f.dialogs.AlertCount(), "cancellation is not an error to the user")
}

func TestService_BillingRequestFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.billing.RequestErr = platform.NewError(platform.CodeInvalidProduct, "unknown sku")

	f.svc.Start(context.Background(), "nope", platform.KindSubscription)

	ev, ok := f.rec.Last(protocol.EventSubscriptionResult)
	require.True(t, ok)
	assert.Equal(t, false, ev.Payload["success"])
	assert.Equal(t, platform.CodeInvalidProduct, ev.Payload["error_code"])
	assert.Equal(t, "unknown sku", ev.Payload["error_message"])
	assert.Equal(t, 1, f.dialogs.AlertCount())
	assert.Equal(t, purchase.Idle, f.svc.Guard().Phase())
}

func TestService_UnsupportedBilling(t *testing.T) {
	rec := &platformtest.Recorder{}
	svc := purchase.NewService(purchase.Options{Out: rec})

	svc.Start(context.Background(), "coins_100", platform.KindOneTime)

	ev, ok := rec.Last(protocol.EventPurchaseResult)
	require.True(t, ok)
	assert.Equal(t, "billing_unavailable", ev.Payload["error_code"])
}

func TestService_OneTimeSuccessConsumes(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.svc.Start(ctx, "coins_100", platform.KindOneTime)
	f.svc.HandleUpdate(ctx, platform.Purchase{
		TransactionID: "GPA.1",
		ProductID:     "coins_100",
		PurchaseToken: "tok",
		State:         platform.StatePurchased,
	})

	evs := f.rec.OfType(protocol.EventPurchaseResult)
	require.Len(t, evs, 1)
	assert.Equal(t, true, evs[0].Payload["success"])
	assert.Equal(t, "GPA.1", evs[0].Payload["transaction_id"])
	assert.Equal(t, "tok", evs[0].Payload["purchase_token"])
	assert.Equal(t, []string{"GPA.1"}, f.billing.Consumed)
	assert.Empty(t, f.billing.Acknowledged)
	assert.Equal(t, purchase.Idle, f.svc.Guard().Phase())
}

func TestService_SubscriptionSuccessAcknowledges(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	expires := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	f.svc.Start(ctx, "pro_monthly", platform.KindSubscription)
	f.svc.HandleUpdate(ctx, platform.Purchase{
		TransactionID: "GPA.2",
		State:         platform.StatePurchased,
		ExpiresAt:     expires,
	})

	ev, ok := f.rec.Last(protocol.EventSubscriptionResult)
	require.True(t, ok)
	assert.Equal(t, true, ev.Payload["success"])
	assert.Equal(t, "pro_monthly", ev.Payload["product_id"])
	assert.InDelta(t, float64(expires.UnixMilli()), ev.Payload["expires_at"], 0)
	assert.Equal(t, []string{"GPA.2"}, f.billing.Acknowledged)
	assert.Empty(t, f.rec.OfType(protocol.EventPurchaseResult))
}

func TestService_GuardReleasedBeforeResult(t *testing.T) {
	billing := &platformtest.Billing{}
	var svc *purchase.Service
	var phaseAtSend purchase.Phase = -1
	sender := senderFunc(func(string, any) { phaseAtSend = svc.Guard().Phase() })
	svc = purchase.NewService(purchase.Options{Billing: billing, Out: sender})

	ctx := context.Background()
	svc.Start(ctx, "coins_100", platform.KindOneTime)
	svc.HandleUpdate(ctx, platform.Purchase{TransactionID: "T", State: platform.StatePurchased})

	assert.Equal(t, purchase.Idle, phaseAtSend)
}

func TestService_DuplicateCallbackDeliveredOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("a transaction id yields at most one result event", prop.ForAll(
		func(redeliveries int, txn string) bool {
			f := newFixture(t, 0)
			ctx := context.Background()
			f.svc.Start(ctx, "coins_100", platform.KindOneTime)

			p := platform.Purchase{TransactionID: "GPA." + txn, ProductID: "coins_100", State: platform.StatePurchased}
			for range redeliveries {
				f.svc.HandleUpdate(ctx, p)
			}
			return len(f.rec.OfType(protocol.EventPurchaseResult)) == 1 && len(f.billing.Consumed) == 1
		},
		gen.IntRange(1, 6),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestService_ConcurrentDuplicateCallbacks(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.svc.Start(ctx, "coins_100", platform.KindOneTime)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			f.svc.HandleUpdate(ctx, platform.Purchase{TransactionID: "GPA.9", State: platform.StatePurchased})
		})
	}
	wg.Wait()

	assert.Len(t, f.rec.OfType(protocol.EventPurchaseResult), 1)
}

func TestService_AlreadyFinalizedFallsBackToAcknowledge(t *testing.T) {
	f := newFixture(t, 0)
	f.billing.ConsumeErr = platform.NewError(platform.CodeAlreadyFinalized, "already consumed")
	ctx := context.Background()

	f.svc.Start(ctx, "coins_100", platform.KindOneTime)
	f.svc.HandleUpdate(ctx, platform.Purchase{TransactionID: "GPA.3", State: platform.StatePurchased})

	assert.Equal(t, []string{"GPA.3"}, f.billing.Acknowledged)
	ev, ok := f.rec.Last(protocol.EventPurchaseResult)
	require.True(t, ok)
	assert.Equal(t, true, ev.Payload["success"])
}

func TestService_FinalizeFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.billing.ConsumeErr = errors.New("service disconnected")
	ctx := context.Background()

	f.svc.Start(ctx, "coins_100", platform.KindOneTime)
	f.svc.HandleUpdate(ctx, platform.Purchase{TransactionID: "GPA.4", State: platform.StatePurchased})

	ev, ok := f.rec.Last(protocol.EventPurchaseResult)
	require.True(t, ok)
	assert.Equal(t, false, ev.Payload["success"])
	assert.Equal(t, "finalize_failed", ev.Payload["error_code"])
	assert.Equal(t, "service disconnected", ev.Payload["error_message"])
	assert.Equal(t, 1, f.dialogs.AlertCount())
	assert.Equal(t, purchase.Idle, f.svc.Guard().Phase())

	// The store redelivers until the transaction is consumed. Each
	// redelivery retries the consume without a second result.
	redelivered := platform.Purchase{
		TransactionID: "GPA.4",
		ProductID:     "coins_100",
		Kind:          platform.KindOneTime,
		State:         platform.StatePurchased,
	}
	f.svc.HandleUpdate(ctx, redelivered)
	assert.Equal(t, []string{"GPA.4", "GPA.4"}, f.billing.Consumed)

	f.billing.ConsumeErr = nil
	f.svc.HandleUpdate(ctx, redelivered)
	f.svc.HandleUpdate(ctx, redelivered)
	assert.Len(t, f.billing.Consumed, 3, "settled after the successful retry")
	assert.Len(t, f.rec.OfType(protocol.EventPurchaseResult), 1)
	assert.Equal(t, 1, f.dialogs.AlertCount())
}

func TestService_UncorrelatedCallbackWithoutKindDropped(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.svc.HandleUpdate(ctx, platform.Purchase{
		TransactionID: "GPA.10",
		ProductID:     "pro_monthly",
		State:         platform.StatePurchased,
	})
	f.svc.Start(ctx, "coins_100", platform.KindOneTime)
	f.svc.HandleUpdate(ctx, platform.Purchase{
		TransactionID: "GPA.10",
		ProductID:     "pro_monthly",
		State:         platform.StatePurchased,
	})

	assert.Empty(t, f.billing.Consumed, "a subscription must never be consumed")
	assert.Empty(t, f.billing.Acknowledged)
	assert.Empty(t, f.rec.OfType(protocol.EventSubscriptionResult))
	assert.Empty(t, f.rec.OfType(protocol.EventPurchaseResult))
	assert.Equal(t, purchase.Requesting, f.svc.Guard().Phase())

	// Redelivered with its kind, the same transaction is still handled.
	f.svc.HandleUpdate(ctx, platform.Purchase{
		TransactionID: "GPA.10",
		ProductID:     "pro_monthly",
		Kind:          platform.KindSubscription,
		State:         platform.StatePurchased,
	})
	assert.Equal(t, []string{"GPA.10"}, f.billing.Acknowledged)
	assert.Empty(t, f.billing.Consumed)
	assert.Len(t, f.rec.OfType(protocol.EventSubscriptionResult), 1)
	assert.Equal(t, purchase.Requesting, f.svc.Guard().Phase(), "coins_100 is still in flight")
}

func TestService_OnlyPurchasedStateFinalizes(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.svc.Start(ctx, "coins_100", platform.KindOneTime)
	for _, state := range []platform.PurchaseState{"", "refunded", "unspecified"} {
		f.svc.HandleUpdate(ctx, platform.Purchase{TransactionID: "GPA.11", State: state})
	}

	assert.Empty(t, f.billing.Consumed)
	assert.Empty(t, f.rec.OfType(protocol.EventPurchaseResult))
	assert.Equal(t, purchase.Requesting, f.svc.Guard().Phase())

	f.svc.HandleUpdate(ctx, platform.Purchase{TransactionID: "GPA.11", State: platform.StatePurchased})
	assert.Equal(t, []string{"GPA.11"}, f.billing.Consumed)
	ev, ok := f.rec.Last(protocol.EventPurchaseResult)
	require.True(t, ok)
	assert.Equal(t, true, ev.Payload["success"])
}

func TestService_PendingThenPurchased(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	f.svc.Start(ctx, "coins_100", platform.KindOneTime)
	f.svc.HandleUpdate(ctx, platform.Purchase{TransactionID: "GPA.5", State: platform.StatePending})

	assert.Equal(t, purchase.Requesting, f.svc.Guard().Phase())
	req, _ := f.svc.Guard().Current()
	assert.True(t, req.Pending)

	f.svc.HandleUpdate(ctx, platform.Purchase{TransactionID: "GPA.5", State: platform.StatePurchased})

	evs := f.rec.OfType(protocol.EventPurchaseResult)
	require.Len(t, evs, 2)
	assert.Equal(t, true, evs[0].Payload["pending"])
	assert.Equal(t, true, evs[1].Payload["success"])
	assert.Equal(t, purchase.Idle, f.svc.Guard().Phase())
}

func TestService_PendingTimeoutReleasesGuard(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	ctx := context.Background()

	f.svc.Start(ctx, "coins_100", platform.KindOneTime)
	f.svc.HandleUpdate(ctx, platform.Purchase{TransactionID: "GPA.6", State: platform.StatePending})

	require.Eventually(t, func() bool {
		return f.svc.Guard().Phase() == purchase.Idle
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		ev, ok := f.rec.Last(protocol.EventPurchaseResult)
		return ok && ev.Payload["error_code"] == "pending_timeout"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestService_ErrorWithNothingInFlight(t *testing.T) {
	f := newFixture(t, 0)

	f.svc.HandleError(context.Background(), errors.New("late"))

	assert.Empty(t, f.rec.Events())
	assert.Zero(t, f.dialogs.AlertCount())
}

func TestService_Restore(t *testing.T) {
	f := newFixture(t, 0)
	f.billing.Restored = []platform.Purchase{
		{TransactionID: "GPA.7", ProductID: "pro_monthly"},
	}

	f.svc.Restore(context.Background())

	ev, ok := f.rec.Last(protocol.EventSubscriptionRestored)
	require.True(t, ok)
	assert.Equal(t, true, ev.Payload["success"])
	purchases, ok := ev.Payload["purchases"].([]any)
	require.True(t, ok)
	require.Len(t, purchases, 1)
	assert.Equal(t, "pro_monthly", purchases[0].(map[string]any)["product_id"])
}

func TestService_RestoreFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.billing.RestoreErr = errors.New("offline")

	f.svc.Restore(context.Background())

	ev, ok := f.rec.Last(protocol.EventSubscriptionRestored)
	require.True(t, ok)
	assert.Equal(t, false, ev.Payload["success"])
	assert.Equal(t, "restore_failed", ev.Payload["error_code"])
	assert.Equal(t, []any{}, ev.Payload["purchases"])
}

func TestLedger_PersistsAcrossInstances(t *testing.T) {
	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	first := purchase.NewLedger(s, nil)
	assert.True(t, first.Claim("GPA.8"))
	assert.False(t, first.Claim("GPA.8"))

	second := purchase.NewLedger(s, nil)
	assert.True(t, second.Seen("GPA.8"))
	assert.False(t, second.Claim("GPA.8"))
	assert.Equal(t, 1, second.Len())
}

func TestLedger_UnfinalizedEntryRetriedAfterRestart(t *testing.T) {
	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	first := purchase.NewLedger(s, nil)
	require.True(t, first.Claim("GPA.12"))
	assert.False(t, first.Retry("GPA.12"), "claim still in progress")
	first.Release("GPA.12")
	require.True(t, first.Claim("GPA.13"))
	first.Settle("GPA.13")

	second := purchase.NewLedger(s, nil)
	assert.False(t, second.Claim("GPA.12"))
	assert.True(t, second.Retry("GPA.12"))
	assert.False(t, second.Retry("GPA.12"), "one retry at a time")
	second.Settle("GPA.12")
	assert.False(t, second.Retry("GPA.12"))
	assert.False(t, second.Retry("GPA.13"))
	assert.False(t, second.Retry("GPA.unknown"))
}

func TestLedger_ConcurrentClaimSingleWinner(t *testing.T) {
	l := purchase.NewLedger(nil, nil)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := range 64 {
		wg.Go(func() {
			if l.Claim(fmt.Sprintf("txn-%d", i%2)) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	assert.Equal(t, 2, wins)
}

type senderFunc func(string, any)

func (f senderFunc) Send(msgType string, payload any) { f(msgType, payload) }
