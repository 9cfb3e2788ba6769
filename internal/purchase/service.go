package purchase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wizmarket/wizapp/internal/outbound"
	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/protocol"
)

// Result is the payload of SUBSCRIPTION_RESULT and PURCHASE_RESULT.
type Result struct {
	Success       bool   `json:"success"`
	Pending       bool   `json:"pending,omitempty"`
	Cancelled     bool   `json:"cancelled,omitempty"`
	ProductID     string `json:"product_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	PurchaseToken string `json:"purchase_token,omitempty"`
	ExpiresAt     int64  `json:"expires_at,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

type Restored struct {
	Success      bool     `json:"success"`
	Purchases    []Result `json:"purchases"`
	ErrorCode    string   `json:"error_code,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

const (
	codeCancelled      = "cancelled"
	codePurchaseFailed = "purchase_failed"
	codeFinalizeFailed = "finalize_failed"
	codeUnavailable    = "billing_unavailable"
	codePendingTimeout = "pending_timeout"
	codeRestoreFailed  = "restore_failed"
)

type Options struct {
	Guard   *Guard
	Ledger  *Ledger
	Billing platform.Billing
	Out     outbound.Sender
	Dialogs platform.Dialogs
	Logger  *slog.Logger
}

// Service drives the purchase state machine: it starts store flows through
// the guard and reconciles the billing callback stream against it.
type Service struct {
	guard   *Guard
	ledger  *Ledger
	billing platform.Billing
	out     outbound.Sender
	dialogs platform.Dialogs
	logger  *slog.Logger
}

func NewService(opts Options) *Service {
	if opts.Guard == nil {
		opts.Guard = NewGuard(GuardOptions{Debounce: DefaultDebounce})
	}
	if opts.Ledger == nil {
		opts.Ledger = NewLedger(nil, opts.Logger)
	}
	if opts.Billing == nil {
		opts.Billing = platform.Unsupported{}
	}
	if opts.Dialogs == nil {
		opts.Dialogs = platform.Unsupported{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		guard:   opts.Guard,
		ledger:  opts.Ledger,
		billing: opts.Billing,
		out:     opts.Out,
		dialogs: opts.Dialogs,
		logger:  opts.Logger,
	}
}

func (s *Service) Guard() *Guard { return s.guard }

// Start launches a store purchase. Requests rejected by the guard are
// dropped without any event.
func (s *Service) Start(ctx context.Context, productID string, kind platform.ProductKind) {
	if req, ok := s.Begin(productID, kind); ok {
		s.Launch(ctx, req)
	}
}

// Begin claims the guard for a purchase without calling the store. It
// reports false when the request was dropped.
func (s *Service) Begin(productID string, kind platform.ProductKind) (Request, bool) {
	req, err := s.guard.Begin(productID, kind)
	if err != nil {
		s.logger.Debug("purchase request dropped", "product", productID, "reason", err)
		return Request{}, false
	}
	s.logger.Info("purchase requested", "product", productID, "kind", kind, "request", req.ID)
	return req, true
}

// Launch opens the store flow for a request returned by Begin.
func (s *Service) Launch(ctx context.Context, req Request) {
	var err error
	if req.Kind == platform.KindSubscription {
		err = s.billing.RequestSubscription(ctx, req.ProductID)
	} else {
		err = s.billing.RequestPurchase(ctx, req.ProductID)
	}
	if err != nil {
		s.fail(ctx, req, err, codePurchaseFailed)
	}
}

// HandleUpdate consumes one purchase-updated callback. Only purchased
// transactions are finalized. A callback whose kind is neither sent nor
// implied by the in-flight request is dropped unrecorded.
func (s *Service) HandleUpdate(ctx context.Context, p platform.Purchase) {
	req, inFlight := s.guard.Current()
	correlated := inFlight && (p.ProductID == "" || p.ProductID == req.ProductID)

	if p.Kind == "" {
		if !correlated {
			s.logger.Warn("purchase callback without kind dropped", "product", p.ProductID, "txn", p.Key())
			return
		}
		p.Kind = req.Kind
	}
	if p.ProductID == "" && correlated {
		p.ProductID = req.ProductID
	}
	key := p.Key()

	switch p.State {
	case platform.StatePurchased:
	case platform.StatePending:
		if s.ledger.Seen(key) {
			return
		}
		s.logger.Info("purchase pending", "product", p.ProductID, "txn", key)
		s.out.Send(eventFor(p.Kind), Result{
			Pending:       true,
			ProductID:     p.ProductID,
			TransactionID: p.TransactionID,
		})
		if correlated {
			s.guard.MarkPending(req.ID, s.pendingTimedOut)
		}
		return
	default:
		s.logger.Warn("purchase callback with unknown state dropped", "product", p.ProductID, "txn", key, "state", p.State)
		return
	}

	if !s.ledger.Claim(key) {
		s.retryFinalize(ctx, p)
		return
	}

	if err := s.finalize(ctx, p); err != nil {
		s.logger.Error("purchase finalize failed", "product", p.ProductID, "txn", key, "err", err)
		s.ledger.Release(key)
		if correlated {
			s.guard.Release(req.ID)
		}
		s.sendFailure(ctx, p.Kind, p.ProductID, errorCode(err, codeFinalizeFailed), err)
		return
	}
	s.ledger.Settle(key)

	if correlated {
		s.guard.Release(req.ID)
	}
	s.logger.Info("purchase delivered", "product", p.ProductID, "txn", key)
	res := Result{
		Success:       true,
		ProductID:     p.ProductID,
		TransactionID: p.TransactionID,
		PurchaseToken: p.PurchaseToken,
	}
	if !p.ExpiresAt.IsZero() {
		res.ExpiresAt = p.ExpiresAt.UnixMilli()
	}
	s.out.Send(eventFor(p.Kind), res)
}

// retryFinalize handles a redelivered transaction. One whose earlier
// finalization failed is finalized again without a second event.
func (s *Service) retryFinalize(ctx context.Context, p platform.Purchase) {
	key := p.Key()
	if !s.ledger.Retry(key) {
		s.logger.Debug("duplicate purchase callback ignored", "product", p.ProductID, "txn", key)
		return
	}
	if err := s.finalize(ctx, p); err != nil {
		s.logger.Warn("purchase finalize retry failed", "product", p.ProductID, "txn", key, "err", err)
		s.ledger.Release(key)
		return
	}
	s.ledger.Settle(key)
	s.logger.Info("purchase finalized on redelivery", "product", p.ProductID, "txn", key)
}

// HandleError consumes an error from the billing callback stream. It is
// attributed to the in-flight request; with nothing in flight it is only
// logged.
func (s *Service) HandleError(ctx context.Context, err error) {
	req, ok := s.guard.Current()
	if !ok {
		s.logger.Warn("billing error with no request in flight", "err", err)
		return
	}
	s.fail(ctx, req, err, codePurchaseFailed)
}

// Restore reports the store's active purchases.
func (s *Service) Restore(ctx context.Context) {
	purchases, err := s.billing.Restore(ctx)
	if err != nil {
		s.logger.Warn("restore failed", "err", err)
		s.out.Send(protocol.EventSubscriptionRestored, Restored{
			Purchases:    []Result{},
			ErrorCode:    errorCode(err, codeRestoreFailed),
			ErrorMessage: platform.Message(err),
		})
		return
	}

	out := Restored{Success: true, Purchases: make([]Result, 0, len(purchases))}
	for _, p := range purchases {
		r := Result{
			Success:       true,
			ProductID:     p.ProductID,
			TransactionID: p.TransactionID,
			PurchaseToken: p.PurchaseToken,
		}
		if !p.ExpiresAt.IsZero() {
			r.ExpiresAt = p.ExpiresAt.UnixMilli()
		}
		out.Purchases = append(out.Purchases, r)
	}
	s.out.Send(protocol.EventSubscriptionRestored, out)
}

// finalize consumes one-time products and acknowledges subscriptions. A
// store reporting the transaction as already finalized gets one
// acknowledge attempt and is otherwise treated as done.
func (s *Service) finalize(ctx context.Context, p platform.Purchase) error {
	var err error
	if p.Kind == platform.KindSubscription {
		err = s.billing.Acknowledge(ctx, p)
	} else {
		err = s.billing.Consume(ctx, p)
	}
	if err == nil || !platform.IsAlreadyFinalized(err) {
		return err
	}

	s.logger.Info("transaction already finalized, acknowledging", "txn", p.Key())
	if ackErr := s.billing.Acknowledge(ctx, p); ackErr != nil && !platform.IsAlreadyFinalized(ackErr) {
		return ackErr
	}
	return nil
}

func (s *Service) fail(ctx context.Context, req Request, err error, fallback string) {
	if _, ok := s.guard.Release(req.ID); !ok {
		return
	}
	if platform.IsCancelled(err) {
		s.logger.Info("purchase cancelled", "product", req.ProductID)
		s.out.Send(eventFor(req.Kind), Result{
			Cancelled: true,
			ProductID: req.ProductID,
			ErrorCode: codeCancelled,
		})
		return
	}
	s.logger.Warn("purchase failed", "product", req.ProductID, "err", err)
	s.sendFailure(ctx, req.Kind, req.ProductID, errorCode(err, fallback), err)
}

func (s *Service) pendingTimedOut(req Request) {
	s.logger.Warn("pending purchase timed out, releasing guard", "product", req.ProductID, "request", req.ID)
	s.out.Send(eventFor(req.Kind), Result{
		ProductID:    req.ProductID,
		ErrorCode:    codePendingTimeout,
		ErrorMessage: "purchase is still pending approval",
	})
}

func (s *Service) sendFailure(ctx context.Context, kind platform.ProductKind, productID, code string, err error) {
	msg := platform.Message(err)
	s.out.Send(eventFor(kind), Result{
		ProductID:    productID,
		ErrorCode:    code,
		ErrorMessage: msg,
	})
	s.dialogs.Alert(ctx, "Purchase failed", msg)
}

func eventFor(kind platform.ProductKind) string {
	if kind == platform.KindSubscription {
		return protocol.EventSubscriptionResult
	}
	return protocol.EventPurchaseResult
}

func errorCode(err error, fallback string) string {
	if c := platform.CodeOf(err); c != "" {
		return c
	}
	if errors.Is(err, platform.ErrNotSupported) {
		return codeUnavailable
	}
	return fallback
}
