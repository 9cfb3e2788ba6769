package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wizmarket/wizapp/internal/platform"
)

// Adapter presents a NativeBridge as the platform collaborators the
// handlers depend on. Native calls block; the context only bounds how long
// the Go side waits for dialogs.
type Adapter struct {
	native NativeBridge
	loc    NativeLocation
}

var _ interface {
	platform.URLOpener
	platform.SettingsOpener
	platform.Lifecycle
	platform.Dialogs
	platform.Notifications
	platform.PushService
	platform.Billing
	platform.Sharer
	platform.Clipboard
	platform.Gallery
} = (*Adapter)(nil)

func NewAdapter(native NativeBridge, loc NativeLocation) *Adapter {
	return &Adapter{native: native, loc: loc}
}

func (a *Adapter) PostMessage(msg string) error {
	return platform.ParseError(a.native.PostMessage(msg))
}

func (a *Adapter) OpenURL(_ context.Context, url string) error {
	return platform.ParseError(a.native.OpenURL(url))
}

func (a *Adapter) OpenSettings(context.Context) error {
	return platform.ParseError(a.native.OpenSettings())
}

func (a *Adapter) Exit() { a.native.ExitApp() }

func (a *Adapter) Alert(_ context.Context, title, message string) {
	a.native.Alert(title, message)
}

func (a *Adapter) Confirm(ctx context.Context, title, message, confirmLabel, cancelLabel string) (bool, error) {
	type answer struct {
		ok  bool
		err error
	}
	done := make(chan answer, 1)
	go func() {
		ok, err := a.native.Confirm(title, message, confirmLabel, cancelLabel)
		done <- answer{ok, platform.ParseError(err)}
	}()
	select {
	case r := <-done:
		return r.ok, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (a *Adapter) Status(context.Context) (platform.Permission, error) {
	return decodePermission(a.native.NotificationStatus())
}

func (a *Adapter) Request(context.Context) (platform.Permission, error) {
	return decodePermission(a.native.RequestNotifications())
}

func (a *Adapter) Token(context.Context) (string, error) {
	tok, err := a.native.PushToken()
	return tok, platform.ParseError(err)
}

func (a *Adapter) RequestSubscription(_ context.Context, productID string) error {
	return platform.ParseError(a.native.RequestSubscription(productID))
}

func (a *Adapter) RequestPurchase(_ context.Context, productID string) error {
	return platform.ParseError(a.native.RequestPurchase(productID))
}

func (a *Adapter) Acknowledge(_ context.Context, p platform.Purchase) error {
	return a.finish(p, false)
}

func (a *Adapter) Consume(_ context.Context, p platform.Purchase) error {
	return a.finish(p, true)
}

func (a *Adapter) finish(p platform.Purchase, consume bool) error {
	raw, err := json.Marshal(purchaseWire(p))
	if err != nil {
		return err
	}
	return platform.ParseError(a.native.FinishPurchase(string(raw), consume))
}

func (a *Adapter) Restore(context.Context) ([]platform.Purchase, error) {
	raw, err := a.native.RestorePurchases()
	if err != nil {
		return nil, platform.ParseError(err)
	}
	return ParsePurchases(raw)
}

func (a *Adapter) ShareSingle(_ context.Context, opts platform.ShareOptions) error {
	return a.share("single", opts)
}

func (a *Adapter) ShareURLs(_ context.Context, opts platform.ShareOptions) error {
	return a.share("urls", opts)
}

func (a *Adapter) Open(_ context.Context, opts platform.ShareOptions) error {
	return a.share("open", opts)
}

func (a *Adapter) share(mode string, opts platform.ShareOptions) error {
	raw, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	return platform.ParseError(a.native.Share(mode, string(raw)))
}

func (a *Adapter) SetString(text string) error {
	return platform.ParseError(a.native.SetClipboard(text))
}

func (a *Adapter) RequestPermission(_ context.Context, name string) (bool, error) {
	ok, err := a.native.RequestPermission(name)
	return ok, platform.ParseError(err)
}

func (a *Adapter) SavePhoto(_ context.Context, path string) error {
	return platform.ParseError(a.native.SavePhoto(path))
}

// Provider returns the sign-in collaborator for one provider name.
func (a *Adapter) Provider(name string) platform.AuthProvider {
	return authProvider{native: a.native, name: name}
}

// Location returns nil when the host registered no location module.
func (a *Adapter) Location() platform.Location {
	if a.loc == nil {
		return nil
	}
	return locationAdapter{a.loc}
}

type authProvider struct {
	native NativeBridge
	name   string
}

func (p authProvider) SignIn(_ context.Context, payload []byte) (platform.Identity, error) {
	raw, err := p.native.SignIn(p.name, string(payload))
	if err != nil {
		return platform.Identity{}, platform.ParseError(err)
	}
	var id platform.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return platform.Identity{}, fmt.Errorf("decode %s identity: %w", p.name, err)
	}
	return id, nil
}

func (p authProvider) SignOut(context.Context) error {
	return platform.ParseError(p.native.SignOut(p.name))
}

type locationAdapter struct {
	native NativeLocation
}

func (l locationAdapter) Request(context.Context) (platform.Permission, error) {
	ok, err := l.native.RequestLocation()
	if err != nil {
		return platform.Permission{}, platform.ParseError(err)
	}
	return platform.Permission{Granted: ok}, nil
}

func (l locationAdapter) Current(context.Context) (platform.Position, error) {
	raw, err := l.native.CurrentPosition()
	if err != nil {
		return platform.Position{}, platform.ParseError(err)
	}
	if !gjson.Valid(raw) {
		return platform.Position{}, fmt.Errorf("decode position: %q", raw)
	}
	p := gjson.Parse(raw)
	return platform.Position{
		Latitude:  p.Get("latitude").Float(),
		Longitude: p.Get("longitude").Float(),
	}, nil
}

func decodePermission(raw string, err error) (platform.Permission, error) {
	if err != nil {
		return platform.Permission{}, platform.ParseError(err)
	}
	var p platform.Permission
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return platform.Permission{}, fmt.Errorf("decode permission: %w", err)
	}
	return p, nil
}

// ParsePurchase reads a purchase reported by the native billing client.
// Timestamps are unix milliseconds; Android's orderId, purchaseToken and
// productType spellings are accepted. A missing state is left empty and
// the update is not finalized.
func ParsePurchase(raw string) (platform.Purchase, error) {
	if !gjson.Valid(raw) {
		return platform.Purchase{}, fmt.Errorf("decode purchase: %q", raw)
	}
	return purchaseFrom(gjson.Parse(raw)), nil
}

func ParsePurchases(raw string) ([]platform.Purchase, error) {
	if raw == "" {
		return nil, nil
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("decode purchases: %q", raw)
	}
	items := gjson.Parse(raw).Array()
	out := make([]platform.Purchase, 0, len(items))
	for _, it := range items {
		p := purchaseFrom(it)
		if p.State == "" {
			p.State = platform.StatePurchased
		}
		out = append(out, p)
	}
	return out, nil
}

func purchaseFrom(r gjson.Result) platform.Purchase {
	first := func(paths ...string) string {
		for _, p := range paths {
			if v := r.Get(p); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
		return ""
	}
	p := platform.Purchase{
		TransactionID: first("transaction_id", "transactionId", "orderId"),
		ProductID:     first("product_id", "productId"),
		PurchaseToken: first("purchase_token", "purchaseToken"),
		Kind:          kindOf(first("kind", "productType")),
		State:         platform.PurchaseState(first("state")),
	}
	if ms := r.Get("purchased_at").Int(); ms > 0 {
		p.PurchasedAt = time.UnixMilli(ms)
	}
	if ms := r.Get("expires_at").Int(); ms > 0 {
		p.ExpiresAt = time.UnixMilli(ms)
	}
	return p
}

func kindOf(v string) platform.ProductKind {
	switch v {
	case "subs":
		return platform.KindSubscription
	case "inapp":
		return platform.KindOneTime
	}
	return platform.ProductKind(v)
}

type wirePurchase struct {
	TransactionID string `json:"transaction_id"`
	ProductID     string `json:"product_id"`
	PurchaseToken string `json:"purchase_token,omitempty"`
	Kind          string `json:"kind,omitempty"`
}

func purchaseWire(p platform.Purchase) wirePurchase {
	return wirePurchase{
		TransactionID: p.TransactionID,
		ProductID:     p.ProductID,
		PurchaseToken: p.PurchaseToken,
		Kind:          string(p.Kind),
	}
}
