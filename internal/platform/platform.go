// Package platform declares the narrow collaborator interfaces the bridge
// uses to reach native SDKs. Implementations live with each host: the
// gomobile adapter in internal/bridge, the desktop host in internal/webview,
// and fakes in platformtest.
package platform

import (
	"context"
	"time"
)

// Info describes the host the bridge runs on.
type Info struct {
	OS         string
	OSVersion  int
	AppVersion string
	CacheDir   string
}

type URLOpener interface {
	OpenURL(ctx context.Context, url string) error
}

type SettingsOpener interface {
	OpenSettings(ctx context.Context) error
}

type Lifecycle interface {
	Exit()
}

type Dialogs interface {
	Alert(ctx context.Context, title, message string)
	// Confirm blocks until the user answers.
	Confirm(ctx context.Context, title, message, confirmLabel, cancelLabel string) (bool, error)
}

type Permission struct {
	Granted bool `json:"granted"`
	Blocked bool `json:"blocked"`
}

type Notifications interface {
	Status(ctx context.Context) (Permission, error)
	Request(ctx context.Context) (Permission, error)
}

type Position struct {
	Latitude  float64
	Longitude float64
}

type Location interface {
	Request(ctx context.Context) (Permission, error)
	Current(ctx context.Context) (Position, error)
}

type PushService interface {
	Token(ctx context.Context) (string, error)
}

// PushNotification is a remote message as delivered by the push SDK.
type PushNotification struct {
	MessageID string            `json:"messageId"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Deeplink  string            `json:"deeplink"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Identity is what a sign-in provider returns on success.
type Identity struct {
	UID          string `json:"uid"`
	ProviderID   string `json:"provider_id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	PhotoURL     string `json:"photo_url"`
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthProvider interface {
	SignIn(ctx context.Context, payload []byte) (Identity, error)
	SignOut(ctx context.Context) error
}

type ProductKind string

const (
	KindSubscription ProductKind = "subscription"
	KindOneTime      ProductKind = "one_time"
)

type PurchaseState string

const (
	StatePurchased PurchaseState = "purchased"
	StatePending   PurchaseState = "pending"
)

// Purchase is a transaction reported by the billing callback stream.
type Purchase struct {
	TransactionID string        `json:"transaction_id"`
	ProductID     string        `json:"product_id"`
	PurchaseToken string        `json:"purchase_token,omitempty"`
	Kind          ProductKind   `json:"kind,omitempty"`
	State         PurchaseState `json:"state"`
	PurchasedAt   time.Time     `json:"purchased_at,omitzero"`
	ExpiresAt     time.Time     `json:"expires_at,omitzero"`
}

// Key identifies the transaction for de-duplication. The purchase token is
// used when the store does not report an order id.
func (p Purchase) Key() string {
	if p.TransactionID != "" {
		return p.TransactionID
	}
	return p.PurchaseToken
}

// Billing starts purchases and finalises the ones reported back through
// the billing callback stream. Request* only launches the store flow; the
// outcome arrives asynchronously.
type Billing interface {
	RequestSubscription(ctx context.Context, productID string) error
	RequestPurchase(ctx context.Context, productID string) error
	Acknowledge(ctx context.Context, p Purchase) error
	Consume(ctx context.Context, p Purchase) error
	Restore(ctx context.Context) ([]Purchase, error)
}

// ShareOptions mirrors what native share sheets accept.
type ShareOptions struct {
	Social          string   `json:"social,omitempty"`
	Title           string   `json:"title,omitempty"`
	Message         string   `json:"message,omitempty"`
	URL             string   `json:"url,omitempty"`
	URLs            []string `json:"urls,omitempty"`
	Type            string   `json:"type,omitempty"`
	Filename        string   `json:"filename,omitempty"`
	BackgroundImage string   `json:"backgroundImage,omitempty"`
	AttributionURL  string   `json:"attributionURL,omitempty"`
}

type Sharer interface {
	// ShareSingle targets one app directly.
	ShareSingle(ctx context.Context, opts ShareOptions) error
	// ShareURLs hands the target a list of URLs.
	ShareURLs(ctx context.Context, opts ShareOptions) error
	// Open presents the generic system share sheet.
	Open(ctx context.Context, opts ShareOptions) error
}

type Clipboard interface {
	SetString(text string) error
}

type Gallery interface {
	// RequestPermission prompts for the named runtime permission.
	RequestPermission(ctx context.Context, name string) (bool, error)
	SavePhoto(ctx context.Context, path string) error
}
