package platform

import "context"

// Unsupported satisfies every collaborator interface and fails each call
// with ErrNotSupported. Hosts use it for capabilities they do not have.
type Unsupported struct{}

var _ interface {
	URLOpener
	SettingsOpener
	Notifications
	Location
	PushService
	Billing
	Sharer
	Clipboard
	Gallery
	Dialogs
	Lifecycle
} = Unsupported{}

func (Unsupported) OpenURL(context.Context, string) error { return ErrNotSupported }
func (Unsupported) OpenSettings(context.Context) error    { return ErrNotSupported }

func (Unsupported) Status(context.Context) (Permission, error)  { return Permission{}, ErrNotSupported }
func (Unsupported) Request(context.Context) (Permission, error) { return Permission{}, ErrNotSupported }
func (Unsupported) Current(context.Context) (Position, error)   { return Position{}, ErrNotSupported }

func (Unsupported) Token(context.Context) (string, error) { return "", ErrNotSupported }

func (Unsupported) RequestSubscription(context.Context, string) error { return ErrNotSupported }
func (Unsupported) RequestPurchase(context.Context, string) error     { return ErrNotSupported }
func (Unsupported) Acknowledge(context.Context, Purchase) error       { return ErrNotSupported }
func (Unsupported) Consume(context.Context, Purchase) error           { return ErrNotSupported }
func (Unsupported) Restore(context.Context) ([]Purchase, error)       { return nil, ErrNotSupported }

func (Unsupported) ShareSingle(context.Context, ShareOptions) error { return ErrNotSupported }
func (Unsupported) ShareURLs(context.Context, ShareOptions) error   { return ErrNotSupported }
func (Unsupported) Open(context.Context, ShareOptions) error        { return ErrNotSupported }

func (Unsupported) SetString(string) error { return ErrNotSupported }

func (Unsupported) RequestPermission(context.Context, string) (bool, error) { return false, ErrNotSupported }
func (Unsupported) SavePhoto(context.Context, string) error                 { return ErrNotSupported }

func (Unsupported) Alert(context.Context, string, string) {}
func (Unsupported) Confirm(context.Context, string, string, string, string) (bool, error) {
	return false, ErrNotSupported
}

func (Unsupported) Exit() {}
