package bridge

// NativeBridge is implemented by the native side (Swift/Kotlin).
// gomobile exposes this as an interface that native code can satisfy.
//
// Rules for gomobile compatibility:
//   - methods may only use primitive types, strings, []byte, or other
//     gomobile-bound types as parameters and return values
//   - no variadic parameters
//   - errors are returned as a second return value
//   - structured values cross as JSON strings
//
// Errors may be raised as "code: message" so the Go side can recover the
// SDK's error code (e.g. "cancelled: user closed the sheet").
type NativeBridge interface {
	// PostMessage delivers an encoded envelope to the web content.
	PostMessage(message string) error

	// OpenURL opens a URL outside the WebView (browser or deep link).
	OpenURL(url string) error
	OpenSettings() error
	ExitApp()

	Alert(title string, message string)
	// Confirm blocks until the user answers.
	Confirm(title string, message string, confirmLabel string, cancelLabel string) (bool, error)

	// NotificationStatus and RequestNotifications return
	// {"granted":bool,"blocked":bool}.
	NotificationStatus() (string, error)
	RequestNotifications() (string, error)
	PushToken() (string, error)

	// SignIn returns the provider identity as JSON.
	SignIn(provider string, payload string) (string, error)
	SignOut(provider string) error

	// Purchases cross as {"transaction_id","product_id","purchase_token",
	// "kind","state","purchased_at","expires_at"}. kind is "subscription"
	// or "one_time" and state is "purchased" or "pending". An update
	// without kind is only finalized when it matches the request in
	// flight, and one without state is never finalized.
	RequestSubscription(productID string) error
	RequestPurchase(productID string) error
	// FinishPurchase acknowledges (consume=false) or consumes a purchase
	// given as JSON.
	FinishPurchase(purchase string, consume bool) error
	// RestorePurchases returns a JSON array of purchases.
	RestorePurchases() (string, error)

	// Share runs one share step ("single", "urls" or "open") with JSON
	// options.
	Share(mode string, options string) error
	SetClipboard(text string) error

	RequestPermission(name string) (bool, error)
	SavePhoto(path string) error
}

// NativeLocation is registered separately on hosts that ship a location
// module.
type NativeLocation interface {
	RequestLocation() (bool, error)
	// CurrentPosition returns {"latitude":float,"longitude":float}.
	CurrentPosition() (string, error)
}
