package protocol

// Web→Native message types.
const (
	TypeWebReady             = "WEB_READY"
	TypeWebError             = "WEB_ERROR"
	TypeCheckPermission      = "CHECK_PERMISSION"
	TypeRequestPermission    = "REQUEST_PERMISSION"
	TypeOpenSettings         = "OPEN_SETTINGS"
	TypeStartSignin          = "START_SIGNIN"
	TypeStartSignout         = "START_SIGNOUT"
	TypeStartSubscription    = "START_SUBSCRIPTION"
	TypeStartOneTimePurchase = "START_ONE_TIME_PURCHASE"
	TypeRestoreSubscriptions = "RESTORE_SUBSCRIPTIONS"
	TypeStartShare           = "START_SHARE"
	TypeShareToChannel       = "share.toChannel"
	TypeDownloadImage        = "DOWNLOAD_IMAGE"
	TypeGetPushToken         = "GET_PUSH_TOKEN"
	TypeGetInstallationID    = "GET_INSTALLATION_ID"
	TypeNavState             = "NAV_STATE"
	TypeBackPressed          = "BACK_PRESSED"
	TypeExitApp              = "EXIT_APP"
)

// Native→Web event types.
const (
	EventWebReadyAck          = "WEB_READY_ACK"
	EventWebErrorAck          = "WEB_ERROR_ACK"
	EventOfflineFallback      = "OFFLINE_FALLBACK"
	EventPermissionStatus     = "PERMISSION_STATUS"
	EventSigninResult         = "SIGNIN_RESULT"
	EventSignoutResult        = "SIGNOUT_RESULT"
	EventSubscriptionResult   = "SUBSCRIPTION_RESULT"
	EventPurchaseResult       = "PURCHASE_RESULT"
	EventSubscriptionRestored = "SUBSCRIPTION_RESTORED"
	EventShareResult          = "SHARE_RESULT"
	EventToast                = "TOAST"
	EventDownloadResult       = "DOWNLOAD_RESULT"
	EventPushToken            = "PUSH_TOKEN"
	EventPushEvent            = "PUSH_EVENT"
	EventInstallationID       = "INSTALLATION_ID"
	EventNavStateAck          = "NAV_STATE_ACK"
	EventBackRequest          = "BACK_REQUEST"
)
