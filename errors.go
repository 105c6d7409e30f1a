package helmsman

import "github.com/arloliu/helmsman/types"

// Sentinel errors returned by the Controller.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrStoreRequired is returned when the coordination store is nil.
	ErrStoreRequired = types.ErrStoreRequired

	// ErrAlreadyStarted is returned when Start is called on an already running controller.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when an operation requires a started controller.
	ErrNotStarted = types.ErrNotStarted

	// ErrSessionExpired is returned when a pass is aborted by session expiry.
	ErrSessionExpired = types.ErrSessionExpired
)

// Sentinel errors shared with the store, accessor and model packages.
var (
	ErrAlreadyExists            = types.ErrAlreadyExists
	ErrNotFound                 = types.ErrNotFound
	ErrConnectivity             = types.ErrConnectivity
	ErrStateModelNotFound       = types.ErrStateModelNotFound
	ErrUnsupportedRebalanceMode = types.ErrUnsupportedRebalanceMode
)
