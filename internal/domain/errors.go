package domain

import "errors"

// Error taxonomy for the connect layer. Handlers map these onto HTTP
// redirects/status codes; services wrap them with context via %w.
var (
	// ErrAuthenticationRequired indicates an operation that needs a
	// logged-in user was called without one.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrForgeryRejected indicates a state token or signature check
	// failed. Never retried, never softened to a success.
	ErrForgeryRejected = errors.New("forgery rejected")

	// ErrShopMismatch indicates the callback shop differs from the shop
	// pinned at state issuance. A forgery subclass with its own redirect
	// reason code.
	ErrShopMismatch = errors.New("shop mismatch")

	// ErrProviderExchangeFailed indicates the authorization-code
	// exchange returned a non-success response or a malformed body.
	ErrProviderExchangeFailed = errors.New("provider exchange failed")

	// ErrCredentialNotFound indicates no usable token exists for the
	// requested store in either storage location.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrStoreInactive indicates the store exists but its activation
	// flag is off.
	ErrStoreInactive = errors.New("store is inactive")

	// ErrPermissionDenied is the default-deny fallthrough.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidPermission indicates a malformed or missing permission
	// name; a caller error rejected before evaluation.
	ErrInvalidPermission = errors.New("invalid permission name")

	// ErrStorageFailure wraps transient persistence errors. The only
	// retryable category; callers may retry after backoff but must not
	// reuse an authorization code.
	ErrStorageFailure = errors.New("storage failure")
)
