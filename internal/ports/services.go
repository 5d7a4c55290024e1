package ports

import (
	"context"

	"storefront-connect-layer/internal/domain"
)

// EncryptionService encrypts credentials at rest. Decrypt is tolerant
// of legacy plaintext rows written before encryption was introduced.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// PlatformClient talks to the external authorization server.
type PlatformClient interface {
	// ExchangeAuthorizationCode performs the server-to-server token
	// exchange. Any non-success status or malformed body fails with
	// domain.ErrProviderExchangeFailed; nothing is persisted on failure.
	ExchangeAuthorizationCode(ctx context.Context, shopDomain, code string) (accessToken, grantedScope string, err error)
}

// AuditSink records permission decisions and OAuth lifecycle events.
// Implementations must never fail the guarded operation; a sink error
// is logged and swallowed.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent)
}

// ReplayGuard deduplicates webhook deliveries.
type ReplayGuard interface {
	// FirstDelivery reports whether this delivery id has not been seen
	// before, claiming it as seen when so.
	FirstDelivery(ctx context.Context, deliveryID string) (bool, error)
}
