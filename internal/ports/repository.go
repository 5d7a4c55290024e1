package ports

import (
	"context"
	"time"

	"storefront-connect-layer/internal/domain"
)

// StateRepository persists in-flight authorization attempts.
type StateRepository interface {
	Create(ctx context.Context, state *domain.OAuthState) error

	// Consume atomically marks the state consumed and returns it. The
	// update succeeds only if the token exists, has not been consumed,
	// and has not expired as of now; otherwise (nil, nil) so a replayed
	// callback can never reuse a token a legitimate first callback
	// already spent.
	Consume(ctx context.Context, token string, now time.Time) (*domain.OAuthState, error)
}

// StoreCredentialRepository is the newer per-store table, keyed by
// (user, provider, shop).
type StoreCredentialRepository interface {
	GetByUserAndStore(ctx context.Context, userID, storeID string) (*domain.StoreCredential, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.StoreCredential, error)

	// Upsert writes or overwrites the row identified by the composite
	// key (user, provider, shop). Idempotent.
	Upsert(ctx context.Context, cred *domain.StoreCredential) error

	// SetPrimary clears the primary flag on every other store owned by
	// the user and sets it on the target as one transaction. Fails if
	// the store does not belong to the user.
	SetPrimary(ctx context.Context, userID, storeID string) error

	UpdateStatus(ctx context.Context, userID, storeID string, status domain.ConnectionStatus, isActive bool) error

	// DisconnectByShop soft-removes every credential for a shop across
	// owners. Driven by the provider's uninstall webhook, which carries
	// no user identity.
	DisconnectByShop(ctx context.Context, shopDomain string) (int64, error)

	UpdatePermissions(ctx context.Context, userID, storeID string, permissions map[string]bool, overrides map[string]map[string]bool) error
	Delete(ctx context.Context, userID, storeID string) error
}

// LegacyCredentialRepository is the older per-integration table, keyed
// by (user, service, shop).
type LegacyCredentialRepository interface {
	GetConnectedByUserAndService(ctx context.Context, userID, service string) (*domain.LegacyCredential, error)
	ListByUserAndService(ctx context.Context, userID, service string) ([]*domain.LegacyCredential, error)
	Create(ctx context.Context, cred *domain.LegacyCredential) error
	UpdateShopDomain(ctx context.Context, id, shopDomain string) error
	DeleteByUserAndStore(ctx context.Context, userID, service, shopDomain string) error
}

// AuditRepository is the append-only compliance log store.
type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuditEvent) error
}
