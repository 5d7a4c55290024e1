package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-connect-layer/internal/domain"
	"storefront-connect-layer/internal/ports"

	"github.com/rs/zerolog"
)

// ResolverService is the single place that encodes precedence between
// the two overlapping credential storage locations: the newer per-store
// table and the legacy per-integration table. Both are valid sources;
// conflicting tokens are never silently merged.
type ResolverService struct {
	storeRepo  ports.StoreCredentialRepository
	legacyRepo ports.LegacyCredentialRepository
	vault      ports.EncryptionService
	audit      ports.AuditSink
	logger     zerolog.Logger
}

// NewResolverService creates a new multi-store credential resolver.
func NewResolverService(
	storeRepo ports.StoreCredentialRepository,
	legacyRepo ports.LegacyCredentialRepository,
	vault ports.EncryptionService,
	audit ports.AuditSink,
	logger zerolog.Logger,
) *ResolverService {
	return &ResolverService{
		storeRepo:  storeRepo,
		legacyRepo: legacyRepo,
		vault:      vault,
		audit:      audit,
		logger:     logger,
	}
}

// ResolveForUser deterministically picks the stored credential to use.
// Order: the per-store table by (user, storeId) when a hint is given,
// then the legacy table's connected row for (user, provider), then
// ErrCredentialNotFound. A hint pins the shop: a legacy row for a
// different shop never substitutes for the one asked about. The
// returned credential carries the decrypted token and the source it
// came from.
func (s *ResolverService) ResolveForUser(ctx context.Context, userID, storeIDHint string) (*domain.StoreCredential, error) {
	storeID := ""
	if storeIDHint != "" {
		var err error
		storeID, err = domain.NormalizeShopDomain(storeIDHint)
		if err != nil {
			return nil, fmt.Errorf("invalid store id: %w", err)
		}

		cred, err := s.storeRepo.GetByUserAndStore(ctx, userID, storeID)
		if err != nil {
			return nil, err
		}
		if cred.HasUsableToken() {
			token, err := s.vault.Decrypt(cred.AccessToken)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt store credential: %w", err)
			}
			cred.AccessToken = token
			return cred, nil
		}
	}

	legacy, err := s.legacyRepo.GetConnectedByUserAndService(ctx, userID, domain.ProviderName)
	if err != nil {
		return nil, err
	}
	if legacy == nil || legacy.AccessToken == "" {
		return nil, fmt.Errorf("%w: user %s", domain.ErrCredentialNotFound, userID)
	}
	if storeID != "" && legacy.ShopDomain != storeID {
		return nil, fmt.Errorf("%w: store %s", domain.ErrCredentialNotFound, storeID)
	}

	token, err := s.vault.Decrypt(legacy.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt legacy credential: %w", err)
	}

	// Legacy rows predate permission maps; mapping them through a
	// default-deny empty map keeps the validator's semantics intact.
	return &domain.StoreCredential{
		ID:          legacy.ID,
		UserID:      legacy.UserID,
		ShopDomain:  legacy.ShopDomain,
		Provider:    legacy.Service,
		AccessToken: token,
		Scope:       legacy.Scope,
		Status:      legacy.Status,
		IsActive:    legacy.Status == domain.StatusConnected,
		Source:      domain.SourceLegacy,
		CreatedAt:   legacy.CreatedAt,
		UpdatedAt:   legacy.UpdatedAt,
	}, nil
}

// UpsertCredential normalizes the shop identifier, encrypts the token,
// and writes the row keyed by (user, provider, shop). Idempotent: the
// same inputs twice yield one logical record. On first connection the
// permission map is seeded from the granted scope and the store becomes
// primary if it is the user's only one; a re-authorization refreshes
// token, scope, and status but keeps edited permissions.
func (s *ResolverService) UpsertCredential(ctx context.Context, userID, shopIdentifier, accessToken, scope string) (*domain.StoreCredential, error) {
	shopDomain, err := domain.NormalizeShopDomain(shopIdentifier)
	if err != nil {
		return nil, fmt.Errorf("invalid shop identifier: %w", err)
	}

	encrypted, err := s.vault.Encrypt(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	existing, err := s.storeRepo.GetByUserAndStore(ctx, userID, shopDomain)
	if err != nil {
		return nil, err
	}

	cred := &domain.StoreCredential{
		UserID:      userID,
		ShopDomain:  shopDomain,
		Provider:    domain.ProviderName,
		AccessToken: encrypted,
		Scope:       scope,
		Status:      domain.StatusConnected,
		IsActive:    true,
		Source:      domain.SourceStore,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if existing != nil {
		cred.ID = existing.ID
		cred.IsPrimary = existing.IsPrimary
		cred.Permissions = existing.Permissions
		cred.AgentOverrides = existing.AgentOverrides
		cred.CreatedAt = existing.CreatedAt
	} else {
		cred.Permissions = permissionsFromScope(scope)
		others, err := s.storeRepo.ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		cred.IsPrimary = len(others) == 0
	}

	if err := s.storeRepo.Upsert(ctx, cred); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("userId", userID).
		Str("shop", shopDomain).
		Bool("isPrimary", cred.IsPrimary).
		Msg("Store credential saved")

	return cred, nil
}

// SetPrimary reassigns the user's primary store. The clear-then-set is
// one transaction at the repository, so no intermediate zero-or-two
// primary state is ever observable.
func (s *ResolverService) SetPrimary(ctx context.Context, userID, storeID string) error {
	shopDomain, err := domain.NormalizeShopDomain(storeID)
	if err != nil {
		return fmt.Errorf("invalid store id: %w", err)
	}

	if err := s.storeRepo.SetPrimary(ctx, userID, shopDomain); err != nil {
		return err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Kind:       domain.AuditPrimaryChanged,
		UserID:     userID,
		ShopDomain: shopDomain,
	})

	return nil
}

// Disconnect soft-removes a store: status goes to disconnected and the
// activation flag drops, but the row survives for audit history.
func (s *ResolverService) Disconnect(ctx context.Context, userID, storeID string) error {
	shopDomain, err := domain.NormalizeShopDomain(storeID)
	if err != nil {
		return fmt.Errorf("invalid store id: %w", err)
	}

	if err := s.storeRepo.UpdateStatus(ctx, userID, shopDomain, domain.StatusDisconnected, false); err != nil {
		return err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Kind:       domain.AuditStoreDisconnected,
		UserID:     userID,
		ShopDomain: shopDomain,
	})

	return nil
}

// Remove hard-deletes a store's rows from both tables. Only for
// explicit user-initiated removal.
func (s *ResolverService) Remove(ctx context.Context, userID, storeID string) error {
	shopDomain, err := domain.NormalizeShopDomain(storeID)
	if err != nil {
		return fmt.Errorf("invalid store id: %w", err)
	}

	if err := s.storeRepo.Delete(ctx, userID, shopDomain); err != nil {
		return err
	}
	if err := s.legacyRepo.DeleteByUserAndStore(ctx, userID, domain.ProviderName, shopDomain); err != nil {
		s.logger.Warn().Err(err).Str("shop", shopDomain).Msg("Failed to delete legacy row during removal")
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Kind:       domain.AuditStoreRemoved,
		UserID:     userID,
		ShopDomain: shopDomain,
	})

	return nil
}

// ListStores returns the user's stores with tokens blanked.
func (s *ResolverService) ListStores(ctx context.Context, userID string) ([]*domain.StoreCredential, error) {
	creds, err := s.storeRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, cred := range creds {
		cred.AccessToken = ""
	}
	return creds, nil
}

// UpdatePermissions replaces a store's permission map and agent
// overrides after validating every name.
func (s *ResolverService) UpdatePermissions(ctx context.Context, userID, storeID string, permissions map[string]bool, overrides map[string]map[string]bool) error {
	shopDomain, err := domain.NormalizeShopDomain(storeID)
	if err != nil {
		return fmt.Errorf("invalid store id: %w", err)
	}

	for name := range permissions {
		if !domain.ValidPermissionName(name) {
			return fmt.Errorf("%w: %q", domain.ErrInvalidPermission, name)
		}
	}
	for agentID, byName := range overrides {
		if agentID == "" {
			return fmt.Errorf("agent id cannot be empty")
		}
		for name := range byName {
			if !domain.ValidPermissionName(name) {
				return fmt.Errorf("%w: %q", domain.ErrInvalidPermission, name)
			}
		}
	}

	return s.storeRepo.UpdatePermissions(ctx, userID, shopDomain, permissions, overrides)
}

// ReconcileDivergentDomain repairs drift between the two tables for one
// user. When the legacy row's shop identifier differs from the
// per-store row's for what is otherwise the same logical connection
// (same token, or sole candidate on each side), the legacy identifier
// is updated to the per-store domain; a store with no legacy
// counterpart gets one created by copying the stored token. Explicitly
// invoked, never run on reads.
func (s *ResolverService) ReconcileDivergentDomain(ctx context.Context, userID string) ([]domain.ReconcileEntry, error) {
	stores, err := s.storeRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	legacies, err := s.legacyRepo.ListByUserAndService(ctx, userID, domain.ProviderName)
	if err != nil {
		return nil, err
	}

	claimed := make(map[string]bool, len(legacies))
	report := make([]domain.ReconcileEntry, 0, len(stores))

	for _, store := range stores {
		entry := domain.ReconcileEntry{ShopDomain: store.ShopDomain}

		if legacy := matchByDomain(legacies, claimed, store.ShopDomain); legacy != nil {
			claimed[legacy.ID] = true
			entry.Action = domain.ReconcileSkipped
			entry.Detail = "legacy row already aligned"
			report = append(report, entry)
			continue
		}

		if legacy := s.matchDivergent(stores, legacies, claimed, store); legacy != nil {
			if err := s.legacyRepo.UpdateShopDomain(ctx, legacy.ID, store.ShopDomain); err != nil {
				return nil, err
			}
			claimed[legacy.ID] = true
			entry.Action = domain.ReconcileUpdated
			entry.Detail = fmt.Sprintf("legacy domain %s repointed", legacy.ShopDomain)
			report = append(report, entry)
			continue
		}

		if err := s.legacyRepo.Create(ctx, &domain.LegacyCredential{
			UserID:      userID,
			Service:     domain.ProviderName,
			ShopDomain:  store.ShopDomain,
			AccessToken: store.AccessToken,
			Scope:       store.Scope,
			Status:      store.Status,
		}); err != nil {
			return nil, err
		}
		entry.Action = domain.ReconcileCreated
		entry.Detail = "legacy counterpart created from stored token"
		report = append(report, entry)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Kind:   domain.AuditReconcileRun,
		UserID: userID,
		Reason: summarizeReconcile(report),
	})

	return report, nil
}

// matchDivergent finds the legacy row that represents the same logical
// connection as the store despite a different shop domain: either the
// decrypted tokens match, or each side has exactly one candidate left.
func (s *ResolverService) matchDivergent(
	stores []*domain.StoreCredential,
	legacies []*domain.LegacyCredential,
	claimed map[string]bool,
	store *domain.StoreCredential,
) *domain.LegacyCredential {
	storeToken, err := s.vault.Decrypt(store.AccessToken)
	if err != nil {
		storeToken = ""
	}

	var unclaimed []*domain.LegacyCredential
	for _, legacy := range legacies {
		if claimed[legacy.ID] {
			continue
		}
		unclaimed = append(unclaimed, legacy)

		if storeToken == "" || legacy.AccessToken == "" {
			continue
		}
		legacyToken, err := s.vault.Decrypt(legacy.AccessToken)
		if err != nil {
			continue
		}
		if legacyToken == storeToken {
			return legacy
		}
	}

	if len(stores) == 1 && len(unclaimed) == 1 {
		return unclaimed[0]
	}

	return nil
}

func matchByDomain(legacies []*domain.LegacyCredential, claimed map[string]bool, shopDomain string) *domain.LegacyCredential {
	for _, legacy := range legacies {
		if !claimed[legacy.ID] && legacy.ShopDomain == shopDomain {
			return legacy
		}
	}
	return nil
}

func summarizeReconcile(report []domain.ReconcileEntry) string {
	parts := make([]string, 0, len(report))
	for _, entry := range report {
		parts = append(parts, entry.ShopDomain+":"+string(entry.Action))
	}
	return strings.Join(parts, ", ")
}

// permissionsFromScope seeds a permission map from the granted scope
// string; each comma-separated grant becomes an allowed capability.
func permissionsFromScope(scope string) map[string]bool {
	permissions := make(map[string]bool)
	for _, grant := range strings.Split(scope, ",") {
		grant = strings.TrimSpace(grant)
		if grant != "" && domain.ValidPermissionName(grant) {
			permissions[grant] = true
		}
	}
	return permissions
}
