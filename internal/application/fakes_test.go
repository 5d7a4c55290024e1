package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront-connect-layer/internal/domain"
)

// In-memory repository doubles for service tests. They mirror the Mongo
// implementations' contract: misses return (nil, nil) on reads and
// ErrCredentialNotFound on writes, and every read hands out a copy so a
// caller mutating the result cannot corrupt stored state.

type fakeStateRepo struct {
	mu     sync.Mutex
	states map[string]*domain.OAuthState
	err    error
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*domain.OAuthState)}
}

func (r *fakeStateRepo) Create(_ context.Context, state *domain.OAuthState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	copied := *state
	r.states[state.Token] = &copied
	return nil
}

func (r *fakeStateRepo) Consume(_ context.Context, token string, now time.Time) (*domain.OAuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	state, ok := r.states[token]
	if !ok || state.Consumed || !state.ExpiresAt.After(now) {
		return nil, nil
	}
	state.Consumed = true
	consumedAt := now
	state.ConsumedAt = &consumedAt
	copied := *state
	return &copied, nil
}

type fakeStoreRepo struct {
	mu    sync.Mutex
	creds map[string]*domain.StoreCredential
	err   error

	// onList runs after ListByUser snapshots its result, letting a test
	// interleave a competing write between a read and the write that
	// depends on it.
	onList func()
}

func newFakeStoreRepo() *fakeStoreRepo {
	return &fakeStoreRepo{creds: make(map[string]*domain.StoreCredential)}
}

func storeKey(userID, storeID string) string {
	return userID + "|" + storeID
}

func cloneStoreCredential(cred *domain.StoreCredential) *domain.StoreCredential {
	copied := *cred
	if cred.Permissions != nil {
		copied.Permissions = make(map[string]bool, len(cred.Permissions))
		for name, allowed := range cred.Permissions {
			copied.Permissions[name] = allowed
		}
	}
	if cred.AgentOverrides != nil {
		copied.AgentOverrides = make(map[string]map[string]bool, len(cred.AgentOverrides))
		for agentID, byName := range cred.AgentOverrides {
			inner := make(map[string]bool, len(byName))
			for name, allowed := range byName {
				inner[name] = allowed
			}
			copied.AgentOverrides[agentID] = inner
		}
	}
	return &copied
}

func (r *fakeStoreRepo) GetByUserAndStore(_ context.Context, userID, storeID string) (*domain.StoreCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	cred, ok := r.creds[storeKey(userID, storeID)]
	if !ok {
		return nil, nil
	}
	return cloneStoreCredential(cred), nil
}

func (r *fakeStoreRepo) ListByUser(_ context.Context, userID string) ([]*domain.StoreCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []*domain.StoreCredential
	for _, cred := range r.creds {
		if cred.UserID == userID {
			out = append(out, cloneStoreCredential(cred))
		}
	}
	if r.onList != nil {
		r.onList()
	}
	return out, nil
}

func (r *fakeStoreRepo) Upsert(_ context.Context, cred *domain.StoreCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	// Mirror the Mongo repository's partial unique index on the primary
	// slot: a claim that loses the race is demoted, not duplicated.
	if cred.IsPrimary {
		key := storeKey(cred.UserID, cred.ShopDomain)
		for other, existing := range r.creds {
			if existing.UserID == cred.UserID && existing.IsPrimary && other != key {
				cred.IsPrimary = false
				break
			}
		}
	}
	r.creds[storeKey(cred.UserID, cred.ShopDomain)] = cloneStoreCredential(cred)
	return nil
}

func (r *fakeStoreRepo) SetPrimary(_ context.Context, userID, storeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	target, ok := r.creds[storeKey(userID, storeID)]
	if !ok {
		return fmt.Errorf("%w: store %s", domain.ErrCredentialNotFound, storeID)
	}
	for _, cred := range r.creds {
		if cred.UserID == userID {
			cred.IsPrimary = false
		}
	}
	target.IsPrimary = true
	return nil
}

func (r *fakeStoreRepo) UpdateStatus(_ context.Context, userID, storeID string, status domain.ConnectionStatus, isActive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cred, ok := r.creds[storeKey(userID, storeID)]
	if !ok {
		return fmt.Errorf("%w: store %s", domain.ErrCredentialNotFound, storeID)
	}
	cred.Status = status
	cred.IsActive = isActive
	return nil
}

func (r *fakeStoreRepo) DisconnectByShop(_ context.Context, shopDomain string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	var count int64
	for _, cred := range r.creds {
		if cred.ShopDomain == shopDomain {
			cred.Status = domain.StatusDisconnected
			cred.IsActive = false
			count++
		}
	}
	return count, nil
}

func (r *fakeStoreRepo) UpdatePermissions(_ context.Context, userID, storeID string, permissions map[string]bool, overrides map[string]map[string]bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cred, ok := r.creds[storeKey(userID, storeID)]
	if !ok {
		return fmt.Errorf("%w: store %s", domain.ErrCredentialNotFound, storeID)
	}
	cred.Permissions = permissions
	cred.AgentOverrides = overrides
	return nil
}

func (r *fakeStoreRepo) Delete(_ context.Context, userID, storeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	key := storeKey(userID, storeID)
	if _, ok := r.creds[key]; !ok {
		return fmt.Errorf("%w: store %s", domain.ErrCredentialNotFound, storeID)
	}
	delete(r.creds, key)
	return nil
}

type fakeLegacyRepo struct {
	mu     sync.Mutex
	creds  []*domain.LegacyCredential
	nextID int
	err    error
}

func newFakeLegacyRepo() *fakeLegacyRepo {
	return &fakeLegacyRepo{}
}

func (r *fakeLegacyRepo) GetConnectedByUserAndService(_ context.Context, userID, service string) (*domain.LegacyCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, cred := range r.creds {
		if cred.UserID == userID && cred.Service == service && cred.Status == domain.StatusConnected {
			copied := *cred
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeLegacyRepo) ListByUserAndService(_ context.Context, userID, service string) ([]*domain.LegacyCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []*domain.LegacyCredential
	for _, cred := range r.creds {
		if cred.UserID == userID && cred.Service == service {
			copied := *cred
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeLegacyRepo) Create(_ context.Context, cred *domain.LegacyCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.nextID++
	copied := *cred
	copied.ID = fmt.Sprintf("legacy-%d", r.nextID)
	r.creds = append(r.creds, &copied)
	return nil
}

func (r *fakeLegacyRepo) UpdateShopDomain(_ context.Context, id, shopDomain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, cred := range r.creds {
		if cred.ID == id {
			cred.ShopDomain = shopDomain
			return nil
		}
	}
	return fmt.Errorf("%w: legacy row %s", domain.ErrCredentialNotFound, id)
}

func (r *fakeLegacyRepo) DeleteByUserAndStore(_ context.Context, userID, service, shopDomain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	kept := r.creds[:0]
	for _, cred := range r.creds {
		if cred.UserID == userID && cred.Service == service && cred.ShopDomain == shopDomain {
			continue
		}
		kept = append(kept, cred)
	}
	r.creds = kept
	return nil
}

// auditRecorder captures sink calls for assertions.
type auditRecorder struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *auditRecorder) Record(_ context.Context, event domain.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *auditRecorder) kinds() []domain.AuditKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditKind, 0, len(a.events))
	for _, event := range a.events {
		out = append(out, event.Kind)
	}
	return out
}

func (a *auditRecorder) lastOfKind(kind domain.AuditKind) *domain.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.events) - 1; i >= 0; i-- {
		if a.events[i].Kind == kind {
			event := a.events[i]
			return &event
		}
	}
	return nil
}

// fakeVault marks ciphertext with a prefix and, like the real vault,
// passes unprefixed values through as legacy plaintext.
type fakeVault struct{}

func (fakeVault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext cannot be empty")
	}
	return "enc:" + plaintext, nil
}

func (fakeVault) Decrypt(stored string) (string, error) {
	if stored == "" {
		return "", fmt.Errorf("stored value cannot be empty")
	}
	if strings.HasPrefix(stored, "enc:") {
		return strings.TrimPrefix(stored, "enc:"), nil
	}
	return stored, nil
}

// fakePlatform is a scripted token-exchange endpoint.
type fakePlatform struct {
	token string
	scope string
	err   error

	exchangedShop string
	exchangedCode string
}

func (p *fakePlatform) ExchangeAuthorizationCode(_ context.Context, shopDomain, code string) (string, string, error) {
	p.exchangedShop = shopDomain
	p.exchangedCode = code
	if p.err != nil {
		return "", "", p.err
	}
	return p.token, p.scope, nil
}

func (p *fakePlatform) AuthorizationURL(shopDomain string, scopes []string, redirectURI, state string) string {
	return fmt.Sprintf("https://%s/authorize?scope=%s&state=%s", shopDomain, strings.Join(scopes, ","), state)
}
