package application

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"storefront-connect-layer/internal/domain"
	"storefront-connect-layer/internal/ports"

	"github.com/rs/zerolog"
)

// StateService issues and validates the single-use anti-forgery tokens
// that bind an authorization attempt to one shop.
type StateService struct {
	stateRepo ports.StateRepository
	audit     ports.AuditSink
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStateService creates a new state token manager.
func NewStateService(stateRepo ports.StateRepository, audit ports.AuditSink, logger zerolog.Logger) *StateService {
	return &StateService{
		stateRepo: stateRepo,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// IssueState generates a random token and persists the attempt with a
// fixed TTL. The token goes both into the outbound redirect and into a
// short-lived cookie; the callback must present both.
func (s *StateService) IssueState(ctx context.Context, shopDomain, userID string) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	now := s.now()
	state := &domain.OAuthState{
		Token:      token,
		UserID:     userID,
		ShopDomain: shopDomain,
		CreatedAt:  now,
		ExpiresAt:  now.Add(domain.StateTTL),
	}
	if err := s.stateRepo.Create(ctx, state); err != nil {
		return "", fmt.Errorf("failed to persist state: %w", err)
	}

	return token, nil
}

// ValidateAndConsume checks the callback state against the cookie copy
// and the stored record, consuming the record on success. Missing,
// mismatched, expired, and already-consumed tokens all surface as the
// same ErrForgeryRejected so a caller cannot tell which check failed;
// only the shop pin mismatch is distinguishable because the redirect
// carries its own reason code. The consume step is atomic, so a
// replayed callback cannot reuse a token the first callback spent.
func (s *StateService) ValidateAndConsume(ctx context.Context, token, cookieToken, shopDomain string) error {
	if token == "" || cookieToken == "" {
		s.reject(ctx, shopDomain, "state token missing from callback or cookie")
		return domain.ErrForgeryRejected
	}
	if !hmac.Equal([]byte(token), []byte(cookieToken)) {
		s.reject(ctx, shopDomain, "callback state does not match cookie state")
		return domain.ErrForgeryRejected
	}

	state, err := s.stateRepo.Consume(ctx, token, s.now())
	if err != nil {
		return fmt.Errorf("failed to consume state: %w", err)
	}
	if state == nil {
		s.reject(ctx, shopDomain, "state token unknown, expired, or already consumed")
		return domain.ErrForgeryRejected
	}

	if state.ShopDomain != "" && state.ShopDomain != shopDomain {
		s.reject(ctx, shopDomain, "callback shop does not match shop pinned at issuance")
		return domain.ErrShopMismatch
	}

	return nil
}

func (s *StateService) reject(ctx context.Context, shopDomain, reason string) {
	s.logger.Warn().Str("shop", shopDomain).Str("reason", reason).Msg("State validation rejected")
	s.audit.Record(ctx, domain.AuditEvent{
		Kind:       domain.AuditStateRejected,
		ShopDomain: shopDomain,
		Reason:     reason,
	})
}
