package application

import (
	"context"
	"fmt"

	"storefront-connect-layer/internal/domain"
	"storefront-connect-layer/internal/infrastructure/metrics"
	"storefront-connect-layer/internal/ports"

	"github.com/rs/zerolog"
)

// AuthURLBuilder builds the provider's authorization redirect target.
type AuthURLBuilder interface {
	AuthorizationURL(shopDomain string, scopes []string, redirectURI, state string) string
}

// OAuthService orchestrates the installation flow: state issuance on
// the way out, code exchange and credential persistence on the way
// back. Signature and state validation stay with their own components;
// this service only runs after both have passed.
type OAuthService struct {
	stateSvc    *StateService
	resolver    *ResolverService
	platform    ports.PlatformClient
	urlBuilder  AuthURLBuilder
	audit       ports.AuditSink
	logger      zerolog.Logger
	scopes      []string
	redirectURI string
}

// NewOAuthService creates a new OAuth installation service.
func NewOAuthService(
	stateSvc *StateService,
	resolver *ResolverService,
	platform ports.PlatformClient,
	urlBuilder AuthURLBuilder,
	audit ports.AuditSink,
	logger zerolog.Logger,
	scopes []string,
	redirectURI string,
) *OAuthService {
	return &OAuthService{
		stateSvc:    stateSvc,
		resolver:    resolver,
		platform:    platform,
		urlBuilder:  urlBuilder,
		audit:       audit,
		logger:      logger,
		scopes:      scopes,
		redirectURI: redirectURI,
	}
}

// BeginInstall normalizes the shop, issues a state token, and returns
// the authorization URL plus the token for the caller's cookie. userID
// may be empty: installation can begin before login.
func (s *OAuthService) BeginInstall(ctx context.Context, userID, shopIdentifier string) (authURL, state string, err error) {
	shopDomain, err := domain.NormalizeShopDomain(shopIdentifier)
	if err != nil {
		return "", "", fmt.Errorf("invalid shop identifier: %w", err)
	}

	state, err = s.stateSvc.IssueState(ctx, shopDomain, userID)
	if err != nil {
		return "", "", err
	}

	metrics.InstallsStarted.Inc()
	s.audit.Record(ctx, domain.AuditEvent{
		Kind:       domain.AuditInstallStarted,
		UserID:     userID,
		ShopDomain: shopDomain,
	})

	return s.urlBuilder.AuthorizationURL(shopDomain, s.scopes, s.redirectURI, state), state, nil
}

// CompleteInstall exchanges the authorization code and persists the
// credential. Nothing is written when the exchange fails, and the
// single-use code is never retried.
func (s *OAuthService) CompleteInstall(ctx context.Context, userID, shopIdentifier, code string) (*domain.StoreCredential, error) {
	shopDomain, err := domain.NormalizeShopDomain(shopIdentifier)
	if err != nil {
		return nil, fmt.Errorf("invalid shop identifier: %w", err)
	}

	accessToken, grantedScope, err := s.platform.ExchangeAuthorizationCode(ctx, shopDomain, code)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Token exchange failed")
		s.audit.Record(ctx, domain.AuditEvent{
			Kind:       domain.AuditExchangeFailed,
			UserID:     userID,
			ShopDomain: shopDomain,
			Reason:     err.Error(),
		})
		return nil, err
	}

	cred, err := s.resolver.UpsertCredential(ctx, userID, shopDomain, accessToken, grantedScope)
	if err != nil {
		return nil, err
	}

	metrics.InstallsCompleted.Inc()
	s.audit.Record(ctx, domain.AuditEvent{
		Kind:       domain.AuditInstallCompleted,
		UserID:     userID,
		ShopDomain: shopDomain,
		Metadata:   map[string]string{"scope": grantedScope},
	})

	return cred, nil
}
