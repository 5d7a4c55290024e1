package application

import (
	"context"
	"testing"
	"time"

	"storefront-connect-layer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateService(repo *fakeStateRepo, audit *auditRecorder) *StateService {
	return NewStateService(repo, audit, zerolog.Nop())
}

func TestIssueStatePersistsAttempt(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newTestStateService(repo, &auditRecorder{})

	token, err := svc.IssueState(context.Background(), "acme.example-platform.com", "user-1")
	require.NoError(t, err)
	require.Len(t, token, 64) // 32 random bytes, hex encoded

	stored := repo.states[token]
	require.NotNil(t, stored)
	assert.Equal(t, "acme.example-platform.com", stored.ShopDomain)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, domain.StateTTL, stored.ExpiresAt.Sub(stored.CreatedAt))
	assert.False(t, stored.Consumed)
}

func TestIssueStateTokensAreUnique(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newTestStateService(repo, &auditRecorder{})

	first, err := svc.IssueState(context.Background(), "acme.example-platform.com", "user-1")
	require.NoError(t, err)
	second, err := svc.IssueState(context.Background(), "acme.example-platform.com", "user-1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestValidateAndConsumeHappyPath(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newTestStateService(repo, &auditRecorder{})

	token, err := svc.IssueState(context.Background(), "acme.example-platform.com", "user-1")
	require.NoError(t, err)

	err = svc.ValidateAndConsume(context.Background(), token, token, "acme.example-platform.com")
	require.NoError(t, err)
	assert.True(t, repo.states[token].Consumed)
}

func TestValidateAndConsumeIsSingleUse(t *testing.T) {
	repo := newFakeStateRepo()
	audit := &auditRecorder{}
	svc := newTestStateService(repo, audit)

	token, err := svc.IssueState(context.Background(), "acme.example-platform.com", "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.ValidateAndConsume(context.Background(), token, token, "acme.example-platform.com"))

	// Replay of the same callback.
	err = svc.ValidateAndConsume(context.Background(), token, token, "acme.example-platform.com")
	require.ErrorIs(t, err, domain.ErrForgeryRejected)
	assert.NotNil(t, audit.lastOfKind(domain.AuditStateRejected))
}

func TestValidateAndConsumeExpiredToken(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newTestStateService(repo, &auditRecorder{})

	token, err := svc.IssueState(context.Background(), "acme.example-platform.com", "user-1")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(domain.StateTTL + time.Minute) }

	err = svc.ValidateAndConsume(context.Background(), token, token, "acme.example-platform.com")
	assert.ErrorIs(t, err, domain.ErrForgeryRejected)
}

func TestValidateAndConsumeUnknownToken(t *testing.T) {
	svc := newTestStateService(newFakeStateRepo(), &auditRecorder{})

	err := svc.ValidateAndConsume(context.Background(), "forged-token", "forged-token", "acme.example-platform.com")
	assert.ErrorIs(t, err, domain.ErrForgeryRejected)
}

func TestValidateAndConsumeCookieMismatch(t *testing.T) {
	repo := newFakeStateRepo()
	svc := newTestStateService(repo, &auditRecorder{})

	token, err := svc.IssueState(context.Background(), "acme.example-platform.com", "user-1")
	require.NoError(t, err)

	err = svc.ValidateAndConsume(context.Background(), token, "different-cookie-token", "acme.example-platform.com")
	require.ErrorIs(t, err, domain.ErrForgeryRejected)
	// The stored record must survive a failed local comparison.
	assert.False(t, repo.states[token].Consumed)
}

func TestValidateAndConsumeMissingTokens(t *testing.T) {
	svc := newTestStateService(newFakeStateRepo(), &auditRecorder{})

	assert.ErrorIs(t, svc.ValidateAndConsume(context.Background(), "", "cookie", "acme.example-platform.com"), domain.ErrForgeryRejected)
	assert.ErrorIs(t, svc.ValidateAndConsume(context.Background(), "token", "", "acme.example-platform.com"), domain.ErrForgeryRejected)
}

func TestValidateAndConsumeShopMismatch(t *testing.T) {
	repo := newFakeStateRepo()
	audit := &auditRecorder{}
	svc := newTestStateService(repo, audit)

	token, err := svc.IssueState(context.Background(), "acme.example-platform.com", "user-1")
	require.NoError(t, err)

	err = svc.ValidateAndConsume(context.Background(), token, token, "other.example-platform.com")
	require.ErrorIs(t, err, domain.ErrShopMismatch)

	// The token is spent even on mismatch so it cannot be retried
	// against the pinned shop.
	assert.True(t, repo.states[token].Consumed)
	assert.NotNil(t, audit.lastOfKind(domain.AuditStateRejected))
}
