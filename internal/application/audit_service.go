package application

import (
	"context"
	"time"

	"storefront-connect-layer/internal/domain"
	"storefront-connect-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditService records permission decisions and OAuth lifecycle events
// into the append-only log store, mirroring each into the structured
// log. A failed insert never propagates: the guarded operation's
// outcome stands either way.
type AuditService struct {
	auditRepo ports.AuditRepository
	logger    zerolog.Logger
}

// NewAuditService creates a new audit service.
func NewAuditService(auditRepo ports.AuditRepository, logger zerolog.Logger) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Record appends one audit event.
func (s *AuditService) Record(ctx context.Context, event domain.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	entry := s.logger.Info().
		Str("kind", string(event.Kind)).
		Str("userId", event.UserID).
		Str("shop", event.ShopDomain).
		Str("reason", event.Reason)
	if event.Allowed != nil {
		entry = entry.Bool("allowed", *event.Allowed)
	}
	entry.Msg("Audit event")

	if err := s.auditRepo.Insert(ctx, &event); err != nil {
		s.logger.Error().Err(err).Str("kind", string(event.Kind)).Msg("Failed to persist audit event")
	}
}
