package repository

import (
	"context"
	"fmt"
	"time"

	"storefront-connect-layer/internal/domain"
	"storefront-connect-layer/internal/infrastructure/repository/entity"
	"storefront-connect-layer/internal/ports"

	"go.mongodb.org/mongo-driver/mongo"
)

// MongoAuditRepository implements AuditRepository using MongoDB. The
// collection is append-only; nothing in this layer updates or deletes
// audit events.
type MongoAuditRepository struct {
	collection *mongo.Collection
}

// NewMongoAuditRepository creates a new MongoDB audit repository.
func NewMongoAuditRepository(db *mongo.Database) ports.AuditRepository {
	return &MongoAuditRepository{
		collection: db.Collection("audit_events"),
	}
}

// Insert appends one audit event.
func (r *MongoAuditRepository) Insert(ctx context.Context, event *domain.AuditEvent) error {
	doc := entity.MongoAuditEventDocFromDomain(event)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("%w: failed to insert audit event: %v", domain.ErrStorageFailure, err)
	}

	return nil
}
