package repository

import (
	"context"
	"fmt"
	"time"

	"storefront-connect-layer/internal/domain"
	"storefront-connect-layer/internal/infrastructure/repository/entity"
	"storefront-connect-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLegacyCredentialRepository implements LegacyCredentialRepository
// against the older per-integration table. Reads still hit it; new
// writes only happen through the reconcile operation.
type MongoLegacyCredentialRepository struct {
	collection *mongo.Collection
}

// NewMongoLegacyCredentialRepository creates a new MongoDB legacy
// credential repository.
func NewMongoLegacyCredentialRepository(db *mongo.Database) ports.LegacyCredentialRepository {
	repo := &MongoLegacyCredentialRepository{
		collection: db.Collection("integration_credentials"),
	}

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "service", Value: 1},
			{Key: "shopDomain", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	_, _ = repo.collection.Indexes().CreateOne(context.Background(), indexModel)

	return repo
}

// GetConnectedByUserAndService retrieves the first connected row for
// (user, service).
func (r *MongoLegacyCredentialRepository) GetConnectedByUserAndService(ctx context.Context, userID, service string) (*domain.LegacyCredential, error) {
	filter := bson.M{
		"userId":  userID,
		"service": service,
		"status":  string(domain.StatusConnected),
	}

	var doc entity.MongoLegacyCredentialDoc
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get legacy credential: %v", domain.ErrStorageFailure, err)
	}

	return doc.ToDomain(), nil
}

// ListByUserAndService retrieves every row for (user, service)
// regardless of status. The reconcile operation needs the full set.
func (r *MongoLegacyCredentialRepository) ListByUserAndService(ctx context.Context, userID, service string) ([]*domain.LegacyCredential, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID, "service": service})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list legacy credentials: %v", domain.ErrStorageFailure, err)
	}
	defer cursor.Close(ctx)

	var creds []*domain.LegacyCredential
	for cursor.Next(ctx) {
		var doc entity.MongoLegacyCredentialDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: failed to decode legacy credential: %v", domain.ErrStorageFailure, err)
		}
		creds = append(creds, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: cursor error: %v", domain.ErrStorageFailure, err)
	}

	return creds, nil
}

// Create inserts a new legacy row.
func (r *MongoLegacyCredentialRepository) Create(ctx context.Context, cred *domain.LegacyCredential) error {
	doc := entity.MongoLegacyCredentialDocFromDomain(cred)
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("%w: failed to create legacy credential: %v", domain.ErrStorageFailure, err)
	}

	return nil
}

// UpdateShopDomain repoints a legacy row at a different shop domain.
// Used by reconciliation when the two tables diverge.
func (r *MongoLegacyCredentialRepository) UpdateShopDomain(ctx context.Context, id, shopDomain string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid legacy credential id: %w", err)
	}

	update := bson.M{
		"$set": bson.M{
			"shopDomain": shopDomain,
			"updatedAt":  time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return fmt.Errorf("%w: failed to update legacy shop domain: %v", domain.ErrStorageFailure, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: legacy credential %s", domain.ErrCredentialNotFound, id)
	}

	return nil
}

// DeleteByUserAndStore hard-deletes the legacy row for one store. Only
// used for explicit user-initiated removal.
func (r *MongoLegacyCredentialRepository) DeleteByUserAndStore(ctx context.Context, userID, service, shopDomain string) error {
	filter := bson.M{
		"userId":     userID,
		"service":    service,
		"shopDomain": shopDomain,
	}

	_, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("%w: failed to delete legacy credential: %v", domain.ErrStorageFailure, err)
	}

	return nil
}
