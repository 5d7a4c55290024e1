package repository

import (
	"context"
	"fmt"
	"time"

	"storefront-connect-layer/internal/domain"
	"storefront-connect-layer/internal/infrastructure/repository/entity"
	"storefront-connect-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStoreCredentialRepository implements StoreCredentialRepository
// using MongoDB.
type MongoStoreCredentialRepository struct {
	collection *mongo.Collection
}

// NewMongoStoreCredentialRepository creates a new MongoDB store
// credential repository.
func NewMongoStoreCredentialRepository(db *mongo.Database) ports.StoreCredentialRepository {
	repo := &MongoStoreCredentialRepository{
		collection: db.Collection("store_credentials"),
	}

	// Uniqueness on the composite key is what makes Upsert idempotent.
	keyIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "provider", Value: 1},
			{Key: "shopDomain", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	// At most one primary store per user. The partial index turns a
	// concurrent double-claim into a duplicate-key error Upsert can
	// recover from.
	primaryIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "provider", Value: 1},
			{Key: "isPrimary", Value: 1},
		},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"isPrimary": true}),
	}
	_, _ = repo.collection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{keyIndex, primaryIndex})

	return repo
}

func (r *MongoStoreCredentialRepository) storeFilter(userID, storeID string) bson.M {
	return bson.M{
		"userId":     userID,
		"provider":   domain.ProviderName,
		"shopDomain": storeID,
	}
}

// GetByUserAndStore retrieves the row for (user, storeId).
func (r *MongoStoreCredentialRepository) GetByUserAndStore(ctx context.Context, userID, storeID string) (*domain.StoreCredential, error) {
	var doc entity.MongoStoreCredentialDoc
	err := r.collection.FindOne(ctx, r.storeFilter(userID, storeID)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get store credential: %v", domain.ErrStorageFailure, err)
	}

	return doc.ToDomain(), nil
}

// ListByUser retrieves all stores owned by a user.
func (r *MongoStoreCredentialRepository) ListByUser(ctx context.Context, userID string) ([]*domain.StoreCredential, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID, "provider": domain.ProviderName})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list store credentials: %v", domain.ErrStorageFailure, err)
	}
	defer cursor.Close(ctx)

	var creds []*domain.StoreCredential
	for cursor.Next(ctx) {
		var doc entity.MongoStoreCredentialDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: failed to decode store credential: %v", domain.ErrStorageFailure, err)
		}
		creds = append(creds, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: cursor error: %v", domain.ErrStorageFailure, err)
	}

	return creds, nil
}

// Upsert writes or overwrites the row identified by (user, provider,
// shop). Calling it twice with the same inputs yields one logical
// record. When two first installs race to claim the primary slot, the
// partial unique index rejects the loser's insert; the loser is demoted
// to non-primary and retried, with cred updated to reflect what was
// stored.
func (r *MongoStoreCredentialRepository) Upsert(ctx context.Context, cred *domain.StoreCredential) error {
	err := r.upsertOnce(ctx, cred)
	if cred.IsPrimary && mongo.IsDuplicateKeyError(err) {
		cred.IsPrimary = false
		err = r.upsertOnce(ctx, cred)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to upsert store credential: %v", domain.ErrStorageFailure, err)
	}

	return nil
}

func (r *MongoStoreCredentialRepository) upsertOnce(ctx context.Context, cred *domain.StoreCredential) error {
	doc := entity.MongoStoreCredentialDocFromDomain(cred)
	doc.UpdatedAt = time.Now()

	update := bson.M{
		"$set": bson.M{
			"accessToken":    doc.AccessToken,
			"scope":          doc.Scope,
			"status":         doc.Status,
			"isActive":       doc.IsActive,
			"permissions":    doc.Permissions,
			"agentOverrides": doc.AgentOverrides,
			"updatedAt":      doc.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"userId":     doc.UserID,
			"provider":   doc.Provider,
			"shopDomain": doc.ShopDomain,
			"isPrimary":  doc.IsPrimary,
			"createdAt":  time.Now(),
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, r.storeFilter(cred.UserID, cred.ShopDomain), update, opts)
	return err
}

// SetPrimary clears the primary flag on every other store owned by the
// user, then sets it on the target, inside one transaction so two
// concurrent requests can never leave zero or two primaries visible.
func (r *MongoStoreCredentialRepository) SetPrimary(ctx context.Context, userID, storeID string) error {
	client := r.collection.Database().Client()
	session, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: failed to start session: %v", domain.ErrStorageFailure, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		result := r.collection.FindOne(sc, r.storeFilter(userID, storeID))
		if result.Err() == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: store %s", domain.ErrCredentialNotFound, storeID)
		}
		if result.Err() != nil {
			return nil, fmt.Errorf("%w: failed to load store: %v", domain.ErrStorageFailure, result.Err())
		}

		now := time.Now()
		_, err := r.collection.UpdateMany(sc,
			bson.M{"userId": userID, "provider": domain.ProviderName, "shopDomain": bson.M{"$ne": storeID}},
			bson.M{"$set": bson.M{"isPrimary": false, "updatedAt": now}},
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to clear primary flags: %v", domain.ErrStorageFailure, err)
		}

		_, err = r.collection.UpdateOne(sc,
			r.storeFilter(userID, storeID),
			bson.M{"$set": bson.M{"isPrimary": true, "updatedAt": now}},
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to set primary flag: %v", domain.ErrStorageFailure, err)
		}

		return nil, nil
	})

	return err
}

// UpdateStatus sets the connection status and activation flag.
func (r *MongoStoreCredentialRepository) UpdateStatus(ctx context.Context, userID, storeID string, status domain.ConnectionStatus, isActive bool) error {
	update := bson.M{
		"$set": bson.M{
			"status":    string(status),
			"isActive":  isActive,
			"updatedAt": time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, r.storeFilter(userID, storeID), update)
	if err != nil {
		return fmt.Errorf("%w: failed to update store status: %v", domain.ErrStorageFailure, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: store %s", domain.ErrCredentialNotFound, storeID)
	}

	return nil
}

// DisconnectByShop soft-removes every credential for a shop across
// owners.
func (r *MongoStoreCredentialRepository) DisconnectByShop(ctx context.Context, shopDomain string) (int64, error) {
	update := bson.M{
		"$set": bson.M{
			"status":    string(domain.StatusDisconnected),
			"isActive":  false,
			"updatedAt": time.Now(),
		},
	}

	result, err := r.collection.UpdateMany(ctx,
		bson.M{"provider": domain.ProviderName, "shopDomain": shopDomain},
		update,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to disconnect shop: %v", domain.ErrStorageFailure, err)
	}

	return result.ModifiedCount, nil
}

// UpdatePermissions replaces the store-level permission map and the
// per-agent override map.
func (r *MongoStoreCredentialRepository) UpdatePermissions(ctx context.Context, userID, storeID string, permissions map[string]bool, overrides map[string]map[string]bool) error {
	update := bson.M{
		"$set": bson.M{
			"permissions":    permissions,
			"agentOverrides": overrides,
			"updatedAt":      time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, r.storeFilter(userID, storeID), update)
	if err != nil {
		return fmt.Errorf("%w: failed to update permissions: %v", domain.ErrStorageFailure, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: store %s", domain.ErrCredentialNotFound, storeID)
	}

	return nil
}

// Delete hard-deletes the row. Only used for explicit user-initiated
// removal; everything else goes through UpdateStatus.
func (r *MongoStoreCredentialRepository) Delete(ctx context.Context, userID, storeID string) error {
	result, err := r.collection.DeleteOne(ctx, r.storeFilter(userID, storeID))
	if err != nil {
		return fmt.Errorf("%w: failed to delete store credential: %v", domain.ErrStorageFailure, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: store %s", domain.ErrCredentialNotFound, storeID)
	}

	return nil
}
