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

// MongoStateRepository implements StateRepository using MongoDB.
type MongoStateRepository struct {
	collection *mongo.Collection
}

// NewMongoStateRepository creates a new MongoDB state repository.
func NewMongoStateRepository(db *mongo.Database) ports.StateRepository {
	repo := &MongoStateRepository{
		collection: db.Collection("oauth_states"),
	}

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, _ = repo.collection.Indexes().CreateOne(context.Background(), indexModel)

	return repo
}

// Create persists a new in-flight authorization attempt.
func (r *MongoStateRepository) Create(ctx context.Context, state *domain.OAuthState) error {
	doc := entity.MongoOAuthStateDocFromDomain(state)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("%w: failed to create oauth state: %v", domain.ErrStorageFailure, err)
	}

	return nil
}

// Consume atomically marks a state consumed. The conditional filter on
// consumed:false and expiresAt makes a replayed callback lose the race:
// only one caller ever sees the document come back.
func (r *MongoStateRepository) Consume(ctx context.Context, token string, now time.Time) (*domain.OAuthState, error) {
	filter := bson.M{
		"token":     token,
		"consumed":  false,
		"expiresAt": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"consumed":   true,
			"consumedAt": now,
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc entity.MongoOAuthStateDoc
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to consume oauth state: %v", domain.ErrStorageFailure, err)
	}

	return doc.ToDomain(), nil
}
