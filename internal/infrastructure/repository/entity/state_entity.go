package entity

import (
	"time"

	"storefront-connect-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoOAuthStateDoc is one in-flight authorization attempt. Consumed
// records are kept for the audit trail; a unique index on token guards
// against collisions.
type MongoOAuthStateDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Token      string             `bson:"token"`
	UserID     string             `bson:"userId,omitempty"`
	ShopDomain string             `bson:"shopDomain"`
	CreatedAt  time.Time          `bson:"createdAt"`
	ExpiresAt  time.Time          `bson:"expiresAt"`
	Consumed   bool               `bson:"consumed"`
	ConsumedAt *time.Time         `bson:"consumedAt,omitempty"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *MongoOAuthStateDoc) ToDomain() *domain.OAuthState {
	return &domain.OAuthState{
		Token:      d.Token,
		UserID:     d.UserID,
		ShopDomain: d.ShopDomain,
		CreatedAt:  d.CreatedAt,
		ExpiresAt:  d.ExpiresAt,
		Consumed:   d.Consumed,
		ConsumedAt: d.ConsumedAt,
	}
}

// MongoOAuthStateDocFromDomain converts a domain entity to a MongoDB
// document.
func MongoOAuthStateDocFromDomain(state *domain.OAuthState) *MongoOAuthStateDoc {
	return &MongoOAuthStateDoc{
		Token:      state.Token,
		UserID:     state.UserID,
		ShopDomain: state.ShopDomain,
		CreatedAt:  state.CreatedAt,
		ExpiresAt:  state.ExpiresAt,
		Consumed:   state.Consumed,
		ConsumedAt: state.ConsumedAt,
	}
}

// MongoAuditEventDoc is one append-only compliance record.
type MongoAuditEventDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	EventID    string             `bson:"eventId"`
	Kind       string             `bson:"kind"`
	UserID     string             `bson:"userId,omitempty"`
	ShopDomain string             `bson:"shopDomain,omitempty"`
	Permission string             `bson:"permission,omitempty"`
	AgentID    string             `bson:"agentId,omitempty"`
	Allowed    *bool              `bson:"allowed,omitempty"`
	Reason     string             `bson:"reason,omitempty"`
	Metadata   map[string]string  `bson:"metadata,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

// MongoAuditEventDocFromDomain converts a domain entity to a MongoDB
// document.
func MongoAuditEventDocFromDomain(event *domain.AuditEvent) *MongoAuditEventDoc {
	return &MongoAuditEventDoc{
		EventID:    event.ID,
		Kind:       string(event.Kind),
		UserID:     event.UserID,
		ShopDomain: event.ShopDomain,
		Permission: event.Permission,
		AgentID:    event.AgentID,
		Allowed:    event.Allowed,
		Reason:     event.Reason,
		Metadata:   event.Metadata,
		CreatedAt:  event.CreatedAt,
	}
}
