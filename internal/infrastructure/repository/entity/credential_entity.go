package entity

import (
	"time"

	"storefront-connect-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoStoreCredentialDoc is a row in the per-store table. Unique index
// on (userId, provider, shopDomain) makes upserts idempotent.
type MongoStoreCredentialDoc struct {
	ID             primitive.ObjectID         `bson:"_id,omitempty"`
	UserID         string                     `bson:"userId"`
	ShopDomain     string                     `bson:"shopDomain"`
	Provider       string                     `bson:"provider"`
	AccessToken    string                     `bson:"accessToken"`
	Scope          string                     `bson:"scope"`
	Status         string                     `bson:"status"`
	IsActive       bool                       `bson:"isActive"`
	IsPrimary      bool                       `bson:"isPrimary"`
	Permissions    map[string]bool            `bson:"permissions,omitempty"`
	AgentOverrides map[string]map[string]bool `bson:"agentOverrides,omitempty"`
	CreatedAt      time.Time                  `bson:"createdAt"`
	UpdatedAt      time.Time                  `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *MongoStoreCredentialDoc) ToDomain() *domain.StoreCredential {
	return &domain.StoreCredential{
		ID:             d.ID.Hex(),
		UserID:         d.UserID,
		ShopDomain:     d.ShopDomain,
		Provider:       d.Provider,
		AccessToken:    d.AccessToken,
		Scope:          d.Scope,
		Status:         domain.ConnectionStatus(d.Status),
		IsActive:       d.IsActive,
		IsPrimary:      d.IsPrimary,
		Permissions:    d.Permissions,
		AgentOverrides: d.AgentOverrides,
		Source:         domain.SourceStore,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// MongoStoreCredentialDocFromDomain converts a domain entity to a
// MongoDB document.
func MongoStoreCredentialDocFromDomain(cred *domain.StoreCredential) *MongoStoreCredentialDoc {
	doc := &MongoStoreCredentialDoc{
		UserID:         cred.UserID,
		ShopDomain:     cred.ShopDomain,
		Provider:       cred.Provider,
		AccessToken:    cred.AccessToken,
		Scope:          cred.Scope,
		Status:         string(cred.Status),
		IsActive:       cred.IsActive,
		IsPrimary:      cred.IsPrimary,
		Permissions:    cred.Permissions,
		AgentOverrides: cred.AgentOverrides,
		CreatedAt:      cred.CreatedAt,
		UpdatedAt:      cred.UpdatedAt,
	}

	if cred.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(cred.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}

// MongoLegacyCredentialDoc is a row in the older per-integration table,
// keyed by (userId, service, shopDomain).
type MongoLegacyCredentialDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      string             `bson:"userId"`
	Service     string             `bson:"service"`
	ShopDomain  string             `bson:"shopDomain"`
	AccessToken string             `bson:"accessToken"`
	Scope       string             `bson:"scope"`
	Status      string             `bson:"status"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *MongoLegacyCredentialDoc) ToDomain() *domain.LegacyCredential {
	return &domain.LegacyCredential{
		ID:          d.ID.Hex(),
		UserID:      d.UserID,
		Service:     d.Service,
		ShopDomain:  d.ShopDomain,
		AccessToken: d.AccessToken,
		Scope:       d.Scope,
		Status:      domain.ConnectionStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoLegacyCredentialDocFromDomain converts a domain entity to a
// MongoDB document.
func MongoLegacyCredentialDocFromDomain(cred *domain.LegacyCredential) *MongoLegacyCredentialDoc {
	doc := &MongoLegacyCredentialDoc{
		UserID:      cred.UserID,
		Service:     cred.Service,
		ShopDomain:  cred.ShopDomain,
		AccessToken: cred.AccessToken,
		Scope:       cred.Scope,
		Status:      string(cred.Status),
		CreatedAt:   cred.CreatedAt,
		UpdatedAt:   cred.UpdatedAt,
	}

	if cred.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(cred.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}
