package domain

import "time"

// ConnectionStatus describes the health of a stored credential.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
)

// CredentialSource identifies which of the two overlapping storage
// locations a resolved credential came from.
type CredentialSource string

const (
	SourceStore  CredentialSource = "store"
	SourceLegacy CredentialSource = "legacy"
)

// KnownPermissions is the canonical capability set. Permission maps may
// carry additional keys; absence of a key always means denied.
var KnownPermissions = []string{
	"read_products",
	"write_products",
	"read_orders",
	"write_orders",
	"read_customers",
	"write_customers",
}

// StoreCredential is the durable secret plus metadata needed to call
// the provider API on one shop's behalf. AccessToken is encrypted at
// rest; only the resolver hands out decrypted values.
type StoreCredential struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	ShopDomain string           `json:"shop_domain"` // normalized, doubles as the store id
	Provider   string           `json:"provider"`
	// AccessToken holds ciphertext in storage and plaintext only on the
	// value returned by ResolveForUser.
	AccessToken string           `json:"-"`
	Scope       string           `json:"scope"`
	Status      ConnectionStatus `json:"status"`
	IsActive    bool             `json:"is_active"`
	IsPrimary   bool             `json:"is_primary"`
	// Permissions is the store-level capability map. Default-deny: a
	// missing key is a denial, never an implicit allow.
	Permissions map[string]bool `json:"permissions"`
	// AgentOverrides maps agent id -> permission -> explicit decision.
	// An explicit entry wins over the store-level map in both
	// directions.
	AgentOverrides map[string]map[string]bool `json:"agent_overrides,omitempty"`
	Source         CredentialSource           `json:"source"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// HasUsableToken reports whether the record can back an outbound call.
func (c *StoreCredential) HasUsableToken() bool {
	return c != nil && c.AccessToken != "" && c.Status == StatusConnected
}

// LegacyCredential is a row in the older per-integration table, keyed
// by (user, service, shop). Kept as a valid read source; rows may
// predate encryption and hold plaintext tokens.
type LegacyCredential struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Service     string           `json:"service"`
	ShopDomain  string           `json:"shop_domain"`
	AccessToken string           `json:"-"`
	Scope       string           `json:"scope"`
	Status      ConnectionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ReconcileAction classifies what ReconcileDivergentDomain did for one
// store.
type ReconcileAction string

const (
	ReconcileUpdated ReconcileAction = "updated"
	ReconcileCreated ReconcileAction = "created"
	ReconcileSkipped ReconcileAction = "skipped"
)

// ReconcileEntry reports the repair outcome for a single store.
type ReconcileEntry struct {
	ShopDomain string          `json:"shop_domain"`
	Action     ReconcileAction `json:"action"`
	Detail     string          `json:"detail,omitempty"`
}
