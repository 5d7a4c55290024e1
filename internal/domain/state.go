package domain

import "time"

// StateTTL is the fixed lifetime of an in-flight authorization attempt.
const StateTTL = 10 * time.Minute

// OAuthState represents one in-flight authorization attempt. A state
// token is accepted at most once; consumed records are kept for the
// audit trail rather than deleted.
type OAuthState struct {
	Token      string     `json:"token"`
	UserID     string     `json:"user_id"` // empty when installation begins before login
	ShopDomain string     `json:"shop_domain"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Consumed   bool       `json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}
