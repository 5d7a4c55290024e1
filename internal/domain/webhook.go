package domain

// WebhookEvent is a verified inbound webhook delivery. Payload holds
// the raw bytes exactly as received; signature verification happens
// before any parsing.
type WebhookEvent struct {
	Topic      string `json:"topic"`
	ShopDomain string `json:"shop_domain"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Payload    []byte `json:"-"`
	Verified   bool   `json:"verified"`
}
