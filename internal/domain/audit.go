package domain

import "time"

// AuditKind names a class of recorded event.
type AuditKind string

const (
	AuditInstallStarted     AuditKind = "oauth.install_started"
	AuditInstallCompleted   AuditKind = "oauth.install_completed"
	AuditStateRejected      AuditKind = "oauth.state_rejected"
	AuditSignatureRejected  AuditKind = "oauth.signature_rejected"
	AuditExchangeFailed     AuditKind = "oauth.exchange_failed"
	AuditPermissionDecision AuditKind = "permission.decision"
	AuditStoreDisconnected  AuditKind = "store.disconnected"
	AuditStoreRemoved       AuditKind = "store.removed"
	AuditPrimaryChanged     AuditKind = "store.primary_changed"
	AuditLegacyPlaintext    AuditKind = "vault.legacy_plaintext"
	AuditReconcileRun       AuditKind = "store.reconcile"
	AuditWebhookRejected    AuditKind = "webhook.rejected"
)

// AuditEvent is one append-only compliance record. The external reason
// shown to callers stays generic; the specific internal reason lives
// here.
type AuditEvent struct {
	ID         string            `json:"id"`
	Kind       AuditKind         `json:"kind"`
	UserID     string            `json:"user_id,omitempty"`
	ShopDomain string            `json:"shop_domain,omitempty"`
	Permission string            `json:"permission,omitempty"`
	AgentID    string            `json:"agent_id,omitempty"`
	Allowed    *bool             `json:"allowed,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
