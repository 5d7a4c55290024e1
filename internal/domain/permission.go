package domain

import (
	"regexp"
	"time"
)

// Deny reasons surfaced in PermissionCheckResult. Kept stable since the
// dashboard and agents branch on them.
const (
	ReasonStoreNotFound      = "store not found or not owned by user"
	ReasonStoreInactive      = "store is inactive"
	ReasonAgentOverrideDeny  = "denied by agent override"
	ReasonAgentOverrideAllow = "allowed by agent override"
	ReasonNotGranted         = "permission not granted"
	ReasonGranted            = "allowed"
)

var permissionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidPermissionName reports whether a permission name is well formed.
// Malformed names are a caller error rejected before evaluation.
func ValidPermissionName(name string) bool {
	return permissionNamePattern.MatchString(name)
}

// PermissionCheckResult is the transient outcome of one evaluation.
// Every evaluation is mirrored into an audit record.
type PermissionCheckResult struct {
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason"`
	StoreID    string    `json:"store_id"`
	Permission string    `json:"permission"`
	AgentID    string    `json:"agent_id,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// StatusSummary is the read-only aggregate for UI and diagnostics.
type StatusSummary struct {
	StoreID     string   `json:"store_id"`
	IsActive    bool     `json:"is_active"`
	Allowed     []string `json:"allowed_permissions"`
	Denied      []string `json:"denied_permissions"`
	AgentID     string   `json:"agent_id,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}
