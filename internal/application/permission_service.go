package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"storefront-connect-layer/internal/domain"
	"storefront-connect-layer/internal/infrastructure/metrics"
	"storefront-connect-layer/internal/ports"

	"github.com/rs/zerolog"
)

// PermissionService gates every downstream API call. Evaluation order:
// store lookup, activation flag, explicit agent override, store-level
// map with default-deny. Every decision is mirrored into the audit log.
type PermissionService struct {
	resolver *ResolverService
	audit    ports.AuditSink
	logger   zerolog.Logger
}

// NewPermissionService creates a new permission validator.
func NewPermissionService(resolver *ResolverService, audit ports.AuditSink, logger zerolog.Logger) *PermissionService {
	return &PermissionService{
		resolver: resolver,
		audit:    audit,
		logger:   logger,
	}
}

// CheckPermission evaluates whether one named permission is allowed for
// (store, user), optionally scoped to a requesting agent. A denial is a
// result, not an error; the error return is reserved for caller
// mistakes (malformed permission name) and transient storage failures,
// which are retryable and distinct from denial.
func (s *PermissionService) CheckPermission(ctx context.Context, storeID, userID, permission, agentID string) (*domain.PermissionCheckResult, error) {
	if !domain.ValidPermissionName(permission) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPermission, permission)
	}

	result := &domain.PermissionCheckResult{
		StoreID:    storeID,
		Permission: permission,
		AgentID:    agentID,
		CheckedAt:  time.Now(),
	}

	cred, err := s.resolver.ResolveForUser(ctx, userID, storeID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			result.Allowed = false
			result.Reason = domain.ReasonStoreNotFound
			s.record(ctx, userID, result)
			return result, nil
		}
		return nil, err
	}

	switch {
	case !cred.IsActive:
		// Deactivation overrides everything, including the permission
		// map and agent overrides.
		result.Allowed = false
		result.Reason = domain.ReasonStoreInactive

	case agentID != "" && hasOverride(cred.AgentOverrides, agentID, permission):
		if cred.AgentOverrides[agentID][permission] {
			result.Allowed = true
			result.Reason = domain.ReasonAgentOverrideAllow
		} else {
			result.Allowed = false
			result.Reason = domain.ReasonAgentOverrideDeny
		}

	case cred.Permissions[permission]:
		result.Allowed = true
		result.Reason = domain.ReasonGranted

	default:
		result.Allowed = false
		result.Reason = domain.ReasonNotGranted
	}

	s.record(ctx, userID, result)
	return result, nil
}

// CheckMultiple evaluates each permission independently, with no
// short-circuit, so callers can present the full picture.
func (s *PermissionService) CheckMultiple(ctx context.Context, storeID, userID string, permissions []string, agentID string) (map[string]*domain.PermissionCheckResult, error) {
	if len(permissions) == 0 {
		return nil, fmt.Errorf("%w: no permissions given", domain.ErrInvalidPermission)
	}

	results := make(map[string]*domain.PermissionCheckResult, len(permissions))
	for _, permission := range permissions {
		result, err := s.CheckPermission(ctx, storeID, userID, permission, agentID)
		if err != nil {
			return nil, err
		}
		results[permission] = result
	}

	return results, nil
}

// GetStatusSummary aggregates the store's activation state and the
// allow/deny split across the known permission set plus any custom keys
// on the store. Built on CheckPermission so the two can never drift.
func (s *PermissionService) GetStatusSummary(ctx context.Context, storeID, userID, agentID string) (*domain.StatusSummary, error) {
	cred, err := s.resolver.ResolveForUser(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}

	names := permissionUniverse(cred)
	summary := &domain.StatusSummary{
		StoreID:     cred.ShopDomain,
		IsActive:    cred.IsActive,
		AgentID:     agentID,
		Allowed:     []string{},
		Denied:      []string{},
		GeneratedAt: time.Now(),
	}

	for _, name := range names {
		result, err := s.CheckPermission(ctx, storeID, userID, name, agentID)
		if err != nil {
			return nil, err
		}
		if result.Allowed {
			summary.Allowed = append(summary.Allowed, name)
		} else {
			summary.Denied = append(summary.Denied, name)
		}
	}

	return summary, nil
}

func (s *PermissionService) record(ctx context.Context, userID string, result *domain.PermissionCheckResult) {
	outcome := "denied"
	if result.Allowed {
		outcome = "allowed"
	}
	metrics.PermissionDecisions.WithLabelValues(outcome).Inc()

	allowed := result.Allowed
	s.audit.Record(ctx, domain.AuditEvent{
		Kind:       domain.AuditPermissionDecision,
		UserID:     userID,
		ShopDomain: result.StoreID,
		Permission: result.Permission,
		AgentID:    result.AgentID,
		Allowed:    &allowed,
		Reason:     result.Reason,
	})
}

func hasOverride(overrides map[string]map[string]bool, agentID, permission string) bool {
	byName, ok := overrides[agentID]
	if !ok {
		return false
	}
	_, ok = byName[permission]
	return ok
}

// permissionUniverse is the known canonical set plus every key present
// on the store's map or its agent overrides, sorted for stable output.
func permissionUniverse(cred *domain.StoreCredential) []string {
	seen := make(map[string]bool)
	for _, name := range domain.KnownPermissions {
		seen[name] = true
	}
	for name := range cred.Permissions {
		seen[name] = true
	}
	for _, byName := range cred.AgentOverrides {
		for name := range byName {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
