package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-connect-layer/internal/domain"
	"storefront-connect-layer/internal/ports"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler reacts to the provider reporting that the app
// was removed from a shop. Credentials are soft-removed (disconnected,
// inactive) rather than deleted so the audit history survives.
type AppUninstalledHandler struct {
	logger    zerolog.Logger
	storeRepo ports.StoreCredentialRepository
	audit     ports.AuditSink
}

// NewAppUninstalledHandler creates a new app uninstalled webhook
// handler.
func NewAppUninstalledHandler(logger zerolog.Logger, storeRepo ports.StoreCredentialRepository, audit ports.AuditSink) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		logger:    logger,
		storeRepo: storeRepo,
		audit:     audit,
	}
}

// CanHandle returns true if this handler can process the given topic.
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == "app/uninstalled"
}

// Handle processes an app uninstalled webhook event.
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shopDomain := event.ShopDomain
	if shopDomain == "" {
		var payload map[string]interface{}
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("failed to parse app uninstalled payload: %w", err)
		}
		if value, ok := payload["domain"].(string); ok {
			shopDomain = value
		} else if value, ok := payload["shop_domain"].(string); ok {
			shopDomain = value
		}
	}
	if shopDomain == "" {
		return fmt.Errorf("app uninstalled event carries no shop domain")
	}

	normalized, err := domain.NormalizeShopDomain(shopDomain)
	if err != nil {
		return fmt.Errorf("app uninstalled event shop domain invalid: %w", err)
	}

	count, err := h.storeRepo.DisconnectByShop(ctx, normalized)
	if err != nil {
		return err
	}

	h.logger.Info().
		Str("shop", normalized).
		Int64("credentials", count).
		Msg("App uninstalled, credentials disconnected")

	h.audit.Record(ctx, domain.AuditEvent{
		Kind:       domain.AuditStoreDisconnected,
		ShopDomain: normalized,
		Reason:     "app uninstalled webhook",
	})

	return nil
}
