package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-connect-layer/internal/domain"

	"github.com/rs/zerolog"
)

// ShopUpdateHandler watches shop/update events for primary-domain
// changes. Stored rows are keyed by the platform domain, which never
// changes, so nothing is rewritten here; a flagged divergence is
// surfaced for an explicit reconcile run instead.
type ShopUpdateHandler struct {
	logger zerolog.Logger
}

// NewShopUpdateHandler creates a new shop update webhook handler.
func NewShopUpdateHandler(logger zerolog.Logger) *ShopUpdateHandler {
	return &ShopUpdateHandler{logger: logger}
}

// CanHandle returns true if this handler can process the given topic.
func (h *ShopUpdateHandler) CanHandle(topic string) bool {
	return topic == "shop/update"
}

// Handle processes a shop update webhook event.
func (h *ShopUpdateHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload struct {
		Domain         string `json:"domain"`
		PlatformDomain string `json:"shop_domain"`
		Name           string `json:"name"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse shop update payload: %w", err)
	}

	entry := h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.ShopDomain).
		Str("name", payload.Name)

	if payload.Domain != "" && payload.PlatformDomain != "" && payload.Domain != payload.PlatformDomain {
		entry = entry.Str("primaryDomain", payload.Domain).Bool("domainDiverged", true)
		h.logger.Warn().
			Str("shop", payload.PlatformDomain).
			Str("primaryDomain", payload.Domain).
			Msg("Shop primary domain diverges from platform domain, reconcile recommended")
	}

	entry.Msg("Processing shop update webhook event")
	return nil
}
