package application

import (
	"context"
	"fmt"

	"storefront-connect-layer/internal/domain"

	"github.com/rs/zerolog"
)

// WebhookHandler processes one class of webhook topics.
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookDispatcher routes verified webhook events to registered
// handlers. Unknown topics are logged and accepted; only a handler
// failure propagates so the provider retries the delivery.
type WebhookDispatcher struct {
	handlers []WebhookHandler
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a new webhook dispatcher.
func NewWebhookDispatcher(logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{logger: logger}
}

// RegisterHandler adds a handler. Not safe after dispatching begins;
// registration happens once during wiring.
func (d *WebhookDispatcher) RegisterHandler(handler WebhookHandler) {
	d.handlers = append(d.handlers, handler)
}

// Dispatch routes an event to every handler claiming its topic.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) error {
	dispatched := 0
	for _, handler := range d.handlers {
		if !handler.CanHandle(event.Topic) {
			continue
		}
		dispatched++
		if err := handler.Handle(ctx, event); err != nil {
			return fmt.Errorf("handler failed for topic %s: %w", event.Topic, err)
		}
	}

	if dispatched == 0 {
		d.logger.Debug().
			Str("topic", event.Topic).
			Str("shop", event.ShopDomain).
			Msg("No handler registered for webhook topic, accepting and ignoring")
	}

	return nil
}
