package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PermissionDecisions counts permission evaluations by outcome.
	PermissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront_connect",
		Name:      "permission_decisions_total",
		Help:      "Permission check evaluations by outcome.",
	}, []string{"outcome"})

	// InstallsStarted counts OAuth installations begun.
	InstallsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront_connect",
		Name:      "installs_started_total",
		Help:      "OAuth installations begun.",
	})

	// InstallsCompleted counts OAuth installations finished with a
	// persisted credential.
	InstallsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront_connect",
		Name:      "installs_completed_total",
		Help:      "OAuth installations completed.",
	})

	// InstallsRejected counts callback rejections by reason code.
	InstallsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront_connect",
		Name:      "installs_rejected_total",
		Help:      "OAuth callbacks rejected by reason.",
	}, []string{"reason"})

	// WebhookSignatures counts webhook deliveries by verification
	// result.
	WebhookSignatures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront_connect",
		Name:      "webhook_signatures_total",
		Help:      "Webhook deliveries by signature verification result.",
	}, []string{"result"})
)
