// Package metrics holds the prometheus collectors of the relying party.
// All collectors live in the default registry and are served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "oidc_rp"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultStale = "stale"
	ResultCache = "cache"
)

var (
	// DiscoveryRequests counts discovery lookups by result.
	DiscoveryRequests = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_requests_total",
			Help:      "Discovery document lookups, differentiated by result (ok, cache, stale, error).",
		},
		[]string{"result"},
	)

	// CallbackOutcomes counts callback outcomes.
	CallbackOutcomes = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_outcomes_total",
			Help:      "Authorization callbacks, differentiated by outcome.",
		},
		[]string{"outcome"},
	)

	// ValidationFailures counts rejected ID tokens by reason.
	ValidationFailures = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_token_validation_failures_total",
			Help:      "Rejected ID tokens, differentiated by reason.",
		},
		[]string{"reason"},
	)

	// ResourceCalls counts userinfo, introspect and revoke calls.
	ResourceCalls = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_calls_total",
			Help:      "Calls to the provider resource endpoints, differentiated by call and result.",
		},
		[]string{"call", "result"},
	)
)
