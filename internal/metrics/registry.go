package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// Service names for metrics registration
const (
	ServicePoller = "poller"
	ServiceChain  = "chain"
	ServiceHTTP   = "http"
)

// RegisterMetrics registers metrics for the specified services with a custom registry
func RegisterMetrics(services []string, registry *prometheus.Registry, logger *logrus.Logger) {
	// Always register Go and process metrics
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", registry, logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", registry, logger)

	for _, service := range services {
		switch service {
		case ServicePoller:
			registerPollerMetrics(registry, logger)
		case ServiceChain:
			registerChainMetrics(registry, logger)
		case ServiceHTTP:
			registerHTTPMetrics(registry, logger)
		default:
			logger.Warnf("Unknown service type for metrics registration: %s", service)
		}
	}
}

// registerIfNotExists registers a collector if it's not already registered
func registerIfNotExists(collector prometheus.Collector, name string, registry *prometheus.Registry, logger *logrus.Logger) {
	if err := registry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if !errors.As(err, &alreadyRegErr) {
			logger.Errorf("Failed to register %s: %v", name, err)
		}
	}
}

func registerPollerMetrics(registry *prometheus.Registry, logger *logrus.Logger) {
	registerIfNotExists(pollTotal, "poll_total", registry, logger)
	registerIfNotExists(pollDuration, "poll_duration", registry, logger)
	registerIfNotExists(pollLastTimestamp, "poll_last_timestamp", registry, logger)
	registerIfNotExists(pollActive, "poll_active", registry, logger)
}

func registerChainMetrics(registry *prometheus.Registry, logger *logrus.Logger) {
	registerIfNotExists(chainSubmissionsTotal, "chain_submissions_total", registry, logger)
	registerIfNotExists(chainReceiptWait, "chain_receipt_wait", registry, logger)
}

func registerHTTPMetrics(registry *prometheus.Registry, logger *logrus.Logger) {
	registerIfNotExists(httpRequestsTotal, "http_requests_total", registry, logger)
	registerIfNotExists(httpRequestDuration, "http_request_duration", registry, logger)
	registerIfNotExists(httpActiveRequests, "http_active_requests", registry, logger)
}
