package metrics

// PollerMetrics interface for collecting transfer status poll metrics
type PollerMetrics interface {
	// RecordPoll records one applied poll response by result (found/not_found/transport_error)
	RecordPoll(result string, duration float64)

	// SetLastPollTimestamp sets the timestamp of the last applied poll
	SetLastPollTimestamp(timestamp float64)

	// SetActivePollers sets the number of running pollers
	SetActivePollers(count float64)
}

// ChainMetrics interface for collecting chain submission metrics
type ChainMetrics interface {
	// RecordSubmission records a submit attempt by chain and result (ok/error)
	RecordSubmission(chain, result string)

	// RecordReceiptWait records the time spent waiting for a receipt
	RecordReceiptWait(chain, result string, duration float64)
}

// NilPollerMetrics is a no-op implementation for when metrics are disabled
type NilPollerMetrics struct{}

func NewNilPollerMetrics() PollerMetrics {
	return &NilPollerMetrics{}
}

func (n *NilPollerMetrics) RecordPoll(result string, duration float64) {}
func (n *NilPollerMetrics) SetLastPollTimestamp(timestamp float64)    {}
func (n *NilPollerMetrics) SetActivePollers(count float64)            {}

// NilChainMetrics is a no-op implementation for when metrics are disabled
type NilChainMetrics struct{}

func NewNilChainMetrics() ChainMetrics {
	return &NilChainMetrics{}
}

func (n *NilChainMetrics) RecordSubmission(chain, result string)                    {}
func (n *NilChainMetrics) RecordReceiptWait(chain, result string, duration float64) {}
