package metrics

// InitializeMetrics pre-populates the expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics(states []string, kinds []string) {
	for _, state := range states {
		JobsInState.WithLabelValues(state)
	}
	for _, kind := range kinds {
		JobFailuresTotal.WithLabelValues(kind)
	}
	for _, result := range []string{"ready", "failed"} {
		ConversionDuration.WithLabelValues(result)
	}
	for _, result := range []string{"completed", "aborted", "not_found"} {
		DeliveriesTotal.WithLabelValues(result)
	}
}
