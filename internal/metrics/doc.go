// Package metrics declares cadence's Prometheus collectors and the job
// observer that feeds them. Collectors register with the default registry
// through promauto; the API layer exposes them on /metrics.
package metrics
