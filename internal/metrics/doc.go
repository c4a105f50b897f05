// Package metrics declares the Prometheus collectors for the bridge:
// event throughput, drop reasons, and connection churn on both the
// tickerplant and the event-source side. Collectors register on the default
// registry; cmd/tickship exposes them via promhttp when a metrics address is
// configured.
package metrics
