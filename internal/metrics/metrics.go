// Package metrics holds the Prometheus collectors exported by socksrelay.
//
// Collectors live in a private registry so tests can read them without
// interference from the process-wide default registry. Handler serves that
// registry in the Prometheus text format.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "socksrelay"

// Relay directions used as the "direction" label.
const (
	ClientToUpstream = "client_to_upstream"
	UpstreamToClient = "upstream_to_client"
)

var (
	// Registry holds every collector in this package.
	Registry = prometheus.NewRegistry()

	// Connections counts accepted connections per front-end.
	Connections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_total",
		Help:      "Accepted client connections by front-end.",
	}, []string{"frontend"})

	// Replies counts SOCKS5 replies written to clients by reply code.
	Replies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "socks5",
		Name:      "replies_total",
		Help:      "SOCKS5 replies sent to clients by reply code.",
	}, []string{"code"})

	// NegotiationFailures counts connections dropped before relaying.
	NegotiationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "negotiation_failures_total",
		Help:      "Connections closed during negotiation by reason.",
	}, []string{"frontend", "reason"})

	// RelayBytes counts bytes moved by the relay engine.
	RelayBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "bytes_total",
		Help:      "Bytes relayed by direction.",
	}, []string{"direction"})

	// ActiveSessions is the number of relay sessions not yet torn down.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "sessions_active",
		Help:      "Relay sessions with at least one direction still running.",
	})
)

func init() {
	Registry.MustRegister(
		Connections,
		Replies,
		NegotiationFailures,
		RelayBytes,
		ActiveSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ReplyCode formats a SOCKS5 reply code as a label value.
func ReplyCode(rep byte) string {
	return fmt.Sprintf("0x%02x", rep)
}

// Handler returns an http.Handler exposing Registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
