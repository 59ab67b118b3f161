// Package metrics defines the Prometheus metrics exported by staticdhcpd.
// All metrics use the "staticdhcpd_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "staticdhcpd"

// --- DHCP Packet Metrics ---

var (
	// PacketsReceived counts DHCP packets received by message type.
	PacketsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_received_total",
		Help:      "Total DHCP packets received, by message type.",
	}, []string{"msg_type"})

	// PacketsSent counts DHCP packets sent by message type.
	PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_sent_total",
		Help:      "Total DHCP packets sent, by message type.",
	}, []string{"msg_type"})

	// PacketErrors counts packet processing errors, by kind: "decode"
	// (malformed request), "encode" (reply encoding) and "send"
	// (transmission failure).
	PacketErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packet_errors_total",
		Help:      "Total packet processing errors, by kind.",
	}, []string{"kind"})

	// PacketProcessingDuration tracks per-task DHCP packet handling
	// latency, from receipt until the engine returns (before the reply
	// is encoded and sent).
	PacketProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "packet_processing_duration_seconds",
		Help:      "DHCP packet processing duration in seconds.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	}, []string{"msg_type"})
)

// --- Dispatcher / Abuse Control Metrics ---

var (
	// DispatcherIgnored is a gauge of MACs currently on the ignore list.
	DispatcherIgnored = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatcher_ignored_macs",
		Help:      "Number of MACs currently on the dispatcher ignore list.",
	})

	// DispatcherBlacklists counts MACs added to the ignore list, by reason
	// (misbehaving, unauthorized).
	DispatcherBlacklists = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatcher_blacklists_total",
		Help:      "Total MACs added to the dispatcher ignore list, by reason.",
	}, []string{"reason"})

	// DispatcherDropped counts dropped packets, by reason: "ignored" for
	// a MAC on the ignore list (dropped before the engine runs), or the
	// Outcome kind of a drop decided by the engine.
	DispatcherDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatcher_dropped_total",
		Help:      "Total packets dropped by the dispatcher, by reason.",
	}, []string{"reason"})
)

// --- Database / Cache Chain Metrics ---

var (
	// CacheLookups counts cache-chain lookups by node kind and result
	// (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Total cache-chain lookups, by node and result.",
	}, []string{"node", "result"})

	// DatabaseCallsInFlight is a gauge of real database calls currently
	// holding the concurrency semaphore (spec §4.2).
	DatabaseCallsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "database_calls_in_flight",
		Help:      "Number of real database calls currently in flight.",
	})

	// DatabaseCallDuration tracks real database lookup latency.
	DatabaseCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "database_call_duration_seconds",
		Help:      "Real database lookup duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
)

// --- Server Info ---

var (
	// ServerInfo is a constant gauge with server build metadata.
	ServerInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_info",
		Help:      "Server build and version info.",
	}, []string{"version"})

	// ServerStartTime tracks server start time as a unix timestamp.
	ServerStartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_start_time_seconds",
		Help:      "Server start time as Unix timestamp.",
	})
)
