package dhcp

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/staticdhcpd/staticdhcpd/internal/metrics"
)

// Dispatcher is the per-MAC abuse-control layer (spec §4.5): it counts
// actions per MAC, blacklists MACs that misbehave or trip a policy
// rejection, and ages both out on a periodic tick.
type Dispatcher struct {
	mu            sync.Mutex
	actionCounts  map[[6]byte]int
	ignored       map[[6]byte]int // remaining seconds
	enableSuspend bool
	suspendThreshold int
	misbehavingTimeout int // seconds
	logger        *slog.Logger
}

// NewDispatcher creates a dispatcher with the given abuse-control policy
// (spec §6: enable_suspend, suspend_threshold, misbehaving_client_timeout).
func NewDispatcher(enableSuspend bool, suspendThreshold, misbehavingTimeout int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		actionCounts:       make(map[[6]byte]int),
		ignored:            make(map[[6]byte]int),
		enableSuspend:      enableSuspend,
		suspendThreshold:   suspendThreshold,
		misbehavingTimeout: misbehavingTimeout,
		logger:             logger,
	}
}

func macKey(mac net.HardwareAddr) [6]byte {
	var k [6]byte
	copy(k[:], mac)
	return k
}

// IsIgnored reports whether mac is currently blacklisted. The server
// calls it after the whole packet, options included, has been decoded,
// and before the engine runs.
func (d *Dispatcher) IsIgnored(mac net.HardwareAddr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.ignored[macKey(mac)]
	return ok
}

// RecordAction increments mac's action count for this tick window and
// trips suspend if it exceeds the configured threshold.
func (d *Dispatcher) RecordAction(mac net.HardwareAddr) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := macKey(mac)
	d.actionCounts[key]++

	if d.enableSuspend && d.actionCounts[key] > d.suspendThreshold {
		if _, already := d.ignored[key]; !already {
			d.ignored[key] = d.misbehavingTimeout
			metrics.DispatcherBlacklists.WithLabelValues("misbehaving").Inc()
			d.logger.Warn("MAC suspended for exceeding action threshold",
				"mac", mac.String(), "timeout_seconds", d.misbehavingTimeout)
		}
	}
}

// Blacklist adds mac to the ignore list for the given duration, raised
// directly by handler code (spec §7, §9 design note on the Outcome
// result type).
func (d *Dispatcher) Blacklist(mac net.HardwareAddr, reason string, timeoutSeconds int) {
	d.mu.Lock()
	d.ignored[macKey(mac)] = timeoutSeconds
	d.mu.Unlock()

	metrics.DispatcherBlacklists.WithLabelValues("unauthorized").Inc()
	d.logger.Warn("MAC blacklisted", "mac", mac.String(), "reason", reason, "timeout_seconds", timeoutSeconds)
}

// Tick decrements every ignore timer and action count once, removing
// entries that reach zero. Intended to be driven once per second by an
// external scheduler (spec §4.5, §5).
func (d *Dispatcher) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k, remaining := range d.ignored {
		remaining--
		if remaining <= 0 {
			delete(d.ignored, k)
		} else {
			d.ignored[k] = remaining
		}
	}
	for k, count := range d.actionCounts {
		count--
		if count <= 0 {
			delete(d.actionCounts, k)
		} else {
			d.actionCounts[k] = count
		}
	}

	metrics.DispatcherIgnored.Set(float64(len(d.ignored)))
}

// RunTicker drives Tick once per second until stop is closed.
func (d *Dispatcher) RunTicker(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.Tick()
		}
	}
}

// Apply records an Outcome's side effect (spec §7, §9): a handler-raised
// blacklist adds mac to the ignore list for the unauthorized-client
// timeout; a policy rejection (DropUnacceptable) is logged but never
// blacklists; an already-ignored drop is logged at debug.
func (d *Dispatcher) Apply(mac net.HardwareAddr, outcome Outcome, unauthorizedTimeout int) {
	switch outcome.kind {
	case outcomeDropBlacklist:
		d.Blacklist(mac, outcome.Reason, unauthorizedTimeout)
	case outcomeDropUnacceptable:
		d.logger.Warn("packet rejected by policy", "mac", mac.String(), "reason", outcome.Reason)
	case outcomeDropIgnored:
		d.logger.Debug("packet dropped", "mac", mac.String(), "reason", outcome.Reason)
	}
}
