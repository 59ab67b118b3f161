package dhcp

import (
	"net"
	"sync"
	"time"

	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

// Record is the one statistics entry emitted per processed task,
// regardless of outcome (spec §4.6).
type Record struct {
	SourceAddr     net.Addr
	MAC            net.HardwareAddr // nil if unavailable
	IP             net.IP           // chosen IP, nil if none
	Subnet         dhcpv4.SubnetID  // Server does not fill Subnet or HasSubnet; both stay zero
	HasSubnet      bool
	PacketType     string // e.g. "REQUEST:SELECTING", "DISCOVER", "OTHER"
	Duration       time.Duration
	Processed      bool // true iff the engine produced a reply (DECLINE and RELEASE never do)
	ArrivedOnProxy bool
}

// Observer receives one Record per completed task. Implementations must
// be safe to call concurrently.
type Observer func(Record)

// Sink is the registry of statistics observers (spec §4.6, §9 design
// note on avoiding module-level mutable state).
type Sink struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewSink creates an empty statistics sink.
func NewSink() *Sink {
	return &Sink{}
}

// Register adds an observer. Safe to call concurrently with Emit.
func (s *Sink) Register(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Emit delivers rec to every registered observer. Must complete before
// the worker that produced rec exits (spec §5 ordering guarantees). A
// panicking observer is recovered and skipped; the others still run.
func (s *Sink) Emit(rec Record) {
	s.mu.RLock()
	observers := s.observers
	s.mu.RUnlock()

	for _, o := range observers {
		func() {
			defer func() { _ = recover() }()
			o(rec)
		}()
	}
}
