package database

import (
	"net"
	"time"

	"github.com/staticdhcpd/staticdhcpd/internal/metrics"
	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

// Chain resolves a MAC through the lease-definition cache chain (spec
// §4.2), falling back to the real Database behind a concurrency
// semaphore on a full miss. A cache hit never touches the semaphore.
type Chain struct {
	head Node // nil when caching is disabled
	real Database
	sem  *Semaphore
}

// NewChain builds a cache chain in front of real, bounded by a semaphore
// of the given pool size. head may be nil to disable caching entirely.
func NewChain(head Node, real Database, poolSize int) *Chain {
	return &Chain{head: head, real: real, sem: NewSemaphore(poolSize)}
}

// LookupCached consults only the cache chain, never the real database.
// ok is false on a full miss.
func (c *Chain) LookupCached(mac net.HardwareAddr) (def *dhcpv4.Definition, ok bool, err error) {
	if c.head == nil {
		return nil, false, nil
	}
	def, err = c.head.LookupMAC(mac)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("chain", "error").Inc()
		return nil, false, err
	}
	if def == nil {
		metrics.CacheLookups.WithLabelValues("chain", "miss").Inc()
		return nil, false, nil
	}
	metrics.CacheLookups.WithLabelValues("chain", "hit").Inc()
	return def, true, nil
}

// LookupReal calls the real database directly, bounded by the
// concurrency semaphore. It never touches the cache chain; callers are
// responsible for calling Cache afterward with the selected definition.
func (c *Chain) LookupReal(mac net.HardwareAddr) ([]*dhcpv4.Definition, error) {
	c.sem.Acquire()
	defer c.sem.Release()

	start := time.Now()
	defer func() { metrics.DatabaseCallDuration.Observe(time.Since(start).Seconds()) }()

	return c.real.LookupMAC(mac)
}

// Cache populates the cache chain with the resolved definition for mac.
// No-op when caching is disabled.
func (c *Chain) Cache(mac net.HardwareAddr, def *dhcpv4.Definition) error {
	if c.head == nil {
		return nil
	}
	return c.head.CacheMAC(mac, def, false)
}

// LookupCachedOrNil is LookupCached without the ok/err plumbing, for
// callers (like DECLINE/RELEASE handling) that only care whether a
// definition is already known and treat any miss or error as "unknown".
func (c *Chain) LookupCachedOrNil(mac net.HardwareAddr) (*dhcpv4.Definition, error) {
	def, _, err := c.LookupCached(mac)
	return def, err
}

// Reinitialise discards cached state and forces the real database to
// re-resolve on the next miss (spec §8 property 7).
func (c *Chain) Reinitialise() error {
	for node := c.head; node != nil; {
		if err := node.Reinitialise(); err != nil {
			return err
		}
		switch n := node.(type) {
		case *MemoryNode:
			node = n.successor
		case *DiskNode:
			node = n.successor
		default:
			node = nil
		}
	}
	return c.real.Reinitialise()
}

// Resolve is the convenience path the engine uses: cache lookup first,
// then a semaphore-guarded real lookup with selector applied to
// disambiguate multiple candidates, caching the winner.
func (c *Chain) Resolve(mac net.HardwareAddr, selector func([]*dhcpv4.Definition) *dhcpv4.Definition) (*dhcpv4.Definition, error) {
	if def, ok, err := c.LookupCached(mac); err != nil || ok {
		return def, err
	}

	candidates, err := c.LookupReal(mac)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	selected := selector(candidates)
	if selected == nil {
		return nil, nil
	}
	if err := c.Cache(mac, selected); err != nil {
		return nil, err
	}
	return selected, nil
}
