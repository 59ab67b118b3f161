// Package database defines the reference-database contract and the
// lease-definition cache chain layered above it (spec §4.2). The concrete
// backend (SQL, INI, or an operator-supplied source) is opaque to the
// core: only the Database interface it exposes is specified here.
package database

import (
	"net"

	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

// MAC is a fixed-size, comparable rendering of a hardware address, used
// as a map key throughout the cache chain.
type MAC [6]byte

// MACFromHardwareAddr truncates or zero-pads addr to 6 bytes, per the
// data model's "hlen < 6 padded" rule (spec §3).
func MACFromHardwareAddr(addr net.HardwareAddr) MAC {
	var m MAC
	copy(m[:], addr)
	return m
}

// Database is the pluggable reference-database contract (spec §4.2, §6).
// Implementations must be safe to call concurrently.
type Database interface {
	// LookupMAC resolves a MAC to zero, one, or many candidate
	// definitions. A nil, empty slice means no match.
	LookupMAC(mac net.HardwareAddr) ([]*dhcpv4.Definition, error)

	// Reinitialise discards any internal caching and forces the next
	// lookup to hit the underlying store.
	Reinitialise() error
}

// Node is one link in the lease-definition cache chain (spec §4.2). Each
// node may consult a successor on miss and populate itself from the
// result.
type Node interface {
	// LookupMAC returns a cached definition for mac, or nil if this node
	// (and, transitively, its successors) has no record of it.
	LookupMAC(mac net.HardwareAddr) (*dhcpv4.Definition, error)

	// CacheMAC writes def under mac into this node. fromSuccessor is true
	// when the call originates from a downstream fill rather than a
	// fresh database resolution, so a node can avoid re-propagating to
	// the successor it just read from.
	CacheMAC(mac net.HardwareAddr, def *dhcpv4.Definition, fromSuccessor bool) error

	// Reinitialise clears this node's contents (but not its successor's
	// — callers walk the chain to reinitialise all of it).
	Reinitialise() error
}
