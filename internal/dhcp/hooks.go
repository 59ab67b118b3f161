package dhcp

import "github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"

// PacketContext carries the classification data every extension hook
// receives alongside the packet (spec §6 hook table).
type PacketContext struct {
	Type       string // logical packet type field; the engine passes it empty to every hook
	MAC        string
	ClientIP   string
	RelayIP    string
	PXEOptions map[string]string
}

// Hooks is the operator extension-hook surface (spec §6). The core calls
// each hook if provided; DefaultHooks provides the no-op behaviour
// documented for each hook's "return false/none" column.
type Hooks interface {
	// Init is called once at startup, before the engine is built.
	Init() error

	// FilterPacket runs before the database lookup. Returning false
	// drops the packet and raises a source blacklist.
	FilterPacket(pkt *Packet, ctx PacketContext) bool

	// HandleUnknownMAC runs on a database miss. A non-nil definition is
	// used as if the database had returned it; nil means "treat as
	// unknown".
	HandleUnknownMAC(pkt *Packet, ctx PacketContext) *dhcpv4.Definition

	// LoadDHCPPacket runs after options are filled, before send.
	// Returning false drops the packet.
	LoadDHCPPacket(pkt *Packet, ctx PacketContext, def *dhcpv4.Definition) bool

	// FilterRetrievedDefinitions runs when the database returns more
	// than one candidate definition. Returning nil drops the packet.
	FilterRetrievedDefinitions(defs []*dhcpv4.Definition, pkt *Packet, ctx PacketContext) *dhcpv4.Definition
}

// DefaultHooks implements Hooks with the behaviour the spec names as
// the absence of an operator-supplied hook: accept everything, take the
// first candidate definition.
type DefaultHooks struct{}

func (DefaultHooks) Init() error { return nil }

func (DefaultHooks) FilterPacket(*Packet, PacketContext) bool { return true }

func (DefaultHooks) HandleUnknownMAC(*Packet, PacketContext) *dhcpv4.Definition { return nil }

func (DefaultHooks) LoadDHCPPacket(*Packet, PacketContext, *dhcpv4.Definition) bool { return true }

func (DefaultHooks) FilterRetrievedDefinitions(defs []*dhcpv4.Definition, _ *Packet, _ PacketContext) *dhcpv4.Definition {
	if len(defs) == 0 {
		return nil
	}
	return defs[0]
}
