package database

import (
	"net"
	"sync"

	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

// macRecord is the MAC-keyed half of a Definition decomposition (spec
// §4.2): everything that varies per client.
type macRecord struct {
	ip       net.IP
	hostname string
	extra    map[string]string
	subnet   dhcpv4.SubnetID
}

// subnetRecord is the (subnet, serial)-keyed half: everything shared by
// every MAC on the same subnet row.
type subnetRecord struct {
	leaseTime  int
	gateways   []net.IP
	mask       net.IPMask
	broadcast  net.IP
	domainName string
	dns        []net.IP
	ntp        []net.IP
}

// MemoryNode is the process-memory cache node (spec §4.2). It splits each
// definition into a MAC record and a subnet record so that many clients
// on one subnet share a single copy of the subnet-wide fields.
type MemoryNode struct {
	mu        sync.RWMutex
	macs      map[MAC]macRecord
	subnets   map[dhcpv4.SubnetID]subnetRecord
	successor Node
}

// NewMemoryNode creates an empty memory cache node, optionally chained to
// a successor node consulted on miss.
func NewMemoryNode(successor Node) *MemoryNode {
	return &MemoryNode{
		macs:      make(map[MAC]macRecord),
		subnets:   make(map[dhcpv4.SubnetID]subnetRecord),
		successor: successor,
	}
}

func splitDefinition(def *dhcpv4.Definition) (macRecord, subnetRecord) {
	mr := macRecord{
		ip:       def.IP,
		hostname: def.Hostname,
		extra:    def.Extra,
		subnet:   def.Subnet,
	}
	sr := subnetRecord{
		leaseTime:  def.LeaseTime,
		gateways:   def.Gateways,
		mask:       def.SubnetMask,
		broadcast:  def.BroadcastAddress,
		domainName: def.DomainName,
		dns:        def.DomainNameServers,
		ntp:        def.NTPServers,
	}
	return mr, sr
}

func joinDefinition(mr macRecord, sr subnetRecord) *dhcpv4.Definition {
	return &dhcpv4.Definition{
		IP:                mr.ip,
		LeaseTime:         sr.leaseTime,
		Subnet:            mr.subnet,
		Hostname:          mr.hostname,
		Gateways:          sr.gateways,
		SubnetMask:        sr.mask,
		BroadcastAddress:  sr.broadcast,
		DomainName:        sr.domainName,
		DomainNameServers: sr.dns,
		NTPServers:        sr.ntp,
		Extra:             mr.extra,
	}
}

// LookupMAC implements Node.
func (n *MemoryNode) LookupMAC(addr net.HardwareAddr) (*dhcpv4.Definition, error) {
	key := MACFromHardwareAddr(addr)

	n.mu.RLock()
	mr, ok := n.macs[key]
	var sr subnetRecord
	if ok {
		sr, ok = n.subnets[mr.subnet]
	}
	n.mu.RUnlock()

	if ok {
		return joinDefinition(mr, sr), nil
	}

	if n.successor == nil {
		return nil, nil
	}
	def, err := n.successor.LookupMAC(addr)
	if err != nil || def == nil {
		return nil, err
	}
	if err := n.CacheMAC(addr, def, true); err != nil {
		return nil, err
	}
	return def, nil
}

// CacheMAC implements Node.
func (n *MemoryNode) CacheMAC(addr net.HardwareAddr, def *dhcpv4.Definition, fromSuccessor bool) error {
	mr, sr := splitDefinition(def)

	n.mu.Lock()
	n.macs[MACFromHardwareAddr(addr)] = mr
	n.subnets[mr.subnet] = sr
	n.mu.Unlock()

	if !fromSuccessor && n.successor != nil {
		return n.successor.CacheMAC(addr, def, false)
	}
	return nil
}

// Reinitialise implements Node.
func (n *MemoryNode) Reinitialise() error {
	n.mu.Lock()
	n.macs = make(map[MAC]macRecord)
	n.subnets = make(map[dhcpv4.SubnetID]subnetRecord)
	n.mu.Unlock()
	return nil
}
