package database

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

// fileSubnet is one [[subnets]] row: the shared, subnet-wide half of a
// Definition, keyed by (name, serial) the same way original_source's INI
// backend keys a subnet section.
type fileSubnet struct {
	Name       string   `toml:"name"`
	Serial     int      `toml:"serial"`
	LeaseTime  int      `toml:"lease_time"`
	Gateways   []string `toml:"gateways"`
	SubnetMask string   `toml:"subnet_mask"`
	Broadcast  string   `toml:"broadcast"`
	DomainName string   `toml:"domain_name"`
	DNS        []string `toml:"dns"`
	NTP        []string `toml:"ntp"`
}

// fileMAC is one [[macs]] row: a hardware address bound to an IP and the
// subnet it belongs to.
type fileMAC struct {
	MAC      string            `toml:"mac"`
	IP       string            `toml:"ip"`
	Hostname string            `toml:"hostname"`
	Subnet   string            `toml:"subnet"`
	Serial   int               `toml:"serial"`
	Extra    map[string]string `toml:"extra"`
}

type fileSchema struct {
	Subnets []fileSubnet `toml:"subnets"`
	MACs    []fileMAC    `toml:"macs"`
}

// FileDatabase is a reference-database backend that reads static
// MAC/subnet definitions from a TOML file, grounded on original_source's
// INI broker (a two-section maps/subnets flat file an administrator
// edits by hand) but serialized with the project's existing
// BurntSushi/toml dependency rather than adding a separate INI parser.
type FileDatabase struct {
	mu      sync.RWMutex
	path    string
	records map[MAC][]*dhcpv4.Definition
}

// NewFileDatabase loads path and indexes its contents by MAC.
func NewFileDatabase(path string) (*FileDatabase, error) {
	db := &FileDatabase{path: path}
	if err := db.Reinitialise(); err != nil {
		return nil, err
	}
	return db, nil
}

// Reinitialise re-reads the backing file, replacing the in-memory index
// (spec §4.2 "Reinitialise discards any internal caching").
func (db *FileDatabase) Reinitialise() error {
	data, err := os.ReadFile(db.path)
	if err != nil {
		return fmt.Errorf("reading reference database %s: %w", db.path, err)
	}

	var schema fileSchema
	if _, err := toml.Decode(string(data), &schema); err != nil {
		return fmt.Errorf("parsing reference database %s: %w", db.path, err)
	}

	subnets := make(map[string]fileSubnet, len(schema.Subnets))
	for _, s := range schema.Subnets {
		subnets[subnetKey(s.Name, s.Serial)] = s
	}

	records := make(map[MAC][]*dhcpv4.Definition, len(schema.MACs))
	for _, m := range schema.MACs {
		hw, err := net.ParseMAC(m.MAC)
		if err != nil {
			return fmt.Errorf("reference database %s: invalid mac %q: %w", db.path, m.MAC, err)
		}
		def, err := buildDefinition(m, subnets[subnetKey(m.Subnet, m.Serial)])
		if err != nil {
			return fmt.Errorf("reference database %s: mac %q: %w", db.path, m.MAC, err)
		}
		key := MACFromHardwareAddr(hw)
		records[key] = append(records[key], def)
	}

	db.mu.Lock()
	db.records = records
	db.mu.Unlock()
	return nil
}

// LookupMAC returns every definition recorded for mac (spec §4.2: a
// Database may return more than one candidate, disambiguated by the
// engine's FilterRetrievedDefinitions hook).
func (db *FileDatabase) LookupMAC(mac net.HardwareAddr) ([]*dhcpv4.Definition, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	defs := db.records[MACFromHardwareAddr(mac)]
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]*dhcpv4.Definition, len(defs))
	for i, d := range defs {
		out[i] = d.Clone()
	}
	return out, nil
}

func subnetKey(name string, serial int) string {
	return fmt.Sprintf("%s/%d", name, serial)
}

func buildDefinition(m fileMAC, s fileSubnet) (*dhcpv4.Definition, error) {
	ip := net.ParseIP(m.IP)
	if ip == nil {
		return nil, fmt.Errorf("invalid ip %q", m.IP)
	}

	def := &dhcpv4.Definition{
		IP:        ip,
		Hostname:  m.Hostname,
		Subnet:    dhcpv4.SubnetID{Name: m.Subnet, Serial: m.Serial},
		LeaseTime: s.LeaseTime,
		Extra:     m.Extra,
	}

	for _, gw := range s.Gateways {
		if parsed := net.ParseIP(gw); parsed != nil {
			def.Gateways = append(def.Gateways, parsed)
		}
	}
	if s.SubnetMask != "" {
		if parsed := net.ParseIP(s.SubnetMask); parsed != nil {
			def.SubnetMask = net.IPMask(parsed.To4())
		}
	}
	if s.Broadcast != "" {
		def.BroadcastAddress = net.ParseIP(s.Broadcast)
	}
	def.DomainName = s.DomainName
	for _, dns := range s.DNS {
		if parsed := net.ParseIP(dns); parsed != nil {
			def.DomainNameServers = append(def.DomainNameServers, parsed)
		}
	}
	for _, ntp := range s.NTP {
		if parsed := net.ParseIP(ntp); parsed != nil {
			def.NTPServers = append(def.NTPServers, parsed)
		}
	}

	return def, nil
}
