package database

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

var (
	bucketMACs    = []byte("maps")
	bucketSubnets = []byte("subnets")
)

// DiskNode is the persistent on-disk cache node (spec §4.2): the same
// MAC/subnet decomposition as MemoryNode, serialised to a compact
// textual form in two embedded-database tables.
type DiskNode struct {
	mu        sync.Mutex
	db        *bolt.DB
	path      string
	temporary bool
	successor Node
}

// NewDiskNode opens (or creates) the bbolt file at path. If path is
// empty, a private temporary file is created (spec §4.2).
func NewDiskNode(path string, successor Node) (*DiskNode, error) {
	temporary := path == ""
	if temporary {
		f, err := os.CreateTemp("", "staticdhcpd-cache-*.db")
		if err != nil {
			return nil, fmt.Errorf("creating private cache file: %w", err)
		}
		path = f.Name()
		f.Close()
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening disk cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMACs); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketSubnets)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialising disk cache buckets: %w", err)
	}

	return &DiskNode{db: db, path: path, temporary: temporary, successor: successor}, nil
}

// Close releases the underlying database file, removing it first if it
// was a private temporary file.
func (n *DiskNode) Close() error {
	err := n.db.Close()
	if n.temporary {
		os.Remove(n.path)
	}
	return err
}

// LookupMAC implements Node.
func (n *DiskNode) LookupMAC(addr net.HardwareAddr) (*dhcpv4.Definition, error) {
	key := MACFromHardwareAddr(addr)

	var mr macRecord
	var sr subnetRecord
	var found bool
	err := n.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMACs).Get(key[:])
		if raw == nil {
			return nil
		}
		m, err := decodeMACRecord(string(raw))
		if err != nil {
			return err
		}
		subRaw := tx.Bucket(bucketSubnets).Get(subnetKey(m.subnet))
		if subRaw == nil {
			return nil
		}
		s, err := decodeSubnetRecord(string(subRaw))
		if err != nil {
			return err
		}
		mr, sr, found = m, s, true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading disk cache for %s: %w", addr, err)
	}
	if found {
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
func (n *DiskNode) CacheMAC(addr net.HardwareAddr, def *dhcpv4.Definition, fromSuccessor bool) error {
	mr, sr := splitDefinition(def)
	key := MACFromHardwareAddr(addr)

	n.mu.Lock()
	err := n.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketMACs).Put(key[:], []byte(encodeMACRecord(mr))); err != nil {
			return err
		}
		return tx.Bucket(bucketSubnets).Put(subnetKey(mr.subnet), []byte(encodeSubnetRecord(sr)))
	})
	n.mu.Unlock()
	if err != nil {
		return fmt.Errorf("writing disk cache for %s: %w", addr, err)
	}

	if !fromSuccessor && n.successor != nil {
		return n.successor.CacheMAC(addr, def, false)
	}
	return nil
}

// Reinitialise implements Node.
func (n *DiskNode) Reinitialise() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketMACs); err != nil {
			return err
		}
		if err := tx.DeleteBucket(bucketSubnets); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(bucketMACs); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketSubnets)
		return err
	})
}

func subnetKey(id dhcpv4.SubnetID) []byte {
	return []byte(id.Name + "\x00" + strconv.Itoa(id.Serial))
}

// --- compact textual encoding ---
//
// Each record is a semicolon-joined list of field=value pairs; IP lists
// are comma-joined dotted quads; the hostname and domain name are
// hex-encoded since ';'/',' cannot appear in them.

func encodeMACRecord(mr macRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ip=%s;hostname=%s;subnet=%s;serial=%d",
		mr.ip.String(), hex.EncodeToString([]byte(mr.hostname)), mr.subnet.Name, mr.subnet.Serial)
	if len(mr.extra) > 0 {
		b.WriteString(";extra=")
		first := true
		for k, v := range mr.extra {
			if !first {
				b.WriteByte(',')
			}
			first = false
			fmt.Fprintf(&b, "%s:%s", hex.EncodeToString([]byte(k)), hex.EncodeToString([]byte(v)))
		}
	}
	return b.String()
}

func decodeMACRecord(s string) (macRecord, error) {
	var mr macRecord
	for _, field := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch k {
		case "ip":
			mr.ip = net.ParseIP(v).To4()
		case "hostname":
			raw, err := hex.DecodeString(v)
			if err != nil {
				return mr, fmt.Errorf("decoding hostname: %w", err)
			}
			mr.hostname = string(raw)
		case "subnet":
			mr.subnet.Name = v
		case "serial":
			n, err := strconv.Atoi(v)
			if err != nil {
				return mr, fmt.Errorf("decoding serial: %w", err)
			}
			mr.subnet.Serial = n
		case "extra":
			if v == "" {
				continue
			}
			mr.extra = make(map[string]string)
			for _, pair := range strings.Split(v, ",") {
				hk, hv, ok := strings.Cut(pair, ":")
				if !ok {
					continue
				}
				kb, err := hex.DecodeString(hk)
				if err != nil {
					return mr, err
				}
				vb, err := hex.DecodeString(hv)
				if err != nil {
					return mr, err
				}
				mr.extra[string(kb)] = string(vb)
			}
		}
	}
	return mr, nil
}

func encodeIPList(ips []net.IP) string {
	parts := make([]string, len(ips))
	for i, ip := range ips {
		parts[i] = ip.String()
	}
	return strings.Join(parts, ",")
}

func decodeIPList(s string) []net.IP {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]net.IP, 0, len(parts))
	for _, p := range parts {
		if ip := net.ParseIP(p); ip != nil {
			out = append(out, ip.To4())
		}
	}
	return out
}

func encodeSubnetRecord(sr subnetRecord) string {
	mask := ""
	if sr.mask != nil {
		mask = net.IP(sr.mask).String()
	}
	broadcast := ""
	if sr.broadcast != nil {
		broadcast = sr.broadcast.String()
	}
	return fmt.Sprintf("lease_time=%d;gateways=%s;mask=%s;broadcast=%s;domain_name=%s;dns=%s;ntp=%s",
		sr.leaseTime, encodeIPList(sr.gateways), mask, broadcast,
		hex.EncodeToString([]byte(sr.domainName)), encodeIPList(sr.dns), encodeIPList(sr.ntp))
}

func decodeSubnetRecord(s string) (subnetRecord, error) {
	var sr subnetRecord
	for _, field := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch k {
		case "lease_time":
			n, err := strconv.Atoi(v)
			if err != nil {
				return sr, fmt.Errorf("decoding lease_time: %w", err)
			}
			sr.leaseTime = n
		case "gateways":
			sr.gateways = decodeIPList(v)
		case "mask":
			if v != "" {
				if ip := net.ParseIP(v); ip != nil {
					sr.mask = net.IPMask(ip.To4())
				}
			}
		case "broadcast":
			if v != "" {
				sr.broadcast = net.ParseIP(v).To4()
			}
		case "domain_name":
			raw, err := hex.DecodeString(v)
			if err != nil {
				return sr, fmt.Errorf("decoding domain_name: %w", err)
			}
			sr.domainName = string(raw)
		case "dns":
			sr.dns = decodeIPList(v)
		case "ntp":
			sr.ntp = decodeIPList(v)
		}
	}
	return sr, nil
}
