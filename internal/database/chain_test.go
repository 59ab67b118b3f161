package database

import (
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

type fakeDB struct {
	mu   sync.Mutex
	defs map[string][]*dhcpv4.Definition
	hits int
}

func newFakeDB() *fakeDB {
	return &fakeDB{defs: make(map[string][]*dhcpv4.Definition)}
}

func (f *fakeDB) LookupMAC(mac net.HardwareAddr) ([]*dhcpv4.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	return f.defs[mac.String()], nil
}

func (f *fakeDB) Reinitialise() error { return nil }

func firstSelector(defs []*dhcpv4.Definition) *dhcpv4.Definition {
	if len(defs) == 0 {
		return nil
	}
	return defs[0]
}

func testDefinition(ip string) *dhcpv4.Definition {
	return &dhcpv4.Definition{
		IP:        net.ParseIP(ip).To4(),
		LeaseTime: 3600,
		Subnet:    dhcpv4.SubnetID{Name: "s", Serial: 0},
	}
}

func TestChainCachesAfterRealLookup(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:01")
	db := newFakeDB()
	db.defs[mac.String()] = []*dhcpv4.Definition{testDefinition("10.0.0.5")}

	chain := NewChain(NewMemoryNode(nil), db, 4)

	def, err := chain.Resolve(mac, firstSelector)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if def == nil || !def.IP.Equal(net.ParseIP("10.0.0.5")) {
		t.Fatalf("Resolve = %+v, want 10.0.0.5", def)
	}
	if db.hits != 1 {
		t.Fatalf("real db hits = %d, want 1", db.hits)
	}

	// Second resolve must come from cache, not hit the real DB again.
	def2, err := chain.Resolve(mac, firstSelector)
	if err != nil {
		t.Fatalf("Resolve (cached): %v", err)
	}
	if !def2.IP.Equal(def.IP) {
		t.Fatalf("cached Resolve = %+v, want %+v", def2, def)
	}
	if db.hits != 1 {
		t.Fatalf("real db hits after cached resolve = %d, want 1", db.hits)
	}
}

func TestChainReinitialiseClearsCache(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:02")
	db := newFakeDB()
	db.defs[mac.String()] = []*dhcpv4.Definition{testDefinition("10.0.0.9")}

	chain := NewChain(NewMemoryNode(nil), db, 4)
	if _, err := chain.Resolve(mac, firstSelector); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := chain.Reinitialise(); err != nil {
		t.Fatalf("Reinitialise: %v", err)
	}

	if _, err := chain.Resolve(mac, firstSelector); err != nil {
		t.Fatalf("Resolve after reinitialise: %v", err)
	}
	if db.hits != 2 {
		t.Fatalf("real db hits after reinitialise+resolve = %d, want 2", db.hits)
	}
}

func TestChainConcurrentLookupsDistinctMACs(t *testing.T) {
	db := newFakeDB()
	const n = 50
	macs := make([]net.HardwareAddr, n)
	for i := 0; i < n; i++ {
		mac, _ := net.ParseMAC(fmt.Sprintf("02:00:00:00:%02x:%02x", i/256, i%256))
		macs[i] = mac
		db.defs[mac.String()] = []*dhcpv4.Definition{testDefinition(fmt.Sprintf("10.0.%d.%d", i/256, i%256))}
	}

	chain := NewChain(NewMemoryNode(nil), db, 8)

	var wg sync.WaitGroup
	results := make([]*dhcpv4.Definition, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			def, err := chain.Resolve(macs[i], firstSelector)
			results[i] = def
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("lookup %d: %v", i, errs[i])
		}
		want := testDefinition(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
		if results[i] == nil || !results[i].IP.Equal(want.IP) {
			t.Fatalf("lookup %d = %+v, want IP %s", i, results[i], want.IP)
		}
	}
}

func TestDiskNodePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/cache.db"

	mac, _ := net.ParseMAC("02:00:00:00:00:03")
	def := testDefinition("10.0.0.20")
	def.Hostname = "host-a"

	n1, err := NewDiskNode(path, nil)
	if err != nil {
		t.Fatalf("NewDiskNode: %v", err)
	}
	if err := n1.CacheMAC(mac, def, false); err != nil {
		t.Fatalf("CacheMAC: %v", err)
	}
	n1.db.Close() // close without removing — not a temp file

	n2, err := NewDiskNode(path, nil)
	if err != nil {
		t.Fatalf("reopen NewDiskNode: %v", err)
	}
	defer n2.Close()

	got, err := n2.LookupMAC(mac)
	if err != nil {
		t.Fatalf("LookupMAC: %v", err)
	}
	if got == nil || !got.IP.Equal(def.IP) || got.Hostname != "host-a" {
		t.Fatalf("LookupMAC = %+v, want IP %s hostname host-a", got, def.IP)
	}
}
