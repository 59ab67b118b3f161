package dhcp

import (
	"net"
	"testing"

	"github.com/staticdhcpd/staticdhcpd/internal/config"
	"github.com/staticdhcpd/staticdhcpd/internal/database"
	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

type fakeDB struct {
	defs map[string][]*dhcpv4.Definition
}

func newFakeDB() *fakeDB { return &fakeDB{defs: make(map[string][]*dhcpv4.Definition)} }

func (f *fakeDB) LookupMAC(mac net.HardwareAddr) ([]*dhcpv4.Definition, error) {
	return f.defs[mac.String()], nil
}

func (f *fakeDB) Reinitialise() error { return nil }

func testDef(mac net.HardwareAddr, ip string) *dhcpv4.Definition {
	return &dhcpv4.Definition{
		IP:         net.ParseIP(ip).To4(),
		LeaseTime:  3600,
		Subnet:     dhcpv4.SubnetID{Name: "default", Serial: 0},
		SubnetMask: net.IPv4Mask(255, 255, 255, 0),
		Gateways:   []net.IP{net.ParseIP("10.0.0.1").To4()},
	}
}

func newTestEngine(t *testing.T, db *fakeDB) (*Engine, net.IP) {
	t.Helper()
	serverIP := net.ParseIP("10.0.0.1").To4()
	chain := database.NewChain(database.NewMemoryNode(nil), db, 4)
	cfg := &config.Config{
		Server: config.ServerConfig{
			Authoritative: true,
		},
	}
	return NewEngine(serverIP, cfg, chain, nil, testLogger()), serverIP
}

func basePacket(msgType dhcpv4.MessageType, mac net.HardwareAddr) *Packet {
	pkt := &Packet{
		Op:      dhcpv4.OpCodeBootRequest,
		HType:   1,
		HLen:    6,
		CHAddr:  mac,
		CIAddr:  net.IPv4zero,
		YIAddr:  net.IPv4zero,
		SIAddr:  net.IPv4zero,
		GIAddr:  net.IPv4zero,
		Options: make(Options),
	}
	pkt.Options.Set(dhcpv4.OptionDHCPMessageType, []byte{byte(msgType)})
	return pkt
}

// S1/S8-property-9: identical input must produce an identical outcome.
func TestHandleIsDeterministic(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:01")
	db := newFakeDB()
	db.defs[mac.String()] = []*dhcpv4.Definition{testDef(mac, "10.0.0.5")}
	engine, serverIP := newTestEngine(t, db)

	pkt := basePacket(dhcpv4.MessageTypeRequest, mac)
	pkt.Options.Set(dhcpv4.OptionServerIdentifier, dhcpv4.IPToBytes(serverIP))

	reply1, outcome1, type1 := engine.Handle(pkt, nil)
	reply2, outcome2, type2 := engine.Handle(pkt, nil)

	if outcome1.String() != outcome2.String() || type1 != type2 {
		t.Fatalf("non-deterministic outcome: (%v,%s) vs (%v,%s)", outcome1, type1, outcome2, type2)
	}
	if (reply1 == nil) != (reply2 == nil) {
		t.Fatalf("non-deterministic reply presence")
	}
	if reply1 != nil && !reply1.YIAddr.Equal(reply2.YIAddr) {
		t.Fatalf("non-deterministic yiaddr: %v vs %v", reply1.YIAddr, reply2.YIAddr)
	}
}

// S1: SELECTING request addressed to us with a matching known IP gets ACKed.
func TestRequestSelectingAck(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:02")
	db := newFakeDB()
	db.defs[mac.String()] = []*dhcpv4.Definition{testDef(mac, "10.0.0.5")}
	engine, serverIP := newTestEngine(t, db)

	pkt := basePacket(dhcpv4.MessageTypeRequest, mac)
	pkt.Options.Set(dhcpv4.OptionServerIdentifier, dhcpv4.IPToBytes(serverIP))
	pkt.Options.Set(dhcpv4.OptionRequestedIP, dhcpv4.IPToBytes(net.ParseIP("10.0.0.5").To4()))

	reply, outcome, logicalType := engine.Handle(pkt, nil)
	if outcome.IsDrop() {
		t.Fatalf("unexpected drop: %v", outcome)
	}
	if logicalType != "REQUEST:SELECTING" {
		t.Fatalf("logicalType = %q, want REQUEST:SELECTING", logicalType)
	}
	if reply == nil || reply.MessageType() != dhcpv4.MessageTypeAck {
		t.Fatalf("reply = %+v, want ACK", reply)
	}
	if !reply.YIAddr.Equal(net.ParseIP("10.0.0.5").To4()) {
		t.Fatalf("yiaddr = %v, want 10.0.0.5", reply.YIAddr)
	}
}

// S2: SELECTING request for the wrong IP gets NAKed.
func TestRequestSelectingNakWrongIP(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:03")
	db := newFakeDB()
	db.defs[mac.String()] = []*dhcpv4.Definition{testDef(mac, "10.0.0.5")}
	engine, serverIP := newTestEngine(t, db)

	pkt := basePacket(dhcpv4.MessageTypeRequest, mac)
	pkt.Options.Set(dhcpv4.OptionServerIdentifier, dhcpv4.IPToBytes(serverIP))
	pkt.Options.Set(dhcpv4.OptionRequestedIP, dhcpv4.IPToBytes(net.ParseIP("10.0.0.9").To4()))

	reply, outcome, _ := engine.Handle(pkt, nil)
	if outcome.IsDrop() {
		t.Fatalf("unexpected drop: %v", outcome)
	}
	if reply == nil || reply.MessageType() != dhcpv4.MessageTypeNak {
		t.Fatalf("reply = %+v, want NAK", reply)
	}
}

// S3: DISCOVER from an unknown MAC with authoritative=false raises a
// blacklist and sends no reply.
func TestDiscoverUnknownNonAuthoritative(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:04")
	db := newFakeDB()
	engine, _ := newTestEngine(t, db)
	engine.cfg.Server.Authoritative = false

	pkt := basePacket(dhcpv4.MessageTypeDiscover, mac)
	reply, outcome, _ := engine.Handle(pkt, nil)

	if reply != nil {
		t.Fatalf("expected no reply, got %+v", reply)
	}
	if outcome.String() != "drop(blacklist): unauthoritative DISCOVER miss" {
		t.Fatalf("outcome = %v, want blacklist drop", outcome)
	}
}

// DISCOVER from an unknown MAC with authoritative=true sends a NAK.
func TestDiscoverUnknownAuthoritative(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:05")
	db := newFakeDB()
	engine, _ := newTestEngine(t, db)

	pkt := basePacket(dhcpv4.MessageTypeDiscover, mac)
	reply, outcome, _ := engine.Handle(pkt, nil)

	if outcome.IsDrop() {
		t.Fatalf("unexpected drop: %v", outcome)
	}
	if reply == nil || reply.MessageType() != dhcpv4.MessageTypeNak {
		t.Fatalf("reply = %+v, want NAK", reply)
	}
}

// S4: a rapid-commit DISCOVER from a known MAC is ACKed directly.
func TestDiscoverRapidCommit(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:06")
	db := newFakeDB()
	db.defs[mac.String()] = []*dhcpv4.Definition{testDef(mac, "10.0.0.7")}
	engine, _ := newTestEngine(t, db)

	pkt := basePacket(dhcpv4.MessageTypeDiscover, mac)
	pkt.Options.Set(dhcpv4.OptionRapidCommit, nil)

	reply, outcome, logicalType := engine.Handle(pkt, nil)
	if outcome.IsDrop() {
		t.Fatalf("unexpected drop: %v", outcome)
	}
	if logicalType != "DISCOVER" {
		t.Fatalf("logicalType = %q, want DISCOVER", logicalType)
	}
	if reply == nil || reply.MessageType() != dhcpv4.MessageTypeAck {
		t.Fatalf("reply = %+v, want ACK (rapid commit)", reply)
	}
	if !reply.Options.Has(dhcpv4.OptionRapidCommit) {
		t.Fatalf("expected option 80 echoed on rapid-commit reply")
	}
}

// A DISCOVER without rapid commit gets an OFFER, not an ACK.
func TestDiscoverWithoutRapidCommit(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:07")
	db := newFakeDB()
	db.defs[mac.String()] = []*dhcpv4.Definition{testDef(mac, "10.0.0.8")}
	engine, _ := newTestEngine(t, db)

	pkt := basePacket(dhcpv4.MessageTypeDiscover, mac)
	reply, outcome, _ := engine.Handle(pkt, nil)
	if outcome.IsDrop() {
		t.Fatalf("unexpected drop: %v", outcome)
	}
	if reply == nil || reply.MessageType() != dhcpv4.MessageTypeOffer {
		t.Fatalf("reply = %+v, want OFFER", reply)
	}
}

// S5: a relayed packet with the relay on the allow-list is accepted.
func TestRelayAccepted(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:08")
	db := newFakeDB()
	db.defs[mac.String()] = []*dhcpv4.Definition{testDef(mac, "10.0.0.9")}
	engine, _ := newTestEngine(t, db)
	engine.cfg.Server.AllowDHCPRelays = true
	engine.cfg.Server.AllowedDHCPRelays = []string{"10.0.5.1"}

	pkt := basePacket(dhcpv4.MessageTypeDiscover, mac)
	pkt.GIAddr = net.ParseIP("10.0.5.1").To4()

	reply, outcome, _ := engine.Handle(pkt, nil)
	if outcome.IsDrop() {
		t.Fatalf("unexpected drop: %v", outcome)
	}
	if reply == nil {
		t.Fatalf("expected a reply for an allow-listed relay")
	}
}

// A relayed packet whose relay is not on the allow-list is rejected
// without a blacklist (policy rejection).
func TestRelayRejectedNotAllowListed(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:09")
	db := newFakeDB()
	db.defs[mac.String()] = []*dhcpv4.Definition{testDef(mac, "10.0.0.9")}
	engine, _ := newTestEngine(t, db)
	engine.cfg.Server.AllowDHCPRelays = true
	engine.cfg.Server.AllowedDHCPRelays = []string{"10.0.5.1"}

	pkt := basePacket(dhcpv4.MessageTypeDiscover, mac)
	pkt.GIAddr = net.ParseIP("10.0.5.2").To4()

	reply, outcome, _ := engine.Handle(pkt, nil)
	if reply != nil {
		t.Fatalf("expected no reply, got %+v", reply)
	}
	if outcome.String() != "drop(unacceptable): giaddr not in allowed relay list" {
		t.Fatalf("outcome = %v, want unacceptable drop", outcome)
	}
}

// S6: an option value over 255 bytes is split across multiple same-code
// TLVs on encode and reassembled identically on decode.
func TestOptionSplitRoundTrip(t *testing.T) {
	big := make([]byte, 300)
	for i := range big {
		big[i] = byte(i)
	}
	opts := make(Options)
	opts.Set(dhcpv4.OptionVendorSpecific, big)

	encoded := opts.Encode(nil, 0, false)
	decoded, _, err := DecodeOptions(encoded)
	if err != nil {
		t.Fatalf("DecodeOptions: %v", err)
	}
	got, ok := decoded.Get(dhcpv4.OptionVendorSpecific)
	if !ok {
		t.Fatalf("option missing after round trip")
	}
	if len(got) != len(big) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(big))
	}
	for i := range big {
		if got[i] != big[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], big[i])
		}
	}
}

// REQUEST sub-mode classification must partition strictly on
// (sid, ciaddr, req_ip): an unrecognised shape is discarded, not crashed.
func TestRequestUnrecognisedShapeDiscarded(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:0a")
	db := newFakeDB()
	engine, _ := newTestEngine(t, db)

	pkt := basePacket(dhcpv4.MessageTypeRequest, mac)
	// No sid, no ciaddr, no req_ip: matches none of the three branches.
	reply, outcome, logicalType := engine.Handle(pkt, nil)

	if reply != nil {
		t.Fatalf("expected no reply, got %+v", reply)
	}
	if outcome.IsDrop() {
		t.Fatalf("unrecognised shape must not raise a drop Outcome, got %v", outcome)
	}
	if logicalType != "OTHER" {
		t.Fatalf("logicalType = %q, want OTHER", logicalType)
	}
}

// INIT-REBOOT with a matching known IP is ACKed; a mismatch is NAKed.
func TestRequestInitReboot(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:0b")
	db := newFakeDB()
	db.defs[mac.String()] = []*dhcpv4.Definition{testDef(mac, "10.0.0.11")}
	engine, _ := newTestEngine(t, db)

	pkt := basePacket(dhcpv4.MessageTypeRequest, mac)
	pkt.Options.Set(dhcpv4.OptionRequestedIP, dhcpv4.IPToBytes(net.ParseIP("10.0.0.11").To4()))

	reply, outcome, logicalType := engine.Handle(pkt, nil)
	if outcome.IsDrop() {
		t.Fatalf("unexpected drop: %v", outcome)
	}
	if logicalType != "REQUEST:INIT-REBOOT" {
		t.Fatalf("logicalType = %q, want REQUEST:INIT-REBOOT", logicalType)
	}
	if reply == nil || reply.MessageType() != dhcpv4.MessageTypeAck {
		t.Fatalf("reply = %+v, want ACK", reply)
	}
}

// RENEW (unicast-sourced, ciaddr set, no sid/req_ip) for a known MAC/IP
// pairing is ACKed directly to the client's ciaddr.
func TestRequestRenew(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:0c")
	db := newFakeDB()
	db.defs[mac.String()] = []*dhcpv4.Definition{testDef(mac, "10.0.0.12")}
	engine, _ := newTestEngine(t, db)

	pkt := basePacket(dhcpv4.MessageTypeRequest, mac)
	pkt.CIAddr = net.ParseIP("10.0.0.12").To4()
	transportSrc := &net.UDPAddr{IP: pkt.CIAddr, Port: 68}

	reply, outcome, logicalType := engine.Handle(pkt, transportSrc)
	if outcome.IsDrop() {
		t.Fatalf("unexpected drop: %v", outcome)
	}
	if logicalType != "REQUEST:RENEW" {
		t.Fatalf("logicalType = %q, want REQUEST:RENEW", logicalType)
	}
	if reply == nil || reply.MessageType() != dhcpv4.MessageTypeAck {
		t.Fatalf("reply = %+v, want ACK", reply)
	}
	if !reply.ResponseIP.Equal(pkt.CIAddr) {
		t.Fatalf("ResponseIP = %v, want unicast to ciaddr %v", reply.ResponseIP, pkt.CIAddr)
	}
}
