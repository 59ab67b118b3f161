// Package dhcp implements the DHCPv4 wire codec, engine, network link,
// dispatcher and statistics sink of the static DHCP server core.
package dhcp

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

// Packet represents a decoded DHCPv4 packet (RFC 2131 §2).
type Packet struct {
	Op      dhcpv4.OpCode       // Message op code: 1=BOOTREQUEST, 2=BOOTREPLY
	HType   dhcpv4.HardwareType // Hardware address type (1=Ethernet)
	HLen    byte                // Hardware address length (6 for Ethernet)
	Hops    byte                // Relay hops
	XID     uint32              // Transaction ID
	Secs    uint16              // Seconds elapsed
	Flags   uint16              // Flags (bit 0 = broadcast)
	CIAddr  net.IP              // Client IP address
	YIAddr  net.IP              // 'Your' (client) IP address
	SIAddr  net.IP              // Next server IP address
	GIAddr  net.IP              // Relay agent IP address
	CHAddr  net.HardwareAddr    // Client hardware address
	SName   [64]byte            // Server host name
	File    [128]byte           // Boot file name
	Options Options             // DHCP options

	// TerminalPad records whether a trailing pad byte (0x00) immediately
	// followed the end-of-options marker (255) on decode. The spec's
	// word-align feature: carried so an unmutated re-encode is
	// byte-identical (§9 design note (b)).
	TerminalPad bool

	// RequestFilter, when non-nil, is the union of the originating
	// request's parameter-request-list (option 55) and the mandatory
	// option set; Encode drops any option outside it. Set by NewReply
	// from the request's own option-55, per spec §3/§8 property 4.
	RequestFilter []dhcpv4.OptionCode

	// MaxEncodedSize, when non-zero, caps the size of the options block
	// Encode produces (the min of options 22 and 57 on the request, per
	// spec §4.1). The mandatory set is never truncated.
	MaxEncodedSize int

	// ReceivingInterface is set by the server to indicate which network
	// interface this packet arrived on. Not part of the wire format.
	ReceivingInterface string

	// ArrivedOnProxyPort records whether this packet was read from the
	// secondary PXE/proxy listener rather than the main server port.
	ArrivedOnProxyPort bool

	// ResponseIP and ResponsePort let the engine or an extension hook
	// override the network link's normal responder-selection destination
	// (spec §4.3). ResponsePort is used only when ResponseIP is set (0
	// means the client port). ResponseSourcePort is not read by the
	// network link.
	ResponseIP         net.IP
	ResponsePort        int
	ResponseSourcePort  int
}

// packetPool reuses packet buffers to reduce allocations in the hot path.
var packetPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, dhcpv4.MaxPacketSize)
	},
}

// GetBuffer returns a buffer from the pool.
func GetBuffer() []byte {
	return packetPool.Get().([]byte)
}

// PutBuffer returns a buffer to the pool.
func PutBuffer(b []byte) {
	for i := range b {
		b[i] = 0
	}
	packetPool.Put(b)
}

// findMagicCookie searches forward from offset 236 for the DHCP magic
// cookie, tolerating padding some clients insert before it (spec §4.1).
func findMagicCookie(data []byte) (int, bool) {
	for i := 236; i+4 <= len(data); i++ {
		if data[i] == dhcpv4.MagicCookie[0] && data[i+1] == dhcpv4.MagicCookie[1] &&
			data[i+2] == dhcpv4.MagicCookie[2] && data[i+3] == dhcpv4.MagicCookie[3] {
			return i, true
		}
	}
	return 0, false
}

// DecodePacket parses a raw DHCPv4 packet from bytes (RFC 2131 §2).
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) < 240 {
		return nil, fmt.Errorf("packet too short: %d bytes (minimum 240)", len(data))
	}

	p := &Packet{}
	p.Op = dhcpv4.OpCode(data[0])
	p.HType = dhcpv4.HardwareType(data[1])
	p.HLen = data[2]
	p.Hops = data[3]
	p.XID = binary.BigEndian.Uint32(data[4:8])
	p.Secs = binary.BigEndian.Uint16(data[8:10])
	p.Flags = binary.BigEndian.Uint16(data[10:12])
	p.CIAddr = net.IP(make([]byte, 4))
	copy(p.CIAddr, data[12:16])
	p.YIAddr = net.IP(make([]byte, 4))
	copy(p.YIAddr, data[16:20])
	p.SIAddr = net.IP(make([]byte, 4))
	copy(p.SIAddr, data[20:24])
	p.GIAddr = net.IP(make([]byte, 4))
	copy(p.GIAddr, data[24:28])

	chaddr := make([]byte, 16)
	copy(chaddr, data[28:44])
	hlen := int(p.HLen)
	if hlen < 0 || hlen > 16 {
		hlen = 6
	}
	p.CHAddr = net.HardwareAddr(chaddr[:hlen])

	copy(p.SName[:], data[44:108])
	copy(p.File[:], data[108:236])

	cookieOff, ok := findMagicCookie(data)
	if !ok {
		return nil, fmt.Errorf("not a DHCP packet: magic cookie not found")
	}

	optStart := cookieOff + 4
	if optStart < len(data) {
		opts, terminalPad, err := DecodeOptions(data[optStart:])
		if err != nil {
			return nil, fmt.Errorf("decoding options: %w", err)
		}
		p.Options = opts
		p.TerminalPad = terminalPad
	} else {
		p.Options = make(Options)
	}

	return p, nil
}

// Encode serializes a DHCPv4 packet to bytes (RFC 2131 §2, spec §3).
//
// Encode is a pure function of the packet's current state: it never
// mutates p.
func (p *Packet) Encode() ([]byte, error) {
	optBytes := p.Options.Encode(p.RequestFilter, p.MaxEncodedSize, p.TerminalPad)
	totalLen := 240 + len(optBytes)
	if totalLen < dhcpv4.MinPacketSize {
		totalLen = dhcpv4.MinPacketSize
	}

	buf := make([]byte, totalLen)
	buf[0] = byte(p.Op)
	buf[1] = byte(p.HType)
	buf[2] = p.HLen
	buf[3] = p.Hops
	binary.BigEndian.PutUint32(buf[4:8], p.XID)
	binary.BigEndian.PutUint16(buf[8:10], p.Secs)
	binary.BigEndian.PutUint16(buf[10:12], p.Flags)

	if p.CIAddr != nil {
		copy(buf[12:16], p.CIAddr.To4())
	}
	if p.YIAddr != nil {
		copy(buf[16:20], p.YIAddr.To4())
	}
	if p.SIAddr != nil {
		copy(buf[20:24], p.SIAddr.To4())
	}
	if p.GIAddr != nil {
		copy(buf[24:28], p.GIAddr.To4())
	}
	if p.CHAddr != nil {
		copy(buf[28:44], p.CHAddr)
	}
	copy(buf[44:108], p.SName[:])
	copy(buf[108:236], p.File[:])

	copy(buf[236:240], dhcpv4.MagicCookie)
	copy(buf[240:], optBytes)

	return buf, nil
}

// MessageType returns the DHCP message type from the packet options.
func (p *Packet) MessageType() dhcpv4.MessageType {
	if data, ok := p.Options[dhcpv4.OptionDHCPMessageType]; ok && len(data) == 1 {
		return dhcpv4.MessageType(data[0])
	}
	return 0
}

// RequestedIP returns the requested IP address from option 50.
func (p *Packet) RequestedIP() net.IP {
	if data, ok := p.Options[dhcpv4.OptionRequestedIP]; ok && len(data) == 4 {
		return net.IP(data)
	}
	return nil
}

// ServerIdentifier returns the server identifier from option 54.
func (p *Packet) ServerIdentifier() net.IP {
	if data, ok := p.Options[dhcpv4.OptionServerIdentifier]; ok && len(data) == 4 {
		return net.IP(data)
	}
	return nil
}

// ClientIdentifier returns the client identifier from option 61.
func (p *Packet) ClientIdentifier() []byte {
	if data, ok := p.Options[dhcpv4.OptionClientIdentifier]; ok {
		return data
	}
	return nil
}

// Hostname returns the hostname from option 12.
func (p *Packet) Hostname() string {
	if data, ok := p.Options[dhcpv4.OptionHostname]; ok {
		return string(data)
	}
	return ""
}

// ParameterRequestList returns the list of requested option codes from
// option 55, or nil if absent.
func (p *Packet) ParameterRequestList() []dhcpv4.OptionCode {
	data, ok := p.Options[dhcpv4.OptionParameterRequestList]
	if !ok {
		return nil
	}
	codes := make([]dhcpv4.OptionCode, len(data))
	for i, b := range data {
		codes[i] = dhcpv4.OptionCode(b)
	}
	return codes
}

// IsBroadcast returns true if the broadcast flag is set.
func (p *Packet) IsBroadcast() bool {
	return p.Flags&0x8000 != 0
}

// IsRelayed returns true if the packet was relayed (GIAddr is non-zero).
func (p *Packet) IsRelayed() bool {
	return p.GIAddr != nil && !p.GIAddr.Equal(net.IPv4zero)
}

// IsBroadcastSourced reports whether the packet should be treated as
// broadcast-originated for responder-selection purposes. Per spec §9
// design note (c): use CIAddr when the packet was relayed, otherwise the
// transport source IP.
func (p *Packet) IsBroadcastSourced(transportSrc net.IP) bool {
	if p.IsRelayed() {
		return dhcpv4.IsUnspecifiedSource(p.CIAddr)
	}
	return dhcpv4.IsUnspecifiedSource(transportSrc)
}

// RapidCommitRequested reports whether option 80 is present.
func (p *Packet) RapidCommitRequested() bool {
	_, ok := p.Options[dhcpv4.OptionRapidCommit]
	return ok
}

// NewReply creates a response packet from a request, with common fields
// pre-filled and the mandatory message-type/server-identifier options
// set (RFC 2131 §4.3.1).
func (p *Packet) NewReply(msgType dhcpv4.MessageType, serverIP net.IP) *Packet {
	reply := &Packet{
		Op:      dhcpv4.OpCodeBootReply,
		HType:   p.HType,
		HLen:    p.HLen,
		Hops:    0,
		XID:     p.XID,
		Secs:    0,
		Flags:   p.Flags,
		CIAddr:  net.IPv4zero,
		YIAddr:  net.IPv4zero,
		SIAddr:  serverIP,
		GIAddr:  make(net.IP, 4),
		CHAddr:  make(net.HardwareAddr, len(p.CHAddr)),
		Options: make(Options),
	}
	if gi := p.GIAddr.To4(); gi != nil {
		copy(reply.GIAddr, gi)
	} else {
		copy(reply.GIAddr, p.GIAddr)
	}
	copy(reply.CHAddr, p.CHAddr)

	reply.Options[dhcpv4.OptionDHCPMessageType] = []byte{byte(msgType)}
	reply.Options[dhcpv4.OptionServerIdentifier] = dhcpv4.IPToBytes(serverIP)

	if clientID := p.ClientIdentifier(); clientID != nil {
		reply.Options[dhcpv4.OptionClientIdentifier] = clientID
	}

	if prl := p.ParameterRequestList(); prl != nil {
		reply.RequestFilter = mergeMandatory(prl)
	}
	if maxSize := p.maxOfferedSize(); maxSize > 0 {
		reply.MaxEncodedSize = maxSize
	}

	return reply
}

// maxOfferedSize returns the smaller of options 22 and 57, if present.
func (p *Packet) maxOfferedSize() int {
	best := 0
	if data, ok := p.Options[dhcpv4.OptionMaxDatagramReassembly]; ok && len(data) == 2 {
		best = int(binary.BigEndian.Uint16(data))
	}
	if data, ok := p.Options[dhcpv4.OptionMaxDHCPMessageSize]; ok && len(data) == 2 {
		v := int(binary.BigEndian.Uint16(data))
		if best == 0 || v < best {
			best = v
		}
	}
	return best
}

func mergeMandatory(prl []dhcpv4.OptionCode) []dhcpv4.OptionCode {
	seen := make(map[dhcpv4.OptionCode]bool, len(prl)+len(mandatoryOptionSet))
	out := make([]dhcpv4.OptionCode, 0, len(prl)+len(mandatoryOptionSet))
	for _, c := range prl {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range mandatoryOptionSet {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// mandatoryOptionSet is the set named in spec §3: {1,3,6,15,51,53,54,58,59}.
var mandatoryOptionSet = []dhcpv4.OptionCode{
	dhcpv4.OptionSubnetMask,
	dhcpv4.OptionRouter,
	dhcpv4.OptionDomainNameServer,
	dhcpv4.OptionDomainName,
	dhcpv4.OptionIPLeaseTime,
	dhcpv4.OptionDHCPMessageType,
	dhcpv4.OptionServerIdentifier,
	dhcpv4.OptionRenewalTime,
	dhcpv4.OptionRebindingTime,
}

// VendorClassID returns the vendor class identifier from option 60.
func (p *Packet) VendorClassID() string {
	if data, ok := p.Options[dhcpv4.OptionVendorClassID]; ok {
		return string(data)
	}
	return ""
}

// UserClassID returns the user class identifier from option 77 (RFC 3004).
func (p *Packet) UserClassID() string {
	if data, ok := p.Options[dhcpv4.OptionUserClass]; ok {
		return string(data)
	}
	return ""
}

// MaxMessageSize returns the maximum DHCP message size from option 57.
func (p *Packet) MaxMessageSize() uint16 {
	if data, ok := p.Options[dhcpv4.OptionMaxDHCPMessageSize]; ok && len(data) == 2 {
		return binary.BigEndian.Uint16(data)
	}
	return 0
}

// --- Packet transformations (spec §4.1) ---

// clientOriginatedOptions are stripped from a request when it is turned
// into a reply: 22, 50, 55, 57, 61, 118, plus the Secs header field.
var clientOriginatedOptions = []dhcpv4.OptionCode{
	dhcpv4.OptionMaxDatagramReassembly,
	dhcpv4.OptionRequestedIP,
	dhcpv4.OptionParameterRequestList,
	dhcpv4.OptionMaxDHCPMessageSize,
	dhcpv4.OptionClientIdentifier,
	dhcpv4.OptionSubnetSelection,
}

func stripClientOriginated(reply *Packet) {
	for _, c := range clientOriginatedOptions {
		delete(reply.Options, c)
	}
	reply.Secs = 0
}

// transformToACK prepares req as a DHCPACK reply.
func transformToACK(req *Packet, serverIP net.IP) *Packet {
	reply := req.NewReply(dhcpv4.MessageTypeAck, serverIP)
	reply.HLen = 6
	stripClientOriginated(reply)
	return reply
}

// transformToOFFER prepares req as a DHCPOFFER reply.
func transformToOFFER(req *Packet, serverIP net.IP) *Packet {
	reply := req.NewReply(dhcpv4.MessageTypeOffer, serverIP)
	reply.HLen = 6
	stripClientOriginated(reply)
	return reply
}

// transformToNAK prepares req as a DHCPNAK reply, clearing address and
// boot-server fields per spec §4.1.
func transformToNAK(req *Packet, serverIP net.IP) *Packet {
	reply := req.NewReply(dhcpv4.MessageTypeNak, serverIP)
	reply.HLen = 6
	stripClientOriginated(reply)
	reply.CIAddr = net.IPv4zero
	reply.SIAddr = net.IPv4zero
	reply.YIAddr = net.IPv4zero
	for i := range reply.SName {
		reply.SName[i] = 0
	}
	for i := range reply.File {
		reply.File[i] = 0
	}
	delete(reply.Options, dhcpv4.OptionIPLeaseTime)
	return reply
}

// transformToLeaseActive prepares req as a DHCPLEASEACTIVE reply.
func transformToLeaseActive(req *Packet, serverIP net.IP) *Packet {
	reply := req.NewReply(dhcpv4.MessageTypeLeaseActive, serverIP)
	reply.HLen = 6
	stripClientOriginated(reply)
	return reply
}

// transformToLeaseUnassigned prepares req as a DHCPLEASEUNASSIGNED reply.
func transformToLeaseUnassigned(req *Packet, serverIP net.IP) *Packet {
	reply := req.NewReply(dhcpv4.MessageTypeLeaseUnassigned, serverIP)
	reply.HLen = 6
	stripClientOriginated(reply)
	return reply
}

// transformToLeaseUnknown prepares req as a DHCPLEASEUNKNOWN reply.
func transformToLeaseUnknown(req *Packet, serverIP net.IP) *Packet {
	reply := req.NewReply(dhcpv4.MessageTypeLeaseUnknown, serverIP)
	reply.HLen = 6
	stripClientOriginated(reply)
	return reply
}
