package dhcp

import (
	"encoding/binary"
	"net"

	"github.com/mdlayher/ethernet"

	"github.com/staticdhcpd/staticdhcpd/internal/config"
)

// buildL2Frame assembles a complete Ethernet+IPv4+UDP frame carrying
// payload, for delivery straight to a client's hardware address when
// neither broadcast nor a routable destination IP is usable (spec §4.3,
// §9 design note (a)). One pure function builds the bytes; responder.go
// decides which raw transport writes them. Only the first entry of qtags
// is written as an 802.1Q tag; any further entries are ignored.
func buildL2Frame(srcMAC, dstMAC net.HardwareAddr, srcIP, dstIP net.IP, srcPort, dstPort int, payload []byte, qtags []config.QTag) ([]byte, error) {
	udpDatagram := buildUDPDatagram(srcIP, dstIP, srcPort, dstPort, payload)

	ipPacket := buildIPv4Packet(srcIP, dstIP, udpDatagram)

	frame := &ethernet.Frame{
		Destination: dstMAC,
		Source:      srcMAC,
		EtherType:   ethernet.EtherTypeIPv4,
		Payload:     ipPacket,
	}
	if len(qtags) > 0 {
		tag := qtags[0]
		frame.VLAN = &ethernet.VLAN{
			Priority:     ethernet.Priority(tag.PCP),
			DropEligible: tag.DEI,
			ID:           uint16(tag.VID),
		}
	}

	return frame.MarshalBinary()
}

// buildUDPDatagram assembles a UDP datagram with its checksum computed
// over the IPv4 pseudo-header (RFC 768).
func buildUDPDatagram(srcIP, dstIP net.IP, srcPort, dstPort int, payload []byte) []byte {
	length := 8 + len(payload)
	datagram := make([]byte, length)
	binary.BigEndian.PutUint16(datagram[0:2], uint16(srcPort))
	binary.BigEndian.PutUint16(datagram[2:4], uint16(dstPort))
	binary.BigEndian.PutUint16(datagram[4:6], uint16(length))
	copy(datagram[8:], payload)

	checksum := udpChecksum(srcIP.To4(), dstIP.To4(), datagram)
	binary.BigEndian.PutUint16(datagram[6:8], checksum)

	return datagram
}

func udpChecksum(srcIP, dstIP net.IP, datagram []byte) uint16 {
	pseudo := make([]byte, 12+len(datagram))
	copy(pseudo[0:4], srcIP)
	copy(pseudo[4:8], dstIP)
	pseudo[9] = 17 // protocol: UDP
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(len(datagram)))
	copy(pseudo[12:], datagram)

	sum := ipChecksumSum(pseudo)
	if sum == 0 {
		return 0xffff // RFC 768: all-zero checksum means "no checksum"; flip to all-ones
	}
	return sum
}

// buildIPv4Packet assembles a minimal IPv4 header around payload
// (already-built UDP datagram) with header checksum computed.
func buildIPv4Packet(srcIP, dstIP net.IP, payload []byte) []byte {
	const headerLen = 20
	total := headerLen + len(payload)

	pkt := make([]byte, total)
	pkt[0] = 0x45 // version 4, IHL 5 (no options)
	pkt[1] = 0x00 // DSCP/ECN
	binary.BigEndian.PutUint16(pkt[2:4], uint16(total))
	binary.BigEndian.PutUint16(pkt[4:6], 0) // identification
	if len(payload) <= 560 {
		binary.BigEndian.PutUint16(pkt[6:8], 0x4000) // flags: don't fragment
	}
	pkt[8] = 128 // TTL
	pkt[9] = 17  // protocol: UDP
	copy(pkt[12:16], srcIP.To4())
	copy(pkt[16:20], dstIP.To4())
	copy(pkt[headerLen:], payload)

	checksum := ipChecksumSum(pkt[:headerLen])
	binary.BigEndian.PutUint16(pkt[10:12], checksum)

	return pkt
}

// ipChecksumSum computes the one's-complement-of-one's-complement-sum
// checksum used by both IPv4 headers and UDP-over-IPv4 (RFC 791/768).
func ipChecksumSum(data []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}
