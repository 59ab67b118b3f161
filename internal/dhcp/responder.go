package dhcp

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/mdlayher/ethernet"
	"github.com/mdlayher/packet"
	"github.com/mdlayher/raw"

	"github.com/staticdhcpd/staticdhcpd/internal/config"
	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

// Responder sends an encoded reply to its destination. The network link
// keeps one Responder per transport (spec §4.3, §9 design note (a)): a
// single interface with two implementations (udpResponder for broadcast
// and unicast, l2Responder for raw frames), rather than per-subnet
// dynamic dispatch.
type Responder interface {
	Send(payload []byte, dst net.Addr) error
	Close() error
}

// udpResponder sends replies through a bound UDP socket: broadcast,
// relay-agent unicast, or client-ciaddr unicast all travel this path.
type udpResponder struct {
	conn *net.UDPConn
}

func newUDPResponder(conn *net.UDPConn) *udpResponder {
	return &udpResponder{conn: conn}
}

func (r *udpResponder) Send(payload []byte, dst net.Addr) error {
	udpAddr, ok := dst.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("udpResponder: unsupported address type %T", dst)
	}
	_, err := r.conn.WriteToUDP(payload, udpAddr)
	return err
}

func (r *udpResponder) Close() error { return nil }

// l2Responder sends replies as raw Ethernet frames straight to a client's
// hardware address, for the case where the client has no configured IP
// and the broadcast bit is unset (spec §4.3). It prefers a mdlayher/raw
// socket and falls back to mdlayher/packet injection when raw fails to
// open (spec §9 design note (a): "one responder interface, three
// variants").
type l2Responder struct {
	raw    net.PacketConn
	packet net.PacketConn
	iface  *net.Interface
	srcMAC net.HardwareAddr
	srcIP  net.IP
	qtags  []config.QTag
	logger *slog.Logger
}

// newL2Responder opens a raw-socket transport on iface, trying
// mdlayher/raw first and mdlayher/packet as a fallback injector.
func newL2Responder(iface *net.Interface, srcIP net.IP, qtags []config.QTag, logger *slog.Logger) (*l2Responder, error) {
	r := &l2Responder{iface: iface, srcMAC: iface.HardwareAddr, srcIP: srcIP, qtags: qtags, logger: logger}

	rawConn, rawErr := raw.ListenPacket(iface, uint16(ethernet.EtherTypeIPv4), nil)
	if rawErr == nil {
		r.raw = rawConn
		return r, nil
	}
	logger.Warn("mdlayher/raw unavailable, falling back to mdlayher/packet", "interface", iface.Name, "error", rawErr)

	packetConn, packetErr := packet.Listen(iface, packet.Raw, int(ethernet.EtherTypeIPv4), nil)
	if packetErr != nil {
		return nil, fmt.Errorf("opening raw transport on %s: raw: %v, packet: %v", iface.Name, rawErr, packetErr)
	}
	r.packet = packetConn
	return r, nil
}

// l2Dest is the destination a Responder accepts for an l2Responder send:
// the client's hardware address plus the IP/port to embed in the
// assembled frame.
type l2Dest struct {
	HardwareAddr net.HardwareAddr
	IP           net.IP
	Port         int
}

func (l2Dest) Network() string { return "l2" }
func (d l2Dest) String() string { return d.HardwareAddr.String() + "/" + d.IP.String() }

func (r *l2Responder) Send(payload []byte, dst net.Addr) error {
	d, ok := dst.(l2Dest)
	if !ok {
		return fmt.Errorf("l2Responder: unsupported address type %T", dst)
	}

	frame, err := buildL2Frame(r.srcMAC, d.HardwareAddr, r.srcIP, d.IP, dhcpv4.ServerPort, d.Port, payload, r.qtags)
	if err != nil {
		return fmt.Errorf("assembling L2 frame: %w", err)
	}

	addr := &raw.Addr{HardwareAddr: d.HardwareAddr}
	if r.raw != nil {
		_, err = r.raw.WriteTo(frame, addr)
		return err
	}
	_, err = r.packet.WriteTo(frame, &packet.Addr{HardwareAddr: d.HardwareAddr})
	return err
}

func (r *l2Responder) Close() error {
	if r.raw != nil {
		return r.raw.Close()
	}
	if r.packet != nil {
		return r.packet.Close()
	}
	return nil
}

// selectResponder implements the spec §4.3 responder-selection table in
// order: an extension-hook override; a relayed request unicast to the
// relay agent; a unicast-sourced request unicast back (a PXE request to
// its ciaddr, or its source IP if ciaddr is unset, on the request's
// source port; any other to its source IP on the client port); a
// broadcast-sourced request with the broadcast
// bit set, or with no L2 raw responder available, broadcasts; a
// broadcast-sourced request with the bit clear and L2 available goes
// out as a raw frame to yiaddr (or broadcasts if yiaddr is unset).
func selectResponder(reply *Packet, req *Packet, transportSrc net.Addr, udp, l2 Responder) (Responder, net.Addr) {
	if reply.ResponseIP != nil {
		port := reply.ResponsePort
		if port == 0 {
			port = dhcpv4.ClientPort
		}
		return udp, &net.UDPAddr{IP: reply.ResponseIP, Port: port}
	}

	if req.IsRelayed() {
		return udp, &net.UDPAddr{IP: req.GIAddr, Port: dhcpv4.ServerPort}
	}

	udpSrc, hasUDPSrc := transportSrc.(*net.UDPAddr)
	broadcastSourced := req.IsBroadcastSourced(transportIP(transportSrc))

	if !broadcastSourced && hasUDPSrc {
		if isPXE(req) {
			dstIP := req.CIAddr
			if dstIP == nil || dstIP.Equal(net.IPv4zero) {
				dstIP = udpSrc.IP
			}
			port := udpSrc.Port
			if port == 0 {
				port = dhcpv4.ServerPort
			}
			return udp, &net.UDPAddr{IP: dstIP, Port: port}
		}
		return udp, &net.UDPAddr{IP: udpSrc.IP, Port: dhcpv4.ClientPort}
	}

	if req.IsBroadcast() || l2 == nil {
		return udp, &net.UDPAddr{IP: net.IPv4bcast, Port: dhcpv4.ClientPort}
	}

	if reply.YIAddr != nil && !reply.YIAddr.Equal(net.IPv4zero) && !reply.YIAddr.Equal(net.IPv4bcast) {
		return l2, l2Dest{HardwareAddr: req.CHAddr, IP: reply.YIAddr, Port: dhcpv4.ClientPort}
	}

	return udp, &net.UDPAddr{IP: net.IPv4bcast, Port: dhcpv4.ClientPort}
}
