package dhcp

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/staticdhcpd/staticdhcpd/internal/config"
	"github.com/staticdhcpd/staticdhcpd/internal/database"
	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

// Engine is the DHCP protocol engine (spec §4.4): packet-type dispatch,
// REQUEST sub-mode classification, option loading from a resolved
// Definition, and the operator extension-hook call.
type Engine struct {
	serverIP net.IP
	cfg      *config.Config
	chain    *database.Chain
	hooks    Hooks
	logger   *slog.Logger
}

// NewEngine creates a DHCP engine bound to a resolved server IP, the
// lease-definition cache chain, and the operator's extension hooks.
func NewEngine(serverIP net.IP, cfg *config.Config, chain *database.Chain, hooks Hooks, logger *slog.Logger) *Engine {
	if hooks == nil {
		hooks = DefaultHooks{}
	}
	return &Engine{serverIP: serverIP, cfg: cfg, chain: chain, hooks: hooks, logger: logger}
}

// Handle classifies and processes a decoded request, returning the reply
// to send (nil if none) and the Outcome describing how the task
// concluded (spec §9). logicalType is the packet classification used for
// the statistics record (spec §4.6). A panic raised while handling the
// packet (for example by an extension hook) is recovered, logged at
// error level with a "critical" attribute, and reported as a drop.
func (e *Engine) Handle(pkt *Packet, transportSrc net.Addr) (reply *Packet, outcome Outcome, logicalType string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic while handling packet", "critical", true, "mac", pkt.CHAddr.String(), "panic", r)
			reply, outcome, logicalType = nil, DropUnacceptable("panic while handling packet"), "OTHER"
		}
	}()

	mac := pkt.CHAddr
	ctx := e.packetContext(pkt, transportSrc, "")

	if outcome := e.checkRelayAcceptance(pkt); outcome.IsDrop() {
		return nil, outcome, "OTHER"
	}

	if !e.hooks.FilterPacket(pkt, ctx) {
		return nil, DropBlacklist("filterPacket hook rejected"), "OTHER"
	}

	switch pkt.MessageType() {
	case dhcpv4.MessageTypeDiscover:
		reply, outcome := e.handleDiscover(pkt, mac)
		return reply, outcome, "DISCOVER"
	case dhcpv4.MessageTypeRequest:
		return e.handleRequest(pkt, mac, transportSrc)
	case dhcpv4.MessageTypeDecline:
		e.handleDecline(pkt, mac)
		return nil, Ok, "DECLINE"
	case dhcpv4.MessageTypeRelease:
		e.handleRelease(pkt, mac)
		return nil, Ok, "RELEASE"
	case dhcpv4.MessageTypeInform:
		reply, outcome := e.handleInform(pkt, mac)
		return reply, outcome, "INFORM"
	case dhcpv4.MessageTypeLeaseQuery:
		// Most recent codec revision discards LEASEQUERY entirely
		// (spec §9 open question (a)).
		e.logger.Debug("discarding LEASEQUERY", "mac", mac.String())
		return nil, Ok, "OTHER"
	default:
		e.logger.Debug("unsupported message type", "mac", mac.String(), "type", pkt.MessageType())
		return nil, Ok, "OTHER"
	}
}

func (e *Engine) packetContext(pkt *Packet, transportSrc net.Addr, packetType string) PacketContext {
	ctx := PacketContext{
		Type: packetType,
		MAC:  pkt.CHAddr.String(),
	}
	if pkt.CIAddr != nil && !pkt.CIAddr.Equal(net.IPv4zero) {
		ctx.ClientIP = pkt.CIAddr.String()
	} else if transportSrc != nil {
		ctx.ClientIP = transportSrc.String()
	}
	if pkt.IsRelayed() {
		ctx.RelayIP = pkt.GIAddr.String()
	}
	if pxe := extractPXEOptions(pkt); len(pxe) > 0 {
		ctx.PXEOptions = pxe
	}
	return ctx
}

func extractPXEOptions(pkt *Packet) map[string]string {
	out := make(map[string]string)
	if vc := pkt.VendorClassID(); vc != "" {
		out["vendor_class"] = vc
	}
	if v, ok := pkt.Options[dhcpv4.OptionPXEClientSystem]; ok && len(v) >= 2 {
		out["client_system"] = fmt.Sprintf("%d", int(v[0])<<8|int(v[1]))
	}
	return out
}

// checkRelayAcceptance implements the relay policy of spec §4.4: a
// policy rejection never blacklists the source (spec §7).
func (e *Engine) checkRelayAcceptance(pkt *Packet) Outcome {
	if pkt.IsRelayed() {
		if !e.cfg.Server.AllowDHCPRelays {
			return DropUnacceptable("relay support disabled")
		}
		if len(e.cfg.Server.AllowedDHCPRelays) > 0 && !relayAllowed(pkt.GIAddr, e.cfg.Server.AllowedDHCPRelays) {
			return DropUnacceptable("giaddr not in allowed relay list")
		}
		return Ok
	}

	if !e.cfg.Server.AllowsLocalDHCP() && !pkt.ArrivedOnProxyPort {
		return DropUnacceptable("local DHCP disabled")
	}
	return Ok
}

func relayAllowed(giaddr net.IP, allowed []string) bool {
	for _, a := range allowed {
		if ip := net.ParseIP(a); ip != nil && ip.Equal(giaddr) {
			return true
		}
	}
	return false
}

// handleDiscover implements spec §4.4 DISCOVER handling.
func (e *Engine) handleDiscover(pkt *Packet, mac net.HardwareAddr) (*Packet, Outcome) {
	def, outcome := e.resolve(pkt, mac)
	if outcome.IsDrop() {
		return nil, outcome
	}

	if def == nil {
		if e.cfg.Server.Authoritative {
			return e.buildNAK(pkt), Ok
		}
		return nil, DropBlacklist("unauthoritative DISCOVER miss")
	}

	var reply *Packet
	if e.cfg.Server.RapidCommitEnabled() && pkt.RapidCommitRequested() {
		reply = transformToACK(pkt, e.serverIP)
		reply.Options.Set(dhcpv4.OptionRapidCommit, nil)
	} else {
		reply = transformToOFFER(pkt, e.serverIP)
	}
	reply.YIAddr = def.IP
	e.loadOptions(reply, def, true)

	return e.finish(pkt, reply, def)
}

// handleRequest implements spec §4.4 REQUEST sub-mode classification.
func (e *Engine) handleRequest(pkt *Packet, mac net.HardwareAddr, transportSrc net.Addr) (*Packet, Outcome, string) {
	sid := pkt.ServerIdentifier()
	ciaddr := pkt.CIAddr
	hasCIAddr := ciaddr != nil && !ciaddr.Equal(net.IPv4zero)
	reqIP := pkt.RequestedIP()

	switch {
	case sid != nil && !hasCIAddr:
		// SELECTING
		if !sid.Equal(e.serverIP) {
			return nil, Ok, "REQUEST:SELECTING" // not addressed to us
		}
		def, outcome := e.resolve(pkt, mac)
		if outcome.IsDrop() {
			return nil, outcome, "REQUEST:SELECTING"
		}
		if def != nil && (reqIP == nil || reqIP.Equal(def.IP)) {
			reply := transformToACK(pkt, e.serverIP)
			reply.YIAddr = def.IP
			e.loadOptions(reply, def, true)
			p, o := e.finish(pkt, reply, def)
			return p, o, "REQUEST:SELECTING"
		}
		return e.buildNAK(pkt), Ok, "REQUEST:SELECTING"

	case sid == nil && !hasCIAddr && reqIP != nil:
		// INIT-REBOOT
		def, outcome := e.resolve(pkt, mac)
		if outcome.IsDrop() {
			return nil, outcome, "REQUEST:INIT-REBOOT"
		}
		if def != nil && def.IP.Equal(reqIP) {
			reply := transformToACK(pkt, e.serverIP)
			reply.YIAddr = def.IP
			e.loadOptions(reply, def, true)
			p, o := e.finish(pkt, reply, def)
			return p, o, "REQUEST:INIT-REBOOT"
		}
		return e.buildNAK(pkt), Ok, "REQUEST:INIT-REBOOT"

	case sid == nil && hasCIAddr && reqIP == nil:
		// RENEW (unicast source) or REBIND (broadcast/unspecified source)
		isRenew := !pkt.IsBroadcastSourced(transportIP(transportSrc))
		logicalType := "REQUEST:REBIND"
		if isRenew {
			logicalType = "REQUEST:RENEW"
		}

		if e.cfg.Server.NakRenewals && !isPXE(pkt) && (isRenew || e.cfg.Server.Authoritative) {
			return e.buildNAKUnicast(pkt, ciaddr), Ok, logicalType
		}

		def, outcome := e.resolve(pkt, mac)
		if outcome.IsDrop() {
			return nil, outcome, logicalType
		}
		if def != nil && def.IP.Equal(ciaddr) {
			reply := transformToACK(pkt, e.serverIP)
			reply.YIAddr = ciaddr
			reply.ResponseIP = ciaddr
			e.loadOptions(reply, def, true)
			p, o := e.finish(pkt, reply, def)
			return p, o, logicalType
		}
		if isRenew {
			return e.buildNAKUnicast(pkt, ciaddr), Ok, logicalType
		}
		// REBIND with no definition matching ciaddr: silently ignore.
		return nil, Ok, logicalType

	default:
		e.logger.Debug("unrecognised REQUEST shape, discarding",
			"mac", mac.String(), "sid", sid, "ciaddr", ciaddr, "req_ip", reqIP)
		return nil, Ok, "OTHER"
	}
}

// transportIP extracts the source IP from a net.Addr as produced by a
// UDP listener, returning nil if it cannot be determined.
func transportIP(addr net.Addr) net.IP {
	if udpAddr, ok := addr.(*net.UDPAddr); ok {
		return udpAddr.IP
	}
	return nil
}

func isPXE(pkt *Packet) bool {
	return pkt.ArrivedOnProxyPort
}

// handleInform implements spec §4.4 INFORM handling.
func (e *Engine) handleInform(pkt *Packet, mac net.HardwareAddr) (*Packet, Outcome) {
	if pkt.CIAddr == nil || pkt.CIAddr.Equal(net.IPv4zero) {
		return nil, DropBlacklist("INFORM without ciaddr")
	}

	def, outcome := e.resolve(pkt, mac)
	if outcome.IsDrop() {
		return nil, outcome
	}
	if def == nil {
		return nil, DropBlacklist("INFORM from unknown MAC")
	}

	reply := transformToACK(pkt, e.serverIP)
	reply.CIAddr = pkt.CIAddr
	e.loadOptions(reply, def, false)

	return e.finish(pkt, reply, def)
}

// handleDecline implements spec §4.4 DECLINE handling: no packet is
// emitted either way.
func (e *Engine) handleDecline(pkt *Packet, mac net.HardwareAddr) {
	reqIP := pkt.RequestedIP()
	sid := pkt.ServerIdentifier()
	if reqIP == nil || sid == nil {
		e.logger.Warn("DHCPDECLINE missing req_ip or sid", "mac", mac.String())
		return
	}

	def, _ := e.chain.LookupCachedOrNil(mac)
	if sid.Equal(e.serverIP) && def != nil && def.IP.Equal(reqIP) {
		e.logger.Warn("IP conflict reported by client", "mac", mac.String(), "ip", reqIP.String())
		return
	}
	e.logger.Warn("DHCPDECLINE for unrecognised MAC/IP pairing", "mac", mac.String(), "ip", reqIP.String())
}

// handleRelease implements spec §4.4 RELEASE handling: no packet is
// emitted either way.
func (e *Engine) handleRelease(pkt *Packet, mac net.HardwareAddr) {
	sid := pkt.ServerIdentifier()
	if sid == nil {
		e.logger.Warn("DHCPRELEASE missing sid", "mac", mac.String())
		return
	}

	def, _ := e.chain.LookupCachedOrNil(mac)
	if sid.Equal(e.serverIP) && def != nil && def.IP.Equal(pkt.CIAddr) {
		e.logger.Info("lease released", "mac", mac.String(), "ip", pkt.CIAddr.String())
		return
	}
	e.logger.Warn("DHCPRELEASE for unrecognised MAC/IP pairing", "mac", mac.String(), "ip", pkt.CIAddr.String())
}

// resolve looks up mac through the cache chain, applying the operator's
// unknown-MAC and multi-definition hooks (spec §4.2, §6).
func (e *Engine) resolve(pkt *Packet, mac net.HardwareAddr) (*dhcpv4.Definition, Outcome) {
	ctx := e.packetContext(pkt, nil, "")

	filtered := false
	selector := func(defs []*dhcpv4.Definition) *dhcpv4.Definition {
		if len(defs) == 1 {
			return defs[0]
		}
		selected := e.hooks.FilterRetrievedDefinitions(defs, pkt, ctx)
		filtered = selected == nil
		return selected
	}

	def, err := e.chain.Resolve(mac, selector)
	if err != nil {
		e.logger.Error("database lookup failed", "mac", mac.String(), "error", err)
		return nil, DropUnacceptable("database failure")
	}
	if filtered {
		return nil, DropUnacceptable("filterRetrievedDefinitions hook selected no definition")
	}
	if def == nil {
		if alt := e.hooks.HandleUnknownMAC(pkt, ctx); alt != nil {
			return alt, Ok
		}
	}
	return def, Ok
}

// loadOptions fills reply options from def in the order spec §4.4 names:
// lease-time (unless withLease is false, as for INFORM), then
// router/mask/broadcast, hostname/domain-name/DNS, then NTP. It does not
// touch yiaddr; callers set reply.YIAddr themselves.
func (e *Engine) loadOptions(reply *Packet, def *dhcpv4.Definition, withLease bool) {
	set := func(code dhcpv4.OptionCode, value []byte) {
		if err := reply.Options.Set(code, value); err != nil {
			e.logger.Warn("dropping invalid option value", "option", code, "error", err)
		}
	}

	if withLease && def.LeaseTime > 0 {
		set(dhcpv4.OptionIPLeaseTime, dhcpv4.Uint32ToBytes(uint32(def.LeaseTime)))
	}
	if len(def.Gateways) > 0 {
		set(dhcpv4.OptionRouter, dhcpv4.IPListToBytes(def.Gateways))
	}
	if def.SubnetMask != nil {
		set(dhcpv4.OptionSubnetMask, []byte(def.SubnetMask))
	}
	if def.BroadcastAddress != nil {
		set(dhcpv4.OptionBroadcastAddress, dhcpv4.IPToBytes(def.BroadcastAddress))
	}
	if def.Hostname != "" {
		set(dhcpv4.OptionHostname, []byte(def.Hostname))
	}
	if def.DomainName != "" {
		set(dhcpv4.OptionDomainName, []byte(def.DomainName))
	}
	if len(def.DomainNameServers) > 0 {
		set(dhcpv4.OptionDomainNameServer, dhcpv4.IPListToBytes(capIPs(def.DomainNameServers, 3)))
	}
	if len(def.NTPServers) > 0 {
		set(dhcpv4.OptionNTPServers, dhcpv4.IPListToBytes(capIPs(def.NTPServers, 3)))
	}
}

func capIPs(ips []net.IP, max int) []net.IP {
	if len(ips) <= max {
		return ips
	}
	return ips[:max]
}

// finish calls the operator's loadDHCPPacket hook; a falsy return drops
// the packet (spec §6 hook table).
func (e *Engine) finish(pkt *Packet, reply *Packet, def *dhcpv4.Definition) (*Packet, Outcome) {
	ctx := e.packetContext(pkt, nil, "")
	if !e.hooks.LoadDHCPPacket(reply, ctx, def) {
		return nil, DropUnacceptable("loadDHCPPacket hook rejected")
	}
	return reply, Ok
}

func (e *Engine) buildNAK(pkt *Packet) *Packet {
	return transformToNAK(pkt, e.serverIP)
}

func (e *Engine) buildNAKUnicast(pkt *Packet, dst net.IP) *Packet {
	reply := transformToNAK(pkt, e.serverIP)
	reply.ResponseIP = dst
	return reply
}
