// Package dhcpv4 provides wire-format constants and low-level encoding
// helpers for DHCPv4 packets (RFC 2131 / RFC 2132 and the option RFCs
// named alongside each constant below).
package dhcpv4

import "net"

// MessageType is the value carried by DHCP option 53 (RFC 2131 §9.6).
type MessageType byte

const (
	MessageTypeDiscover        MessageType = 1  // DHCPDISCOVER
	MessageTypeOffer           MessageType = 2  // DHCPOFFER
	MessageTypeRequest         MessageType = 3  // DHCPREQUEST
	MessageTypeDecline         MessageType = 4  // DHCPDECLINE
	MessageTypeAck             MessageType = 5  // DHCPACK
	MessageTypeNak             MessageType = 6  // DHCPNAK
	MessageTypeRelease         MessageType = 7  // DHCPRELEASE
	MessageTypeInform          MessageType = 8  // DHCPINFORM
	MessageTypeLeaseQuery      MessageType = 10 // DHCPLEASEQUERY (RFC 4388)
	MessageTypeLeaseUnassigned MessageType = 11 // DHCPLEASEUNASSIGNED
	MessageTypeLeaseUnknown    MessageType = 12 // DHCPLEASEUNKNOWN
	MessageTypeLeaseActive     MessageType = 13 // DHCPLEASEACTIVE
)

func (m MessageType) String() string {
	switch m {
	case MessageTypeDiscover:
		return "DHCPDISCOVER"
	case MessageTypeOffer:
		return "DHCPOFFER"
	case MessageTypeRequest:
		return "DHCPREQUEST"
	case MessageTypeDecline:
		return "DHCPDECLINE"
	case MessageTypeAck:
		return "DHCPACK"
	case MessageTypeNak:
		return "DHCPNAK"
	case MessageTypeRelease:
		return "DHCPRELEASE"
	case MessageTypeInform:
		return "DHCPINFORM"
	case MessageTypeLeaseQuery:
		return "DHCPLEASEQUERY"
	case MessageTypeLeaseUnassigned:
		return "DHCPLEASEUNASSIGNED"
	case MessageTypeLeaseUnknown:
		return "DHCPLEASEUNKNOWN"
	case MessageTypeLeaseActive:
		return "DHCPLEASEACTIVE"
	default:
		return "UNKNOWN"
	}
}

// OpCode is the wire-format `op` field (RFC 2131 §2).
type OpCode byte

const (
	OpCodeBootRequest OpCode = 1 // BOOTREQUEST
	OpCodeBootReply   OpCode = 2 // BOOTREPLY
)

// HardwareType is the wire-format `htype` field (RFC 1700).
type HardwareType byte

const (
	HardwareTypeEthernet HardwareType = 1
)

// OptionCode identifies a DHCP option (RFC 2132 and the extensions below).
type OptionCode byte

const (
	OptionPad                    OptionCode = 0
	OptionSubnetMask             OptionCode = 1
	OptionTimeOffset             OptionCode = 2
	OptionRouter                 OptionCode = 3
	OptionTimeServer             OptionCode = 4
	OptionNameServer             OptionCode = 5
	OptionDomainNameServer       OptionCode = 6
	OptionLogServer              OptionCode = 7
	OptionCookieServer           OptionCode = 8
	OptionLPRServer              OptionCode = 9
	OptionImpressServer          OptionCode = 10
	OptionResourceLocationServer OptionCode = 11
	OptionHostname               OptionCode = 12
	OptionBootFileSize           OptionCode = 13
	OptionMeritDumpFile          OptionCode = 14
	OptionDomainName             OptionCode = 15
	OptionSwapServer             OptionCode = 16
	OptionRootPath               OptionCode = 17
	OptionExtensionsPath         OptionCode = 18
	OptionIPForwarding           OptionCode = 19
	OptionNonLocalSourceRouting  OptionCode = 20
	OptionPolicyFilter           OptionCode = 21
	OptionMaxDatagramReassembly  OptionCode = 22
	OptionDefaultIPTTL           OptionCode = 23
	OptionPathMTUAgingTimeout    OptionCode = 24
	OptionPathMTUPlateauTable    OptionCode = 25
	OptionInterfaceMTU           OptionCode = 26
	OptionAllSubnetsLocal        OptionCode = 27
	OptionBroadcastAddress       OptionCode = 28
	OptionPerformMaskDiscovery   OptionCode = 29
	OptionMaskSupplier           OptionCode = 30
	OptionPerformRouterDiscovery OptionCode = 31
	OptionRouterSolicitAddr      OptionCode = 32
	OptionStaticRoute            OptionCode = 33
	OptionTrailerEncapsulation   OptionCode = 34
	OptionARPCacheTimeout        OptionCode = 35
	OptionEthernetEncapsulation  OptionCode = 36
	OptionTCPDefaultTTL          OptionCode = 37
	OptionTCPKeepaliveInterval   OptionCode = 38
	OptionTCPKeepaliveGarbage    OptionCode = 39
	OptionNISDomain              OptionCode = 40
	OptionNISServers             OptionCode = 41
	OptionNTPServers             OptionCode = 42
	OptionVendorSpecific         OptionCode = 43
	OptionNetBIOSNameServer      OptionCode = 44
	OptionNetBIOSDatagramDist    OptionCode = 45
	OptionNetBIOSNodeType        OptionCode = 46
	OptionNetBIOSScope           OptionCode = 47
	OptionXWindowFontServer      OptionCode = 48
	OptionXWindowDisplayManager  OptionCode = 49
	OptionRequestedIP            OptionCode = 50
	OptionIPLeaseTime            OptionCode = 51
	OptionOverload               OptionCode = 52
	OptionDHCPMessageType        OptionCode = 53
	OptionServerIdentifier       OptionCode = 54
	OptionParameterRequestList   OptionCode = 55
	OptionMessage                OptionCode = 56
	OptionMaxDHCPMessageSize     OptionCode = 57
	OptionRenewalTime            OptionCode = 58
	OptionRebindingTime          OptionCode = 59
	OptionVendorClassID          OptionCode = 60
	OptionClientIdentifier       OptionCode = 61
	OptionNetWareIPDomain        OptionCode = 62
	OptionNetWareIPOption        OptionCode = 63
	OptionTFTPServerName         OptionCode = 66
	OptionBootfileName           OptionCode = 67
	OptionUserClass              OptionCode = 77  // RFC 3004
	OptionSLPDirectoryAgent      OptionCode = 78  // RFC 2610
	OptionSLPServiceScope        OptionCode = 79  // RFC 2610
	OptionRapidCommit            OptionCode = 80  // RFC 4039
	OptionClientFQDN             OptionCode = 81  // RFC 4702
	OptionRelayAgentInfo         OptionCode = 82  // RFC 3046
	OptionISNS                   OptionCode = 83  // RFC 4174
	OptionBCMCSDomainList        OptionCode = 88  // RFC 4280 (name list)
	OptionBCMCSAddressList       OptionCode = 89  // RFC 4280 (IPv4 list)
	OptionPXEClientSystem        OptionCode = 93  // RFC 4578 / PXE
	OptionPXEClientNDI           OptionCode = 94  // RFC 4578 / PXE
	OptionPXEClientMachineID     OptionCode = 97  // RFC 4578 / PXE
	OptionSubnetSelection        OptionCode = 118 // RFC 3011
	OptionDomainSearch           OptionCode = 119 // RFC 3397
	OptionSIPServers             OptionCode = 120 // RFC 3361
	OptionClasslessStaticRoute   OptionCode = 121 // RFC 3442
	OptionVIVendorClass          OptionCode = 124 // RFC 3925
	OptionVIVendorSpecific       OptionCode = 125 // RFC 3925
	OptionTFTPServerAddress      OptionCode = 150
	OptionMoSServer              OptionCode = 137 // RFC 5223
	OptionDNSv4Domain            OptionCode = 139 // RFC 5678
	OptionDNSv4Zone              OptionCode = 140 // RFC 5678
	OptionEnd                    OptionCode = 255
)

// Relay Agent Information sub-option types (RFC 3046, RFC 3527).
const (
	RelaySubOptionCircuitID  byte = 1
	RelaySubOptionRemoteID   byte = 2
	RelaySubOptionLinkSelect byte = 5 // RFC 3527
)

// DHCP packet size limits.
const (
	MinPacketSize     = 300  // Minimum DHCP packet size (RFC 2131 §2)
	MaxPacketSize     = 1500 // Maximum DHCP packet size (Ethernet MTU)
	DefaultPacketSize = 576  // Default max packet size (RFC 2131 §2)
)

// DHCP ports.
const (
	ServerPort = 67
	ClientPort = 68
)

// Lease-state and address-conflict detection labels. Nothing else in
// this module reads them.
const (
	LeaseStateActive  = "active"
	LeaseStateOffered = "offered"
	LeaseStateExpired = "expired"

	DetectionARPProbe      = "arp_probe"
	DetectionICMPProbe     = "icmp_probe"
	DetectionClientDecline = "client_decline"
)

// MagicCookie is the four-byte sentinel that begins the options block
// (RFC 2131 §3).
var MagicCookie = []byte{99, 130, 83, 99}

// Well-known addresses.
var (
	BroadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	BroadcastIP  = net.IPv4(255, 255, 255, 255)
	ZeroIP       = net.IPv4(0, 0, 0, 0)
)

// IsUnspecifiedSource reports whether ip is one of the sentinels used to
// classify a packet's source as broadcast-originated (0.0.0.0 or
// 255.255.255.255).
func IsUnspecifiedSource(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.Equal(net.IPv4zero) || ip.Equal(BroadcastIP)
}
