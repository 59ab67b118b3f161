package dhcp

import (
	"fmt"
	"net"

	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

// OptionType is the data type family of a DHCP option, following the
// vocabulary in the wire-format contract: ipv4/ipv4+, byte/byte+, string,
// bool, 16-bit/16-bit+, 32-bit/32-bit+, identifier, none, or one of the
// RFC-specific composite types (vendor, PXE, SLP, iSNS, SIP...).
type OptionType int

const (
	TypeIP         OptionType = iota // ipv4:      single IPv4 address (4 bytes)
	TypeIPList                       // ipv4+:     multiple IPv4 addresses (N*4 bytes)
	TypeUint8                        // byte:      single byte
	TypeUint16                       // 16-bit:    2 bytes big-endian
	TypeUint32                       // 32-bit:    4 bytes big-endian
	TypeInt32                        // 32-bit:    4 bytes big-endian signed
	TypeBool                         // bool:      1 byte, 0x00 or 0x01
	TypeString                       // string:    variable-length ASCII
	TypeBytes                        // byte+:     raw bytes / identifier
	TypeIPMask                       // ipv4+:     IP + subnet mask pairs
	TypeCIDRRoutes                   // composite: RFC 3442 classless static routes
	TypeIPPairs                      // ipv4+:     IP address pairs (N*8 bytes)
	TypeUint16List                   // 16-bit+:   multiple uint16 values
	TypeDomainName                   // composite: RFC-1035 single name
	TypeDomainList                   // composite: RFC-1035/3397 compressed name list
	TypeVendor                       // composite: option 43/124/125 nested TLV
	TypePXE                          // composite: option 93/94/97
	TypeSLP                          // composite: option 78/79
	TypeISNS                         // composite: option 83
	TypeSIP                          // composite: option 120
	TypeNone                         // none:      zero-length marker option
)

// OptionDef describes one option code's metadata for the registry.
type OptionDef struct {
	Code     dhcpv4.OptionCode
	Name     string
	Type     OptionType
	MinLen   int
	MaxLen   int // 0 means unbounded (subject to the 255-byte TLV limit)
	Multiple bool
}

// optionRegistry is the option-code table consulted by GetOptionDef and
// ValidateOption (and so by Options.Set). The encoder and decoder do not
// read it, and the composite Type tags select no codec helper.
var optionRegistry = map[dhcpv4.OptionCode]OptionDef{
	dhcpv4.OptionSubnetMask:             {Code: 1, Name: "Subnet Mask", Type: TypeIP, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionTimeOffset:             {Code: 2, Name: "Time Offset", Type: TypeInt32, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionRouter:                 {Code: 3, Name: "Router", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionTimeServer:             {Code: 4, Name: "Time Server", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionNameServer:             {Code: 5, Name: "Name Server", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionDomainNameServer:       {Code: 6, Name: "Domain Name Server", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionLogServer:              {Code: 7, Name: "Log Server", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionCookieServer:           {Code: 8, Name: "Cookie Server", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionLPRServer:              {Code: 9, Name: "LPR Server", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionImpressServer:          {Code: 10, Name: "Impress Server", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionResourceLocationServer: {Code: 11, Name: "Resource Location Server", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionHostname:               {Code: 12, Name: "Host Name", Type: TypeString, MinLen: 1},
	dhcpv4.OptionBootFileSize:           {Code: 13, Name: "Boot File Size", Type: TypeUint16, MinLen: 2, MaxLen: 2},
	dhcpv4.OptionMeritDumpFile:          {Code: 14, Name: "Merit Dump File", Type: TypeString, MinLen: 1},
	dhcpv4.OptionDomainName:             {Code: 15, Name: "Domain Name", Type: TypeDomainName, MinLen: 1},
	dhcpv4.OptionSwapServer:             {Code: 16, Name: "Swap Server", Type: TypeIP, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionRootPath:               {Code: 17, Name: "Root Path", Type: TypeString, MinLen: 1},
	dhcpv4.OptionExtensionsPath:         {Code: 18, Name: "Extensions Path", Type: TypeString, MinLen: 1},
	dhcpv4.OptionIPForwarding:           {Code: 19, Name: "IP Forwarding", Type: TypeBool, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionNonLocalSourceRouting:  {Code: 20, Name: "Non-Local Source Routing", Type: TypeBool, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionPolicyFilter:           {Code: 21, Name: "Policy Filter", Type: TypeIPPairs, MinLen: 8},
	dhcpv4.OptionMaxDatagramReassembly:  {Code: 22, Name: "Max Datagram Reassembly Size", Type: TypeUint16, MinLen: 2, MaxLen: 2},
	dhcpv4.OptionDefaultIPTTL:           {Code: 23, Name: "Default IP TTL", Type: TypeUint8, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionPathMTUAgingTimeout:    {Code: 24, Name: "Path MTU Aging Timeout", Type: TypeUint32, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionPathMTUPlateauTable:    {Code: 25, Name: "Path MTU Plateau Table", Type: TypeUint16List, MinLen: 2},
	dhcpv4.OptionInterfaceMTU:           {Code: 26, Name: "Interface MTU", Type: TypeUint16, MinLen: 2, MaxLen: 2},
	dhcpv4.OptionAllSubnetsLocal:        {Code: 27, Name: "All Subnets Local", Type: TypeBool, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionBroadcastAddress:       {Code: 28, Name: "Broadcast Address", Type: TypeIP, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionPerformMaskDiscovery:   {Code: 29, Name: "Perform Mask Discovery", Type: TypeBool, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionMaskSupplier:           {Code: 30, Name: "Mask Supplier", Type: TypeBool, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionPerformRouterDiscovery: {Code: 31, Name: "Perform Router Discovery", Type: TypeBool, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionRouterSolicitAddr:      {Code: 32, Name: "Router Solicitation Address", Type: TypeIP, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionStaticRoute:            {Code: 33, Name: "Static Route", Type: TypeIPPairs, MinLen: 8},
	dhcpv4.OptionTrailerEncapsulation:   {Code: 34, Name: "Trailer Encapsulation", Type: TypeBool, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionARPCacheTimeout:        {Code: 35, Name: "ARP Cache Timeout", Type: TypeUint32, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionEthernetEncapsulation:  {Code: 36, Name: "Ethernet Encapsulation", Type: TypeBool, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionTCPDefaultTTL:          {Code: 37, Name: "TCP Default TTL", Type: TypeUint8, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionTCPKeepaliveInterval:   {Code: 38, Name: "TCP Keepalive Interval", Type: TypeUint32, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionTCPKeepaliveGarbage:    {Code: 39, Name: "TCP Keepalive Garbage", Type: TypeBool, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionNISDomain:              {Code: 40, Name: "NIS Domain", Type: TypeString, MinLen: 1},
	dhcpv4.OptionNISServers:             {Code: 41, Name: "NIS Servers", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionNTPServers:             {Code: 42, Name: "NTP Servers", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionVendorSpecific:         {Code: 43, Name: "Vendor Specific", Type: TypeVendor, MinLen: 1},
	dhcpv4.OptionNetBIOSNameServer:      {Code: 44, Name: "NetBIOS Name Server", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionNetBIOSDatagramDist:    {Code: 45, Name: "NetBIOS Datagram Distribution", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionNetBIOSNodeType:        {Code: 46, Name: "NetBIOS Node Type", Type: TypeUint8, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionNetBIOSScope:           {Code: 47, Name: "NetBIOS Scope", Type: TypeString, MinLen: 1},
	dhcpv4.OptionXWindowFontServer:      {Code: 48, Name: "X Window Font Server", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionXWindowDisplayManager:  {Code: 49, Name: "X Window Display Manager", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionRequestedIP:            {Code: 50, Name: "Requested IP", Type: TypeIP, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionIPLeaseTime:            {Code: 51, Name: "IP Lease Time", Type: TypeUint32, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionOverload:               {Code: 52, Name: "Overload", Type: TypeUint8, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionDHCPMessageType:        {Code: 53, Name: "DHCP Message Type", Type: TypeUint8, MinLen: 1, MaxLen: 1},
	dhcpv4.OptionServerIdentifier:       {Code: 54, Name: "Server Identifier", Type: TypeIP, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionParameterRequestList:   {Code: 55, Name: "Parameter Request List", Type: TypeBytes, MinLen: 1},
	dhcpv4.OptionMessage:                {Code: 56, Name: "Message", Type: TypeString, MinLen: 1},
	dhcpv4.OptionMaxDHCPMessageSize:     {Code: 57, Name: "Max DHCP Message Size", Type: TypeUint16, MinLen: 2, MaxLen: 2},
	dhcpv4.OptionRenewalTime:            {Code: 58, Name: "Renewal Time (T1)", Type: TypeUint32, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionRebindingTime:          {Code: 59, Name: "Rebinding Time (T2)", Type: TypeUint32, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionVendorClassID:          {Code: 60, Name: "Vendor Class Identifier", Type: TypeString, MinLen: 1},
	dhcpv4.OptionClientIdentifier:       {Code: 61, Name: "Client Identifier", Type: TypeBytes, MinLen: 2},
	dhcpv4.OptionNetWareIPDomain:        {Code: 62, Name: "NetWare/IP Domain", Type: TypeString, MinLen: 1},
	dhcpv4.OptionNetWareIPOption:        {Code: 63, Name: "NetWare/IP Option", Type: TypeBytes, MinLen: 1},
	dhcpv4.OptionTFTPServerName:         {Code: 66, Name: "TFTP Server Name", Type: TypeString, MinLen: 1},
	dhcpv4.OptionBootfileName:           {Code: 67, Name: "Bootfile Name", Type: TypeString, MinLen: 1},
	dhcpv4.OptionUserClass:              {Code: 77, Name: "User Class", Type: TypeBytes, MinLen: 1},
	dhcpv4.OptionSLPDirectoryAgent:      {Code: 78, Name: "SLP Directory Agent", Type: TypeSLP, MinLen: 1},
	dhcpv4.OptionSLPServiceScope:        {Code: 79, Name: "SLP Service Scope", Type: TypeSLP, MinLen: 1},
	dhcpv4.OptionRapidCommit:            {Code: 80, Name: "Rapid Commit", Type: TypeNone, MinLen: 0, MaxLen: 0},
	dhcpv4.OptionClientFQDN:             {Code: 81, Name: "Client FQDN", Type: TypeBytes, MinLen: 3},
	dhcpv4.OptionRelayAgentInfo:         {Code: 82, Name: "Relay Agent Information", Type: TypeBytes, MinLen: 2},
	dhcpv4.OptionISNS:                   {Code: 83, Name: "iSNS", Type: TypeISNS, MinLen: 8},
	dhcpv4.OptionBCMCSDomainList:        {Code: 88, Name: "BCMCS Domain List", Type: TypeDomainList, MinLen: 1},
	dhcpv4.OptionBCMCSAddressList:       {Code: 89, Name: "BCMCS Address List", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionPXEClientSystem:        {Code: 93, Name: "PXE Client System Architecture", Type: TypePXE, MinLen: 2},
	dhcpv4.OptionPXEClientNDI:           {Code: 94, Name: "PXE Client Network Device Interface", Type: TypePXE, MinLen: 3, MaxLen: 3},
	dhcpv4.OptionPXEClientMachineID:     {Code: 97, Name: "PXE Client Machine Identifier", Type: TypePXE, MinLen: 17, MaxLen: 17},
	dhcpv4.OptionSubnetSelection:        {Code: 118, Name: "Subnet Selection", Type: TypeIP, MinLen: 4, MaxLen: 4},
	dhcpv4.OptionDomainSearch:           {Code: 119, Name: "Domain Search", Type: TypeDomainList, MinLen: 1},
	dhcpv4.OptionSIPServers:             {Code: 120, Name: "SIP Servers", Type: TypeSIP, MinLen: 1},
	dhcpv4.OptionClasslessStaticRoute:   {Code: 121, Name: "Classless Static Route", Type: TypeCIDRRoutes, MinLen: 5},
	dhcpv4.OptionVIVendorClass:          {Code: 124, Name: "Vendor-Identifying Vendor Class", Type: TypeVendor, MinLen: 5},
	dhcpv4.OptionVIVendorSpecific:       {Code: 125, Name: "Vendor-Identifying Vendor Specific", Type: TypeVendor, MinLen: 5},
	dhcpv4.OptionMoSServer:              {Code: 137, Name: "MoS Address", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionDNSv4Domain:            {Code: 139, Name: "DNS Server IPv4 (Domain)", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionDNSv4Zone:              {Code: 140, Name: "DNS Server IPv4 (Zone)", Type: TypeIPList, MinLen: 4},
	dhcpv4.OptionTFTPServerAddress:      {Code: 150, Name: "TFTP Server Address", Type: TypeIPList, MinLen: 4},
}

// MandatoryOptions is the set of option codes that survive a
// parameter-request-list filter regardless of whether the client asked
// for them (spec §3, §8 property 4).
var MandatoryOptions = map[dhcpv4.OptionCode]bool{
	dhcpv4.OptionSubnetMask:       true,
	dhcpv4.OptionRouter:           true,
	dhcpv4.OptionDomainNameServer: true,
	dhcpv4.OptionDomainName:       true,
	dhcpv4.OptionIPLeaseTime:      true,
	dhcpv4.OptionDHCPMessageType:  true,
	dhcpv4.OptionServerIdentifier: true,
	dhcpv4.OptionRenewalTime:      true,
	dhcpv4.OptionRebindingTime:    true,
}

// GetOptionDef returns the definition for an option code, or nil if
// unknown.
func GetOptionDef(code dhcpv4.OptionCode) *OptionDef {
	def, ok := optionRegistry[code]
	if !ok {
		return nil
	}
	return &def
}

// ValidateOption checks that raw option data matches the expected type
// constraints for code. Unknown codes are accepted as raw bytes.
func ValidateOption(code dhcpv4.OptionCode, data []byte) error {
	def := GetOptionDef(code)
	if def == nil {
		return nil
	}
	if len(data) < def.MinLen {
		return fmt.Errorf("option %d (%s): data too short (%d < %d)", code, def.Name, len(data), def.MinLen)
	}
	if def.MaxLen > 0 && len(data) > def.MaxLen {
		return fmt.Errorf("option %d (%s): data too long (%d > %d)", code, def.Name, len(data), def.MaxLen)
	}

	switch def.Type {
	case TypeIP:
		if len(data) != 4 {
			return fmt.Errorf("option %d (%s): expected 4 bytes for IP, got %d", code, def.Name, len(data))
		}
	case TypeIPList:
		if len(data)%4 != 0 {
			return fmt.Errorf("option %d (%s): IP list length %d not multiple of 4", code, def.Name, len(data))
		}
	case TypeIPPairs:
		if len(data)%8 != 0 {
			return fmt.Errorf("option %d (%s): IP pair list length %d not multiple of 8", code, def.Name, len(data))
		}
	case TypeUint16List:
		if len(data)%2 != 0 {
			return fmt.Errorf("option %d (%s): uint16 list length %d not multiple of 2", code, def.Name, len(data))
		}
	case TypeUint16:
		if len(data) != 2 {
			return fmt.Errorf("option %d (%s): expected 2 bytes for uint16, got %d", code, def.Name, len(data))
		}
	case TypeUint32, TypeInt32:
		if len(data) != 4 {
			return fmt.Errorf("option %d (%s): expected 4 bytes for uint32/int32, got %d", code, def.Name, len(data))
		}
	case TypeBool:
		if len(data) != 1 {
			return fmt.Errorf("option %d (%s): expected 1 byte for bool, got %d", code, def.Name, len(data))
		}
	case TypeNone:
		if len(data) != 0 {
			return fmt.Errorf("option %d (%s): expected 0 bytes, got %d", code, def.Name, len(data))
		}
	}

	return nil
}

// BuildOptionsFromConfig creates an Options map from a definition's
// subnet-wide fields. Only non-empty fields are populated — the caller
// decides field-level presence, matching the engine's "fill if set"
// option-loading rule (spec §4.4).
func BuildOptionsFromConfig(subnetMask net.IPMask, routers, dnsServers, ntpServers []net.IP,
	domainName, hostname, tftpServer, bootfile string,
	leaseTime, renewalTime, rebindTime uint32,
	broadcast net.IP) Options {

	opts := make(Options)

	if subnetMask != nil {
		opts[dhcpv4.OptionSubnetMask] = []byte(subnetMask)
	}
	if len(routers) > 0 {
		opts[dhcpv4.OptionRouter] = dhcpv4.IPListToBytes(routers)
	}
	if len(dnsServers) > 0 {
		opts[dhcpv4.OptionDomainNameServer] = dhcpv4.IPListToBytes(dnsServers)
	}
	if len(ntpServers) > 0 {
		opts[dhcpv4.OptionNTPServers] = dhcpv4.IPListToBytes(ntpServers)
	}
	if domainName != "" {
		opts[dhcpv4.OptionDomainName] = []byte(domainName)
	}
	if hostname != "" {
		opts[dhcpv4.OptionHostname] = []byte(hostname)
	}
	if tftpServer != "" {
		opts[dhcpv4.OptionTFTPServerName] = []byte(tftpServer)
	}
	if bootfile != "" {
		opts[dhcpv4.OptionBootfileName] = []byte(bootfile)
	}
	if leaseTime > 0 {
		opts.SetUint32(dhcpv4.OptionIPLeaseTime, leaseTime)
	}
	if renewalTime > 0 {
		opts.SetUint32(dhcpv4.OptionRenewalTime, renewalTime)
	}
	if rebindTime > 0 {
		opts.SetUint32(dhcpv4.OptionRebindingTime, rebindTime)
	}
	if broadcast != nil {
		opts[dhcpv4.OptionBroadcastAddress] = dhcpv4.IPToBytes(broadcast)
	}

	return opts
}
