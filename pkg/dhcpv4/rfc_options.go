package dhcpv4

import (
	"encoding/binary"
	"fmt"
	"net"
)

// SLPDirectoryAgent decodes option 78 (RFC 2610 §2.1): a one-byte
// "mandatory" flag followed by a list of directory-agent IPv4 addresses.
type SLPDirectoryAgent struct {
	Mandatory bool
	Agents    []net.IP
}

func DecodeSLPDirectoryAgent(data []byte) (SLPDirectoryAgent, error) {
	if len(data) < 1 || (len(data)-1)%4 != 0 {
		return SLPDirectoryAgent{}, fmt.Errorf("option 78: invalid length %d", len(data))
	}
	agents, err := BytesToIPList(data[1:])
	if err != nil {
		return SLPDirectoryAgent{}, fmt.Errorf("option 78: %w", err)
	}
	return SLPDirectoryAgent{Mandatory: data[0] != 0, Agents: agents}, nil
}

func EncodeSLPDirectoryAgent(a SLPDirectoryAgent) []byte {
	flag := byte(0)
	if a.Mandatory {
		flag = 1
	}
	return append([]byte{flag}, IPListToBytes(a.Agents)...)
}

// SLPServiceScope decodes option 79 (RFC 2610 §2.2): a one-byte
// "mandatory" flag followed by a comma-delimited scope-list string.
type SLPServiceScope struct {
	Mandatory bool
	ScopeList string
}

func DecodeSLPServiceScope(data []byte) (SLPServiceScope, error) {
	if len(data) < 1 {
		return SLPServiceScope{}, fmt.Errorf("option 79: empty")
	}
	return SLPServiceScope{Mandatory: data[0] != 0, ScopeList: string(data[1:])}, nil
}

func EncodeSLPServiceScope(s SLPServiceScope) []byte {
	flag := byte(0)
	if s.Mandatory {
		flag = 1
	}
	return append([]byte{flag}, []byte(s.ScopeList)...)
}

// ISNSServers decodes option 83 (RFC 4174): iSNS functions/discovery
// domain access/administrative flags/heartbeat, followed by a list of
// iSNS server IPv4 addresses.
type ISNSServers struct {
	Functions        uint16
	DiscoveryDomain  uint16
	AdministrativeFl uint16
	Heartbeat        uint16
	Servers          []net.IP
}

func DecodeISNSServers(data []byte) (ISNSServers, error) {
	if len(data) < 8 || (len(data)-8)%4 != 0 {
		return ISNSServers{}, fmt.Errorf("option 83: invalid length %d", len(data))
	}
	servers, err := BytesToIPList(data[8:])
	if err != nil {
		return ISNSServers{}, fmt.Errorf("option 83: %w", err)
	}
	return ISNSServers{
		Functions:        binary.BigEndian.Uint16(data[0:2]),
		DiscoveryDomain:  binary.BigEndian.Uint16(data[2:4]),
		AdministrativeFl: binary.BigEndian.Uint16(data[4:6]),
		Heartbeat:        binary.BigEndian.Uint16(data[6:8]),
		Servers:          servers,
	}, nil
}

func EncodeISNSServers(v ISNSServers) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint16(buf[0:2], v.Functions)
	binary.BigEndian.PutUint16(buf[2:4], v.DiscoveryDomain)
	binary.BigEndian.PutUint16(buf[4:6], v.AdministrativeFl)
	binary.BigEndian.PutUint16(buf[6:8], v.Heartbeat)
	return append(buf, IPListToBytes(v.Servers)...)
}

// DecodeBCMCSDomainList and the BCMCS helpers below handle options 88/89
// (RFC 4280): either a list of
// RFC-1035 names (88) or a list of IPv4 addresses (89), never mixed —
// the two codes are parsed with the dedicated helper for their family.
func DecodeBCMCSDomainList(data []byte) ([]string, error) {
	return DecodeDomainSearchList(data)
}

func EncodeBCMCSDomainList(names []string) ([]byte, error) {
	return EncodeDomainSearchList(names)
}

func DecodeBCMCSAddressList(data []byte) ([]net.IP, error) {
	return BytesToIPList(data)
}

func EncodeBCMCSAddressList(ips []net.IP) []byte {
	return IPListToBytes(ips)
}

// SIPServers decodes option 120 (RFC 3361 §2): a one-byte encoding
// discriminator (0 = RFC-1035 name list, 1 = IPv4 address list) followed
// by the corresponding payload. The two encodings are never mixed within
// one option.
type SIPServers struct {
	Names []string // set when the option uses SIPEncodingNames
	IPs   []net.IP // set when the option uses SIPEncodingAddresses
}

const (
	SIPEncodingNames     = 0
	SIPEncodingAddresses = 1
)

func DecodeSIPServers(data []byte) (SIPServers, error) {
	if len(data) < 1 {
		return SIPServers{}, fmt.Errorf("option 120: empty")
	}
	switch data[0] {
	case SIPEncodingNames:
		names, err := DecodeDomainSearchList(data[1:])
		if err != nil {
			return SIPServers{}, fmt.Errorf("option 120 (names): %w", err)
		}
		return SIPServers{Names: names}, nil
	case SIPEncodingAddresses:
		ips, err := BytesToIPList(data[1:])
		if err != nil {
			return SIPServers{}, fmt.Errorf("option 120 (addresses): %w", err)
		}
		return SIPServers{IPs: ips}, nil
	default:
		return SIPServers{}, fmt.Errorf("option 120: unknown encoding %d", data[0])
	}
}

func EncodeSIPServers(s SIPServers) ([]byte, error) {
	if len(s.Names) > 0 {
		payload, err := EncodeDomainSearchList(s.Names)
		if err != nil {
			return nil, fmt.Errorf("option 120 (names): %w", err)
		}
		return append([]byte{SIPEncodingNames}, payload...), nil
	}
	return append([]byte{SIPEncodingAddresses}, IPListToBytes(s.IPs)...), nil
}

// MoSAddressList decodes option 137 (RFC 5223): a list of Mobility
// Services (MoS) IPv4 addresses.
func DecodeMoSAddressList(data []byte) ([]net.IP, error) {
	return BytesToIPList(data)
}

func EncodeMoSAddressList(ips []net.IP) []byte {
	return IPListToBytes(ips)
}

// DNSv4Domain/DNSv4Zone decode options 139/140 (RFC 5678): DNS-server
// IPv4 address lists scoped to a named service ("domain" / "zone").
func DecodeDNSv4Domain(data []byte) ([]net.IP, error) {
	return BytesToIPList(data)
}

func EncodeDNSv4Domain(ips []net.IP) []byte {
	return IPListToBytes(ips)
}

func DecodeDNSv4Zone(data []byte) ([]net.IP, error) {
	return BytesToIPList(data)
}

func EncodeDNSv4Zone(ips []net.IP) []byte {
	return IPListToBytes(ips)
}
