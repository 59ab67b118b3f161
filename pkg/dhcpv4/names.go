package dhcpv4

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// EncodeDomainName renders a single DNS name as RFC-1035 wire-format
// labels (option 15, and each entry of option 119's RFC-3397 variant),
// delegating the label-length validation to miekg/dns rather than
// reimplementing DNS label packing by hand.
func EncodeDomainName(name string) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("empty domain name")
	}
	fqdn := dns.Fqdn(name)
	buf := make([]byte, dns.MaxMsgSize)
	off, err := dns.PackDomainName(fqdn, buf, 0, nil, false)
	if err != nil {
		return nil, fmt.Errorf("packing domain name %q: %w", name, err)
	}
	return buf[:off], nil
}

// EncodeDomainSearchList renders option 119's list of names. RFC 3397
// permits compression pointers *within* the option's own byte range;
// each name is packed against a shared compression map so repeated
// suffixes (e.g. "eng.example.com", "sales.example.com") are folded.
func EncodeDomainSearchList(names []string) ([]byte, error) {
	buf := make([]byte, dns.MaxMsgSize)
	compression := make(map[string]int)
	off := 0
	for _, name := range names {
		fqdn := dns.Fqdn(name)
		n, err := dns.PackDomainName(fqdn, buf, off, compression, true)
		if err != nil {
			return nil, fmt.Errorf("packing search domain %q: %w", name, err)
		}
		off = n
	}
	return append([]byte(nil), buf[:off]...), nil
}

// DecodeDomainName unpacks a single RFC-1035 name (option 15).
func DecodeDomainName(data []byte) (string, error) {
	name, _, err := dns.UnpackDomainName(data, 0)
	if err != nil {
		return "", fmt.Errorf("unpacking domain name: %w", err)
	}
	return strings.TrimSuffix(name, "."), nil
}

// DecodeDomainSearchList unpacks option 119's compressed name list.
func DecodeDomainSearchList(data []byte) ([]string, error) {
	var names []string
	off := 0
	for off < len(data) {
		name, next, err := dns.UnpackDomainName(data, off)
		if err != nil {
			return nil, fmt.Errorf("unpacking search domain at offset %d: %w", off, err)
		}
		if next <= off {
			return nil, fmt.Errorf("non-advancing domain name at offset %d", off)
		}
		names = append(names, strings.TrimSuffix(name, "."))
		off = next
	}
	return names, nil
}
