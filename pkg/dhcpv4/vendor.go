package dhcpv4

import (
	"encoding/binary"
	"fmt"
)

// VendorSubOption is a single nested TLV inside option 43 or 125's payload.
type VendorSubOption struct {
	Code  byte
	Value []byte
}

// ParseVendorSubOptions decodes the RFC 2132 §8.4-style nested TLV stream
// carried by option 43 (vendor-specific) once any enterprise-number prefix
// (option 124/125) has already been stripped.
func ParseVendorSubOptions(data []byte) ([]VendorSubOption, error) {
	var subs []VendorSubOption
	i := 0
	for i < len(data) {
		code := data[i]
		i++
		if code == 0 { // pad
			continue
		}
		if code == 255 { // end
			break
		}
		if i >= len(data) {
			return nil, fmt.Errorf("truncated vendor sub-option %d: no length byte", code)
		}
		length := int(data[i])
		i++
		if i+length > len(data) {
			return nil, fmt.Errorf("truncated vendor sub-option %d: need %d bytes", code, length)
		}
		value := make([]byte, length)
		copy(value, data[i:i+length])
		subs = append(subs, VendorSubOption{Code: code, Value: value})
		i += length
	}
	return subs, nil
}

// EncodeVendorSubOptions is the inverse of ParseVendorSubOptions.
func EncodeVendorSubOptions(subs []VendorSubOption) []byte {
	var buf []byte
	for _, s := range subs {
		buf = append(buf, s.Code, byte(len(s.Value)))
		buf = append(buf, s.Value...)
	}
	return buf
}

// VIVendorClass is one enterprise-number-keyed entry of option 124
// (RFC 3925 Vendor-Identifying Vendor Class).
type VIVendorClass struct {
	EnterpriseNumber uint32
	Data             []byte
}

// VIVendorSpecific is one enterprise-number-keyed entry of option 125
// (RFC 3925 Vendor-Identifying Vendor-Specific Information); its Data is
// itself a nested TLV stream decodable with ParseVendorSubOptions.
type VIVendorSpecific struct {
	EnterpriseNumber uint32
	Data             []byte
}

// ParseVIVendorClass decodes option 124: a sequence of
// (enterprise-number(4), len(1), data(len)) entries.
func ParseVIVendorClass(data []byte) ([]VIVendorClass, error) {
	var out []VIVendorClass
	i := 0
	for i < len(data) {
		if i+5 > len(data) {
			return nil, fmt.Errorf("truncated vendor-identifying vendor class entry at offset %d", i)
		}
		enterprise := binary.BigEndian.Uint32(data[i : i+4])
		length := int(data[i+4])
		i += 5
		if i+length > len(data) {
			return nil, fmt.Errorf("truncated vendor-identifying vendor class data at offset %d", i)
		}
		entryData := make([]byte, length)
		copy(entryData, data[i:i+length])
		out = append(out, VIVendorClass{EnterpriseNumber: enterprise, Data: entryData})
		i += length
	}
	return out, nil
}

// EncodeVIVendorClass is the inverse of ParseVIVendorClass.
func EncodeVIVendorClass(entries []VIVendorClass) []byte {
	var buf []byte
	for _, e := range entries {
		buf = append(buf, Uint32ToBytes(e.EnterpriseNumber)...)
		buf = append(buf, byte(len(e.Data)))
		buf = append(buf, e.Data...)
	}
	return buf
}

// ParseVIVendorSpecific decodes option 125 using the same entry framing as
// option 124; each entry's Data is further a nested vendor sub-option TLV
// stream per RFC 3925 §4.
func ParseVIVendorSpecific(data []byte) ([]VIVendorSpecific, error) {
	entries, err := ParseVIVendorClass(data)
	if err != nil {
		return nil, err
	}
	out := make([]VIVendorSpecific, len(entries))
	for i, e := range entries {
		out[i] = VIVendorSpecific{EnterpriseNumber: e.EnterpriseNumber, Data: e.Data}
	}
	return out, nil
}

// EncodeVIVendorSpecific is the inverse of ParseVIVendorSpecific.
func EncodeVIVendorSpecific(entries []VIVendorSpecific) []byte {
	classes := make([]VIVendorClass, len(entries))
	for i, e := range entries {
		classes[i] = VIVendorClass{EnterpriseNumber: e.EnterpriseNumber, Data: e.Data}
	}
	return EncodeVIVendorClass(classes)
}
