package dhcp

import (
	"fmt"
	"sort"

	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

// Options is a map of DHCP option code to raw option data. A multi-part
// option (the same code appearing more than once on the wire) is stored
// as a single concatenated value, per spec §3.
type Options map[dhcpv4.OptionCode][]byte

// priorityOptions are emitted first, in this order, ahead of every other
// option (spec §3: "options are emitted with message-type (53),
// server-identifier (54), lease-time (51) first").
var priorityOptions = []dhcpv4.OptionCode{
	dhcpv4.OptionDHCPMessageType,
	dhcpv4.OptionServerIdentifier,
	dhcpv4.OptionIPLeaseTime,
}

// DecodeOptions parses the options section of a DHCP packet (RFC 2132).
// Options are TLV-encoded; a repeated code concatenates its values
// (spec §3's "multi-part option" rule). It reports whether a single pad
// byte immediately followed the end-of-options marker.
func DecodeOptions(data []byte) (Options, bool, error) {
	opts := make(Options)
	i := 0
	terminalPad := false
	ended := false
	for i < len(data) {
		code := dhcpv4.OptionCode(data[i])
		i++

		if code == dhcpv4.OptionPad {
			if ended {
				terminalPad = true
				break
			}
			continue
		}

		if code == dhcpv4.OptionEnd {
			ended = true
			if i < len(data) && data[i] == 0 {
				terminalPad = true
			}
			break
		}

		if i >= len(data) {
			return nil, false, fmt.Errorf("truncated option %d: no length byte", code)
		}

		length := int(data[i])
		i++

		if i+length > len(data) {
			return nil, false, fmt.Errorf("truncated option %d: need %d bytes, have %d", code, length, len(data)-i)
		}

		value := data[i : i+length]
		i += length

		if existing, ok := opts[code]; ok {
			opts[code] = append(append([]byte(nil), existing...), value...)
		} else {
			opts[code] = append([]byte(nil), value...)
		}
	}

	return opts, terminalPad, nil
}

// Encode serializes options to bytes, applying the ordering, filtering,
// size-truncation and size-splitting rules of spec §3/§4.1.
//
//   - filter, if non-nil, is the union of the request's parameter-request
//     list and the mandatory option set; any option outside it is omitted.
//   - maxSize, if non-zero, bounds the size of the returned options block;
//     content outside the mandatory set is dropped (highest code first)
//     until the bound is met. The mandatory set is never truncated.
//   - terminalPad appends a single 0x00 byte after the end marker.
func (opts Options) Encode(filter []dhcpv4.OptionCode, maxSize int, terminalPad bool) []byte {
	codes := opts.orderedCodes(filter)

	fitted := opts.truncateToFit(codes, maxSize)

	var buf []byte
	for _, code := range fitted {
		value := opts[code]
		buf = append(buf, splitOption(code, value)...)
	}
	buf = append(buf, byte(dhcpv4.OptionEnd))
	if terminalPad {
		buf = append(buf, 0x00)
	}
	return buf
}

// orderedCodes returns the option codes to emit, in encode order:
// priorityOptions first (if present), then the rest in ascending code
// order, filtered by the parameter-request-list union if filter != nil.
func (opts Options) orderedCodes(filter []dhcpv4.OptionCode) []dhcpv4.OptionCode {
	var allow map[dhcpv4.OptionCode]bool
	if filter != nil {
		allow = make(map[dhcpv4.OptionCode]bool, len(filter))
		for _, c := range filter {
			allow[c] = true
		}
	}

	present := func(c dhcpv4.OptionCode) bool {
		_, ok := opts[c]
		return ok
	}
	permitted := func(c dhcpv4.OptionCode) bool {
		return allow == nil || allow[c]
	}

	var ordered []dhcpv4.OptionCode
	emitted := make(map[dhcpv4.OptionCode]bool)
	for _, c := range priorityOptions {
		if present(c) && permitted(c) {
			ordered = append(ordered, c)
			emitted[c] = true
		}
	}

	var rest []dhcpv4.OptionCode
	for c := range opts {
		if c == dhcpv4.OptionPad || c == dhcpv4.OptionEnd || emitted[c] {
			continue
		}
		if !permitted(c) {
			continue
		}
		rest = append(rest, c)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })

	return append(ordered, rest...)
}

// truncateToFit drops optional (non-mandatory) codes, highest code
// first, until the encoded size of the remaining codes fits maxSize.
// codes is assumed already in encode order; the returned slice preserves
// that order.
func (opts Options) truncateToFit(codes []dhcpv4.OptionCode, maxSize int) []dhcpv4.OptionCode {
	if maxSize <= 0 {
		return codes
	}

	size := func(cs []dhcpv4.OptionCode) int {
		n := 1 // end marker
		for _, c := range cs {
			n += len(splitOption(c, opts[c]))
		}
		return n
	}

	if size(codes) <= maxSize {
		return codes
	}

	kept := append([]dhcpv4.OptionCode(nil), codes...)
	for size(kept) > maxSize {
		dropIdx := -1
		for i := len(kept) - 1; i >= 0; i-- {
			if !MandatoryOptions[kept[i]] {
				dropIdx = i
				break
			}
		}
		if dropIdx == -1 {
			break // only mandatory options remain; cannot truncate further
		}
		kept = append(kept[:dropIdx], kept[dropIdx+1:]...)
	}
	return kept
}

// splitOption encodes one option's value as one or more TLVs with the
// same code, each carrying at most 255 bytes of value (spec §3/§8
// property 3).
func splitOption(code dhcpv4.OptionCode, value []byte) []byte {
	if len(value) == 0 {
		return []byte{byte(code), 0}
	}
	var buf []byte
	for len(value) > 0 {
		n := len(value)
		if n > 255 {
			n = 255
		}
		buf = append(buf, byte(code), byte(n))
		buf = append(buf, value[:n]...)
		value = value[n:]
	}
	return buf
}

// Get returns the raw value for an option code.
func (opts Options) Get(code dhcpv4.OptionCode) ([]byte, bool) {
	v, ok := opts[code]
	return v, ok
}

// Set sets an option to a raw value, rejecting data that violates the
// option's registered fixed-length, minimum-length, or length-multiple
// constraint (spec §3). Unknown codes are accepted as raw bytes.
func (opts Options) Set(code dhcpv4.OptionCode, value []byte) error {
	if err := ValidateOption(code, value); err != nil {
		return err
	}
	opts[code] = value
	return nil
}

// SetIP sets an IP address option.
func (opts Options) SetIP(code dhcpv4.OptionCode, ip interface{}) error {
	switch v := ip.(type) {
	case [4]byte:
		return opts.Set(code, v[:])
	case []byte:
		return opts.Set(code, v)
	}
	return fmt.Errorf("option %d: unsupported IP value type %T", code, ip)
}

// SetUint32 sets a uint32 option.
func (opts Options) SetUint32(code dhcpv4.OptionCode, v uint32) error {
	return opts.Set(code, dhcpv4.Uint32ToBytes(v))
}

// SetUint16 sets a uint16 option.
func (opts Options) SetUint16(code dhcpv4.OptionCode, v uint16) error {
	return opts.Set(code, dhcpv4.Uint16ToBytes(v))
}

// SetString sets a string option.
func (opts Options) SetString(code dhcpv4.OptionCode, s string) error {
	return opts.Set(code, []byte(s))
}

// SetBool sets a boolean option (1 byte: 0x00 or 0x01).
func (opts Options) SetBool(code dhcpv4.OptionCode, v bool) error {
	if v {
		return opts.Set(code, []byte{0x01})
	}
	return opts.Set(code, []byte{0x00})
}

// Has returns true if the option is present.
func (opts Options) Has(code dhcpv4.OptionCode) bool {
	_, ok := opts[code]
	return ok
}

// Delete removes an option.
func (opts Options) Delete(code dhcpv4.OptionCode) {
	delete(opts, code)
}

// Clone returns a deep copy of the options.
func (opts Options) Clone() Options {
	clone := make(Options, len(opts))
	for k, v := range opts {
		vc := make([]byte, len(v))
		copy(vc, v)
		clone[k] = vc
	}
	return clone
}
