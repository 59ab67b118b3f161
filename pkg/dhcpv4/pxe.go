package dhcpv4

import (
	"encoding/binary"
	"fmt"
)

// PXEClientSystem decodes option 93 (RFC 4578 §2.1): a list of 16-bit
// client-system architecture type identifiers.
func PXEClientSystem(data []byte) ([]uint16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("option 93: length %d not a multiple of 2", len(data))
	}
	out := make([]uint16, 0, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		out = append(out, binary.BigEndian.Uint16(data[i:i+2]))
	}
	return out, nil
}

// EncodePXEClientSystem is the inverse of PXEClientSystem.
func EncodePXEClientSystem(archs []uint16) []byte {
	buf := make([]byte, len(archs)*2)
	for i, a := range archs {
		binary.BigEndian.PutUint16(buf[i*2:i*2+2], a)
	}
	return buf
}

// PXEClientNDI decodes option 94 (RFC 4578 §2.2): network device
// interface type, followed by a major/minor version pair.
type PXEClientNDI struct {
	Type  byte
	Major byte
	Minor byte
}

func DecodePXEClientNDI(data []byte) (PXEClientNDI, error) {
	if len(data) != 3 {
		return PXEClientNDI{}, fmt.Errorf("option 94: expected 3 bytes, got %d", len(data))
	}
	return PXEClientNDI{Type: data[0], Major: data[1], Minor: data[2]}, nil
}

func EncodePXEClientNDI(ndi PXEClientNDI) []byte {
	return []byte{ndi.Type, ndi.Major, ndi.Minor}
}

// PXEClientMachineID decodes option 97 (RFC 4578 §2.3): a one-byte type
// field (0 = GUID) followed by a 16-byte identifier.
type PXEClientMachineID struct {
	Type byte
	GUID [16]byte
}

func DecodePXEClientMachineID(data []byte) (PXEClientMachineID, error) {
	if len(data) != 17 {
		return PXEClientMachineID{}, fmt.Errorf("option 97: expected 17 bytes, got %d", len(data))
	}
	var id PXEClientMachineID
	id.Type = data[0]
	copy(id.GUID[:], data[1:17])
	return id, nil
}

func EncodePXEClientMachineID(id PXEClientMachineID) []byte {
	buf := make([]byte, 17)
	buf[0] = id.Type
	copy(buf[1:], id.GUID[:])
	return buf
}
