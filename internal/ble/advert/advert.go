// Package advert builds the BLE advertising and scan-response payloads that
// make the node discoverable.
package advert

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// AD types used by the node (Bluetooth Core Supplement, Part A, 1).
const (
	ADTypeFlags                    byte = 0x01
	ADTypeComplete128BitServices   byte = 0x07
	ADTypeCompleteLocalName        byte = 0x09
	ADTypeManufacturerSpecificData byte = 0xFF
)

// Flags carried in the ADTypeFlags element.
const (
	FlagLEGeneralDiscoverable byte = 0x02
	FlagBREDRNotSupported     byte = 0x04
)

// MaxPayloadLen is the legacy advertising data limit.
const MaxPayloadLen = 31

// ServiceUUID identifies the IoTEgg service.
const ServiceUUID = "195ae58a-437a-489b-b0cd-b7c9c394bae4"

// NamePrefix is followed by the last three address bytes, e.g. "ICS IoTEgg 05:1B:2A".
const NamePrefix = "ICS IoTEgg "

var (
	ErrPayloadTooLong = errors.New("advert: payload exceeds 31 bytes")
	ErrMalformed      = errors.New("advert: malformed AD structure")
)

// Element is one length-type-value AD structure. The encoded length byte
// counts Type plus Data.
type Element struct {
	Type byte
	Data []byte
}

// Encode concatenates elements into one advertising payload.
func Encode(elements ...Element) ([]byte, error) {
	var buf []byte
	for _, e := range elements {
		if len(e.Data) > MaxPayloadLen-2 {
			return nil, fmt.Errorf("%w: element 0x%02X has %d data bytes", ErrPayloadTooLong, e.Type, len(e.Data))
		}
		buf = append(buf, byte(len(e.Data)+1), e.Type)
		buf = append(buf, e.Data...)
	}
	if len(buf) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLong, len(buf))
	}
	return buf, nil
}

// Parse splits an advertising payload back into elements. Zero-length
// structures terminate the payload early, as on air.
func Parse(payload []byte) ([]Element, error) {
	var out []Element
	for i := 0; i < len(payload); {
		n := int(payload[i])
		if n == 0 {
			break
		}
		if i+1+n > len(payload) {
			return nil, fmt.Errorf("%w: element at %d claims %d bytes, %d left", ErrMalformed, i, n, len(payload)-i-1)
		}
		out = append(out, Element{Type: payload[i+1], Data: payload[i+2 : i+1+n]})
		i += 1 + n
	}
	return out, nil
}

// UUIDBytes returns a 128-bit UUID in the little-endian order used on air.
func UUIDBytes(u uuid.UUID) [16]byte {
	var le [16]byte
	for i := range u {
		le[15-i] = u[i]
	}
	return le
}

// UUIDFromBytes is the inverse of UUIDBytes.
func UUIDFromBytes(le [16]byte) uuid.UUID {
	var u uuid.UUID
	for i := range le {
		u[15-i] = le[i]
	}
	return u
}

// AdvertisingData returns the discoverable payload: a flags element
// (general discoverable, LE only) and the complete 128-bit service list.
func AdvertisingData(service uuid.UUID) ([]byte, error) {
	le := UUIDBytes(service)
	return Encode(
		Element{Type: ADTypeFlags, Data: []byte{FlagLEGeneralDiscoverable | FlagBREDRNotSupported}},
		Element{Type: ADTypeComplete128BitServices, Data: le[:]},
	)
}

// DefaultAdvertisingData is AdvertisingData for ServiceUUID.
func DefaultAdvertisingData() []byte {
	b, err := AdvertisingData(uuid.MustParse(ServiceUUID))
	if err != nil {
		// 21 bytes, fixed at compile time.
		panic(err)
	}
	return b
}

// ScanResponseData returns the scan-response payload holding the node's
// complete local name.
func ScanResponseData(addr MAC) ([]byte, error) {
	return Encode(Element{Type: ADTypeCompleteLocalName, Data: []byte(LocalName(addr))})
}
