// Package bgapi drives a Bluegiga BLE112 module over its serial BGAPI
// protocol. Only the commands and events the node uses are implemented.
//
// Every BGAPI packet has a four byte header:
//
//	byte 0: bit 7 message type (0 command/response, 1 event)
//	        bits 6..3 technology (0 = Bluetooth Smart)
//	        bits 2..0 payload length, high bits
//	byte 1: payload length, low byte
//	byte 2: class
//	byte 3: command / event id
//
// Multi-byte fields are little-endian.
package bgapi

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/chaz8081/iotegg-node/internal/ble"
	"github.com/chaz8081/iotegg-node/internal/ble/advert"
)

const (
	headerLen = 4

	typeEvent   byte = 0x80
	techMask    byte = 0x78
	lenHighMask byte = 0x07

	maxPayload = 0x07FF
)

// Message classes.
const (
	ClassSystem     byte = 0
	ClassAttributes byte = 2
	ClassConnection byte = 3
	ClassGAP        byte = 6
)

// Command ids (also the ids of their responses).
const (
	CmdSystemAddressGet    byte = 2 // class system
	CmdAttributesWrite     byte = 0 // class attributes
	CmdGAPSetMode          byte = 1 // class gap
	CmdGAPSetAdvParameters byte = 8 // class gap
	CmdGAPSetAdvData       byte = 9 // class gap
)

// Event ids.
const (
	EvtSystemBoot             byte = 0 // class system
	EvtAttributesValue        byte = 0 // class attributes
	EvtConnectionStatus       byte = 0 // class connection
	EvtConnectionDisconnected byte = 4 // class connection
)

var (
	ErrShortPacket = errors.New("bgapi: packet shorter than its fields")
	ErrTooLarge    = errors.New("bgapi: payload too large")
)

// Packet is one decoded BGAPI packet.
type Packet struct {
	Event   bool
	Class   byte
	ID      byte
	Payload []byte
}

// Encode serialises the packet. In packet mode the module expects each
// host packet to be prefixed with its total length.
func (p Packet) Encode(packetMode bool) ([]byte, error) {
	if len(p.Payload) > maxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(p.Payload))
	}
	n := len(p.Payload)
	if packetMode && headerLen+n > 0xFF {
		return nil, fmt.Errorf("%w: %d bytes in packet mode", ErrTooLarge, n)
	}
	buf := make([]byte, 0, headerLen+n+1)
	if packetMode {
		buf = append(buf, byte(headerLen+n))
	}
	b0 := byte(n>>8) & lenHighMask
	if p.Event {
		b0 |= typeEvent
	}
	buf = append(buf, b0, byte(n), p.Class, p.ID)
	return append(buf, p.Payload...), nil
}

func (p Packet) String() string {
	kind := "rsp"
	if p.Event {
		kind = "evt"
	}
	return fmt.Sprintf("%s %d/%d (%d bytes)", kind, p.Class, p.ID, len(p.Payload))
}

// parser accumulates serial bytes into packets.
type parser struct {
	buf []byte
}

func (ps *parser) write(b []byte) {
	ps.buf = append(ps.buf, b...)
}

func (ps *parser) reset() {
	ps.buf = ps.buf[:0]
}

// next returns the next complete packet, if any. Bytes that cannot start a
// Bluetooth Smart packet are skipped.
func (ps *parser) next() (Packet, bool) {
	for len(ps.buf) > 0 && ps.buf[0]&techMask != 0 {
		ps.buf = ps.buf[1:]
	}
	if len(ps.buf) < headerLen {
		return Packet{}, false
	}
	n := int(ps.buf[0]&lenHighMask)<<8 | int(ps.buf[1])
	if len(ps.buf) < headerLen+n {
		return Packet{}, false
	}
	p := Packet{
		Event:   ps.buf[0]&typeEvent != 0,
		Class:   ps.buf[2],
		ID:      ps.buf[3],
		Payload: append([]byte(nil), ps.buf[headerLen:headerLen+n]...),
	}
	ps.buf = ps.buf[headerLen+n:]
	return p, true
}

// Command builders.

func cmdSystemAddressGet() Packet {
	return Packet{Class: ClassSystem, ID: CmdSystemAddressGet}
}

func cmdGAPSetAdvParameters(p advert.Params) Packet {
	payload := make([]byte, 5)
	binary.LittleEndian.PutUint16(payload[0:], p.IntervalMin)
	binary.LittleEndian.PutUint16(payload[2:], p.IntervalMax)
	payload[4] = p.Channels
	return Packet{Class: ClassGAP, ID: CmdGAPSetAdvParameters, Payload: payload}
}

func cmdGAPSetAdvData(kind advert.DataKind, data []byte) Packet {
	payload := append([]byte{byte(kind), byte(len(data))}, data...)
	return Packet{Class: ClassGAP, ID: CmdGAPSetAdvData, Payload: payload}
}

func cmdGAPSetMode(d advert.Discoverability, c advert.Connectability) Packet {
	return Packet{Class: ClassGAP, ID: CmdGAPSetMode, Payload: []byte{byte(d), byte(c)}}
}

func cmdAttributesWrite(handle uint16, offset uint8, value []byte) Packet {
	payload := make([]byte, 4, 4+len(value))
	binary.LittleEndian.PutUint16(payload[0:], handle)
	payload[2] = offset
	payload[3] = byte(len(value))
	return Packet{Class: ClassAttributes, ID: CmdAttributesWrite, Payload: append(payload, value...)}
}

// Decoders. Each returns ErrShortPacket rather than reading past the payload.

func decodeAddress(p []byte) (advert.MAC, error) {
	var mac advert.MAC
	if len(p) < len(mac) {
		return mac, ErrShortPacket
	}
	copy(mac[:], p)
	return mac, nil
}

func decodeBoot(p []byte) (ble.BootInfo, error) {
	if len(p) < 12 {
		return ble.BootInfo{}, ErrShortPacket
	}
	le := binary.LittleEndian
	return ble.BootInfo{
		Major:           le.Uint16(p[0:]),
		Minor:           le.Uint16(p[2:]),
		Patch:           le.Uint16(p[4:]),
		Build:           le.Uint16(p[6:]),
		LLVersion:       le.Uint16(p[8:]),
		ProtocolVersion: p[10],
		HW:              p[11],
	}, nil
}

func decodeConnectionStatus(p []byte) (ble.ConnectionStatus, error) {
	if len(p) < 16 {
		return ble.ConnectionStatus{}, ErrShortPacket
	}
	le := binary.LittleEndian
	s := ble.ConnectionStatus{
		Connection:  p[0],
		Flags:       p[1],
		AddressType: p[8],
		Interval:    le.Uint16(p[9:]),
		Timeout:     le.Uint16(p[11:]),
		Latency:     le.Uint16(p[13:]),
		Bonding:     p[15],
	}
	copy(s.Address[:], p[2:8])
	return s, nil
}

func decodeDisconnected(p []byte) (ble.Disconnect, error) {
	if len(p) < 3 {
		return ble.Disconnect{}, ErrShortPacket
	}
	return ble.Disconnect{Connection: p[0], Reason: binary.LittleEndian.Uint16(p[1:])}, nil
}

func decodeAttributesValue(p []byte) (ble.AttributeWrite, error) {
	if len(p) < 7 {
		return ble.AttributeWrite{}, ErrShortPacket
	}
	n := int(p[6])
	if len(p) < 7+n {
		return ble.AttributeWrite{}, ErrShortPacket
	}
	le := binary.LittleEndian
	return ble.AttributeWrite{
		Connection: p[0],
		Reason:     p[1],
		Handle:     le.Uint16(p[2:]),
		Offset:     le.Uint16(p[4:]),
		Value:      p[7 : 7+n],
	}, nil
}

// decodeResult reads the uint16 result most responses start with.
func decodeResult(p []byte) (uint16, bool) {
	if len(p) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(p), true
}
