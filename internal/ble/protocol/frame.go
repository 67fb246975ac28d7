// Package protocol implements the IoTEgg application framing carried in
// GATT attribute writes.
//
// Every packet is enclosed between a start marker and an end marker:
//
//	'@' | tag/opcode (1) | payload... | '$'
//
// Telemetry frames sent by the node carry an explicit length byte after the
// tag. Command frames written by the peer have a byte at index 2 that the node
// ignores; the payload starts at index 3.
package protocol

// GATT attribute handles exposed by the node's BLE module.
const (
	// HandleCommandIn is the characteristic the peer writes commands to ("c_rx_data").
	HandleCommandIn uint16 = 17
	// HandleTelemetryOut is the characteristic the node writes telemetry to ("c_tx_data").
	HandleTelemetryOut uint16 = 20
)

// Frame markers and tags.
const (
	FrameStart byte = '@'
	FrameEnd   byte = '$'

	TagTelemetry byte = 'T'
	OpSetColor   byte = 'L'
)

const (
	// outboundOverhead is start + tag + length + end.
	outboundOverhead = 4

	// inboundPayloadOffset is where a command payload begins.
	inboundPayloadOffset = 3

	// MaxFramePayload is the largest payload an outbound length byte can describe.
	MaxFramePayload = 255
)

// OutboundFrame is a tagged, length-prefixed packet sent by the node.
type OutboundFrame struct {
	Tag     byte
	Payload []byte
}

// Encode serialises the frame as '@', tag, len(payload), payload..., '$'.
func (f OutboundFrame) Encode() ([]byte, error) {
	if len(f.Payload) > MaxFramePayload {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, 0, len(f.Payload)+outboundOverhead)
	buf = append(buf, FrameStart, f.Tag, byte(len(f.Payload)))
	buf = append(buf, f.Payload...)
	buf = append(buf, FrameEnd)
	return buf, nil
}

// DecodeOutbound parses a frame produced by OutboundFrame.Encode. It is the
// peer-side counterpart and is used by tooling and tests.
func DecodeOutbound(data []byte) (OutboundFrame, error) {
	if len(data) < outboundOverhead {
		return OutboundFrame{}, ErrEnvelope
	}
	if data[0] != FrameStart || data[len(data)-1] != FrameEnd {
		return OutboundFrame{}, ErrEnvelope
	}
	n := int(data[2])
	if n+outboundOverhead != len(data) {
		return OutboundFrame{}, ErrLengthMismatch
	}
	payload := make([]byte, n)
	copy(payload, data[3:3+n])
	return OutboundFrame{Tag: data[1], Payload: payload}, nil
}

// InboundFrame is a command written by the peer. Payload aliases the
// attribute value it was parsed from and must not be retained past the
// event handler.
type InboundFrame struct {
	Opcode  byte
	Payload []byte

	// tail is everything from the payload offset on, end marker included.
	tail []byte
}

// ParseInbound applies the envelope check to an attribute value: it must be
// non-empty, start with '@' and end with '$'. The opcode is byte 1 and the
// payload runs from byte 3 up to, but not including, the end marker.
func ParseInbound(value []byte) (InboundFrame, error) {
	if len(value) == 0 || value[0] != FrameStart || value[len(value)-1] != FrameEnd {
		return InboundFrame{}, ErrEnvelope
	}
	// len >= 2 here: a lone '@' cannot also end with '$'.
	f := InboundFrame{Opcode: value[1]}
	if len(value) > inboundPayloadOffset {
		f.Payload = value[inboundPayloadOffset : len(value)-1]
		f.tail = value[inboundPayloadOffset:]
	}
	return f, nil
}
