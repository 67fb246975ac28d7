package protocol

import "fmt"

// setColorPayloadLen is red, green, blue.
const setColorPayloadLen = 3

// Color is an 8-bit-per-channel indicator colour.
type Color struct {
	R, G, B uint8
}

// Fractions scales each channel to [0,1] by dividing by 255.
func (c Color) Fractions() (r, g, b float32) {
	return float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255
}

// String returns the colour as #RRGGBB.
func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// DecodeSetColor extracts the colour carried by an 'L' command. The three
// bytes at offset 3 of the attribute value are consumed; anything after them
// is ignored. A six-byte value has its end marker read as blue.
func DecodeSetColor(f InboundFrame) (Color, error) {
	if f.Opcode != OpSetColor {
		return Color{}, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, f.Opcode)
	}
	src := f.Payload
	if len(src) < setColorPayloadLen {
		src = f.tail
	}
	if len(src) < setColorPayloadLen {
		return Color{}, fmt.Errorf("%w: set color needs %d bytes, got %d", ErrShortPayload, setColorPayloadLen, len(f.Payload))
	}
	return Color{R: src[0], G: src[1], B: src[2]}, nil
}

// EncodeSetColor builds the command a peer app writes to HandleCommandIn:
//
//	'@' 'L' 3 R G B '$'
func EncodeSetColor(c Color) []byte {
	return []byte{FrameStart, OpSetColor, setColorPayloadLen, c.R, c.G, c.B, FrameEnd}
}
