package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestDecodeSetColor(t *testing.T) {
	f, err := ParseInbound([]byte{'@', 'L', 0x03, 0x40, 0x80, 0xFF, '$'})
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	c, err := DecodeSetColor(f)
	if err != nil {
		t.Fatalf("DecodeSetColor() error = %v", err)
	}
	if c != (Color{R: 0x40, G: 0x80, B: 0xFF}) {
		t.Errorf("DecodeSetColor() = %v, want #4080FF", c)
	}

	r, g, b := c.Fractions()
	for _, tc := range []struct {
		name      string
		got, want float32
	}{
		{"red", r, 0.25},
		{"green", g, 0.50},
		{"blue", b, 1.00},
	} {
		if math.Abs(float64(tc.got-tc.want)) > 0.01 {
			t.Errorf("%s = %v, want ~%v", tc.name, tc.got, tc.want)
		}
	}
}

func TestDecodeSetColorIgnoresTrailingBytes(t *testing.T) {
	f, err := ParseInbound([]byte{'@', 'L', 0x05, 1, 2, 3, 4, 5, '$'})
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	c, err := DecodeSetColor(f)
	if err != nil {
		t.Fatalf("DecodeSetColor() error = %v", err)
	}
	if c != (Color{R: 1, G: 2, B: 3}) {
		t.Errorf("DecodeSetColor() = %v, want #010203", c)
	}
}

func TestDecodeSetColorEndMarkerAsBlue(t *testing.T) {
	f, err := ParseInbound([]byte{'@', 'L', 0x03, 0x11, 0x22, '$'})
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	c, err := DecodeSetColor(f)
	if err != nil {
		t.Fatalf("DecodeSetColor() error = %v", err)
	}
	if want := (Color{R: 0x11, G: 0x22, B: '$'}); c != want {
		t.Errorf("DecodeSetColor() = %v, want %v", c, want)
	}
}

func TestDecodeSetColorShortFrames(t *testing.T) {
	for _, value := range [][]byte{
		{'@', 'L', '$'},
		{'@', 'L', 0x03, '$'},
		{'@', 'L', 0x03, 0x11, '$'},
	} {
		f, err := ParseInbound(value)
		if err != nil {
			t.Fatalf("ParseInbound(% x) error = %v", value, err)
		}
		if _, err := DecodeSetColor(f); !errors.Is(err, ErrShortPayload) {
			t.Errorf("DecodeSetColor(% x) error = %v, want %v", value, err, ErrShortPayload)
		}
	}
}

func TestDecodeSetColorErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame InboundFrame
		want  error
	}{
		{"unknown opcode", InboundFrame{Opcode: 'Q', Payload: []byte{1, 2, 3}}, ErrUnknownOpcode},
		{"short payload", InboundFrame{Opcode: OpSetColor, Payload: []byte{1, 2}}, ErrShortPayload},
		{"no payload", InboundFrame{Opcode: OpSetColor}, ErrShortPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSetColor(tt.frame)
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodeSetColor() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEncodeSetColorParsesBack(t *testing.T) {
	want := Color{R: 0x12, G: 0x34, B: 0x56}
	raw := EncodeSetColor(want)
	if !bytes.Equal(raw, []byte{'@', 'L', 3, 0x12, 0x34, 0x56, '$'}) {
		t.Fatalf("EncodeSetColor() = % x", raw)
	}
	f, err := ParseInbound(raw)
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	got, err := DecodeSetColor(f)
	if err != nil {
		t.Fatalf("DecodeSetColor() error = %v", err)
	}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestColorString(t *testing.T) {
	if got := (Color{R: 0xAB, G: 0x01, B: 0xFF}).String(); got != "#AB01FF" {
		t.Errorf("String() = %q, want %q", got, "#AB01FF")
	}
}
