package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestEncodeTelemetryLayout(t *testing.T) {
	got := EncodeTelemetry(TelemetrySample{TemperatureC: 1.0, HumidityPercent: -2.0})
	// 1.0 = 0x3F800000, -2.0 = 0xC0000000, little-endian
	want := []byte{'@', 'T', 8, 0x00, 0x00, 0x80, 0x3F, 0x00, 0x00, 0x00, 0xC0, '$'}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeTelemetry() = % x, want % x", got, want)
	}
	if len(got) != TelemetryFrameLen {
		t.Errorf("len = %d, want %d", len(got), TelemetryFrameLen)
	}
}

func TestTelemetryRoundTripBitExact(t *testing.T) {
	tests := []struct {
		name string
		in   TelemetrySample
	}{
		{"typical", TelemetrySample{TemperatureC: 21.37, HumidityPercent: 48.5}},
		{"negative", TelemetrySample{TemperatureC: -40.125, HumidityPercent: 0}},
		{"extremes", TelemetrySample{TemperatureC: math.MaxFloat32, HumidityPercent: math.SmallestNonzeroFloat32}},
		{"nan and inf", TelemetrySample{TemperatureC: float32(math.NaN()), HumidityPercent: float32(math.Inf(1))}},
		{"negative zero", TelemetrySample{TemperatureC: float32(math.Copysign(0, -1)), HumidityPercent: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTelemetry(EncodeTelemetry(tt.in))
			if err != nil {
				t.Fatalf("DecodeTelemetry() error = %v", err)
			}
			if math.Float32bits(got.TemperatureC) != math.Float32bits(tt.in.TemperatureC) {
				t.Errorf("TemperatureC bits = %08x, want %08x", math.Float32bits(got.TemperatureC), math.Float32bits(tt.in.TemperatureC))
			}
			if math.Float32bits(got.HumidityPercent) != math.Float32bits(tt.in.HumidityPercent) {
				t.Errorf("HumidityPercent bits = %08x, want %08x", math.Float32bits(got.HumidityPercent), math.Float32bits(tt.in.HumidityPercent))
			}
		})
	}
}

func TestDecodeTelemetryRejects(t *testing.T) {
	valid := EncodeTelemetry(TelemetrySample{TemperatureC: 20, HumidityPercent: 50})

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"nil", nil, ErrEnvelope},
		{"missing end marker", valid[:len(valid)-1], ErrEnvelope},
		{"bad start marker", append([]byte{'#'}, valid[1:]...), ErrEnvelope},
		{"wrong tag", func() []byte {
			b := append([]byte(nil), valid...)
			b[1] = 'X'
			return b
		}(), ErrUnexpectedTag},
		{"length byte lies", func() []byte {
			b := append([]byte(nil), valid...)
			b[2] = 7
			return b
		}(), ErrLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTelemetry(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodeTelemetry() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOutboundFrameEncode(t *testing.T) {
	got, err := OutboundFrame{Tag: 'X', Payload: []byte{1, 2}}.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := []byte{'@', 'X', 2, 1, 2, '$'}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % x, want % x", got, want)
	}

	if _, err := (OutboundFrame{Tag: 'X', Payload: make([]byte, 256)}).Encode(); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Encode(256 bytes) error = %v, want %v", err, ErrPayloadTooLarge)
	}
}

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name        string
		value       []byte
		wantErr     bool
		wantOpcode  byte
		wantPayload []byte
	}{
		{"set color", []byte{'@', 'L', 0x03, 0x40, 0x80, 0xFF, '$'}, false, 'L', []byte{0x40, 0x80, 0xFF}},
		{"opcode only", []byte{'@', 'Z', '$'}, false, 'Z', nil},
		{"length byte only", []byte{'@', 'Z', 0x00, '$'}, false, 'Z', nil},
		{"empty", []byte{}, true, 0, nil},
		{"lone start", []byte{'@'}, true, 0, nil},
		{"no start marker", []byte{'L', 0x03, 1, 2, 3, '$'}, true, 0, nil},
		{"no end marker", []byte{'@', 'L', 0x03, 1, 2, 3}, true, 0, nil},
		{"marker pair", []byte{'@', '$'}, false, '$', nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseInbound(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseInbound() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrEnvelope) {
					t.Errorf("error = %v, want %v", err, ErrEnvelope)
				}
				return
			}
			if f.Opcode != tt.wantOpcode {
				t.Errorf("Opcode = %q, want %q", f.Opcode, tt.wantOpcode)
			}
			if !bytes.Equal(f.Payload, tt.wantPayload) {
				t.Errorf("Payload = % x, want % x", f.Payload, tt.wantPayload)
			}
		})
	}
}
