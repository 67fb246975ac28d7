package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TelemetryPayloadLen is two float32 readings.
const TelemetryPayloadLen = 8

// TelemetryFrameLen is the full on-air size of a telemetry frame.
const TelemetryFrameLen = TelemetryPayloadLen + outboundOverhead

// TelemetrySample is one temperature/humidity reading.
type TelemetrySample struct {
	TemperatureC    float32
	HumidityPercent float32
}

// EncodeTelemetry builds the 12-byte telemetry frame:
//
//	'@' 'T' 8 <temp f32> <humidity f32> '$'
//
// Floats are IEEE-754 little-endian, the native order of the Cortex-M3
// nodes already in the field, so the wire format does not depend on the
// host CPU.
func EncodeTelemetry(s TelemetrySample) []byte {
	buf := make([]byte, TelemetryFrameLen)
	buf[0] = FrameStart
	buf[1] = TagTelemetry
	buf[2] = TelemetryPayloadLen
	binary.LittleEndian.PutUint32(buf[3:7], math.Float32bits(s.TemperatureC))
	binary.LittleEndian.PutUint32(buf[7:11], math.Float32bits(s.HumidityPercent))
	buf[11] = FrameEnd
	return buf
}

// DecodeTelemetry parses a frame built by EncodeTelemetry. Values are
// recovered bit-exactly, NaN payloads included.
func DecodeTelemetry(data []byte) (TelemetrySample, error) {
	f, err := DecodeOutbound(data)
	if err != nil {
		return TelemetrySample{}, err
	}
	if f.Tag != TagTelemetry {
		return TelemetrySample{}, fmt.Errorf("%w: got %q, want %q", ErrUnexpectedTag, f.Tag, TagTelemetry)
	}
	if len(f.Payload) != TelemetryPayloadLen {
		return TelemetrySample{}, ErrLengthMismatch
	}
	return TelemetrySample{
		TemperatureC:    math.Float32frombits(binary.LittleEndian.Uint32(f.Payload[0:4])),
		HumidityPercent: math.Float32frombits(binary.LittleEndian.Uint32(f.Payload[4:8])),
	}, nil
}
