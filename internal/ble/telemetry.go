package ble

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/iotegg-node/internal/ble/protocol"
	"github.com/chaz8081/iotegg-node/internal/hw"
)

// SampleObserver receives every sample that was handed to the transport.
type SampleObserver func(protocol.TelemetrySample)

// Telemetry samples the sensor on a fixed interval and posts telemetry
// frames to the peer.
type Telemetry struct {
	sensor   hw.Sensor
	guard    *Guard
	tr       Transport
	interval time.Duration

	start     time.Time
	last      time.Duration
	observers []SampleObserver
}

// NewTelemetry creates a telemetry loop. interval defaults to one second.
func NewTelemetry(sensor hw.Sensor, guard *Guard, tr Transport, interval time.Duration) *Telemetry {
	if interval <= 0 {
		interval = time.Second
	}
	return &Telemetry{sensor: sensor, guard: guard, tr: tr, interval: interval}
}

// Observe registers fn to be called with each posted sample.
func (t *Telemetry) Observe(fn SampleObserver) {
	t.observers = append(t.observers, fn)
}

// Start resets the elapsed-time counter. The first sample is due one
// interval after start.
func (t *Telemetry) Start(now time.Time) {
	t.start = now
	t.last = 0
}

// Tick samples and posts a frame if an interval has elapsed since the last
// sample. It reports whether a frame was posted.
func (t *Telemetry) Tick(now time.Time) bool {
	elapsed := now.Sub(t.start)
	if elapsed-t.last < t.interval {
		return false
	}
	t.last = elapsed

	sample, err := t.sample()
	if err != nil {
		slog.Warn("[BLE] sensor read failed, skipping sample", "error", err)
		return false
	}

	frame := protocol.EncodeTelemetry(sample)
	err = t.guard.Post("attributes_write", func() error {
		return t.tr.WriteAttribute(protocol.HandleTelemetryOut, 0, frame)
	})
	if err != nil {
		slog.Debug("[BLE] telemetry not sent", "error", err)
		return false
	}

	slog.Debug("[BLE] telemetry",
		"temperature_c", sample.TemperatureC,
		"humidity_pct", sample.HumidityPercent,
	)
	for _, fn := range t.observers {
		fn(sample)
	}
	return true
}

func (t *Telemetry) sample() (protocol.TelemetrySample, error) {
	temp, err := t.sensor.SampleTemperatureC()
	if err != nil {
		return protocol.TelemetrySample{}, fmt.Errorf("temperature: %w", err)
	}
	hum, err := t.sensor.SampleHumidityPercent()
	if err != nil {
		return protocol.TelemetrySample{}, fmt.Errorf("humidity: %w", err)
	}
	return protocol.TelemetrySample{TemperatureC: temp, HumidityPercent: hum}, nil
}
