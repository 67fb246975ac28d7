// Package hw wraps the node's board peripherals: the radio reset line, the
// activity LED, the RGB indicator and the temperature/humidity sensor.
// Host builds drive them through periph.io; TinyGo builds use machine pins
// and tinygo.org/x/drivers.
package hw

import "errors"

// ErrNotConfigured is returned when a peripheral has no pin or bus assigned.
var ErrNotConfigured = errors.New("hw: peripheral not configured")

// Line is a single digital output.
type Line interface {
	Set(high bool) error
}

// Indicator accepts per-channel intensities in [0,1].
type Indicator interface {
	SetColor(r, g, b float32) error
}

// Sensor returns environmental readings.
type Sensor interface {
	SampleTemperatureC() (float32, error)
	SampleHumidityPercent() (float32, error)
}

// NopLine discards writes. Used where a board has no such pin.
type NopLine struct{}

func (NopLine) Set(bool) error { return nil }

// NopIndicator discards colours.
type NopIndicator struct{}

func (NopIndicator) SetColor(r, g, b float32) error { return nil }

func clamp01(v float32) float32 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	}
	return v
}
