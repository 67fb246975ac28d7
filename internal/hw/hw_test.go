//go:build !tinygo

package hw

import (
	"math"
	"testing"

	"periph.io/x/conn/v3/gpio"
)

func TestDutyFor(t *testing.T) {
	tests := []struct {
		in   float32
		want gpio.Duty
	}{
		{0, 0},
		{1, gpio.DutyMax},
		{0.5, gpio.DutyHalf},
		{-0.2, 0},
		{1.7, gpio.DutyMax},
		{float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		got := dutyFor(tt.in)
		// float32 rounding may land one step either side.
		if diff := int64(got) - int64(tt.want); diff < -1 || diff > 1 {
			t.Errorf("dutyFor(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPinByNameUnconfigured(t *testing.T) {
	if _, err := OpenLine("", true); err != ErrNotConfigured {
		t.Errorf("OpenLine(\"\") error = %v, want %v", err, ErrNotConfigured)
	}
	if _, err := OpenRGBLED("", "", ""); err != ErrNotConfigured {
		t.Errorf("OpenRGBLED() error = %v, want %v", err, ErrNotConfigured)
	}
}

func TestNops(t *testing.T) {
	var l Line = NopLine{}
	if err := l.Set(true); err != nil {
		t.Errorf("NopLine.Set() error = %v", err)
	}
	var i Indicator = NopIndicator{}
	if err := i.SetColor(1, 1, 1); err != nil {
		t.Errorf("NopIndicator.SetColor() error = %v", err)
	}
}
