//go:build tinygo

package hw

import (
	"fmt"
	"machine"

	"tinygo.org/x/drivers/bme280"
)

// PinLine is a digital output on a microcontroller pin.
type PinLine struct {
	pin machine.Pin
}

// OpenLine configures pin as an output driven to initial.
func OpenLine(pin machine.Pin, initial bool) *PinLine {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Set(initial)
	return &PinLine{pin: pin}
}

func (l *PinLine) Set(high bool) error {
	l.pin.Set(high)
	return nil
}

// RGBLED switches each channel fully on at half intensity or above.
type RGBLED struct {
	pins [3]machine.Pin
}

// OpenRGBLED configures the three channel pins and turns the LED off.
func OpenRGBLED(red, green, blue machine.Pin) *RGBLED {
	led := &RGBLED{pins: [3]machine.Pin{red, green, blue}}
	for _, p := range led.pins {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
	}
	return led
}

func (l *RGBLED) SetColor(r, g, b float32) error {
	for i, v := range [3]float32{r, g, b} {
		l.pins[i].Set(clamp01(v) >= 0.5)
	}
	return nil
}

// BME280 reads a Bosch BME280 over the board's I²C bus.
type BME280 struct {
	dev bme280.Device
}

// OpenBME280 configures bus and the sensor on it.
func OpenBME280(bus *machine.I2C, cfg machine.I2CConfig) (*BME280, error) {
	if err := bus.Configure(cfg); err != nil {
		return nil, fmt.Errorf("hw: i2c configure: %w", err)
	}
	dev := bme280.New(bus)
	dev.Configure()
	if !dev.Connected() {
		return nil, fmt.Errorf("hw: bme280 not found")
	}
	return &BME280{dev: dev}, nil
}

// SampleTemperatureC converts the driver's milli-degrees.
func (s *BME280) SampleTemperatureC() (float32, error) {
	t, err := s.dev.ReadTemperature()
	if err != nil {
		return 0, fmt.Errorf("hw: bme280 temperature: %w", err)
	}
	return float32(t) / 1000, nil
}

// SampleHumidityPercent converts the driver's hundredths of a percent.
func (s *BME280) SampleHumidityPercent() (float32, error) {
	h, err := s.dev.ReadHumidity()
	if err != nil {
		return 0, fmt.Errorf("hw: bme280 humidity: %w", err)
	}
	return float32(h) / 100, nil
}
