//go:build !tinygo

package hw

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// PWMFrequency drives the RGB LED fast enough not to flicker.
const PWMFrequency = 2 * physic.KiloHertz

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the periph.io host drivers. It is safe to call repeatedly.
func Init() error {
	initOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			initErr = fmt.Errorf("hw: host init: %w", err)
		}
	})
	return initErr
}

func pinByName(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, ErrNotConfigured
	}
	if err := Init(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("hw: no GPIO named %q", name)
	}
	return p, nil
}

// GPIOLine is a digital output on a host GPIO.
type GPIOLine struct {
	pin gpio.PinIO
}

// OpenLine opens the named GPIO (e.g. "GPIO17") and drives it to initial.
func OpenLine(name string, initial bool) (*GPIOLine, error) {
	p, err := pinByName(name)
	if err != nil {
		return nil, err
	}
	l := &GPIOLine{pin: p}
	if err := l.Set(initial); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *GPIOLine) Set(high bool) error {
	if err := l.pin.Out(gpio.Level(high)); err != nil {
		return fmt.Errorf("hw: %s: %w", l.pin, err)
	}
	return nil
}

// RGBLED is a common-cathode RGB LED on three PWM-capable GPIOs.
type RGBLED struct {
	pins [3]gpio.PinIO
}

// OpenRGBLED opens the red, green and blue pins and turns the LED off.
func OpenRGBLED(red, green, blue string) (*RGBLED, error) {
	led := &RGBLED{}
	for i, name := range []string{red, green, blue} {
		p, err := pinByName(name)
		if err != nil {
			return nil, err
		}
		led.pins[i] = p
	}
	if err := led.SetColor(0, 0, 0); err != nil {
		return nil, err
	}
	return led, nil
}

func (l *RGBLED) SetColor(r, g, b float32) error {
	for i, v := range [3]float32{r, g, b} {
		if err := l.pins[i].PWM(dutyFor(v), PWMFrequency); err != nil {
			return fmt.Errorf("hw: pwm %s: %w", l.pins[i], err)
		}
	}
	return nil
}

// dutyFor maps an intensity in [0,1] to a PWM duty cycle.
func dutyFor(v float32) gpio.Duty {
	return gpio.Duty(clamp01(v) * float32(gpio.DutyMax))
}

// BME280 is a Bosch BME280/BMP280 on an I²C bus.
type BME280 struct {
	bus i2c.BusCloser
	dev *bmxx80.Dev
}

// OpenBME280 opens bus ("" for the default bus) and the sensor at addr.
func OpenBME280(bus string, addr uint16) (*BME280, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("hw: open i2c %q: %w", bus, err)
	}
	dev, err := bmxx80.NewI2C(b, addr, &bmxx80.DefaultOpts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("hw: bmxx80 at 0x%02X: %w", addr, err)
	}
	return &BME280{bus: b, dev: dev}, nil
}

func (s *BME280) sense() (physic.Env, error) {
	var env physic.Env
	if err := s.dev.Sense(&env); err != nil {
		return env, fmt.Errorf("hw: bmxx80 sense: %w", err)
	}
	return env, nil
}

func (s *BME280) SampleTemperatureC() (float32, error) {
	env, err := s.sense()
	if err != nil {
		return 0, err
	}
	return float32(env.Temperature.Celsius()), nil
}

func (s *BME280) SampleHumidityPercent() (float32, error) {
	env, err := s.sense()
	if err != nil {
		return 0, err
	}
	return float32(float64(env.Humidity) / float64(physic.PercentRH)), nil
}

// Close halts the sensor and releases the bus.
func (s *BME280) Close() error {
	herr := s.dev.Halt()
	if err := s.bus.Close(); err != nil {
		return err
	}
	return herr
}
