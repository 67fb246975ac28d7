//go:build tinygo && xiao_ble

// Command iotegg-firmware is the IoTEgg node as TinyGo firmware for a Seeed
// XIAO nRF52840. The SoftDevice is the BLE stack, a BME280 sits on the
// board's I²C pins and a common-cathode RGB LED is wired to D1..D3.
//
// Build:
//
//	tinygo flash -target=xiao-ble ./cmd/iotegg-firmware
package main

import (
	"context"
	"log/slog"
	"machine"
	"time"

	"github.com/chaz8081/iotegg-node/internal/ble"
	"github.com/chaz8081/iotegg-node/internal/ble/peripheral"
	"github.com/chaz8081/iotegg-node/internal/hw"
)

func main() {
	// Give a USB serial console time to attach.
	time.Sleep(2 * time.Second)

	sensor, err := hw.OpenBME280(machine.I2C0, machine.I2CConfig{
		SDA: machine.SDA_PIN,
		SCL: machine.SCL_PIN,
	})
	if err != nil {
		halt("sensor", err)
	}

	tr, err := peripheral.Open("")
	if err != nil {
		halt("bluetooth", err)
	}

	led := hw.OpenRGBLED(machine.D1, machine.D2, machine.D3)
	activity := hw.OpenLine(machine.LED, false)

	// The SoftDevice has no reset line; the guard's pulse is a no-op.
	node := ble.NewNode(tr, sensor, led, nil, activity, ble.DefaultNodeOptions())
	if err := node.Run(context.Background()); err != nil {
		halt("node", err)
	}
}

// halt reports a fatal bootstrap error forever; firmware has nowhere to exit to.
func halt(what string, err error) {
	for {
		slog.Error("startup failed", "component", what, "error", err)
		time.Sleep(5 * time.Second)
	}
}
