//go:build !tinygo

// Command test-sensor is a manual test for the BME280 wiring. It prints a
// reading and the telemetry frame the node would send for it once per
// interval. Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-sensor [--bus 1] [--addr 0x76] [--interval 1s]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaz8081/iotegg-node/internal/ble/protocol"
	"github.com/chaz8081/iotegg-node/internal/hw"
)

func main() {
	bus := flag.String("bus", "", "I²C bus name (default: first bus)")
	addr := flag.Uint("addr", 0x76, "sensor I²C address")
	interval := flag.Duration("interval", time.Second, "sampling interval")
	flag.Parse()

	sensor, err := hw.OpenBME280(*bus, uint16(*addr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open sensor: %v\n", err)
		os.Exit(1)
	}
	defer sensor.Close()

	fmt.Printf("Reading BME280 at 0x%02X every %s...\n", *addr, *interval)
	fmt.Println("Press Ctrl+C to exit.")

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-sig:
			fmt.Println("\nDone.")
			return
		case <-ticker.C:
			temp, err := sensor.SampleTemperatureC()
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				continue
			}
			hum, err := sensor.SampleHumidityPercent()
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				continue
			}
			frame := protocol.EncodeTelemetry(protocol.TelemetrySample{TemperatureC: temp, HumidityPercent: hum})
			fmt.Printf("%6.2f °C  %5.1f %%RH  frame % X\n", temp, hum, frame)
		}
	}
}
