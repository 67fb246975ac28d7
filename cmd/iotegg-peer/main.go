// Command iotegg-peer is a manual test for a running node, acting as the
// phone app would. It finds a node (or uses --mac), connects, optionally
// sets the LED colour and prints telemetry until Ctrl+C.
//
// Usage:
//
//	go run ./cmd/iotegg-peer [--mac AA:BB:CC:DD:EE:FF] [--color FF8000] [--scan 5s]
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/iotegg-node/internal/ble/peer"
	"github.com/chaz8081/iotegg-node/internal/ble/protocol"
)

func main() {
	adapterID := flag.String("adapter", "", "HCI adapter (default: system default)")
	mac := flag.String("mac", "", "node address (default: strongest node found by scanning)")
	color := flag.String("color", "", "set the LED to RRGGBB after connecting")
	scanFor := flag.Duration("scan", 5*time.Second, "how long to scan when --mac is not given")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter := peer.NewCentralAdapter(*adapterID)
	if err := adapter.Enable(); err != nil {
		fmt.Printf("Error: enable adapter: %v\n", err)
		os.Exit(1)
	}

	target := *mac
	if target == "" {
		fmt.Printf("Scanning for IoTEgg nodes for %s...\n", *scanFor)
		scanCtx, cancel := context.WithTimeout(ctx, *scanFor)
		nodes, err := peer.FindNodes(scanCtx, adapter)
		cancel()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if len(nodes) == 0 {
			fmt.Println("No nodes found.")
			os.Exit(1)
		}
		for _, n := range nodes {
			fmt.Printf("  %s  %-22q %d dBm\n", n.MAC, n.Name, n.RSSI)
		}
		target = nodes[0].MAC
	}

	client := peer.NewClient(adapter, target, func(s protocol.TelemetrySample) {
		fmt.Printf("%s  %6.2f °C  %5.1f %%RH\n", time.Now().Format(time.TimeOnly), s.TemperatureC, s.HumidityPercent)
	}, peer.DefaultClientOptions())

	if *color != "" {
		c, err := parseColor(*color)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		// Held until the connection is up.
		client.SetColor(c)
	}

	fmt.Printf("Connecting to %s...\n", target)
	if err := client.Connect(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Connected. Press Ctrl+C to exit.")

	<-ctx.Done()
	client.Close()
	fmt.Println("\nDone!")
}

func parseColor(s string) (protocol.Color, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "#"))
	if err != nil || len(b) != 3 {
		return protocol.Color{}, fmt.Errorf("colour must be RRGGBB, got %q", s)
	}
	return protocol.Color{R: b[0], G: b[1], B: b[2]}, nil
}
