//go:build !tinygo

// Command iotegg-node runs the IoTEgg sensor node on a Linux host: it drives
// the BLE radio, streams BME280 readings to the connected peer and applies
// colour commands to an RGB LED.
//
// Usage:
//
//	iotegg-node [--config path] [--init]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chaz8081/iotegg-node/internal/ble"
	"github.com/chaz8081/iotegg-node/internal/ble/bgapi"
	"github.com/chaz8081/iotegg-node/internal/ble/peripheral"
	"github.com/chaz8081/iotegg-node/internal/config"
	"github.com/chaz8081/iotegg-node/internal/hw"
	"github.com/chaz8081/iotegg-node/internal/logging"
	"github.com/chaz8081/iotegg-node/internal/mirror"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/iotegg-node/config.yaml)")
	initConfig := flag.Bool("init", false, "write the default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			fmt.Println("Config already exists at", config.DefaultConfigPath())
			return
		}
		fmt.Println("Wrote", path)
		return
	}

	// Load configuration
	cfg, source, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(logging.New(os.Stderr, cfg.LogFormat, config.ParseLogLevel(cfg.LogLevel)))
	slog.Info("config loaded", "source", source)

	printBanner(cfg)

	// Signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("node failed", "error", err)
		os.Exit(1)
	}
	slog.Info("goodbye")
}

func run(ctx context.Context, cfg *config.Config) error {
	tr, closeTransport, err := openTransport(cfg.Transport)
	if err != nil {
		return err
	}
	defer closeTransport()

	reset, err := openLine("reset", cfg.Pins.Reset, true)
	if err != nil {
		return err
	}
	activity, err := openLine("activity", cfg.Pins.Activity, false)
	if err != nil {
		return err
	}
	indicator, err := openIndicator(cfg.Pins)
	if err != nil {
		return err
	}

	sensor, err := hw.OpenBME280(cfg.Sensor.I2CBus, cfg.Sensor.Address)
	if err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	defer sensor.Close()
	slog.Info("sensor ready", "bus", cfg.Sensor.I2CBus, "address", fmt.Sprintf("0x%02X", cfg.Sensor.Address))

	node := ble.NewNode(tr, sensor, indicator, reset, activity, nodeOptions(cfg))

	var wg sync.WaitGroup
	if cfg.MQTT.Enabled {
		m := mirror.New(mirror.Options{
			Broker:    cfg.MQTT.Broker,
			Port:      cfg.MQTT.Port,
			ClientID:  cfg.MQTT.ClientID,
			StationID: cfg.MQTT.StationID,
		})
		node.Observe(m.Observe)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("[MQTT] mirror stopped", "error", err)
			}
		}()
	}

	slog.Info("Ready! Ctrl+C to quit.")
	err = node.Run(ctx)
	wg.Wait()
	return err
}

// openTransport opens the configured BLE transport and returns a func that
// releases it.
func openTransport(tc config.TransportConfig) (ble.Transport, func(), error) {
	switch tc.Kind {
	case config.TransportPeripheral:
		tr, err := peripheral.Open(tc.Adapter)
		if err != nil {
			return nil, nil, fmt.Errorf("transport: %w", err)
		}
		slog.Info("[BLE] using host controller", "adapter", tc.Adapter)
		return tr, func() {}, nil
	default:
		tr, err := bgapi.Dial(tc.SerialPort, tc.Baud, bgapi.Options{PacketMode: tc.PacketMode})
		if err != nil {
			return nil, nil, fmt.Errorf("transport: %w", err)
		}
		slog.Info("[BLE] using BGAPI module", "port", tc.SerialPort, "baud", tc.Baud, "packet_mode", tc.PacketMode)
		return tr, func() {
			if err := tr.Close(); err != nil {
				slog.Debug("[BLE] close serial port", "error", err)
			}
		}, nil
	}
}

// openLine opens an output pin, or returns a no-op line when name is empty.
func openLine(role, name string, initial bool) (hw.Line, error) {
	l, err := hw.OpenLine(name, initial)
	if errors.Is(err, hw.ErrNotConfigured) {
		slog.Info("pin not configured", "role", role)
		return hw.NopLine{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s pin: %w", role, err)
	}
	return l, nil
}

func openIndicator(pins config.PinsConfig) (hw.Indicator, error) {
	led, err := hw.OpenRGBLED(pins.Red, pins.Green, pins.Blue)
	if errors.Is(err, hw.ErrNotConfigured) {
		slog.Info("RGB LED not configured, colour commands will be logged only")
		return hw.NopIndicator{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rgb led: %w", err)
	}
	return led, nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults. It also reports where
// the config came from.
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, defaultPath, nil
	}

	// No config file, use defaults
	return config.Default(), "defaults", nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== iotegg-node ===")
	switch cfg.Transport.Kind {
	case config.TransportPeripheral:
		fmt.Printf("  Radio:     host controller %s\n", cfg.Transport.Adapter)
	default:
		fmt.Printf("  Radio:     BGAPI %s @ %d baud\n", cfg.Transport.SerialPort, cfg.Transport.Baud)
	}
	fmt.Printf("  Sensor:    BME280 0x%02X\n", cfg.Sensor.Address)
	fmt.Printf("  Telemetry: every %s\n", cfg.Telemetry.Interval)
	if cfg.MQTT.Enabled {
		fmt.Printf("  MQTT:      %s:%d as %s\n", cfg.MQTT.Broker, cfg.MQTT.Port, cfg.MQTT.StationID)
	}
	fmt.Printf("  Log:       %s (%s)\n", cfg.LogLevel, cfg.LogFormat)
	fmt.Println("===================")
}
