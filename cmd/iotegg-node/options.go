package main

import (
	"github.com/chaz8081/iotegg-node/internal/ble"
	"github.com/chaz8081/iotegg-node/internal/ble/advert"
	"github.com/chaz8081/iotegg-node/internal/config"
)

// nodeOptions maps the config file onto the node's options.
func nodeOptions(cfg *config.Config) ble.NodeOptions {
	return ble.NodeOptions{
		Advertising: advert.Params{
			IntervalMin: cfg.Advertising.IntervalMin,
			IntervalMax: cfg.Advertising.IntervalMax,
			Channels:    cfg.Advertising.Channels,
		},
		SetupTimeout: cfg.Timeouts.Setup,
		BootDelay:    cfg.Timeouts.BootDelay,
		Interval:     cfg.Telemetry.Interval,
		Guard: ble.GuardOptions{
			ResetPulse: cfg.Timeouts.ResetPulse,
			PostWait:   cfg.Timeouts.Telemetry,
		},
	}
}
