// Package mirror republishes the node's telemetry samples to an MQTT broker
// so a gateway can chart them without a BLE central.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/chaz8081/iotegg-node/internal/ble/protocol"
)

const (
	queueSize      = 16
	publishTimeout = 5 * time.Second
	connectPoll    = 200 * time.Millisecond
	quiesceMillis  = 250
)

// Options configures the broker connection.
type Options struct {
	Broker    string
	Port      int
	ClientID  string
	StationID string
}

// Telemetry is the JSON document published per sample. Readings that are
// not finite are omitted.
type Telemetry struct {
	StationID   string    `json:"station_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature_c,omitempty"`
	Humidity    *float64  `json:"humidity_pct,omitempty"`
	Sequence    uint64    `json:"sequence"`
}

// Topic returns the telemetry topic for a station.
func Topic(stationID string) string {
	return fmt.Sprintf("stations/%s/telemetry", stationID)
}

// Mirror queues samples from the node loop and publishes them from its own
// goroutine, so a slow broker never stalls the radio.
type Mirror struct {
	client    mqtt.Client
	stationID string
	samples   chan protocol.TelemetrySample
	seq       uint64
	now       func() time.Time
}

// New builds a mirror with an auto-reconnecting paho client.
func New(opts Options) *Mirror {
	o := mqtt.NewClientOptions()
	o.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Broker, opts.Port))
	o.SetClientID(opts.ClientID)
	o.SetCleanSession(true)
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(5 * time.Second)
	o.SetMaxReconnectInterval(60 * time.Second)
	o.SetKeepAlive(30 * time.Second)
	o.SetPingTimeout(10 * time.Second)
	o.SetOnConnectHandler(func(mqtt.Client) {
		slog.Info("[MQTT] connected", "broker", opts.Broker, "port", opts.Port)
	})
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("[MQTT] connection lost", "error", err)
	})
	return newMirror(mqtt.NewClient(o), opts.StationID)
}

func newMirror(client mqtt.Client, stationID string) *Mirror {
	return &Mirror{
		client:    client,
		stationID: stationID,
		samples:   make(chan protocol.TelemetrySample, queueSize),
		now:       time.Now,
	}
}

// Observe queues a sample. It never blocks; when the queue is full the
// sample is dropped.
func (m *Mirror) Observe(s protocol.TelemetrySample) {
	select {
	case m.samples <- s:
	default:
		slog.Debug("[MQTT] queue full, dropping sample")
	}
}

// Run connects and publishes queued samples until ctx is cancelled, then
// disconnects. It returns the connect error, if any, or ctx.Err().
func (m *Mirror) Run(ctx context.Context) error {
	defer m.client.Disconnect(quiesceMillis)

	if err := m.connect(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-m.samples:
			if err := m.publish(s); err != nil {
				slog.Warn("[MQTT] publish failed", "error", err)
			}
		}
	}
}

func (m *Mirror) connect(ctx context.Context) error {
	token := m.client.Connect()
	for {
		if token.WaitTimeout(connectPoll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (m *Mirror) publish(s protocol.TelemetrySample) error {
	if !m.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	m.seq++
	doc := Telemetry{
		StationID:   m.stationID,
		Timestamp:   m.now(),
		Temperature: finite(s.TemperatureC),
		Humidity:    finite(s.HumidityPercent),
		Sequence:    m.seq,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	topic := Topic(m.stationID)
	token := m.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}
	slog.Debug("[MQTT] published telemetry", "topic", topic, "sequence", m.seq)
	return nil
}

func finite(v float32) *float64 {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
