package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/chaz8081/iotegg-node/internal/ble/protocol"
)

// doneToken is an already-completed token.
type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient implements the parts of mqtt.Client the mirror uses. Calling
// anything else panics on the nil embedded interface.
type fakeClient struct {
	mqtt.Client
	connectErr   error
	connected    bool
	pubs         chan published
	disconnected chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		connected:    true,
		pubs:         make(chan published, 8),
		disconnected: make(chan struct{}),
	}
}

func (c *fakeClient) Connect() mqtt.Token { return doneToken{err: c.connectErr} }
func (c *fakeClient) IsConnected() bool   { return c.connected }
func (c *fakeClient) Disconnect(uint)     { close(c.disconnected) }
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.pubs <- published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)}
	return doneToken{}
}

func TestTopic(t *testing.T) {
	if got := Topic("egg-1"); got != "stations/egg-1/telemetry" {
		t.Errorf("Topic() = %q", got)
	}
}

func TestRunPublishesObservedSamples(t *testing.T) {
	client := newFakeClient()
	m := newMirror(client, "egg-1")
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return stamp }

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	m.Observe(protocol.TelemetrySample{TemperatureC: 21.5, HumidityPercent: 40})

	var p published
	select {
	case p = <-client.pubs:
	case <-time.After(2 * time.Second):
		t.Fatal("no publish")
	}
	if p.topic != "stations/egg-1/telemetry" || p.qos != 1 || p.retained {
		t.Errorf("publish = %q qos=%d retained=%v", p.topic, p.qos, p.retained)
	}
	var doc Telemetry
	if err := json.Unmarshal(p.payload, &doc); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if doc.StationID != "egg-1" || !doc.Timestamp.Equal(stamp) || doc.Sequence != 1 {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Temperature == nil || *doc.Temperature != 21.5 {
		t.Errorf("temperature = %v", doc.Temperature)
	}
	if doc.Humidity == nil || *doc.Humidity != 40 {
		t.Errorf("humidity = %v", doc.Humidity)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	select {
	case <-client.disconnected:
	default:
		t.Error("Run did not disconnect")
	}
}

func TestRunConnectError(t *testing.T) {
	client := newFakeClient()
	client.connectErr = errors.New("refused")
	m := newMirror(client, "egg-1")

	if err := m.Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil")
	}
	select {
	case <-client.disconnected:
	default:
		t.Error("Run did not disconnect after connect failure")
	}
}

func TestPublishOmitsNonFinite(t *testing.T) {
	client := newFakeClient()
	m := newMirror(client, "egg-1")

	if err := m.publish(protocol.TelemetrySample{TemperatureC: float32(math.NaN()), HumidityPercent: float32(math.Inf(1))}); err != nil {
		t.Fatalf("publish() error = %v", err)
	}
	p := <-client.pubs
	var raw map[string]any
	if err := json.Unmarshal(p.payload, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["temperature_c"]; ok {
		t.Error("NaN temperature was published")
	}
	if _, ok := raw["humidity_pct"]; ok {
		t.Error("infinite humidity was published")
	}
}

func TestPublishNotConnected(t *testing.T) {
	client := newFakeClient()
	client.connected = false
	m := newMirror(client, "egg-1")

	if err := m.publish(protocol.TelemetrySample{}); err == nil {
		t.Error("publish() error = nil while disconnected")
	}
	if len(client.pubs) != 0 {
		t.Error("published while disconnected")
	}
}

func TestObserveDropsWhenFull(t *testing.T) {
	m := newMirror(newFakeClient(), "egg-1")
	for i := 0; i < queueSize+3; i++ {
		m.Observe(protocol.TelemetrySample{TemperatureC: float32(i)})
	}
	if len(m.samples) != queueSize {
		t.Errorf("queued %d, want %d", len(m.samples), queueSize)
	}
}

func TestSequenceIncrements(t *testing.T) {
	client := newFakeClient()
	m := newMirror(client, "egg-1")
	for i := 0; i < 2; i++ {
		if err := m.publish(protocol.TelemetrySample{}); err != nil {
			t.Fatal(err)
		}
	}
	var a, b Telemetry
	json.Unmarshal((<-client.pubs).payload, &a)
	json.Unmarshal((<-client.pubs).payload, &b)
	if a.Sequence != 1 || b.Sequence != 2 {
		t.Errorf("sequences = %d, %d", a.Sequence, b.Sequence)
	}
}
