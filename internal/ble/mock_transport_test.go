package ble

import (
	"errors"
	"time"

	"github.com/chaz8081/iotegg-node/internal/ble/advert"
	"github.com/chaz8081/iotegg-node/internal/hw"
)

// Compile-time interface checks.
var (
	_ Transport    = (*mockTransport)(nil)
	_ hw.Line      = (*mockLine)(nil)
	_ hw.Indicator = (*mockIndicator)(nil)
	_ hw.Sensor    = (*mockSensor)(nil)
)

// fakeClock is a manually advanced clock shared by the guard, the node and
// the mock transport.
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
}

type mockWrite struct {
	handle uint16
	offset uint8
	value  []byte
}

type mockMode struct {
	d advert.Discoverability
	c advert.Connectability
}

// mockTransport answers every command on the next Poll unless the command
// name is in hang, in which case it stays busy and Poll burns the full
// timeout on the clock.
type mockTransport struct {
	clock   *fakeClock
	handler func(Event)

	addr advert.MAC
	hang map[string]bool

	cmds    []string
	params  []advert.Params
	advData map[advert.DataKind][]byte
	modes   []mockMode
	writes  []mockWrite

	busy        bool
	hung        bool
	pendingAddr bool
	queued      []Event

	polls   int
	cancels int
	cmdErr  error
}

func newMockTransport(clock *fakeClock) *mockTransport {
	return &mockTransport{
		clock:   clock,
		hang:    make(map[string]bool),
		advData: make(map[advert.DataKind][]byte),
	}
}

func (m *mockTransport) SetEventHandler(h func(Event)) { m.handler = h }

func (m *mockTransport) issue(name string) error {
	if m.cmdErr != nil {
		return m.cmdErr
	}
	m.cmds = append(m.cmds, name)
	m.busy = true
	m.hung = m.hang[name]
	return nil
}

func (m *mockTransport) SetAdvParameters(p advert.Params) error {
	if err := m.issue("set_adv_parameters"); err != nil {
		return err
	}
	m.params = append(m.params, p)
	return nil
}

func (m *mockTransport) SetAdvData(kind advert.DataKind, data []byte) error {
	if err := m.issue("set_adv_data/" + kind.String()); err != nil {
		return err
	}
	m.advData[kind] = append([]byte(nil), data...)
	return nil
}

func (m *mockTransport) SetMode(d advert.Discoverability, c advert.Connectability) error {
	if err := m.issue("set_mode"); err != nil {
		return err
	}
	m.modes = append(m.modes, mockMode{d, c})
	return nil
}

func (m *mockTransport) QueryAddress() error {
	if err := m.issue("address_get"); err != nil {
		return err
	}
	m.pendingAddr = !m.hung
	return nil
}

func (m *mockTransport) WriteAttribute(handle uint16, offset uint8, value []byte) error {
	if err := m.issue("attributes_write"); err != nil {
		return err
	}
	m.writes = append(m.writes, mockWrite{handle, offset, append([]byte(nil), value...)})
	return nil
}

func (m *mockTransport) Poll(timeout time.Duration) error {
	m.polls++
	if m.busy {
		if m.hung {
			if m.clock != nil {
				m.clock.Advance(timeout)
			}
		} else {
			m.busy = false
			if m.pendingAddr {
				m.pendingAddr = false
				m.deliver(Event{Kind: EventAddress, Address: m.addr})
			}
		}
	}
	events := m.queued
	m.queued = nil
	for _, ev := range events {
		m.deliver(ev)
	}
	return nil
}

func (m *mockTransport) deliver(ev Event) {
	if m.handler != nil {
		m.handler(ev)
	}
}

func (m *mockTransport) Busy() bool { return m.busy }

func (m *mockTransport) CancelPending() {
	m.cancels++
	m.busy = false
	m.hung = false
}

// Enqueue makes ev arrive on the next Poll.
func (m *mockTransport) Enqueue(ev Event) {
	m.queued = append(m.queued, ev)
}

// mockLine records every level driven onto it.
type mockLine struct {
	levels []bool
}

func (l *mockLine) Set(high bool) error {
	l.levels = append(l.levels, high)
	return nil
}

// mockIndicator records colours.
type mockIndicator struct {
	calls [][3]float32
}

func (i *mockIndicator) SetColor(r, g, b float32) error {
	i.calls = append(i.calls, [3]float32{r, g, b})
	return nil
}

// mockSensor returns fixed readings or errors.
type mockSensor struct {
	temp, hum       float32
	tempErr, humErr error
	reads           int
}

func (s *mockSensor) SampleTemperatureC() (float32, error) {
	s.reads++
	return s.temp, s.tempErr
}

func (s *mockSensor) SampleHumidityPercent() (float32, error) {
	return s.hum, s.humErr
}

var errMockSensor = errors.New("mock: sensor not responding")

// newTestNode builds a node whose guard and telemetry run on clock.
func newTestNode(tr *mockTransport, clock *fakeClock) (*Node, *mockIndicator, *mockLine) {
	ind := &mockIndicator{}
	reset := &mockLine{}
	sensor := &mockSensor{temp: 21.5, hum: 40}
	n := NewNode(tr, sensor, ind, reset, nil, DefaultNodeOptions())
	n.now = clock.Now
	n.guard.now = clock.Now
	n.guard.sleep = clock.Sleep
	return n, ind, reset
}
