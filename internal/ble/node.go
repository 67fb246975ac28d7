package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/iotegg-node/internal/ble/advert"
	"github.com/chaz8081/iotegg-node/internal/ble/protocol"
	"github.com/chaz8081/iotegg-node/internal/hw"
)

// idlePoll is how long each main loop iteration waits for radio input.
const idlePoll = 10 * time.Millisecond

// NodeOptions configures the node.
type NodeOptions struct {
	Advertising  advert.Params
	SetupTimeout time.Duration // per setup command (default 1s)
	BootDelay    time.Duration // wait after the boot reset pulse (default 1s)
	Interval     time.Duration // telemetry interval (default 1s)
	Guard        GuardOptions
}

// DefaultNodeOptions returns sensible defaults.
func DefaultNodeOptions() NodeOptions {
	return NodeOptions{
		Advertising:  advert.DefaultParams(),
		SetupTimeout: time.Second,
		BootDelay:    time.Second,
		Interval:     time.Second,
		Guard:        DefaultGuardOptions(),
	}
}

// Node drives a Transport as the IoTEgg peripheral: it advertises, accepts
// one peer, applies colour commands and streams telemetry while connected.
// All of its state is touched only from the goroutine calling Run.
type Node struct {
	tr        Transport
	guard     *Guard
	indicator hw.Indicator
	telemetry *Telemetry
	opts      NodeOptions

	session Session
	addr    advert.MAC
	advData []byte

	now func() time.Time
}

// NewNode wires a node. reset and activity may be nil.
func NewNode(tr Transport, sensor hw.Sensor, indicator hw.Indicator, reset, activity hw.Line, opts NodeOptions) *Node {
	if opts.SetupTimeout <= 0 {
		opts.SetupTimeout = time.Second
	}
	if opts.Advertising == (advert.Params{}) {
		opts.Advertising = advert.DefaultParams()
	}
	if indicator == nil {
		indicator = hw.NopIndicator{}
	}
	g := NewGuard(tr, reset, activity, opts.Guard)
	n := &Node{
		tr:        tr,
		guard:     g,
		indicator: indicator,
		telemetry: NewTelemetry(sensor, g, tr, opts.Interval),
		opts:      opts,
		session:   NewSession(),
		advData:   advert.DefaultAdvertisingData(),
		now:       time.Now,
	}
	tr.SetEventHandler(n.dispatch)
	return n
}

// Observe registers fn to receive every telemetry sample sent to the peer.
func (n *Node) Observe(fn SampleObserver) {
	n.telemetry.Observe(fn)
}

// Session returns the current session.
func (n *Node) Session() Session {
	return n.session
}

// Address returns the device address learned during setup.
func (n *Node) Address() advert.MAC {
	return n.addr
}

// Run resets the radio, waits for it to boot and then services it until ctx
// is cancelled.
func (n *Node) Run(ctx context.Context) error {
	slog.Info("[BLE] resetting radio")
	n.guard.Reset()

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(n.opts.BootDelay):
	}

	n.telemetry.Start(n.now())
	for {
		if ctx.Err() != nil {
			slog.Info("[BLE] node stopped", "state", n.session.State)
			return nil
		}
		n.RunOnce()
	}
}

// RunOnce runs one main loop iteration: service the radio, then send telemetry
// if a peer is connected to us.
func (n *Node) RunOnce() {
	if err := n.tr.Poll(idlePoll); err != nil {
		slog.Debug("[BLE] poll failed", "error", err)
		time.Sleep(pollBackoff)
	}
	n.guard.Sync()
	if n.session.State == StateConnectedAsPeripheral {
		n.telemetry.Tick(n.now())
	}
}

// dispatch handles one event. The effect runs before the new session is
// committed, so events dispatched while an effect waits on the stack still
// see the previous state.
func (n *Node) dispatch(ev Event) {
	logEvent(ev)

	next, effect := Step(n.session, ev)
	switch effect {
	case EffectStartAdvertising:
		n.startAdvertising()
	case EffectResumeAdvertising:
		n.resumeAdvertising()
	case EffectHandleWrite:
		n.handleWrite(ev.Write)
	case EffectRecordAddress:
		n.addr = ev.Address
	}

	if next.State != n.session.State {
		slog.Info("[BLE] state changed", "from", n.session.State, "to", next.State)
	}
	n.session = next
}

// startAdvertising configures and enables advertising. A step that times
// out is not retried; the remaining steps still run.
func (n *Node) startAdvertising() {
	p := n.opts.Advertising
	n.setup("gap_set_adv_parameters", func() error {
		return n.tr.SetAdvParameters(p)
	})
	n.setup("gap_set_adv_data", func() error {
		return n.tr.SetAdvData(advert.KindAdvertising, n.advData)
	})
	n.setup("system_address_get", n.tr.QueryAddress)

	scan, err := advert.ScanResponseData(n.addr)
	if err != nil {
		slog.Error("[BLE] build scan response", "error", err)
	} else {
		n.setup("gap_set_adv_data", func() error {
			return n.tr.SetAdvData(advert.KindScanResponse, scan)
		})
	}

	n.resumeAdvertising()
	slog.Info("[BLE] advertising", "name", advert.LocalName(n.addr), "address", n.addr)
}

func (n *Node) resumeAdvertising() {
	n.setup("gap_set_mode", func() error {
		return n.tr.SetMode(advert.UserData, advert.UndirectedConnectable)
	})
}

func (n *Node) setup(name string, cmd func() error) {
	err := n.guard.Issue(name, n.opts.SetupTimeout, cmd)
	switch {
	case err == nil:
	case errors.Is(err, ErrTimeout):
		// Already logged and reset by the guard.
	default:
		slog.Error("[BLE] setup command failed", "command", name, "error", err)
	}
}

// handleWrite applies a peer command. Anything that is not a well-formed
// command on the command handle is dropped without a reply.
func (n *Node) handleWrite(w AttributeWrite) {
	if w.Handle != protocol.HandleCommandIn {
		return
	}
	frame, err := protocol.ParseInbound(w.Value)
	if err != nil {
		slog.Debug("[BLE] dropped write", "handle", w.Handle, "error", err)
		return
	}
	switch frame.Opcode {
	case protocol.OpSetColor:
		c, err := protocol.DecodeSetColor(frame)
		if err != nil {
			slog.Debug("[BLE] dropped set-color", "error", err)
			return
		}
		r, g, b := c.Fractions()
		if err := n.indicator.SetColor(r, g, b); err != nil {
			slog.Warn("[BLE] set color failed", "color", c, "error", err)
			return
		}
		slog.Debug("[BLE] led", "color", c)
	default:
		slog.Debug("[BLE] dropped command", "opcode", fmt.Sprintf("%q", frame.Opcode))
	}
}

func logEvent(ev Event) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	switch ev.Kind {
	case EventBoot:
		b := ev.Boot
		slog.Debug("[BLE] system_boot",
			"version", fmt.Sprintf("%d.%d.%d", b.Major, b.Minor, b.Patch),
			"build", b.Build, "ll_version", b.LLVersion,
			"protocol_version", b.ProtocolVersion, "hw", b.HW)
	case EventAddress:
		slog.Debug("[BLE] system_address_get", "address", ev.Address)
	case EventConnectionStatus:
		s := ev.Status
		slog.Debug("[BLE] connection_status",
			"connection", s.Connection, "flags", fmt.Sprintf("0x%02X", s.Flags),
			"address", s.Address, "address_type", s.AddressType,
			"interval", s.Interval, "timeout", s.Timeout, "latency", s.Latency,
			"bonding", fmt.Sprintf("0x%02X", s.Bonding))
	case EventDisconnected:
		slog.Debug("[BLE] connection_disconnected",
			"connection", ev.Disconnect.Connection,
			"reason", fmt.Sprintf("0x%04X", ev.Disconnect.Reason))
	case EventAttributeWritten:
		w := ev.Write
		slog.Debug("[BLE] attributes_value",
			"connection", w.Connection, "reason", w.Reason,
			"handle", w.Handle, "offset", w.Offset,
			"value", fmt.Sprintf("% X", w.Value))
	}
}
