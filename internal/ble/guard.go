package ble

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/iotegg-node/internal/hw"
)

var (
	// ErrTimeout means the stack never answered; the radio has been reset.
	ErrTimeout = errors.New("ble: command timed out")
	// ErrBusy means a previous command is still outstanding.
	ErrBusy = errors.New("ble: transport busy")
)

// pollBackoff bounds spinning when Poll keeps failing.
const pollBackoff = 5 * time.Millisecond

// GuardOptions configures the command guard.
type GuardOptions struct {
	ResetPulse time.Duration // how long reset is held low (default 50ms)
	PostWait   time.Duration // telemetry wait for an outstanding command (default 20ms)
}

// DefaultGuardOptions returns sensible defaults.
func DefaultGuardOptions() GuardOptions {
	return GuardOptions{
		ResetPulse: 50 * time.Millisecond,
		PostWait:   20 * time.Millisecond,
	}
}

// Guard serializes stack commands: one outstanding at a time, with a
// hardware reset of the radio when a command never completes.
type Guard struct {
	tr       Transport
	reset    hw.Line
	activity hw.Line
	opts     GuardOptions

	now   func() time.Time
	sleep func(time.Duration)
	lit   bool
}

// NewGuard creates a guard for tr. reset is the active-low radio reset line;
// activity is lit while a command is outstanding. Either may be nil.
func NewGuard(tr Transport, reset, activity hw.Line, opts GuardOptions) *Guard {
	if reset == nil {
		reset = hw.NopLine{}
	}
	if activity == nil {
		activity = hw.NopLine{}
	}
	if opts.ResetPulse <= 0 {
		opts.ResetPulse = 50 * time.Millisecond
	}
	if opts.PostWait <= 0 {
		opts.PostWait = 20 * time.Millisecond
	}
	return &Guard{
		tr:       tr,
		reset:    reset,
		activity: activity,
		opts:     opts,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Issue sends cmd and waits up to timeout for the stack to go idle. Any
// command still outstanding from before counts against the same budget.
// On timeout the pending command is dropped and the radio is reset; the
// command is not retried.
func (g *Guard) Issue(name string, timeout time.Duration, cmd func() error) error {
	deadline := g.now().Add(timeout)

	if !g.waitIdle(deadline) {
		return g.timedOut(name, timeout)
	}

	g.setActivity(true)
	if err := cmd(); err != nil {
		g.Sync()
		return fmt.Errorf("ble: %s: %w", name, err)
	}

	if !g.waitIdle(deadline) {
		return g.timedOut(name, timeout)
	}
	g.Sync()
	return nil
}

// Post is the telemetry path: it never resets the radio and never waits for
// the command's own response. If a command is still outstanding it polls
// once for at most PostWait and gives up with ErrBusy.
func (g *Guard) Post(name string, cmd func() error) error {
	if g.tr.Busy() {
		if err := g.tr.Poll(g.opts.PostWait); err != nil {
			slog.Debug("[BLE] poll failed", "command", name, "error", err)
		}
		if g.tr.Busy() {
			return fmt.Errorf("ble: %s: %w", name, ErrBusy)
		}
	}

	g.setActivity(true)
	if err := cmd(); err != nil {
		g.Sync()
		return fmt.Errorf("ble: %s: %w", name, err)
	}
	return nil
}

// Reset pulses the radio reset line low for ResetPulse.
func (g *Guard) Reset() {
	if err := g.reset.Set(false); err != nil {
		slog.Error("[BLE] reset line low failed", "error", err)
	}
	g.sleep(g.opts.ResetPulse)
	if err := g.reset.Set(true); err != nil {
		slog.Error("[BLE] reset line high failed", "error", err)
	}
}

// Sync updates the activity LED from the transport's busy flag.
func (g *Guard) Sync() {
	g.setActivity(g.tr.Busy())
}

// waitIdle polls until the transport is idle or deadline passes.
func (g *Guard) waitIdle(deadline time.Time) bool {
	for g.tr.Busy() {
		remaining := deadline.Sub(g.now())
		if remaining <= 0 {
			return false
		}
		if err := g.tr.Poll(remaining); err != nil {
			slog.Debug("[BLE] poll failed", "error", err)
			g.sleep(min(remaining, pollBackoff))
		}
	}
	return true
}

func (g *Guard) timedOut(name string, timeout time.Duration) error {
	g.tr.CancelPending()
	g.Reset()
	g.Sync()
	slog.Warn("[BLE] command timed out, radio reset", "command", name, "timeout", timeout)
	return fmt.Errorf("ble: %s: %w", name, ErrTimeout)
}

func (g *Guard) setActivity(on bool) {
	if on == g.lit {
		return
	}
	if err := g.activity.Set(on); err != nil {
		slog.Debug("[BLE] activity LED failed", "error", err)
		return
	}
	g.lit = on
}
