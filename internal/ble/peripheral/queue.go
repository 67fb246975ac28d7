// Package peripheral runs the node on a local Bluetooth controller through
// tinygo.org/x/bluetooth, acting as its own GATT server instead of talking to
// a BGAPI coprocessor.
package peripheral

import (
	"log/slog"
	"time"

	"github.com/chaz8081/iotegg-node/internal/ble"
)

// queueSize bounds events buffered between polls.
const queueSize = 32

// eventQueue carries events from stack callbacks, which run on goroutines
// owned by the Bluetooth stack, to Poll on the node's goroutine.
type eventQueue struct {
	ch      chan ble.Event
	handler func(ble.Event)
}

func newEventQueue() *eventQueue {
	return &eventQueue{ch: make(chan ble.Event, queueSize)}
}

// push never blocks; stack callbacks must return promptly.
func (q *eventQueue) push(ev ble.Event) {
	select {
	case q.ch <- ev:
	default:
		slog.Warn("[BLE] event queue full, dropping event", "kind", ev.Kind)
	}
}

// poll dispatches every queued event, waiting up to timeout for the first.
func (q *eventQueue) poll(timeout time.Duration) {
	if !q.drain() && timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case ev := <-q.ch:
			q.dispatch(ev)
			q.drain()
		case <-timer.C:
		}
	}
}

func (q *eventQueue) drain() bool {
	handled := false
	for {
		select {
		case ev := <-q.ch:
			handled = true
			q.dispatch(ev)
		default:
			return handled
		}
	}
}

func (q *eventQueue) dispatch(ev ble.Event) {
	if q.handler != nil {
		q.handler(ev)
	}
}
