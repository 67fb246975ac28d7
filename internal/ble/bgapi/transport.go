package bgapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/iotegg-node/internal/ble"
	"github.com/chaz8081/iotegg-node/internal/ble/advert"
)

// ErrClosed is returned once the transport has been closed or its reader
// has hit a permanent error.
var ErrClosed = errors.New("bgapi: transport closed")

// Options configures the transport.
type Options struct {
	// PacketMode prefixes every host packet with its length, matching a
	// module firmware built with packet mode on.
	PacketMode bool
	// ReadSize is the serial read chunk size (default 64).
	ReadSize int
}

// Transport speaks BGAPI over a byte stream. A background goroutine does the
// blocking reads; packets are parsed and dispatched only inside Poll, so the
// event handler always runs on the caller's goroutine.
type Transport struct {
	w    io.Writer
	opts Options

	chunks chan []byte
	done   chan struct{}
	once   sync.Once
	closer io.Closer

	mu      sync.Mutex
	readErr error

	parser  parser
	handler func(ble.Event)
	busy    bool
}

var _ ble.Transport = (*Transport)(nil)

// New starts reading rw. A Read returning (0, nil) is treated as a read
// timeout with no data. If rw is an io.Closer, Close closes it.
func New(rw io.ReadWriter, opts Options) *Transport {
	if opts.ReadSize <= 0 {
		opts.ReadSize = 64
	}
	t := &Transport{
		w:      rw,
		opts:   opts,
		chunks: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	if c, ok := rw.(io.Closer); ok {
		t.closer = c
	}
	go t.readLoop(rw)
	return t
}

func (t *Transport) readLoop(r io.Reader) {
	defer close(t.chunks)
	buf := make([]byte, t.opts.ReadSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case t.chunks <- chunk:
			case <-t.done:
				return
			}
		}
		if err != nil {
			select {
			case <-t.done:
			default:
				t.mu.Lock()
				t.readErr = fmt.Errorf("bgapi: read: %w", err)
				t.mu.Unlock()
			}
			return
		}
		select {
		case <-t.done:
			return
		default:
		}
	}
}

// Close stops the reader and closes the underlying stream.
func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		if t.closer != nil {
			err = t.closer.Close()
		}
	})
	return err
}

func (t *Transport) SetEventHandler(h func(ble.Event)) { t.handler = h }

func (t *Transport) SetAdvParameters(p advert.Params) error {
	return t.send(cmdGAPSetAdvParameters(p))
}

func (t *Transport) SetAdvData(kind advert.DataKind, data []byte) error {
	if len(data) > advert.MaxPayloadLen {
		return fmt.Errorf("bgapi: %s data: %w", kind, advert.ErrPayloadTooLong)
	}
	return t.send(cmdGAPSetAdvData(kind, data))
}

func (t *Transport) SetMode(d advert.Discoverability, c advert.Connectability) error {
	return t.send(cmdGAPSetMode(d, c))
}

func (t *Transport) QueryAddress() error {
	return t.send(cmdSystemAddressGet())
}

func (t *Transport) WriteAttribute(handle uint16, offset uint8, value []byte) error {
	if len(value) > 0xFF {
		return fmt.Errorf("bgapi: attribute value of %d bytes: %w", len(value), ErrTooLarge)
	}
	return t.send(cmdAttributesWrite(handle, offset, value))
}

func (t *Transport) send(p Packet) error {
	raw, err := p.Encode(t.opts.PacketMode)
	if err != nil {
		return err
	}
	t.busy = true
	if _, err := t.w.Write(raw); err != nil {
		t.busy = false
		return fmt.Errorf("bgapi: write %s: %w", p, err)
	}
	return nil
}

func (t *Transport) Busy() bool { return t.busy }

// CancelPending forgets the outstanding command and discards any partial
// packet or queued input. Bytes from a hung module must not prefix the
// boot event that follows its reset.
func (t *Transport) CancelPending() {
	t.busy = false
	t.parser.reset()
	for {
		select {
		case _, ok := <-t.chunks:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Poll dispatches buffered packets. If none are complete it waits up to
// timeout for more input and returns after the first packet dispatched.
func (t *Transport) Poll(timeout time.Duration) error {
	if t.drain() {
		return nil
	}

	var expire <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}

	for {
		var (
			chunk []byte
			ok    bool
		)
		if expire == nil {
			select {
			case chunk, ok = <-t.chunks:
			default:
				return nil
			}
		} else {
			select {
			case chunk, ok = <-t.chunks:
			case <-expire:
				return nil
			}
		}
		if !ok {
			return t.err()
		}
		t.parser.write(chunk)
		if t.drain() {
			return nil
		}
	}
}

func (t *Transport) err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return t.readErr
	}
	return ErrClosed
}

// drain dispatches every complete packet and reports whether there was one.
func (t *Transport) drain() bool {
	handled := false
	for {
		p, ok := t.parser.next()
		if !ok {
			return handled
		}
		handled = true
		t.handle(p)
	}
}

func (t *Transport) handle(p Packet) {
	if !p.Event {
		// Any response completes the outstanding command.
		t.busy = false
		t.handleResponse(p)
		return
	}

	var (
		ev  ble.Event
		err error
	)
	switch {
	case p.Class == ClassSystem && p.ID == EvtSystemBoot:
		// The module is fresh out of reset; nothing is outstanding.
		t.busy = false
		ev.Kind = ble.EventBoot
		ev.Boot, err = decodeBoot(p.Payload)
	case p.Class == ClassConnection && p.ID == EvtConnectionStatus:
		ev.Kind = ble.EventConnectionStatus
		ev.Status, err = decodeConnectionStatus(p.Payload)
	case p.Class == ClassConnection && p.ID == EvtConnectionDisconnected:
		ev.Kind = ble.EventDisconnected
		ev.Disconnect, err = decodeDisconnected(p.Payload)
	case p.Class == ClassAttributes && p.ID == EvtAttributesValue:
		ev.Kind = ble.EventAttributeWritten
		ev.Write, err = decodeAttributesValue(p.Payload)
	default:
		slog.Debug("[BGAPI] unhandled event", "packet", p)
		return
	}
	if err != nil {
		slog.Warn("[BGAPI] malformed event", "packet", p, "error", err)
		return
	}
	t.emit(ev)
}

func (t *Transport) handleResponse(p Packet) {
	if p.Class == ClassSystem && p.ID == CmdSystemAddressGet {
		mac, err := decodeAddress(p.Payload)
		if err != nil {
			slog.Warn("[BGAPI] malformed address response", "packet", p, "error", err)
			return
		}
		t.emit(ble.Event{Kind: ble.EventAddress, Address: mac})
		return
	}
	if result, ok := decodeResult(p.Payload); ok && result != 0 {
		slog.Warn("[BGAPI] command failed", "packet", p, "result", fmt.Sprintf("0x%04X", result))
	}
}

func (t *Transport) emit(ev ble.Event) {
	if t.handler != nil {
		t.handler(ev)
	}
}
