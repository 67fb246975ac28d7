package peer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/iotegg-node/internal/ble/advert"
	"github.com/chaz8081/iotegg-node/internal/ble/protocol"
)

// maxBackoffShift keeps 1<<attempt from overflowing.
const maxBackoffShift = 30

// ClientOptions configures the peer client.
type ClientOptions struct {
	ReconnectMax int // max reconnect backoff in seconds
}

// DefaultClientOptions returns sensible defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{ReconnectMax: 30}
}

// Client manages the connection to one IoTEgg node.
type Client struct {
	adapter     Adapter
	deviceMAC   string
	onTelemetry func(protocol.TelemetrySample)

	mu        sync.Mutex
	conn      Connection
	cmdChar   Characteristic
	connected bool
	pending   *protocol.Color // last colour set while disconnected

	reconnecting atomic.Bool
	stop         chan struct{}
	stopOnce     sync.Once

	opts ClientOptions
}

// NewClient creates a client for the node at deviceMAC. onTelemetry, if
// non-nil, receives every telemetry frame the node notifies.
func NewClient(adapter Adapter, deviceMAC string, onTelemetry func(protocol.TelemetrySample), opts ClientOptions) *Client {
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30
	}
	return &Client{
		adapter:     adapter,
		deviceMAC:   deviceMAC,
		onTelemetry: onTelemetry,
		stop:        make(chan struct{}),
		opts:        opts,
	}
}

// FindNodes scans until ctx is done and returns the IoTEgg nodes seen,
// strongest signal first.
func FindNodes(ctx context.Context, adapter Adapter) ([]Device, error) {
	devices, err := adapter.Scan(ctx, advert.ServiceUUID)
	if err != nil {
		return nil, err
	}
	nodes := devices[:0]
	for _, d := range devices {
		// Some stacks report the name only once a scan response arrives.
		if d.Name == "" || strings.HasPrefix(d.Name, advert.NamePrefix) {
			nodes = append(nodes, d)
		}
	}
	slices.SortFunc(nodes, func(a, b Device) int { return b.RSSI - a.RSSI })
	return nodes, nil
}

// SetColor sends a set-colour command. If disconnected, the colour is kept
// and sent on reconnect; a later colour replaces an earlier one.
func (c *Client) SetColor(col protocol.Color) error {
	c.mu.Lock()
	if !c.connected {
		c.pending = &col
		c.mu.Unlock()
		return nil
	}
	cmdChar := c.cmdChar
	c.mu.Unlock()

	return c.write(cmdChar, col)
}

func (c *Client) write(cmdChar Characteristic, col protocol.Color) error {
	if err := cmdChar.Write(protocol.EncodeSetColor(col)); err != nil {
		return fmt.Errorf("peer: write colour %s: %w", col, err)
	}
	slog.Debug("[BLE] colour sent", "color", col.String())
	return nil
}

// Pending reports whether a colour is waiting for a connection.
func (c *Client) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Connected reports whether the client currently holds a connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// setConnected discovers the node's characteristics on conn and subscribes
// to telemetry.
func (c *Client) setConnected(conn Connection) error {
	cmdChar, err := conn.DiscoverCharacteristic(advert.ServiceUUID, protocol.CommandCharUUID)
	if err != nil {
		return fmt.Errorf("peer: discover command characteristic: %w", err)
	}
	telChar, err := conn.DiscoverCharacteristic(advert.ServiceUUID, protocol.TelemetryCharUUID)
	if err != nil {
		return fmt.Errorf("peer: discover telemetry characteristic: %w", err)
	}
	if err := telChar.Subscribe(c.handleTelemetry); err != nil {
		return fmt.Errorf("peer: subscribe telemetry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.cmdChar = cmdChar
	c.connected = true
	return nil
}

func (c *Client) handleTelemetry(data []byte) {
	sample, err := protocol.DecodeTelemetry(data)
	if err != nil {
		slog.Debug("[BLE] dropping notification", "error", err, "len", len(data))
		return
	}
	if c.onTelemetry != nil {
		c.onTelemetry(sample)
	}
}

// setDisconnected marks the client as disconnected.
func (c *Client) setDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.conn = nil
	c.cmdChar = nil
}

// flushPending sends the colour set while disconnected, if any.
func (c *Client) flushPending() {
	c.mu.Lock()
	if !c.connected || c.pending == nil {
		c.mu.Unlock()
		return
	}
	col := *c.pending
	c.pending = nil
	cmdChar := c.cmdChar
	c.mu.Unlock()

	if err := c.write(cmdChar, col); err != nil {
		slog.Error("[BLE] failed to send pending colour", "error", err)
	}
}

// Close stops reconnecting and disconnects.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	conn := c.conn
	c.connected = false
	c.conn = nil
	c.cmdChar = nil
	c.mu.Unlock()

	if conn != nil {
		return conn.Disconnect()
	}
	return nil
}

func (c *Client) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// backoffDelay returns the reconnection delay for attempt n, capped at maxSeconds.
func backoffDelay(attempt int, maxSeconds int) time.Duration {
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	delay := time.Duration(1<<uint(attempt)) * time.Second
	max := time.Duration(maxSeconds) * time.Second
	if delay > max {
		return max
	}
	return delay
}

// Connect establishes the initial connection to the node.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("peer: enable adapter: %w", err)
	}

	conn, err := c.adapter.Connect(ctx, c.deviceMAC)
	if err != nil {
		return fmt.Errorf("peer: connect to %s: %w", c.deviceMAC, err)
	}
	if err := c.setConnected(conn); err != nil {
		conn.Disconnect()
		return err
	}
	conn.OnDisconnect(c.handleDisconnect)

	slog.Info("[BLE] connected", "mac", c.deviceMAC)
	c.flushPending()
	return nil
}

func (c *Client) handleDisconnect() {
	c.setDisconnected()
	if c.stopped() {
		return
	}
	slog.Warn("[BLE] disconnected, reconnecting...")
	// Only one reconnect loop at a time.
	if c.reconnecting.CompareAndSwap(false, true) {
		go c.reconnectLoop()
	}
}

// reconnectLoop attempts to reconnect with exponential backoff until it
// succeeds or the client is closed.
func (c *Client) reconnectLoop() {
	defer c.reconnecting.Store(false)

	for attempt := 0; ; attempt++ {
		// On the first attempt, try immediately; subsequent attempts use backoff.
		if attempt > 0 {
			delay := backoffDelay(attempt-1, c.opts.ReconnectMax)
			slog.Info("[BLE] reconnect backoff", "attempt", attempt+1, "delay", delay)
			select {
			case <-c.stop:
				return
			case <-time.After(delay):
			}
		}
		if c.stopped() {
			return
		}

		conn, err := c.adapter.Connect(context.Background(), c.deviceMAC)
		if err != nil {
			slog.Warn("[BLE] reconnect failed", "error", err, "attempt", attempt+1)
			continue
		}
		if c.stopped() {
			conn.Disconnect()
			return
		}
		if err := c.setConnected(conn); err != nil {
			slog.Warn("[BLE] reconnect setup failed", "error", err, "attempt", attempt+1)
			conn.Disconnect()
			continue
		}

		slog.Info("[BLE] reconnected", "mac", c.deviceMAC)
		c.reconnecting.Store(false)
		conn.OnDisconnect(c.handleDisconnect)
		c.flushPending()
		return
	}
}
