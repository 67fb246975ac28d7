//go:build linux && !tinygo

package peer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// CentralAdapter wraps tinygo-org/bluetooth on BlueZ.
type CentralAdapter struct {
	adapter *bluetooth.Adapter

	// mu protects the connections map.
	mu          sync.Mutex
	connections map[string]*centralConnection // keyed by upper-case MAC
}

// NewCentralAdapter creates a central on the named HCI adapter, or the
// default one when id is empty.
func NewCentralAdapter(id string) *CentralAdapter {
	a := bluetooth.DefaultAdapter
	if id != "" {
		a = bluetooth.NewAdapter(id)
	}
	return &CentralAdapter{
		adapter:     a,
		connections: make(map[string]*centralConnection),
	}
}

func (a *CentralAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// Route adapter-level disconnects to the matching connection.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		id := device.Address.String()
		a.mu.Lock()
		conn, ok := a.connections[id]
		delete(a.connections, id)
		a.mu.Unlock()
		if ok && conn.disconnectCb != nil {
			conn.disconnectCb()
		}
	})

	return nil
}

func (a *CentralAdapter) Scan(ctx context.Context, serviceUUID string) ([]Device, error) {
	uuid, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("peer: parse service UUID: %w", err)
	}

	var mu sync.Mutex
	var devices []Device
	seen := make(map[string]bool)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err = a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !result.HasServiceUUID(uuid) {
			return
		}
		mac := result.Address.String()
		mu.Lock()
		defer mu.Unlock()
		if seen[mac] {
			return
		}
		seen[mac] = true
		devices = append(devices, Device{
			Name: result.LocalName(),
			MAC:  mac,
			RSSI: int(result.RSSI),
		})
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("peer: scan: %w", err)
	}
	return devices, nil
}

func (a *CentralAdapter) Connect(ctx context.Context, mac string) (Connection, error) {
	parsed, err := bluetooth.ParseMAC(mac)
	if err != nil {
		return nil, fmt.Errorf("peer: %q: %w", mac, err)
	}
	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: parsed}}

	// Connect blocks with its own timeout; ctx only bounds how long we wait.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("peer: connect to %s: %w", mac, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("peer: connect to %s: %w", mac, result.err)
		}
		conn := &centralConnection{device: &result.device}

		a.mu.Lock()
		a.connections[strings.ToUpper(mac)] = conn
		a.mu.Unlock()

		return conn, nil
	}
}

// Compile-time check that CentralAdapter implements Adapter.
var _ Adapter = (*CentralAdapter)(nil)

type centralConnection struct {
	device       *bluetooth.Device
	disconnectCb func()
}

func (c *centralConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, err
	}
	charUUIDParsed, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, err
	}

	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("peer: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("peer: service %s not found", serviceUUID)
	}

	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{charUUIDParsed})
	if err != nil {
		return nil, fmt.Errorf("peer: discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("peer: characteristic %s not found", charUUID)
	}

	return &centralCharacteristic{char: &chars[0]}, nil
}

func (c *centralConnection) Disconnect() error {
	return c.device.Disconnect()
}

func (c *centralConnection) OnDisconnect(cb func()) {
	c.disconnectCb = cb
}

type centralCharacteristic struct {
	char *bluetooth.DeviceCharacteristic
}

func (c *centralCharacteristic) Write(data []byte) error {
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

func (c *centralCharacteristic) Subscribe(cb func([]byte)) error {
	return c.char.EnableNotifications(cb)
}
