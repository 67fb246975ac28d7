//go:build linux || tinygo

package peripheral

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/chaz8081/iotegg-node/internal/ble"
	"github.com/chaz8081/iotegg-node/internal/ble/advert"
	"github.com/chaz8081/iotegg-node/internal/ble/protocol"
)

// ErrUnknownHandle is returned for writes to a handle with no characteristic.
var ErrUnknownHandle = errors.New("peripheral: unknown attribute handle")

// Transport is a ble.Transport backed by the local controller. Commands
// complete synchronously; only an address query stays busy until its answer
// has been dispatched.
type Transport struct {
	adapter   *bluetooth.Adapter
	adv       *bluetooth.Advertisement
	telemetry bluetooth.Characteristic
	events    *eventQueue
	link      link

	advertising     advertising
	started         bool
	awaitingAddress bool
}

var _ ble.Transport = (*Transport)(nil)

// Open enables the controller, registers the IoTEgg service and queues a
// boot event so the node runs its advertising setup.
func Open(adapterID string) (*Transport, error) {
	t := &Transport{
		adapter: adapterFor(adapterID),
		events:  newEventQueue(),
	}
	if err := t.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("peripheral: enable adapter: %w", err)
	}

	t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		addr := advert.MAC(device.Address.MAC)
		if !connected {
			if !t.link.disconnect(addr) {
				slog.Debug("[BLE] ignoring disconnect", "address", addr)
				return
			}
			t.events.push(ble.Event{Kind: ble.EventDisconnected})
			return
		}
		if !t.link.connect(addr) {
			slog.Debug("[BLE] ignoring connection", "address", addr)
			return
		}
		t.events.push(ble.Event{
			Kind: ble.EventConnectionStatus,
			Status: ble.ConnectionStatus{
				Flags:   ble.FlagsNewConnection,
				Address: addr,
				Bonding: ble.NoBonding,
			},
		})
	})

	service, err := bluetooth.ParseUUID(advert.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("peripheral: parse service UUID: %w", err)
	}
	cmdUUID, err := bluetooth.ParseUUID(protocol.CommandCharUUID)
	if err != nil {
		return nil, fmt.Errorf("peripheral: parse command UUID: %w", err)
	}
	telUUID, err := bluetooth.ParseUUID(protocol.TelemetryCharUUID)
	if err != nil {
		return nil, fmt.Errorf("peripheral: parse telemetry UUID: %w", err)
	}

	err = t.adapter.AddService(&bluetooth.Service{
		UUID: service,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				UUID:  cmdUUID,
				Flags: bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(_ bluetooth.Connection, offset int, value []byte) {
					t.events.push(ble.Event{
						Kind: ble.EventAttributeWritten,
						Write: ble.AttributeWrite{
							Handle: protocol.HandleCommandIn,
							Offset: uint16(offset),
							Value:  append([]byte(nil), value...),
						},
					})
				},
			},
			{
				Handle: &t.telemetry,
				UUID:   telUUID,
				Value:  make([]byte, protocol.TelemetryFrameLen),
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission | bluetooth.CharacteristicIndicatePermission,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("peripheral: add service: %w", err)
	}

	t.adv = t.adapter.DefaultAdvertisement()
	t.events.push(ble.Event{Kind: ble.EventBoot})
	return t, nil
}

func (t *Transport) SetEventHandler(h func(ble.Event)) {
	t.events.handler = func(ev ble.Event) {
		if ev.Kind == ble.EventAddress {
			t.awaitingAddress = false
		}
		h(ev)
	}
}

func (t *Transport) SetAdvParameters(p advert.Params) error {
	t.advertising.params = p
	return nil
}

func (t *Transport) SetAdvData(kind advert.DataKind, data []byte) error {
	if err := t.advertising.apply(kind, data); err != nil {
		return fmt.Errorf("peripheral: %s data: %w", kind, err)
	}
	return nil
}

// SetMode (re)starts advertising with the collected name and services.
// Non-discoverable stops it.
func (t *Transport) SetMode(d advert.Discoverability, c advert.Connectability) error {
	if t.started {
		if err := t.adv.Stop(); err != nil {
			slog.Debug("[BLE] stop advertising", "error", err)
		}
		t.started = false
	}
	if d == advert.NonDiscoverable {
		return nil
	}

	typ := bluetooth.AdvertisingTypeInd
	if c == advert.NonConnectable {
		typ = bluetooth.AdvertisingTypeNonConnInd
	}
	services := make([]bluetooth.UUID, 0, len(t.advertising.services))
	for _, u := range t.advertising.services {
		services = append(services, bluetooth.NewUUID([16]byte(u)))
	}
	err := t.adv.Configure(bluetooth.AdvertisementOptions{
		AdvertisementType: typ,
		LocalName:         t.advertising.name,
		ServiceUUIDs:      services,
		Interval:          bluetooth.NewDuration(t.advertising.params.MinInterval()),
	})
	if err != nil {
		return fmt.Errorf("peripheral: configure advertisement: %w", err)
	}
	if err := t.adv.Start(); err != nil {
		return fmt.Errorf("peripheral: start advertisement: %w", err)
	}
	t.started = true
	return nil
}

func (t *Transport) QueryAddress() error {
	addr, err := t.adapter.Address()
	if err != nil {
		return fmt.Errorf("peripheral: address: %w", err)
	}
	t.awaitingAddress = true
	t.events.push(ble.Event{Kind: ble.EventAddress, Address: advert.MAC(addr.MAC)})
	return nil
}

func (t *Transport) WriteAttribute(handle uint16, offset uint8, value []byte) error {
	if handle != protocol.HandleTelemetryOut {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, handle)
	}
	if offset != 0 {
		return fmt.Errorf("peripheral: offset %d not supported", offset)
	}
	if _, err := t.telemetry.Write(value); err != nil {
		return fmt.Errorf("peripheral: write telemetry: %w", err)
	}
	return nil
}

func (t *Transport) Poll(timeout time.Duration) error {
	t.events.poll(timeout)
	return nil
}

func (t *Transport) Busy() bool { return t.awaitingAddress }

func (t *Transport) CancelPending() { t.awaitingAddress = false }
