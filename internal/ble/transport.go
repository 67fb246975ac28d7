// Package ble runs the IoTEgg node's BLE side: the session state machine,
// the command guard that keeps one stack command in flight at a time, and
// the telemetry loop that streams sensor frames to the connected peer.
package ble

import (
	"time"

	"github.com/chaz8081/iotegg-node/internal/ble/advert"
)

// Transport abstracts the radio stack for testing. Commands return once they
// are handed to the stack; completion is observed through Busy and Poll.
type Transport interface {
	// SetEventHandler registers the single event sink. Events are only ever
	// delivered from inside Poll, on the caller's goroutine.
	SetEventHandler(h func(Event))

	SetAdvParameters(p advert.Params) error
	SetAdvData(kind advert.DataKind, data []byte) error
	SetMode(d advert.Discoverability, c advert.Connectability) error
	// QueryAddress asks for the device address; the answer arrives as an
	// EventAddress.
	QueryAddress() error
	WriteAttribute(handle uint16, offset uint8, value []byte) error

	// Poll processes pending input for at most timeout, dispatching any
	// complete events. A zero timeout only handles what is already buffered.
	Poll(timeout time.Duration) error
	// Busy reports whether a command is waiting for its response.
	Busy() bool
	// CancelPending forgets the outstanding command and discards input
	// received but not yet dispatched.
	CancelPending()
}

// EventKind identifies which payload of an Event is set.
type EventKind uint8

const (
	EventBoot EventKind = iota + 1
	EventAddress
	EventConnectionStatus
	EventDisconnected
	EventAttributeWritten
)

func (k EventKind) String() string {
	switch k {
	case EventBoot:
		return "boot"
	case EventAddress:
		return "address"
	case EventConnectionStatus:
		return "connection-status"
	case EventDisconnected:
		return "disconnected"
	case EventAttributeWritten:
		return "attribute-written"
	default:
		return "unknown"
	}
}

// Connection status flag bits.
const (
	FlagConnected  byte = 0x01
	FlagEncrypted  byte = 0x02
	FlagCompleted  byte = 0x04
	FlagParamsSent byte = 0x08

	// FlagsNewConnection marks a connection that exists and was just created.
	FlagsNewConnection = FlagConnected | FlagCompleted
)

// BootInfo is reported by the stack when it comes out of reset.
type BootInfo struct {
	Major, Minor, Patch, Build uint16
	LLVersion                  uint16
	ProtocolVersion            uint8
	HW                         uint8
}

// ConnectionStatus is reported whenever a link is created or changes.
type ConnectionStatus struct {
	Connection  uint8
	Flags       uint8
	Address     advert.MAC
	AddressType uint8
	Interval    uint16 // 1.25 ms units
	Timeout     uint16 // 10 ms units
	Latency     uint16
	Bonding     uint8
}

// Disconnect is reported when a link drops.
type Disconnect struct {
	Connection uint8
	Reason     uint16
}

// AttributeWrite is a peer write into the local attribute table.
type AttributeWrite struct {
	Connection uint8
	Reason     uint8
	Handle     uint16
	Offset     uint16
	Value      []byte
}

// Event is one stack event. Only the field matching Kind is meaningful.
type Event struct {
	Kind       EventKind
	Boot       BootInfo
	Address    advert.MAC
	Status     ConnectionStatus
	Disconnect Disconnect
	Write      AttributeWrite
}
