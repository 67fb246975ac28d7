package ble

// State is the node's BLE session state.
type State uint8

const (
	StateStandby State = iota
	StateScanning
	StateAdvertising
	StateConnecting
	StateConnectedAsCentral
	StateConnectedAsPeripheral
)

func (s State) String() string {
	switch s {
	case StateStandby:
		return "standby"
	case StateScanning:
		return "scanning"
	case StateAdvertising:
		return "advertising"
	case StateConnecting:
		return "connecting"
	case StateConnectedAsCentral:
		return "connected-central"
	case StateConnectedAsPeripheral:
		return "connected-peripheral"
	default:
		return "unknown"
	}
}

// NoBonding is the Bonding value of an unbonded or absent link.
const NoBonding byte = 0xFF

// ConnectionMetadata describes the current link.
type ConnectionMetadata struct {
	Encrypted bool
	Bonding   byte
}

// Bonded returns the bonding handle, if any.
func (m ConnectionMetadata) Bonded() (byte, bool) {
	return m.Bonding, m.Bonding != NoBonding
}

// Session is everything the state machine owns.
type Session struct {
	State State
	Link  ConnectionMetadata
}

// NewSession returns the power-on session.
func NewSession() Session {
	return Session{State: StateStandby, Link: ConnectionMetadata{Bonding: NoBonding}}
}

// Effect is the side effect a transition asks the node to perform.
type Effect uint8

const (
	EffectNone Effect = iota
	// EffectStartAdvertising runs the full advertising setup.
	EffectStartAdvertising
	// EffectResumeAdvertising re-enters discoverable mode.
	EffectResumeAdvertising
	// EffectHandleWrite decodes an inbound command frame.
	EffectHandleWrite
	// EffectRecordAddress stores the device address for naming.
	EffectRecordAddress
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectStartAdvertising:
		return "start-advertising"
	case EffectResumeAdvertising:
		return "resume-advertising"
	case EffectHandleWrite:
		return "handle-write"
	case EffectRecordAddress:
		return "record-address"
	default:
		return "unknown"
	}
}

// Step returns the session after ev and the effect the node must run.
// It has no side effects.
func Step(s Session, ev Event) (Session, Effect) {
	switch ev.Kind {
	case EventBoot:
		s.State = StateAdvertising
		return s, EffectStartAdvertising

	case EventConnectionStatus:
		if ev.Status.Flags&FlagsNewConnection == FlagsNewConnection {
			// A link out of advertising was accepted by us; anything else
			// was one we initiated.
			if s.State == StateAdvertising {
				s.State = StateConnectedAsPeripheral
			} else {
				s.State = StateConnectedAsCentral
			}
		}
		s.Link = ConnectionMetadata{
			Encrypted: ev.Status.Flags&FlagEncrypted != 0,
			Bonding:   ev.Status.Bonding,
		}
		return s, EffectNone

	case EventDisconnected:
		s.State = StateAdvertising
		s.Link = ConnectionMetadata{Bonding: NoBonding}
		return s, EffectResumeAdvertising

	case EventAttributeWritten:
		return s, EffectHandleWrite

	case EventAddress:
		return s, EffectRecordAddress
	}
	return s, EffectNone
}
