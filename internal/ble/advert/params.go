package advert

import "time"

// DataKind selects which payload a set-adv-data command replaces.
type DataKind uint8

const (
	KindAdvertising  DataKind = 0
	KindScanResponse DataKind = 1
)

func (k DataKind) String() string {
	switch k {
	case KindAdvertising:
		return "advertising"
	case KindScanResponse:
		return "scan-response"
	default:
		return "unknown"
	}
}

// Discoverability and Connectability are the GAP mode arguments.
type (
	Discoverability uint8
	Connectability  uint8
)

const (
	NonDiscoverable     Discoverability = 0
	LimitedDiscoverable Discoverability = 1
	GeneralDiscoverable Discoverability = 2
	Broadcast           Discoverability = 3
	UserData            Discoverability = 4

	NonConnectable          Connectability = 0
	DirectedConnectable     Connectability = 1
	UndirectedConnectable   Connectability = 2
	ScannableNonConnectable Connectability = 3
)

// Params are the advertising interval bounds, in 0.625 ms units, and the
// channel bitmap (bit 0 = ch 37, bit 1 = ch 38, bit 2 = ch 39).
type Params struct {
	IntervalMin uint16
	IntervalMax uint16
	Channels    uint8
}

// DefaultParams advertises every 200-300 ms on all three channels.
func DefaultParams() Params {
	return Params{IntervalMin: 320, IntervalMax: 480, Channels: 7}
}

// MinInterval converts IntervalMin to a duration.
func (p Params) MinInterval() time.Duration {
	return time.Duration(p.IntervalMin) * 625 * time.Microsecond
}

// MaxInterval converts IntervalMax to a duration.
func (p Params) MaxInterval() time.Duration {
	return time.Duration(p.IntervalMax) * 625 * time.Microsecond
}
