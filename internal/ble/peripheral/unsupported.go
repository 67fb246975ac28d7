//go:build !linux && !tinygo

package peripheral

import (
	"errors"
	"time"

	"github.com/chaz8081/iotegg-node/internal/ble"
	"github.com/chaz8081/iotegg-node/internal/ble/advert"
)

// ErrUnsupported is returned by Open on platforms that cannot act as a
// GATT server.
var ErrUnsupported = errors.New("peripheral: GATT server not supported on this platform")

// Transport is unavailable here; use the bgapi transport instead.
type Transport struct{}

var _ ble.Transport = (*Transport)(nil)

func Open(string) (*Transport, error) { return nil, ErrUnsupported }

func (*Transport) SetEventHandler(func(ble.Event)) {}

func (*Transport) SetAdvParameters(advert.Params) error { return ErrUnsupported }

func (*Transport) SetAdvData(advert.DataKind, []byte) error { return ErrUnsupported }

func (*Transport) SetMode(advert.Discoverability, advert.Connectability) error {
	return ErrUnsupported
}

func (*Transport) QueryAddress() error { return ErrUnsupported }

func (*Transport) WriteAttribute(uint16, uint8, []byte) error { return ErrUnsupported }

func (*Transport) Poll(time.Duration) error { return ErrUnsupported }

func (*Transport) Busy() bool { return false }

func (*Transport) CancelPending() {}
