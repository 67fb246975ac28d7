//go:build !linux || tinygo

package peer

import (
	"context"
	"errors"
)

// ErrUnsupported is returned where no central implementation exists.
var ErrUnsupported = errors.New("peer: BLE central not supported on this platform")

// CentralAdapter is unavailable on this platform.
type CentralAdapter struct{}

// NewCentralAdapter returns an adapter whose methods all fail.
func NewCentralAdapter(string) *CentralAdapter { return &CentralAdapter{} }

func (*CentralAdapter) Enable() error { return ErrUnsupported }

func (*CentralAdapter) Scan(context.Context, string) ([]Device, error) {
	return nil, ErrUnsupported
}

func (*CentralAdapter) Connect(context.Context, string) (Connection, error) {
	return nil, ErrUnsupported
}
