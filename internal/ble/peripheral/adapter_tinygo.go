//go:build tinygo

package peripheral

import "tinygo.org/x/bluetooth"

// adapterFor ignores id: boards have a single controller.
func adapterFor(string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}
