//go:build linux && !tinygo

package peripheral

import "tinygo.org/x/bluetooth"

// adapterFor selects a BlueZ adapter such as "hci0".
func adapterFor(id string) *bluetooth.Adapter {
	if id == "" {
		return bluetooth.DefaultAdapter
	}
	return bluetooth.NewAdapter(id)
}
