package peripheral

import (
	"testing"

	"github.com/chaz8081/iotegg-node/internal/ble/advert"
)

func TestLinkIgnoresOtherDevices(t *testing.T) {
	peer := advert.MAC{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	keyboard := advert.MAC{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

	var l link
	steps := []struct {
		name    string
		connect bool
		addr    advert.MAC
		want    bool
	}{
		{"unknown disconnect before any peer", false, keyboard, false},
		{"peer connects", true, peer, true},
		{"second central refused", true, keyboard, false},
		{"other device disconnects", false, keyboard, false},
		{"peer disconnects", false, peer, true},
		{"repeat disconnect", false, peer, false},
		{"next central accepted", true, keyboard, true},
	}
	for _, s := range steps {
		var got bool
		if s.connect {
			got = l.connect(s.addr)
		} else {
			got = l.disconnect(s.addr)
		}
		if got != s.want {
			t.Errorf("%s: got %v, want %v", s.name, got, s.want)
		}
	}
}
