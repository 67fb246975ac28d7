package peripheral

import (
	"sync"

	"github.com/chaz8081/iotegg-node/internal/ble/advert"
)

// link tracks the one central the node serves. Host controllers report
// connection changes for every device they know about, including ones that
// have nothing to do with the IoTEgg service.
type link struct {
	mu   sync.Mutex
	peer advert.MAC
	up   bool
}

// connect reports whether addr becomes the node's peer. It is refused while
// another peer holds the link.
func (l *link) connect(addr advert.MAC) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.up {
		return false
	}
	l.peer, l.up = addr, true
	return true
}

// disconnect reports whether addr was the node's peer, releasing the link
// if so.
func (l *link) disconnect(addr advert.MAC) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.up || l.peer != addr {
		return false
	}
	l.up = false
	return true
}
