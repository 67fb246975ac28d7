package peripheral

import (
	"github.com/chaz8081/iotegg-node/internal/ble/advert"
	"github.com/google/uuid"
)

// advertising collects what the node asked to advertise. Host stacks build
// the actual AD structures themselves, so the raw payloads are parsed back
// into a name and service list.
type advertising struct {
	params   advert.Params
	name     string
	services []uuid.UUID
}

func (a *advertising) apply(kind advert.DataKind, data []byte) error {
	elements, err := advert.Parse(data)
	if err != nil {
		return err
	}
	if kind == advert.KindAdvertising {
		a.services = a.services[:0]
	}
	for _, e := range elements {
		switch e.Type {
		case advert.ADTypeCompleteLocalName:
			a.name = string(e.Data)
		case advert.ADTypeComplete128BitServices:
			for i := 0; i+16 <= len(e.Data); i += 16 {
				var le [16]byte
				copy(le[:], e.Data[i:i+16])
				a.services = append(a.services, advert.UUIDFromBytes(le))
			}
		}
	}
	return nil
}
