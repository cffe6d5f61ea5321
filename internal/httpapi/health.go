package httpapi

import (
	"context"
	"time"

	"github.com/smartport-kiosk/smartport/internal/bus"
	"github.com/smartport-kiosk/smartport/internal/device"
)

// Pinger is satisfied by the identity store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probes gathers what the health endpoints report on. Nil fields report
// as unavailable.
type Probes struct {
	Store           Pinger
	Bus             *bus.ConnState
	Reader          device.Status
	ReaderSimulated bool
}

type HealthReport struct {
	Status    string `json:"status"`
	Bus       string `json:"bus"`
	Reader    string `json:"reader"`
	Store     string `json:"store"`
	Broker    string `json:"broker"`
	TagFormat string `json:"tag_format"`
}

const tagFormat = "HEXADECIMAL (8 caracteres)"

func (p Probes) storeOK(ctx context.Context) bool {
	if p.Store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.Store.Ping(ctx) == nil
}

func (p Probes) busOK() bool {
	return p.Bus != nil && p.Bus.Connected()
}

func (p Probes) readerOK() bool {
	return p.Reader != nil && p.Reader.Available()
}

// Report is always served; status is "degraded" when the store is down.
// The bus and reader recover on their own and do not degrade the kiosk.
func (p Probes) Report(ctx context.Context) HealthReport {
	rep := HealthReport{
		Status:    "ok",
		Bus:       "desconectado",
		Reader:    "no disponible",
		Store:     "ok",
		TagFormat: tagFormat,
	}
	if !p.storeOK(ctx) {
		rep.Status = "degraded"
		rep.Store = "error"
	}
	if p.Bus != nil {
		snap := p.Bus.Snapshot()
		rep.Broker = snap.Broker
		if snap.Connected {
			rep.Bus = "conectado"
		}
	}
	switch {
	case p.ReaderSimulated:
		rep.Reader = "simulado"
	case p.readerOK():
		rep.Reader = "disponible"
	}
	return rep
}
