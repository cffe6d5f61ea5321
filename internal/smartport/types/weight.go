package types

import "time"

// WeightReading is an append-only scale sample. ParseError marks a
// payload that could not be parsed; such readings carry WeightKg == 0.
type WeightReading struct {
	ID         int64     `json:"id_peso"`
	WeightKg   float64   `json:"peso_kg"`
	ParseError bool      `json:"error"`
	RawPayload string    `json:"-"`
	RecordedAt time.Time `json:"fecha_hora"`
}

type WeightClass string

const (
	WeightNormal     WeightClass = "NORMAL"
	WeightWarning    WeightClass = "WARNING"
	WeightOverweight WeightClass = "OVERWEIGHT"
)

// WeightStats aggregates readings over a window (today, for the dashboard).
type WeightStats struct {
	Total       int     `json:"total_hoy"`
	Average     float64 `json:"promedio"`
	Max         float64 `json:"maximo"`
	Min         float64 `json:"minimo"`
	Overweights int     `json:"sobrepesos"`
}
