package types

import "time"

type Admin struct {
	ID        int64     `json:"id"`
	TagCode   string    `json:"rfid"`
	Name      string    `json:"nombre"`
	CreatedAt time.Time `json:"fecha_registro"`
}
