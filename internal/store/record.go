package store

import "time"

// Record is one persisted execution state. Owner sits beside the payload so
// ownership checks never have to decode it.
type Record struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Status    string    `json:"status"`
	Payload   []byte    `json:"payload"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r Record) clone() Record {
	r.Payload = append([]byte(nil), r.Payload...)
	return r
}
