package models

import "time"

// Import run states. The single ImportLog row of a run walks through these
// phase codes; a crashed run simply stops advancing.
const (
	ImportStateFailed     = 0
	ImportStateStarting   = 10
	ImportStateReading    = 20
	ImportStateProcessing = 21
	ImportStateFinished   = 99
)

// ImportLog records the progress of one property import run. It is created
// when the run starts, updated in place as the run advances, and never
// deleted. Polling the newest row is the only way to observe a run.
type ImportLog struct {
	StartedAt time.Time `json:"datetime_started"`
	UpdatedAt time.Time `json:"datetime"`
	Status    string    `json:"status"`
	Response  string    `json:"response"`
	Progress  float64   `json:"progresso"`
	State     int       `json:"state"`
	Total     int       `json:"total"`
	Unchanged int       `json:"inalterados"`
	Updated   int       `json:"alterados"`
	New       int       `json:"novos"`
	Failed    int       `json:"falhas"`
	ID        int64     `json:"id"`
}
