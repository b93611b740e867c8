package models

import "time"

// Activity is a daily free-text activity log entry. Each owner may have at
// most one entry per date (unique constraint on owner+date).
type Activity struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	OwnerID     int64     `json:"owner"`
	ID          int64     `json:"id"`
}
