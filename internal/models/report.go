package models

import (
	"time"

	"github.com/itafisc/fiscal-api/internal/normalize"
)

// ReportEventType is reference data for report stages.
type ReportEventType struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	CSSColor  string `json:"css_color"`
	Order     int    `json:"order"`
	ID        int64  `json:"id"`
}

// NameToID derives the css/identifier form of the type's short name.
func (t *ReportEventType) NameToID() string {
	return normalize.TextToID(t.ShortName)
}

// ReportEvent is a single-level property report record, a sibling of
// SurveyEvent with the same ownership pattern.
type ReportEvent struct {
	Date           time.Time `json:"date"`
	Document       string    `json:"document"`
	Identification string    `json:"identification"`
	Address        string    `json:"address"`
	Description    string    `json:"description"`
	PropertyID     *int64    `json:"imovel_id"`
	TypeID         int64     `json:"report_event_type"`
	OwnerID        int64     `json:"owner"`
	LastEditor     int64     `json:"last_user_to_update"`
	Concluded      bool      `json:"concluded"`
	ID             int64     `json:"id"`
}
