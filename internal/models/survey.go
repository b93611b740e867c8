package models

import (
	"time"

	"github.com/itafisc/fiscal-api/internal/normalize"
)

// SurveyEventType is reference data for administrative survey stages.
type SurveyEventType struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	CSSColor  string `json:"css_color"`
	Order     int    `json:"order"`
	ID        int64  `json:"id"`
}

// NameToID derives the css/identifier form of the type's short name.
func (t *SurveyEventType) NameToID() string {
	return normalize.TextToID(t.ShortName)
}

// SurveyEvent is a single-level property inspection record. Unlike
// NoticeEvent it has no nested children and no deadline computation.
type SurveyEvent struct {
	Date           time.Time `json:"date"`
	Document       string    `json:"document"`
	Identification string    `json:"identification"`
	Address        string    `json:"address"`
	Description    string    `json:"description"`
	PropertyID     *int64    `json:"imovel_id"`
	TypeID         int64     `json:"survey_event_type"`
	OwnerID        int64     `json:"owner"`
	LastEditor     int64     `json:"last_user_to_update"`
	Concluded      bool      `json:"concluded"`
	ID             int64     `json:"id"`
}

// CSSClassName derives the color class for the survey's type.
func (e *SurveyEvent) CSSClassName(t *SurveyEventType) string {
	return "survey_" + t.NameToID() + "_color"
}
