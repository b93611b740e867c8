package models

import (
	"time"

	"github.com/itafisc/fiscal-api/internal/normalize"
)

// Notice is a legal enforcement case file ("auto") for a property. Its Date
// is derived state: it always equals the earliest date among its events and
// is recomputed after every write. PropertyID is nullable; deleting a
// property sets it to NULL rather than cascading.
type Notice struct {
	Date        time.Time `json:"date"`
	UpdatedAt   time.Time `json:"updated"`
	Document    string    `json:"document"`
	Address     string    `json:"address"`
	Description string    `json:"description"`
	PropertyID  *int64    `json:"imovel_id"`
	OwnerID     int64     `json:"owner"`
	LastEditor  int64     `json:"last_user_to_update"`
	ID          int64     `json:"id"`
}

// NoticeEventType is administrator-maintained reference data defining one
// stage of enforcement (inspection, citation, infraction, embargo) with its
// deadline defaults and display flags.
type NoticeEventType struct {
	Name                       string `json:"name"`
	ShortName                  string `json:"short_name"`
	CSSColor                   string `json:"css_color"`
	DefaultDeadline            *int   `json:"default_deadline"`
	Order                      int    `json:"order"`
	DefaultDeadlineWorkingDays bool   `json:"default_deadline_working_days"`
	DefaultConcluded           bool   `json:"default_concluded"`
	ShowConcluded              bool   `json:"show_concluded"`
	ShowReportNumber           bool   `json:"show_report_number"`
	ShowDeadline               bool   `json:"show_deadline"`
	ShowFine                   bool   `json:"show_fine"`
	ShowStart                  bool   `json:"show_start"`
	ID                         int64  `json:"id"`
}

// NameToID derives the css/identifier form of the type name.
func (t *NoticeEventType) NameToID() string {
	return normalize.TextToID(t.Name)
}

// NoticeEvent is one procedural stage within a Notice. DeadlineDate is
// computed (event date advanced by deadline plus appeal extensions) and
// overwritten on every reconciliation; client-supplied values are discarded.
type NoticeEvent struct {
	Date                time.Time `json:"date"`
	DeadlineDate        time.Time `json:"deadline_date"`
	Identification      string    `json:"identification"`
	ReportNumber        string    `json:"report_number"`
	NoticeID            int64     `json:"notice"`
	TypeID              int64     `json:"notice_event_type"`
	Deadline            int       `json:"deadline"`
	DeadlineWorkingDays bool      `json:"deadline_working_days"`
	Concluded           bool      `json:"concluded"`
	ID                  int64     `json:"id"`
}

// CSSClassName derives the deadline color class for the event's type.
func (e *NoticeEvent) CSSClassName(t *NoticeEventType) string {
	return "notice_deadline_" + t.NameToID() + "_color"
}

// IsFrozen reports whether any appeal against the event is still open.
// A frozen event is not considered closed for deadline purposes.
func (e *NoticeEvent) IsFrozen(appeals []NoticeAppeal) bool {
	for i := range appeals {
		if appeals[i].IsOpen() {
			return true
		}
	}
	return false
}

// NoticeFine is a monetary penalty tied to one NoticeEvent. It has no
// deadline semantics of its own.
type NoticeFine struct {
	Date           time.Time `json:"date"`
	Identification string    `json:"identification"`
	EventID        int64     `json:"notice_event"`
	ID             int64     `json:"id"`
}

// NoticeAppeal is a filed contestation that extends an event's deadline.
// EndDate is nil while the appeal is still open. A closed appeal contributes
// Extension plus the day count between its start and end dates.
type NoticeAppeal struct {
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	Identification string     `json:"identification"`
	Extension      int        `json:"extension"`
	EventID        int64      `json:"notice_event"`
	ID             int64      `json:"id"`
}

// IsOpen reports whether the appeal has no end date yet.
func (a *NoticeAppeal) IsOpen() bool {
	return a.EndDate == nil
}

// NoticeCSSName derives the comma-joined css identifier for a notice from
// its events' types: each type with ShowStart contributes its NameToID once,
// in event order.
func NoticeCSSName(events []NoticeEvent, types map[int64]*NoticeEventType) string {
	seen := make(map[int64]bool)
	name := ""
	for i := range events {
		t, ok := types[events[i].TypeID]
		if !ok || seen[events[i].TypeID] {
			continue
		}
		seen[events[i].TypeID] = true
		if !t.ShowStart {
			continue
		}
		if name != "" {
			name += ", "
		}
		name += t.NameToID()
	}
	return name
}
