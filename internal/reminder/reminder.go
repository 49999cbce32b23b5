package reminder

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Reminder is the durable entity whose external side effects the engine keeps
// in agreement with its declared intent.
type Reminder struct {
	// ID is assigned by the durable store. Zero until the record is inserted.
	ID int64 `json:"id,omitempty"`

	Title  string    `json:"title"`
	FireAt time.Time `json:"fire_at"`
	Note   string    `json:"note,omitempty"`

	// Completed reminders have no outstanding alert.
	Completed bool `json:"completed"`

	CalendarLinkID string `json:"calendar_link_id,omitempty"`
	NotificationID string `json:"notification_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCalendarLink reports whether a calendar event is linked to the reminder.
func (r *Reminder) HasCalendarLink() bool {
	return r.CalendarLinkID != ""
}

// Clone returns a copy of the reminder.
func (r *Reminder) Clone() *Reminder {
	c := *r
	return &c
}

// Desired is the state a caller wants a reminder to be in.
type Desired struct {
	Title         string    `json:"title" yaml:"title"`
	FireAt        time.Time `json:"fire_at" yaml:"fire_at"`
	Note          string    `json:"note,omitempty" yaml:"note,omitempty"`
	AddToCalendar bool      `json:"add_to_calendar" yaml:"add_to_calendar"`
}

// Normalize trims the title and NFC-normalizes title and note.
// A note that is blank after trimming becomes empty (absent).
func Normalize(d Desired) Desired {
	d.Title = norm.NFC.String(strings.TrimSpace(d.Title))
	if strings.TrimSpace(d.Note) == "" {
		d.Note = ""
	} else {
		d.Note = norm.NFC.String(d.Note)
	}
	return d
}

// New creates a reminder from a normalized desired state. The reminder starts
// incomplete, without a calendar link, and with a freshly generated
// notification ID.
func New(d Desired, ids IDGenerator, now time.Time) *Reminder {
	return &Reminder{
		Title:          d.Title,
		FireAt:         d.FireAt,
		Note:           d.Note,
		NotificationID: ids.Generate(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Apply copies the user-editable fields of d onto r.
// NotificationID, CalendarLinkID and Completed are left untouched.
func (r *Reminder) Apply(d Desired, now time.Time) {
	r.Title = d.Title
	r.FireAt = d.FireAt
	r.Note = d.Note
	r.UpdatedAt = now
}
