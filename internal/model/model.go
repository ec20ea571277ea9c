// Package model holds the event and occurrence value types shared between
// the calendar loaders and the agenda/notification consumers.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/reedts/jackal-core/internal/ical"
	"github.com/reedts/jackal-core/internal/tz"
)

// EventSource is the narrow capability an agenda consumer needs from any
// calendar entry, independent of the format it was loaded from. Should a
// second on-disk format ever appear, it gets its own implementation of
// this interface rather than a wider Event surface.
type EventSource interface {
	Identifier() string
	Title() string
	OccurrenceRule() ical.OccurrenceRule
	Timezone() tz.Tz
}

// Event is a loaded calendar event: identity, display strings, the
// occurrence rule describing when it happens, and its reminders. Events
// are built once by a loader and treated as immutable afterwards.
type Event struct {
	SourceID string // calendar source ID (e.g., config source ID)
	UID      string // iCalendar UID

	Summary     string
	Description string
	Location    string

	Zone   tz.Tz
	Rule   ical.OccurrenceRule
	Alarms []ical.AlarmGenerator

	// RecurrenceID, when non-zero, marks this event as an override of a
	// single instance of the like-UID recurring event: the base
	// occurrence starting at RecurrenceID is replaced by this event's
	// own span.
	RecurrenceID time.Time
}

// IsOverride reports whether the event overrides one instance of a
// recurring event instead of standing on its own.
func (e *Event) IsOverride() bool { return !e.RecurrenceID.IsZero() }

// NewEvent starts a freshly authored one-time event over the given span,
// with a generated UID.
func NewEvent(span ical.TimeSpan) *Event {
	return &Event{
		UID:  uuid.NewString(),
		Zone: span.Zone(),
		Rule: ical.Onetime(span),
	}
}

var _ EventSource = (*Event)(nil)

func (e *Event) Identifier() string { return e.UID }

func (e *Event) Title() string { return e.Summary }

func (e *Event) OccurrenceRule() ical.OccurrenceRule { return e.Rule }

func (e *Event) Timezone() tz.Tz { return e.Zone }

// IsAllday reports whether the event covers whole calendar days.
func (e *Event) IsAllday() bool { return e.Rule.First().IsAllday() }

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion).
type Occurrence struct {
	SourceID string
	UID      string

	Summary     string
	Description string
	Location    string

	Span ical.TimeSpan
}

// InstanceKey uniquely identifies a single occurrence of a recurring
// event, derived from its start instant.
func (o Occurrence) InstanceKey() string {
	return o.UID + "/" + o.Span.Begin().UTC().Format(time.RFC3339)
}
