package ical

import (
	"fmt"
	"time"
)

// TriggerKind discriminates what an alarm trigger is anchored to.
type TriggerKind uint8

const (
	// TriggerStart fires relative to the occurrence start.
	TriggerStart TriggerKind = iota
	// TriggerEnd fires relative to the occurrence end.
	TriggerEnd
	// TriggerAbsolute fires at a fixed instant regardless of occurrence.
	TriggerAbsolute
)

// Trigger is an alarm trigger specification.
type Trigger struct {
	kind   TriggerKind
	offset time.Duration
	at     time.Time
}

// TriggerOnStart builds a trigger relative to the occurrence start. A
// negative offset fires before the event.
func TriggerOnStart(offset time.Duration) Trigger {
	return Trigger{kind: TriggerStart, offset: offset}
}

// TriggerOnEnd builds a trigger relative to the occurrence end.
func TriggerOnEnd(offset time.Duration) Trigger {
	return Trigger{kind: TriggerEnd, offset: offset}
}

// TriggerAt builds a fixed-instant trigger.
func TriggerAt(at time.Time) Trigger {
	return Trigger{kind: TriggerAbsolute, at: at}
}

// Kind returns the trigger kind.
func (t Trigger) Kind() TriggerKind { return t.kind }

func (t Trigger) String() string {
	switch t.kind {
	case TriggerAbsolute:
		return t.at.UTC().Format(utcLayout)
	case TriggerEnd:
		return "END" + FromDuration(t.offset).String()
	default:
		return FromDuration(t.offset).String()
	}
}

// AlarmGenerator describes the reminders configured on one event: a
// trigger, an optional repeat count with a wait between repetitions, and
// presentation metadata.
type AlarmGenerator struct {
	Trigger     Trigger
	Repeat      int
	Wait        time.Duration
	Description string
	// EventUID identifies the owning event.
	EventUID string
}

// Alarm is one concrete reminder instant. Alarms are small owned values
// produced during iteration; they are not persisted independently.
type Alarm struct {
	At          time.Time
	EventUID    string
	Description string
	// Occurrence is the span the alarm belongs to.
	Occurrence TimeSpan
}

func (a Alarm) String() string {
	return fmt.Sprintf("%s %s", a.At.Format(time.RFC3339), a.EventUID)
}

// OccurrenceAlarms produces the reminder instants for a single occurrence,
// in chronological order. With a repeat count above one and a non-zero
// wait, repetitions step by the wait from the first instant; otherwise a
// single alarm is produced.
func (g AlarmGenerator) OccurrenceAlarms(occ TimeSpan) []Alarm {
	var first time.Time
	switch g.Trigger.kind {
	case TriggerStart:
		first = occ.Begin().Add(g.Trigger.offset)
	case TriggerEnd:
		first = occ.End().Add(g.Trigger.offset)
	default:
		first = g.Trigger.at
	}

	count := 1
	if g.Repeat > 1 && g.Wait > 0 {
		count = g.Repeat
	}
	alarms := make([]Alarm, 0, count)
	for i := 0; i < count; i++ {
		alarms = append(alarms, Alarm{
			At:          first.Add(time.Duration(i) * g.Wait),
			EventUID:    g.EventUID,
			Description: g.Description,
			Occurrence:  occ,
		})
	}
	return alarms
}

// Alarms composes the generator with an occurrence rule into a lazy alarm
// sequence. An unbounded recurrence yields an unbounded sequence; each
// call builds a fresh, restartable iterator.
func (g AlarmGenerator) Alarms(rule OccurrenceRule) *AlarmIter {
	return &AlarmIter{gen: g, occ: rule.Iter()}
}

// AlarmIter walks the alarms of every occurrence in order. It buffers the
// current occurrence's alarms in reverse and pops them last-to-first,
// refilling from the next occurrence when the buffer drains.
type AlarmIter struct {
	gen AlarmGenerator
	occ *OccurrenceIter
	buf []Alarm
}

// Next returns the next alarm, or false when no occurrences remain.
func (it *AlarmIter) Next() (Alarm, bool) {
	for len(it.buf) == 0 {
		occ, ok := it.occ.Next()
		if !ok {
			return Alarm{}, false
		}
		alarms := it.gen.OccurrenceAlarms(occ)
		for i := len(alarms) - 1; i >= 0; i-- {
			it.buf = append(it.buf, alarms[i])
		}
	}
	a := it.buf[len(it.buf)-1]
	it.buf = it.buf[:len(it.buf)-1]
	return a, true
}
