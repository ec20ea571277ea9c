package ical

import (
	"time"

	"github.com/reedts/jackal-core/internal/tz"
)

type spanKind uint8

const (
	spanAllday spanKind = iota
	spanFromTo
	spanDuration
	spanInstant
)

// TimeSpan is the extent of one occurrence. It unifies the four ways a
// start/end pair can be expressed: whole calendar days, two explicit
// instants, a start plus a length, and a zero-length point. Values are
// immutable; the arithmetic methods return a shifted copy. No bounds
// checking is performed on arithmetic; callers supply sane deltas.
type TimeSpan struct {
	kind   spanKind
	begin  time.Time
	end    time.Time     // explicit end for spanFromTo and multi-day spanAllday
	length time.Duration // spanDuration only
	zone   tz.Tz
}

// Allday builds a single-day span covering the calendar day of date in the
// given zone.
func Allday(date time.Time, zone tz.Tz) TimeSpan {
	return TimeSpan{kind: spanAllday, begin: zone.Apply(midnight(date)), zone: zone}
}

// AlldayUntil builds a whole-day span from the day of begin up to (and
// excluding) the day of end. It collapses to the single-day form when end
// is at most one day after begin.
func AlldayUntil(begin, end time.Time, zone tz.Tz) TimeSpan {
	b := midnight(begin)
	e := midnight(end)
	if !e.After(b.AddDate(0, 0, 1)) {
		return Allday(begin, zone)
	}
	return TimeSpan{kind: spanAllday, begin: zone.Apply(b), end: zone.Apply(e), zone: zone}
}

// FromTo builds a span between two explicit instants.
func FromTo(begin, end time.Time, zone tz.Tz) TimeSpan {
	return TimeSpan{kind: spanFromTo, begin: zone.Convert(begin), end: zone.Convert(end), zone: zone}
}

// StartDuration builds a span as a start instant plus an elapsed length.
func StartDuration(begin time.Time, length time.Duration, zone tz.Tz) TimeSpan {
	return TimeSpan{kind: spanDuration, begin: zone.Convert(begin), length: length, zone: zone}
}

// Instant builds a zero-length span.
func Instant(at time.Time, zone tz.Tz) TimeSpan {
	return TimeSpan{kind: spanInstant, begin: zone.Convert(at), zone: zone}
}

// Begin returns the start of the span.
func (s TimeSpan) Begin() time.Time { return s.begin }

// End returns the end of the span. A single-day all-day span ends exactly
// 24 hours after it begins.
func (s TimeSpan) End() time.Time {
	switch s.kind {
	case spanAllday:
		if s.end.IsZero() {
			return s.begin.Add(24 * time.Hour)
		}
		return s.end
	case spanFromTo:
		return s.end
	case spanDuration:
		return s.begin.Add(s.length)
	default:
		return s.begin
	}
}

// Duration returns the elapsed time the span covers.
func (s TimeSpan) Duration() time.Duration {
	if s.kind == spanDuration {
		return s.length
	}
	return s.End().Sub(s.begin)
}

// IsAllday reports whether the span covers whole calendar days.
func (s TimeSpan) IsAllday() bool { return s.kind == spanAllday }

// IsInstant reports whether the span has zero length.
func (s TimeSpan) IsInstant() bool { return s.kind == spanInstant }

// Zone returns the zone the span is expressed in.
func (s TimeSpan) Zone() tz.Tz { return s.zone }

// AddToBegin shifts the start by delta, keeping the end fixed for spans
// with an explicit end.
func (s TimeSpan) AddToBegin(delta time.Duration) TimeSpan {
	out := s
	out.begin = s.begin.Add(delta)
	return out
}

// AddToEnd shifts the end by delta. All-day ends only move in whole-day
// increments, so a sub-day delta on an all-day span is a no-op. On an
// instant span the delta becomes the span's length.
func (s TimeSpan) AddToEnd(delta time.Duration) TimeSpan {
	out := s
	switch s.kind {
	case spanAllday:
		days := delta / (24 * time.Hour)
		if days == 0 {
			return s
		}
		out.end = s.End().Add(days * 24 * time.Hour)
	case spanFromTo:
		out.end = s.end.Add(delta)
	case spanDuration:
		out.length = s.length + delta
	default:
		out.kind = spanDuration
		out.length = delta
	}
	return out
}

// WithTz re-expresses the span in another zone. All-day spans keep their
// calendar dates and are re-anchored to midnight in the new zone; the
// other kinds keep their absolute instants.
func (s TimeSpan) WithTz(zone tz.Tz) TimeSpan {
	out := s
	out.zone = zone
	switch s.kind {
	case spanAllday:
		out.begin = zone.Apply(midnight(s.begin))
		if !s.end.IsZero() {
			out.end = zone.Apply(midnight(s.end))
		}
	case spanFromTo:
		out.begin = zone.Convert(s.begin)
		out.end = zone.Convert(s.end)
	default:
		out.begin = zone.Convert(s.begin)
	}
	return out
}

// Contains reports whether the instant falls within the span. The end is
// exclusive except for instant spans, which contain exactly their point.
func (s TimeSpan) Contains(t time.Time) bool {
	if s.kind == spanInstant {
		return t.Equal(s.begin)
	}
	return !t.Before(s.begin) && t.Before(s.End())
}

// rebase returns a copy of the span starting at begin with the same
// duration, used when stamping recurrence occurrences.
func (s TimeSpan) rebase(begin time.Time) TimeSpan {
	out := s
	out.begin = s.zone.Convert(begin)
	switch s.kind {
	case spanAllday:
		out.begin = s.zone.Apply(midnight(begin))
		if !s.end.IsZero() {
			out.end = out.begin.Add(s.Duration())
		}
	case spanFromTo:
		out.end = out.begin.Add(s.Duration())
	}
	return out
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
