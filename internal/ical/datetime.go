package ical

import (
	"fmt"
	"time"

	"github.com/reedts/jackal-core/internal/tz"
)

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
	utcLayout      = "20060102T150405Z"
)

// DateTimeKind discriminates the four value forms a date-time property can
// take.
type DateTimeKind uint8

const (
	// KindDate is a date-only value (VALUE=DATE).
	KindDate DateTimeKind = iota
	// KindFloating is a local date-time with no zone information.
	KindFloating
	// KindUTC is an absolute instant with the trailing Z marker.
	KindUTC
	// KindZoned is a local date-time bound to a zone via TZID.
	KindZoned
)

// DateTime is a parsed date-time property value. Date and floating values
// keep a naive reading; UTC and zoned values keep a concrete instant.
type DateTime struct {
	kind DateTimeKind
	t    time.Time
	zone tz.Tz
}

// ZoneResolver maps a TZID parameter to a zone. The loader backs this with
// the calendar's embedded timezones plus the IANA database.
type ZoneResolver func(tzid string) (tz.Tz, bool)

// ParseDateTime parses a property value, trying the date-only form, the
// local form (zoned when a resolvable TZID parameter is present, floating
// otherwise), then the UTC form. A TZID that does not resolve is an error.
func ParseDateTime(value, tzid string, resolve ZoneResolver) (DateTime, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		return DateTime{kind: KindDate, t: t}, nil
	}
	if t, err := time.Parse(dateTimeLayout, value); err == nil {
		if tzid == "" {
			return DateTime{kind: KindFloating, t: t}, nil
		}
		if resolve != nil {
			if zone, ok := resolve(tzid); ok {
				return DateTime{kind: KindZoned, t: zone.Apply(t), zone: zone}, nil
			}
		}
		return DateTime{}, fmt.Errorf("ical: datetime %q: unresolvable TZID %q", value, tzid)
	}
	if t, err := time.Parse(utcLayout, value); err == nil {
		return DateTime{kind: KindUTC, t: t.UTC()}, nil
	}
	return DateTime{}, fmt.Errorf("ical: datetime %q: not a date, local or UTC value", value)
}

// NewDate builds a date-only value from the date fields of t.
func NewDate(t time.Time) DateTime {
	y, m, d := t.Date()
	return DateTime{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// NewFloating builds a floating value from the wall-clock fields of t.
func NewFloating(t time.Time) DateTime {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return DateTime{kind: KindFloating, t: time.Date(y, m, d, hh, mm, ss, 0, time.UTC)}
}

// NewUTC builds a UTC value.
func NewUTC(t time.Time) DateTime {
	return DateTime{kind: KindUTC, t: t.UTC()}
}

// NewZoned builds a value bound to zone.
func NewZoned(t time.Time, zone tz.Tz) DateTime {
	return DateTime{kind: KindZoned, t: zone.Convert(t), zone: zone}
}

// Kind returns the value form.
func (d DateTime) Kind() DateTimeKind { return d.kind }

// IsDate reports whether the value is date-only.
func (d DateTime) IsDate() bool { return d.kind == KindDate }

// Zone returns the bound zone of a zoned value.
func (d DateTime) Zone() (tz.Tz, bool) {
	return d.zone, d.kind == KindZoned
}

// As projects the value into a concrete instant, interpreting date and
// floating values in the supplied zone. UTC and zoned values already carry
// their instant and ignore the argument.
func (d DateTime) As(zone tz.Tz) time.Time {
	switch d.kind {
	case KindDate, KindFloating:
		return zone.Apply(d.t)
	default:
		return d.t
	}
}

// Format renders the value text and the property parameters that must
// accompany it: VALUE=DATE for dates, TZID for zoned values, nothing for
// floating values.
func (d DateTime) Format() (value string, params map[string][]string) {
	switch d.kind {
	case KindDate:
		return d.t.Format(dateLayout), map[string][]string{"VALUE": {"DATE"}}
	case KindFloating:
		return d.t.Format(dateTimeLayout), nil
	case KindUTC:
		return d.t.UTC().Format(utcLayout), nil
	default:
		return d.t.Format(dateTimeLayout), map[string][]string{"TZID": {d.zone.ID()}}
	}
}
