// Package ical implements the temporal semantics of calendar events: the
// duration and date-time value codecs, time spans, recurrence-driven
// occurrence sequences and reminder generation.
package ical

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is an RFC 5545 DUR-VALUE. The week form and the day/time form
// are mutually exclusive: a value with Weeks set carries no day or time
// components and vice versa.
type Duration struct {
	Negative bool
	Weeks    int
	Days     int
	Hours    int
	Minutes  int
	Seconds  int
}

// ParseIcalDuration parses the duration grammar: an optional sign, the
// literal P, then either a week count or day/time components. An empty
// time part after T is a parse error, as is mixing the two forms.
func ParseIcalDuration(s string) (Duration, error) {
	var d Duration
	rest := s
	switch {
	case strings.HasPrefix(rest, "-"):
		d.Negative = true
		rest = rest[1:]
	case strings.HasPrefix(rest, "+"):
		rest = rest[1:]
	}
	if !strings.HasPrefix(rest, "P") {
		return Duration{}, fmt.Errorf("ical: duration %q: missing P designator", s)
	}
	rest = rest[1:]
	if rest == "" {
		return Duration{}, fmt.Errorf("ical: duration %q: empty value", s)
	}

	n, unit, rest, err := durComponent(s, rest)
	if err != nil {
		return Duration{}, err
	}

	if unit == 'W' {
		if rest != "" {
			return Duration{}, fmt.Errorf("ical: duration %q: week form takes no further components", s)
		}
		d.Weeks = n
		return d, nil
	}

	seen := false
	if unit == 'D' {
		d.Days, seen = n, true
		if rest == "" {
			return d, nil
		}
		if rest[0] != 'T' {
			return Duration{}, fmt.Errorf("ical: duration %q: expected time part after days", s)
		}
		rest = rest[1:]
	} else {
		// No day count: the component we already read belongs to the time
		// part, which must have been introduced by T.
		if unit != 'T' {
			return Duration{}, fmt.Errorf("ical: duration %q: unexpected designator %q", s, string(unit))
		}
		rest = strconv.Itoa(n) + rest
	}

	if rest == "" {
		return Duration{}, fmt.Errorf("ical: duration %q: empty time part", s)
	}
	// Time designators must appear at most once, in H, M, S order.
	prev := 0
	for rest != "" {
		var u byte
		n, u, rest, err = durComponent(s, rest)
		if err != nil {
			return Duration{}, err
		}
		var rank int
		switch u {
		case 'H':
			rank = 1
			d.Hours = n
		case 'M':
			rank = 2
			d.Minutes = n
		case 'S':
			rank = 3
			d.Seconds = n
		default:
			return Duration{}, fmt.Errorf("ical: duration %q: unexpected designator %q", s, string(u))
		}
		if rank <= prev {
			return Duration{}, fmt.Errorf("ical: duration %q: designator %q out of order", s, string(u))
		}
		prev = rank
		seen = true
	}
	if !seen {
		return Duration{}, fmt.Errorf("ical: duration %q: no components", s)
	}
	return d, nil
}

// durComponent reads one digit run and its trailing designator. A leading
// bare T (start of the time part with no day count) is returned as a
// zero-count component with unit 'T'.
func durComponent(full, s string) (n int, unit byte, rest string, err error) {
	if s == "" {
		return 0, 0, "", fmt.Errorf("ical: duration %q: truncated", full)
	}
	if s[0] == 'T' {
		return 0, 'T', s[1:], nil
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		i++
	}
	if i == 0 || i == len(s) {
		return 0, 0, "", fmt.Errorf("ical: duration %q: expected digits and a designator", full)
	}
	return n, s[i], s[i+1:], nil
}

// String renders the duration in the grammar it was parsed from: the week
// form when Weeks is set, the day/time form otherwise. The zero value
// formats as PT0S.
func (d Duration) String() string {
	var b strings.Builder
	if d.Negative && !d.IsZero() {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	if d.Weeks != 0 {
		b.WriteString(strconv.Itoa(d.Weeks))
		b.WriteByte('W')
		return b.String()
	}
	if d.Days != 0 {
		b.WriteString(strconv.Itoa(d.Days))
		b.WriteByte('D')
	}
	if d.Hours != 0 || d.Minutes != 0 || d.Seconds != 0 || d.Days == 0 {
		b.WriteByte('T')
		if d.Hours != 0 {
			b.WriteString(strconv.Itoa(d.Hours))
			b.WriteByte('H')
		}
		if d.Minutes != 0 {
			b.WriteString(strconv.Itoa(d.Minutes))
			b.WriteByte('M')
		}
		if d.Seconds != 0 || (d.Hours == 0 && d.Minutes == 0 && d.Days == 0) {
			b.WriteString(strconv.Itoa(d.Seconds))
			b.WriteByte('S')
		}
	}
	return b.String()
}

// IsZero reports whether the duration has no extent.
func (d Duration) IsZero() bool {
	return d.Weeks == 0 && d.Days == 0 && d.Hours == 0 && d.Minutes == 0 && d.Seconds == 0
}

// AsDuration converts to a stdlib duration.
func (d Duration) AsDuration() time.Duration {
	var total time.Duration
	if d.Weeks != 0 {
		total = time.Duration(d.Weeks) * 7 * 24 * time.Hour
	} else {
		total = time.Duration(d.Days)*24*time.Hour +
			time.Duration(d.Hours)*time.Hour +
			time.Duration(d.Minutes)*time.Minute +
			time.Duration(d.Seconds)*time.Second
	}
	if d.Negative {
		total = -total
	}
	return total
}

// FromDuration converts a stdlib duration, choosing the week form exactly
// when the value is a non-zero whole number of weeks. Sub-second precision
// is truncated.
func FromDuration(v time.Duration) Duration {
	var d Duration
	if v < 0 {
		d.Negative = true
		v = -v
	}
	secs := int(v / time.Second)
	const week = 7 * 24 * 3600
	if secs != 0 && secs%week == 0 {
		d.Weeks = secs / week
		return d
	}
	d.Days = secs / (24 * 3600)
	secs %= 24 * 3600
	d.Hours = secs / 3600
	secs %= 3600
	d.Minutes = secs / 60
	d.Seconds = secs % 60
	return d
}
