package tz

import (
	"fmt"
	"strconv"
	"time"
)

// FromPosixTZ compiles a POSIX-style alternating-offset description such as
// "CST6CDT,M3.2.0,M11.1.0" into a custom zone. The transition day rules are
// mapped onto yearly recurrence rules; J-numbered and day-of-year rules are
// folded to a fixed calendar day, which mis-approximates them across leap
// years. Best effort only.
func FromPosixTZ(id, s string) (Tz, error) {
	stdName, rest, ok := posixName(s)
	if !ok {
		return Tz{}, fmt.Errorf("tz: bad TZ string %q: no standard name", s)
	}
	stdOff, rest, ok := posixOffset(rest)
	if !ok {
		return Tz{}, fmt.Errorf("tz: bad TZ string %q: no standard offset", s)
	}
	// POSIX counts west of UTC; we keep seconds east.
	stdSecs := -stdOff
	if id == "" {
		id = s
	}

	if rest == "" {
		set := TransitionSet{
			OffsetSecs: stdSecs,
			FromSecs:   stdSecs,
			ID:         id,
			Name:       stdName,
			Rule:       SingleTransition(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)),
		}
		return CustomZone(id, []TransitionSet{set})
	}

	dstName, rest, ok := posixName(rest)
	if !ok {
		return Tz{}, fmt.Errorf("tz: bad TZ string %q: no daylight name", s)
	}
	dstSecs := stdSecs + 3600
	if rest != "" && rest[0] != ',' {
		off, r, ok := posixOffset(rest)
		if !ok {
			return Tz{}, fmt.Errorf("tz: bad TZ string %q: bad daylight offset", s)
		}
		dstSecs, rest = -off, r
	}

	if rest == "" {
		// No explicit transition days; the conventional US default.
		rest = ",M3.2.0,M11.1.0"
	}
	if rest[0] != ',' {
		return Tz{}, fmt.Errorf("tz: bad TZ string %q: expected transition rules", s)
	}
	startDay, rest, ok := posixDayRule(rest[1:])
	if !ok || rest == "" || rest[0] != ',' {
		return Tz{}, fmt.Errorf("tz: bad TZ string %q: bad daylight start rule", s)
	}
	endDay, rest, ok := posixDayRule(rest[1:])
	if !ok || rest != "" {
		return Tz{}, fmt.Errorf("tz: bad TZ string %q: bad daylight end rule", s)
	}

	dstStart, err := RecurringTransition(startDay.anchor(), startDay.rrule())
	if err != nil {
		return Tz{}, err
	}
	stdStart, err := RecurringTransition(endDay.anchor(), endDay.rrule())
	if err != nil {
		return Tz{}, err
	}

	sets := []TransitionSet{
		{
			OffsetSecs: stdSecs,
			FromSecs:   dstSecs,
			ID:         id,
			Name:       stdName,
			Rule:       stdStart,
		},
		{
			OffsetSecs:    stdSecs,
			DSTOffsetSecs: dstSecs - stdSecs,
			FromSecs:      stdSecs,
			ID:            id,
			Name:          dstName,
			Rule:          dstStart,
		},
	}
	return CustomZone(id, sets)
}

type posixRuleKind int

const (
	posixJulian posixRuleKind = iota // 1-based day, February 29 never counted
	posixDOY                         // 0-based day including February 29
	posixMonthWeekDay
)

type posixRule struct {
	kind posixRuleKind
	day  int
	week int
	mon  int
	secs int // transition time within the day
}

// anchor returns the rule's first transition in a reference year (1970) as
// a naive wall-clock reading.
func (r posixRule) anchor() time.Time {
	y := 1970
	var d time.Time
	switch r.kind {
	case posixJulian:
		d = time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, r.day-1)
	case posixDOY:
		d = time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, r.day)
	case posixMonthWeekDay:
		d = time.Date(y, time.Month(r.mon), 1, 0, 0, 0, 0, time.UTC)
		delta := (r.day - int(d.Weekday()) + 7) % 7
		d = d.AddDate(0, 0, delta)
		for i := 1; i < r.week; i++ {
			if d.Day()+7 > daysIn(d.Month(), y) {
				break
			}
			d = d.AddDate(0, 0, 7)
		}
	}
	return d.Add(time.Duration(r.secs) * time.Second)
}

// rrule renders the rule as yearly RRULE text. Julian and day-of-year
// rules are fixed to the reference year's calendar day.
func (r posixRule) rrule() string {
	switch r.kind {
	case posixMonthWeekDay:
		nth := strconv.Itoa(r.week)
		if r.week == 5 {
			nth = "-1"
		}
		wd := [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}[r.day]
		return "FREQ=YEARLY;BYMONTH=" + strconv.Itoa(r.mon) + ";BYDAY=" + nth + wd
	default:
		a := r.anchor()
		return "FREQ=YEARLY;BYMONTH=" + strconv.Itoa(int(a.Month())) +
			";BYMONTHDAY=" + strconv.Itoa(a.Day())
	}
}

func posixName(s string) (name, rest string, ok bool) {
	if s == "" {
		return "", "", false
	}
	if s[0] == '<' {
		for i := 1; i < len(s); i++ {
			if s[i] == '>' {
				return s[1:i], s[i+1:], true
			}
		}
		return "", "", false
	}
	i := 0
	for i < len(s) {
		c := s[i]
		if c == ',' || c == '-' || c == '+' || (c >= '0' && c <= '9') {
			break
		}
		i++
	}
	if i < 3 {
		return "", "", false
	}
	return s[:i], s[i:], true
}

// posixOffset parses [+-]hh[:mm[:ss]] into seconds west of UTC.
func posixOffset(s string) (secs int, rest string, ok bool) {
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	h, s, ok := posixNum(s, 0, 24*7)
	if !ok {
		return 0, "", false
	}
	secs = h * 3600
	for _, scale := range []int{60, 1} {
		if s == "" || s[0] != ':' {
			break
		}
		var v int
		v, s, ok = posixNum(s[1:], 0, 59)
		if !ok {
			return 0, "", false
		}
		secs += v * scale
	}
	if neg {
		secs = -secs
	}
	return secs, s, true
}

func posixDayRule(s string) (r posixRule, rest string, ok bool) {
	if s == "" {
		return posixRule{}, "", false
	}
	switch {
	case s[0] == 'J':
		r.kind = posixJulian
		r.day, s, ok = posixNum(s[1:], 1, 365)
	case s[0] == 'M':
		r.kind = posixMonthWeekDay
		r.mon, s, ok = posixNum(s[1:], 1, 12)
		if !ok || s == "" || s[0] != '.' {
			return posixRule{}, "", false
		}
		r.week, s, ok = posixNum(s[1:], 1, 5)
		if !ok || s == "" || s[0] != '.' {
			return posixRule{}, "", false
		}
		r.day, s, ok = posixNum(s[1:], 0, 6)
	default:
		r.kind = posixDOY
		r.day, s, ok = posixNum(s, 0, 365)
	}
	if !ok {
		return posixRule{}, "", false
	}
	r.secs = 2 * 3600
	if s != "" && s[0] == '/' {
		var secs int
		secs, s, ok = posixOffset(s[1:])
		if !ok {
			return posixRule{}, "", false
		}
		r.secs = secs
	}
	return r, s, true
}

func posixNum(s string, min, max int) (n int, rest string, ok bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		if n > max {
			return 0, "", false
		}
		i++
	}
	if i == 0 || n < min {
		return 0, "", false
	}
	return n, s[i:], true
}
