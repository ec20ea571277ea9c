package tz

import (
	"fmt"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
)

// FromVTimezone builds a custom zone from an embedded VTIMEZONE component.
// Every STANDARD/DAYLIGHT sub-block must carry TZOFFSETFROM, TZOFFSETTO and
// DTSTART; an incomplete block is a load error. When no block carries an
// RRULE but the zone is a plain alternating standard/daylight pair, yearly
// rules are synthesized from each DTSTART (see synthesizeYearlyRule).
func FromVTimezone(vt *ical.VTimezone) (Tz, error) {
	idProp := vt.GetProperty(ical.ComponentProperty(ical.PropertyTzid))
	if idProp == nil || idProp.Value == "" {
		return Tz{}, fmt.Errorf("tz: timezone block without TZID")
	}
	id := idProp.Value

	var (
		sets      []TransitionSet
		recurring bool
	)
	for _, sub := range vt.Components {
		var (
			base  *ical.ComponentBase
			isDST bool
		)
		switch c := sub.(type) {
		case *ical.Standard:
			base = &c.ComponentBase
		case *ical.Daylight:
			base, isDST = &c.ComponentBase, true
		default:
			continue
		}
		set, hasRule, err := transitionSetFromBlock(id, base, isDST)
		if err != nil {
			return Tz{}, err
		}
		recurring = recurring || hasRule
		sets = append(sets, set)
	}
	if len(sets) == 0 {
		return Tz{}, fmt.Errorf("tz: timezone %q has no transition blocks", id)
	}

	// A bare alternating pair describes every future year implicitly, so
	// approximate each half with a synthesized yearly rule.
	if !recurring && len(sets) == 2 {
		for i := range sets {
			rule, err := RecurringTransition(sets[i].Rule.Start(), synthesizeYearlyRule(sets[i].Rule.Start()))
			if err != nil {
				return Tz{}, err
			}
			sets[i].Rule = rule
		}
	}

	return CustomZone(id, sets)
}

func transitionSetFromBlock(id string, base *ical.ComponentBase, isDST bool) (TransitionSet, bool, error) {
	from, err := requiredOffset(base, ical.PropertyTzoffsetfrom)
	if err != nil {
		return TransitionSet{}, false, fmt.Errorf("tz: timezone %q: %w", id, err)
	}
	to, err := requiredOffset(base, ical.PropertyTzoffsetto)
	if err != nil {
		return TransitionSet{}, false, fmt.Errorf("tz: timezone %q: %w", id, err)
	}

	startProp := base.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil || startProp.Value == "" {
		return TransitionSet{}, false, fmt.Errorf("tz: timezone %q: transition block without DTSTART", id)
	}
	start, err := time.Parse(icalDateTimeLayout, startProp.Value)
	if err != nil {
		return TransitionSet{}, false, fmt.Errorf("tz: timezone %q: bad transition DTSTART %q: %w", id, startProp.Value, err)
	}

	set := TransitionSet{
		OffsetSecs: to,
		FromSecs:   from,
		ID:         id,
		Rule:       SingleTransition(start),
	}
	if isDST {
		set.OffsetSecs = from
		set.DSTOffsetSecs = to - from
	}
	if p := base.GetProperty(ical.ComponentProperty(ical.PropertyTzname)); p != nil {
		set.Name = p.Value
	}

	hasRule := false
	if p := base.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		rule, err := RecurringTransition(start, p.Value)
		if err != nil {
			return TransitionSet{}, false, fmt.Errorf("tz: timezone %q: %w", id, err)
		}
		set.Rule = rule
		hasRule = true
	}
	return set, hasRule, nil
}

func requiredOffset(base *ical.ComponentBase, prop ical.Property) (int, error) {
	p := base.GetProperty(ical.ComponentProperty(prop))
	if p == nil || p.Value == "" {
		return 0, fmt.Errorf("transition block without %s", prop)
	}
	off, err := parseUTCOffset(p.Value)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", prop, p.Value, err)
	}
	return off, nil
}

// parseUTCOffset parses the ±HHMM or ±HHMMSS offset grammar into seconds
// east of UTC.
func parseUTCOffset(s string) (int, error) {
	if len(s) != 5 && len(s) != 7 {
		return 0, fmt.Errorf("tz: offset %q has wrong length", s)
	}
	sign := 1
	switch s[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("tz: offset %q lacks a sign", s)
	}
	hh, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, fmt.Errorf("tz: offset %q: %w", s, err)
	}
	mm, err := strconv.Atoi(s[3:5])
	if err != nil || mm > 59 {
		return 0, fmt.Errorf("tz: offset %q has bad minutes", s)
	}
	ss := 0
	if len(s) == 7 {
		ss, err = strconv.Atoi(s[5:7])
		if err != nil || ss > 59 {
			return 0, fmt.Errorf("tz: offset %q has bad seconds", s)
		}
	}
	return sign * (hh*3600 + mm*60 + ss), nil
}

// FormatUTCOffset renders seconds east of UTC in the ±HHMM[SS] grammar.
func FormatUTCOffset(secs int) string {
	sign := "+"
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	hh, mm, ss := secs/3600, secs/60%60, secs%60
	if ss != 0 {
		return fmt.Sprintf("%s%02d%02d%02d", sign, hh, mm, ss)
	}
	return fmt.Sprintf("%s%02d%02d", sign, hh, mm)
}

// synthesizeYearlyRule approximates a yearly recurrence from a single
// transition instant, assuming the transition lands on the same nth
// weekday of the same month every year. The nth weekday matching the
// anchor's day of month is used, with the last occurrence expressed as -1.
// Zones whose transitions follow day-of-year or similar schedules are
// mis-approximated; this is a known, accepted limitation.
func synthesizeYearlyRule(start time.Time) string {
	wd := [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}[start.Weekday()]
	nth := (start.Day()-1)/7 + 1
	if start.Day()+7 > daysIn(start.Month(), start.Year()) {
		nth = -1
	}
	return "FREQ=YEARLY;BYMONTH=" + strconv.Itoa(int(start.Month())) +
		";BYDAY=" + strconv.Itoa(nth) + wd
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
