package tz

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/teambition/rrule-go"
)

// horizon is the fixed future cutoff for unrolling recurring transition
// rules. Offsets beyond it are not resolved.
var horizon = time.Date(2038, 1, 1, 0, 0, 0, 0, time.UTC)

// TransitionRule describes when a TransitionSet takes effect. A rule is
// either a single transition instant or a recurring (typically yearly)
// schedule given as RRULE text.
//
// Transition instants are stored as naive wall-clock readings in the
// offset that was in effect just before the transition, matching how
// DTSTART is written inside STANDARD/DAYLIGHT blocks.
type TransitionRule struct {
	start time.Time // first transition, naive wall clock (UTC location)
	rule  string    // RRULE text; empty for a single transition
}

// SingleTransition builds a rule with exactly one transition instant.
func SingleTransition(start time.Time) TransitionRule {
	return TransitionRule{start: naive(start)}
}

// RecurringTransition builds a rule that repeats per the given RRULE text,
// anchored at start. The text is validated here so that later unrolling
// cannot fail.
func RecurringTransition(start time.Time, ruleText string) (TransitionRule, error) {
	if _, err := rrule.StrToRRule(ruleText); err != nil {
		return TransitionRule{}, fmt.Errorf("tz: invalid transition rule %q: %w", ruleText, err)
	}
	return TransitionRule{start: naive(start), rule: ruleText}, nil
}

// IsRecurring reports whether the rule repeats.
func (r TransitionRule) IsRecurring() bool { return r.rule != "" }

// Start returns the first transition instant as a naive wall-clock reading.
func (r TransitionRule) Start() time.Time { return r.start }

// cacheKey is the canonical text the shared unroll cache is keyed by. Two
// zones carrying the same DTSTART and RRULE share one unrolled list.
func (r TransitionRule) cacheKey() string {
	return "DTSTART:" + r.start.Format(icalDateTimeLayout) + "\nRRULE:" + r.rule
}

// unrollCache memoizes unrolled transition instants by canonical rule text
// for the lifetime of the process. It only ever grows. Concurrent first
// lookups of the same key may both compute the same deterministic list;
// LoadOrStore keeps a single winner and the wasted work is harmless.
var unrollCache sync.Map // string -> []time.Time

// instants returns the sorted transition instants of the rule up to the
// horizon. Recurring rules are unrolled once and memoized.
func (r TransitionRule) instants() []time.Time {
	if r.rule == "" {
		return []time.Time{r.start}
	}
	key := r.cacheKey()
	if v, ok := unrollCache.Load(key); ok {
		return v.([]time.Time)
	}
	rule, err := rrule.StrToRRule(r.rule)
	if err != nil {
		// Rule text was validated at construction; an unparsable rule here
		// means the value was built by hand. Fall back to the anchor.
		return []time.Time{r.start}
	}
	rule.DTStart(r.start)
	ts := rule.Between(r.start.Add(-time.Second), horizon, true)
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	v, _ := unrollCache.LoadOrStore(key, ts)
	return v.([]time.Time)
}

// TransitionSet is one offset regime of a custom zone (for example the
// standard or the daylight half), together with the rule describing when
// it takes effect.
type TransitionSet struct {
	// OffsetSecs is the UTC offset while the set is active, in seconds east
	// of UTC, excluding any daylight-saving component.
	OffsetSecs int
	// DSTOffsetSecs is the additional daylight-saving offset, zero for a
	// standard set.
	DSTOffsetSecs int
	// FromSecs is the total offset in effect just before each transition
	// of this set (TZOFFSETFROM). Needed to anchor the naive transition
	// instants in UTC.
	FromSecs int
	// ID is the zone identifier the set belongs to.
	ID string
	// Name is the abbreviated zone name (TZNAME), may be empty.
	Name string
	// Rule says when the set takes effect.
	Rule TransitionRule
}

// Total returns the full UTC offset of the set in seconds east of UTC.
func (s *TransitionSet) Total() int {
	return s.OffsetSecs + s.DSTOffsetSecs
}

// latestUTC returns the most recent transition of the set, as an absolute
// UTC instant, strictly before the given UTC instant.
func (s *TransitionSet) latestUTC(utc time.Time) (time.Time, bool) {
	from := time.Duration(s.FromSecs) * time.Second
	// Transition instants are naive pre-transition wall readings, so shift
	// the query into that frame before searching.
	key := naive(utc.Add(from))
	ts := s.Rule.instants()
	i := sort.Search(len(ts), func(i int) bool { return !ts[i].Before(key) })
	if i == 0 {
		return time.Time{}, false
	}
	return ts[i-1].Add(-from), true
}

// naive strips the location from t, keeping the wall-clock reading.
func naive(t time.Time) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

const icalDateTimeLayout = "20060102T150405"
