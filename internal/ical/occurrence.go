package ical

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// OccurrenceRule couples a base time span with an optional recurrence
// rule. A one-time rule produces exactly its base span; a recurring rule
// produces one span per timestamp the recurrence yields, each carrying the
// base span's duration. Values are immutable once built.
type OccurrenceRule struct {
	span TimeSpan
	set  *rrule.Set
	rule *rrule.RRule
}

// Onetime wraps a span with no recurrence.
func Onetime(span TimeSpan) OccurrenceRule {
	return OccurrenceRule{span: span}
}

// Recurring builds a recurring rule from RRULE text, anchored at the base
// span's begin. Exception dates are excluded from the produced sequence.
func Recurring(span TimeSpan, ruleText string, exdates []time.Time) (OccurrenceRule, error) {
	rule, err := rrule.StrToRRule(ruleText)
	if err != nil {
		return OccurrenceRule{}, fmt.Errorf("ical: recurrence rule %q: %w", ruleText, err)
	}
	rule.DTStart(span.Begin())

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range exdates {
		set.ExDate(ex.In(span.Begin().Location()))
	}
	return OccurrenceRule{span: span, set: &set, rule: rule}, nil
}

// IsRecurring reports whether the rule repeats.
func (r OccurrenceRule) IsRecurring() bool { return r.set != nil }

// First returns the base span.
func (r OccurrenceRule) First() TimeSpan { return r.span }

// Last returns the final occurrence. It exists only when the recurrence
// carries an explicit repetition count; an unbounded rule (including one
// bounded solely by UNTIL) has no last occurrence here.
func (r OccurrenceRule) Last() (TimeSpan, bool) {
	if r.set == nil {
		return r.span, true
	}
	if r.rule.OrigOptions.Count <= 0 {
		return TimeSpan{}, false
	}
	all := r.set.All()
	if len(all) == 0 {
		return TimeSpan{}, false
	}
	return r.span.rebase(all[len(all)-1]), true
}

// Iter returns a fresh lazy iterator over the occurrences. Each call
// restarts from the first occurrence. An unbounded rule yields an
// unbounded sequence; bounding consumption is the caller's job.
func (r OccurrenceRule) Iter() *OccurrenceIter {
	it := &OccurrenceIter{base: r.span}
	if r.set != nil {
		it.next = r.set.Iterator()
	}
	return it
}

// OccurrenceIter is a pull-based occurrence sequence.
type OccurrenceIter struct {
	base TimeSpan
	next rrule.Next
	done bool
}

// Next returns the next occurrence span, or false when the sequence is
// exhausted.
func (it *OccurrenceIter) Next() (TimeSpan, bool) {
	if it.done {
		return TimeSpan{}, false
	}
	if it.next == nil {
		it.done = true
		return it.base, true
	}
	t, ok := it.next()
	if !ok {
		it.done = true
		return TimeSpan{}, false
	}
	return it.base.rebase(t), true
}
