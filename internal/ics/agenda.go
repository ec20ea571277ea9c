package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/reedts/jackal-core/internal/ical"
	appLog "github.com/reedts/jackal-core/internal/log"
	"github.com/reedts/jackal-core/internal/model"
	"github.com/reedts/jackal-core/internal/tz"
)

const defaultMaxPerEvent = 5000

// AgendaConfig controls a windowed agenda query.
type AgendaConfig struct {
	// From / To bound the window: occurrences overlapping [From, To) and
	// alarms firing within it are returned.
	From time.Time
	To   time.Time

	// Zone, when set, re-expresses every returned span in that zone.
	Zone *tz.Tz

	// MaxPerEvent caps how many occurrences a single event may
	// contribute, so an unbounded recurrence cannot run away. Zero means
	// defaultMaxPerEvent.
	MaxPerEvent int
}

// Agenda is the result of a windowed query: the concrete occurrences and
// the alarm instants inside the window, each sorted by time.
type Agenda struct {
	Occurrences []model.Occurrence
	Alarms      []ical.Alarm

	// Truncated lists UIDs whose expansion hit the per-event cap.
	Truncated []string
}

// BuildAgenda expands the events' occurrence rules into the window.
// Occurrence sequences are consumed lazily and abandoned as soon as they
// pass the window's end. An override event (RECURRENCE-ID) suppresses
// the like-UID base occurrence starting at its recurrence id and
// contributes its own span instead.
func BuildAgenda(events []*model.Event, cfg AgendaConfig) (Agenda, error) {
	var out Agenda

	if cfg.To.Before(cfg.From) {
		return out, errors.New("agenda: To is before From")
	}
	if cfg.MaxPerEvent <= 0 {
		cfg.MaxPerEvent = defaultMaxPerEvent
	}

	overridden := make(map[string][]time.Time)
	for _, ev := range events {
		if ev.IsOverride() {
			overridden[ev.UID] = append(overridden[ev.UID], ev.RecurrenceID)
		}
	}

	for _, ev := range events {
		spans, truncated := windowSpans(ev.Rule, cfg)

		for _, span := range spans {
			if !ev.IsOverride() && replacedInstance(overridden[ev.UID], span.Begin()) {
				continue
			}
			if cfg.Zone != nil {
				span = span.WithTz(*cfg.Zone)
			}
			out.Occurrences = append(out.Occurrences, model.Occurrence{
				SourceID:    ev.SourceID,
				UID:         ev.UID,
				Summary:     ev.Summary,
				Description: ev.Description,
				Location:    ev.Location,
				Span:        span,
			})
		}

		for _, gen := range ev.Alarms {
			alarms, alarmsTruncated := windowAlarms(gen, ev.Rule, cfg)
			truncated = truncated || alarmsTruncated
			out.Alarms = append(out.Alarms, alarms...)
		}

		if truncated {
			out.Truncated = append(out.Truncated, ev.UID)
			appLog.Warn("agenda: expansion cap reached", "uid", ev.UID, "cap", cfg.MaxPerEvent)
		}
	}

	sort.Slice(out.Occurrences, func(i, j int) bool {
		return out.Occurrences[i].Span.Begin().Before(out.Occurrences[j].Span.Begin())
	})
	sort.Slice(out.Alarms, func(i, j int) bool {
		return out.Alarms[i].At.Before(out.Alarms[j].At)
	})
	return out, nil
}

// windowSpans pulls occurrences overlapping the window. Occurrence starts
// are nondecreasing, so iteration stops at the first start past To.
func windowSpans(rule ical.OccurrenceRule, cfg AgendaConfig) (spans []ical.TimeSpan, truncated bool) {
	it := rule.Iter()
	for n := 0; ; n++ {
		if n >= cfg.MaxPerEvent {
			return spans, true
		}
		span, ok := it.Next()
		if !ok {
			return spans, false
		}
		if !span.Begin().Before(cfg.To) {
			return spans, false
		}
		if span.End().After(cfg.From) {
			spans = append(spans, span)
		}
	}
}

// windowAlarms pulls alarm instants falling inside the window. Alarm
// times ascend within one occurrence and first-alarm times ascend across
// occurrences, so iteration stops once both the alarm and its occurrence
// start lie past To.
func windowAlarms(gen ical.AlarmGenerator, rule ical.OccurrenceRule, cfg AgendaConfig) (alarms []ical.Alarm, truncated bool) {
	it := gen.Alarms(rule)
	for n := 0; ; n++ {
		if n >= cfg.MaxPerEvent {
			return alarms, true
		}
		a, ok := it.Next()
		if !ok {
			return alarms, false
		}
		if a.At.After(cfg.To) && a.Occurrence.Begin().After(cfg.To) {
			return alarms, false
		}
		if a.At.Before(cfg.From) || !a.At.Before(cfg.To) {
			continue
		}
		alarms = append(alarms, a)
	}
}

// replacedInstance reports whether an override claims the base
// occurrence starting at begin.
func replacedInstance(ids []time.Time, begin time.Time) bool {
	for _, id := range ids {
		if id.Equal(begin) {
			return true
		}
	}
	return false
}
