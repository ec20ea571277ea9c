// Package ics loads iCalendar payloads into model events: it pairs the
// property codecs from internal/ical with source fetching and a windowed
// agenda query.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goical "github.com/arran4/golang-ical"

	"github.com/reedts/jackal-core/internal/ical"
	appLog "github.com/reedts/jackal-core/internal/log"
	"github.com/reedts/jackal-core/internal/model"
	"github.com/reedts/jackal-core/internal/tz"
)

// ParseICS parses a single ICS payload into model events.
//
//   - VTIMEZONE components are collected first; TZID parameters resolve
//     against them before falling back to the IANA database.
//   - All-day, timed, duration-based and zero-length events map onto the
//     corresponding TimeSpan forms.
//   - RRULE/EXDATE become the event's occurrence rule; VALARM components
//     become alarm generators.
//   - RECURRENCE-ID marks an event as the override of one instance of
//     the like-UID recurring event; the agenda query replaces the base
//     instance with it.
//
// A malformed VEVENT is logged and skipped; the rest of the payload still
// loads. Only a payload that fails to parse at all is an error.
func ParseICS(src Source, body []byte, defaultZone tz.Tz) ([]*model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := goical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	resolve := zoneResolver(src, cal)

	events := make([]*model.Event, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp, resolve, defaultZone)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "uid", veventUID(comp))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

// zoneResolver builds the TZID lookup for one payload: embedded VTIMEZONE
// definitions shadow the IANA database of the same name.
func zoneResolver(src Source, cal *goical.Calendar) ical.ZoneResolver {
	embedded := make(map[string]tz.Tz)
	for _, comp := range cal.Components {
		vt, ok := comp.(*goical.VTimezone)
		if !ok {
			continue
		}
		zone, err := tz.FromVTimezone(vt)
		if err != nil {
			appLog.Warn("ics vtimezone skipped", "id", src.ID, "err", err)
			continue
		}
		embedded[zone.ID()] = zone
	}

	return func(tzid string) (tz.Tz, bool) {
		if zone, ok := embedded[tzid]; ok {
			return zone, true
		}
		zone, err := tz.IANAZone(tzid)
		return zone, err == nil
	}
}

func parseVEvent(src Source, ve *goical.VEvent, resolve ical.ZoneResolver, defaultZone tz.Tz) (*model.Event, error) {
	uid := veventUID(ve)
	if uid == "" {
		return nil, errors.New("missing UID")
	}

	out := &model.Event{SourceID: src.ID, UID: uid}
	if p := ve.GetProperty(goical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(goical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(goical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	span, zone, err := parseSpan(ve, resolve, defaultZone)
	if err != nil {
		return nil, err
	}
	out.Zone = zone

	rule, err := parseRule(ve, span, resolve, zone)
	if err != nil {
		return nil, err
	}
	out.Rule = rule

	if p := ve.GetProperty(goical.ComponentProperty(goical.PropertyRecurrenceId)); p != nil {
		rid, rerr := ical.ParseDateTime(p.Value, firstParam(p, "TZID"), resolve)
		if rerr != nil {
			return nil, fmt.Errorf("RECURRENCE-ID: %w", rerr)
		}
		out.RecurrenceID = rid.As(zone)
	}

	for _, va := range ve.Alarms() {
		gen, aerr := parseVAlarm(va, uid, out.Summary)
		if aerr != nil {
			appLog.Warn("ics valarm skipped", "id", src.ID, "uid", uid, "err", aerr)
			continue
		}
		out.Alarms = append(out.Alarms, gen)
	}

	return out, nil
}

// parseSpan derives the occurrence span from DTSTART plus either DTEND,
// DURATION, or neither.
func parseSpan(ve *goical.VEvent, resolve ical.ZoneResolver, defaultZone tz.Tz) (ical.TimeSpan, tz.Tz, error) {
	startProp := ve.GetProperty(goical.ComponentPropertyDtStart)
	if startProp == nil || startProp.Value == "" {
		return ical.TimeSpan{}, tz.Tz{}, errors.New("missing DTSTART")
	}

	start, err := ical.ParseDateTime(startProp.Value, firstParam(startProp, "TZID"), resolve)
	if err != nil {
		return ical.TimeSpan{}, tz.Tz{}, fmt.Errorf("DTSTART: %w", err)
	}
	zone := eventZone(start, defaultZone)

	endProp := ve.GetProperty(goical.ComponentPropertyDtEnd)

	if start.IsDate() {
		if endProp == nil {
			return ical.Allday(start.As(zone), zone), zone, nil
		}
		end, eerr := ical.ParseDateTime(endProp.Value, firstParam(endProp, "TZID"), resolve)
		if eerr != nil {
			return ical.TimeSpan{}, tz.Tz{}, fmt.Errorf("DTEND: %w", eerr)
		}
		return ical.AlldayUntil(start.As(zone), end.As(zone), zone), zone, nil
	}

	if endProp != nil {
		end, eerr := ical.ParseDateTime(endProp.Value, firstParam(endProp, "TZID"), resolve)
		if eerr != nil {
			return ical.TimeSpan{}, tz.Tz{}, fmt.Errorf("DTEND: %w", eerr)
		}
		return ical.FromTo(start.As(zone), end.As(zone), zone), zone, nil
	}

	if durProp := ve.GetProperty(goical.ComponentProperty(goical.PropertyDuration)); durProp != nil {
		dur, derr := ical.ParseIcalDuration(durProp.Value)
		if derr != nil {
			return ical.TimeSpan{}, tz.Tz{}, fmt.Errorf("DURATION: %w", derr)
		}
		return ical.StartDuration(start.As(zone), dur.AsDuration(), zone), zone, nil
	}

	return ical.Instant(start.As(zone), zone), zone, nil
}

// eventZone picks the zone an event's span is expressed in: a resolvable
// TZID wins, a UTC value stays in UTC, and date or floating values take
// the configured default.
func eventZone(start ical.DateTime, defaultZone tz.Tz) tz.Tz {
	if zone, ok := start.Zone(); ok {
		return zone
	}
	if start.Kind() == ical.KindUTC {
		return utcZone()
	}
	return defaultZone
}

func utcZone() tz.Tz {
	zone, _ := tz.IANAZone("UTC")
	return zone
}

func parseRule(ve *goical.VEvent, span ical.TimeSpan, resolve ical.ZoneResolver, zone tz.Tz) (ical.OccurrenceRule, error) {
	rruleProp := ve.GetProperty(goical.ComponentPropertyRrule)
	if rruleProp == nil || rruleProp.Value == "" {
		return ical.Onetime(span), nil
	}

	var exdates []time.Time
	for _, p := range ve.GetProperties(goical.ComponentPropertyExdate) {
		tzid := firstParam(p, "TZID")
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			ex, err := ical.ParseDateTime(part, tzid, resolve)
			if err != nil {
				return ical.OccurrenceRule{}, fmt.Errorf("EXDATE: %w", err)
			}
			exdates = append(exdates, ex.As(zone))
		}
	}

	rule, err := ical.Recurring(span, rruleProp.Value, exdates)
	if err != nil {
		return ical.OccurrenceRule{}, err
	}
	return rule, nil
}

// parseVAlarm maps a VALARM component to an alarm generator. REPEAT in
// iCalendar counts the extra firings after the first, while the
// generator's Repeat field is the total count, hence the +1.
func parseVAlarm(va *goical.VAlarm, uid, summary string) (ical.AlarmGenerator, error) {
	trigProp := va.GetProperty(goical.ComponentPropertyTrigger)
	if trigProp == nil || trigProp.Value == "" {
		return ical.AlarmGenerator{}, errors.New("missing TRIGGER")
	}

	gen := ical.AlarmGenerator{EventUID: uid, Description: summary}
	if p := va.GetProperty(goical.ComponentPropertyDescription); p != nil && p.Value != "" {
		gen.Description = p.Value
	}

	if strings.EqualFold(firstParam(trigProp, "VALUE"), "DATE-TIME") || strings.HasSuffix(trigProp.Value, "Z") {
		at, err := ical.ParseDateTime(trigProp.Value, "", nil)
		if err != nil {
			return ical.AlarmGenerator{}, fmt.Errorf("TRIGGER: %w", err)
		}
		gen.Trigger = ical.TriggerAt(at.As(utcZone()))
	} else {
		dur, err := ical.ParseIcalDuration(trigProp.Value)
		if err != nil {
			return ical.AlarmGenerator{}, fmt.Errorf("TRIGGER: %w", err)
		}
		if strings.EqualFold(firstParam(trigProp, "RELATED"), "END") {
			gen.Trigger = ical.TriggerOnEnd(dur.AsDuration())
		} else {
			gen.Trigger = ical.TriggerOnStart(dur.AsDuration())
		}
	}

	if p := va.GetProperty(goical.ComponentProperty(goical.PropertyRepeat)); p != nil {
		n, err := strconv.Atoi(strings.TrimSpace(p.Value))
		if err != nil {
			return ical.AlarmGenerator{}, fmt.Errorf("REPEAT %q: %w", p.Value, err)
		}
		gen.Repeat = n + 1
	}
	if p := va.GetProperty(goical.ComponentProperty(goical.PropertyDuration)); p != nil {
		dur, err := ical.ParseIcalDuration(p.Value)
		if err != nil {
			return ical.AlarmGenerator{}, fmt.Errorf("DURATION: %w", err)
		}
		gen.Wait = dur.AsDuration()
	}

	return gen, nil
}

func veventUID(ve *goical.VEvent) string {
	if p := ve.GetProperty(goical.ComponentPropertyUniqueId); p != nil {
		return p.Value
	}
	return ""
}

func firstParam(p *goical.IANAProperty, name string) string {
	if p.ICalParameters == nil {
		return ""
	}
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
