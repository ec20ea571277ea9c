package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/reedts/jackal-core/internal/ical"
	"github.com/reedts/jackal-core/internal/model"
)

const calendarFixture = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VTIMEZONE
TZID:Custom/Eastern
BEGIN:STANDARD
DTSTART:19701101T020000
TZOFFSETFROM:-0400
TZOFFSETTO:-0500
TZNAME:EST
RRULE:FREQ=YEARLY;BYMONTH=11;BYDAY=1SU
END:STANDARD
BEGIN:DAYLIGHT
DTSTART:19700308T020000
TZOFFSETFROM:-0500
TZOFFSETTO:-0400
TZNAME:EDT
RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=2SU
END:DAYLIGHT
END:VTIMEZONE
BEGIN:VEVENT
UID:timed@test
SUMMARY:Standup
LOCATION:Room 1
DTSTART:20240115T090000Z
DTEND:20240115T093000Z
END:VEVENT
BEGIN:VEVENT
UID:allday@test
SUMMARY:Conference
DTSTART;VALUE=DATE:20240201
DTEND;VALUE=DATE:20240203
END:VEVENT
BEGIN:VEVENT
UID:duration@test
SUMMARY:Focus block
DTSTART:20240116T140000Z
DURATION:PT45M
END:VEVENT
BEGIN:VEVENT
UID:zoned@test
SUMMARY:Lunch
DTSTART;TZID=Custom/Eastern:20240715T120000
DTEND;TZID=Custom/Eastern:20240715T130000
END:VEVENT
BEGIN:VEVENT
UID:weekly@test
SUMMARY:Weekly sync
DTSTART:20240101T090000Z
DTEND:20240101T100000Z
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE:20240108T090000Z
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER:-PT15M
REPEAT:2
DURATION:PT5M
DESCRIPTION:Weekly sync soon
END:VALARM
END:VEVENT
BEGIN:VEVENT
SUMMARY:No UID
DTSTART:20240101T000000Z
END:VEVENT
BEGIN:VEVENT
UID:broken@test
SUMMARY:No start
END:VEVENT
END:VCALENDAR
`

func loadFixture(t *testing.T, body string) []*model.Event {
	t.Helper()
	events, err := ParseICS(Source{ID: "fixture"}, []byte(strings.ReplaceAll(body, "\n", "\r\n")), utcZone())
	if err != nil {
		t.Fatal(err)
	}
	return events
}

func eventByUID(t *testing.T, events []*model.Event, uid string) *model.Event {
	t.Helper()
	for _, ev := range events {
		if ev.UID == uid {
			return ev
		}
	}
	t.Fatalf("no event with UID %q", uid)
	return nil
}

func TestParseICSSkipsMalformedEvents(t *testing.T) {
	events := loadFixture(t, calendarFixture)
	// The UID-less and DTSTART-less events are skipped, the rest load.
	if len(events) != 5 {
		t.Fatalf("loaded %d events, want 5", len(events))
	}
}

func TestParseICSTimedEvent(t *testing.T) {
	ev := eventByUID(t, loadFixture(t, calendarFixture), "timed@test")
	if ev.Summary != "Standup" || ev.Location != "Room 1" {
		t.Fatalf("summary/location = %q/%q", ev.Summary, ev.Location)
	}
	span := ev.Rule.First()
	want := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	if !span.Begin().Equal(want) {
		t.Fatalf("begin = %v, want %v", span.Begin(), want)
	}
	if span.Duration() != 30*time.Minute {
		t.Fatalf("duration = %v, want 30m", span.Duration())
	}
	if ev.Rule.IsRecurring() {
		t.Fatal("one-time event reported as recurring")
	}
}

func TestParseICSAlldayEvent(t *testing.T) {
	ev := eventByUID(t, loadFixture(t, calendarFixture), "allday@test")
	span := ev.Rule.First()
	if !span.IsAllday() {
		t.Fatal("expected an all-day span")
	}
	if span.Duration() != 48*time.Hour {
		t.Fatalf("duration = %v, want 48h", span.Duration())
	}
}

func TestParseICSDurationEvent(t *testing.T) {
	ev := eventByUID(t, loadFixture(t, calendarFixture), "duration@test")
	if got := ev.Rule.First().Duration(); got != 45*time.Minute {
		t.Fatalf("duration = %v, want 45m", got)
	}
}

func TestParseICSZonedEvent(t *testing.T) {
	ev := eventByUID(t, loadFixture(t, calendarFixture), "zoned@test")
	if ev.Zone.ID() != "Custom/Eastern" {
		t.Fatalf("zone = %q, want Custom/Eastern", ev.Zone.ID())
	}
	// 12:00 EDT is 16:00 UTC.
	want := time.Date(2024, 7, 15, 16, 0, 0, 0, time.UTC)
	if got := ev.Rule.First().Begin(); !got.Equal(want) {
		t.Fatalf("begin = %v, want %v", got, want)
	}
}

func TestParseICSRecurringEvent(t *testing.T) {
	ev := eventByUID(t, loadFixture(t, calendarFixture), "weekly@test")
	if !ev.Rule.IsRecurring() {
		t.Fatal("expected a recurring rule")
	}

	var begins []time.Time
	it := ev.Rule.Iter()
	for {
		span, ok := it.Next()
		if !ok {
			break
		}
		begins = append(begins, span.Begin())
	}
	// COUNT=4 minus the excluded Jan 8.
	want := []time.Time{
		time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 22, 9, 0, 0, 0, time.UTC),
	}
	if len(begins) != len(want) {
		t.Fatalf("got %d occurrences, want %d", len(begins), len(want))
	}
	for i := range want {
		if !begins[i].Equal(want[i]) {
			t.Errorf("occurrence %d = %v, want %v", i, begins[i], want[i])
		}
	}

	last, ok := ev.Rule.Last()
	if !ok || !last.Begin().Equal(want[len(want)-1]) {
		t.Fatalf("last = %v (ok=%v), want %v", last.Begin(), ok, want[len(want)-1])
	}
}

func TestParseICSAlarm(t *testing.T) {
	ev := eventByUID(t, loadFixture(t, calendarFixture), "weekly@test")
	if len(ev.Alarms) != 1 {
		t.Fatalf("got %d alarms, want 1", len(ev.Alarms))
	}
	gen := ev.Alarms[0]
	if gen.Trigger.Kind() != ical.TriggerStart {
		t.Fatalf("trigger kind = %v, want start-relative", gen.Trigger.Kind())
	}
	// REPEAT=2 means two extra firings: three in total.
	if gen.Repeat != 3 || gen.Wait != 5*time.Minute {
		t.Fatalf("repeat/wait = %d/%v, want 3/5m", gen.Repeat, gen.Wait)
	}
	if gen.Description != "Weekly sync soon" {
		t.Fatalf("description = %q", gen.Description)
	}

	alarms := gen.OccurrenceAlarms(ev.Rule.First())
	if len(alarms) != 3 {
		t.Fatalf("got %d alarm instants, want 3", len(alarms))
	}
	if want := time.Date(2024, 1, 1, 8, 45, 0, 0, time.UTC); !alarms[0].At.Equal(want) {
		t.Fatalf("first alarm at %v, want %v", alarms[0].At, want)
	}
}

func TestParseICSAlarmVariants(t *testing.T) {
	fixture := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VEVENT
UID:variants@test
SUMMARY:Variants
DTSTART:20240110T090000Z
DTEND:20240110T100000Z
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER;RELATED=END:PT10M
END:VALARM
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER;VALUE=DATE-TIME:20240110T080000Z
END:VALARM
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER:garbage
END:VALARM
END:VEVENT
END:VCALENDAR
`
	ev := eventByUID(t, loadFixture(t, fixture), "variants@test")
	// The unparsable trigger is skipped.
	if len(ev.Alarms) != 2 {
		t.Fatalf("got %d alarms, want 2", len(ev.Alarms))
	}
	if ev.Alarms[0].Trigger.Kind() != ical.TriggerEnd {
		t.Fatalf("alarm 0 kind = %v, want end-relative", ev.Alarms[0].Trigger.Kind())
	}
	if ev.Alarms[1].Trigger.Kind() != ical.TriggerAbsolute {
		t.Fatalf("alarm 1 kind = %v, want absolute", ev.Alarms[1].Trigger.Kind())
	}
	// End-relative alarms inherit the event summary as description.
	if ev.Alarms[0].Description != "Variants" {
		t.Fatalf("alarm 0 description = %q", ev.Alarms[0].Description)
	}

	alarms := ev.Alarms[0].OccurrenceAlarms(ev.Rule.First())
	if want := time.Date(2024, 1, 10, 10, 10, 0, 0, time.UTC); !alarms[0].At.Equal(want) {
		t.Fatalf("end-relative alarm at %v, want %v", alarms[0].At, want)
	}
}

func TestParseICSRecurrenceOverride(t *testing.T) {
	fixture := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VEVENT
UID:daily@test
SUMMARY:Daily
DTSTART:20240101T090000Z
DTEND:20240101T100000Z
RRULE:FREQ=DAILY;COUNT=3
END:VEVENT
BEGIN:VEVENT
UID:daily@test
SUMMARY:Daily (moved)
DTSTART:20240102T140000Z
DTEND:20240102T150000Z
RECURRENCE-ID:20240102T090000Z
END:VEVENT
END:VCALENDAR
`
	events := loadFixture(t, fixture)
	if len(events) != 2 {
		t.Fatalf("loaded %d events, want 2", len(events))
	}

	var override *model.Event
	for _, ev := range events {
		if ev.IsOverride() {
			override = ev
		}
	}
	if override == nil {
		t.Fatal("no event carries a recurrence id")
	}
	if want := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC); !override.RecurrenceID.Equal(want) {
		t.Fatalf("recurrence id = %v, want %v", override.RecurrenceID, want)
	}

	agenda, err := BuildAgenda(events, AgendaConfig{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	// The overridden instance is replaced, not duplicated.
	if len(agenda.Occurrences) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(agenda.Occurrences))
	}
	want := []time.Time{
		time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
	}
	for i := range want {
		if got := agenda.Occurrences[i].Span.Begin(); !got.Equal(want[i]) {
			t.Errorf("occurrence %d begins %v, want %v", i, got, want[i])
		}
	}
	if agenda.Occurrences[1].Summary != "Daily (moved)" {
		t.Fatalf("moved occurrence summary = %q", agenda.Occurrences[1].Summary)
	}
}

func TestParseICSErrors(t *testing.T) {
	if _, err := ParseICS(Source{ID: "empty"}, nil, utcZone()); err == nil {
		t.Fatal("expected an error for an empty body")
	}
	if _, err := ParseICS(Source{ID: "bad"}, []byte("not a calendar"), utcZone()); err == nil {
		t.Fatal("expected an error for a non-ICS body")
	}
}
