package tz

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
)

// easternStyleZone builds a custom zone shaped like US Eastern: standard
// UTC-5 starting the first Sunday of November, daylight UTC-4 starting the
// second Sunday of March, both at 02:00 wall clock.
func easternStyleZone(t *testing.T) Tz {
	t.Helper()

	stdRule, err := RecurringTransition(
		time.Date(1970, 11, 1, 2, 0, 0, 0, time.UTC),
		"FREQ=YEARLY;BYMONTH=11;BYDAY=1SU",
	)
	if err != nil {
		t.Fatal(err)
	}
	dstRule, err := RecurringTransition(
		time.Date(1970, 3, 8, 2, 0, 0, 0, time.UTC),
		"FREQ=YEARLY;BYMONTH=3;BYDAY=2SU",
	)
	if err != nil {
		t.Fatal(err)
	}

	zone, err := CustomZone("Test/Eastern", []TransitionSet{
		{OffsetSecs: -5 * 3600, FromSecs: -4 * 3600, ID: "Test/Eastern", Name: "TST", Rule: stdRule},
		{OffsetSecs: -5 * 3600, DSTOffsetSecs: 3600, FromSecs: -5 * 3600, ID: "Test/Eastern", Name: "TDT", Rule: dstRule},
	})
	if err != nil {
		t.Fatal(err)
	}
	return zone
}

func TestCustomZoneResolution(t *testing.T) {
	zone := easternStyleZone(t)

	tests := []struct {
		name      string
		wall      time.Time
		want      []int
		ambiguous bool
		none      bool
	}{
		{
			name: "plain summer reading",
			wall: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
			want: []int{-4 * 3600},
		},
		{
			name: "plain winter reading",
			wall: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			want: []int{-5 * 3600},
		},
		{
			name: "skipped spring-forward hour",
			wall: time.Date(2024, 3, 10, 2, 30, 0, 0, time.UTC),
			none: true,
		},
		{
			name:      "repeated fall-back hour",
			wall:      time.Date(2024, 11, 3, 1, 30, 0, 0, time.UTC),
			want:      []int{-4 * 3600, -5 * 3600},
			ambiguous: true,
		},
		{
			name: "just after the fall-back window",
			wall: time.Date(2024, 11, 3, 2, 30, 0, 0, time.UTC),
			want: []int{-5 * 3600},
		},
		{
			name: "past the unroll horizon",
			wall: time.Date(2039, 6, 1, 12, 0, 0, 0, time.UTC),
			none: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := zone.OffsetAtLocal(tt.wall)
			if res.IsNone() != tt.none {
				t.Fatalf("IsNone() = %v, want %v", res.IsNone(), tt.none)
			}
			if res.IsAmbiguous() != tt.ambiguous {
				t.Fatalf("IsAmbiguous() = %v, want %v", res.IsAmbiguous(), tt.ambiguous)
			}
			got := res.Offsets()
			if len(got) != len(tt.want) {
				t.Fatalf("Offsets() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Offsets() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCustomZoneRoundTrip(t *testing.T) {
	zone := easternStyleZone(t)

	// Outside DST windows, local -> UTC -> local must reproduce the
	// original reading.
	walls := []time.Time{
		time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 8, 45, 30, 0, time.UTC),
		time.Date(2024, 11, 3, 5, 0, 0, 0, time.UTC),
	}
	for _, wall := range walls {
		off, ok := zone.OffsetAtLocal(wall).Offset()
		if !ok {
			t.Fatalf("no single offset for %v", wall)
		}
		utc := wall.Add(-time.Duration(off) * time.Second)
		back := zone.Convert(utc)
		if naive(back) != wall {
			t.Errorf("round trip of %v came back as %v", wall, naive(back))
		}
	}
}

func TestCustomZoneBeforeFirstTransition(t *testing.T) {
	zone := easternStyleZone(t)
	res := zone.OffsetAtLocal(time.Date(1960, 6, 1, 12, 0, 0, 0, time.UTC))
	if !res.IsNone() {
		t.Fatalf("expected no offset before the first transition, got %v", res.Offsets())
	}
}

func TestIANAZone(t *testing.T) {
	zone, err := IANAZone("America/New_York")
	if err != nil {
		t.Skipf("zone database unavailable: %v", err)
	}
	res := zone.OffsetAtLocal(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))
	off, ok := res.Offset()
	if !ok {
		t.Fatal("expected a single offset")
	}
	if off != -4*3600 {
		t.Fatalf("offset = %d, want %d", off, -4*3600)
	}
	if _, err := IANAZone("Not/AZone"); err == nil {
		t.Fatal("expected an error for an unknown zone")
	}
}

func TestApplyPicksEarlierInterpretation(t *testing.T) {
	zone := easternStyleZone(t)
	got := zone.Apply(time.Date(2024, 11, 3, 1, 30, 0, 0, time.UTC))
	_, off := got.Zone()
	if off != -4*3600 {
		t.Fatalf("ambiguous reading applied with offset %d, want %d", off, -4*3600)
	}
	if got.Hour() != 1 || got.Minute() != 30 {
		t.Fatalf("wall clock not preserved: %v", got)
	}
}

func TestUnrollCacheIsShared(t *testing.T) {
	rule, err := RecurringTransition(
		time.Date(1970, 4, 5, 2, 0, 0, 0, time.UTC),
		"FREQ=YEARLY;BYMONTH=4;BYDAY=1SU",
	)
	if err != nil {
		t.Fatal(err)
	}
	first := rule.instants()
	if len(first) == 0 {
		t.Fatal("no instants unrolled")
	}
	if first[len(first)-1].After(horizon) {
		t.Fatalf("unroll exceeded the horizon: %v", first[len(first)-1])
	}
	if _, ok := unrollCache.Load(rule.cacheKey()); !ok {
		t.Fatal("unrolled list was not memoized")
	}
	second := rule.instants()
	if len(second) != len(first) {
		t.Fatalf("recomputed list differs: %d vs %d instants", len(second), len(first))
	}
}

func TestParseUTCOffset(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "+0500", want: 5 * 3600},
		{in: "-0430", want: -(4*3600 + 30*60)},
		{in: "+023045", want: 2*3600 + 30*60 + 45},
		{in: "0500", wantErr: true},
		{in: "+05", wantErr: true},
		{in: "+05x0", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseUTCOffset(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseUTCOffset(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseUTCOffset(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseUTCOffset(%q) = %d, want %d", tt.in, got, tt.want)
		}
		if back, err := parseUTCOffset(FormatUTCOffset(got)); err != nil || back != got {
			t.Errorf("offset %d did not round trip", got)
		}
	}
}

func TestFromPosixTZ(t *testing.T) {
	zone, err := FromPosixTZ("", "CST6CDT,M3.2.0,M11.1.0")
	if err != nil {
		t.Fatal(err)
	}
	if zone.Kind() != KindCustom {
		t.Fatalf("kind = %v, want custom", zone.Kind())
	}

	if off, ok := zone.OffsetAtLocal(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)).Offset(); !ok || off != -5*3600 {
		t.Fatalf("summer offset = %d (ok=%v), want %d", off, ok, -5*3600)
	}
	if off, ok := zone.OffsetAtLocal(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)).Offset(); !ok || off != -6*3600 {
		t.Fatalf("winter offset = %d (ok=%v), want %d", off, ok, -6*3600)
	}

	if _, err := FromPosixTZ("", "X"); err == nil {
		t.Fatal("expected an error for a malformed TZ string")
	}
	if _, err := FromPosixTZ("", "CST6CDT,M13.1.0,M11.1.0"); err == nil {
		t.Fatal("expected an error for an out-of-range month")
	}
}

func TestFromPosixTZStandardOnly(t *testing.T) {
	zone, err := FromPosixTZ("UTC+9", "KST-9")
	if err != nil {
		t.Fatal(err)
	}
	if off, ok := zone.OffsetAtLocal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)).Offset(); !ok || off != 9*3600 {
		t.Fatalf("offset = %d (ok=%v), want %d", off, ok, 9*3600)
	}
}

const vtimezoneFixture = `BEGIN:VCALENDAR
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
END:VCALENDAR
`

func parseFixtureTimezone(t *testing.T, body string) *ical.VTimezone {
	t.Helper()
	cal, err := ical.ParseCalendar(strings.NewReader(strings.ReplaceAll(body, "\n", "\r\n")))
	if err != nil {
		t.Fatal(err)
	}
	for _, comp := range cal.Components {
		if vt, ok := comp.(*ical.VTimezone); ok {
			return vt
		}
	}
	t.Fatal("fixture has no VTIMEZONE")
	return nil
}

func TestFromVTimezone(t *testing.T) {
	vt := parseFixtureTimezone(t, vtimezoneFixture)
	zone, err := FromVTimezone(vt)
	if err != nil {
		t.Fatal(err)
	}
	if zone.ID() != "Custom/Eastern" {
		t.Fatalf("id = %q", zone.ID())
	}
	if off, ok := zone.OffsetAtLocal(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)).Offset(); !ok || off != -4*3600 {
		t.Fatalf("summer offset = %d (ok=%v), want %d", off, ok, -4*3600)
	}
	if res := zone.OffsetAtLocal(time.Date(2024, 11, 3, 1, 30, 0, 0, time.UTC)); !res.IsAmbiguous() {
		t.Fatal("expected the repeated hour to be ambiguous")
	}
}

func TestFromVTimezoneSynthesizesRules(t *testing.T) {
	// Same zone but without RRULEs: the alternating pair must still apply
	// across years via synthesized yearly rules.
	fixture := strings.ReplaceAll(vtimezoneFixture, "RRULE:FREQ=YEARLY;BYMONTH=11;BYDAY=1SU\n", "")
	fixture = strings.ReplaceAll(fixture, "RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=2SU\n", "")
	vt := parseFixtureTimezone(t, fixture)
	zone, err := FromVTimezone(vt)
	if err != nil {
		t.Fatal(err)
	}
	for _, set := range zone.Sets() {
		if !set.Rule.IsRecurring() {
			t.Fatal("expected synthesized recurring rules")
		}
	}
	if off, ok := zone.OffsetAtLocal(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)).Offset(); !ok || off != -4*3600 {
		t.Fatalf("summer offset = %d (ok=%v), want %d", off, ok, -4*3600)
	}
}

func TestFromVTimezoneIncompleteBlock(t *testing.T) {
	fixture := strings.ReplaceAll(vtimezoneFixture, "TZOFFSETTO:-0500\n", "")
	vt := parseFixtureTimezone(t, fixture)
	if _, err := FromVTimezone(vt); err == nil {
		t.Fatal("expected an error for a block without TZOFFSETTO")
	}
}

func TestSynthesizeYearlyRule(t *testing.T) {
	tests := []struct {
		start time.Time
		want  string
	}{
		// Second Sunday of March.
		{time.Date(1970, 3, 8, 2, 0, 0, 0, time.UTC), "FREQ=YEARLY;BYMONTH=3;BYDAY=2SU"},
		// First Sunday of November.
		{time.Date(1970, 11, 1, 2, 0, 0, 0, time.UTC), "FREQ=YEARLY;BYMONTH=11;BYDAY=1SU"},
		// Last Sunday of October.
		{time.Date(1995, 10, 29, 3, 0, 0, 0, time.UTC), "FREQ=YEARLY;BYMONTH=10;BYDAY=-1SU"},
	}
	for _, tt := range tests {
		if got := synthesizeYearlyRule(tt.start); got != tt.want {
			t.Errorf("synthesizeYearlyRule(%v) = %q, want %q", tt.start, got, tt.want)
		}
	}
}
