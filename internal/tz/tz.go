// Package tz resolves instants to UTC offsets for the three timezone kinds
// a calendar file can reference: the unspecified host-local zone, zones
// identified by an IANA name, and custom zones whose transition rules are
// embedded in the file itself.
package tz

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Kind discriminates the three zone kinds.
type Kind int

const (
	// KindLocal delegates to the host's local-time rules.
	KindLocal Kind = iota
	// KindIANA delegates to the standard zone database.
	KindIANA
	// KindCustom resolves offsets from calendar-file-embedded transitions.
	KindCustom
)

// Tz is an immutable timezone value. The zero value is the local zone.
type Tz struct {
	kind Kind
	id   string
	loc  *time.Location
	sets []TransitionSet
}

// LocalZone returns the host-local zone.
func LocalZone() Tz {
	return Tz{kind: KindLocal, loc: time.Local}
}

// IANAZone loads a zone from the standard database.
func IANAZone(id string) (Tz, error) {
	loc, err := time.LoadLocation(id)
	if err != nil {
		return Tz{}, fmt.Errorf("tz: unknown zone %q: %w", id, err)
	}
	return Tz{kind: KindIANA, id: id, loc: loc}, nil
}

// CustomZone builds a zone from embedded transition sets. At least one set
// is required.
func CustomZone(id string, sets []TransitionSet) (Tz, error) {
	if len(sets) == 0 {
		return Tz{}, errors.New("tz: custom zone needs at least one transition set")
	}
	return Tz{kind: KindCustom, id: id, sets: sets}, nil
}

// Kind returns the zone kind.
func (z Tz) Kind() Kind { return z.kind }

// ID returns the zone identifier: the IANA name, the embedded TZID, or
// "Local" for the host zone.
func (z Tz) ID() string {
	if z.kind == KindLocal {
		return "Local"
	}
	return z.id
}

// Sets returns the transition sets of a custom zone, nil otherwise.
func (z Tz) Sets() []TransitionSet { return z.sets }

// Resolution is the outcome of resolving a local wall-clock reading. A
// reading maps to one offset almost always, to two offsets inside the
// repeated hour of a fall-back transition, and to none inside the skipped
// hour of a spring-forward transition.
type Resolution struct {
	offs [2]int
	n    int
}

// Unambiguous wraps a single resolved offset, in seconds east of UTC.
func Unambiguous(off int) Resolution {
	return Resolution{offs: [2]int{off}, n: 1}
}

// AmbiguousOffsets wraps the two candidate offsets of a repeated local
// reading. The first candidate corresponds to the earlier UTC instant.
func AmbiguousOffsets(first, second int) Resolution {
	return Resolution{offs: [2]int{first, second}, n: 2}
}

// NoOffset marks a skipped local reading.
func NoOffset() Resolution { return Resolution{} }

// IsNone reports whether the reading was skipped.
func (r Resolution) IsNone() bool { return r.n == 0 }

// IsAmbiguous reports whether the reading maps to two offsets.
func (r Resolution) IsAmbiguous() bool { return r.n == 2 }

// Offset returns the resolved offset when it is single.
func (r Resolution) Offset() (int, bool) {
	if r.n != 1 {
		return 0, false
	}
	return r.offs[0], true
}

// Offsets returns all candidate offsets, earliest UTC interpretation first.
func (r Resolution) Offsets() []int {
	return append([]int(nil), r.offs[:r.n]...)
}

// First returns the first candidate offset, preferring the earlier UTC
// interpretation of an ambiguous reading.
func (r Resolution) First() (int, bool) {
	if r.n == 0 {
		return 0, false
	}
	return r.offs[0], true
}

// OffsetAtLocal resolves a wall-clock reading in this zone. Only the date
// and clock fields of wall are considered; its location is ignored.
func (z Tz) OffsetAtLocal(wall time.Time) Resolution {
	n := naive(wall)
	switch z.kind {
	case KindCustom:
		return z.customOffsetAtLocal(n)
	default:
		// The host and database zones resolve through time.Date, which
		// silently picks one interpretation at DST boundaries.
		y, m, d := n.Date()
		hh, mm, ss := n.Clock()
		_, off := time.Date(y, m, d, hh, mm, ss, 0, z.location()).Zone()
		return Unambiguous(off)
	}
}

// OffsetAtUTC resolves an absolute instant to the offset in effect. The
// second result is false for a custom zone when the instant precedes every
// configured transition or lies past the unroll horizon.
func (z Tz) OffsetAtUTC(t time.Time) (int, bool) {
	if z.kind != KindCustom {
		_, off := t.In(z.location()).Zone()
		return off, true
	}
	if t.After(horizon) {
		return 0, false
	}
	s := z.activeSetUTC(t)
	if s == nil {
		return 0, false
	}
	return s.Total(), true
}

// customOffsetAtLocal implements the three-way resolution for custom zones:
// a set claims the reading if interpreting the reading with the set's
// offset lands on a UTC instant at which that same set is active.
func (z Tz) customOffsetAtLocal(n time.Time) Resolution {
	if n.After(horizon) {
		return NoOffset()
	}
	var offs []int
	for i := range z.sets {
		s := &z.sets[i]
		utc := n.Add(-time.Duration(s.Total()) * time.Second)
		if act := z.activeSetUTC(utc); act == s {
			offs = append(offs, s.Total())
		}
	}
	offs = dedupInts(offs)
	switch len(offs) {
	case 0:
		return NoOffset()
	case 1:
		return Unambiguous(offs[0])
	default:
		// Larger offset means earlier UTC instant for the same reading.
		sort.Sort(sort.Reverse(sort.IntSlice(offs)))
		return AmbiguousOffsets(offs[0], offs[1])
	}
}

// activeSetUTC returns the set whose most recent transition strictly
// precedes the given UTC instant, or nil when none applies.
func (z Tz) activeSetUTC(utc time.Time) *TransitionSet {
	var (
		best   *TransitionSet
		bestAt time.Time
	)
	for i := range z.sets {
		s := &z.sets[i]
		at, ok := s.latestUTC(utc)
		if !ok {
			continue
		}
		if best == nil || at.After(bestAt) {
			best, bestAt = s, at
		}
	}
	return best
}

// Apply interprets a naive reading in this zone and returns a concrete
// instant. Inside a repeated window the earlier interpretation wins;
// inside a skipped window the offset active at the literal reading is
// used, mirroring how the stdlib maps nonexistent times forward.
func (z Tz) Apply(reading time.Time) time.Time {
	n := naive(reading)
	y, m, d := n.Date()
	hh, mm, ss := n.Clock()
	if z.kind != KindCustom {
		return time.Date(y, m, d, hh, mm, ss, 0, z.location())
	}
	off, ok := z.customOffsetAtLocal(n).First()
	if !ok {
		if act := z.activeSetUTC(n); act != nil {
			off = act.Total()
		} else {
			off = z.sets[0].Total()
		}
	}
	return time.Date(y, m, d, hh, mm, ss, 0, z.fixedLocation(off))
}

// Convert re-expresses an absolute instant in this zone.
func (z Tz) Convert(t time.Time) time.Time {
	if z.kind != KindCustom {
		return t.In(z.location())
	}
	off, ok := z.OffsetAtUTC(t)
	if !ok {
		off = z.sets[0].Total()
	}
	return t.In(z.fixedLocation(off))
}

func (z Tz) location() *time.Location {
	if z.loc == nil {
		return time.Local
	}
	return z.loc
}

// fixedLocation names a fixed offset after the transition set carrying it,
// falling back to the zone identifier.
func (z Tz) fixedLocation(off int) *time.Location {
	name := z.id
	for i := range z.sets {
		if z.sets[i].Total() == off && z.sets[i].Name != "" {
			name = z.sets[i].Name
			break
		}
	}
	return time.FixedZone(name, off)
}

func dedupInts(xs []int) []int {
	out := xs[:0]
	for _, x := range xs {
		seen := false
		for _, y := range out {
			if x == y {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, x)
		}
	}
	return out
}
