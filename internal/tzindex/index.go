// Package tzindex classifies IANA time zones into buckets keyed by DST
// observance and UTC offset.
//
// An Index is built once with Build and is read-only afterwards, so it can be
// shared between goroutines without locking.
package tzindex

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	// Locations load from the embedded database when the host has none.
	_ "time/tzdata"
)

// ErrNoZones is returned when Build is given an empty name set.
var ErrNoZones = errors.New("tzindex: no zone names")

// Key identifies an offset bucket.
type Key struct {
	DST           bool
	OffsetMinutes int
}

// ZoneRecord is one (zone, offset) classification. A zone whose offset
// changes during the reference year has one record per distinct offset.
type ZoneRecord struct {
	Name             string
	DSTObserved      bool
	UTCOffsetMinutes int
}

// Index maps offset buckets to zone names.
type Index struct {
	year    int
	buckets map[Key][]string
	records []ZoneRecord
	names   map[string]struct{}
}

// Build classifies every name by sampling its offset at noon UTC on the 1st
// and 15th of each month of referenceYear. A zone observes DST when any two
// samples differ.
func Build(names []string, referenceYear int) (*Index, error) {
	if len(names) == 0 {
		return nil, ErrNoZones
	}
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	idx := &Index{
		year:    referenceYear,
		buckets: make(map[Key][]string),
		names:   make(map[string]struct{}, len(sorted)),
	}

	var errs []error
	for _, name := range sorted {
		loc, err := time.LoadLocation(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		offsets := SampleOffsets(loc, referenceYear)
		dst := len(offsets) > 1
		for _, off := range offsets {
			idx.records = append(idx.records, ZoneRecord{Name: name, DSTObserved: dst, UTCOffsetMinutes: off})
			k := Key{DST: dst, OffsetMinutes: off}
			idx.buckets[k] = append(idx.buckets[k], name)
		}
		idx.names[name] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("tzindex: %d zones failed to load: %w", len(errs), errors.Join(errs...))
	}
	return idx, nil
}

// SampleOffsets returns the distinct offsets (minutes east of UTC) loc uses on
// the sampled dates of year, ascending.
func SampleOffsets(loc *time.Location, year int) []int {
	var offsets []int
	for m := time.January; m <= time.December; m++ {
		for _, day := range [...]int{1, 15} {
			_, sec := time.Date(year, m, day, 12, 0, 0, 0, time.UTC).In(loc).Zone()
			offsets = append(offsets, sec/60)
		}
	}
	slices.Sort(offsets)
	return slices.Compact(offsets)
}

// Lookup returns the zones in the bucket, sorted. A miss returns an empty
// slice, never an error.
func (x *Index) Lookup(dst bool, offsetMinutes int) []string {
	return slices.Clone(x.buckets[Key{DST: dst, OffsetMinutes: offsetMinutes}])
}

// Contains reports whether name was classified.
func (x *Index) Contains(name string) bool {
	_, ok := x.names[name]
	return ok
}

// Year is the reference year the index was sampled in.
func (x *Index) Year() int { return x.year }

// Len is the number of distinct zone names.
func (x *Index) Len() int { return len(x.names) }

// Records returns all classifications ordered by name, then offset.
func (x *Index) Records() []ZoneRecord {
	return slices.Clone(x.records)
}

// Keys returns the non-empty buckets ordered by offset, non-DST first.
func (x *Index) Keys() []Key {
	keys := make([]Key, 0, len(x.buckets))
	for k := range x.buckets {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		if c := cmp.Compare(a.OffsetMinutes, b.OffsetMinutes); c != 0 {
			return c
		}
		switch {
		case a.DST == b.DST:
			return 0
		case !a.DST:
			return -1
		default:
			return 1
		}
	})
	return keys
}

// Offsets returns the distinct offsets across all buckets, ascending.
func (x *Index) Offsets() []int {
	var out []int
	for k := range x.buckets {
		out = append(out, k.OffsetMinutes)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
