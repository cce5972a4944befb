package domain

import (
	"slices"
	"time"
)

// Catalog bounds: whole hours from UTC-12 to UTC+12.
const (
	MinCatalogOffset = -12 * 60
	MaxCatalogOffset = 12 * 60
	CatalogStep      = 60

	// MaxIrregularOptions keeps the supplementary list inside one choice list.
	MaxIrregularOptions = 25
)

// OffsetOption is one selectable UTC offset. Label previews the wall clock
// at that offset, e.g. "14:30 -5".
type OffsetOption struct {
	Label        string
	ValueMinutes int
}

// CurrentOptions returns the 25 whole-hour offsets from -12h to +12h,
// labeled with the time it is there at now.
func CurrentOptions(now time.Time) []OffsetOption {
	out := make([]OffsetOption, 0, (MaxCatalogOffset-MinCatalogOffset)/CatalogStep+1)
	for off := MinCatalogOffset; off <= MaxCatalogOffset; off += CatalogStep {
		out = append(out, newOption(now, off))
	}
	return out
}

// InCatalog reports whether minutes is one of the CurrentOptions values.
func InCatalog(minutes int) bool {
	return minutes >= MinCatalogOffset && minutes <= MaxCatalogOffset && minutes%CatalogStep == 0
}

// IrregularOptions returns the offsets the hourly catalog cannot express
// (half hours, quarter hours, beyond +-12h), ascending and capped at
// MaxIrregularOptions.
func IrregularOptions(offsets []int, now time.Time) []OffsetOption {
	var odd []int
	for _, off := range offsets {
		if !InCatalog(off) {
			odd = append(odd, off)
		}
	}
	slices.Sort(odd)
	odd = slices.Compact(odd)
	if len(odd) > MaxIrregularOptions {
		odd = odd[:MaxIrregularOptions]
	}
	out := make([]OffsetOption, 0, len(odd))
	for _, off := range odd {
		out = append(out, newOption(now, off))
	}
	return out
}

func newOption(now time.Time, off int) OffsetOption {
	return OffsetOption{
		Label:        ClockAt(now, off) + " " + FormatOffset(off),
		ValueMinutes: off,
	}
}
