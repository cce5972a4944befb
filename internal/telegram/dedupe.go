package telegram

import (
	"time"

	"github.com/maypok86/otter/v2"
)

// Dedupe remembers recently handled update ids so redelivered webhook calls
// are dropped.
type Dedupe struct {
	seen *otter.Cache[int, struct{}]
}

// NewDedupe keeps ids for ttl.
func NewDedupe(ttl time.Duration) *Dedupe {
	return &Dedupe{seen: otter.Must(&otter.Options[int, struct{}]{
		MaximumSize:      50_000,
		ExpiryCalculator: otter.ExpiryWriting[int, struct{}](ttl),
	})}
}

// Seen records id and reports whether it was already recorded.
func (d *Dedupe) Seen(id int) bool {
	_, inserted := d.seen.SetIfAbsent(id, struct{}{})
	return !inserted
}
