package wizard

import (
	"fmt"
	"strconv"
	"strings"
)

// Step tags which question a choice list answers.
type Step string

const (
	AwaitingDST    Step = "dst"
	AwaitingOffset Step = "offset"
	AwaitingZone   Step = "zone"
	// BrowsingZones is the navigation list of a paginated zone prompt.
	BrowsingZones Step = "page"
)

func (s Step) valid() bool {
	switch s {
	case AwaitingDST, AwaitingOffset, AwaitingZone, BrowsingZones:
		return true
	}
	return false
}

// ListID identifies one emitted choice list. It is carried back verbatim with
// the user's selection.
type ListID struct {
	Step  Step
	Index int
}

// String encodes the id as "step:index".
func (id ListID) String() string {
	return string(id.Step) + ":" + strconv.Itoa(id.Index)
}

// ParseListID decodes the String form.
func ParseListID(s string) (ListID, error) {
	step, idx, ok := strings.Cut(s, ":")
	if !ok {
		return ListID{}, fmt.Errorf("%w: list id %q", ErrMalformedSelection, s)
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 || !Step(step).valid() {
		return ListID{}, fmt.Errorf("%w: list id %q", ErrMalformedSelection, s)
	}
	return ListID{Step: Step(step), Index: n}, nil
}
