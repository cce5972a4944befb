package wizard

import (
	"fmt"
	"slices"
)

// Platform limits on a single response.
const (
	MaxOptions = 25
	MaxLists   = 5
	// ChunksPerPage is how many zone lists a paginated page carries; the
	// remaining slot holds the navigation list.
	ChunksPerPage = MaxLists - 1
)

// Option is one selectable entry.
type Option struct {
	Label       string
	Value       string
	Description string
}

// ChoiceList is a bounded list of options.
type ChoiceList struct {
	ID      ListID
	Title   string
	Options []Option
}

// Prompt is what the wizard hands to the response sink.
type Prompt struct {
	Text   string
	Notice string // shown above Text when a selection was rejected or paginated
	Lists  []ChoiceList
}

// Validate checks the prompt against MaxLists and MaxOptions.
func (p Prompt) Validate() error {
	if len(p.Lists) > MaxLists {
		return fmt.Errorf("%w: %d lists", ErrPromptTooLarge, len(p.Lists))
	}
	seen := make(map[ListID]bool, len(p.Lists))
	for _, l := range p.Lists {
		if n := len(l.Options); n == 0 || n > MaxOptions {
			return fmt.Errorf("%w: list %s has %d options", ErrPromptTooLarge, l.ID, n)
		}
		if seen[l.ID] {
			return fmt.Errorf("%w: duplicate list %s", ErrPromptTooLarge, l.ID)
		}
		seen[l.ID] = true
	}
	return nil
}

// Chunk folds items into consecutive chunks of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		panic("wizard: chunk size must be positive")
	}
	return slices.Collect(slices.Chunk(items, size))
}
