// Package wizard walks a user from "do you observe DST" through "what time is
// it where you are" to an exact zone name.
//
// The wizard keeps no session: every step re-reads the persisted profile and
// learns which question was answered from the ListID carried by the selection.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/SilentStoat/StoatBot/internal/domain"
	"github.com/SilentStoat/StoatBot/internal/store"
	"github.com/SilentStoat/StoatBot/internal/tzindex"
)

// Selection is one answered choice list.
type Selection struct {
	Key         domain.ProfileKey
	DisplayName string
	List        ListID
	Value       string
}

// Outcome is the wizard's reply to a selection. Err carries a recoverable
// condition (ErrMalformedSelection, ErrEmptyZoneMatch); the prompt then asks
// the same question again.
type Outcome struct {
	Prompt   Prompt
	Resolved bool
	Zone     string
	Err      error
}

// Wizard drives the DST -> offset -> zone funnel.
type Wizard struct {
	index    *tzindex.Index
	profiles store.ProfileStore
	clock    domain.Clock
}

// New creates a wizard over an immutable zone index.
func New(index *tzindex.Index, profiles store.ProfileStore, clock domain.Clock) *Wizard {
	return &Wizard{index: index, profiles: profiles, clock: clock}
}

// Start returns the DST question. Nothing is written.
func (w *Wizard) Start(_ context.Context) Prompt {
	return dstPrompt()
}

// Handle applies one selection and returns the next prompt. The returned error
// is non-nil only for store failures or an internal limit violation.
func (w *Wizard) Handle(ctx context.Context, sel Selection) (Outcome, error) {
	var (
		out Outcome
		err error
	)
	switch sel.List.Step {
	case AwaitingDST:
		out, err = w.handleDST(ctx, sel)
	case AwaitingOffset:
		out, err = w.handleOffset(ctx, sel)
	case BrowsingZones:
		out, err = w.handlePage(ctx, sel)
	case AwaitingZone:
		out, err = w.handleZone(ctx, sel)
	default:
		out = malformed(dstPrompt(), fmt.Sprintf("unknown step %q", sel.List.Step))
	}
	if err != nil {
		return Outcome{}, err
	}
	if verr := out.Prompt.Validate(); verr != nil {
		return Outcome{}, verr
	}
	return out, nil
}

func (w *Wizard) handleDST(ctx context.Context, sel Selection) (Outcome, error) {
	if sel.List.Index != 0 {
		return malformed(dstPrompt(), "unknown DST list"), nil
	}
	var dst bool
	switch sel.Value {
	case "0":
		dst = false
	case "1":
		dst = true
	default:
		return malformed(dstPrompt(), "DST answer must be yes or no"), nil
	}
	// A zone chosen under the other DST answer is no longer in the profile's bucket.
	if err := w.upsert(ctx, sel, domain.ProfilePatch{DSTObserved: &dst, ClearZone: true}); err != nil {
		return Outcome{}, err
	}
	return Outcome{Prompt: w.offsetPrompt()}, nil
}

func (w *Wizard) handleOffset(ctx context.Context, sel Selection) (Outcome, error) {
	off, err := strconv.Atoi(sel.Value)
	if err != nil || !w.offered(sel.List.Index, off) {
		return malformed(w.offsetPrompt(), "that offset is not one of the choices"), nil
	}

	p, err := w.profile(ctx, sel.Key)
	if err != nil {
		return Outcome{}, err
	}
	if p.DSTObserved == nil {
		return malformed(dstPrompt(), "please answer the DST question first"), nil
	}

	candidates := w.index.Lookup(*p.DSTObserved, off)
	if len(candidates) == 0 {
		prompt := w.offsetPrompt()
		prompt.Notice = fmt.Sprintf("No time zones are at %s %s. Pick another offset, or /settz to change the DST answer.",
			domain.FormatUTC(off), dstPhrase(*p.DSTObserved))
		return Outcome{Prompt: prompt, Err: ErrEmptyZoneMatch}, nil
	}

	if err := w.upsert(ctx, sel, domain.ProfilePatch{UTCOffsetMinutes: &off, ClearZone: true}); err != nil {
		return Outcome{}, err
	}
	prompt, _ := zonePrompt(*p.DSTObserved, off, candidates, 0)
	return Outcome{Prompt: prompt}, nil
}

func (w *Wizard) handlePage(ctx context.Context, sel Selection) (Outcome, error) {
	dst, off, candidates, early, err := w.candidates(ctx, sel.Key)
	if err != nil || early != nil {
		return deref(early), err
	}
	page, perr := strconv.Atoi(sel.Value)
	if sel.List.Index != 0 || perr != nil {
		first, _ := zonePrompt(dst, off, candidates, 0)
		return malformed(first, "unknown page"), nil
	}
	prompt, ok := zonePrompt(dst, off, candidates, page)
	if !ok {
		first, _ := zonePrompt(dst, off, candidates, 0)
		return malformed(first, "unknown page"), nil
	}
	return Outcome{Prompt: prompt}, nil
}

func (w *Wizard) handleZone(ctx context.Context, sel Selection) (Outcome, error) {
	dst, off, candidates, early, err := w.candidates(ctx, sel.Key)
	if err != nil || early != nil {
		return deref(early), err
	}
	chunks := Chunk(candidates, MaxOptions)
	idx := sel.List.Index
	if idx < 0 || idx >= len(chunks) || !slices.Contains(chunks[idx], sel.Value) {
		prompt, _ := zonePrompt(dst, off, candidates, pageOf(idx, len(chunks)))
		return malformed(prompt, "that zone is not in the list for your offset"), nil
	}

	zone := sel.Value
	if err := w.upsert(ctx, sel, domain.ProfilePatch{ResolvedZone: &zone}); err != nil {
		return Outcome{}, err
	}
	text := "Time zone set to " + zone + "."
	if local, err := domain.LocalizeTime(w.clock.Now(), zone); err == nil {
		text += " It is " + local + " there now."
	}
	return Outcome{Prompt: Prompt{Text: text}, Resolved: true, Zone: zone}, nil
}

// candidates loads the profile and its zone candidates. When the profile is
// not far enough along, early holds the outcome re-asking the missing step.
func (w *Wizard) candidates(ctx context.Context, key domain.ProfileKey) (dst bool, off int, names []string, early *Outcome, err error) {
	p, err := w.profile(ctx, key)
	if err != nil {
		return false, 0, nil, nil, err
	}
	switch {
	case p.DSTObserved == nil:
		o := malformed(dstPrompt(), "please answer the DST question first")
		return false, 0, nil, &o, nil
	case p.UTCOffsetMinutes == nil:
		o := malformed(w.offsetPrompt(), "please pick your offset first")
		return false, 0, nil, &o, nil
	}
	dst, off = *p.DSTObserved, *p.UTCOffsetMinutes
	names = w.index.Lookup(dst, off)
	if len(names) == 0 {
		prompt := w.offsetPrompt()
		prompt.Notice = fmt.Sprintf("No time zones are at %s %s. Pick another offset.", domain.FormatUTC(off), dstPhrase(dst))
		return false, 0, nil, &Outcome{Prompt: prompt, Err: ErrEmptyZoneMatch}, nil
	}
	return dst, off, names, nil, nil
}

func (w *Wizard) profile(ctx context.Context, key domain.ProfileKey) (*domain.Profile, error) {
	p, err := w.profiles.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return &domain.Profile{ScopeID: key.ScopeID, UserID: key.UserID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get profile: %w", ErrStoreUnavailable, err)
	}
	return p, nil
}

func (w *Wizard) upsert(ctx context.Context, sel Selection, patch domain.ProfilePatch) error {
	if sel.DisplayName != "" {
		patch.DisplayName = &sel.DisplayName
	}
	if err := w.profiles.Upsert(ctx, sel.Key, patch); err != nil {
		return fmt.Errorf("%w: upsert profile: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// offered reports whether off was a choice in offset list idx.
func (w *Wizard) offered(idx, off int) bool {
	switch idx {
	case 0:
		return domain.InCatalog(off)
	case 1:
		for _, o := range domain.IrregularOptions(w.index.Offsets(), w.clock.Now()) {
			if o.ValueMinutes == off {
				return true
			}
		}
	}
	return false
}

func (w *Wizard) offsetPrompt() Prompt {
	now := w.clock.Now()
	lists := []ChoiceList{{
		ID:      ListID{Step: AwaitingOffset, Index: 0},
		Title:   "Whole-hour offsets",
		Options: offsetOptions(domain.CurrentOptions(now)),
	}}
	if odd := domain.IrregularOptions(w.index.Offsets(), now); len(odd) > 0 {
		lists = append(lists, ChoiceList{
			ID:      ListID{Step: AwaitingOffset, Index: 1},
			Title:   "Other offsets",
			Options: offsetOptions(odd),
		})
	}
	return Prompt{
		Text:  "What time is it where you are? Pick the closest match.",
		Lists: lists,
	}
}

func offsetOptions(opts []domain.OffsetOption) []Option {
	out := make([]Option, 0, len(opts))
	for _, o := range opts {
		out = append(out, Option{Label: o.Label, Value: strconv.Itoa(o.ValueMinutes)})
	}
	return out
}

func dstPrompt() Prompt {
	return Prompt{
		Text: "Do your clocks change for daylight saving time during the year?",
		Lists: []ChoiceList{{
			ID:    ListID{Step: AwaitingDST, Index: 0},
			Title: "Daylight saving time",
			Options: []Option{
				{Label: "No DST", Value: "0", Description: "Same offset all year"},
				{Label: "Observes DST", Value: "1", Description: "Clocks move forward and back"},
			},
		}},
	}
}

// zonePrompt renders one page of candidates. Up to MaxLists chunks fit one
// response; beyond that pages hold ChunksPerPage chunks plus a navigation
// list. ok is false when page is out of range.
func zonePrompt(dst bool, off int, candidates []string, page int) (Prompt, bool) {
	chunks := Chunk(candidates, MaxOptions)
	prompt := Prompt{Text: fmt.Sprintf("Pick your time zone (%s, %s):", domain.FormatUTC(off), dstPhrase(dst))}

	if len(chunks) <= MaxLists {
		if page != 0 {
			return Prompt{}, false
		}
		prompt.Lists = chunkLists(chunks, 0)
		return prompt, true
	}

	pages := (len(chunks) + ChunksPerPage - 1) / ChunksPerPage
	if page < 0 || page >= pages {
		return Prompt{}, false
	}
	first := page * ChunksPerPage
	last := min(first+ChunksPerPage, len(chunks))
	prompt.Lists = chunkLists(chunks[first:last], first)

	var nav []Option
	if page > 0 {
		nav = append(nav, Option{Label: "« Previous", Value: strconv.Itoa(page - 1)})
	}
	if page < pages-1 {
		nav = append(nav, Option{Label: "Next »", Value: strconv.Itoa(page + 1)})
	}
	prompt.Lists = append(prompt.Lists, ChoiceList{
		ID:      ListID{Step: BrowsingZones, Index: 0},
		Title:   fmt.Sprintf("Page %d of %d", page+1, pages),
		Options: nav,
	})

	from := first*MaxOptions + 1
	to := min(last*MaxOptions, len(candidates))
	prompt.Notice = fmt.Sprintf("Showing zones %d-%d of %d.", from, to, len(candidates))
	return prompt, true
}

func chunkLists(chunks [][]string, firstIndex int) []ChoiceList {
	lists := make([]ChoiceList, 0, len(chunks))
	for i, chunk := range chunks {
		opts := make([]Option, 0, len(chunk))
		for _, name := range chunk {
			opts = append(opts, Option{Label: name, Value: name})
		}
		lists = append(lists, ChoiceList{
			ID:      ListID{Step: AwaitingZone, Index: firstIndex + i},
			Title:   chunk[0] + " … " + chunk[len(chunk)-1],
			Options: opts,
		})
	}
	return lists
}

// pageOf returns the page holding chunk idx, or 0 when idx is unknown.
func pageOf(idx, chunks int) int {
	if chunks <= MaxLists || idx < 0 || idx >= chunks {
		return 0
	}
	return idx / ChunksPerPage
}

func malformed(p Prompt, reason string) Outcome {
	p.Notice = "That selection wasn't valid: " + reason + "."
	return Outcome{Prompt: p, Err: fmt.Errorf("%w: %s", ErrMalformedSelection, reason)}
}

func dstPhrase(dst bool) string {
	if dst {
		return "with DST"
	}
	return "no DST"
}

func deref(o *Outcome) Outcome {
	if o == nil {
		return Outcome{}
	}
	return *o
}
