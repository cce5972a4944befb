// Package report groups a scope's profiles by UTC offset and renders the
// local time of each group.
package report

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/SilentStoat/StoatBot/internal/domain"
)

// EmptyText is rendered when nobody in the scope has an offset.
const EmptyText = "Nobody here has set a time zone yet. Use /settz to add yours."

var strict = bluemonday.StrictPolicy()

var colorMarks = map[string]string{
	"red":    "🔴",
	"orange": "🟠",
	"yellow": "🟡",
	"green":  "🟢",
	"blue":   "🔵",
	"purple": "🟣",
	"pink":   "🩷",
	"grey":   "⚪",
}

// Member is one profile inside a group.
type Member struct {
	UserID int64
	Name   string
	Zone   string
	Color  string
}

// Group is every member sharing one UTC offset.
type Group struct {
	OffsetMinutes int
	Local         string // "15:04" at the offset
	Members       []Member
}

// Report is a roster snapshot taken at At.
type Report struct {
	At     time.Time
	Groups []Group
}

// Build keeps profiles with a recorded offset or a resolved zone (offset taken
// at now), groups them by offset ascending, and orders members by name then
// user id.
func Build(profiles []domain.Profile, now time.Time) Report {
	byOffset := make(map[int][]Member)
	for i := range profiles {
		p := &profiles[i]
		off, ok := p.Offset(now)
		if !ok {
			continue
		}
		m := Member{UserID: p.UserID, Name: p.Name(), Color: p.Color}
		if p.ResolvedZone != nil {
			m.Zone = *p.ResolvedZone
		}
		byOffset[off] = append(byOffset[off], m)
	}

	r := Report{At: now}
	for off, members := range byOffset {
		slices.SortFunc(members, func(a, b Member) int {
			if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
				return c
			}
			return cmp.Compare(a.UserID, b.UserID)
		})
		r.Groups = append(r.Groups, Group{
			OffsetMinutes: off,
			Local:         domain.ClockAt(now, off),
			Members:       members,
		})
	}
	slices.SortFunc(r.Groups, func(a, b Group) int { return cmp.Compare(a.OffsetMinutes, b.OffsetMinutes) })
	return r
}

// Empty reports whether no profile made it into the roster.
func (r Report) Empty() bool { return len(r.Groups) == 0 }

// Text renders one plain line per group: "14:30 (UTC-5): alice, bob".
func (r Report) Text() string {
	if r.Empty() {
		return EmptyText
	}
	var b strings.Builder
	for i, g := range r.Groups {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(g.Local + " (" + domain.FormatUTC(g.OffsetMinutes) + "): ")
		for j, m := range g.Members {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(m.Name)
		}
	}
	return b.String()
}

// HTML renders the roster for Telegram's HTML parse mode. Member names are
// user-controlled and pass through a strict sanitizer.
func (r Report) HTML() string {
	if r.Empty() {
		return strict.Sanitize(EmptyText)
	}
	var b strings.Builder
	for i, g := range r.Groups {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("<b>" + g.Local + "</b> (" + domain.FormatUTC(g.OffsetMinutes) + "): ")
		for j, m := range g.Members {
			if j > 0 {
				b.WriteString(", ")
			}
			if mark, ok := colorMarks[m.Color]; ok {
				b.WriteString(mark + " ")
			}
			b.WriteString(strict.Sanitize(m.Name))
		}
	}
	return b.String()
}
