package domain

import (
	"strconv"
	"time"
)

// ProfileKey identifies a profile: one user inside one chat scope.
type ProfileKey struct {
	ScopeID int64
	UserID  int64
}

// Profile represents a user's time settings within a scope. Wizard fields
// stay nil until the matching step has been answered.
type Profile struct {
	ScopeID          int64
	UserID           int64
	DisplayName      string
	DSTObserved      *bool
	UTCOffsetMinutes *int
	ResolvedZone     *string
	Locale           string // BCP 47 tag, set by /aboutme
	Color            string // palette name, set by /aboutme
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Key returns the profile's storage key.
func (p *Profile) Key() ProfileKey {
	return ProfileKey{ScopeID: p.ScopeID, UserID: p.UserID}
}

// Name is how the profile is referred to in rosters.
func (p *Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "user " + strconv.FormatInt(p.UserID, 10)
}

// Offset returns the offset used for reporting: the recorded offset if any,
// otherwise the resolved zone's offset at now.
func (p *Profile) Offset(now time.Time) (int, bool) {
	if p.UTCOffsetMinutes != nil {
		return *p.UTCOffsetMinutes, true
	}
	if p.ResolvedZone != nil {
		loc, err := time.LoadLocation(*p.ResolvedZone)
		if err != nil {
			return 0, false
		}
		_, sec := now.In(loc).Zone()
		return sec / 60, true
	}
	return 0, false
}

// ProfilePatch is a partial update. Nil fields are left untouched.
type ProfilePatch struct {
	DisplayName      *string
	DSTObserved      *bool
	UTCOffsetMinutes *int
	ResolvedZone     *string
	ClearZone        bool // drop ResolvedZone; ignored when ResolvedZone is set
	Locale           *string
	Color            *string
}

// Apply writes the patch onto p.
func (pp ProfilePatch) Apply(p *Profile) {
	if pp.DisplayName != nil && *pp.DisplayName != "" {
		p.DisplayName = *pp.DisplayName
	}
	if pp.DSTObserved != nil {
		p.DSTObserved = Ptr(*pp.DSTObserved)
	}
	if pp.UTCOffsetMinutes != nil {
		p.UTCOffsetMinutes = Ptr(*pp.UTCOffsetMinutes)
	}
	switch {
	case pp.ResolvedZone != nil:
		p.ResolvedZone = Ptr(*pp.ResolvedZone)
	case pp.ClearZone:
		p.ResolvedZone = nil
	}
	if pp.Locale != nil {
		p.Locale = *pp.Locale
	}
	if pp.Color != nil {
		p.Color = *pp.Color
	}
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T { return &v }
