package domain

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

var (
	ErrInvalidClock  = errors.New("invalid time of day")
	ErrInvalidLocale = errors.New("invalid locale")
	ErrInvalidColor  = errors.New("invalid color")
	ErrInvalidOffset = errors.New("invalid utc offset")
)

// Palette lists the colors a profile may pick.
var Palette = []string{"red", "orange", "yellow", "green", "blue", "purple", "pink", "grey"}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: expected HH:MM", ErrInvalidClock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: invalid hour", ErrInvalidClock)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: invalid minute", ErrInvalidClock)
	}
	return h*60 + m, nil
}

// FormatMinutes returns HH:MM for minutes since midnight (00:00..23:59).
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	h := mins / 60
	m := mins % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// FormatOffset renders an offset in minutes as a signed hour count:
// "+0", "-5", "+5:30", "-9:30".
func FormatOffset(minutes int) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("%s%d", sign, minutes/60)
	}
	return fmt.Sprintf("%s%d:%02d", sign, minutes/60, minutes%60)
}

// ParseOffset is the inverse of FormatOffset and FormatUTC. It accepts
// "-5", "+5:30", "UTC-9:30" and "0", within -14h..+14h.
func ParseOffset(s string) (int, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "UTC")
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidOffset)
	}
	sign := 1
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	hours, mins, found := strings.Cut(s, ":")
	h, err := strconv.Atoi(hours)
	if err != nil || h < 0 || h > 14 {
		return 0, fmt.Errorf("%w: bad hours in %q", ErrInvalidOffset, s)
	}
	m := 0
	if found {
		m, err = strconv.Atoi(mins)
		if err != nil || m < 0 || m > 59 || len(mins) != 2 {
			return 0, fmt.Errorf("%w: bad minutes in %q", ErrInvalidOffset, s)
		}
	}
	total := h*60 + m
	if total > 14*60 {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidOffset)
	}
	return sign * total, nil
}

// FormatUTC renders an offset as "UTC-5" / "UTC+5:30".
func FormatUTC(minutes int) string {
	return "UTC" + FormatOffset(minutes)
}

// ClockAt returns the 24-hour wall clock "15:04" at a fixed offset from UTC.
func ClockAt(now time.Time, offsetMinutes int) string {
	return now.UTC().Add(time.Duration(offsetMinutes) * time.Minute).Format("15:04")
}

// LocalizeTime formats t in the given zone as HH:MM.
func LocalizeTime(t time.Time, tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format("15:04"), nil
}

// ParseLocale canonicalizes a BCP 47 language tag ("de-ch" -> "de-CH").
func ParseLocale(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidLocale
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidLocale, s)
	}
	return tag.String(), nil
}

// ParseColor accepts a palette color name, case-insensitively.
func ParseColor(s string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(s))
	if !slices.Contains(Palette, c) {
		return "", fmt.Errorf("%w: %q (choose from %s)", ErrInvalidColor, s, strings.Join(Palette, ", "))
	}
	return c, nil
}
