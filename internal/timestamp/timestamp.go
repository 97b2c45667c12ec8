// Package timestamp converts the timestamp strings found in exports and API
// responses into one canonical wall-clock time in the target zone.
//
// Two families of input are accepted:
//
//   - Localized: "2025년 5월 12일 오후 3:05" (and the English export form
//     "May 12, 2025 3:05 PM"). These are already wall-clock times in the
//     target zone and are used as-is.
//   - Machine: RFC 3339 and a few ISO-like layouts. These are instants; a
//     value without a zone is taken as UTC. They are shifted into the target
//     zone exactly once.
//
// Anything else yields the current time. Callers never see an error.
package timestamp

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"complaintsync/internal/logger"
)

const (
	morning   = "오전"
	afternoon = "오후"
)

var koreanPattern = regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일\s*(오전|오후)\s*(\d{1,2}):(\d{2})`)

// englishLayouts are the English-locale export forms; like the Korean form they carry no zone.
var englishLayouts = []string{
	"January 2, 2006 3:04 PM",
	"January 2, 2006 15:04",
}

// zonedLayouts carry an explicit offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02 15:04:05Z07:00",
}

// naiveLayouts carry no zone and are interpreted as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006.01.02 15:04:05",
	"2006-01-02",
}

// Normalizer is safe for concurrent use.
type Normalizer struct {
	loc *time.Location
	now func() time.Time
	log *logger.Logger
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New returns a normalizer producing times in loc.
func New(loc *time.Location, log *logger.Logger, opts ...Option) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	n := &Normalizer{loc: loc, now: time.Now, log: log}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Location returns the target zone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Now returns the current time in the target zone.
func (n *Normalizer) Now() time.Time {
	return n.now().In(n.loc)
}

// Normalize parses raw and returns it in the target zone, truncated to whole seconds.
//
// Empty input returns Now() silently. Unparseable input returns Now() and logs a warning.
func (n *Normalizer) Normalize(raw string) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return n.Now().Truncate(time.Second)
	}

	if t, ok := n.parseLocalized(s); ok {
		return t
	}
	if t, ok := n.parseMachine(s); ok {
		return t.Truncate(time.Second)
	}

	n.log.Warn("Invalid date string, using current time", "input", raw)
	return n.Now().Truncate(time.Second)
}

// parseLocalized handles the wall-clock grammars; no offset is applied.
func (n *Normalizer) parseLocalized(s string) (time.Time, bool) {
	if m := koreanPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour, _ := strconv.Atoi(m[5])
		minute, _ := strconv.Atoi(m[6])

		if !validClock(year, month, day, hour, minute) {
			return time.Time{}, false
		}
		return time.Date(year, time.Month(month), day, to24Hour(m[4], hour), minute, 0, 0, n.loc), true
	}

	for _, layout := range englishLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseMachine handles instants. The shift into the target zone happens here
// and only here.
func (n *Normalizer) parseMachine(s string) (time.Time, bool) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(n.loc), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.In(n.loc), true
		}
	}
	return time.Time{}, false
}

// to24Hour applies the 오전/오후 rule: afternoon hours below 12 gain 12,
// 12 in the morning is midnight, everything else is kept.
func to24Hour(marker string, hour int) int {
	switch {
	case marker == afternoon && hour < 12:
		return hour + 12
	case marker == morning && hour == 12:
		return 0
	}
	return hour
}

// validClock rejects values time.Date would silently roll over (e.g. 13월,
// 2월 30일, 25:00). Hours up to 23 are accepted with either marker.
func validClock(year, month, day, hour, minute int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	if day > daysIn(year, time.Month(month)) {
		return false
	}
	return hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
