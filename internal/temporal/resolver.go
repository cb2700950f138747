// Package temporal resolves relative date phrases ("tomorrow", "next friday",
// "the 22nd") against an explicit reference date. Resolution is whole-day
// only; no clock is read here.
package temporal

import (
	"fmt"
	"strings"
	"time"

	"calassist/internal/models"
)

// DefaultRule is reported when no rule matched.
const DefaultRule = "default"

// Resolution is a resolved range plus the rule that produced it.
type Resolution struct {
	Range    models.DateRange
	Rule     string
	Resolved bool // false when the range fell back to the reference date
}

// Resolve returns the date range named by text relative to ref. It never
// fails: text that matches no rule resolves to ref itself.
func Resolve(text string, ref time.Time) models.DateRange {
	return ResolveDetail(text, ref).Range
}

// ResolveDetail is Resolve with the name of the winning rule.
func ResolveDetail(text string, ref time.Time) Resolution {
	ref = Midnight(ref)
	text = strings.ToLower(text)

	for _, rule := range Rules {
		m := rule.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if r, ok := rule.Resolve(m, ref); ok {
			return Resolution{Range: r, Rule: rule.Name, Resolved: true}
		}
	}
	return Resolution{Range: models.Day(ref), Rule: DefaultRule}
}

// Midnight truncates t to its calendar date at 00:00 UTC, keeping the
// wall-clock date of t's own location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseReference parses a YYYY-MM-DD reference date.
func ParseReference(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reference date %q: %w", s, err)
	}
	return t, nil
}
