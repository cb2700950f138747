// Package matcher picks deletion candidates out of a day's events.
package matcher

import (
	"strings"

	"calassist/internal/models"
)

// Match returns the events that satisfy criteria, in input order.
//
// With both a search term and a time, an event must match both. Otherwise an
// event matches when it matches the term, or when a time is given and it
// starts then. An empty term matches every title, so a time alone filters
// nothing. With neither, every event matches.
func Match(events []models.ParsedEvent, criteria models.MatchCriteria) []models.ParsedEvent {
	term := strings.ToLower(strings.TrimSpace(criteria.SearchTerm))
	at := strings.TrimSpace(criteria.SearchTime)

	matches := make([]models.ParsedEvent, 0, len(events))
	if term == "" && at == "" {
		return append(matches, events...)
	}

	for _, ev := range events {
		termOK := TermMatches(ev.Summary, term)
		timeOK := at != "" && ev.StartTime == at
		var ok bool
		if term != "" && at != "" {
			ok = termOK && timeOK
		} else {
			ok = termOK || timeOK
		}
		if ok {
			matches = append(matches, ev)
		}
	}
	return matches
}

// TermMatches reports whether the title contains the term or the term
// contains the title, ignoring case. An empty title only matches an empty term.
func TermMatches(title, term string) bool {
	title = strings.ToLower(strings.TrimSpace(title))
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if title == "" {
		return false
	}
	return strings.Contains(title, term) || strings.Contains(term, title)
}

// Result wraps Match in the shape returned to callers.
func Result(events []models.ParsedEvent, criteria models.MatchCriteria) models.MatchResult {
	matches := Match(events, criteria)
	return models.MatchResult{
		Matches:        matches,
		MatchCount:     len(matches),
		AllEventsOnDay: len(events),
	}
}
