package models

import "time"

// DateLayout is the calendar-date format used on every external interface.
const DateLayout = "2006-01-02"

// Action is what a request asks the calendar to do.
type Action string

const (
	ActionAdd    Action = "add"
	ActionQuery  Action = "query"
	ActionDelete Action = "delete"
)

// DateRange is an inclusive whole-day range. Start and End are midnight UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Day returns a single-day range.
func Day(t time.Time) DateRange {
	return DateRange{Start: t, End: t}
}

// ClassificationResult is the outcome of classifying one request.
type ClassificationResult struct {
	Action     Action `json:"action"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	SearchTerm string `json:"searchTerm"`
	SearchTime string `json:"searchTime"`
	DeleteAll  bool   `json:"deleteAll"`

	// DateRule names the temporal rule that produced the range; DateResolved is
	// false when no rule matched and the range is the reference date.
	DateRule     string `json:"dateRule"`
	DateResolved bool   `json:"dateResolved"`
}

// Criteria returns the match criteria carried by the result.
func (r ClassificationResult) Criteria() MatchCriteria {
	return MatchCriteria{SearchTerm: r.SearchTerm, SearchTime: r.SearchTime}
}

// MatchCriteria selects deletion candidates among a day's events.
type MatchCriteria struct {
	SearchTerm string `json:"searchTerm"`
	SearchTime string `json:"searchTime"`
}

// MatchResult is the outcome of resolving deletion candidates against a store.
// On upstream failure Error is set and Matches is empty.
type MatchResult struct {
	Matches        []ParsedEvent `json:"matches"`
	MatchCount     int           `json:"matchCount"`
	AllEventsOnDay int           `json:"allEventsOnDay"`
	Error          string        `json:"error,omitempty"`
}
