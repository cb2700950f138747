// Package classifier maps free-text calendar requests onto an action, a
// resolved date range and the fields needed to find events to delete.
package classifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"calassist/internal/models"
	"calassist/internal/temporal"
)

// DeleteKeywords and QueryKeywords are matched as plain substrings.
var (
	DeleteKeywords = []string{"cancel", "delete", "remove", "drop", "clear", "wipe"}
	QueryKeywords  = []string{
		"what", "show", "list", "schedule", "calendar", "busy", "free",
		"do i have", "am i", "check", "summary", "tell me",
		"what's on", "whats on",
	}
)

// actionRule is one step of the action table; the first rule whose keyword
// appears in the text decides the action.
type actionRule struct {
	action   models.Action
	keywords []string
}

// Delete is checked before query: "cancel" is never a question.
var actionRules = []actionRule{
	{action: models.ActionDelete, keywords: DeleteKeywords},
	{action: models.ActionQuery, keywords: QueryKeywords},
}

var deleteAllPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:all|every|each)\s*(?:my\s*)?(?:events?|appointments?|meetings?|calendar)?\b`),
	regexp.MustCompile(`\beverything\b`),
	regexp.MustCompile(`\b(?:clear|wipe)\s*(?:my\s*)?(?:calendar|schedule|day)?\b`),
	regexp.MustCompile(`\b(?:the\s*)?(?:whole|entire)\s*(?:day|calendar|schedule)?\b`),
	regexp.MustCompile(`\b(?:delete|cancel|remove|drop)\s+all\b`),
}

// searchTermStrips are applied in order. Multi-word date phrases go before
// the single words they contain.
var searchTermStrips = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:cancel|delete|remove|drop|clear|wipe)\b`),
	regexp.MustCompile(`\b(?:my|the|a|an)\b`),
	regexp.MustCompile(`\bday\s+(?:before\s+yesterday|after\s+tomorrow)\b`),
	regexp.MustCompile(`\b(?:tomorrow|today|tonight|yesterday)\b`),
	regexp.MustCompile(`\b\d+\s*days?\s*ago\b`),
	regexp.MustCompile(`\bin\s*\d+\s*days?\b`),
	regexp.MustCompile(`\b(?:next|this|last)\s+(?:week|month|` + temporal.WeekdayNames + `)\b`),
	regexp.MustCompile(`\b(?:` + temporal.WeekdayNames + `)\b`),
	regexp.MustCompile(`\b(?:on|at|for)\b`),
	temporal.MonthDayPatterns[0],
	temporal.MonthDayPatterns[1],
	regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)\b`),
	regexp.MustCompile(`\b\d{1,2}(?::\d{2})?\s*(?:am|pm)?\b`),
}

var (
	timePattern     = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	metadataPattern = regexp.MustCompile(`(?i)\[current local time:.*?\]`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// Classification is the output of the action classifier.
type Classification struct {
	Action     models.Action
	DeleteAll  bool
	SearchTerm string
	SearchTime string
}

// Normalize lowercases a request and removes the local-time tag that the
// chat bridge appends to messages.
func Normalize(text string) string {
	return strings.ToLower(metadataPattern.ReplaceAllString(text, ""))
}

// ClassifyAction decides the action and, for targeted deletes, the fields
// used to find the event.
func ClassifyAction(text string) Classification {
	text = Normalize(text)

	c := Classification{Action: detectAction(text)}
	if c.Action == models.ActionDelete {
		c.DeleteAll = isDeleteAll(text)
		if !c.DeleteAll {
			c.SearchTerm = ExtractSearchTerm(text)
		}
	}
	// The time is reported whenever the text names one; Classify keeps it only
	// for targeted deletes.
	c.SearchTime = ExtractSearchTime(text)
	return c
}

func detectAction(text string) models.Action {
	for _, rule := range actionRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.action
			}
		}
	}
	return models.ActionAdd
}

func isDeleteAll(text string) bool {
	for _, p := range deleteAllPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// ExtractSearchTerm strips action words, fillers, dates and times from a
// delete request, leaving what is left of the event title. The result may be
// empty, which callers treat as "any event that day".
func ExtractSearchTerm(text string) string {
	term := strings.ToLower(text)
	for _, p := range searchTermStrips {
		term = p.ReplaceAllString(term, "")
	}
	term = whitespace.ReplaceAllString(term, " ")
	return strings.Trim(term, " .,;:!?")
}

// ExtractSearchTime returns the first valid "H[:MM] am|pm" time in text as a
// 24-hour "HH:MM" string, or "" when there is none.
func ExtractSearchTime(text string) string {
	for _, m := range timePattern.FindAllStringSubmatch(strings.ToLower(text), -1) {
		if hhmm, ok := clockTime(m[1], m[2], m[3]); ok {
			return hhmm
		}
	}
	return ""
}

func clockTime(h, minutes, meridiem string) (string, bool) {
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 1 || hour > 12 {
		return "", false
	}
	if minutes == "" {
		minutes = "00"
	}
	if mm, _ := strconv.Atoi(minutes); mm > 59 {
		return "", false
	}

	switch {
	case meridiem == "pm" && hour != 12:
		hour += 12
	case meridiem == "am" && hour == 12:
		hour = 0
	}
	return fmt.Sprintf("%02d:%s", hour, minutes), true
}
