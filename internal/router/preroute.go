// Package router decides, before any model is consulted, whether a chat
// message is obviously a calendar or task request, and reads the intent the
// model returns when it is not.
package router

import (
	"regexp"
	"strings"
	"time"

	"calassist/internal/classifier"
	"calassist/internal/models"
	"calassist/internal/temporal"
)

// Intents produced by the router.
const (
	IntentCalendar = "calendar"
	IntentTasks    = "tasks"
	IntentChat     = "chat"
)

// Route is the pre-routing decision for one message. When SkipAI is false
// the message goes to the model classifier and the other fields are empty.
type Route struct {
	Intent         string        `json:"intent,omitempty"`
	CalendarAction models.Action `json:"calendarAction,omitempty"`
	SkipAI         bool          `json:"skipAI"`
	RoutedBy       string        `json:"routedBy,omitempty"`
}

var (
	fixCommand       = regexp.MustCompile(`^fix[:\s]`)
	confirmCommand   = regexp.MustCompile(`^(?:yes|yep|yeah|confirm|do it|go ahead|ok|okay)$`)
	cancelCommand    = regexp.MustCompile(`^(?:no|nope|cancel|nevermind|never mind|stop)$`)
	numericSelection = regexp.MustCompile(`^\d+$`)

	taskRequest = regexp.MustCompile(`\b(?:task|todo|to-do|to do)\b`)

	timeOfDay = regexp.MustCompile(`\b\d{1,2}(?::\d{2})?\s*(?:am|pm)\b|\bat\s+(?:noon|midnight)\b`)
	eventWord = regexp.MustCompile(`\b(?:meeting|appointment|call|lunch|dinner|breakfast|event|shift)\b`)

	// Indicators the date resolver has no rule for.
	extraDateIndicators = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:today|tonight)\b`),
		regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)\b`),
		regexp.MustCompile(`\b\d+\s+days?\s+from\s+now\b`),
		regexp.MustCompile(`\bweek\b`),
		timeOfDay,
	}
)

var (
	calendarQueryWords = []string{
		"what's on", "whats on", "schedule", "calendar",
		"busy", "free", "do i have", "am i",
		"show my", "list my", "check my",
	}
	calendarAddWords = []string{
		"add", "create", "schedule", "book",
		"set up", "put in", "new event", "new meeting", "new appointment",
	}
)

// PreRoute classifies message without a model. Confirmations, fixes and
// numeric selections are always left to the model, which holds the
// conversation state they refer to.
func PreRoute(message string) Route {
	text := strings.TrimSpace(classifier.Normalize(message))

	if fixCommand.MatchString(text) || confirmCommand.MatchString(text) ||
		cancelCommand.MatchString(text) || numericSelection.MatchString(text) {
		return Route{}
	}

	if taskRequest.MatchString(text) {
		return Route{Intent: IntentTasks, SkipAI: true, RoutedBy: "pre-route-tasks"}
	}

	hasDate := HasDateIndicator(text)
	hasQuery := containsAny(text, calendarQueryWords)
	hasAdd := containsAny(text, calendarAddWords)
	hasDelete := containsAny(text, classifier.DeleteKeywords)

	// Later checks override earlier ones: delete beats add beats query.
	var action models.Action
	if hasQuery || (strings.Contains(text, "what") && hasDate) {
		action = models.ActionQuery
	}
	if hasAdd && hasDate {
		action = models.ActionAdd
	}
	if hasDelete && hasDate {
		action = models.ActionDelete
	}
	if timeOfDay.MatchString(text) && eventWord.MatchString(text) && hasDate && !hasDelete && !hasQuery {
		action = models.ActionAdd
	}

	if action == "" {
		return Route{}
	}
	return Route{
		Intent:         IntentCalendar,
		CalendarAction: action,
		SkipAI:         true,
		RoutedBy:       "pre-route-calendar",
	}
}

// HasDateIndicator reports whether text names a day, a date range or a time
// of day. Any phrase the date resolver understands counts.
func HasDateIndicator(text string) bool {
	text = strings.ToLower(text)
	// The reference date only matters for the range, not for whether a rule fired.
	if temporal.ResolveDetail(text, time.Time{}).Resolved {
		return true
	}
	for _, p := range extraDateIndicators {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
