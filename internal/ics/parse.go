// Package ics reads and writes the small subset of iCalendar markup the
// assistant deals with: VEVENT blocks inside model output and store results.
package ics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"calassist/internal/models"
)

// UntitledSummary is used for blocks without a SUMMARY line.
const UntitledSummary = "Untitled Event"

var (
	eventBlock  = regexp.MustCompile(`(?s)BEGIN:VEVENT.*?END:VEVENT`)
	uidLine     = regexp.MustCompile(`(?m)^UID(?:;[^:\n]*)?:(.*)$`)
	summaryLine = regexp.MustCompile(`(?m)^SUMMARY(?:;[^:\n]*)?:(.*)$`)
	dtstartLine = regexp.MustCompile(`(?m)^DTSTART(?:;[^:\n]*)?:(\d{8})(?:T(\d{2})(\d{2})(\d{2})?)?`)
	dtendLine   = regexp.MustCompile(`(?m)^DTEND(?:;[^:\n]*)?:(\d{8})(?:T(\d{2})(\d{2})(\d{2})?)?`)
	textEscapes = strings.NewReplacer(`\\`, `\`, `\,`, `,`, `\;`, `;`, `\N`, "\n", `\n`, "\n")
)

// NormalizeNewlines turns literal "\n" sequences into line breaks and all
// line endings into LF. Model output often arrives with escaped newlines.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// propertyStart matches the properties that may turn up indented in
// hand-written or model-written markup.
var propertyStart = regexp.MustCompile(`^(?:BEGIN|END|UID|SUMMARY|DESCRIPTION|LOCATION|DTSTART|DTEND|DTSTAMP|DURATION|` +
	`STATUS|TRANSP|CLASS|CATEGORIES|PRIORITY|SEQUENCE|CREATED|LAST-MODIFIED|RRULE|RDATE|EXDATE|RECURRENCE-ID|` +
	`ORGANIZER|ATTENDEE|URL|GEO|VERSION|PRODID|CALSCALE|METHOD|TZID|TZNAME|TZOFFSETFROM|TZOFFSETTO|` +
	`ACTION|TRIGGER|X-[A-Z0-9-]+)[:;]`)

// Dedent removes the indentation of lines that start a known property, so
// they are not taken for folded continuations. Other lines are kept as is.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if len(trimmed) != len(line) && propertyStart.MatchString(trimmed) {
			lines[i] = trimmed
		}
	}
	return strings.Join(lines, "\n")
}

// Unfold joins continuation lines (RFC 5545 section 3.1) and normalizes line
// endings to LF. Indented property lines are dedented rather than joined.
func Unfold(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = Dedent(s)
	s = strings.ReplaceAll(s, "\n ", "")
	return strings.ReplaceAll(s, "\n\t", "")
}

// Blocks returns every BEGIN:VEVENT..END:VEVENT block in s, in order.
func Blocks(s string) []string {
	return eventBlock.FindAllString(s, -1)
}

// UIDGenerator produces fallback UIDs for blocks that carry none.
type UIDGenerator struct {
	Now    func() time.Time
	Random func() string
}

// Next returns a token of the form event-<unix millis>-<9 random chars>.
func (g UIDGenerator) Next() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	random := g.Random
	if random == nil {
		random = randomToken
	}
	return fmt.Sprintf("event-%d-%s", now().UnixMilli(), random())
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

// ParseBlock extracts the fields of one VEVENT block. It never fails: missing
// or malformed properties leave the matching fields at their fallbacks. The
// UID is empty when the block has none; callers that need one generate it.
func ParseBlock(block string) models.ParsedEvent {
	unfolded := Unfold(block)

	ev := models.ParsedEvent{
		Summary:  UntitledSummary,
		RawBlock: block,
	}
	if m := uidLine.FindStringSubmatch(unfolded); m != nil {
		ev.UID = strings.TrimSpace(m[1])
	}
	if m := summaryLine.FindStringSubmatch(unfolded); m != nil {
		if s := strings.TrimSpace(textEscapes.Replace(m[1])); s != "" {
			ev.Summary = s
		}
	}

	if m := dtstartLine.FindStringSubmatch(unfolded); m != nil {
		if d, err := time.Parse("20060102", m[1]); err == nil {
			ev.Date = d.Format(models.DateLayout)
			ev.DisplayDate = DisplayDate(d)
		}
		if m[2] != "" {
			ev.StartTime = m[2] + ":" + m[3]
			ev.DisplayTime = DisplayTime(ev.StartTime)
		} else {
			ev.AllDay = true
			ev.DisplayTime = "All day"
		}
	}
	if m := dtendLine.FindStringSubmatch(unfolded); m != nil && m[2] != "" {
		ev.EndTime = m[2] + ":" + m[3]
	}
	return ev
}

// DisplayTime renders "15:04" as "3:04 PM".
func DisplayTime(hhmm string) string {
	if len(hhmm) != 5 {
		return hhmm
	}
	hour, err := strconv.Atoi(hhmm[:2])
	if err != nil {
		return hhmm
	}
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%s %s", hour, hhmm[3:], suffix)
}

// DisplayDate renders a date as "22nd Jan".
func DisplayDate(d time.Time) string {
	return ordinal(d.Day()) + " " + d.Format("Jan")
}

func ordinal(day int) string {
	if day > 3 && day < 21 {
		return strconv.Itoa(day) + "th"
	}
	switch day % 10 {
	case 1:
		return strconv.Itoa(day) + "st"
	case 2:
		return strconv.Itoa(day) + "nd"
	case 3:
		return strconv.Itoa(day) + "rd"
	}
	return strconv.Itoa(day) + "th"
}

// ParseObjects parses every VEVENT in a store result. Blocks without a UID
// keep an empty one; the href of the enclosing object is carried over.
func ParseObjects(objects []models.RawObject) []models.ParsedEvent {
	events := make([]models.ParsedEvent, 0, len(objects))
	for _, obj := range objects {
		for _, block := range Blocks(Unfold(obj.Data)) {
			ev := ParseBlock(block)
			ev.Href = obj.Href
			events = append(events, ev)
		}
	}
	return events
}
