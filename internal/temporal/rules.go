package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"calassist/internal/models"
)

// WeekdayNames, MonthNames and MonthDayPatterns are shared with the
// classifier, which strips the same phrases out of search terms.
const (
	WeekdayNames = `monday|mon|tuesday|tues|tue|wednesday|wed|thursday|thurs|thur|thu|friday|fri|saturday|sat|sunday|sun`
	MonthNames   = `january|jan|february|feb|march|mar|april|apr|may|june|jun|july|jul|august|aug|september|sep|october|oct|november|nov|december|dec`
	ordinal      = `(?:st|nd|rd|th)`
)

var (
	MonthDayPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{1,2})` + ordinal + `?\s*(?:of\s+)?(` + MonthNames + `)\b`),
		regexp.MustCompile(`\b(` + MonthNames + `)\s*(\d{1,2})` + ordinal + `?\b`),
	}
)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// Rule is one entry of the resolution table. Pattern is the predicate;
// Resolve turns its submatches into a range and may still decline (ok=false),
// in which case evaluation moves on to the next rule.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Resolve func(m []string, ref time.Time) (models.DateRange, bool)
}

// Rules is evaluated top to bottom and the first rule that resolves wins.
// Several patterns are substrings of others ("tomorrow" inside "day after
// tomorrow", "week" ranges before weekday names), so the order is part of
// the contract.
var Rules = []Rule{
	{Name: "day-before-yesterday", Pattern: regexp.MustCompile(`day\s+before\s+yesterday`), Resolve: offset(-2)},
	{Name: "day-after-tomorrow", Pattern: regexp.MustCompile(`day\s+after\s+tomorrow`), Resolve: offset(2)},
	{Name: "tomorrow", Pattern: regexp.MustCompile(`tomorrow`), Resolve: offset(1)},
	{Name: "yesterday", Pattern: regexp.MustCompile(`yesterday`), Resolve: offset(-1)},

	{Name: "days-ago", Pattern: regexp.MustCompile(`\b(\d+)\s*days?\s*ago\b`), Resolve: numericOffset(-1)},
	{Name: "in-days", Pattern: regexp.MustCompile(`\bin\s*(\d+)\s*days?\b`), Resolve: numericOffset(1)},

	// "next week" also catches "next weekend"; "this/the/last weekend" fall
	// through to the default.
	{Name: "this-week", Pattern: regexp.MustCompile(`\b(?:this|the|for\s+the)\s+week\b`), Resolve: week(0)},
	{Name: "next-week", Pattern: regexp.MustCompile(`\bnext\s+week`), Resolve: week(1)},
	{Name: "last-week", Pattern: regexp.MustCompile(`\blast\s+week\b`), Resolve: week(-1)},

	{Name: "modified-weekday", Pattern: regexp.MustCompile(`\b(next|this|last)\s+(` + WeekdayNames + `)\b`), Resolve: modifiedWeekday},
	{Name: "weekday", Pattern: regexp.MustCompile(`\b(` + WeekdayNames + `)\b`), Resolve: bareWeekday},

	{Name: "this-month", Pattern: regexp.MustCompile(`\b(?:this|the|for\s+the)\s+month\b`), Resolve: month(0)},
	{Name: "next-month", Pattern: regexp.MustCompile(`\bnext\s+month\b`), Resolve: month(1)},
	{Name: "last-month", Pattern: regexp.MustCompile(`\blast\s+month\b`), Resolve: month(-1)},

	{Name: "day-month", Pattern: MonthDayPatterns[0], Resolve: monthDate(1, 2)},
	{Name: "month-day", Pattern: MonthDayPatterns[1], Resolve: monthDate(2, 1)},
	{Name: "ordinal", Pattern: regexp.MustCompile(`\b(?:the\s+)?(\d{1,2})` + ordinal + `\b`), Resolve: bareOrdinal},
}

func offset(days int) func([]string, time.Time) (models.DateRange, bool) {
	return func(_ []string, ref time.Time) (models.DateRange, bool) {
		return models.Day(ref.AddDate(0, 0, days)), true
	}
}

// maxOffsetDays keeps "N days ago" / "in N days" inside four-digit years.
const maxOffsetDays = 366 * 10000

func numericOffset(sign int) func([]string, time.Time) (models.DateRange, bool) {
	return func(m []string, ref time.Time) (models.DateRange, bool) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n > maxOffsetDays {
			return models.DateRange{}, false
		}
		d := ref.AddDate(0, 0, sign*n)
		if d.Year() < 1 || d.Year() > 9999 {
			return models.DateRange{}, false
		}
		return models.Day(d), true
	}
}

// mondayOf returns the Monday starting the week that contains t. Sunday is
// the seventh day of its week.
func mondayOf(t time.Time) time.Time {
	fromMonday := int(t.Weekday()) - 1
	if t.Weekday() == time.Sunday {
		fromMonday = 6
	}
	return t.AddDate(0, 0, -fromMonday)
}

func week(shift int) func([]string, time.Time) (models.DateRange, bool) {
	return func(_ []string, ref time.Time) (models.DateRange, bool) {
		start := mondayOf(ref).AddDate(0, 0, 7*shift)
		return models.DateRange{Start: start, End: start.AddDate(0, 0, 6)}, true
	}
}

func modifiedWeekday(m []string, ref time.Time) (models.DateRange, bool) {
	target, ok := weekdays[m[2]]
	if !ok {
		return models.DateRange{}, false
	}
	delta := int(target) - int(ref.Weekday())
	switch m[1] {
	case "next":
		if delta <= 0 {
			delta += 7
		}
	case "last":
		if delta >= 0 {
			delta -= 7
		}
	}
	// "this" keeps the raw delta, which may land earlier in the current week.
	return models.Day(ref.AddDate(0, 0, delta)), true
}

func bareWeekday(m []string, ref time.Time) (models.DateRange, bool) {
	target, ok := weekdays[m[1]]
	if !ok {
		return models.DateRange{}, false
	}
	delta := int(target) - int(ref.Weekday())
	if delta < 0 {
		delta += 7
	}
	return models.Day(ref.AddDate(0, 0, delta)), true
}

func month(shift int) func([]string, time.Time) (models.DateRange, bool) {
	return func(_ []string, ref time.Time) (models.DateRange, bool) {
		start := time.Date(ref.Year(), ref.Month()+time.Month(shift), 1, 0, 0, 0, 0, time.UTC)
		// Day 0 of the following month is the last day of this one.
		end := time.Date(start.Year(), start.Month()+1, 0, 0, 0, 0, 0, time.UTC)
		return models.DateRange{Start: start, End: end}, true
	}
}

func monthDate(dayIdx, monthIdx int) func([]string, time.Time) (models.DateRange, bool) {
	return func(m []string, ref time.Time) (models.DateRange, bool) {
		day, err := strconv.Atoi(m[dayIdx])
		if err != nil {
			return models.DateRange{}, false
		}
		mon, ok := months[strings.ToLower(m[monthIdx])]
		if !ok {
			return models.DateRange{}, false
		}
		d, ok := calendarDate(ref.Year(), mon, day)
		if !ok {
			return models.DateRange{}, false
		}
		return models.Day(d), true
	}
}

func bareOrdinal(m []string, ref time.Time) (models.DateRange, bool) {
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return models.DateRange{}, false
	}
	year, mon := ref.Year(), ref.Month()
	if day < ref.Day() {
		mon++
		if mon > time.December {
			mon = time.January
			year++
		}
	}
	d, ok := calendarDate(year, mon, day)
	if !ok {
		return models.DateRange{}, false
	}
	return models.Day(d), true
}

// calendarDate builds the date and reports false when time.Date had to
// normalize it (e.g. the 31st of a 30-day month).
func calendarDate(year int, mon time.Month, day int) (time.Time, bool) {
	if day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, mon, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != mon {
		return time.Time{}, false
	}
	return d, true
}
