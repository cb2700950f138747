package ics

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"calassist/internal/models"
)

// NewCalendar returns an empty VCALENDAR carrying the standard headers.
func NewCalendar(prodID string) *ical.Calendar {
	if prodID == "" {
		prodID = DefaultProdID
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	return cal
}

// ToComponent builds a VEVENT for ev. Times are written as floating local
// times, the same way ParseBlock reads them.
func ToComponent(ev models.ParsedEvent, stamp time.Time) (*ical.Component, error) {
	day, err := time.Parse(models.DateLayout, ev.Date)
	if err != nil {
		return nil, fmt.Errorf("event %q has no valid date: %w", ev.UID, err)
	}

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, ev.UID)
	vevent.Props.SetText(ical.PropSummary, ev.Summary)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	dtstart := ical.NewProp(ical.PropDateTimeStart)
	if ev.StartTime == "" {
		dtstart.SetDate(day)
	} else {
		dtstart.Value = day.Format("20060102") + "T" + compact(ev.StartTime)
	}
	vevent.Props.Set(dtstart)

	if ev.StartTime != "" && ev.EndTime != "" {
		dtend := ical.NewProp(ical.PropDateTimeEnd)
		dtend.Value = day.Format("20060102") + "T" + compact(ev.EndTime)
		vevent.Props.Set(dtend)
	}
	return vevent.Component, nil
}

func compact(hhmm string) string {
	return strings.ReplaceAll(hhmm, ":", "") + "00"
}

// Render encodes ev as a standalone calendar document.
func Render(ev models.ParsedEvent, prodID string, stamp time.Time) (string, error) {
	vevent, err := ToComponent(ev, stamp)
	if err != nil {
		return "", err
	}
	cal := NewCalendar(prodID)
	cal.Children = append(cal.Children, vevent)
	return Encode(cal)
}

// Encode serializes a calendar.
func Encode(cal *ical.Calendar) (string, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

// Decode parses a calendar document so it can be sent to a store. Events
// without a DTSTAMP get stamp, which stores require.
func Decode(doc string, stamp time.Time) (*ical.Calendar, error) {
	doc = strings.ReplaceAll(strings.TrimSpace(doc), "\r\n", "\n")
	doc = strings.ReplaceAll(doc, "\n", "\r\n") + "\r\n"

	cal, err := ical.NewDecoder(strings.NewReader(doc)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar document: %w", err)
	}
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		if child.Props.Get(ical.PropDateTimeStamp) == nil {
			child.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		}
	}
	return cal, nil
}

// EventUID returns the UID of the first VEVENT in cal.
func EventUID(cal *ical.Calendar) string {
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		if p := child.Props.Get(ical.PropUID); p != nil {
			return p.Value
		}
	}
	return ""
}
