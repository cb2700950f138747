package ics

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calassist/internal/models"
)

const twoEvents = `BEGIN:VCALENDAR\nVERSION:2.0\nPRODID:-//model//EN\nBEGIN:VEVENT\nUID:lunch-1\nSUMMARY:Lunch with Bob\nDTSTART:20260122T130000\nDTEND:20260122T140000\nEND:VEVENT\nBEGIN:VEVENT\nSUMMARY:Team offsite\nDTSTART;VALUE=DATE:20260123\nEND:VEVENT\nEND:VCALENDAR`

func fixedSplitter() *Splitter {
	n := 0
	s := NewSplitter("-//test//EN")
	s.UIDs = UIDGenerator{
		Now: func() time.Time { return time.UnixMilli(1768900000000) },
		Random: func() string {
			n++
			return fmt.Sprintf("rand%05d", n)
		},
	}
	return s
}

func TestSplit_LiteralNewlinesAndFields(t *testing.T) {
	out := fixedSplitter().Split(twoEvents)
	require.Len(t, out, 2)

	lunch := out[0]
	assert.Equal(t, "lunch-1", lunch.UID)
	assert.Equal(t, "Lunch with Bob", lunch.Summary)
	assert.Equal(t, "2026-01-22", lunch.Date)
	assert.Equal(t, "13:00", lunch.StartTime)
	assert.Equal(t, "14:00", lunch.EndTime)
	assert.Equal(t, "1:00 PM", lunch.DisplayTime)
	assert.Equal(t, "22nd Jan", lunch.DisplayDate)
	assert.False(t, lunch.AllDay)

	offsite := out[1]
	assert.Equal(t, "event-1768900000000-rand00001", offsite.UID)
	assert.True(t, offsite.AllDay)
	assert.Empty(t, offsite.StartTime)
	assert.Empty(t, offsite.EndTime)
	assert.Equal(t, "All day", offsite.DisplayTime)
	assert.Equal(t, "23rd Jan", offsite.DisplayDate)
	assert.Contains(t, offsite.CalendarDocument, "UID:event-1768900000000-rand00001")
}

func TestSplit_Envelope(t *testing.T) {
	out := fixedSplitter().Split(twoEvents)
	doc := out[0].CalendarDocument

	assert.True(t, strings.HasPrefix(doc, "BEGIN:VCALENDAR\nVERSION:2.0\nPRODID:-//test//EN\nCALSCALE:GREGORIAN\nBEGIN:VEVENT"))
	assert.True(t, strings.HasSuffix(doc, "END:VEVENT\nEND:VCALENDAR"))
	assert.Equal(t, 1, strings.Count(doc, "BEGIN:VEVENT"))
	assert.NotContains(t, doc, `\n`)
	assert.NotContains(t, doc, "Team offsite")
}

func TestSplit_CRLF(t *testing.T) {
	in := "BEGIN:VEVENT\r\nUID:a\r\nSUMMARY:Gym\r\nDTSTART:20260301T070000\r\nEND:VEVENT\r"
	out := fixedSplitter().Split(in)
	require.Len(t, out, 1)
	assert.Equal(t, "Gym", out[0].Summary)
	assert.Equal(t, "07:00", out[0].StartTime)
	assert.NotContains(t, out[0].CalendarDocument, "\r")
}

func TestSplit_Idempotent(t *testing.T) {
	s := fixedSplitter()
	for _, first := range s.Split(twoEvents) {
		again := s.Split(first.CalendarDocument)
		require.Len(t, again, 1)
		assert.Equal(t, first.ParsedEvent, again[0].ParsedEvent)
		assert.Equal(t, first.CalendarDocument, again[0].CalendarDocument)
	}
}

func TestSplit_GeneratedUIDsAreUnique(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("BEGIN:VEVENT\nSUMMARY:Block\nDTSTART:20260301\nEND:VEVENT\n")
	}
	// Default generator: same millisecond, random suffix.
	out := NewSplitter("").Split(b.String())
	require.Len(t, out, 20)

	seen := map[string]bool{}
	for _, ev := range out {
		assert.Regexp(t, `^event-\d+-[0-9a-f]{9}$`, ev.UID)
		assert.False(t, seen[ev.UID], ev.UID)
		seen[ev.UID] = true
	}
}

func TestSplit_GeneratedUIDAvoidsExplicitOnes(t *testing.T) {
	s := NewSplitter("")
	calls := 0
	s.UIDs = UIDGenerator{
		Now: func() time.Time { return time.UnixMilli(1) },
		Random: func() string {
			calls++
			if calls == 1 {
				return "taken0000"
			}
			return "fresh0000"
		},
	}
	out := s.Split("BEGIN:VEVENT\nUID:event-1-taken0000\nEND:VEVENT\nBEGIN:VEVENT\nSUMMARY:x\nEND:VEVENT")
	require.Len(t, out, 2)
	assert.Equal(t, "event-1-taken0000", out[0].UID)
	assert.Equal(t, "event-1-fresh0000", out[1].UID)
}

func TestSplit_GeneratorStuckOnOneValue(t *testing.T) {
	s := NewSplitter("")
	s.UIDs = UIDGenerator{
		Now:    func() time.Time { return time.UnixMilli(1) },
		Random: func() string { return "same00000" },
	}
	out := s.Split(strings.Repeat("BEGIN:VEVENT\nSUMMARY:x\nEND:VEVENT\n", 3))
	require.Len(t, out, 3)
	assert.Equal(t, "event-1-same00000", out[0].UID)
	assert.Equal(t, "event-1-same00000-2", out[1].UID)
	assert.Equal(t, "event-1-same00000-3", out[2].UID)
}

func TestSplit_IndentedMarkup(t *testing.T) {
	in := "BEGIN:VCALENDAR\n  BEGIN:VEVENT\n  UID:abc\n  SUMMARY:Dentist and\n  cleaning\n" +
		"\tDTSTART:20260120T150000\n  DTEND:20260120T160000\n  END:VEVENT\nEND:VCALENDAR"
	out := fixedSplitter().Split(in)
	require.Len(t, out, 1)

	ev := out[0]
	assert.Equal(t, "abc", ev.UID)
	assert.Equal(t, "Dentist and cleaning", ev.Summary)
	assert.Equal(t, "2026-01-20", ev.Date)
	assert.Equal(t, "15:00", ev.StartTime)
	assert.Equal(t, "16:00", ev.EndTime)
	assert.Equal(t, 1, strings.Count(ev.CalendarDocument, "UID:"))
	assert.Contains(t, ev.CalendarDocument, "\nUID:abc\nSUMMARY:Dentist and\n")

	cal, err := Decode(ev.CalendarDocument, time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "abc", EventUID(cal))
}

func TestSplit_PassThrough(t *testing.T) {
	out := NewSplitter("").Split(`Sorry, I could not\nbuild that event.`)
	require.Len(t, out, 1)
	assert.True(t, out[0].PassThrough)
	assert.Empty(t, out[0].UID)
	assert.Equal(t, "Sorry, I could not\nbuild that event.", out[0].CalendarDocument)
}

func TestParseBlock_Fallbacks(t *testing.T) {
	ev := ParseBlock("BEGIN:VEVENT\nDTSTART:2026\nEND:VEVENT")
	assert.Empty(t, ev.UID)
	assert.Equal(t, UntitledSummary, ev.Summary)
	assert.Empty(t, ev.Date)
	assert.Empty(t, ev.DisplayTime)

	ev = ParseBlock("BEGIN:VEVENT\nSUMMARY:   \nEND:VEVENT")
	assert.Equal(t, UntitledSummary, ev.Summary)
}

func TestParseBlock_ParamsFoldingAndEscapes(t *testing.T) {
	block := "BEGIN:VEVENT\r\n" +
		"UID:abc@example.com\r\n" +
		"SUMMARY;LANGUAGE=en:Coffee\\, cake \\; a very long title that the\r\n" +
		"  server folded\r\n" +
		"DTSTART;TZID=Europe/London:20261105T091500\r\n" +
		"DESCRIPTION:UID:not-this-one\r\n" +
		"END:VEVENT"
	ev := ParseBlock(block)
	assert.Equal(t, "abc@example.com", ev.UID)
	assert.Equal(t, "Coffee, cake ; a very long title that the server folded", ev.Summary)
	assert.Equal(t, "2026-11-05", ev.Date)
	assert.Equal(t, "09:15", ev.StartTime)
	assert.Equal(t, "9:15 AM", ev.DisplayTime)
	assert.Equal(t, "5th Nov", ev.DisplayDate)
}

func TestDisplayHelpers(t *testing.T) {
	assert.Equal(t, "12:00 AM", DisplayTime("00:00"))
	assert.Equal(t, "12:30 PM", DisplayTime("12:30"))
	assert.Equal(t, "11:59 PM", DisplayTime("23:59"))

	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	assert.Equal(t, "1st Mar", DisplayDate(day(1)))
	assert.Equal(t, "2nd Mar", DisplayDate(day(2)))
	assert.Equal(t, "3rd Mar", DisplayDate(day(3)))
	assert.Equal(t, "11th Mar", DisplayDate(day(11)))
	assert.Equal(t, "12th Mar", DisplayDate(day(12)))
	assert.Equal(t, "13th Mar", DisplayDate(day(13)))
	assert.Equal(t, "21st Mar", DisplayDate(day(21)))
	assert.Equal(t, "31st Mar", DisplayDate(day(31)))
}

func TestRender_RoundTrip(t *testing.T) {
	stamp := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)
	events := []models.ParsedEvent{
		{UID: "r1", Summary: "Lunch, with Bob; upstairs", Date: "2026-01-22", StartTime: "13:00", EndTime: "14:30"},
		{UID: "r2", Summary: "Holiday", Date: "2026-12-25", AllDay: true},
	}

	for _, want := range events {
		doc, err := Render(want, "", stamp)
		require.NoError(t, err)

		blocks := Blocks(Unfold(doc))
		require.Len(t, blocks, 1)
		got := ParseBlock(blocks[0])
		assert.Equal(t, want.UID, got.UID)
		assert.Equal(t, want.Summary, got.Summary)
		assert.Equal(t, want.Date, got.Date)
		assert.Equal(t, want.StartTime, got.StartTime)
		assert.Equal(t, want.EndTime, got.EndTime)
		assert.Equal(t, want.AllDay, got.AllDay)

		// Rendering what was parsed gives the same fields again.
		doc2, err := Render(got, "", stamp)
		require.NoError(t, err)
		again := ParseBlock(Blocks(Unfold(doc2))[0])
		got.RawBlock, again.RawBlock = "", ""
		assert.Equal(t, got, again)
	}
}

func TestRender_RequiresDate(t *testing.T) {
	_, err := Render(models.ParsedEvent{UID: "x", Summary: "x"}, "", time.Now())
	assert.Error(t, err)
}

func TestDecode_SplitDocument(t *testing.T) {
	out := fixedSplitter().Split(twoEvents)
	stamp := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)

	cal, err := Decode(out[1].CalendarDocument, stamp)
	require.NoError(t, err)
	assert.Equal(t, out[1].UID, EventUID(cal))

	events := cal.Events()
	require.Len(t, events, 1)
	assert.NotNil(t, events[0].Props.Get(ical.PropDateTimeStamp))

	_, err = Decode("not a calendar", stamp)
	assert.Error(t, err)
}

func TestParseObjects(t *testing.T) {
	events := ParseObjects([]models.RawObject{
		{Href: "/cal/a.ics", Data: "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nUID:a\r\nSUMMARY:A\r\nDTSTART:20260120T080000Z\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"},
		{Href: "/cal/b.ics", Data: "BEGIN:VEVENT\nUID:b\nSUMMARY:B\nEND:VEVENT\nBEGIN:VEVENT\nUID:b\nSUMMARY:B moved\nEND:VEVENT"},
		{Href: "/cal/empty.ics", Data: "BEGIN:VCALENDAR\nEND:VCALENDAR"},
	})
	require.Len(t, events, 3)
	assert.Equal(t, "/cal/a.ics", events[0].Href)
	assert.Equal(t, "08:00", events[0].StartTime)
	assert.Equal(t, "B moved", events[2].Summary)
	assert.Equal(t, "/cal/b.ics", events[2].Href)
}
