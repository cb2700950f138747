package models

// ParsedEvent is the structured view of a single VEVENT block.
// It is independent of the store the block came from.
type ParsedEvent struct {
	UID         string `json:"uid"`                // iCalendar UID, or a generated token when the block had none
	Summary     string `json:"summary"`            // SUMMARY, "Untitled Event" when missing
	Date        string `json:"date,omitempty"`     // DTSTART date as YYYY-MM-DD
	StartTime   string `json:"startTime"`          // "HH:MM", empty for all-day events
	EndTime     string `json:"endTime"`            // "HH:MM", empty for all-day events or missing DTEND
	AllDay      bool   `json:"allDay"`             // DTSTART carried no time component
	DisplayTime string `json:"displayTime"`        // "3:04 PM" or "All day"
	DisplayDate string `json:"displayDate"`        // "22nd Jan"
	Href        string `json:"href,omitempty"`     // store path of the object the block was read from
	Source      string `json:"source,omitempty"`   // name of the store the event came from
	RawBlock    string `json:"rawBlock,omitempty"` // the BEGIN:VEVENT..END:VEVENT text
}

// SplitEvent is one record produced by the splitter: the parsed fields plus a
// standalone calendar document that can be stored on its own.
type SplitEvent struct {
	ParsedEvent
	CalendarDocument string `json:"calendarDocument"`
	// PassThrough is set when the input held no VEVENT block and was returned as is.
	PassThrough bool `json:"passThrough,omitempty"`
}

// RawObject is a calendar object as returned by a store query.
type RawObject struct {
	Href string // path of the object on the store, may be empty
	Data string // calendar markup holding one or more VEVENT blocks
}
