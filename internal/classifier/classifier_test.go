package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calassist/internal/models"
)

// 2026-01-20 is a Tuesday.
var ref = time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

func TestClassify_Requests(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		action     models.Action
		deleteAll  bool
		searchTerm string
		searchTime string
		start, end string
	}{
		{
			name: "targeted delete strips date words", text: "cancel my lunch tomorrow",
			action: models.ActionDelete, searchTerm: "lunch", start: "2026-01-21", end: "2026-01-21",
		},
		{
			name: "delete everything on the whole calendar", text: "clear my whole calendar",
			action: models.ActionDelete, deleteAll: true, start: "2026-01-20", end: "2026-01-20",
		},
		{
			name: "delete all events", text: "delete all events on friday",
			action: models.ActionDelete, deleteAll: true, start: "2026-01-23", end: "2026-01-23",
		},
		{
			name: "everything", text: "remove everything tomorrow",
			action: models.ActionDelete, deleteAll: true, start: "2026-01-21", end: "2026-01-21",
		},
		{
			name: "delete wins over query keyword", text: "cancel my calendar meeting",
			action: models.ActionDelete, searchTerm: "calendar meeting", start: "2026-01-20", end: "2026-01-20",
		},
		{
			name: "time and month date", text: "cancel the dentist appointment at 3:30pm on march 15",
			action: models.ActionDelete, searchTerm: "dentist appointment", searchTime: "15:30",
			start: "2026-03-15", end: "2026-03-15",
		},
		{
			name: "modified weekday", text: "Cancel my dentist appointment next Tuesday",
			action: models.ActionDelete, searchTerm: "dentist appointment", start: "2026-01-27", end: "2026-01-27",
		},
		{
			name: "numeric offset", text: "cancel standup in 3 days",
			action: models.ActionDelete, searchTerm: "standup", start: "2026-01-23", end: "2026-01-23",
		},
		{
			name: "query week", text: "what's on next week",
			action: models.ActionQuery, start: "2026-01-26", end: "2026-02-01",
		},
		{
			name: "query schedule", text: "show me my schedule",
			action: models.ActionQuery, start: "2026-01-20", end: "2026-01-20",
		},
		{
			name: "add keeps no search fields", text: "lunch with bob at 1pm tomorrow",
			action: models.ActionAdd, start: "2026-01-21", end: "2026-01-21",
		},
		{
			name: "bridge metadata is ignored", text: "Cancel lunch tomorrow [Current local time: 2026-01-20 10:00]",
			action: models.ActionDelete, searchTerm: "lunch", start: "2026-01-21", end: "2026-01-21",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.text, ref)
			assert.Equal(t, tt.action, got.Action)
			assert.Equal(t, tt.deleteAll, got.DeleteAll)
			assert.Equal(t, tt.searchTerm, got.SearchTerm)
			assert.Equal(t, tt.searchTime, got.SearchTime)
			assert.Equal(t, tt.start, got.StartDate)
			assert.Equal(t, tt.end, got.EndDate)
		})
	}
}

func TestClassify_OrdinalRollsForward(t *testing.T) {
	got := Classify("cancel the 22nd review", time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-02-22", got.StartDate)
	assert.Equal(t, "review", got.SearchTerm)
	assert.Equal(t, "ordinal", got.DateRule)
	assert.True(t, got.DateResolved)
}

func TestClassify_UnresolvedDateIsToday(t *testing.T) {
	got := Classify("remind me about the thing", ref)
	assert.Equal(t, models.ActionAdd, got.Action)
	assert.Equal(t, "2026-01-20", got.StartDate)
	assert.Equal(t, "2026-01-20", got.EndDate)
	assert.False(t, got.DateResolved)
}

func TestClassifyAction_ReportsTimeForAnyAction(t *testing.T) {
	c := ClassifyAction("lunch with bob at 1pm tomorrow")
	assert.Equal(t, models.ActionAdd, c.Action)
	assert.Equal(t, "13:00", c.SearchTime)
	assert.Empty(t, c.SearchTerm)

	// The combined result only carries it for targeted deletes.
	assert.Empty(t, Classify("lunch with bob at 1pm tomorrow", ref).SearchTime)
	assert.Empty(t, Classify("cancel everything at 1pm", ref).SearchTime)
}

func TestClassifyAction_DeleteAllDetection(t *testing.T) {
	for _, text := range []string{
		"clear my whole calendar",
		"wipe my day",
		"cancel all",
		"drop every meeting tomorrow",
		"delete each appointment on monday",
		"remove the entire schedule",
		"delete everything",
	} {
		c := ClassifyAction(text)
		assert.Equal(t, models.ActionDelete, c.Action, text)
		assert.True(t, c.DeleteAll, text)
		assert.Empty(t, c.SearchTerm, text)
	}

	c := ClassifyAction("delete the gym session")
	assert.False(t, c.DeleteAll)
	assert.Equal(t, "gym session", c.SearchTerm)
}

func TestClassifyAction_QueryKeywords(t *testing.T) {
	for _, text := range []string{
		"what do i have friday", "am i busy", "am i free at 3pm", "list my events",
		"check thursday", "give me a summary", "tell me about tomorrow", "whats on",
	} {
		assert.Equal(t, models.ActionQuery, ClassifyAction(text).Action, text)
	}
}

func TestExtractSearchTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"at 3pm", "15:00"},
		{"at 12pm", "12:00"},
		{"at 12am", "00:00"},
		{"9:45 am standup", "09:45"},
		{"11:05PM", "23:05"},
		{"1 pm", "13:00"},
		{"at 10", ""},
		{"13pm", ""},
		{"delete 0am call at 3pm", "15:00"},
		{"9:75am or 10:15am", "10:15"},
		{"no time here", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractSearchTime(tt.in), tt.in)
	}
}

func TestExtractSearchTerm_CanBeEmpty(t *testing.T) {
	assert.Equal(t, "", ExtractSearchTerm("cancel tomorrow at 3pm"))
	assert.Equal(t, "", ExtractSearchTerm("delete the 5th"))
	assert.Equal(t, "team sync", ExtractSearchTerm("remove team sync on jan 9th."))
}

func TestClassifyRequest(t *testing.T) {
	got, err := ClassifyRequest(Request{Text: "cancel my lunch tomorrow", ReferenceDate: "2026-01-20"})
	require.NoError(t, err)
	assert.Equal(t, "2026-01-21", got.StartDate)
	assert.Equal(t, "lunch", got.SearchTerm)

	_, err = ClassifyRequest(Request{Text: "anything", ReferenceDate: "tomorrow"})
	assert.Error(t, err)
}
