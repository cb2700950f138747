package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"calassist/internal/models"
)

func day() []models.ParsedEvent {
	return []models.ParsedEvent{
		{UID: "1", Summary: "Test Event", StartTime: "09:00"},
		{UID: "2", Summary: "Dentist", StartTime: "15:30"},
		{UID: "3", Summary: "Lunch with Bob", StartTime: "12:00"},
		{UID: "4", Summary: "Team offsite", AllDay: true},
		{UID: "5", Summary: "Dentist follow-up", StartTime: "09:00"},
	}
}

func uids(events []models.ParsedEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.UID)
	}
	return out
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		criteria models.MatchCriteria
		want     []string
	}{
		{"no criteria returns all", models.MatchCriteria{}, []string{"1", "2", "3", "4", "5"}},
		{"term is a substring of the title", models.MatchCriteria{SearchTerm: "test"}, []string{"1"}},
		{"title is a substring of the term", models.MatchCriteria{SearchTerm: "delete test event meeting"}, []string{"1"}},
		{"term matches several in order", models.MatchCriteria{SearchTerm: "dentist"}, []string{"2", "5"}},
		{"case is ignored", models.MatchCriteria{SearchTerm: "LUNCH"}, []string{"3"}},
		{"time alone does not filter", models.MatchCriteria{SearchTime: "09:00"}, []string{"1", "2", "3", "4", "5"}},
		{"term and time must both hold", models.MatchCriteria{SearchTerm: "dentist", SearchTime: "09:00"}, []string{"5"}},
		{"term and time with no overlap", models.MatchCriteria{SearchTerm: "lunch", SearchTime: "09:00"}, []string{}},
		{"all-day events never match a time", models.MatchCriteria{SearchTerm: "offsite", SearchTime: "00:00"}, []string{}},
		{"nothing matches", models.MatchCriteria{SearchTerm: "yoga"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uids(Match(day(), tt.criteria)))
		})
	}
}

func TestMatch_TimeOnlyKeepsWholeDay(t *testing.T) {
	res := Result(day(), models.MatchCriteria{SearchTime: "15:30"})
	assert.Equal(t, 5, res.MatchCount)
	assert.Equal(t, res.AllEventsOnDay, res.MatchCount)

	untitled := []models.ParsedEvent{{UID: "u", StartTime: "08:00"}}
	assert.Equal(t, []string{"u"}, uids(Match(untitled, models.MatchCriteria{SearchTime: "23:00"})))
}

func TestMatch_EmptyInput(t *testing.T) {
	got := Match(nil, models.MatchCriteria{SearchTerm: "x"})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestTermMatches(t *testing.T) {
	assert.True(t, TermMatches("Test Event", "test"))
	assert.True(t, TermMatches("Test Event", "delete test event meeting"))
	assert.True(t, TermMatches("anything", ""))
	assert.False(t, TermMatches("", "lunch"))
	assert.False(t, TermMatches("Standup", "retro"))
}

func TestResult_Counts(t *testing.T) {
	res := Result(day(), models.MatchCriteria{SearchTerm: "dentist"})
	assert.Equal(t, 2, res.MatchCount)
	assert.Equal(t, 5, res.AllEventsOnDay)
	assert.Len(t, res.Matches, 2)
	assert.Empty(t, res.Error)
}
