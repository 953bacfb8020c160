package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/weave/pkg/models"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(n int) time.Time {
	return base.Add(time.Duration(n) * time.Hour)
}

func stages(as []Assignment) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Stage
	}
	return out
}

func TestAssign(t *testing.T) {
	tests := []struct {
		name        string
		events      []Event
		transitions []models.Transition
		want        []string
	}{
		{
			name:   "events between transitions",
			events: []Event{{ID: "c5", At: at(5)}, {ID: "c1", At: at(1)}, {ID: "c3", At: at(3)}},
			transitions: []models.Transition{
				{To: "Done", At: at(4)},
				{To: "In Progress", At: at(2)},
			},
			want: []string{"initial", "In Progress", "Done"},
		},
		{
			name:   "no transitions keeps initial stage",
			events: []Event{{ID: "a", At: at(1)}, {ID: "b", At: at(9)}},
			want:   []string{"initial", "initial"},
		},
		{
			name:        "transition at event time applies",
			events:      []Event{{ID: "a", At: at(2)}},
			transitions: []models.Transition{{To: "In Progress", At: at(2)}},
			want:        []string{"In Progress"},
		},
		{
			name:   "tied transitions resolve by input order",
			events: []Event{{ID: "a", At: at(3)}},
			transitions: []models.Transition{
				{To: "Review", At: at(2)},
				{To: "Blocked", At: at(2)},
			},
			want: []string{"Blocked"},
		},
		{
			name:   "several transitions consumed by one event",
			events: []Event{{ID: "a", At: at(1)}, {ID: "b", At: at(10)}},
			transitions: []models.Transition{
				{To: "In Progress", At: at(2)},
				{To: "Review", At: at(3)},
				{To: "Done", At: at(4)},
			},
			want: []string{"initial", "Done"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assign(tt.events, tt.transitions, "initial")
			assert.Equal(t, tt.want, stages(got))
		})
	}
}

func TestAssignDoesNotReorderInput(t *testing.T) {
	events := []Event{{ID: "late", At: at(5)}, {ID: "early", At: at(1)}}
	got := Assign(events, nil, "To Do")

	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].EventID)
	assert.Equal(t, "late", events[0].ID)
}

func TestAssignEmpty(t *testing.T) {
	assert.Nil(t, Assign(nil, []models.Transition{{To: "Done", At: at(1)}}, "To Do"))
}

func TestStageAt(t *testing.T) {
	trs := []models.Transition{{To: "In Progress", At: at(2)}}
	assert.Equal(t, "To Do", StageAt(trs, "To Do", at(1)))
	assert.Equal(t, "In Progress", StageAt(trs, "To Do", at(2)))
}

func TestStatusTransitions(t *testing.T) {
	entries := []models.ChangelogEntry{
		{Created: at(1), Items: []models.ChangelogItem{
			{Field: "assignee", From: "", To: "Ada"},
			{Field: "status", From: "To Do", To: "In Progress"},
		}},
		{Created: at(2), Items: []models.ChangelogItem{{Field: "priority", From: "Low", To: "High"}}},
		{Created: at(3), Items: []models.ChangelogItem{{Field: "status", From: "In Progress", To: "Done"}}},
	}

	got := StatusTransitions(entries)
	assert.Equal(t, []models.Transition{
		{From: "To Do", To: "In Progress", At: at(1)},
		{From: "In Progress", To: "Done", At: at(3)},
	}, got)
}
