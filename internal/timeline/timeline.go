// Package timeline assigns a workflow stage to each event of an issue by
// merging the event stream with the issue's status transitions.
package timeline

import (
	"sort"
	"time"

	"github.com/danielolaszy/weave/pkg/models"
)

// DefaultInitialStage is the stage of an issue before its first transition.
const DefaultInitialStage = "To Do"

// Event is a timestamped unit of work attributed to an issue.
type Event struct {
	ID string
	At time.Time
}

// Assignment is the stage an event was produced in.
type Assignment struct {
	EventID string
	At      time.Time
	Stage   string
}

// Assign returns one assignment per event, in ascending event time.
// A transition applies to an event when it happened at or before the
// event. Ties keep input order so repeated runs agree.
func Assign(events []Event, transitions []models.Transition, initial string) []Assignment {
	if len(events) == 0 {
		return nil
	}

	evs := make([]Event, len(events))
	copy(evs, events)
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].At.Before(evs[j].At) })

	trs := make([]models.Transition, len(transitions))
	copy(trs, transitions)
	sort.SliceStable(trs, func(i, j int) bool { return trs[i].At.Before(trs[j].At) })

	out := make([]Assignment, 0, len(evs))
	stage, next := initial, 0
	for _, e := range evs {
		for next < len(trs) && !trs[next].At.After(e.At) {
			stage = trs[next].To
			next++
		}
		out = append(out, Assignment{EventID: e.ID, At: e.At, Stage: stage})
	}
	return out
}

// StageAt returns the stage in effect at t.
func StageAt(transitions []models.Transition, initial string, t time.Time) string {
	a := Assign([]Event{{At: t}}, transitions, initial)
	return a[0].Stage
}

// StatusTransitions extracts status changes from a changelog.
func StatusTransitions(entries []models.ChangelogEntry) []models.Transition {
	var out []models.Transition
	for _, e := range entries {
		for _, item := range e.Items {
			if item.Field != "status" {
				continue
			}
			out = append(out, models.Transition{From: item.From, To: item.To, At: e.Created})
		}
	}
	return out
}
