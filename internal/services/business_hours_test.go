package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/platformbuilds/escalate-core/internal/models"
)

// 2026-03-02 is a Monday, 2026-03-07 a Saturday.
var (
	mondayMorning   = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	mondayMidday    = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	mondayEvening   = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	saturdayMidday  = time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	saturdayEvening = time.Date(2026, 3, 7, 19, 0, 0, 0, time.UTC)
)

func nineToFiveTeam() *models.TeamAssignment {
	return &models.TeamAssignment{
		TeamID: "team-a",
		BusinessHours: &models.BusinessHours{
			Timezone: "UTC",
			Weekday:  &models.HoursWindow{Start: 900, End: 1700},
		},
	}
}

func TestEvaluateWeekdayWindow(t *testing.T) {
	e := NewBusinessHoursEvaluator()
	team := nineToFiveTeam()

	isBH, isWeekend := e.Evaluate(team, mondayMidday)
	assert.True(t, isBH)
	assert.False(t, isWeekend)

	isBH, _ = e.Evaluate(team, mondayMorning)
	assert.False(t, isBH)

	isBH, _ = e.Evaluate(team, mondayEvening)
	assert.False(t, isBH)
}

func TestEvaluateWindowBoundsInclusive(t *testing.T) {
	e := NewBusinessHoursEvaluator()
	team := nineToFiveTeam()

	isBH, _ := e.Evaluate(team, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	assert.True(t, isBH)
	isBH, _ = e.Evaluate(team, time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC))
	assert.True(t, isBH)
	isBH, _ = e.Evaluate(team, time.Date(2026, 3, 2, 17, 1, 0, 0, time.UTC))
	assert.False(t, isBH)
}

func TestEvaluateWeekendDisabled(t *testing.T) {
	e := NewBusinessHoursEvaluator()
	team := nineToFiveTeam() // no weekend window

	isBH, isWeekend := e.Evaluate(team, saturdayMidday)
	assert.False(t, isBH)
	assert.True(t, isWeekend)
}

func TestEvaluateWeekendWindow(t *testing.T) {
	e := NewBusinessHoursEvaluator()
	team := nineToFiveTeam()
	team.BusinessHours.Weekend = &models.HoursWindow{Start: 1000, End: 1400}

	isBH, isWeekend := e.Evaluate(team, saturdayMidday)
	assert.True(t, isBH)
	assert.True(t, isWeekend)

	isBH, _ = e.Evaluate(team, saturdayEvening)
	assert.False(t, isBH)
}

func TestEvaluateTimezone(t *testing.T) {
	e := NewBusinessHoursEvaluator()
	team := nineToFiveTeam()
	team.BusinessHours.Timezone = "America/New_York"

	// 12:00 UTC on Monday is 07:00 in New York, before the window.
	isBH, _ := e.Evaluate(team, mondayMidday)
	assert.False(t, isBH)

	// 15:00 UTC is 10:00 in New York, inside the window.
	isBH, _ = e.Evaluate(team, time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC))
	assert.True(t, isBH)
}

func TestEvaluateNilTeamUsesDefaults(t *testing.T) {
	e := NewBusinessHoursEvaluator()

	// Defaults: weekdays all day, no weekends.
	isBH, isWeekend := e.Evaluate(nil, mondayEvening)
	assert.True(t, isBH)
	assert.False(t, isWeekend)

	isBH, isWeekend = e.Evaluate(nil, saturdayMidday)
	assert.False(t, isBH)
	assert.True(t, isWeekend)
}

func TestNextBusinessHoursStart(t *testing.T) {
	e := NewBusinessHoursEvaluator()
	team := nineToFiveTeam()

	// Saturday midday jumps to Monday at the window start.
	next := e.NextBusinessHoursStart(team, saturdayMidday)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), next)

	// Before the window on a weekday lands at that day's start.
	next = e.NextBusinessHoursStart(team, mondayMorning)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), next)

	// After the window on a weekday rolls to the next day.
	next = e.NextBusinessHoursStart(team, mondayEvening)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), next)
}

func TestNextBusinessHoursStartWeekendWindow(t *testing.T) {
	e := NewBusinessHoursEvaluator()
	team := nineToFiveTeam()
	team.BusinessHours.Weekend = &models.HoursWindow{Start: 1000, End: 1400}

	// Saturday evening reaches Sunday's weekend window, not Monday.
	next := e.NextBusinessHoursStart(team, saturdayEvening)
	assert.Equal(t, time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC), next)
}
