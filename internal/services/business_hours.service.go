package services

import (
	"time"

	"github.com/platformbuilds/escalate-core/internal/models"
)

// BusinessHoursEvaluator decides whether a team is on duty at a point in
// time and when the next on-duty window opens.
type BusinessHoursEvaluator struct{}

func NewBusinessHoursEvaluator() *BusinessHoursEvaluator {
	return &BusinessHoursEvaluator{}
}

// defaultBusinessHours applies when an alert has no team assignment:
// weekdays only, all day, UTC.
func defaultBusinessHours() *models.BusinessHours {
	return &models.BusinessHours{
		Timezone: "UTC",
		Weekday:  &models.HoursWindow{Start: 0, End: 2359},
	}
}

func businessHoursFor(team *models.TeamAssignment) *models.BusinessHours {
	if team == nil || team.BusinessHours == nil {
		return defaultBusinessHours()
	}
	return team.BusinessHours
}

func locationFor(hours *models.BusinessHours) *time.Location {
	if hours.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(hours.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func isWeekendDay(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

// Evaluate returns (isBusinessHours, isWeekend) for the team at the
// given instant. The time-of-day comparison uses inclusive HHMM bounds
// in the team's local timezone; a missing window means no business
// hours.
func (e *BusinessHoursEvaluator) Evaluate(team *models.TeamAssignment, now time.Time) (bool, bool) {
	hours := businessHoursFor(team)
	local := now.In(locationFor(hours))

	isWeekend := isWeekendDay(local.Weekday())
	window := hours.Weekday
	if isWeekend {
		if hours.Weekend == nil {
			return false, true
		}
		window = hours.Weekend
	}
	if window == nil {
		return false, isWeekend
	}

	hhmm := local.Hour()*100 + local.Minute()
	return hhmm >= window.Start && hhmm <= window.End, isWeekend
}

// NextBusinessHoursStart finds the next instant the team's schedule
// permits escalation, anchored at that day's window start. The search
// walks forward one day at a time (up to two weeks, which covers any
// weekend/weekday combination) and honors the team's configured window
// start rather than assuming a fixed hour.
func (e *BusinessHoursEvaluator) NextBusinessHoursStart(team *models.TeamAssignment, now time.Time) time.Time {
	hours := businessHoursFor(team)
	loc := locationFor(hours)
	local := now.In(loc)

	for day := 0; day <= 14; day++ {
		candidate := local.AddDate(0, 0, day)
		weekend := isWeekendDay(candidate.Weekday())

		window := hours.Weekday
		if weekend {
			if hours.Weekend == nil {
				continue
			}
			window = hours.Weekend
		}
		if window == nil {
			continue
		}

		start := time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
			window.Start/100, window.Start%100, 0, 0, loc)
		if start.After(now) {
			return start
		}
	}

	// Schedule permits nothing inside the horizon; check again tomorrow.
	return local.AddDate(0, 0, 1)
}

// ShouldEscalate applies the severity policy to the schedule flags.
// RequiresImmediateAttention overrides everything else.
func ShouldEscalate(cfg models.SeverityConfig, isBusinessHours, isWeekend bool) bool {
	if cfg.RequiresImmediateAttention {
		return true
	}
	if cfg.BusinessHoursOnly && !isBusinessHours {
		return false
	}
	if isWeekend && !cfg.WeekendEscalation {
		return false
	}
	return true
}
