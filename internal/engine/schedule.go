package engine

import (
	"time"

	"legacy-scheduler/internal/models"
)

// deliveryTimeFor computes the concrete delivery instant for a relative job
// from its firing anchor. ABSOLUTE jobs never pass through here; their time is
// fixed at creation.
//
// Month and year offsets use calendar arithmetic with month-end clamping:
// Jan 31 + 1 month is Feb 28 (29 in leap years), not Mar 2.
func deliveryTimeFor(scheduleType models.ScheduleType, offset int, anchor time.Time) (time.Time, error) {
	switch scheduleType {
	case models.ScheduleImmediatelyAfterConfirm:
		return anchor, nil
	case models.ScheduleDaysAfterDeath, models.ScheduleDaysAfterInactivity:
		return anchor.AddDate(0, 0, offset), nil
	case models.ScheduleWeeksAfterDeath, models.ScheduleWeeksAfterInactivity:
		return anchor.AddDate(0, 0, 7*offset), nil
	case models.ScheduleMonthsAfterDeath:
		return addMonthsClamped(anchor, offset), nil
	case models.ScheduleYearsAfterDeath:
		return addMonthsClamped(anchor, 12*offset), nil
	}
	return time.Time{}, invalidArgument("schedule type %q has no relative delivery time", scheduleType)
}

// addMonthsClamped adds calendar months, clamping the day to the last valid
// day of the target month. time.Time.AddDate would normalize the overflow
// forward into the next month instead.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := y*12 + int(m) - 1 + months
	ny, nm := total/12, time.Month(total%12+1)
	if last := daysInMonth(ny, nm); d > last {
		d = last
	}
	h, min, sec := t.Clock()
	return time.Date(ny, nm, d, h, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
