// Package hours evaluates a merchant's weekly business-hours schedule.
package hours

import (
	"fmt"
	"time"

	"github.com/replyflow/replyflow/pkg/models"
)

var weekdayKeys = map[time.Weekday]string{
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
	time.Sunday:    "sun",
}

// Open reports whether now falls inside the schedule. A nil schedule means
// always open. A missing or disabled day is closed. An unknown timezone
// fails open so a misconfigured merchant keeps getting replies; the error
// is returned for logging.
func Open(schedule *models.BusinessHours, now time.Time) (bool, error) {
	if schedule == nil || len(schedule.Days) == 0 {
		return true, nil
	}

	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		return true, fmt.Errorf("invalid timezone %q: %w", schedule.Timezone, err)
	}

	local := now.In(loc)

	day, ok := schedule.Days[weekdayKeys[local.Weekday()]]
	if !ok || !day.Enabled {
		return false, nil
	}

	// Inclusive "HH:MM" comparison; zero-padded strings order correctly.
	current := local.Format("15:04")

	return day.Start <= current && current <= day.End, nil
}
