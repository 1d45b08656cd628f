package schedule

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pildhora/backend/pkg/model"
)

var time24Pattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// IsValidTimeFormat reports whether s is a strict 24-hour HH:MM string.
func IsValidTimeFormat(s string) bool {
	return time24Pattern.MatchString(s)
}

// FormatTo12Hour converts a 24-hour HH:MM string to "h:mm AM" form.
func FormatTo12Hour(s string) (string, error) {
	m := time24Pattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("invalid 24-hour time %q", s)
	}

	hour, _ := strconv.Atoi(m[1])
	marker := "AM"
	switch {
	case hour == 0:
		hour = 12
	case hour == 12:
		marker = "PM"
	case hour > 12:
		hour -= 12
		marker = "PM"
	}

	return fmt.Sprintf("%d:%s %s", hour, m[2], marker), nil
}

// FormatTo24Hour converts a "h:mm AM" string back to 24-hour HH:MM.
// The AM/PM marker is required.
func FormatTo24Hour(s string) (string, error) {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid 12-hour time %q: missing AM/PM marker", s)
	}

	marker := strings.ToUpper(parts[1])
	if marker != "AM" && marker != "PM" {
		return "", fmt.Errorf("invalid 12-hour time %q: bad marker %q", s, parts[1])
	}

	hm := strings.SplitN(parts[0], ":", 2)
	if len(hm) != 2 {
		return "", fmt.Errorf("invalid 12-hour time %q", s)
	}

	hour, err := strconv.Atoi(hm[0])
	if err != nil || hour < 1 || hour > 12 {
		return "", fmt.Errorf("invalid 12-hour time %q: bad hour", s)
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil || len(hm[1]) != 2 || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid 12-hour time %q: bad minute", s)
	}

	if marker == "AM" {
		if hour == 12 {
			hour = 0
		}
	} else if hour != 12 {
		hour += 12
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// HasAlarmsToday reports whether the medication has any alarm scheduled
// on now's weekday, regardless of whether the times have already passed.
func HasAlarmsToday(med *model.Medication, now time.Time) bool {
	return len(AlarmTimesForToday(med, now)) > 0
}

// AlarmTimesForToday returns the medication's times for now's weekday,
// sorted ascending.
func AlarmTimesForToday(med *model.Medication, now time.Time) []string {
	weekday := int(now.Weekday())
	active := false
	for _, d := range med.Days {
		if d == weekday {
			active = true
			break
		}
	}
	if !active {
		return nil
	}

	times := make([]string, 0, len(med.Times))
	for _, t := range med.Times {
		if IsValidTimeFormat(t) {
			times = append(times, t)
		}
	}
	sort.Strings(times)
	return times
}

// NextAlarmTime computes the next occurrence of any of the medication's
// alarms at or after now, in now's location. Wall-clock times that do
// not exist on a given day (DST spring-forward) resolve to the
// normalized instant produced by time.Date. The second return value is
// false when the medication has no valid schedule.
func NextAlarmTime(med *model.Medication, now time.Time) (time.Time, bool) {
	days := normalizeDays(med.Days)
	if len(days) == 0 {
		return time.Time{}, false
	}

	var times []string
	for _, t := range med.Times {
		if IsValidTimeFormat(t) {
			times = append(times, t)
		}
	}
	if len(times) == 0 {
		return time.Time{}, false
	}
	sort.Strings(times)

	activeDay := make(map[int]bool, len(days))
	for _, d := range days {
		activeDay[d] = true
	}

	// Scan today plus the next seven days; the schedule repeats weekly
	// so a match is guaranteed within that window.
	for offset := 0; offset <= 7; offset++ {
		day := now.AddDate(0, 0, offset)
		if !activeDay[int(day.Weekday())] {
			continue
		}
		for _, t := range times {
			hour, _ := strconv.Atoi(t[:2])
			minute, _ := strconv.Atoi(t[3:])
			candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
			if !candidate.Before(now) {
				return candidate, true
			}
		}
	}

	return time.Time{}, false
}
