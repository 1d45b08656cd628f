package schedule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pildhora/backend/pkg/model"
)

// Frequency presets understood by the dispenser UI
const (
	FrequencyDaily    = "Daily"
	FrequencyWeekdays = "Weekdays"
	FrequencyWeekends = "Weekends"
)

// Weekday indices follow the device convention: 0 = Sunday .. 6 = Saturday.
var dayAbbreviations = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var dayIndexByAbbreviation = map[string]int{
	"Sun": 0, "Mon": 1, "Tue": 2, "Wed": 3, "Thu": 4, "Fri": 5, "Sat": 6,
}

// FrequencyToDays resolves a frequency label into an ordered set of
// weekday indices. Unknown tokens are rejected rather than dropped so a
// typo cannot silently shrink a schedule.
func FrequencyToDays(frequency string) ([]int, error) {
	switch frequency {
	case FrequencyDaily:
		return []int{0, 1, 2, 3, 4, 5, 6}, nil
	case FrequencyWeekdays:
		return []int{1, 2, 3, 4, 5}, nil
	case FrequencyWeekends:
		return []int{0, 6}, nil
	}

	if strings.TrimSpace(frequency) == "" {
		return nil, fmt.Errorf("frequency is required")
	}

	seen := make(map[int]bool)
	var days []int
	for _, token := range strings.Split(frequency, ",") {
		token = strings.TrimSpace(token)
		idx, ok := dayIndexByAbbreviation[token]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q in frequency %q", token, frequency)
		}
		if !seen[idx] {
			seen[idx] = true
			days = append(days, idx)
		}
	}

	sort.Ints(days)
	return days, nil
}

// DaysToFrequency is the inverse of FrequencyToDays: a day set matching
// a preset yields the preset label, anything else the explicit list.
func DaysToFrequency(days []int) string {
	normalized := normalizeDays(days)

	switch {
	case equalDays(normalized, []int{0, 1, 2, 3, 4, 5, 6}):
		return FrequencyDaily
	case equalDays(normalized, []int{1, 2, 3, 4, 5}):
		return FrequencyWeekdays
	case equalDays(normalized, []int{0, 6}):
		return FrequencyWeekends
	}

	abbrevs := make([]string, 0, len(normalized))
	for _, d := range normalized {
		abbrevs = append(abbrevs, dayAbbreviations[d])
	}
	return strings.Join(abbrevs, ",")
}

// MedicationToAlarmConfigs expands a medication's schedule into one
// alarm config per (time, weekday) combination. Config content is
// deterministic for the same medication, so re-registration produces
// identical configs; the caller is responsible for cancelling previous
// platform registrations first.
func MedicationToAlarmConfigs(med *model.Medication) ([]model.AlarmConfig, error) {
	if len(med.Times) == 0 {
		return nil, fmt.Errorf("medication %s has no scheduled times", med.ID)
	}

	days := normalizeDays(med.Days)
	if len(days) == 0 {
		return nil, fmt.Errorf("medication %s has no active weekdays", med.ID)
	}

	times := make([]string, 0, len(med.Times))
	seen := make(map[string]bool)
	for _, t := range med.Times {
		if !IsValidTimeFormat(t) {
			return nil, fmt.Errorf("invalid time %q on medication %s", t, med.ID)
		}
		if !seen[t] {
			seen[t] = true
			times = append(times, t)
		}
	}
	sort.Strings(times)

	configs := make([]model.AlarmConfig, 0, len(times)*len(days))
	for _, t := range times {
		for _, d := range days {
			configs = append(configs, model.AlarmConfig{
				MedicationID: med.ID,
				Name:         med.Name,
				Icon:         med.Icon,
				Time:         t,
				Day:          d,
			})
		}
	}

	return configs, nil
}

func normalizeDays(days []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, d := range days {
		if d < 0 || d > 6 {
			continue
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

func equalDays(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
