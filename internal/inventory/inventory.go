// Package inventory holds the dose-counting arithmetic shared by the
// inventory service and the medication form validation.
package inventory

import (
	"math"
	"regexp"
	"strconv"

	"github.com/pildhora/backend/pkg/model"
)

// Status is the tri-state stock level of a tracked medication
type Status string

const (
	StatusOK    Status = "ok"
	StatusLow   Status = "low"
	StatusEmpty Status = "empty"
)

var (
	leadingNumberPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)
	unitPattern          = regexp.MustCompile(`^[a-zA-Zµ]+`)
)

// ParseDoseAmount extracts the numeric dose amount for one intake.
// It prefers the structured DoseValue field, falls back to the leading
// number of the legacy free-text Dosage string, and defaults to 1.
// It never fails and always returns a positive amount.
func ParseDoseAmount(med *model.Medication) float64 {
	if med.DoseValue != "" {
		if v, err := strconv.ParseFloat(med.DoseValue, 64); err == nil && v > 0 {
			return v
		}
	}

	if m := leadingNumberPattern.FindStringSubmatch(med.Dosage); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			return v
		}
	}

	return 1
}

// DosesPerDay returns the average daily consumption rate implied by the
// schedule: times per active day weighted by active days per week.
// Duplicate schedule entries describe the same dose and count once.
func DosesPerDay(med *model.Medication) float64 {
	times := make(map[string]struct{}, len(med.Times))
	for _, t := range med.Times {
		times[t] = struct{}{}
	}
	days := make(map[int]struct{}, len(med.Days))
	for _, d := range med.Days {
		days[d] = struct{}{}
	}

	return float64(len(times)*len(days)) / 7
}

// LowQuantityThreshold computes the reorder point for a tracked
// medication: a three-day supply, capped at 30% of the initial stock
// and never below one dose.
func LowQuantityThreshold(med *model.Medication) int {
	threshold := int(math.Ceil(DosesPerDay(med) * 3))

	maxThreshold := int(math.Floor(float64(med.InitialQuantity) * 0.3))
	if threshold > maxThreshold {
		threshold = maxThreshold
	}
	if threshold < 1 {
		threshold = 1
	}

	return threshold
}

// StatusFor classifies a quantity against a threshold.
func StatusFor(currentQuantity, threshold int) Status {
	switch {
	case currentQuantity <= 0:
		return StatusEmpty
	case currentQuantity <= threshold:
		return StatusLow
	default:
		return StatusOK
	}
}

// CheckLowQuantity reports whether a tracked medication is at or below
// its low-quantity threshold.
func CheckLowQuantity(med *model.Medication) bool {
	if !med.TrackInventory {
		return false
	}
	return StatusFor(med.CurrentQuantity, med.LowQuantityThreshold) != StatusOK
}

// NormalizeDose migrates a legacy free-text Dosage into the structured
// DoseValue/DoseUnit fields. Records already carrying a DoseValue are
// returned unchanged; the legacy string is preserved either way.
func NormalizeDose(med *model.Medication) {
	if med.DoseValue != "" || med.Dosage == "" {
		return
	}

	m := leadingNumberPattern.FindStringSubmatch(med.Dosage)
	if m == nil {
		return
	}

	med.DoseValue = m[1]
	if med.DoseUnit == "" {
		med.DoseUnit = unitPattern.FindString(med.Dosage[len(m[0]):])
	}
}
