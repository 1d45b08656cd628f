package service

import (
	"fmt"
	"strings"

	"github.com/pildhora/backend/pkg/model"
)

// DiffMedications computes the field-level changes between two
// medication snapshots for an updated event. Only changed fields are
// emitted; bookkeeping fields (version, timestamps, alarm IDs) are
// excluded.
func DiffMedications(before, after *model.Medication) []model.FieldChange {
	var changes []model.FieldChange

	compare := func(field, oldValue, newValue string) {
		if oldValue != newValue {
			changes = append(changes, model.FieldChange{
				Field:    field,
				OldValue: oldValue,
				NewValue: newValue,
			})
		}
	}

	compare("name", before.Name, after.Name)
	compare("icon", before.Icon, after.Icon)
	compare("dosage", before.Dosage, after.Dosage)
	compare("dose_value", before.DoseValue, after.DoseValue)
	compare("dose_unit", before.DoseUnit, after.DoseUnit)
	compare("quantity_type", string(before.QuantityType), string(after.QuantityType))
	compare("times", strings.Join(before.Times, ","), strings.Join(after.Times, ","))
	compare("days", joinDays(before.Days), joinDays(after.Days))
	compare("track_inventory", fmt.Sprintf("%t", before.TrackInventory), fmt.Sprintf("%t", after.TrackInventory))
	compare("current_quantity", fmt.Sprintf("%d", before.CurrentQuantity), fmt.Sprintf("%d", after.CurrentQuantity))
	compare("initial_quantity", fmt.Sprintf("%d", before.InitialQuantity), fmt.Sprintf("%d", after.InitialQuantity))
	compare("low_quantity_threshold", fmt.Sprintf("%d", before.LowQuantityThreshold), fmt.Sprintf("%d", after.LowQuantityThreshold))

	return changes
}

func joinDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return strings.Join(parts, ",")
}
