package fulfillment

// UnitsForDays converts a treatment duration in days into the dosage units
// owed: ceil(days / 2). The ceiling rule is canonical for every entry point;
// zero days owe zero units and skip the inventory entirely.
func UnitsForDays(days int) int {
	if days <= 0 {
		return 0
	}
	return (days + 1) / 2
}
