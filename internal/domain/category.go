package domain

// Category is a leisure/lifestyle transaction type. The set is fixed; the
// warehouse schema and the analytics views key on these exact names.
type Category string

const (
	LeisurePayment  Category = "leisure_payment"
	SubscriptionFee Category = "subscription_fee"
	TravelExpense   Category = "travel_expense"
	Shopping        Category = "shopping"
	Dining          Category = "dining"
	Entertainment   Category = "entertainment"
	FitnessWellness Category = "fitness_wellness"
	Education       Category = "education"
	LuxuryPurchase  Category = "luxury_purchase"
	Miscellaneous   Category = "miscellaneous"
)

// Categories returns all known categories in their canonical order
// (most common first).
func Categories() []Category {
	return []Category{
		LeisurePayment,
		SubscriptionFee,
		TravelExpense,
		Shopping,
		Dining,
		Entertainment,
		FitnessWellness,
		Education,
		LuxuryPurchase,
		Miscellaneous,
	}
}

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c Category) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}
