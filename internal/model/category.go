package model

import "strings"

// Category is the enumerated spending category of a subscription.
type Category string

// Category constants.
const (
	CategoryStreaming     Category = "Streaming"
	CategoryMusic         Category = "Music"
	CategorySoftware      Category = "Software"
	CategoryCloud         Category = "Cloud Storage"
	CategoryNews          Category = "News"
	CategoryGaming        Category = "Gaming"
	CategoryFitness       Category = "Fitness"
	CategoryEducation     Category = "Education"
	CategoryInvestment    Category = "Investment"
	CategoryUtilities     Category = "Utilities"
	CategoryFoodDelivery  Category = "Food Delivery"
	CategoryShopping      Category = "Shopping"
	CategoryCommunication Category = "Communication"
	CategoryOther         Category = "Other"
)

// ParseCategory maps a free-form label onto a known category,
// case-insensitively. The second return reports whether it matched.
func ParseCategory(label string) (Category, bool) {
	for _, c := range Categories() {
		if strings.EqualFold(label, string(c)) {
			return c, true
		}
	}
	return CategoryOther, false
}

// Categories lists every known category in display order.
func Categories() []Category {
	return []Category{
		CategoryStreaming,
		CategoryMusic,
		CategorySoftware,
		CategoryCloud,
		CategoryNews,
		CategoryGaming,
		CategoryFitness,
		CategoryEducation,
		CategoryInvestment,
		CategoryUtilities,
		CategoryFoodDelivery,
		CategoryShopping,
		CategoryCommunication,
		CategoryOther,
	}
}
