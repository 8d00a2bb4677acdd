package models

import "errors"

// ErrInvalidCategory is returned when a category string is not in the closed set.
var ErrInvalidCategory = errors.New("invalid category")

// Category is the fixed classification of an expense.
type Category string

const (
	CategoryNone          Category = "No category"
	CategoryAccommodation Category = "Accommodation"
	CategoryEntertainment Category = "Entertainment"
	CategoryGroceries     Category = "Groceries"
	CategoryRestaurants   Category = "Restaurants & Bars"
	CategoryShopping      Category = "Shopping"
	CategoryTransport     Category = "Transport"
	CategoryHealthcare    Category = "Healthcare"
	CategoryInsurance     Category = "Insurance"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryNone,
	CategoryAccommodation,
	CategoryEntertainment,
	CategoryGroceries,
	CategoryRestaurants,
	CategoryShopping,
	CategoryTransport,
	CategoryHealthcare,
	CategoryInsurance,
}

// ParseCategory validates s against the closed set.
// An empty string maps to CategoryNone.
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryNone, nil
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}
