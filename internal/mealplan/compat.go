package mealplan

import (
	"strings"

	"github.com/dukerupert/elevenses/internal/model"
)

// constraints are the hard limits applied when filtering candidate recipes.
// MaxMinutes 0 means unlimited. Used holds recipe ids already placed in the
// plan being built.
type constraints struct {
	MaxMinutes     int
	Used           map[int64]bool
	VegetarianOnly bool
}

// isCompatible reports whether a recipe can be served to all given members
// under the constraints. Every failed rule is a hard veto; there is no
// partial credit.
func isCompatible(r *model.Recipe, members []model.FamilyMember, cons constraints) bool {
	if cons.Used[r.ID] {
		return false
	}
	if cons.MaxMinutes > 0 && r.CookTimeMinutes > cons.MaxMinutes {
		return false
	}
	if cons.VegetarianOnly && !r.Vegetarian {
		return false
	}
	for i := range members {
		m := &members[i]
		switch m.DietaryStyle {
		case model.DietVegan:
			if !r.HasTag("vegan") {
				return false
			}
		case model.DietVegetarian:
			if !r.Vegetarian {
				return false
			}
		}
		if !m.SpiceTolerant && r.HasTag("spicy") {
			return false
		}
	}
	return isAllergySafe(r, members)
}

// isAllergySafe reports whether no member's allergy matches a recipe
// allergen. This check is never waived, locked and requested meals included.
func isAllergySafe(r *model.Recipe, members []model.FamilyMember) bool {
	for i := range members {
		for _, allergy := range members[i].Allergies {
			a := strings.ToLower(strings.TrimSpace(allergy))
			if a == "" {
				continue
			}
			for _, allergen := range r.Allergens {
				if strings.ToLower(strings.TrimSpace(allergen)) == a {
					return false
				}
			}
		}
	}
	return true
}
