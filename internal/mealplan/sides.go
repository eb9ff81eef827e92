package mealplan

import (
	"strings"

	"github.com/dukerupert/elevenses/internal/model"
)

// Side weight classes.
const (
	weightLight  = "light"
	weightMedium = "medium"
	weightHearty = "hearty"
)

// sidesPerMain is how many accompaniments each main receives.
const sidesPerMain = 2

// sideDish is an entry of the built-in accompaniment catalog. Sides are not
// recipes; they become custom plan items named in the notes field.
type sideDish struct {
	Name  string
	Class string
}

var sideCatalog = []sideDish{
	{"Garden Salad", weightLight},
	{"Steamed Broccoli", weightLight},
	{"Roasted Carrots", weightLight},
	{"Cucumber Salad", weightLight},
	{"Sauteed Green Beans", weightLight},
	{"Coleslaw", weightLight},
	{"Fruit Salad", weightLight},
	{"Caesar Salad", weightMedium},
	{"Garlic Bread", weightMedium},
	{"Corn on the Cob", weightMedium},
	{"Dinner Rolls", weightMedium},
	{"Roasted Potatoes", weightHearty},
	{"Rice Pilaf", weightHearty},
	{"Mashed Potatoes", weightHearty},
	{"Mac and Cheese", weightHearty},
}

var heavyIngredients = []string{"pasta", "rice", "potato", "noodle"}

// classifyMainWeight reports how filling a main is, from its ingredient
// names. Exposed to bias selection toward light sides for hearty mains.
func classifyMainWeight(r *model.Recipe) string {
	for _, ing := range r.Ingredients {
		n := strings.ToLower(ing.Name)
		for _, heavy := range heavyIngredients {
			if strings.Contains(n, heavy) {
				return weightHearty
			}
		}
	}
	return weightMedium
}

// selectSides draws count distinct sides at random from the catalog.
// TODO: skew draws toward light sides when the main is hearty; the weight is
// computed and logged but selection is still uniform.
func (p *Planner) selectSides(main *model.Recipe, count int) []sideDish {
	if count > len(sideCatalog) {
		count = len(sideCatalog)
	}
	weight := classifyMainWeight(main)

	sides := make([]sideDish, 0, count)
	for _, idx := range p.rng.Perm(len(sideCatalog))[:count] {
		sides = append(sides, sideCatalog[idx])
	}
	p.logger.Debug("selected sides", "main", main.Name, "main_weight", weight, "count", len(sides))
	return sides
}
