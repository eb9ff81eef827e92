package mealplan

import (
	"strings"

	"github.com/dukerupert/elevenses/internal/model"
)

const (
	baseScore      = 100
	favoriteBonus  = 50
	dislikePenalty = 30
)

// scoreRecipe rates a recipe for the given members; higher is better.
// +50 once per member with a favorite food in the recipe name, -30 once per
// member with a dislike among the ingredient names. Input recipes are
// expected to have passed isCompatible already.
func scoreRecipe(r *model.Recipe, members []model.FamilyMember) int {
	score := baseScore
	name := strings.ToLower(r.Name)

	for i := range members {
		m := &members[i]
		for _, fav := range m.FavoriteFoods {
			f := strings.ToLower(strings.TrimSpace(fav))
			if f != "" && strings.Contains(name, f) {
				score += favoriteBonus
				break
			}
		}
		for _, dislike := range m.Dislikes {
			d := strings.ToLower(strings.TrimSpace(dislike))
			if d == "" {
				continue
			}
			if ingredientMatches(r, d) {
				score -= dislikePenalty
				break
			}
		}
	}
	return score
}

func ingredientMatches(r *model.Recipe, keyword string) bool {
	for _, ing := range r.Ingredients {
		if strings.Contains(strings.ToLower(ing.Name), keyword) {
			return true
		}
	}
	return false
}

// pickScored returns the highest-scoring compatible recipe, ties broken by
// catalog order. Nil when nothing survives the filter.
func pickScored(catalog []model.Recipe, members []model.FamilyMember, cons constraints) *model.Recipe {
	var best *model.Recipe
	var bestScore int
	for i := range catalog {
		r := &catalog[i]
		if !isCompatible(r, members, cons) {
			continue
		}
		s := scoreRecipe(r, members)
		if best == nil || s > bestScore {
			best, bestScore = r, s
		}
	}
	return best
}
