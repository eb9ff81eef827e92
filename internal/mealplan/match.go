package mealplan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dukerupert/elevenses/internal/model"
)

const (
	matchScoreFloor = 0.5
	maxMatches      = 3
)

// RankedMeal is one scored suggestion from the external ranker.
type RankedMeal struct {
	RecipeID  int64   `json:"recipe_id"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Ranker orders candidate recipes against a free-text meal description.
// Implementations call out of process; the planner treats their output as
// untrusted.
type Ranker interface {
	RankMeals(ctx context.Context, description string, recipes []string, constraints []string) ([]RankedMeal, error)
}

// MatchMeal finds up to three catalog recipes matching a free-text
// description, best first. The compatible subset of the catalog (dietary,
// allergy and spice checks; no time budget or used set) is handed to the
// ranker as compact descriptions, and every returned id is re-validated
// against that subset and the score floor. Ranker failures degrade to an
// empty result, never an error.
func MatchMeal(ctx context.Context, ranker Ranker, logger *slog.Logger, catalog []model.Recipe, members []model.FamilyMember, description string) []RankedMeal {
	if ranker == nil {
		return nil
	}

	compatible := make(map[int64]bool)
	var lines []string
	for i := range catalog {
		r := &catalog[i]
		if !isCompatible(r, members, constraints{}) {
			continue
		}
		compatible[r.ID] = true
		lines = append(lines, describeRecipe(r))
	}
	if len(lines) == 0 {
		return nil
	}

	ranked, err := ranker.RankMeals(ctx, description, lines, describeMembers(members))
	if err != nil {
		logger.Error("rank meals", "error", err)
		return nil
	}

	seen := make(map[int64]bool)
	var out []RankedMeal
	for _, m := range ranked {
		if !compatible[m.RecipeID] || m.Score < matchScoreFloor || seen[m.RecipeID] {
			continue
		}
		seen[m.RecipeID] = true
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxMatches {
		out = out[:maxMatches]
	}
	return out
}

// describeRecipe renders one catalog line for the ranker prompt.
func describeRecipe(r *model.Recipe) string {
	parts := []string{fmt.Sprintf("id=%d name=%q", r.ID, r.Name)}
	if r.Cuisine != "" {
		parts = append(parts, "cuisine="+r.Cuisine)
	}
	if r.Protein != "" {
		parts = append(parts, "protein="+r.Protein)
	}
	if r.Vegetarian {
		parts = append(parts, "vegetarian")
	}
	parts = append(parts, fmt.Sprintf("time=%dmin", r.CookTimeMinutes))
	if len(r.Tags) > 0 {
		parts = append(parts, "tags="+strings.Join(r.Tags, ","))
	}
	return strings.Join(parts, " ")
}

// describeMembers renders one constraint line per member for the ranker
// prompt.
func describeMembers(members []model.FamilyMember) []string {
	var lines []string
	for i := range members {
		m := &members[i]
		line := fmt.Sprintf("%s: %s", m.Name, m.DietaryStyle)
		if len(m.Allergies) > 0 {
			line += ", allergies: " + strings.Join(m.Allergies, ", ")
		}
		if len(m.Dislikes) > 0 {
			line += ", dislikes: " + strings.Join(m.Dislikes, ", ")
		}
		if !m.SpiceTolerant {
			line += ", no spicy food"
		}
		lines = append(lines, line)
	}
	return lines
}
