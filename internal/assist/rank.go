package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukerupert/elevenses/internal/mealplan"
)

const rankPrompt = `You rank a household's saved recipes against what someone wants to eat.

What they want:
%s

Recipes, one per line:
%s

Household constraints:
%s

Score every recipe that plausibly fits from 0.0 to 1.0 and skip the rest.
Respond with ONLY a JSON array, no prose:
[{"recipe_id":1,"score":0.9,"reasoning":"one short sentence"}]`

// RankMeals implements mealplan.Ranker. Scores and ids in the reply are
// returned as-is; the caller re-validates them against its own catalog.
func (c *Client) RankMeals(ctx context.Context, description string, recipes []string, constraints []string) ([]mealplan.RankedMeal, error) {
	prompt := fmt.Sprintf(rankPrompt, description, strings.Join(recipes, "\n"), strings.Join(constraints, "\n"))
	raw, err := c.generateText(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var ranked []mealplan.RankedMeal
	if err := json.Unmarshal([]byte(stripFences(raw)), &ranked); err != nil {
		c.logger.Warn("unparseable ranking reply", "error", err)
		return nil, fmt.Errorf("decode ranked meals: %w", err)
	}
	return ranked, nil
}
