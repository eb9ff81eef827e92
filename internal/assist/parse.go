package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukerupert/elevenses/internal/mealplan"
	"github.com/dukerupert/elevenses/internal/model"
)

const parsePrompt = `You convert a family's description of their cooking week into JSON.

Days are monday through sunday. Respond with ONLY this JSON shape, no prose:
{"days":[{"day":"monday","is_cooking":true,"meal_mode":"single","num_mains":0}],"meal_requests":[{"day":"friday","description":"tacos"}]}

Rules:
- Include every day the text mentions; omit days it does not mention.
- is_cooking is false for days described as eating out, ordering in, traveling, or leftovers only.
- meal_mode is "multi" only when the text asks for separate mains for different people; otherwise "single".
- Set num_mains only when a count of mains is stated; otherwise use 0.
- A named dish or craving tied to a day becomes a meal_requests entry.

Text:
%s`

// ParseWeek turns free text like "we cook monday through thursday, tacos on
// friday" into a structured week. The model reply is untrusted: unknown day
// names are dropped, meal modes defaulted, blank requests discarded.
func (c *Client) ParseWeek(ctx context.Context, text string) (*mealplan.ParsedWeek, error) {
	raw, err := c.generateText(ctx, fmt.Sprintf(parsePrompt, text))
	if err != nil {
		return nil, err
	}

	var week mealplan.ParsedWeek
	if err := json.Unmarshal([]byte(stripFences(raw)), &week); err != nil {
		c.logger.Warn("unparseable week reply", "error", err)
		return nil, fmt.Errorf("decode parsed week: %w", err)
	}
	sanitizeWeek(&week)
	return &week, nil
}

// sanitizeWeek normalizes an untrusted parsed week in place.
func sanitizeWeek(week *mealplan.ParsedWeek) {
	days := week.Days[:0]
	for _, d := range week.Days {
		d.Day = strings.ToLower(strings.TrimSpace(d.Day))
		if !validDay(d.Day) {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(d.MealMode)) {
		case mealplan.ModeMulti:
			d.MealMode = mealplan.ModeMulti
		default:
			d.MealMode = mealplan.ModeSingle
		}
		if d.NumMains < 0 {
			d.NumMains = 0
		}
		d.MainAssignments = nil
		days = append(days, d)
	}
	week.Days = days

	reqs := week.MealRequests[:0]
	for _, r := range week.MealRequests {
		r.Day = strings.ToLower(strings.TrimSpace(r.Day))
		r.Description = strings.TrimSpace(r.Description)
		if !validDay(r.Day) || r.Description == "" {
			continue
		}
		reqs = append(reqs, r)
	}
	week.MealRequests = reqs
}

func validDay(day string) bool {
	for _, name := range model.WeekDays {
		if name == day {
			return true
		}
	}
	return false
}
