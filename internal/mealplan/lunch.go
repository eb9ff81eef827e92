package mealplan

import (
	"strings"

	"github.com/dukerupert/elevenses/internal/model"
)

// lunchTimeBudget caps standalone lunch recipes; lunches are meant to be
// assembled fast, not cooked.
const lunchTimeBudget = 20

// planLunches appends lunch items for each weekday need after all mains are
// placed. Leftover lunches reuse the previous weekday's main (Monday has no
// source and weekends get no lunches); standalone lunches take the first
// quick recipe compatible with that one member, no scoring.
func (p *Planner) planLunches(items []model.PlannedMealItem, catalog []model.Recipe, members []model.FamilyMember, needs []LunchNeed, state *weekState) []model.PlannedMealItem {
	for _, need := range needs {
		if !need.NeedsLunch {
			continue
		}
		day := strings.ToLower(strings.TrimSpace(need.Day))
		di := weekdayIndex(day)
		if di < 0 || di > 4 {
			continue
		}
		member := findMember(members, need.MemberID)
		if member == nil {
			p.logger.Warn("lunch need references unknown member", "member_id", need.MemberID)
			continue
		}

		if need.LeftoversOK {
			items = p.planLeftoverLunch(items, catalog, *member, day, di)
			continue
		}
		items = p.planStandaloneLunch(items, catalog, *member, day, state)
	}
	return items
}

// planLeftoverLunch links a lunch to the previous weekday's main. No prior
// main, or an allergy conflict for this member, means no item.
func (p *Planner) planLeftoverLunch(items []model.PlannedMealItem, catalog []model.Recipe, member model.FamilyMember, day string, dayIdx int) []model.PlannedMealItem {
	if dayIdx == 0 {
		return items
	}
	prevDay := model.WeekDays[dayIdx-1]

	mainIdx := -1
	for i := range items {
		if items[i].Day == prevDay && items[i].MealType == model.MealTypeMain && items[i].RecipeID != nil {
			mainIdx = i
			break
		}
	}
	if mainIdx < 0 {
		return items
	}

	r := findRecipe(catalog, *items[mainIdx].RecipeID)
	if r == nil || !isAllergySafe(r, []model.FamilyMember{member}) {
		return items
	}

	item := recipeItem(r, day, model.MealTypeLunch, nil, []int64{member.ID})
	parent := mainIdx
	item.ParentIndex = &parent
	item.Notes = "leftovers"
	return append(items, item)
}

// planStandaloneLunch takes the first unused quick recipe fully compatible
// with the member. First match wins; lunches are not scored.
func (p *Planner) planStandaloneLunch(items []model.PlannedMealItem, catalog []model.Recipe, member model.FamilyMember, day string, state *weekState) []model.PlannedMealItem {
	cons := constraints{MaxMinutes: lunchTimeBudget, Used: state.used}
	for i := range catalog {
		r := &catalog[i]
		if !isCompatible(r, []model.FamilyMember{member}, cons) {
			continue
		}
		state.used[r.ID] = true
		return append(items, recipeItem(r, day, model.MealTypeLunch, nil, []int64{member.ID}))
	}
	return items
}

func findMember(members []model.FamilyMember, id int64) *model.FamilyMember {
	for i := range members {
		if members[i].ID == id {
			return &members[i]
		}
	}
	return nil
}
