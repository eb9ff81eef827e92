package mealplan

import (
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/dukerupert/elevenses/internal/model"
)

// Planner generates weekly meal plans. The rng drives side selection only;
// main selection is deterministic for a given catalog and input.
type Planner struct {
	logger *slog.Logger
	rng    *rand.Rand
}

func New(logger *slog.Logger) *Planner {
	return NewSeeded(logger, time.Now().UnixNano())
}

// NewSeeded returns a Planner with a fixed side-selection seed, for tests.
func NewSeeded(logger *slog.Logger, seed int64) *Planner {
	return &Planner{
		logger: logger.With("component", "mealplan"),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// weekState accumulates across day steps within one generation run: which
// recipes are already placed, and how many mains (vegetarian and total) the
// week has so far.
type weekState struct {
	used     map[int64]bool
	vegMains int
	mains    int
}

// assignment is one main slot to fill: the members it feeds and, in
// multi-main mode, which slot it is.
type assignment struct {
	mainIndex *int
	members   []model.FamilyMember
	memberIDs []int64 // nil = everyone
}

// Generate produces the full item list for one week: mains and sides per
// cooking day in Monday-first order, then lunches. Unsatisfiable slots are
// skipped, never errors; the caller persists the result atomically.
func (p *Planner) Generate(catalog []model.Recipe, members []model.FamilyMember, in GenerateInput) []model.PlannedMealItem {
	state := &weekState{used: make(map[int64]bool)}
	days := p.normalizeSchedule(in.Days, in.Locks)

	var items []model.PlannedMealItem
	for _, day := range days {
		if !day.IsCooking {
			continue
		}
		vegOnly := vegetarianNeeded(in.VegetarianRatio, state)
		for _, asg := range dayAssignments(day, members) {
			items = p.planMain(items, catalog, day, asg, in, state, vegOnly)
		}
	}
	items = p.planLunches(items, catalog, members, in.LunchNeeds, state)
	return items
}

// normalizeSchedule lowercases and orders the schedule Monday-first,
// dropping unknown day names. Locked days missing from the schedule are
// forced to cooking single-main days: the upstream language parser can omit
// days the user explicitly locked.
func (p *Planner) normalizeSchedule(days []DaySchedule, locks map[string]int64) []DaySchedule {
	byDay := make(map[string]DaySchedule, len(days))
	for _, d := range days {
		d.Day = strings.ToLower(strings.TrimSpace(d.Day))
		if d.MealMode == "" {
			d.MealMode = ModeSingle
		}
		byDay[d.Day] = d
	}

	for day := range locks {
		day = strings.ToLower(strings.TrimSpace(day))
		if _, ok := byDay[day]; !ok {
			p.logger.Warn("locked day missing from schedule, forcing cooking day", "day", day)
			byDay[day] = DaySchedule{Day: day, IsCooking: true, MealMode: ModeSingle}
		}
	}

	out := make([]DaySchedule, 0, len(byDay))
	for _, name := range model.WeekDays {
		if d, ok := byDay[name]; ok {
			out = append(out, d)
		}
	}
	return out
}

// dayAssignments expands a day into the main slots to fill. Single-main
// days get one all-member slot. Multi-main days use the explicit
// assignments when given; otherwise NumMains generic slots are synthesized,
// each feeding every member.
func dayAssignments(day DaySchedule, members []model.FamilyMember) []assignment {
	if day.MealMode != ModeMulti {
		return []assignment{{members: members}}
	}

	if len(day.MainAssignments) > 0 {
		out := make([]assignment, 0, len(day.MainAssignments))
		for _, a := range day.MainAssignments {
			idx := a.MainIndex
			out = append(out, assignment{
				mainIndex: &idx,
				members:   subsetMembers(members, a.MemberIDs),
				memberIDs: a.MemberIDs,
			})
		}
		return out
	}

	n := day.NumMains
	if n <= 0 {
		n = 2
	}
	out := make([]assignment, 0, n)
	for i := 0; i < n; i++ {
		idx := i
		out = append(out, assignment{mainIndex: &idx, members: members})
	}
	return out
}

func subsetMembers(members []model.FamilyMember, ids []int64) []model.FamilyMember {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.FamilyMember
	for _, m := range members {
		if want[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

// planMain fills one main slot: lock first, then keyword request, then
// scored selection. Locks and requests waive soft checks but never allergy
// safety or duplicate use. No survivor leaves the slot empty.
func (p *Planner) planMain(items []model.PlannedMealItem, catalog []model.Recipe, day DaySchedule, asg assignment, in GenerateInput, state *weekState, vegOnly bool) []model.PlannedMealItem {
	if recipeID, ok := in.Locks[day.Day]; ok {
		r := findRecipe(catalog, recipeID)
		switch {
		case r == nil:
			p.logger.Warn("locked recipe not in catalog", "day", day.Day, "recipe_id", recipeID)
		case state.used[r.ID]:
			p.logger.Warn("locked recipe already used this week", "day", day.Day, "recipe", r.Name)
		case !isAllergySafe(r, asg.members):
			p.logger.Warn("locked recipe conflicts with an allergy", "day", day.Day, "recipe", r.Name)
		default:
			return p.placeMain(items, r, day, asg, state)
		}
	}

	if req := requestForDay(in.MealRequests, day.Day); req != "" {
		for _, cand := range resolveKeywords(req, catalog) {
			if state.used[cand.recipe.ID] || !isAllergySafe(cand.recipe, asg.members) {
				continue
			}
			return p.placeMain(items, cand.recipe, day, asg, state)
		}
	}

	cons := constraints{
		MaxMinutes:     budgetFor(day.Day, in),
		Used:           state.used,
		VegetarianOnly: vegOnly,
	}
	r := pickScored(catalog, asg.members, cons)
	if r == nil {
		p.logger.Info("no compatible recipe for slot", "day", day.Day)
		return items
	}
	return p.placeMain(items, r, day, asg, state)
}

// placeMain marks the recipe used, appends the main item, and attaches its
// sides as custom child items.
func (p *Planner) placeMain(items []model.PlannedMealItem, r *model.Recipe, day DaySchedule, asg assignment, state *weekState) []model.PlannedMealItem {
	state.used[r.ID] = true
	state.mains++
	if r.Vegetarian {
		state.vegMains++
	}

	mainIdx := len(items)
	items = append(items, recipeItem(r, day.Day, model.MealTypeMain, asg.mainIndex, asg.memberIDs))

	for _, side := range p.selectSides(r, sidesPerMain) {
		parent := mainIdx
		items = append(items, model.PlannedMealItem{
			Day:         day.Day,
			MealType:    model.MealTypeSide,
			MemberIDs:   asg.memberIDs,
			ParentIndex: &parent,
			IsCustom:    true,
			Notes:       side.Name,
		})
	}
	return items
}

// recipeItem builds a plan item carrying the recipe's display attributes.
func recipeItem(r *model.Recipe, day, mealType string, mainIndex *int, memberIDs []int64) model.PlannedMealItem {
	rid := r.ID
	return model.PlannedMealItem{
		Day:             day,
		MealType:        mealType,
		RecipeID:        &rid,
		MainIndex:       mainIndex,
		MemberIDs:       memberIDs,
		RecipeName:      r.Name,
		RecipeCuisine:   r.Cuisine,
		Vegetarian:      r.Vegetarian,
		CookTimeMinutes: r.CookTimeMinutes,
		MakesLeftovers:  r.MakesLeftovers,
		KidFriendly:     r.KidFriendly,
	}
}

// vegetarianNeeded reports whether the week still owes vegetarian mains:
// the target is round(ratio% of 7), recomputed before each day from the
// mains placed so far.
func vegetarianNeeded(ratio int, state *weekState) bool {
	if ratio <= 0 {
		return false
	}
	needed := int(math.Round(float64(ratio) / 100 * 7))
	return state.vegMains < needed
}

func budgetFor(day string, in GenerateInput) int {
	if day == "saturday" || day == "sunday" {
		return in.WeekendTimeBudget
	}
	return in.WeekdayTimeBudget
}

func requestForDay(requests []MealRequest, day string) string {
	for _, req := range requests {
		if strings.EqualFold(req.Day, day) {
			return req.Description
		}
	}
	return ""
}

func findRecipe(catalog []model.Recipe, id int64) *model.Recipe {
	for i := range catalog {
		if catalog[i].ID == id {
			return &catalog[i]
		}
	}
	return nil
}

func weekdayIndex(day string) int {
	for i, name := range model.WeekDays {
		if name == day {
			return i
		}
	}
	return -1
}
