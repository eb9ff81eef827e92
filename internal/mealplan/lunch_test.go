package mealplan

import (
	"testing"

	"github.com/dukerupert/elevenses/internal/model"
)

func lunchesOf(items []model.PlannedMealItem) []model.PlannedMealItem {
	var out []model.PlannedMealItem
	for _, it := range items {
		if it.MealType == model.MealTypeLunch {
			out = append(out, it)
		}
	}
	return out
}

func TestLeftoverLunchReferencesPreviousMain(t *testing.T) {
	p := testPlanner(t)

	items := p.Generate(testCatalog(), testMembers(), GenerateInput{
		Days: cookingWeek("monday", "tuesday"),
		LunchNeeds: []LunchNeed{
			{Day: "tuesday", MemberID: 1, NeedsLunch: true, LeftoversOK: true},
		},
	})

	lunches := lunchesOf(items)
	if len(lunches) != 1 {
		t.Fatalf("lunches = %d, want 1", len(lunches))
	}
	l := lunches[0]
	if l.Day != "tuesday" {
		t.Errorf("lunch day = %s, want tuesday", l.Day)
	}
	mondayMain := mainFor(items, "monday")
	if l.RecipeID == nil || *l.RecipeID != *mondayMain.RecipeID {
		t.Error("leftover lunch should reuse Monday's main recipe")
	}
	if l.ParentIndex == nil || items[*l.ParentIndex].Day != "monday" {
		t.Error("leftover lunch parent should be the Monday main item")
	}
	if l.Notes != "leftovers" {
		t.Errorf("lunch notes = %q, want leftovers", l.Notes)
	}
	if len(l.MemberIDs) != 1 || l.MemberIDs[0] != 1 {
		t.Errorf("lunch members = %v, want [1]", l.MemberIDs)
	}
}

func TestLeftoverLunchMondayHasNoSource(t *testing.T) {
	p := testPlanner(t)

	items := p.Generate(testCatalog(), testMembers(), GenerateInput{
		Days: cookingWeek("monday"),
		LunchNeeds: []LunchNeed{
			{Day: "monday", MemberID: 1, NeedsLunch: true, LeftoversOK: true},
		},
	})

	if n := len(lunchesOf(items)); n != 0 {
		t.Errorf("lunches = %d, want 0 on Monday", n)
	}
}

func TestLunchNeedsSkipWeekends(t *testing.T) {
	p := testPlanner(t)

	items := p.Generate(testCatalog(), testMembers(), GenerateInput{
		Days: fullWeek(),
		LunchNeeds: []LunchNeed{
			{Day: "saturday", MemberID: 1, NeedsLunch: true, LeftoversOK: true},
			{Day: "sunday", MemberID: 1, NeedsLunch: true},
		},
	})

	if n := len(lunchesOf(items)); n != 0 {
		t.Errorf("lunches = %d, want 0 on weekends", n)
	}
}

func TestLunchNeedsRespectFlags(t *testing.T) {
	p := testPlanner(t)
	state := &weekState{used: make(map[int64]bool)}

	items := p.planLunches(nil, testCatalog(), testMembers(), []LunchNeed{
		{Day: "tuesday", MemberID: 1, NeedsLunch: false},
		{Day: "tuesday", MemberID: 99, NeedsLunch: true},
	}, state)

	if len(items) != 0 {
		t.Errorf("items = %d, want 0 for declined and unknown-member needs", len(items))
	}
}

func TestLeftoverLunchBlockedByAllergy(t *testing.T) {
	p := testPlanner(t)
	catalog := testCatalog()

	rid := int64(5) // Peanut Noodles
	items := []model.PlannedMealItem{
		{Day: "monday", MealType: model.MealTypeMain, RecipeID: &rid},
	}
	allergic := model.FamilyMember{ID: 2, Name: "Sam", Allergies: []string{"peanut"}}

	items = p.planLeftoverLunch(items, catalog, allergic, "tuesday", 1)
	if n := len(lunchesOf(items)); n != 0 {
		t.Errorf("lunches = %d, want 0 when leftovers carry an allergen", n)
	}
}

func TestLeftoverLunchNoPriorMain(t *testing.T) {
	p := testPlanner(t)

	items := p.planLeftoverLunch(nil, testCatalog(), testMembers()[0], "wednesday", 2)
	if len(items) != 0 {
		t.Errorf("items = %d, want 0 without a previous-day main", len(items))
	}
}

func TestStandaloneLunchFirstQuickMatch(t *testing.T) {
	p := testPlanner(t)
	state := &weekState{used: make(map[int64]bool)}

	// First catalog entry within the 20 minute cap is Peanut Noodles.
	items := p.planStandaloneLunch(nil, testCatalog(), testMembers()[0], "monday", state)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].RecipeName != "Peanut Noodles" {
		t.Errorf("lunch = %q, want Peanut Noodles", items[0].RecipeName)
	}
	if !state.used[*items[0].RecipeID] {
		t.Error("standalone lunch should mark its recipe used")
	}

	// The next lunch must skip the used recipe.
	items = p.planStandaloneLunch(items, testCatalog(), testMembers()[1], "monday", state)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[1].RecipeName != "Caprese Sandwich" {
		t.Errorf("second lunch = %q, want Caprese Sandwich", items[1].RecipeName)
	}
}

func TestStandaloneLunchHonorsMemberConstraints(t *testing.T) {
	p := testPlanner(t)
	state := &weekState{used: make(map[int64]bool)}
	allergic := model.FamilyMember{ID: 3, Name: "Theo", DietaryStyle: model.DietOmnivore, SpiceTolerant: true, Allergies: []string{"peanut"}}

	items := p.planStandaloneLunch(nil, testCatalog(), allergic, "thursday", state)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].RecipeName != "Caprese Sandwich" {
		t.Errorf("lunch = %q, want allergy-safe Caprese Sandwich", items[0].RecipeName)
	}
}
