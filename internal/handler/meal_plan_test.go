package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/dukerupert/elevenses/internal/auth"
	"github.com/dukerupert/elevenses/internal/database"
	"github.com/dukerupert/elevenses/internal/mealplan"
	"github.com/dukerupert/elevenses/internal/model"
	"github.com/dukerupert/elevenses/internal/store"
)

type stubParser struct {
	week *mealplan.ParsedWeek
	err  error
}

func (s *stubParser) ParseWeek(ctx context.Context, text string) (*mealplan.ParsedWeek, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.week, nil
}

type stubRanker struct {
	ranked []mealplan.RankedMeal
	err    error
}

func (s *stubRanker) RankMeals(ctx context.Context, description string, recipes []string, constraints []string) ([]mealplan.RankedMeal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ranked, nil
}

type mealPlanFixture struct {
	handler  *MealPlanHandler
	plans    *store.MealPlanStore
	recipes  *store.RecipeStore
	members  *store.FamilyMemberStore
	settings *store.SettingsStore
	hid      int64
}

// setupMealPlanHandler wires the handler against an in-memory database with
// no hub and no scheduler. Side selection is seeded so item counts are
// stable across runs.
func setupMealPlanHandler(t *testing.T, parser WeekParser, ranker mealplan.Ranker) *mealPlanFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hs := store.NewHouseholdStore(db)
	h, err := hs.Create("Bag End")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &mealPlanFixture{
		plans:    store.NewMealPlanStore(db),
		recipes:  store.NewRecipeStore(db),
		members:  store.NewFamilyMemberStore(db),
		settings: store.NewSettingsStore(db),
		hid:      h.ID,
	}
	f.handler = NewMealPlanHandler(
		f.plans, f.recipes, f.members, f.settings,
		mealplan.NewSeeded(logger, 1), parser, ranker, nil, nil, logger,
	)
	return f
}

func (f *mealPlanFixture) request(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	ctx := auth.NewContext(req.Context(), auth.AuthContext{UserID: 1, HouseholdID: f.hid, Role: auth.RoleAdmin})
	return req.WithContext(ctx)
}

func (f *mealPlanFixture) seedMember(t *testing.T, name string) *model.FamilyMember {
	t.Helper()
	m, err := f.members.Create(f.hid, &model.FamilyMember{
		Name:          name,
		DietaryStyle:  model.DietOmnivore,
		SpiceTolerant: true,
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return m
}

func (f *mealPlanFixture) seedRecipe(t *testing.T, r model.Recipe) *model.Recipe {
	t.Helper()
	if r.Difficulty == "" {
		r.Difficulty = model.DifficultyEasy
	}
	created, err := f.recipes.Create(f.hid, &r)
	if err != nil {
		t.Fatalf("create recipe %q: %v", r.Name, err)
	}
	return created
}

func decodePlan(t *testing.T, rec *httptest.ResponseRecorder) planResponse {
	t.Helper()
	var resp planResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode plan response: %v", err)
	}
	return resp
}

func planIntPtr(i int) *int { return &i }

func TestGenerateHonorsLockAndPersists(t *testing.T) {
	f := setupMealPlanHandler(t, nil, nil)
	f.seedMember(t, "Rosie")
	tacos := f.seedRecipe(t, model.Recipe{Name: "Beef Tacos", Cuisine: "mexican", CookTimeMinutes: 30})
	f.seedRecipe(t, model.Recipe{Name: "Lentil Curry", Cuisine: "indian", CookTimeMinutes: 40, Vegetarian: true})

	rec := httptest.NewRecorder()
	f.handler.Generate(rec, f.request(t, "POST", "/api/meal-plans/generate", generateRequest{
		WeekStart: "2026-03-02",
		Days:      []mealplan.DaySchedule{{Day: "monday", IsCooking: true}},
		Locks:     map[string]int64{"monday": tacos.ID},
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	resp := decodePlan(t, rec)
	if resp.Plan == nil || resp.Plan.WeekStart != "2026-03-02" {
		t.Fatalf("plan = %+v, want week 2026-03-02", resp.Plan)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("items = %d, want main + two sides", len(resp.Items))
	}
	main := resp.Items[0]
	if main.MealType != model.MealTypeMain || main.RecipeID == nil || *main.RecipeID != tacos.ID {
		t.Errorf("first item = %+v, want locked main %d", main, tacos.ID)
	}
	if main.RecipeName != "Beef Tacos" {
		t.Errorf("recipe_name = %q, want Beef Tacos", main.RecipeName)
	}
	for _, side := range resp.Items[1:] {
		if side.MealType != model.MealTypeSide || !side.IsCustom || side.Notes == "" {
			t.Errorf("side = %+v, want named custom side", side)
		}
		if side.ParentItemID == nil || *side.ParentItemID != main.ID {
			t.Errorf("side parent = %v, want %d", side.ParentItemID, main.ID)
		}
	}

	// The response reflects committed rows, not the in-memory list.
	stored, err := f.plans.GetByKey(f.hid, "2026-03-02", 0)
	if err != nil || stored == nil {
		t.Fatalf("stored plan = %v, %v", stored, err)
	}
	items, _ := f.plans.ListItems(stored.ID)
	if len(items) != 3 {
		t.Errorf("persisted items = %d, want 3", len(items))
	}
}

func TestGenerateRegenerateReplaces(t *testing.T) {
	f := setupMealPlanHandler(t, nil, nil)
	f.seedMember(t, "Rosie")
	f.seedRecipe(t, model.Recipe{Name: "Roast Chicken", CookTimeMinutes: 60})
	f.seedRecipe(t, model.Recipe{Name: "Minestrone", CookTimeMinutes: 35, Vegetarian: true})

	body := generateRequest{
		WeekStart: "2026-03-02",
		Days: []mealplan.DaySchedule{
			{Day: "monday", IsCooking: true},
			{Day: "tuesday", IsCooking: false},
		},
		WeekendTimeBudget: planIntPtr(0),
		WeekdayTimeBudget: planIntPtr(0),
	}

	first := httptest.NewRecorder()
	f.handler.Generate(first, f.request(t, "POST", "/api/meal-plans/generate", body))
	if first.Code != http.StatusOK {
		t.Fatalf("first generate: %d: %s", first.Code, first.Body.String())
	}
	second := httptest.NewRecorder()
	f.handler.Generate(second, f.request(t, "POST", "/api/meal-plans/generate", body))
	if second.Code != http.StatusOK {
		t.Fatalf("second generate: %d: %s", second.Code, second.Body.String())
	}

	a, b := decodePlan(t, first), decodePlan(t, second)
	if a.Plan.ID != b.Plan.ID {
		t.Errorf("regeneration created a new plan row: %d then %d", a.Plan.ID, b.Plan.ID)
	}
	if len(a.Items) != len(b.Items) {
		t.Errorf("items = %d then %d, want the same count", len(a.Items), len(b.Items))
	}

	plans, err := f.plans.List(f.hid)
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(plans) != 1 {
		t.Errorf("plans = %d, want 1", len(plans))
	}
}

func TestGenerateFallsBackToHouseholdBudget(t *testing.T) {
	f := setupMealPlanHandler(t, nil, nil)
	f.seedMember(t, "Rosie")
	quick := f.seedRecipe(t, model.Recipe{Name: "Stir Fry", Cuisine: "asian", CookTimeMinutes: 15})
	f.seedRecipe(t, model.Recipe{Name: "Slow Braise", CookTimeMinutes: 90})

	if err := f.settings.Set(f.hid, "weekday_time_budget", "20"); err != nil {
		t.Fatalf("set setting: %v", err)
	}

	rec := httptest.NewRecorder()
	f.handler.Generate(rec, f.request(t, "POST", "/api/meal-plans/generate", generateRequest{
		WeekStart: "2026-03-02",
		Days:      []mealplan.DaySchedule{{Day: "monday", IsCooking: true}},
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodePlan(t, rec)
	if len(resp.Items) == 0 || resp.Items[0].RecipeID == nil || *resp.Items[0].RecipeID != quick.ID {
		t.Errorf("main = %+v, want the recipe under the 20 minute setting", resp.Items)
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	f := setupMealPlanHandler(t, nil, nil)
	day := []mealplan.DaySchedule{{Day: "monday", IsCooking: true}}

	cases := []struct {
		name    string
		body    any
		wantMsg string
	}{
		{"malformed json", `{"week_start":`, "invalid JSON"},
		{"bad week start", generateRequest{WeekStart: "03/02/2026", Days: day}, "week_start"},
		{"negative variant", generateRequest{WeekStart: "2026-03-02", Variant: -1, Days: day}, "variant"},
		{"ratio out of range", generateRequest{WeekStart: "2026-03-02", Days: day, VegetarianRatio: planIntPtr(150)}, "vegetarian_ratio"},
		{"negative budget", generateRequest{WeekStart: "2026-03-02", Days: day, WeekdayTimeBudget: planIntPtr(-5)}, "budget"},
		{"empty week", generateRequest{WeekStart: "2026-03-02"}, "nothing to plan"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.handler.Generate(rec, f.request(t, "POST", "/api/meal-plans/generate", tc.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if !strings.Contains(rec.Body.String(), tc.wantMsg) {
				t.Errorf("body = %q, want mention of %q", rec.Body.String(), tc.wantMsg)
			}
		})
	}
}

func TestGenerateScheduleTextWithoutParser(t *testing.T) {
	f := setupMealPlanHandler(t, nil, nil)

	rec := httptest.NewRecorder()
	f.handler.Generate(rec, f.request(t, "POST", "/api/meal-plans/generate", generateRequest{
		WeekStart:    "2026-03-02",
		ScheduleText: "cooking monday and thursday, tacos friday",
	}))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestGenerateFromScheduleText(t *testing.T) {
	parser := &stubParser{week: &mealplan.ParsedWeek{
		Days:         []mealplan.DaySchedule{{Day: "wednesday", IsCooking: true}},
		MealRequests: []mealplan.MealRequest{{Day: "wednesday", Description: "tacos"}},
	}}
	f := setupMealPlanHandler(t, parser, nil)
	f.seedMember(t, "Rosie")
	tacos := f.seedRecipe(t, model.Recipe{Name: "Beef Tacos", Cuisine: "mexican", CookTimeMinutes: 30})
	f.seedRecipe(t, model.Recipe{Name: "Roast Chicken", CookTimeMinutes: 60})

	rec := httptest.NewRecorder()
	f.handler.Generate(rec, f.request(t, "POST", "/api/meal-plans/generate", generateRequest{
		WeekStart:    "2026-03-02",
		ScheduleText: "we only cook wednesday, make it tacos",
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodePlan(t, rec)
	if len(resp.Items) == 0 {
		t.Fatal("expected items from the parsed schedule")
	}
	main := resp.Items[0]
	if main.Day != "wednesday" {
		t.Errorf("day = %q, want wednesday", main.Day)
	}
	if main.RecipeID == nil || *main.RecipeID != tacos.ID {
		t.Errorf("main = %+v, want the taco request honored", main)
	}
}

func TestParseSchedulePreview(t *testing.T) {
	parser := &stubParser{week: &mealplan.ParsedWeek{
		Days: []mealplan.DaySchedule{
			{Day: "monday", IsCooking: true},
			{Day: "friday", IsCooking: true, MealMode: mealplan.ModeMulti, NumMains: 2},
		},
	}}
	f := setupMealPlanHandler(t, parser, nil)

	rec := httptest.NewRecorder()
	f.handler.ParseSchedule(rec, f.request(t, "POST", "/api/meal-plans/parse", map[string]string{
		"text": "cooking monday, split mains friday",
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var week mealplan.ParsedWeek
	if err := json.NewDecoder(rec.Body).Decode(&week); err != nil {
		t.Fatalf("decode parsed week: %v", err)
	}
	if len(week.Days) != 2 || week.Days[1].NumMains != 2 {
		t.Errorf("week = %+v, want the parser's two days", week)
	}
}

func TestParseScheduleParserFailure(t *testing.T) {
	f := setupMealPlanHandler(t, &stubParser{err: errors.New("model overloaded")}, nil)

	rec := httptest.NewRecorder()
	f.handler.ParseSchedule(rec, f.request(t, "POST", "/api/meal-plans/parse", map[string]string{"text": "whatever"}))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestMatchWithoutRankerReturnsEmpty(t *testing.T) {
	f := setupMealPlanHandler(t, nil, nil)
	f.seedRecipe(t, model.Recipe{Name: "Beef Tacos", CookTimeMinutes: 30})

	rec := httptest.NewRecorder()
	f.handler.Match(rec, f.request(t, "POST", "/api/meals/match", map[string]string{"description": "something mexican"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Matches []matchResult `json:"matches"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Matches) != 0 {
		t.Errorf("matches = %d, want 0 without a ranker", len(resp.Matches))
	}
}

func TestMatchEmbedsCatalogRecipe(t *testing.T) {
	ranker := &stubRanker{}
	f := setupMealPlanHandler(t, nil, ranker)
	f.seedMember(t, "Rosie")
	tacos := f.seedRecipe(t, model.Recipe{Name: "Beef Tacos", Cuisine: "mexican", CookTimeMinutes: 30})
	curry := f.seedRecipe(t, model.Recipe{Name: "Lentil Curry", Cuisine: "indian", CookTimeMinutes: 40, Vegetarian: true})

	ranker.ranked = []mealplan.RankedMeal{
		{RecipeID: tacos.ID, Score: 0.9, Reasoning: "mexican and beefy"},
		{RecipeID: 9999, Score: 0.8, Reasoning: "not in the catalog"},
		{RecipeID: curry.ID, Score: 0.2, Reasoning: "below the floor"},
	}

	rec := httptest.NewRecorder()
	f.handler.Match(rec, f.request(t, "POST", "/api/meals/match", map[string]string{"description": "something mexican"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Matches []matchResult `json:"matches"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Matches) != 1 {
		t.Fatalf("matches = %d, want only the valid high-scoring one", len(resp.Matches))
	}
	m := resp.Matches[0]
	if m.RecipeID != tacos.ID || m.Score != 0.9 {
		t.Errorf("match = %+v, want tacos at 0.9", m)
	}
	if m.Recipe == nil || m.Recipe.Name != "Beef Tacos" {
		t.Errorf("embedded recipe = %+v, want the catalog row", m.Recipe)
	}
}

func TestMatchRequiresDescription(t *testing.T) {
	f := setupMealPlanHandler(t, nil, nil)

	rec := httptest.NewRecorder()
	f.handler.Match(rec, f.request(t, "POST", "/api/meals/match", map[string]string{"description": "   "}))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestListPlansByWeek(t *testing.T) {
	f := setupMealPlanHandler(t, nil, nil)
	tacos := f.seedRecipe(t, model.Recipe{Name: "Beef Tacos", CookTimeMinutes: 30})
	plan, err := f.plans.Replace(f.hid, "2026-03-02", 0, []model.PlannedMealItem{
		{Day: "monday", MealType: model.MealTypeMain, RecipeID: &tacos.ID},
	})
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	rec := httptest.NewRecorder()
	f.handler.List(rec, f.request(t, "GET", "/api/meal-plans?week_start=2026-03-02", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodePlan(t, rec)
	if resp.Plan.ID != plan.ID || len(resp.Items) != 1 {
		t.Errorf("got plan %d with %d items, want %d with 1", resp.Plan.ID, len(resp.Items), plan.ID)
	}

	missing := httptest.NewRecorder()
	f.handler.List(missing, f.request(t, "GET", "/api/meal-plans?week_start=2026-06-01", nil))
	if missing.Code != http.StatusNotFound {
		t.Errorf("missing week status = %d, want %d", missing.Code, http.StatusNotFound)
	}

	all := httptest.NewRecorder()
	f.handler.List(all, f.request(t, "GET", "/api/meal-plans", nil))
	if all.Code != http.StatusOK {
		t.Fatalf("list status = %d", all.Code)
	}
	var plans []model.MealPlan
	if err := json.NewDecoder(all.Body).Decode(&plans); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(plans) != 1 {
		t.Errorf("plans = %d, want 1", len(plans))
	}
}

func TestDeletePlan(t *testing.T) {
	f := setupMealPlanHandler(t, nil, nil)
	plan, err := f.plans.Replace(f.hid, "2026-03-02", 0, nil)
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	req := f.request(t, "DELETE", "/api/meal-plans/"+strconv.FormatInt(plan.ID, 10), nil)
	req.SetPathValue("id", strconv.FormatInt(plan.ID, 10))
	rec := httptest.NewRecorder()
	f.handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	got, err := f.plans.GetByID(plan.ID, f.hid)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected plan gone after delete")
	}
}

func TestGetPlanNotFound(t *testing.T) {
	f := setupMealPlanHandler(t, nil, nil)

	req := f.request(t, "GET", "/api/meal-plans/4242", nil)
	req.SetPathValue("id", "4242")
	rec := httptest.NewRecorder()
	f.handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
