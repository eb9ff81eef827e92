package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/elevenses/internal/auth"
	"github.com/dukerupert/elevenses/internal/mealplan"
	"github.com/dukerupert/elevenses/internal/model"
	"github.com/dukerupert/elevenses/internal/push"
	"github.com/dukerupert/elevenses/internal/store"
	"github.com/dukerupert/elevenses/internal/websocket"
)

// Fallbacks when neither the request nor household settings supply a value.
const (
	defaultWeekdayBudget = 45
	defaultWeekendBudget = 90
	defaultVegRatio      = 0
)

// WeekParser turns a free-text week description into a structured schedule.
// Nil means no language service is configured.
type WeekParser interface {
	ParseWeek(ctx context.Context, text string) (*mealplan.ParsedWeek, error)
}

type MealPlanHandler struct {
	plans     *store.MealPlanStore
	recipes   *store.RecipeStore
	members   *store.FamilyMemberStore
	settings  *store.SettingsStore
	planner   *mealplan.Planner
	parser    WeekParser
	ranker    mealplan.Ranker
	scheduler *push.Scheduler
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewMealPlanHandler(
	plans *store.MealPlanStore,
	recipes *store.RecipeStore,
	members *store.FamilyMemberStore,
	settings *store.SettingsStore,
	planner *mealplan.Planner,
	parser WeekParser,
	ranker mealplan.Ranker,
	scheduler *push.Scheduler,
	hub *websocket.Hub,
	logger *slog.Logger,
) *MealPlanHandler {
	return &MealPlanHandler{
		plans:     plans,
		recipes:   recipes,
		members:   members,
		settings:  settings,
		planner:   planner,
		parser:    parser,
		ranker:    ranker,
		scheduler: scheduler,
		hub:       hub,
		logger:    logger,
	}
}

type generateRequest struct {
	WeekStart         string                 `json:"week_start"`
	Variant           int                    `json:"variant"`
	Days              []mealplan.DaySchedule `json:"days"`
	ScheduleText      string                 `json:"schedule_text"`
	LunchNeeds        []mealplan.LunchNeed   `json:"lunch_needs"`
	WeekdayTimeBudget *int                   `json:"weekday_time_budget"`
	WeekendTimeBudget *int                   `json:"weekend_time_budget"`
	VegetarianRatio   *int                   `json:"vegetarian_ratio"`
	Locks             map[string]int64       `json:"locks"`
	MealRequests      []mealplan.MealRequest `json:"meal_requests"`
}

type planResponse struct {
	Plan  *model.MealPlan         `json:"plan"`
	Items []model.PlannedMealItem `json:"items"`
}

// Generate handles POST /api/meal-plans/generate. Regenerating an existing
// (week_start, variant) key replaces that plan's items wholesale; the
// previous items stay committed if anything fails.
func (h *MealPlanHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.WeekStart = strings.TrimSpace(req.WeekStart)
	if _, err := time.Parse("2006-01-02", req.WeekStart); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "week_start must be a YYYY-MM-DD date"})
		return
	}
	if req.Variant < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "variant must not be negative"})
		return
	}
	if req.VegetarianRatio != nil && (*req.VegetarianRatio < 0 || *req.VegetarianRatio > 100) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "vegetarian_ratio must be 0-100"})
		return
	}
	if req.WeekdayTimeBudget != nil && *req.WeekdayTimeBudget < 0 ||
		req.WeekendTimeBudget != nil && *req.WeekendTimeBudget < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "time budgets must not be negative"})
		return
	}
	if len(req.Days) == 0 && req.ScheduleText == "" && len(req.Locks) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "nothing to plan: provide days, schedule_text, or locks"})
		return
	}

	// Free-text schedules go through the language parser when no structured
	// days were sent.
	if len(req.Days) == 0 && req.ScheduleText != "" {
		if h.parser == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "schedule parsing is not configured"})
			return
		}
		week, err := h.parser.ParseWeek(r.Context(), req.ScheduleText)
		if err != nil {
			h.logger.Error("parse schedule text", "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "could not understand the week description"})
			return
		}
		req.Days = week.Days
		req.MealRequests = mergeMealRequests(req.MealRequests, week.MealRequests)
	}

	input := mealplan.GenerateInput{
		Days:         req.Days,
		LunchNeeds:   req.LunchNeeds,
		MealRequests: req.MealRequests,
		Locks:        req.Locks,
	}
	h.fillPlanDefaults(ac.HouseholdID, &req, &input)

	catalog, err := h.recipes.List(ac.HouseholdID)
	if err != nil {
		h.logger.Error("load recipe catalog", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load recipes"})
		return
	}
	members, err := h.members.List(ac.HouseholdID)
	if err != nil {
		h.logger.Error("load family members", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load family members"})
		return
	}

	items := h.planner.Generate(catalog, members, input)

	plan, err := h.plans.Replace(ac.HouseholdID, req.WeekStart, req.Variant, items)
	if err != nil {
		h.logger.Error("replace meal plan", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save meal plan"})
		return
	}

	saved, err := h.plans.ListItems(plan.ID)
	if err != nil {
		h.logger.Error("load saved plan items", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load meal plan"})
		return
	}

	h.broadcast("generated", plan.ID, plan.WeekStart)
	if h.scheduler != nil {
		h.scheduler.SendPlanReady(ac.HouseholdID, ac.UserID, plan.WeekStart)
	}

	writeJSON(w, http.StatusOK, planResponse{Plan: plan, Items: saved})
}

// fillPlanDefaults resolves budgets and ratio: request value, then household
// setting, then the package constants. The engine always receives explicit
// numbers.
func (h *MealPlanHandler) fillPlanDefaults(householdID int64, req *generateRequest, input *mealplan.GenerateInput) {
	settings, err := h.settings.GetPlanSettings(householdID)
	if err != nil {
		h.logger.Error("load plan settings", "error", err)
		settings = nil
	}

	input.WeekdayTimeBudget = resolveInt(req.WeekdayTimeBudget, settings, "weekday_time_budget", defaultWeekdayBudget)
	input.WeekendTimeBudget = resolveInt(req.WeekendTimeBudget, settings, "weekend_time_budget", defaultWeekendBudget)
	input.VegetarianRatio = resolveInt(req.VegetarianRatio, settings, "vegetarian_ratio", defaultVegRatio)
}

func resolveInt(reqValue *int, settings map[string]string, key string, fallback int) int {
	if reqValue != nil {
		return *reqValue
	}
	if v, ok := settings[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// mergeMealRequests keeps explicit requests and adds parsed ones for days
// not already covered.
func mergeMealRequests(explicit, parsed []mealplan.MealRequest) []mealplan.MealRequest {
	taken := make(map[string]bool, len(explicit))
	for _, req := range explicit {
		taken[strings.ToLower(req.Day)] = true
	}
	out := explicit
	for _, req := range parsed {
		if !taken[strings.ToLower(req.Day)] {
			out = append(out, req)
		}
	}
	return out
}

// Get handles GET /api/meal-plans/{id}
func (h *MealPlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	plan, err := h.plans.GetByID(id, auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("get meal plan", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get meal plan"})
		return
	}
	if plan == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "meal plan not found"})
		return
	}

	h.respondWithItems(w, plan)
}

// List handles GET /api/meal-plans. With a week_start query parameter it
// returns that single plan (variant defaults to 0) including items;
// otherwise it lists the household's plans without items.
func (h *MealPlanHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	weekStart := r.URL.Query().Get("week_start")
	if weekStart != "" {
		variant := 0
		if v := r.URL.Query().Get("variant"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid variant"})
				return
			}
			variant = n
		}

		plan, err := h.plans.GetByKey(householdID, weekStart, variant)
		if err != nil {
			h.logger.Error("get meal plan by key", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get meal plan"})
			return
		}
		if plan == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no plan for that week"})
			return
		}
		h.respondWithItems(w, plan)
		return
	}

	plans, err := h.plans.List(householdID)
	if err != nil {
		h.logger.Error("list meal plans", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list meal plans"})
		return
	}
	if plans == nil {
		plans = []model.MealPlan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

// Delete handles DELETE /api/meal-plans/{id}
func (h *MealPlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	plan, err := h.plans.GetByID(id, householdID)
	if err != nil {
		h.logger.Error("get meal plan", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get meal plan"})
		return
	}
	if plan == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "meal plan not found"})
		return
	}

	if err := h.plans.Delete(id, householdID); err != nil {
		h.logger.Error("delete meal plan", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete meal plan"})
		return
	}

	h.broadcast("deleted", id, plan.WeekStart)
	w.WriteHeader(http.StatusNoContent)
}

// ParseSchedule handles POST /api/meal-plans/parse, previewing how a week
// description reads before generating from it.
func (h *MealPlanHandler) ParseSchedule(w http.ResponseWriter, r *http.Request) {
	if h.parser == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "schedule parsing is not configured"})
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	week, err := h.parser.ParseWeek(r.Context(), req.Text)
	if err != nil {
		h.logger.Error("parse schedule text", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "could not understand the week description"})
		return
	}
	writeJSON(w, http.StatusOK, week)
}

type matchResult struct {
	RecipeID  int64         `json:"recipe_id"`
	Score     float64       `json:"score"`
	Reasoning string        `json:"reasoning"`
	Recipe    *model.Recipe `json:"recipe,omitempty"`
}

// Match handles POST /api/meals/match: free-text "find me a meal" against
// the household catalog. Ranker failures and missing configuration both
// come back as zero matches, never an error.
func (h *MealPlanHandler) Match(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	var req struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "description is required"})
		return
	}

	catalog, err := h.recipes.List(householdID)
	if err != nil {
		h.logger.Error("load recipe catalog", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load recipes"})
		return
	}
	members, err := h.members.List(householdID)
	if err != nil {
		h.logger.Error("load family members", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load family members"})
		return
	}

	matches := mealplan.MatchMeal(r.Context(), h.ranker, h.logger, catalog, members, req.Description)

	results := make([]matchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, matchResult{
			RecipeID:  m.RecipeID,
			Score:     m.Score,
			Reasoning: m.Reasoning,
			Recipe:    findCatalogRecipe(catalog, m.RecipeID),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": results})
}

func findCatalogRecipe(catalog []model.Recipe, id int64) *model.Recipe {
	for i := range catalog {
		if catalog[i].ID == id {
			return &catalog[i]
		}
	}
	return nil
}

func (h *MealPlanHandler) respondWithItems(w http.ResponseWriter, plan *model.MealPlan) {
	items, err := h.plans.ListItems(plan.ID)
	if err != nil {
		h.logger.Error("load plan items", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load meal plan"})
		return
	}
	writeJSON(w, http.StatusOK, planResponse{Plan: plan, Items: items})
}

func (h *MealPlanHandler) broadcast(action string, id int64, weekStart string) {
	if h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage("meal_plan", action, id, map[string]any{
			"week_start": weekStart,
		}))
	}
}
