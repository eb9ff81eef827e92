package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/elevenses/internal/auth"
	"github.com/dukerupert/elevenses/internal/model"
	"github.com/dukerupert/elevenses/internal/store"
	"github.com/dukerupert/elevenses/internal/websocket"
)

type RecipeHandler struct {
	store  *store.RecipeStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewRecipeHandler(s *store.RecipeStore, hub *websocket.Hub, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{store: s, hub: hub, logger: logger}
}

type recipeRequest struct {
	Name            string             `json:"name"`
	Cuisine         string             `json:"cuisine"`
	Protein         string             `json:"protein"`
	Vegetarian      bool               `json:"vegetarian"`
	CookTimeMinutes int                `json:"cook_time_minutes"`
	Difficulty      string             `json:"difficulty"`
	KidFriendly     bool               `json:"kid_friendly"`
	MakesLeftovers  bool               `json:"makes_leftovers"`
	Allergens       []string           `json:"allergens"`
	Tags            []string           `json:"tags"`
	Ingredients     []model.Ingredient `json:"ingredients"`
}

// validate normalizes the request in place. Tags and allergens are stored
// lowercase; the planner matches them without further folding.
func (req *recipeRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.CookTimeMinutes < 0 {
		return "cook_time_minutes must not be negative"
	}
	switch req.Difficulty {
	case "":
		req.Difficulty = model.DifficultyMedium
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		return "difficulty must be easy, medium, or hard"
	}
	req.Cuisine = strings.ToLower(strings.TrimSpace(req.Cuisine))
	req.Protein = strings.ToLower(strings.TrimSpace(req.Protein))
	req.Allergens = lowercaseList(req.Allergens)
	req.Tags = lowercaseList(req.Tags)

	ings := make([]model.Ingredient, 0, len(req.Ingredients))
	for _, ing := range req.Ingredients {
		ing.Name = strings.TrimSpace(ing.Name)
		if ing.Name == "" {
			return "every ingredient needs a name"
		}
		if ing.Quantity < 0 {
			return "ingredient quantities must not be negative"
		}
		ings = append(ings, ing)
	}
	req.Ingredients = ings
	return ""
}

func (req *recipeRequest) toModel() *model.Recipe {
	return &model.Recipe{
		Name:            req.Name,
		Cuisine:         req.Cuisine,
		Protein:         req.Protein,
		Vegetarian:      req.Vegetarian,
		CookTimeMinutes: req.CookTimeMinutes,
		Difficulty:      req.Difficulty,
		KidFriendly:     req.KidFriendly,
		MakesLeftovers:  req.MakesLeftovers,
		Allergens:       req.Allergens,
		Tags:            req.Tags,
		Ingredients:     req.Ingredients,
	}
}

func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.store.List(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list recipes", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list recipes"})
		return
	}
	if recipes == nil {
		recipes = []model.Recipe{}
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	recipe, err := h.store.GetByID(id, auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("get recipe", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get recipe"})
		return
	}
	if recipe == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "recipe not found"})
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	recipe, err := h.store.Create(auth.HouseholdID(r.Context()), req.toModel())
	if err != nil {
		h.logger.Error("create recipe", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create recipe"})
		return
	}

	h.broadcast("created", recipe.ID)
	writeJSON(w, http.StatusCreated, recipe)
}

func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.store.GetByID(id, householdID)
	if err != nil {
		h.logger.Error("get recipe", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get recipe"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "recipe not found"})
		return
	}

	var req recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	recipe, err := h.store.Update(id, householdID, req.toModel())
	if err != nil {
		h.logger.Error("update recipe", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update recipe"})
		return
	}

	h.broadcast("updated", recipe.ID)
	writeJSON(w, http.StatusOK, recipe)
}

func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.store.GetByID(id, householdID)
	if err != nil {
		h.logger.Error("get recipe", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get recipe"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "recipe not found"})
		return
	}

	if err := h.store.Delete(id, householdID); err != nil {
		h.logger.Error("delete recipe", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete recipe"})
		return
	}

	h.broadcast("deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecipeHandler) broadcast(action string, id int64) {
	if h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage("recipe", action, id, nil))
	}
}

func lowercaseList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
