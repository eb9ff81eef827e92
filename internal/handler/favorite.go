package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/elevenses/internal/auth"
	"github.com/dukerupert/elevenses/internal/model"
	"github.com/dukerupert/elevenses/internal/store"
)

type FavoriteHandler struct {
	favorites *store.FavoriteStore
	members   *store.FamilyMemberStore
	logger    *slog.Logger
}

func NewFavoriteHandler(fs *store.FavoriteStore, ms *store.FamilyMemberStore, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{favorites: fs, members: ms, logger: logger}
}

// List handles GET /api/family-members/{id}/favorites
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	memberID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	member, err := h.members.GetByID(memberID, householdID)
	if err != nil {
		h.logger.Error("get family member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get family member"})
		return
	}
	if member == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "family member not found"})
		return
	}

	favorites, err := h.favorites.ListByMember(householdID, memberID)
	if err != nil {
		h.logger.Error("list favorites", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list favorites"})
		return
	}
	if favorites == nil {
		favorites = []model.Favorite{}
	}
	writeJSON(w, http.StatusOK, favorites)
}

// Add handles POST /api/family-members/{id}/favorites
func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	memberID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		RecipeID int64 `json:"recipe_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.RecipeID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "recipe_id is required"})
		return
	}

	if err := h.favorites.Add(householdID, memberID, req.RecipeID); err != nil {
		h.logger.Error("add favorite", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to add favorite"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Remove handles DELETE /api/family-members/{id}/favorites/{recipe_id}
func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	memberID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	recipeID, err := strconv.ParseInt(r.PathValue("recipe_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid recipe id"})
		return
	}

	if err := h.favorites.Remove(householdID, memberID, recipeID); err != nil {
		h.logger.Error("remove favorite", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to remove favorite"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
