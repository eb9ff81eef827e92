package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/dukerupert/elevenses/internal/auth"
	"github.com/dukerupert/elevenses/internal/model"
	"github.com/dukerupert/elevenses/internal/store"
	"github.com/dukerupert/elevenses/internal/websocket"
	"golang.org/x/crypto/bcrypt"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type FamilyMemberHandler struct {
	store  *store.FamilyMemberStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewFamilyMemberHandler(s *store.FamilyMemberStore, hub *websocket.Hub, logger *slog.Logger) *FamilyMemberHandler {
	return &FamilyMemberHandler{store: s, hub: hub, logger: logger}
}

// memberRequest carries the editable fields of a family member, dietary
// profile included. List fields arrive as plain string arrays.
type memberRequest struct {
	Name          string   `json:"name"`
	Color         string   `json:"color"`
	AvatarEmoji   string   `json:"avatar_emoji"`
	DietaryStyle  string   `json:"dietary_style"`
	Allergies     []string `json:"allergies"`
	Dislikes      []string `json:"dislikes"`
	FavoriteFoods []string `json:"favorite_foods"`
	SpiceTolerant bool     `json:"spice_tolerant"`
}

// validate normalizes the request in place and returns a client-facing
// message when a field is unusable.
func (req *memberRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.Color != "" && !hexColorRegexp.MatchString(req.Color) {
		return "color must be a hex color (e.g. #FF0000)"
	}
	switch req.DietaryStyle {
	case "":
		req.DietaryStyle = model.DietOmnivore
	case model.DietOmnivore, model.DietVegetarian, model.DietVegan:
	default:
		return "dietary_style must be omnivore, vegetarian, or vegan"
	}
	req.Allergies = cleanList(req.Allergies)
	req.Dislikes = cleanList(req.Dislikes)
	req.FavoriteFoods = cleanList(req.FavoriteFoods)
	return ""
}

func (req *memberRequest) toModel() *model.FamilyMember {
	return &model.FamilyMember{
		Name:          req.Name,
		Color:         req.Color,
		AvatarEmoji:   req.AvatarEmoji,
		DietaryStyle:  req.DietaryStyle,
		Allergies:     req.Allergies,
		Dislikes:      req.Dislikes,
		FavoriteFoods: req.FavoriteFoods,
		SpiceTolerant: req.SpiceTolerant,
	}
}

// loadMember resolves the id path parameter to a member of the caller's
// household. On failure it writes the response and returns nil.
func (h *FamilyMemberHandler) loadMember(w http.ResponseWriter, r *http.Request) *model.FamilyMember {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil
	}
	member, err := h.store.GetByID(id, auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("get family member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get family member"})
		return nil
	}
	if member == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "family member not found"})
		return nil
	}
	return member
}

// nameTaken enforces unique member names per household. On conflict or
// lookup failure it writes the response and reports true.
func (h *FamilyMemberHandler) nameTaken(w http.ResponseWriter, householdID int64, name string, excludeID int64) bool {
	exists, err := h.store.NameExists(householdID, name, excludeID)
	if err != nil {
		h.logger.Error("check member name", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check name"})
		return true
	}
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a family member with that name already exists"})
		return true
	}
	return false
}

func (h *FamilyMemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.List(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list family members", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list family members"})
		return
	}
	if members == nil {
		members = []model.FamilyMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *FamilyMemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	member := h.loadMember(w, r)
	if member == nil {
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *FamilyMemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	if req.Color == "" {
		req.Color = "#3B82F6"
	}
	if req.AvatarEmoji == "" {
		req.AvatarEmoji = "😀"
	}
	if h.nameTaken(w, householdID, req.Name, 0) {
		return
	}

	member, err := h.store.Create(householdID, req.toModel())
	if err != nil {
		h.logger.Error("create family member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create family member"})
		return
	}

	h.broadcast("created", member.ID)
	writeJSON(w, http.StatusCreated, member)
}

func (h *FamilyMemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.loadMember(w, r)
	if existing == nil {
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	if req.Color == "" {
		req.Color = existing.Color
	}
	if req.AvatarEmoji == "" {
		req.AvatarEmoji = existing.AvatarEmoji
	}
	if h.nameTaken(w, existing.HouseholdID, req.Name, existing.ID) {
		return
	}

	member, err := h.store.Update(existing.ID, existing.HouseholdID, req.toModel())
	if err != nil {
		h.logger.Error("update family member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update family member"})
		return
	}

	h.broadcast("updated", member.ID)
	writeJSON(w, http.StatusOK, member)
}

func (h *FamilyMemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := h.loadMember(w, r)
	if existing == nil {
		return
	}

	if err := h.store.Delete(existing.ID, existing.HouseholdID); err != nil {
		h.logger.Error("delete family member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete family member"})
		return
	}

	h.broadcast("deleted", existing.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *FamilyMemberHandler) UpdateSortOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ids are required"})
		return
	}

	if err := h.store.UpdateSortOrder(auth.HouseholdID(r.Context()), req.IDs); err != nil {
		h.logger.Error("update sort order", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update sort order"})
		return
	}

	h.broadcast("sorted", 0)
	w.WriteHeader(http.StatusNoContent)
}

func (h *FamilyMemberHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	existing := h.loadMember(w, r)
	if existing == nil {
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PIN must be exactly 4 digits"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash pin", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to set PIN"})
		return
	}

	if err := h.store.SetPIN(existing.ID, existing.HouseholdID, string(hash)); err != nil {
		h.logger.Error("set pin", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to set PIN"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

func (h *FamilyMemberHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.store.ClearPIN(id, auth.HouseholdID(r.Context())); err != nil {
		h.logger.Error("clear pin", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear PIN"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin cleared"})
}

func (h *FamilyMemberHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	hash, err := h.store.GetPINHash(id, auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("get pin hash", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get PIN"})
		return
	}
	if hash == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no PIN set for this member"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "incorrect PIN"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (h *FamilyMemberHandler) broadcast(action string, id int64) {
	if h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage("family_member", action, id, nil))
	}
}

// cleanList trims entries and drops blanks; nil stays nil-safe for JSON
// encoding as [].
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
