package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/elevenses/internal/auth"
	"github.com/dukerupert/elevenses/internal/model"
	"github.com/dukerupert/elevenses/internal/push"
	"github.com/dukerupert/elevenses/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	service   *push.Service
	logger    *slog.Logger
}

// NewPushHandler wires the push endpoints. service may be nil when VAPID
// keys are not configured; subscription endpoints then answer 503.
func NewPushHandler(ps *store.PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, service: svc, logger: logger}
}

// subscribeRequest mirrors PushSubscription.toJSON() from the browser, plus
// an optional device label.
type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	DeviceName string `json:"device_name"`
}

func (h *PushHandler) configured(w http.ResponseWriter) bool {
	if h.service == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "push notifications are not configured"})
		return false
	}
	return true
}

// writeSlice writes items as a JSON array, substituting [] for a nil slice
// so clients never see null.
func writeSlice[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}

	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "endpoint and keys are required"})
		return
	}

	sub, err := h.pushStore.SaveSubscription(userID, householdID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("save push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save subscription"})
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.pushStore.DeleteSubscription(id, auth.HouseholdID(r.Context())); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete subscription"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByUser(auth.UserID(r.Context()), auth.HouseholdID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list subscriptions"})
		return
	}
	writeSlice(w, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// GetPreferences handles GET /api/push/preferences
func (h *PushHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.pushStore.ListPreferences(auth.UserID(r.Context()), auth.HouseholdID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get preferences"})
		return
	}
	writeSlice(w, prefs)
}

type updatePreferencesRequest struct {
	Preferences []prefItem `json:"preferences"`
}

type prefItem struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// UpdatePreferences handles PUT /api/push/preferences
func (h *PushHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := auth.HouseholdID(r.Context())

	var req updatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	// Reject the whole batch before applying any of it.
	for _, p := range req.Preferences {
		if p.Type != model.NotifTypeDinnerReminder && p.Type != model.NotifTypePlanReady {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown notification type: " + p.Type})
			return
		}
	}

	for _, p := range req.Preferences {
		if err := h.pushStore.SetPreference(userID, householdID, p.Type, p.Enabled); err != nil {
			h.logger.Error("set push preference", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update preferences"})
			return
		}
	}

	prefs, err := h.pushStore.ListPreferences(userID, householdID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get preferences"})
		return
	}
	writeSlice(w, prefs)
}

// TestNotification handles POST /api/push/test
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}

	subs, err := h.pushStore.ListByUser(auth.UserID(r.Context()), auth.HouseholdID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list subscriptions"})
		return
	}

	payload := push.Payload{
		Title: "Elevenses",
		Body:  "Push notifications are working. We'll nudge you when dinner plans are ready.",
		URL:   "/settings",
		Tag:   "test",
	}

	sent := 0
	for _, sub := range subs {
		if err := h.service.Send(&sub, payload); err != nil {
			h.logger.Error("test push send", "error", err)
			continue
		}
		sent++
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
