package handler

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/elevenses/internal/auth"
	"github.com/dukerupert/elevenses/internal/backup"
	"github.com/dukerupert/elevenses/internal/store"
	"github.com/dukerupert/elevenses/internal/websocket"
)

type SettingsHandler struct {
	settings      *store.SettingsStore
	backupManager *backup.Manager
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, bm *backup.Manager, hub *websocket.Hub, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: ss, backupManager: bm, hub: hub, logger: logger}
}

func (h *SettingsHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// GetPlan handles GET /api/settings/plan
func (h *SettingsHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetPlanSettings(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("get plan settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdatePlan handles PUT /api/settings/plan
func (h *SettingsHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := validatePlanSettings(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	for key, value := range req {
		if err := h.settings.Set(householdID, key, value); err != nil {
			h.logger.Error("set plan setting", "key", key, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save settings"})
			return
		}
	}

	h.broadcast(websocket.NewMessage("settings", "updated", 0, nil))

	settings, err := h.settings.GetPlanSettings(householdID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func validatePlanSettings(settings map[string]string) error {
	allowedKeys := map[string]bool{
		"weekday_time_budget":  true,
		"weekend_time_budget":  true,
		"vegetarian_ratio":     true,
		"dinner_reminder_hour": true,
	}

	for key, value := range settings {
		if !allowedKeys[key] {
			return fmt.Errorf("unknown setting: %s", key)
		}

		switch key {
		case "weekday_time_budget", "weekend_time_budget":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("%s must be a non-negative number of minutes", key)
			}
		case "vegetarian_ratio":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > 100 {
				return fmt.Errorf("vegetarian_ratio must be 0-100")
			}
		case "dinner_reminder_hour":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > 23 {
				return fmt.Errorf("dinner_reminder_hour must be 0-23")
			}
		}
	}
	return nil
}

// GetBackup handles GET /api/settings/backup. The salt never leaves the
// server; callers only learn whether a passphrase was configured.
func (h *SettingsHandler) GetBackup(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	settings, err := h.settings.GetBackupSettings(householdID)
	if err != nil {
		h.logger.Error("get backup settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
		return
	}

	_, passphraseSet := settings["backup_passphrase_salt"]
	delete(settings, "backup_passphrase_salt")

	writeJSON(w, http.StatusOK, map[string]any{
		"settings":       settings,
		"passphrase_set": passphraseSet,
		"key_cached":     h.backupManager != nil && h.backupManager.HasCachedKey(householdID),
	})
}

// UpdateBackup handles PUT /api/settings/backup
func (h *SettingsHandler) UpdateBackup(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := validateBackupSettings(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	for key, value := range req {
		if err := h.settings.Set(householdID, key, value); err != nil {
			h.logger.Error("set backup setting", "key", key, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save settings"})
			return
		}
	}

	h.broadcast(websocket.NewMessage("settings", "updated", 0, nil))
	w.WriteHeader(http.StatusNoContent)
}

func validateBackupSettings(settings map[string]string) error {
	allowedKeys := map[string]bool{
		"backup_enabled":        true,
		"backup_schedule_hour":  true,
		"backup_retention_days": true,
	}

	for key, value := range settings {
		if !allowedKeys[key] {
			return fmt.Errorf("unknown setting: %s", key)
		}

		switch key {
		case "backup_enabled":
			if value != "true" && value != "false" {
				return fmt.Errorf("backup_enabled must be \"true\" or \"false\"")
			}
		case "backup_schedule_hour":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > 23 {
				return fmt.Errorf("backup_schedule_hour must be 0-23")
			}
		case "backup_retention_days":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 365 {
				return fmt.Errorf("backup_retention_days must be 1-365")
			}
		}
	}
	return nil
}

// SetBackupPassphrase handles PUT /api/settings/backup/passphrase. A new
// passphrase gets a fresh salt; old archives stay restorable because each
// one carries its salt in the header.
func (h *SettingsHandler) SetBackupPassphrase(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.Passphrase) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "passphrase must be at least 8 characters"})
		return
	}

	salt, err := backup.GenerateSalt()
	if err != nil {
		h.logger.Error("generate salt", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if err := h.settings.Set(householdID, "backup_passphrase_salt", hex.EncodeToString(salt)); err != nil {
		h.logger.Error("save passphrase salt", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save settings"})
		return
	}

	if h.backupManager != nil {
		h.backupManager.CacheKey(householdID, req.Passphrase, salt)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"passphrase_set": true})
}
