package handler

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/elevenses/internal/auth"
	"github.com/dukerupert/elevenses/internal/backup"
	"github.com/dukerupert/elevenses/internal/model"
	"github.com/dukerupert/elevenses/internal/store"
)

const backupListLimit = 50

type BackupHandler struct {
	manager  *backup.Manager
	backups  *store.BackupStore
	settings *store.SettingsStore
	logger   *slog.Logger
}

func NewBackupHandler(bm *backup.Manager, bs *store.BackupStore, ss *store.SettingsStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: bm, backups: bs, settings: ss, logger: logger}
}

func (h *BackupHandler) configured(w http.ResponseWriter) bool {
	if h.manager == nil || h.manager.Status().State == backup.StateDisabled {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backups are not configured"})
		return false
	}
	return true
}

// List handles GET /api/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	backups, err := h.backups.List(householdID, backupListLimit)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list backups"})
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}

	// The page is capped, so report the uncapped totals alongside it.
	totalCount, totalSize, err := h.backups.Usage(householdID)
	if err != nil {
		h.logger.Error("backup usage", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"backups":          backups,
		"total_count":      totalCount,
		"total_size_bytes": totalSize,
	})
}

// Status handles GET /api/backups/status
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	st := backup.Status{State: backup.StateDisabled}
	if h.manager != nil {
		st = h.manager.Status()
	}

	// The manager only remembers runs from this process. The store knows
	// the last completed backup across restarts.
	if st.LastBackup == nil {
		if latest, err := h.backups.LatestCompleted(householdID); err != nil {
			h.logger.Error("latest backup lookup", "error", err)
		} else if latest != nil {
			st.LastBackup = latest.CompletedAt
		}
	}

	writeJSON(w, http.StatusOK, st)
}

// Run handles POST /api/backups/run. A successful run also caches the
// passphrase so the scheduler can keep backing up without it.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}

	householdID := auth.HouseholdID(r.Context())

	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Passphrase == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "passphrase is required"})
		return
	}

	settings, err := h.settings.GetBackupSettings(householdID)
	if err != nil {
		h.logger.Error("get backup settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	saltHex := settings["backup_passphrase_salt"]
	if saltHex == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "set a backup passphrase first"})
		return
	}

	backupID, err := h.manager.RunNow(r.Context(), householdID, req.Passphrase)
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "backup failed"})
		return
	}

	if salt, err := hex.DecodeString(saltHex); err == nil {
		h.manager.CacheKey(householdID, req.Passphrase, salt)
	}

	record, err := h.backups.GetByID(backupID, householdID)
	if err != nil || record == nil {
		writeJSON(w, http.StatusOK, map[string]int64{"backup_id": backupID})
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// Restore handles POST /api/backups/{id}/restore. On success the process
// replaces its database file and exits for the supervisor to restart, so no
// response body ever goes out.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}

	householdID := auth.HouseholdID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Passphrase == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "passphrase is required"})
		return
	}

	if err := h.manager.Restore(r.Context(), id, householdID, req.Passphrase); err != nil {
		h.logger.Error("restore backup", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "restore failed: " + err.Error()})
		return
	}
}

// Download handles GET /api/backups/{id}/download, streaming the encrypted
// archive as stored.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}

	householdID := auth.HouseholdID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	record, err := h.backups.GetByID(id, householdID)
	if err != nil {
		h.logger.Error("get backup", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get backup"})
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "backup not found"})
		return
	}

	body, size, err := h.manager.Download(r.Context(), id, householdID)
	if err != nil {
		h.logger.Error("download backup", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "download failed"})
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Filename))
	if size > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Error("stream backup", "id", id, "error", err)
	}
}
