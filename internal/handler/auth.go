package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/elevenses/internal/auth"
	"github.com/dukerupert/elevenses/internal/email"
	"github.com/dukerupert/elevenses/internal/model"
	"github.com/dukerupert/elevenses/internal/store"
)

const (
	sessionCookieName = "elevenses_session"
	sessionMaxAge     = 90 * 24 * 60 * 60
	maxCodeAttempts   = 5
)

type AuthHandler struct {
	users      *store.UserStore
	households *store.HouseholdStore
	sessions   *store.SessionStore
	magicLinks *store.MagicLinkStore
	email      *email.Client
	logger     *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	hs *store.HouseholdStore,
	ss *store.SessionStore,
	mls *store.MagicLinkStore,
	ec *email.Client,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:      us,
		households: hs,
		sessions:   ss,
		magicLinks: mls,
		email:      ec,
		logger:     logger,
	}
}

// checkEmailResponse is the enumeration-safe answer to login and register:
// the same body goes back whether or not the address is known.
func checkEmailResponse(w http.ResponseWriter, emailAddr string) {
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "check your email for a code",
		"email":   emailAddr,
	})
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email         string `json:"email"`
		Name          string `json:"name"`
		HouseholdName string `json:"household_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Email = normalizeEmail(req.Email)
	req.HouseholdName = strings.TrimSpace(req.HouseholdName)
	if req.Email == "" || req.HouseholdName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and household_name are required"})
		return
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if existing != nil {
		// Existing address gets the same response, no new account.
		checkEmailResponse(w, req.Email)
		return
	}

	household, err := h.households.Create(req.HouseholdName)
	if err != nil {
		h.logger.Error("create household", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	user, err := h.users.Create(req.Email, strings.TrimSpace(req.Name))
	if err != nil {
		h.logger.Error("create user", "error", err)
		h.cleanupHousehold(household.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if _, err := h.households.AddMember(household.ID, user.ID, auth.RoleAdmin); err != nil {
		h.logger.Error("add member", "error", err)
		h.cleanupHousehold(household.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if err := h.households.SeedDefaults(household.ID); err != nil {
		h.logger.Error("seed defaults", "error", err)
		h.cleanupHousehold(household.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	ml, err := h.magicLinks.Create(req.Email, model.PurposeRegister, &household.ID)
	if err != nil {
		h.logger.Error("create auth code", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if err := h.email.SendAuthCode(req.Email, ml.Token, model.PurposeRegister, req.HouseholdName); err != nil {
		h.logger.Error("send auth code", "error", err)
	}

	checkEmailResponse(w, req.Email)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}

	// Unknown addresses get the same 202 so callers cannot probe for accounts.
	defer checkEmailResponse(w, req.Email)

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		return
	}
	if user == nil {
		return
	}

	households, err := h.households.ListHouseholdsForUser(user.ID)
	if err != nil || len(households) == 0 {
		h.logger.Error("login households", "error", err)
		return
	}

	ml, err := h.magicLinks.Create(req.Email, model.PurposeLogin, nil)
	if err != nil {
		h.logger.Error("create auth code", "error", err)
		return
	}

	if err := h.email.SendAuthCode(req.Email, ml.Token, model.PurposeLogin, ""); err != nil {
		h.logger.Error("send auth code", "error", err)
	}
}

// validateCode checks the code for the given email, handling attempts and
// expiry. Returns the magic link on success, or a message for the caller on
// failure.
func (h *AuthHandler) validateCode(emailAddr, code string) (*model.MagicLink, string) {
	if emailAddr == "" || code == "" {
		return nil, "email and code are required"
	}

	// The latest valid code carries the attempt counter.
	latest, err := h.magicLinks.GetLatestByEmail(emailAddr)
	if err != nil {
		h.logger.Error("validate code lookup", "error", err)
		return nil, "internal error"
	}
	if latest == nil {
		return nil, "code has expired or already been used, request a new one"
	}

	if latest.Attempts >= maxCodeAttempts {
		h.magicLinks.MarkUsed(latest.ID)
		return nil, "too many incorrect attempts, request a new code"
	}

	if latest.Token != code {
		newAttempts, err := h.magicLinks.IncrementAttempts(latest.ID)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if newAttempts >= maxCodeAttempts {
			h.magicLinks.MarkUsed(latest.ID)
			return nil, "too many incorrect attempts, request a new code"
		}
		return nil, "incorrect code"
	}

	if err := h.magicLinks.MarkUsed(latest.ID); err != nil {
		h.logger.Error("mark used", "error", err)
		return nil, "internal error"
	}

	return latest, ""
}

type sessionResponse struct {
	User        *model.User       `json:"user"`
	HouseholdID int64             `json:"household_id"`
	Households  []model.Household `json:"households"`
}

// Verify handles POST /api/auth/verify, exchanging an emailed code for a
// session cookie.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Email = normalizeEmail(req.Email)
	req.Code = strings.TrimSpace(req.Code)

	ml, errMsg := h.validateCode(req.Email, req.Code)
	if errMsg != "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": errMsg})
		return
	}

	user, err := h.users.GetByEmail(ml.Email)
	if err != nil || user == nil {
		h.logger.Error("verify user lookup", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "user not found"})
		return
	}

	households, err := h.households.ListHouseholdsForUser(user.ID)
	if err != nil || len(households) == 0 {
		h.logger.Error("verify households", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no household found"})
		return
	}

	// A register or invite code pins the household; otherwise first wins.
	householdID := households[0].ID
	if ml.HouseholdID != nil {
		householdID = *ml.HouseholdID
	}

	sess, err := h.sessions.Create(user.ID, householdID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	h.setSessionCookie(w, r, sess.Token)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:        user,
		HouseholdID: householdID,
		Households:  households,
	})
}

// Invite handles POST /api/auth/invite (admin only).
func (h *AuthHandler) Invite(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if ac.Role != auth.RoleAdmin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin access required"})
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}

	household, err := h.households.GetByID(ac.HouseholdID)
	if err != nil || household == nil {
		h.logger.Error("invite household lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	ml, err := h.magicLinks.Create(req.Email, model.PurposeInvite, &ac.HouseholdID)
	if err != nil {
		h.logger.Error("create invite code", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if err := h.email.SendAuthCode(req.Email, ml.Token, model.PurposeInvite, household.Name); err != nil {
		h.logger.Error("send invite email", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to send invitation"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "invitation sent",
		"email":   req.Email,
	})
}

// InviteAccept handles POST /api/auth/invite/accept. Unlike Verify it
// creates the user on first sight, since invitees may not have an account.
func (h *AuthHandler) InviteAccept(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Email = normalizeEmail(req.Email)
	req.Code = strings.TrimSpace(req.Code)

	ml, errMsg := h.validateCode(req.Email, req.Code)
	if errMsg != "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": errMsg})
		return
	}

	if ml.Purpose != model.PurposeInvite || ml.HouseholdID == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "this code is not a valid invitation"})
		return
	}

	user, err := h.users.GetByEmail(ml.Email)
	if err != nil {
		h.logger.Error("invite user lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if user == nil {
		user, err = h.users.Create(ml.Email, strings.TrimSpace(req.Name))
		if err != nil {
			h.logger.Error("create invite user", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
	}

	if _, err := h.households.AddMember(*ml.HouseholdID, user.ID, auth.RoleMember); err != nil {
		// Re-accepting an invite is fine as long as membership exists.
		existing, _ := h.households.GetMember(*ml.HouseholdID, user.ID)
		if existing == nil {
			h.logger.Error("add invite member", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
	}

	sess, err := h.sessions.Create(user.ID, *ml.HouseholdID)
	if err != nil {
		h.logger.Error("create invite session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	households, err := h.households.ListHouseholdsForUser(user.ID)
	if err != nil {
		h.logger.Error("invite households", "error", err)
		households = nil
	}

	h.setSessionCookie(w, r, sess.Token)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:        user,
		HouseholdID: *ml.HouseholdID,
		Households:  households,
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if sess, err := h.sessions.GetByToken(cookie.Value); err == nil && sess != nil {
			h.sessions.Delete(sess.ID)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	user, err := h.users.GetByID(ac.UserID)
	if err != nil || user == nil {
		h.logger.Error("me user lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":         user,
		"household_id": ac.HouseholdID,
		"role":         ac.Role,
	})
}

// Households handles GET /api/auth/households
func (h *AuthHandler) Households(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	households, err := h.households.ListHouseholdsForUser(ac.UserID)
	if err != nil {
		h.logger.Error("list households", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if households == nil {
		households = []model.Household{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"households": households,
		"current":    ac.HouseholdID,
	})
}

// SwitchHousehold handles POST /api/auth/households/switch
func (h *AuthHandler) SwitchHousehold(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req struct {
		HouseholdID int64 `json:"household_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.HouseholdID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "household_id is required"})
		return
	}

	member, err := h.households.GetMember(req.HouseholdID, ac.UserID)
	if err != nil || member == nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not a member of this household"})
		return
	}

	if err := h.sessions.UpdateHouseholdID(ac.SessionID, req.HouseholdID); err != nil {
		h.logger.Error("switch household", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"household_id": req.HouseholdID,
		"role":         member.Role,
	})
}

// UpdateMe handles PUT /api/auth/me
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}

	other, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("update me lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if other != nil && other.ID != ac.UserID {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email is already in use"})
		return
	}

	user, err := h.users.Update(ac.UserID, req.Email, req.Name)
	if err != nil || user == nil {
		h.logger.Error("update me", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// RenameHousehold handles PUT /api/auth/households (admin only).
func (h *AuthHandler) RenameHousehold(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	household, err := h.households.Update(ac.HouseholdID, req.Name)
	if err != nil || household == nil {
		h.logger.Error("rename household", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"household": household})
}

// memberResponse joins a membership row with the user behind it.
type memberResponse struct {
	UserID   int64     `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Members handles GET /api/auth/households/members
func (h *AuthHandler) Members(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	members, err := h.households.ListMembers(ac.HouseholdID)
	if err != nil {
		h.logger.Error("list household members", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		user, err := h.users.GetByID(m.UserID)
		if err != nil {
			h.logger.Error("member user lookup", "error", err, "user_id", m.UserID)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if user == nil {
			continue
		}
		out = append(out, memberResponse{
			UserID:   user.ID,
			Name:     user.Name,
			Email:    user.Email,
			Role:     m.Role,
			JoinedAt: m.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"members": out})
}

// UpdateMemberRole handles PUT /api/auth/households/members/{id}/role
// (admin only). The path id is the member's user id.
func (h *AuthHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	userID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid member id"})
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Role = strings.TrimSpace(req.Role)
	if req.Role != auth.RoleAdmin && req.Role != auth.RoleMember {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role must be admin or member"})
		return
	}

	member, err := h.households.GetMember(ac.HouseholdID, userID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if member == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}

	// Demoting the only admin would lock everyone out of admin actions.
	if member.Role == auth.RoleAdmin && req.Role == auth.RoleMember {
		admins, err := h.adminCount(ac.HouseholdID)
		if err != nil {
			h.logger.Error("count admins", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if admins <= 1 {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "household must keep at least one admin"})
			return
		}
	}

	updated, err := h.households.UpdateMemberRole(ac.HouseholdID, userID, req.Role)
	if err != nil || updated == nil {
		h.logger.Error("update member role", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"member": updated})
}

// RemoveMember handles DELETE /api/auth/households/members/{id} (admin
// only). The path id is the member's user id.
func (h *AuthHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	userID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid member id"})
		return
	}

	member, err := h.households.GetMember(ac.HouseholdID, userID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if member == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}

	if member.Role == auth.RoleAdmin {
		admins, err := h.adminCount(ac.HouseholdID)
		if err != nil {
			h.logger.Error("count admins", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if admins <= 1 {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "household must keep at least one admin"})
			return
		}
	}

	if err := h.households.RemoveMember(ac.HouseholdID, userID); err != nil {
		h.logger.Error("remove member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// adminCount reports how many admins the household has.
func (h *AuthHandler) adminCount(householdID int64) (int, error) {
	members, err := h.households.ListMembers(householdID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range members {
		if m.Role == auth.RoleAdmin {
			n++
		}
	}
	return n, nil
}

// cleanupHousehold removes a household created by a registration that
// failed partway, so the row does not linger with no members.
func (h *AuthHandler) cleanupHousehold(id int64) {
	if err := h.households.Delete(id); err != nil {
		h.logger.Error("cleanup household", "error", err, "household_id", id)
	}
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
