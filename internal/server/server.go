package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/elevenses/internal/backup"
	"github.com/dukerupert/elevenses/internal/email"
	"github.com/dukerupert/elevenses/internal/handler"
	"github.com/dukerupert/elevenses/internal/mealplan"
	"github.com/dukerupert/elevenses/internal/middleware"
	"github.com/dukerupert/elevenses/internal/push"
	"github.com/dukerupert/elevenses/internal/store"
	ws "github.com/dukerupert/elevenses/internal/websocket"
)

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	familyMemberH  *handler.FamilyMemberHandler
	recipeH        *handler.RecipeHandler
	favoriteH      *handler.FavoriteHandler
	mealPlanH      *handler.MealPlanHandler
	settingsH      *handler.SettingsHandler
	backupH        *handler.BackupHandler
	authH          *handler.AuthHandler
	pushH          *handler.PushHandler
	sessionStore   *store.SessionStore
	magicLinkStore *store.MagicLinkStore
	householdStore *store.HouseholdStore
	pushStore      *store.PushStore
	rateLimiter    *middleware.RateLimiter
	backupManager  *backup.Manager
	pushService    *push.Service
	pushScheduler  *push.Scheduler
	logger         *slog.Logger
}

// New wires stores, services, and handlers. parser and ranker may be nil
// when no language service is configured; the plan endpoints degrade
// accordingly.
func New(
	db *sql.DB,
	emailClient *email.Client,
	parser handler.WeekParser,
	ranker mealplan.Ranker,
	backupCfg backup.Config,
	pushCfg push.Config,
	logger *slog.Logger,
) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	familyMemberStore := store.NewFamilyMemberStore(db)
	recipeStore := store.NewRecipeStore(db)
	favoriteStore := store.NewFavoriteStore(db)
	planStore := store.NewMealPlanStore(db)
	settingsStore := store.NewSettingsStore(db)

	// Auth stores
	userStore := store.NewUserStore(db)
	householdStore := store.NewHouseholdStore(db)
	sessionStore := store.NewSessionStore(db)
	magicLinkStore := store.NewMagicLinkStore(db)

	// Backup store + manager
	backupStore := store.NewBackupStore(db)
	backupMgr := backup.NewManager(backupCfg, db, backupStore, settingsStore, logger, func(st backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(st.State),
			Extra: map[string]any{
				"in_progress": st.InProgress,
				"error":       st.Error,
			},
		})
	})

	// Push notification service + scheduler
	pushStore := store.NewPushStore(db)
	var pushSvc *push.Service
	var pushSched *push.Scheduler
	if pushCfg.VAPIDPublicKey != "" && pushCfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(pushCfg.VAPIDPublicKey, pushCfg.VAPIDPrivateKey)
		pushSched = push.NewScheduler(pushSvc, pushStore, planStore, settingsStore, logger.With("component", "push"))
	}

	return &Server{
		db:            db,
		hub:           hub,
		familyMemberH: handler.NewFamilyMemberHandler(familyMemberStore, hub, logger.With("component", "family_member")),
		recipeH:       handler.NewRecipeHandler(recipeStore, hub, logger.With("component", "recipe")),
		favoriteH:     handler.NewFavoriteHandler(favoriteStore, familyMemberStore, logger.With("component", "favorite")),
		mealPlanH: handler.NewMealPlanHandler(
			planStore, recipeStore, familyMemberStore, settingsStore,
			mealplan.New(logger), parser, ranker, pushSched, hub,
			logger.With("component", "meal_plan"),
		),
		settingsH:      handler.NewSettingsHandler(settingsStore, backupMgr, hub, logger.With("component", "settings")),
		backupH:        handler.NewBackupHandler(backupMgr, backupStore, settingsStore, logger.With("component", "backup")),
		authH:          handler.NewAuthHandler(userStore, householdStore, sessionStore, magicLinkStore, emailClient, logger.With("component", "auth")),
		pushH:          handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push")),
		sessionStore:   sessionStore,
		magicLinkStore: magicLinkStore,
		householdStore: householdStore,
		pushStore:      pushStore,
		rateLimiter:    middleware.NewRateLimiter(),
		backupManager:  backupMgr,
		pushService:    pushSvc,
		pushScheduler:  pushSched,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// MagicLinkStore returns the magic link store for cleanup tasks.
func (s *Server) MagicLinkStore() *store.MagicLinkStore {
	return s.magicLinkStore
}

// RateLimiter returns the rate limiter so the background sweep can reach it.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// PushStore returns the push store for cleanup tasks.
func (s *Server) PushStore() *store.PushStore {
	return s.pushStore
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the push notification scheduler, nil when VAPID
// keys are not configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes. Code issuance and redemption are rate limited per IP.
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/verify", s.rateLimitedHandler(s.authH.Verify))
	outerMux.HandleFunc("POST /api/auth/invite/accept", s.rateLimitedHandler(s.authH.InviteAccept))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.householdStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAdmin(h)
	}

	// Auth routes that require authentication
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)
	mux.HandleFunc("PUT /api/auth/me", s.authH.UpdateMe)
	mux.HandleFunc("GET /api/auth/households", s.authH.Households)
	mux.Handle("PUT /api/auth/households", adminOnly(s.authH.RenameHousehold))
	mux.HandleFunc("POST /api/auth/households/switch", s.authH.SwitchHousehold)
	mux.HandleFunc("POST /api/auth/invite", s.authH.Invite)

	// Household membership management
	mux.HandleFunc("GET /api/auth/households/members", s.authH.Members)
	mux.Handle("PUT /api/auth/households/members/{id}/role", adminOnly(s.authH.UpdateMemberRole))
	mux.Handle("DELETE /api/auth/households/members/{id}", adminOnly(s.authH.RemoveMember))

	// Family member API routes
	mux.HandleFunc("GET /api/family-members", s.familyMemberH.List)
	mux.HandleFunc("POST /api/family-members", s.familyMemberH.Create)
	mux.HandleFunc("GET /api/family-members/{id}", s.familyMemberH.Get)
	mux.HandleFunc("PUT /api/family-members/{id}", s.familyMemberH.Update)
	mux.HandleFunc("DELETE /api/family-members/{id}", s.familyMemberH.Delete)
	mux.HandleFunc("PUT /api/family-members/sort", s.familyMemberH.UpdateSortOrder)

	// PIN routes
	mux.HandleFunc("POST /api/family-members/{id}/pin", s.familyMemberH.SetPIN)
	mux.HandleFunc("DELETE /api/family-members/{id}/pin", s.familyMemberH.ClearPIN)
	mux.HandleFunc("POST /api/family-members/{id}/pin/verify", s.familyMemberH.VerifyPIN)

	// Favorites, per family member
	mux.HandleFunc("GET /api/family-members/{id}/favorites", s.favoriteH.List)
	mux.HandleFunc("POST /api/family-members/{id}/favorites", s.favoriteH.Add)
	mux.HandleFunc("DELETE /api/family-members/{id}/favorites/{recipe_id}", s.favoriteH.Remove)

	// Recipe API routes
	mux.HandleFunc("GET /api/recipes", s.recipeH.List)
	mux.HandleFunc("POST /api/recipes", s.recipeH.Create)
	mux.HandleFunc("GET /api/recipes/{id}", s.recipeH.Get)
	mux.HandleFunc("PUT /api/recipes/{id}", s.recipeH.Update)
	mux.HandleFunc("DELETE /api/recipes/{id}", s.recipeH.Delete)

	// Meal plan API routes
	mux.HandleFunc("POST /api/meal-plans/generate", s.mealPlanH.Generate)
	mux.HandleFunc("POST /api/meal-plans/parse", s.mealPlanH.ParseSchedule)
	mux.HandleFunc("GET /api/meal-plans", s.mealPlanH.List)
	mux.HandleFunc("GET /api/meal-plans/{id}", s.mealPlanH.Get)
	mux.HandleFunc("DELETE /api/meal-plans/{id}", s.mealPlanH.Delete)
	mux.HandleFunc("POST /api/meals/match", s.mealPlanH.Match)

	// Settings API routes
	mux.HandleFunc("GET /api/settings/plan", s.settingsH.GetPlan)
	mux.HandleFunc("PUT /api/settings/plan", s.settingsH.UpdatePlan)
	mux.HandleFunc("GET /api/settings/backup", s.settingsH.GetBackup)
	mux.Handle("PUT /api/settings/backup", adminOnly(s.settingsH.UpdateBackup))
	mux.Handle("PUT /api/settings/backup/passphrase", adminOnly(s.settingsH.SetBackupPassphrase))

	// Backup API routes. Running and restoring touch the whole database, so
	// they stay admin only.
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("GET /api/backups/status", s.backupH.Status)
	mux.Handle("POST /api/backups/run", adminOnly(s.backupH.Run))
	mux.Handle("POST /api/backups/{id}/restore", adminOnly(s.backupH.Restore))
	mux.Handle("GET /api/backups/{id}/download", adminOnly(s.backupH.Download))

	// Push notification API routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("GET /api/push/preferences", s.pushH.GetPreferences)
	mux.HandleFunc("PUT /api/push/preferences", s.pushH.UpdatePreferences)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
