package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/owenwright/cookies/internal/allowance"
	"github.com/owenwright/cookies/internal/backup"
	"github.com/owenwright/cookies/internal/handler"
	"github.com/owenwright/cookies/internal/kv"
	"github.com/owenwright/cookies/internal/lock"
	"github.com/owenwright/cookies/internal/middleware"
	"github.com/owenwright/cookies/internal/shield"
	"github.com/owenwright/cookies/internal/store"
	"github.com/owenwright/cookies/internal/usage"
	ws "github.com/owenwright/cookies/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	packH         *handler.PackHandler
	redeemH       *handler.RedeemHandler
	accountH      *handler.AccountHandler
	allowanceH    *handler.AllowanceHandler
	insightsH     *handler.InsightsHandler
	sessionStore  *store.SessionStore
	settingsStore *store.SettingsStore
	machine       *allowance.Machine
	usageManager  *usage.Manager
	refresher     *lock.Refresher
	backupManager *backup.Manager
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

// Config carries the pieces main constructs before wiring.
type Config struct {
	DB            *sql.DB
	KV            *kv.Store
	Gateway       shield.Gateway
	BackupCfg     backup.Config
	WarningOffset time.Duration
	Logger        *slog.Logger
}

func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	hub := ws.NewHub(logger.With("component", "websocket"))

	accountStore := store.NewAccountStore(cfg.DB)
	packStore := store.NewPackStore(cfg.DB)
	cookieStore := store.NewCookieStore(cfg.DB, logger.With("component", "cookie_store"))
	sessionStore := store.NewSessionStore(cfg.DB)
	settingsStore := store.NewSettingsStore(cfg.DB)
	usageStore := store.NewUsageStore(cfg.DB)
	insightsStore := store.NewInsightsStore(cfg.DB)
	backupStore := store.NewBackupStore(cfg.DB)

	usageManager := usage.NewManager(cfg.KV, usageStore, logger)

	machine, err := allowance.NewMachine(cfg.KV, logger, nil)
	if err != nil {
		return nil, err
	}

	// On every unlock edge: re-assert the shield, account the usage
	// session, and fan the new state out to connected devices.
	machine.SetOnTransition(func(accountID string, state allowance.State) {
		sel, err := shield.LoadSelection(cfg.KV)
		if err != nil {
			logger.Error("load selection on transition", "error", err)
		} else if !sel.IsEmpty() {
			if err := cfg.Gateway.Apply(sel, !state.UnlockActive); err != nil {
				logger.Error("apply shield on transition", "error", err)
			}
		}
		if err := usageManager.SetUnlockActive(state.UnlockActive); err != nil {
			logger.Error("track usage on transition", "error", err)
		}
		hub.Broadcast(ws.AllowanceMessage(accountID, state))
	})

	refresher := lock.NewRefresher(cfg.KV, cfg.Gateway, logger, func(remaining time.Duration) {
		hub.Broadcast(ws.NewMessage("allowance", "warning", machine.AccountID(), map[string]any{
			"remaining_seconds": int(remaining / time.Second),
		}))
	})
	refresher.SetWarningOffset(cfg.WarningOffset)

	backupManager := backup.NewManager(cfg.BackupCfg, cfg.DB, backupStore, logger)

	return &Server{
		db:            cfg.DB,
		hub:           hub,
		packH:         handler.NewPackHandler(packStore, hub),
		redeemH:       handler.NewRedeemHandler(cookieStore, accountStore, machine, hub),
		accountH:      handler.NewAccountHandler(accountStore, sessionStore, cookieStore, machine, usageManager),
		allowanceH:    handler.NewAllowanceHandler(machine, cfg.KV, cfg.Gateway, hub),
		insightsH:     handler.NewInsightsHandler(insightsStore, usageStore),
		sessionStore:  sessionStore,
		settingsStore: settingsStore,
		machine:       machine,
		usageManager:  usageManager,
		refresher:     refresher,
		backupManager: backupManager,
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Refresher returns the shield refresher loop.
func (s *Server) Refresher() *lock.Refresher {
	return s.refresher
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// Machine returns the allowance machine.
func (s *Server) Machine() *allowance.Machine {
	return s.machine
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/accounts", s.rateLimitedHandler(s.accountH.Create))
	outerMux.HandleFunc("POST /api/accounts/sign-in", s.rateLimitedHandler(s.accountH.SignIn))

	// Operator routes — keyed, not session scoped
	operator := middleware.RequireOperator(s.settingsStore)
	outerMux.Handle("POST /api/packs", operator(http.HandlerFunc(s.packH.Create)))
	outerMux.Handle("GET /api/packs", operator(http.HandlerFunc(s.packH.List)))
	outerMux.Handle("GET /api/packs/{id}", operator(http.HandlerFunc(s.packH.Get)))

	// Protected routes — wrapped with RequireSession middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireSession(s.sessionStore)
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
	mux.HandleFunc("POST /api/accounts/sign-out", s.accountH.SignOut)
	mux.HandleFunc("GET /api/accounts/me", s.accountH.Me)
	mux.HandleFunc("POST /api/accounts/onboarding", s.accountH.CompleteOnboarding)
	mux.HandleFunc("PUT /api/accounts/cookie-values", s.accountH.SetCookieValues)
	mux.HandleFunc("PUT /api/accounts/timezone", s.accountH.SetTimezone)
	mux.HandleFunc("DELETE /api/accounts/me", s.accountH.DeleteData)

	mux.HandleFunc("POST /api/packs/claim", s.packH.Claim)
	mux.HandleFunc("POST /api/redeem", s.redeemH.Redeem)
	mux.HandleFunc("POST /api/emergency-unlock", s.redeemH.EmergencyUnlock)

	mux.HandleFunc("GET /api/allowance", s.allowanceH.Get)
	mux.HandleFunc("DELETE /api/allowance", s.allowanceH.Clear)
	mux.HandleFunc("GET /api/selection", s.allowanceH.GetSelection)
	mux.HandleFunc("PUT /api/selection", s.allowanceH.PutSelection)

	mux.HandleFunc("GET /api/insights/daily", s.insightsH.Daily)
	mux.HandleFunc("GET /api/insights/totals", s.insightsH.Totals)
	mux.HandleFunc("GET /api/insights/sessions", s.insightsH.Sessions)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
