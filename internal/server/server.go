package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/reciclamt/internal/auth"
	"github.com/dukerupert/reciclamt/internal/config"
	"github.com/dukerupert/reciclamt/internal/database"
	"github.com/dukerupert/reciclamt/internal/handler"
	"github.com/dukerupert/reciclamt/internal/ledger"
	"github.com/dukerupert/reciclamt/internal/middleware"
	"github.com/dukerupert/reciclamt/internal/store"
	ws "github.com/dukerupert/reciclamt/internal/websocket"
)

const healthTimeout = 2 * time.Second

type Server struct {
	db             *database.DB
	hub            *ws.Hub
	authH          *handler.AuthHandler
	recyclingH     *handler.RecyclingHandler
	rewardH        *handler.RewardHandler
	pointsH        *handler.PointsHandler
	ecopointH      *handler.EcopointHandler
	adminH         *handler.AdminHandler
	userStore      *store.UserStore
	sessionStore   *store.SessionStore
	rateLimiter    *middleware.RateLimiter
	originPatterns []string
	logger         *slog.Logger
}

// New wires stores, the ledger and handlers. cache may be nil to disable
// balance caching; mailer may be nil to skip redemption emails.
func New(db *database.DB, cfg config.Config, cache ledger.BalanceCache, mailer handler.RedemptionMailer, logger *slog.Logger) (*Server, error) {
	codeFunc, err := ledger.ParseCodeFormat(cfg.RedemptionCodeFormat, time.Now)
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	rewardStore := store.NewRewardStore(db)
	recyclingStore := store.NewRecyclingStore(db)
	pointEntryStore := store.NewPointEntryStore(db)
	ecopointStore := store.NewEcopointStore(db)

	opts := []ledger.Option{
		ledger.WithNotify(hub.NotifyBalance),
		ledger.WithCodeFunc(codeFunc),
		ledger.WithLogger(logger.With("component", "ledger")),
	}
	if cache != nil {
		opts = append(opts, ledger.WithCache(cache))
	}
	svc := ledger.New(store.NewLedgerStore(db), opts...)

	var origins []string
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		origins = append(origins, u.Host)
	}

	return &Server{
		db:             db,
		hub:            hub,
		authH:          handler.NewAuthHandler(userStore, sessionStore, svc, cfg.IsAdminEmail, cfg.SecureCookies, logger.With("component", "auth")),
		recyclingH:     handler.NewRecyclingHandler(svc, recyclingStore, logger.With("component", "recycling")),
		rewardH:        handler.NewRewardHandler(rewardStore, userStore, svc, mailer, hub, logger.With("component", "reward")),
		pointsH:        handler.NewPointsHandler(svc, pointEntryStore, logger.With("component", "points")),
		ecopointH:      handler.NewEcopointHandler(ecopointStore, logger.With("component", "ecopoint")),
		adminH:         handler.NewAdminHandler(userStore, svc, logger.With("component", "admin")),
		userStore:      userStore,
		sessionStore:   sessionStore,
		rateLimiter:    middleware.NewRateLimiter(),
		originPatterns: origins,
		logger:         logger,
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

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/auth/register", s.ipLimited("register", s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.ipLimited("login", s.authH.Login))
	outerMux.HandleFunc("GET /api/materials", s.recyclingH.Materials)
	outerMux.HandleFunc("GET /api/rewards", s.rewardH.Catalog)
	outerMux.HandleFunc("GET /api/rewards/categories", s.rewardH.Categories)
	outerMux.HandleFunc("GET /api/ecopoints", s.ecopointH.List)
	outerMux.HandleFunc("GET /api/ecopoints/nearby", s.ecopointH.Nearby)

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Account
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)
	mux.HandleFunc("PUT /api/me/avatar", s.authH.UpdateAvatar)

	// Recycling
	mux.HandleFunc("POST /api/recycling", s.userLimited("recycling", 30, s.recyclingH.Submit))
	mux.HandleFunc("GET /api/recycling", s.recyclingH.List)
	mux.HandleFunc("GET /api/recycling/stats", s.recyclingH.Stats)

	// Rewards and points
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.userLimited("redeem", 10, s.rewardH.Redeem))
	mux.HandleFunc("GET /api/redemptions", s.rewardH.Redemptions)
	mux.HandleFunc("GET /api/points", s.pointsH.Balance)
	mux.HandleFunc("POST /api/points/refresh", s.pointsH.Refresh)
	mux.HandleFunc("GET /api/points/history", s.pointsH.History)

	// Admin
	mux.Handle("GET /api/admin/users", admin(s.adminH.ListUsers))
	mux.Handle("POST /api/admin/users/{id}/points", admin(s.adminH.AdjustPoints))
	mux.Handle("PUT /api/admin/users/{id}/role", admin(s.adminH.UpdateRole))
	mux.Handle("GET /api/admin/rewards", admin(s.rewardH.List))
	mux.Handle("POST /api/admin/rewards", admin(s.rewardH.Create))
	mux.Handle("PUT /api/admin/rewards/{id}", admin(s.rewardH.Update))
	mux.Handle("DELETE /api/admin/rewards/{id}", admin(s.rewardH.Delete))
	mux.Handle("GET /api/admin/redemptions/{code}", admin(s.rewardH.LookupRedemption))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.originPatterns, s.logger.With("component", "websocket")))
}

func admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status, "database": s.db.Dialect()})
}

// ipLimited allows 10 requests a minute per client address.
func (s *Server) ipLimited(scope string, h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, scope, middleware.RealIP, 10, time.Minute)(h).ServeHTTP
}

// userLimited allows limit requests a minute per authenticated user.
func (s *Server) userLimited(scope string, limit int, h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return auth.UserID(r.Context())
	}
	return middleware.RateLimit(s.rateLimiter, scope, keyFunc, limit, time.Minute)(h).ServeHTTP
}
