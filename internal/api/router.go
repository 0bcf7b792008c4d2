package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/villefarm/internal/api/apierr"
	"github.com/mcoot/villefarm/internal/api/handler"
	"github.com/mcoot/villefarm/internal/api/middleware"
	"github.com/mcoot/villefarm/internal/events/sse"
	"github.com/mcoot/villefarm/internal/metrics"
	"github.com/mcoot/villefarm/internal/services/bot"
	"github.com/mcoot/villefarm/internal/services/delegation"
	"github.com/mcoot/villefarm/internal/services/farm"
	"github.com/mcoot/villefarm/internal/services/identity"
	"github.com/mcoot/villefarm/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger            *slog.Logger
	Storage           storage.Storage
	IdentityService   *identity.Service
	DelegationService *delegation.Service
	FarmController    *farm.Controller
	BotService        *bot.Service
	HubManager        *sse.HubManager
	// Metrics is optional; when set, /metrics is served and requests are instrumented
	Metrics *metrics.Metrics
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewNotFoundError())
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewMethodNotAllowedError())
	})

	// Create handlers
	identityHandler := handler.NewIdentityHandler(cfg.IdentityService, cfg.Storage)
	farmHandler := handler.NewFarmHandler(cfg.FarmController, cfg.BotService, cfg.HubManager)
	delegationHandler := handler.NewDelegationHandler(cfg.DelegationService)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.IdentityService)
	optionalAuthMiddleware := middleware.OptionalAuth(cfg.IdentityService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Health check and pricing table (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/kinds", farmHandler.Kinds).Methods(http.MethodGet)

	// Identity routes (no auth required for creating identities/logging in)
	api.HandleFunc("/identities/guest", identityHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/identities/register", identityHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/identities/login", identityHandler.Login).Methods(http.MethodPost)

	// Protected identity routes
	identities := api.PathPrefix("/identities").Subrouter()
	identities.Use(authMiddleware)
	identities.HandleFunc("/me", identityHandler.GetMe).Methods(http.MethodGet)
	identities.HandleFunc("/logout", identityHandler.Logout).Methods(http.MethodPost)
	identities.HandleFunc("/{id}", identityHandler.GetIdentity).Methods(http.MethodGet)

	// Farm initialization for the caller
	api.Handle("/farm", authMiddleware(http.HandlerFunc(farmHandler.Init))).Methods(http.MethodPost)

	// Farms are readable by anyone; mutations need a session
	api.HandleFunc("/farms/{owner}", farmHandler.Get).Methods(http.MethodGet)
	api.Handle("/farms/{owner}/events", optionalAuthMiddleware(http.HandlerFunc(farmHandler.Events))).Methods(http.MethodGet)

	farms := api.PathPrefix("/farms/{owner}").Subrouter()
	farms.Use(authMiddleware)
	farms.HandleFunc("/plant", farmHandler.Plant).Methods(http.MethodPost)
	farms.HandleFunc("/harvest", farmHandler.Harvest).Methods(http.MethodPost)
	farms.HandleFunc("/update", farmHandler.Update).Methods(http.MethodPost)
	farms.HandleFunc("/tend", farmHandler.Tend).Methods(http.MethodPost)

	// Delegation routes (all require auth)
	delegations := api.PathPrefix("/delegations").Subrouter()
	delegations.Use(authMiddleware)
	delegations.HandleFunc("", delegationHandler.Create).Methods(http.MethodPost)
	delegations.HandleFunc("", delegationHandler.List).Methods(http.MethodGet)
	delegations.HandleFunc("/{id}", delegationHandler.Revoke).Methods(http.MethodDelete)

	if cfg.Metrics != nil {
		return cfg.Metrics.InstrumentRouter(r)
	}
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
