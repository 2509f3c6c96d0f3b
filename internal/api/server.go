package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ZIMkaRU/bfx-report/internal/cache"
	"github.com/ZIMkaRU/bfx-report/internal/database"
	"github.com/ZIMkaRU/bfx-report/internal/messaging"
	syncer "github.com/ZIMkaRU/bfx-report/internal/sync"
	"github.com/ZIMkaRU/bfx-report/pkg/config"
)

// Server represents the HTTP API server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	// Dependencies
	mysqlDB    *database.MySQLClient
	redisCache *cache.RedisClient
	natsClient *messaging.NATSClient
	sync       *syncer.Syncer
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	mysqlDB *database.MySQLClient,
	redisCache *cache.RedisClient,
	natsClient *messaging.NATSClient,
	sync *syncer.Syncer,
) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		mysqlDB:    mysqlDB,
		redisCache: redisCache,
		natsClient: natsClient,
		sync:       sync,
	}

	s.setupRoutes()

	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.corsMiddleware)

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()

	apiV1.HandleFunc("/health", s.handleHealth).Methods("GET")

	apiV1.HandleFunc("/sync/start", s.handleSyncStart).Methods("POST")
	apiV1.HandleFunc("/sync/progress", s.handleSyncProgress).Methods("GET")
	apiV1.HandleFunc("/sync/status", s.handleSyncStatus).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Middleware functions

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.statusCode,
			"duration": time.Since(start),
			"remote":   r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(next)
}

// Handler functions

// handleHealth checks the health status of all system components
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	services := map[string]bool{
		"mysql": s.mysqlDB.Health(ctx) == nil,
		"redis": s.redisCache.Health(ctx) == nil,
		"nats":  s.natsClient.IsConnected(),
	}

	status := "healthy"
	code := http.StatusOK
	for _, ok := range services {
		if !ok {
			status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"services":  services,
		"timestamp": time.Now().Unix(),
	})
}

// handleSyncStart triggers a full synchronization run. Returns 409 when a
// run is already executing.
func (s *Server) handleSyncStart(w http.ResponseWriter, r *http.Request) {
	if s.sync.Running() {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error": syncer.ErrSyncInProgress.Error(),
			"runId": s.sync.RunID(),
		})
		return
	}

	go func() {
		if err := s.sync.RunFullSync(context.Background()); err != nil {
			s.logger.WithError(err).Error("Sync run failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
	})
}

// handleSyncProgress returns the latest progress snapshot
func (s *Server) handleSyncProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.redisCache.GetSyncProgress(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to get sync progress")
		http.Error(w, "Failed to retrieve sync progress", http.StatusInternalServerError)
		return
	}
	if progress == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"progress": nil,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"progress": progress,
	})
}

// handleSyncStatus reports whether a run is currently executing
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"running": s.sync.Running(),
		"runId":   s.sync.RunID(),
	})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
