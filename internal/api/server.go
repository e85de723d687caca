// Package api provides the REST API server for converting annotation
// exports and querying imported collections.
package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/forTEXT/catma-go/core/cas"
	"github.com/forTEXT/catma-go/internal/cache"
	"github.com/forTEXT/catma-go/internal/convert"
	"github.com/forTEXT/catma-go/internal/logging"
	"github.com/forTEXT/catma-go/internal/server"
	"github.com/forTEXT/catma-go/internal/store"
)

// Server is the REST API server.
type Server struct {
	cfg       Config
	store     *store.Store
	converter *convert.Converter
	hub       *Hub
	jobs      *JobStore
	cors      server.CORSConfig
	listings  *cache.TTLCache[string, []store.CollectionInfo]
	started   time.Time
}

// New creates a server, opening the collection database under
// cfg.DataDir and the conversion cache under cfg.CacheDir if set.
func New(cfg Config) (*Server, error) {
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return nil, fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(cfg.TLS.CertFile); err != nil {
			return nil, fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(cfg.TLS.KeyFile); err != nil {
			return nil, fmt.Errorf("TLS key file not found: %w", err)
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "collections.db"))
	if err != nil {
		return nil, fmt.Errorf("opening collection store: %w", err)
	}

	converter := &convert.Converter{}
	if cfg.CacheDir != "" {
		cache, err := cas.NewCache(cfg.CacheDir)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("opening conversion cache: %w", err)
		}
		converter.Cache = cache
	}

	s := &Server{
		cfg:       cfg,
		store:     st,
		converter: converter,
		hub:       NewHub(),
		jobs:      NewJobStore(),
		cors:      server.CORSConfig{AllowedOrigins: cfg.AllowedOrigins},
		listings:  cache.New[string, []store.CollectionInfo](30 * time.Second),
		started:   time.Now(),
	}
	go s.hub.Run()
	return s, nil
}

// Close releases the server's resources.
func (s *Server) Close() error {
	return s.store.Close()
}

// Handler returns the complete HTTP handler with the middleware chain
// applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/formats", s.handleFormats)
	mux.HandleFunc("/convert", s.handleConvert)
	mux.HandleFunc("/collections", s.handleCollections)
	mux.HandleFunc("/collections/", s.handleCollectionByID)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/", s.handleJobByID)
	mux.HandleFunc("/ws", s.handleWebSocket)

	var handler http.Handler = server.SecurityHeaders(server.APICSPConfig(), mux)
	handler = AuthMiddleware(s.cfg.Auth, handler)

	if s.cfg.RateLimitRequests > 0 {
		limiterCfg := RateLimiterConfig{
			RequestsPerMinute: s.cfg.RateLimitRequests,
			BurstSize:         s.cfg.RateLimitBurst,
		}
		if limiterCfg.BurstSize == 0 {
			limiterCfg.BurstSize = 10
		}
		handler = NewRateLimiter(limiterCfg).Middleware(handler)
	}

	handler = server.CORSMiddleware(s.cors, handler)
	handler = logging.CombinedMiddleware(handler)
	return handler
}

// Start runs the server until it fails or the process exits.
func (s *Server) Start() error {
	protocol := "http"
	if s.cfg.TLS.Enabled {
		protocol = "https"
		logging.Info("TLS enabled", "cert_file", s.cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled, serving plain HTTP")
	}
	logging.ServerStartup("rest_api", protocol, s.cfg.Port,
		"data_dir", server.AbsPath(s.cfg.DataDir))
	if s.cfg.Auth.Enabled {
		logging.SecurityEvent("authentication_configured", "api", "enabled", true)
	} else {
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", false,
			"note", "all requests allowed")
	}

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	handler := s.Handler()
	if s.cfg.TLS.Enabled {
		return http.ListenAndServeTLS(addr, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile, handler)
	}
	return http.ListenAndServe(addr, handler)
}
