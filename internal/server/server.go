package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/nesium/splitship/internal/experiment"
	"github.com/nesium/splitship/internal/forms"
)

type Config struct {
	Port      int
	TokenFile string
	// PageFile is the marketing page served at / with the active
	// variant applied. Optional; without it the server is API-only.
	PageFile string
}

type Server struct {
	cfg       Config
	exp       *experiment.Experiment
	ctrl      *forms.Controller
	log       *zap.Logger
	token     string
	router    *http.ServeMux
	startTime time.Time
}

func New(cfg Config, exp *experiment.Experiment, ctrl *forms.Controller, log *zap.Logger) *Server {
	srv := &Server{
		cfg:       cfg,
		exp:       exp,
		ctrl:      ctrl,
		log:       log,
		token:     generateToken(),
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/ab.js", s.handleScript)
	s.router.HandleFunc("/assign", s.handleAssign)
	s.router.HandleFunc("/e", s.handleEvent)
	s.router.HandleFunc("/submit", s.handleSubmit)
	s.router.HandleFunc("/", s.handlePage)

	// Dashboard endpoints (protected)
	s.router.Handle("/dashboard", s.requireToken(http.HandlerFunc(s.handleDashboard)))
	s.router.Handle("/api/results", s.requireToken(http.HandlerFunc(s.handleResultsAPI)))
}

func (s *Server) Start() error {
	// Write token to file so the CLI can print the dashboard URL
	if s.cfg.TokenFile != "" {
		if err := os.WriteFile(s.cfg.TokenFile, []byte(s.token), 0600); err != nil {
			s.log.Warn("failed to write token file", zap.Error(err))
		}
	}

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.log.Info("server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4"
	}
	return hex.EncodeToString(bytes)
}
