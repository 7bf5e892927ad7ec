package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"roomchat/internal/metrics"
	"roomchat/internal/middleware"
	"roomchat/internal/models"
	"roomchat/internal/room"
	"roomchat/internal/settings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server exposes one room session to the UI over HTTP and a websocket push
// channel
type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	session  *room.Session
	apiURL   *settings.APIBaseURL
	registry *metrics.Registry
	cfg      models.ServerConfig
	server   *http.Server
}

func NewServer(session *room.Session, apiURL *settings.APIBaseURL, registry *metrics.Registry, cfg models.ServerConfig, logger *logrus.Logger) *Server {
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		session:  session,
		apiURL:   apiURL,
		registry: registry,
		cfg:      cfg,
	}

	s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeoutSec) * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger, s.registry))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/state", s.handleState()).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket()).Methods(http.MethodGet)

	s.router.HandleFunc("/join", s.handleJoin()).Methods(http.MethodPost)
	s.router.HandleFunc("/leave", s.handleLeave()).Methods(http.MethodPost)

	s.router.HandleFunc("/draft", s.handleDraft()).Methods(http.MethodPost)
	s.router.HandleFunc("/send", s.handleSend()).Methods(http.MethodPost)
	s.router.HandleFunc("/search", s.handleSearch()).Methods(http.MethodPost)
	s.router.HandleFunc("/typing", s.handleTyping()).Methods(http.MethodPost)
	s.router.HandleFunc("/simulate", s.handleSimulate()).Methods(http.MethodPost)
	s.router.HandleFunc("/reply", s.handleClearReply()).Methods(http.MethodDelete)
	s.router.HandleFunc("/edit", s.handleCancelEdit()).Methods(http.MethodDelete)

	messages := s.router.PathPrefix("/messages/{id:[0-9]+}").Subrouter()
	messages.HandleFunc("", s.handleDelete()).Methods(http.MethodDelete)
	messages.HandleFunc("/edit", s.handleEdit()).Methods(http.MethodPost)
	messages.HandleFunc("/start-edit", s.handleStartEdit()).Methods(http.MethodPost)
	messages.HandleFunc("/like", s.handleLike()).Methods(http.MethodPost)
	messages.HandleFunc("/reply", s.handleReply()).Methods(http.MethodPost)
	messages.HandleFunc("/delivered", s.handleDelivered()).Methods(http.MethodPost)
	messages.HandleFunc("/read", s.handleRead()).Methods(http.MethodPost)

	s.router.HandleFunc("/attachments", s.handlePickFiles()).Methods(http.MethodPost)
	s.router.HandleFunc("/attachments/{id:[0-9]+}", s.handleRemoveAttachment()).Methods(http.MethodDelete)

	calls := s.router.PathPrefix("/call").Subrouter()
	calls.HandleFunc("/audio", s.handleStartCall(models.CallModeAudio)).Methods(http.MethodPost)
	calls.HandleFunc("/video", s.handleStartCall(models.CallModeVideo)).Methods(http.MethodPost)
	calls.HandleFunc("/end", s.handleEndCall()).Methods(http.MethodPost)
	calls.HandleFunc("/mute", s.handleToggleMute()).Methods(http.MethodPost)
	calls.HandleFunc("/camera", s.handleToggleCamera()).Methods(http.MethodPost)

	s.router.HandleFunc("/settings/api-base-url", s.handleGetAPIBaseURL()).Methods(http.MethodGet)
	s.router.HandleFunc("/settings/api-base-url", s.handleSaveAPIBaseURL()).Methods(http.MethodPut)
}

// Start serves until Shutdown. A Shutdown that runs first makes it return
// http.ErrServerClosed without listening.
func (s *Server) Start() error {
	s.logger.Infof("Starting server on port %d", s.cfg.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
