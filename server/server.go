// Package server exposes the conversation over HTTP and WebSocket for
// browser and terminal frontends: turn submission, transcript reads,
// search, speech endpoints, and a duplex voice socket.
package server

import (
	"log/slog"
	"net/http"

	"github.com/stanley-cafeteria/stanley-chat/chat"
)

// Config configures the HTTP surface.
type Config struct {
	// CORSAllowedOrigins is the exact-match origin allowlist. Empty
	// disables cross-origin access.
	CORSAllowedOrigins map[string]struct{}

	// MaxUploadBytes bounds transcription request bodies.
	MaxUploadBytes int64
}

const defaultMaxUploadBytes = 16 << 20

// Server routes conversation operations to an orchestrator.
type Server struct {
	cfg          Config
	logger       *slog.Logger
	mux          *http.ServeMux
	orchestrator *chat.Orchestrator
	capability   chat.Capability
}

// New creates a server over orchestrator. The capability is needed
// separately for voice sessions, which bypass the turn pipeline.
func New(cfg Config, orchestrator *chat.Orchestrator, capability chat.Capability, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		mux:          http.NewServeMux(),
		orchestrator: orchestrator,
		capability:   capability,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/v1/menu", s.handleMenu)
	s.mux.HandleFunc("/v1/turns", s.handleTurns)
	s.mux.HandleFunc("/v1/transcript", s.handleTranscript)
	s.mux.HandleFunc("/v1/mode", s.handleMode)
	s.mux.HandleFunc("/v1/search", s.handleSearch)
	s.mux.HandleFunc("/v1/speech", s.handleSpeech)
	s.mux.HandleFunc("/v1/transcribe", s.handleTranscribe)
	s.mux.HandleFunc("/v1/voice", s.handleVoice)
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = CORS(s.cfg, h)
	h = Recover(s.logger, h)
	h = AccessLog(s.logger, h)
	h = RequestID(h)
	return h
}
