package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/stanley-cafeteria/stanley-chat/chat"
	"github.com/stanley-cafeteria/stanley-chat/internal/logging"
)

type apiError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, errType, message string) {
	reqID, _ := RequestIDFrom(r.Context())
	writeJSON(w, status, errorEnvelope{Error: apiError{
		Type:      errType,
		Message:   message,
		RequestID: reqID,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type turnRequest struct {
	Text       string          `json:"text"`
	Attachment *turnAttachment `json:"attachment,omitempty"`
}

type turnAttachment struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type turnResponse struct {
	Message chat.Message `json:"message"`
}

// handleTurns submits one user turn. Concurrent submissions are rejected
// rather than queued.
func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, r, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	var attachment *chat.Attachment
	if req.Attachment != nil {
		data, err := base64.StdEncoding.DecodeString(req.Attachment.Data)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid_request", "attachment data must be base64")
			return
		}
		attachment = &chat.Attachment{MIMEType: req.Attachment.MIMEType, Data: data}
	}

	msg, err := s.orchestrator.SubmitTurn(r.Context(), req.Text, attachment)
	switch {
	case errors.Is(err, chat.ErrEmptyTurn):
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "turn text is empty")
		return
	case errors.Is(err, chat.ErrTurnInFlight):
		s.writeError(w, r, http.StatusConflict, "turn_in_flight", "a turn is already being processed")
		return
	case err != nil:
		// The transcript already carries the system failure message;
		// return it alongside the provider error status.
		reqID, _ := RequestIDFrom(r.Context())
		s.logger.Error("turn failed", "request_id", reqID, logging.Err(err))
		writeJSON(w, http.StatusBadGateway, turnResponse{Message: msg})
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Message: msg})
}

type menuCategory struct {
	Name  string          `json:"name"`
	Items []chat.MenuItem `json:"items"`
}

type menuResponse struct {
	Categories []menuCategory `json:"categories"`
}

// handleMenu exposes the static catalog so frontends can render it
// without a provider round trip.
func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}
	categories := lo.Map(chat.MenuCategories(), func(name string, _ int) menuCategory {
		return menuCategory{Name: name, Items: chat.MenuItems(name)}
	})
	writeJSON(w, http.StatusOK, menuResponse{Categories: categories})
}

type transcriptResponse struct {
	Messages []chat.Message `json:"messages"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, transcriptResponse{Messages: s.orchestrator.Transcript().Messages()})
}

type modePayload struct {
	Mode chat.Mode `json:"mode"`
}

var validModes = map[chat.Mode]struct{}{
	chat.ModeStandard: {},
	chat.ModeThinking: {},
	chat.ModeFast:     {},
	chat.ModeVoice:    {},
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, modePayload{Mode: s.orchestrator.Mode()})
	case http.MethodPut:
		var req modePayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
		if _, ok := validModes[req.Mode]; !ok {
			s.writeError(w, r, http.StatusBadRequest, "invalid_request", "unknown mode")
			return
		}
		s.orchestrator.SetMode(req.Mode)
		writeJSON(w, http.StatusOK, modePayload{Mode: s.orchestrator.Mode()})
	default:
		s.writeError(w, r, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "query parameter q is required")
		return
	}
	writeJSON(w, http.StatusOK, s.orchestrator.Search(r.Context(), query))
}

type speechRequest struct {
	Text string `json:"text"`
}

// handleSpeech synthesizes spoken audio for a bot message. A provider
// that cannot synthesize yields 204, not an error.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, r, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}
	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	audio, err := s.orchestrator.Speak(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, r, http.StatusBadGateway, "provider_error", "speech synthesis failed")
		return
	}
	if len(audio) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "audio/pcm;rate=24000")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// handleTranscribe accepts a raw audio body, with the encoding in the
// Content-Type header, and returns its transcription.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, r, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}
	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "Content-Type is required")
		return
	}

	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "invalid_request", "audio body too large")
		return
	}
	if len(audio) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "audio body is empty")
		return
	}

	text, err := s.orchestrator.Dictate(r.Context(), audio, mimeType)
	if err != nil {
		s.writeError(w, r, http.StatusBadGateway, "provider_error", "transcription failed")
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Text: text})
}
