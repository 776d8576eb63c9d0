package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stanley-cafeteria/stanley-chat/chat"
	"github.com/stanley-cafeteria/stanley-chat/internal/logging"
)

// voiceFrameBytes bounds one inbound audio frame. Clients send 20ms
// PCM16 mono frames at 16kHz (640 bytes); the bound leaves headroom for
// coarser chunking.
const voiceFrameBytes = 8192

// voiceEvent is the JSON frame mirroring transcript progress to the
// client. Bot audio travels separately as binary frames.
type voiceEvent struct {
	Type         string `json:"type"`
	UserDelta    string `json:"user_delta,omitempty"`
	BotDelta     string `json:"bot_delta,omitempty"`
	TurnComplete bool   `json:"turn_complete,omitempty"`
}

// handleVoice runs one duplex voice session over a websocket: binary
// frames in are microphone audio, binary frames out are bot audio, and
// JSON text frames out carry transcript deltas. Completed turns are
// committed to the shared transcript.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}
	if !s.originAllowed(r) {
		s.writeError(w, r, http.StatusForbidden, "permission_error", "origin is not allowed")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	reqID, _ := RequestIDFrom(r.Context())
	writer := &wsWriter{conn: conn}
	done := make(chan struct{})

	controller := chat.NewLiveController(s.capability, s.orchestrator.Transcript(),
		chat.WithSink(writer),
		chat.WithEventTap(writer.sendEvent),
		chat.WithFrameBytes(voiceFrameBytes),
		chat.WithOnStop(func() { close(done) }),
		chat.WithLiveLogger(s.logger),
	)
	source := &wsSource{conn: conn}

	if err := controller.Start(r.Context(), source); err != nil {
		s.logger.Error("voice session failed to start", "request_id", reqID, logging.Err(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "voice session unavailable"),
			time.Now().Add(2*time.Second))
		return
	}
	defer controller.Stop()

	// The capture loop is the sole socket reader; a read failure there
	// means the client went away.
	select {
	case <-done:
	case <-source.closed():
		controller.Stop()
		<-done
	case <-r.Context().Done():
		controller.Stop()
		<-done
	}
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(s.cfg.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := s.cfg.CORSAllowedOrigins[origin]
	return ok
}

// wsSource adapts inbound binary websocket frames to chat.AudioSource.
// Text frames are control noise and skipped.
type wsSource struct {
	conn *websocket.Conn

	once sync.Once
	done chan struct{}
}

func (s *wsSource) closed() <-chan struct{} {
	s.once.Do(func() { s.done = make(chan struct{}) })
	return s.done
}

func (s *wsSource) ReadFrame(buf []byte) (int, error) {
	s.once.Do(func() { s.done = make(chan struct{}) })
	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			close(s.done)
			return 0, err
		}
		if messageType != websocket.BinaryMessage || len(payload) == 0 {
			continue
		}
		if len(payload) > len(buf) {
			// Forwarding a truncated frame would feed partial PCM to the
			// provider; drop the whole frame instead.
			continue
		}
		return copy(buf, payload), nil
	}
}

// wsWriter serializes websocket writes: gorilla connections allow one
// concurrent writer, and audio and event frames come from different
// goroutines.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Play implements chat.AudioSink by forwarding bot audio as a binary
// frame.
func (w *wsWriter) Play(pcm []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

func (w *wsWriter) sendEvent(ev chat.LiveServerEvent) {
	if ev.InputTranscript == "" && ev.OutputTranscript == "" && !ev.TurnComplete {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.WriteJSON(voiceEvent{
		Type:         "transcript",
		UserDelta:    ev.InputTranscript,
		BotDelta:     ev.OutputTranscript,
		TurnComplete: ev.TurnComplete,
	})
}
