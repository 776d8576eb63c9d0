package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stanley-cafeteria/stanley-chat/chat"
)

type fakeLiveChannel struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeLiveChannel) SendAudioFrame(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame := make([]byte, len(pcm))
	copy(frame, pcm)
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeLiveChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeLiveChannel) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeLiveChannel) frameAt(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[i]
}

func TestVoiceSession(t *testing.T) {
	t.Parallel()

	channel := &fakeLiveChannel{}
	handlersCh := make(chan chat.LiveHandlers, 1)
	cap := &fakeCapability{
		openLive: func(_ context.Context, h chat.LiveHandlers) (chat.LiveChannel, error) {
			handlersCh <- h
			return channel, nil
		},
	}
	s := newTestServer(cap)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/voice"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var handlers chat.LiveHandlers
	select {
	case handlers = <-handlersCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("live session was not opened")
	}

	// Microphone frames flow through to the provider channel.
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for channel.frameCount() < 1 {
		select {
		case <-deadline:
			t.Fatalf("frame never reached the provider channel")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Transcript deltas come back as JSON frames.
	handlers.OnEvent(chat.LiveServerEvent{InputTranscript: "hi"})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("messageType=%d, want text", messageType)
	}
	var ev voiceEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != "transcript" || ev.UserDelta != "hi" {
		t.Fatalf("event=%+v", ev)
	}

	// Bot audio comes back as a binary frame.
	handlers.OnEvent(chat.LiveServerEvent{Audio: []byte{9, 9}})
	messageType, payload, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read audio: %v", err)
	}
	if messageType != websocket.BinaryMessage || len(payload) != 2 {
		t.Fatalf("messageType=%d payload=%v", messageType, payload)
	}
}

func TestVoiceSkipsOversizedFrames(t *testing.T) {
	t.Parallel()

	channel := &fakeLiveChannel{}
	cap := &fakeCapability{
		openLive: func(_ context.Context, h chat.LiveHandlers) (chat.LiveChannel, error) {
			return channel, nil
		},
	}
	s := newTestServer(cap)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/voice"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	oversized := make([]byte, voiceFrameBytes+1)
	if err := conn.WriteMessage(websocket.BinaryMessage, oversized); err != nil {
		t.Fatalf("write oversized frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for channel.frameCount() < 1 {
		select {
		case <-deadline:
			t.Fatalf("valid frame never reached the provider channel")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if got := channel.frameAt(0); len(got) != 3 {
		t.Fatalf("forwarded frame=%d bytes, want 3", len(got))
	}
}

func TestVoiceRejectsDisallowedOrigin(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeCapability{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/voice", nil)
	req.Header.Set("Origin", "https://evil.example")
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != 403 {
		t.Fatalf("status=%d, want 403", rr.Code)
	}
}
