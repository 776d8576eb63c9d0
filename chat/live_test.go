package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeLiveChannel records sent frames and close calls.
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

func (c *fakeLiveChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// liveFixture opens a controller against a capability that hands the
// handlers back to the test.
type liveFixture struct {
	controller *LiveController
	transcript *Transcript
	channel    *fakeLiveChannel
	handlers   LiveHandlers
	sink       *recordingSink
	stopped    chan struct{}
}

type recordingSink struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (s *recordingSink) Play(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, pcm)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// blockedSource never yields a frame until closed.
type blockedSource struct {
	done chan struct{}
}

func newBlockedSource() *blockedSource { return &blockedSource{done: make(chan struct{})} }

func (s *blockedSource) ReadFrame([]byte) (int, error) {
	<-s.done
	return 0, io.EOF
}

func (s *blockedSource) close() { close(s.done) }

func startLive(t *testing.T, source AudioSource, opts ...LiveOption) *liveFixture {
	t.Helper()

	f := &liveFixture{
		transcript: NewTranscript(),
		channel:    &fakeLiveChannel{},
		sink:       &recordingSink{},
		stopped:    make(chan struct{}),
	}
	cap := &fakeCapability{
		openLive: func(_ context.Context, h LiveHandlers) (LiveChannel, error) {
			f.handlers = h
			return f.channel, nil
		},
	}

	opts = append([]LiveOption{
		WithSink(f.sink),
		WithOnStop(func() { close(f.stopped) }),
	}, opts...)
	f.controller = NewLiveController(cap, f.transcript, opts...)

	if err := f.controller.Start(context.Background(), source); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return f
}

func TestLiveControllerCommitsOnTurnComplete(t *testing.T) {
	t.Parallel()

	source := newBlockedSource()
	defer source.close()
	f := startLive(t, source)
	defer f.controller.Stop()

	f.handlers.OnEvent(LiveServerEvent{InputTranscript: "what does"})
	f.handlers.OnEvent(LiveServerEvent{InputTranscript: " a tiramisu cost"})
	f.handlers.OnEvent(LiveServerEvent{OutputTranscript: "Six fifty."})

	if got := f.transcript.Len(); got != 0 {
		t.Fatalf("transcript len=%d before turn completion, want 0", got)
	}
	snap := f.controller.Transcripts()
	if snap.User != "what does a tiramisu cost" || snap.Bot != "Six fifty." {
		t.Fatalf("buffers=%+v", snap)
	}

	f.handlers.OnEvent(LiveServerEvent{TurnComplete: true})

	msgs := f.transcript.Messages()
	if len(msgs) != 2 {
		t.Fatalf("transcript len=%d, want 2", len(msgs))
	}
	if msgs[0].Author != AuthorUser || msgs[0].TextContent() != "what does a tiramisu cost" {
		t.Fatalf("user message=%+v", msgs[0])
	}
	if msgs[1].Author != AuthorBot || msgs[1].TextContent() != "Six fifty." {
		t.Fatalf("bot message=%+v", msgs[1])
	}

	// Buffers reset for the next turn.
	snap = f.controller.Transcripts()
	if snap.User != "" || snap.Bot != "" {
		t.Fatalf("buffers not reset: %+v", snap)
	}
}

func TestLiveControllerPlaysAudio(t *testing.T) {
	t.Parallel()

	source := newBlockedSource()
	defer source.close()
	f := startLive(t, source)
	defer f.controller.Stop()

	f.handlers.OnEvent(LiveServerEvent{Audio: []byte{1, 2, 3}})
	f.handlers.OnEvent(LiveServerEvent{Audio: []byte{4, 5}})

	if got := f.sink.count(); got != 2 {
		t.Fatalf("sink chunks=%d, want 2", got)
	}
}

func TestLiveControllerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	source := newBlockedSource()
	defer source.close()
	f := startLive(t, source)

	f.controller.Stop()
	f.controller.Stop()

	if f.controller.Active() {
		t.Fatalf("controller still active after Stop")
	}
	if !f.channel.isClosed() {
		t.Fatalf("channel not closed")
	}
	select {
	case <-f.stopped:
	default:
		t.Fatalf("onStop hook not invoked")
	}
}

func TestLiveControllerErrorTearsDown(t *testing.T) {
	t.Parallel()

	source := newBlockedSource()
	defer source.close()
	f := startLive(t, source)

	f.handlers.OnError(errors.New("stream broke"))

	select {
	case <-f.stopped:
	case <-time.After(time.Second):
		t.Fatalf("onStop not invoked after error")
	}
	if f.controller.Active() {
		t.Fatalf("controller still active after error")
	}
}

func TestLiveControllerCloseTearsDown(t *testing.T) {
	t.Parallel()

	source := newBlockedSource()
	defer source.close()
	f := startLive(t, source)

	f.handlers.OnClose()

	select {
	case <-f.stopped:
	case <-time.After(time.Second):
		t.Fatalf("onStop not invoked after close")
	}
}

func TestLiveControllerRejectsSecondStart(t *testing.T) {
	t.Parallel()

	source := newBlockedSource()
	defer source.close()
	f := startLive(t, source)
	defer f.controller.Stop()

	if err := f.controller.Start(context.Background(), source); !errors.Is(err, ErrVoiceActive) {
		t.Fatalf("err=%v, want ErrVoiceActive", err)
	}
}

// scriptedSource yields a fixed set of frames then blocks. A non-nil
// drained channel is closed once the script is exhausted.
type scriptedSource struct {
	mu      sync.Mutex
	frames  [][]byte
	done    chan struct{}
	drained chan struct{}
}

func (s *scriptedSource) ReadFrame(buf []byte) (int, error) {
	s.mu.Lock()
	if len(s.frames) == 0 {
		if s.drained != nil {
			close(s.drained)
			s.drained = nil
		}
		s.mu.Unlock()
		<-s.done
		return 0, io.EOF
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	s.mu.Unlock()
	return copy(buf, frame), nil
}

func TestLiveControllerPumpsFrames(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{
		frames: [][]byte{{1, 1}, {2, 2}, {3, 3}},
		done:   make(chan struct{}),
	}
	defer close(source.done)

	f := startLive(t, source)
	defer f.controller.Stop()

	deadline := time.After(2 * time.Second)
	for f.channel.frameCount() < 3 {
		select {
		case <-deadline:
			t.Fatalf("frames sent=%d, want 3", f.channel.frameCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCaptureLoopDropsOldestOnOverflow(t *testing.T) {
	t.Parallel()

	c := NewLiveController(&fakeCapability{}, NewTranscript())
	source := &scriptedSource{
		frames:  [][]byte{{1}, {2}, {3}},
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	defer close(source.done)
	drained := source.drained

	// No send loop attached, so a capacity-one queue overflows on the
	// second frame and only the newest survives.
	frames := make(chan []byte, 1)
	stop := make(chan struct{})
	defer close(stop)
	go c.captureLoop(source, frames, stop)

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatalf("capture loop never consumed the script")
	}

	select {
	case frame := <-frames:
		if len(frame) != 1 || frame[0] != 3 {
			t.Fatalf("queued frame=%v, want [3]", frame)
		}
	default:
		t.Fatalf("no frame queued")
	}
	if n := len(frames); n != 0 {
		t.Fatalf("queue holds %d extra frames", n)
	}
}

func TestLiveControllerEventTap(t *testing.T) {
	t.Parallel()

	source := newBlockedSource()
	defer source.close()

	var mu sync.Mutex
	var tapped []LiveServerEvent
	f := startLive(t, source, WithEventTap(func(ev LiveServerEvent) {
		mu.Lock()
		tapped = append(tapped, ev)
		mu.Unlock()
	}))
	defer f.controller.Stop()

	f.handlers.OnEvent(LiveServerEvent{InputTranscript: "hi"})
	f.handlers.OnEvent(LiveServerEvent{TurnComplete: true})

	mu.Lock()
	defer mu.Unlock()
	if len(tapped) != 2 {
		t.Fatalf("tapped=%d events, want 2", len(tapped))
	}
	if tapped[0].InputTranscript != "hi" || !tapped[1].TurnComplete {
		t.Fatalf("tapped=%+v", tapped)
	}
}
