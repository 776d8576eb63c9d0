package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/stanley-cafeteria/stanley-chat/internal/logging"
)

// FramePolicy selects what happens when the capture-to-send frame queue
// is full.
type FramePolicy int

const (
	// DropOldest discards the oldest queued frame to make room. The
	// default: stale audio is worthless in a live conversation.
	DropOldest FramePolicy = iota
	// Block applies backpressure to the capture loop instead.
	Block
)

// AudioSource yields captured microphone audio. ReadFrame fills buf with
// PCM16 bytes and returns the count; it blocks until audio is available
// or the source is closed, at which point it returns an error.
type AudioSource interface {
	ReadFrame(buf []byte) (int, error)
}

// AudioSink plays bot audio chunks in arrival order.
type AudioSink interface {
	Play(pcm []byte)
}

// LiveTranscripts is a snapshot of the in-progress turn buffers.
type LiveTranscripts struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// LiveController manages one duplex voice session: it pumps captured
// audio frames to the provider through a bounded queue, accumulates
// transcript deltas, commits them as transcript messages on turn
// completion, and plays bot audio as it arrives.
//
// Error and close events are handled identically: both tear the session
// down and return the conversation to non-voice mode via the stop hook.
type LiveController struct {
	capability Capability
	transcript *Transcript
	sink       AudioSink
	onStop     func()
	eventTap   func(LiveServerEvent)
	logger     *slog.Logger

	frameBytes int
	queueCap   int
	policy     FramePolicy

	mu      sync.Mutex
	active  bool
	channel LiveChannel
	stop    chan struct{}
	inBuf   string
	outBuf  string
}

// LiveOption configures a LiveController.
type LiveOption func(*LiveController)

// WithSink sets the playback sink for bot audio chunks.
func WithSink(sink AudioSink) LiveOption {
	return func(c *LiveController) { c.sink = sink }
}

// WithOnStop sets a hook invoked after the session is torn down, for
// callers that need to switch the UI back to non-voice mode.
func WithOnStop(fn func()) LiveOption {
	return func(c *LiveController) { c.onStop = fn }
}

// WithFrameQueue sets the bounded frame queue capacity and its overflow
// policy.
func WithFrameQueue(capacity int, policy FramePolicy) LiveOption {
	return func(c *LiveController) {
		c.queueCap = capacity
		c.policy = policy
	}
}

// WithFrameBytes sets the capture frame size in bytes.
func WithFrameBytes(n int) LiveOption {
	return func(c *LiveController) { c.frameBytes = n }
}

// WithLiveLogger sets the controller logger.
func WithLiveLogger(l *slog.Logger) LiveOption {
	return func(c *LiveController) { c.logger = l }
}

// WithEventTap registers a callback observing every server event before
// the controller processes it, for surfaces that mirror transcript
// deltas to a remote client.
func WithEventTap(fn func(LiveServerEvent)) LiveOption {
	return func(c *LiveController) { c.eventTap = fn }
}

// NewLiveController creates a controller committing completed turns into
// transcript.
func NewLiveController(capability Capability, transcript *Transcript, opts ...LiveOption) *LiveController {
	c := &LiveController{
		capability: capability,
		transcript: transcript,
		logger:     slog.Default(),
		frameBytes: 640, // 20ms of PCM16 mono at 16kHz
		queueCap:   16,
		policy:     DropOldest,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the live channel and begins pumping frames from source.
// Only one session may be active at a time.
func (c *LiveController) Start(ctx context.Context, source AudioSource) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrVoiceActive
	}
	c.active = true
	c.stop = make(chan struct{})
	c.inBuf, c.outBuf = "", ""
	stop := c.stop
	c.mu.Unlock()

	channel, err := c.capability.OpenLiveSession(ctx, LiveHandlers{
		OnOpen:  func() { c.logger.Info("live session opened") },
		OnEvent: c.handleEvent,
		OnError: func(err error) {
			c.logger.Error("live session error", logging.Err(err))
			c.Stop()
		},
		OnClose: func() {
			c.logger.Info("live session closed")
			c.Stop()
		},
	})
	if err != nil {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		return fmt.Errorf("opening live session: %w", err)
	}

	c.mu.Lock()
	c.channel = channel
	c.mu.Unlock()

	frames := make(chan []byte, c.queueCap)
	go c.captureLoop(source, frames, stop)
	go c.sendLoop(channel, frames, stop)
	return nil
}

// Stop synchronously halts capture, closes the channel, resets the
// transcript buffers and invokes the stop hook. Safe to call more than
// once and from event handlers.
func (c *LiveController) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	channel := c.channel
	c.channel = nil
	close(c.stop)
	c.inBuf, c.outBuf = "", ""
	onStop := c.onStop
	c.mu.Unlock()

	if channel != nil {
		_ = channel.Close()
	}
	if onStop != nil {
		onStop()
	}
}

// Active reports whether a live session is running.
func (c *LiveController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Transcripts returns a snapshot of the in-progress turn buffers.
func (c *LiveController) Transcripts() LiveTranscripts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return LiveTranscripts{User: c.inBuf, Bot: c.outBuf}
}

func (c *LiveController) handleEvent(ev LiveServerEvent) {
	if c.eventTap != nil {
		c.eventTap(ev)
	}
	if len(ev.Audio) > 0 && c.sink != nil {
		c.sink.Play(ev.Audio)
	}

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.inBuf += ev.InputTranscript
	c.outBuf += ev.OutputTranscript

	var user, bot string
	commit := false
	if ev.TurnComplete {
		user, bot = c.inBuf, c.outBuf
		c.inBuf, c.outBuf = "", ""
		commit = true
	}
	c.mu.Unlock()

	if commit {
		c.transcript.Append(AuthorUser, TextPart(user))
		c.transcript.Append(AuthorBot, TextPart(bot))
	}
}

// captureLoop reads frames from source into the bounded queue. The
// queue stays bidirectional here: DropOldest drains the head to make
// room for the newest frame.
func (c *LiveController) captureLoop(source AudioSource, frames chan []byte, stop <-chan struct{}) {
	buf := make([]byte, c.frameBytes)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := source.ReadFrame(buf)
		if err != nil {
			c.logger.Debug("audio capture ended", logging.Err(err))
			return
		}
		if n == 0 {
			continue
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])

		switch c.policy {
		case Block:
			select {
			case frames <- frame:
			case <-stop:
				return
			}
		default: // DropOldest
			select {
			case frames <- frame:
			default:
				select {
				case <-frames:
				default:
				}
				select {
				case frames <- frame:
				default:
				}
			}
		}
	}
}

func (c *LiveController) sendLoop(channel LiveChannel, frames <-chan []byte, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case frame := <-frames:
			// Fire-and-forget: a failed frame is logged and skipped, the
			// session decides separately whether it is still healthy.
			if err := channel.SendAudioFrame(frame); err != nil {
				c.logger.Debug("audio frame send failed", logging.Err(err))
			}
		}
	}
}
