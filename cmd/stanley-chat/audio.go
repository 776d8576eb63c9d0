package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"
)

const (
	micSampleRate      = 16000
	playbackSampleRate = 24000
	audioChannels      = 1
)

// initAudio sets up microphone capture at 16kHz and speaker playback at
// 24kHz, the fixed rates of the live voice session. The cleanup function
// releases both devices.
func initAudio() (*micReader, *speakerWriter, func(), error) {
	malgoConfig := malgo.ContextConfig{}
	malgoConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, malgoConfig, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init audio context: %w", err)
	}

	mic, err := newMicReader(malgoCtx.Context)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, nil, nil, err
	}

	// 4800 bytes is ~100ms at 24kHz mono 16-bit, small enough to keep
	// playback latency conversational.
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   playbackSampleRate,
		ChannelCount: audioChannels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   4800,
	})
	if err != nil {
		mic.Close()
		_ = malgoCtx.Uninit()
		return nil, nil, nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	speaker := newSpeakerWriter(otoCtx)

	cleanup := func() {
		mic.Close()
		speaker.Close()
		_ = malgoCtx.Uninit()
	}
	return mic, speaker, cleanup, nil
}

// micReader buffers captured microphone samples and hands them out as
// frames. It implements chat.AudioSource.
type micReader struct {
	device *malgo.Device

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func newMicReader(ctx malgo.Context) (*micReader, error) {
	m := &micReader{
		buf: make([]byte, 0, micSampleRate*2), // 1 second
	}
	m.cond = sync.NewCond(&m.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = audioChannels
	deviceConfig.SampleRate = micSampleRate
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			m.mu.Lock()
			m.buf = append(m.buf, pInputSamples...)
			m.mu.Unlock()
			m.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(ctx, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start microphone: %w", err)
	}
	return m, nil
}

// ReadFrame blocks until captured audio is available or the reader is
// closed.
func (m *micReader) ReadFrame(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.buf) == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return 0, io.EOF
	}

	n := copy(p, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

func (m *micReader) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()

	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
	}
}

// speakerWriter plays PCM chunks through the speaker. It implements
// chat.AudioSink; oto pulls from its buffer via Read.
type speakerWriter struct {
	otoCtx *oto.Context

	mu      sync.Mutex
	cond    *sync.Cond
	player  *oto.Player
	buf     []byte
	playing bool
	closed  bool
}

func newSpeakerWriter(ctx *oto.Context) *speakerWriter {
	s := &speakerWriter{
		otoCtx: ctx,
		buf:    make([]byte, 0, playbackSampleRate*4), // 2 seconds
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Play queues a chunk for playback, starting the player on first audio.
func (s *speakerWriter) Play(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.buf = append(s.buf, data...)

	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
}

// Read implements io.Reader for oto.Player. Returns silence once closed
// so oto drains gracefully.
func (s *speakerWriter) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed && len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	if len(s.buf) == 0 {
		s.cond.Broadcast()
	}
	return n, nil
}

// Drain blocks until all queued audio has been handed to the device.
func (s *speakerWriter) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) > 0 && !s.closed {
		s.cond.Wait()
	}
}

func (s *speakerWriter) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	if s.player != nil {
		_ = s.player.Close()
	}
}
