// Package voicechat implements the voice interaction session: microphone
// capture feeding a duplex websocket stream, typed server events driving
// transcript updates and reply playback, and a single toggle as the only
// user-facing action.
package voicechat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koe-app/koe/internal/types"
)

// State is the interaction state of the session.
type State int

const (
	// StateIdle means no capture is active and the session is ready to record.
	StateIdle State = iota
	// StateRecording means the microphone is live and chunks are streaming.
	StateRecording
	// StateFinalizing means capture stopped and the backend outcome is pending.
	StateFinalizing
	// StateError is terminal for display only; the next toggle recovers.
	StateError
)

// Capturer produces binary audio chunks at a fixed cadence while recording.
type Capturer interface {
	// Start acquires the input device and begins delivering chunks.
	// The final partial chunk is flushed on Stop before it returns.
	Start(onChunk func(chunk []byte)) error
	// Stop releases the device. Calling it while not recording is a no-op.
	Stop() error
}

// Player plays a synthesized reply identified by an opaque resource URL.
// onComplete receives the playback outcome, nil on natural completion.
// A second Play supersedes the first and suppresses its completion.
type Player interface {
	Play(url string, onComplete func(err error))
	Stop()
}

// TranscriptSink receives finalized utterance and reply records.
type TranscriptSink interface {
	Append(entry types.TranscriptEntry)
}

// Conn is the duplex connection the session streams over.
// Satisfied by *Transport.
type Conn interface {
	Send(chunk []byte) error
	SendRecordingStopped() error
	Events() <-chan Event
	Close() error
}

// DialFunc opens a fresh connection to the backend.
type DialFunc func(ctx context.Context) (Conn, error)

// UploadFunc posts a complete utterance to the REST side channel.
type UploadFunc func(ctx context.Context, pcm []byte) error

// Config wires the session's collaborators.
type Config struct {
	Dial     DialFunc
	Capturer Capturer
	Player   Player
	Sink     TranscriptSink
	// Upload is optional; when nil the side channel is skipped and no
	// processing indicator is shown.
	Upload UploadFunc
	// OnState, when set, is invoked after every observable change.
	OnState func(types.VoiceState)
}

// Internal events. Every callback from a collaborator becomes one of these
// and is dispatched through a single ordered queue, so no two handlers ever
// run concurrently on session state.
type (
	toggleEvent   struct{}
	chunkEvent    struct{ data []byte }
	finalizeEvent struct{}
	playbackDone  struct {
		gen int
		err error
	}
	uploadDone    struct{ err error }
	closeEvent    struct{ done chan struct{} }
)

// Session owns the interaction state machine. One session corresponds to
// one connection lifetime; it is created on startup and torn down by Close.
type Session struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	queue   chan any
	stopped chan struct{}

	closeOnce sync.Once

	// Owned by the run loop.
	conn      Conn
	utterance []byte
	playGen   int

	// Observable snapshot.
	mu             sync.RWMutex
	state          State
	processing     bool
	aiResponding   bool
	lastError      string
	lastRecognized string
}

// New creates a session and starts its run loop.
func New(cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan any, 64),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// Toggle flips between recording and not recording. It is the session's
// entire actionable surface; failures surface through State, never here.
func (s *Session) Toggle() {
	s.enqueue(toggleEvent{})
}

// State returns the current observable snapshot.
func (s *Session) State() types.VoiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.VoiceState{
		IsRecording:        s.state == StateRecording,
		IsProcessing:       s.processing,
		IsAIResponding:     s.aiResponding,
		LastError:          s.lastError,
		LastRecognizedText: s.lastRecognized,
	}
}

// Close stops capture, closes the transport, and stops playback.
// Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		done := make(chan struct{})
		select {
		case s.queue <- closeEvent{done: done}:
			<-done
		case <-s.stopped:
		}
		s.cancel()
	})
	return nil
}

func (s *Session) enqueue(ev any) {
	select {
	case s.queue <- ev:
	case <-s.stopped:
	}
}

func (s *Session) run() {
	defer close(s.stopped)

	for {
		// A nil connection yields a nil channel, which never fires.
		var events <-chan Event
		if s.conn != nil {
			events = s.conn.Events()
		}

		select {
		case ev := <-s.queue:
			if s.handle(ev) {
				return
			}
		case event, ok := <-events:
			if !ok {
				s.handleDisconnect()
				continue
			}
			s.handleServer(event)
		}
	}
}

// handle dispatches one internal event. Returns true on teardown.
func (s *Session) handle(ev any) bool {
	switch ev := ev.(type) {
	case toggleEvent:
		s.handleToggle()
	case chunkEvent:
		s.handleChunk(ev.data)
	case finalizeEvent:
		s.handleFinalize()
	case playbackDone:
		s.handlePlaybackDone(ev.gen, ev.err)
	case uploadDone:
		s.handleUploadDone(ev.err)
	case closeEvent:
		s.teardown()
		close(ev.done)
		return true
	}
	return false
}

func (s *Session) handleToggle() {
	if s.snapshot().IsProcessing {
		// A prior utterance's stop-handling is still completing; starting a
		// second capture now would overlap with it.
		slog.Debug("toggle ignored while processing")
		return
	}

	if s.currentState() == StateRecording {
		s.stopRecording()
	} else {
		s.startRecording()
	}
}

func (s *Session) startRecording() {
	s.setError("")

	// Device first: a denied microphone must not open a connection
	// that will never carry audio.
	if err := s.cfg.Capturer.Start(func(chunk []byte) {
		s.enqueue(chunkEvent{data: chunk})
	}); err != nil {
		slog.Warn("start capture", "error", err)
		s.setError(err.Error())
		return
	}

	if s.conn == nil {
		conn, err := s.cfg.Dial(s.ctx)
		if err != nil {
			slog.Error("dial backend", "error", err)
			_ = s.cfg.Capturer.Stop()
			s.setError(err.Error())
			return
		}
		s.conn = conn
	}

	s.utterance = s.utterance[:0]
	s.setState(StateRecording)
	slog.Info("recording started")
}

func (s *Session) stopRecording() {
	// Stop flushes the residual chunk onto the queue before returning,
	// so the finalize event enqueued after it is handled last.
	if err := s.cfg.Capturer.Stop(); err != nil {
		slog.Error("stop capture", "error", err)
	}
	s.setState(StateFinalizing)
	s.enqueue(finalizeEvent{})
	slog.Info("recording stopped")
}

func (s *Session) handleChunk(chunk []byte) {
	st := s.currentState()
	if st != StateRecording && st != StateFinalizing {
		return
	}

	s.utterance = append(s.utterance, chunk...)

	if s.conn == nil {
		s.setError(ErrNotConnected.Error())
		return
	}
	if err := s.conn.Send(chunk); err != nil {
		slog.Warn("send audio chunk", "error", err, "bytes", len(chunk))
		s.setError(err.Error())
	}
}

func (s *Session) handleFinalize() {
	if s.conn != nil {
		_ = s.conn.SendRecordingStopped()
	}

	if s.cfg.Upload == nil || len(s.utterance) == 0 {
		return
	}

	pcm := make([]byte, len(s.utterance))
	copy(pcm, s.utterance)
	s.utterance = s.utterance[:0]

	s.setProcessing(true)
	go func() {
		err := s.cfg.Upload(s.ctx, pcm)
		s.enqueue(uploadDone{err: err})
	}()
}

func (s *Session) handleServer(event Event) {
	switch event := event.(type) {
	case ASRResultEvent:
		s.append(event.Text, true)
		s.setRecognized(event.Text)

	case LLMResponseEvent:
		s.append(event.Text, false)
		s.setAIResponding(true)

	case TTSAudioEvent:
		// A new reply always supersedes the previous one; only the latest
		// playback's completion may clear the responding flag.
		s.playGen++
		gen := s.playGen
		s.cfg.Player.Play(event.AudioURL, func(err error) {
			s.enqueue(playbackDone{gen: gen, err: err})
		})

	case ErrorEvent:
		slog.Warn("backend error", "message", event.Message)
		if s.currentState() == StateRecording {
			_ = s.cfg.Capturer.Stop()
		}
		s.setAIResponding(false)
		s.setError(event.Message)
		s.setState(StateError)

	case UnknownEvent:
		// Forward compatible: newer backends may add event types.
		slog.Debug("ignoring unknown server event", "type", event.Type)
	}
}

func (s *Session) handlePlaybackDone(gen int, err error) {
	if gen != s.playGen {
		return
	}
	if err != nil {
		slog.Warn("reply playback failed", "error", err)
		s.setError(err.Error())
	}
	s.setAIResponding(false)

	// Playback completion is the user-visible end of the turn.
	if st := s.currentState(); st == StateFinalizing || st == StateError {
		s.setState(StateIdle)
	}
}

func (s *Session) handleUploadDone(err error) {
	s.setProcessing(false)
	if err != nil {
		slog.Error("utterance upload failed", "error", err)
		s.setError(err.Error())
	}
}

func (s *Session) handleDisconnect() {
	s.conn = nil
	slog.Warn("backend connection lost")

	if s.currentState() == StateRecording {
		_ = s.cfg.Capturer.Stop()
	}
	s.setAIResponding(false)
	s.setError(ErrTransportClosed.Error())
	s.setState(StateError)
}

func (s *Session) teardown() {
	_ = s.cfg.Capturer.Stop()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.cfg.Player.Stop()
	slog.Info("session closed")
}

func (s *Session) append(text string, fromUser bool) {
	if s.cfg.Sink == nil {
		return
	}
	s.cfg.Sink.Append(types.TranscriptEntry{
		ID:        uuid.NewString(),
		Text:      text,
		FromUser:  fromUser,
		Timestamp: time.Now().UnixMilli(),
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Observable state
// ─────────────────────────────────────────────────────────────────────────────

func (s *Session) currentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) snapshot() types.VoiceState {
	return s.State()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setProcessing(v bool) {
	s.mu.Lock()
	s.processing = v
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setAIResponding(v bool) {
	s.mu.Lock()
	s.aiResponding = v
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setRecognized(text string) {
	s.mu.Lock()
	s.lastRecognized = text
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	if s.cfg.OnState != nil {
		s.cfg.OnState(s.State())
	}
}
