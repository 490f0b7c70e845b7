// Package app provides the core application service for Wails bindings.
package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wailsapp/wails/v3/pkg/application"

	"github.com/koe-app/koe/audiocapture"
	"github.com/koe-app/koe/config"
	"github.com/koe-app/koe/history"
	"github.com/koe-app/koe/hotkey"
	"github.com/koe-app/koe/internal/types"
	"github.com/koe-app/koe/playback"
	"github.com/koe-app/koe/voicechat"
)

// Service provides application functionality bound to Wails.
// This struct focuses on wiring; the session logic lives in voicechat.
type Service struct {
	cfg    *config.Config
	store  *history.Store
	hotkey *hotkey.Manager

	session *voicechat.Session

	// UI references - set via Init
	app    *application.App
	window application.Window

	// Version info (set by caller)
	version string
}

// New creates a new Service. Call Init() after the Wails app is created.
func New(version string) *Service {
	return &Service{version: version}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init initializes the service with app and window references.
// Must be called after the Wails application is created.
func (s *Service) Init(app *application.App, window application.Window) {
	s.app = app
	s.window = window

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = &config.Config{}
	}
	s.cfg = cfg

	s.setupHistory()
	s.setupSession()
	s.setupHotkey()
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	if s.hotkey != nil {
		s.hotkey.Stop()
	}
	if s.session != nil {
		_ = s.session.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Error("close history store", "error", err)
		}
	}
}

func (s *Service) setupHistory() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		slog.Error("get config dir for history", "error", err)
		return
	}

	path := filepath.Join(configDir, "koe", "history")
	store, err := history.Open(path)
	if err != nil {
		slog.Error("open history store", "error", err)
		return
	}
	s.store = store
	slog.Info("history store opened", "path", path)
}

func (s *Service) setupSession() {
	capture, err := audiocapture.New(audiocapture.Config{
		SampleRate:    s.cfg.SampleRate,
		Channels:      s.cfg.Channels,
		ChunkInterval: s.cfg.ChunkDuration(),
	})
	if err != nil {
		slog.Error("create audio capture", "error", err)
		return
	}

	uploader := voicechat.NewUploader(s.cfg.ServerURL)

	s.session = voicechat.New(voicechat.Config{
		Capturer: capture,
		Player:   playback.NewPlayer(),
		Sink:     &transcriptSink{store: s.store, emit: s.emit},
		Dial: func(ctx context.Context) (voicechat.Conn, error) {
			wsURL, err := s.cfg.WebsocketURL()
			if err != nil {
				return nil, err
			}
			t, err := voicechat.Dial(ctx, wsURL)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		Upload: func(ctx context.Context, pcm []byte) error {
			return uploader.Upload(ctx, pcm, s.cfg.SampleRate, s.cfg.Channels)
		},
		OnState: func(state types.VoiceState) {
			s.emit(EventVoiceState, state)
		},
	})
}

func (s *Service) setupHotkey() {
	if !s.cfg.HotkeyEnabled {
		return
	}

	s.hotkey = hotkey.NewManager(func() {
		s.ToggleRecording()
	})
	if err := s.hotkey.Start(); err != nil {
		slog.Error("start hotkey", "error", err)
	}
}

// emit is a safe wrapper around app.Event.Emit
func (s *Service) emit(name string, data any) {
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Voice Session
// ─────────────────────────────────────────────────────────────────────────────

// ToggleRecording flips between recording and not recording.
func (s *Service) ToggleRecording() {
	if s.session == nil {
		slog.Warn("toggle with no session")
		return
	}
	s.session.Toggle()
}

// GetVoiceState returns the current observable session state.
func (s *Service) GetVoiceState() types.VoiceState {
	if s.session == nil {
		return types.VoiceState{}
	}
	return s.session.State()
}

// ─────────────────────────────────────────────────────────────────────────────
// Transcript History
// ─────────────────────────────────────────────────────────────────────────────

// GetHistory returns up to the 200 most recent transcript entries.
func (s *Service) GetHistory() []types.TranscriptEntry {
	if s.store == nil {
		return nil
	}
	entries, err := s.store.Recent(200)
	if err != nil {
		slog.Error("load history", "error", err)
		return nil
	}
	return entries
}

// ClearHistory removes all stored transcript entries.
func (s *Service) ClearHistory() error {
	if s.store == nil {
		return nil
	}
	return s.store.Clear()
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// GetConfig returns the current configuration.
func (s *Service) GetConfig() config.Config {
	return *s.cfg
}

// SetServerURL updates the backend endpoint. Takes effect on the next
// connection.
func (s *Service) SetServerURL(url string) error {
	s.cfg.ServerURL = url
	return s.cfg.Save()
}

// transcriptSink persists entries and forwards them to the UI.
type transcriptSink struct {
	store *history.Store
	emit  func(name string, data any)
}

func (ts *transcriptSink) Append(entry types.TranscriptEntry) {
	if ts.store != nil {
		if err := ts.store.Append(entry); err != nil {
			slog.Warn("persist transcript entry", "error", err)
		}
	}
	ts.emit(EventChatMessage, entry)
}
