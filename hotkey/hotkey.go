// Package hotkey provides a global push-to-talk hotkey.
package hotkey

import (
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"
)

// Manager listens for the global toggle shortcut (Ctrl+Shift+Space) and
// invokes the registered callback. The hook runs process-wide and must be
// stopped on shutdown.
type Manager struct {
	onToggle func()

	mu      sync.Mutex
	running bool
}

// NewManager creates a hotkey manager invoking onToggle on each press.
func NewManager(onToggle func()) *Manager {
	return &Manager{onToggle: onToggle}
}

// Start registers the shortcut and begins listening in the background.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	m.running = true

	hook.Register(hook.KeyDown, []string{"ctrl", "shift", "space"}, func(e hook.Event) {
		slog.Debug("toggle hotkey pressed")
		m.onToggle()
	})

	go func() {
		s := hook.Start()
		<-hook.Process(s)
	}()

	slog.Info("global hotkey registered", "shortcut", "ctrl+shift+space")
	return nil
}

// Stop unregisters the shortcut. Safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	hook.End()
}
