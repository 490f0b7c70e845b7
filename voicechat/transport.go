package voicechat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// controlMessage is the one-shot control frame sent at utterance end.
type controlMessage struct {
	Type string `json:"type"`
}

// Transport is a persistent duplex websocket connection to the speech
// backend. Outbound audio chunks are binary frames; inbound server events
// are JSON text frames delivered on Events in strict arrival order.
type Transport struct {
	conn   *websocket.Conn
	events chan Event

	mu     sync.Mutex
	closed bool
}

// Dial opens a websocket connection to the backend audio endpoint.
// The returned transport is ready to send; a reader goroutine decodes
// inbound events until the connection closes.
func Dial(ctx context.Context, url string) (*Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	t := &Transport{
		conn:   conn,
		events: make(chan Event, 16),
	}
	go t.readLoop()

	slog.Info("transport connected", "url", url)
	return t, nil
}

// Send transmits one audio chunk as a binary frame. Fire-and-forget:
// there is no per-chunk acknowledgment. Sending on a closed or dead
// connection fails with ErrNotConnected, never silently drops.
func (t *Transport) Send(chunk []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrNotConnected
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("%w: %s", ErrNotConnected, err)
	}
	return nil
}

// SendRecordingStopped signals the end of the current utterance.
// A close racing with stop is expected, not fatal: if the connection is
// already gone the control frame is skipped silently.
func (t *Transport) SendRecordingStopped() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	if err := t.conn.WriteJSON(controlMessage{Type: "recording_stopped"}); err != nil {
		slog.Debug("recording_stopped control skipped", "error", err)
	}
	return nil
}

// Events returns the inbound event channel. The transport performs no
// reordering or deduplication; the channel is closed when the connection
// terminates, expectedly or not.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// Close tears down the connection. Safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	// Best effort close handshake; the peer may already be gone.
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"))
	return t.conn.Close()
}

func (t *Transport) readLoop() {
	defer close(t.events)

	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			wasClosed := t.closed
			t.closed = true
			t.mu.Unlock()

			if !wasClosed {
				slog.Warn("transport read failed", "error", err)
			}
			// Close returns early once closed is set, so the socket
			// must be released here.
			_ = t.conn.Close()
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		event, err := ParseEvent(data)
		if err != nil {
			// Malformed frames surface as an explicit backend error
			// instead of being dropped on the floor.
			event = ErrorEvent{Type: EventError, Message: fmt.Sprintf("malformed server event: %s", err)}
		}
		t.events <- event
	}
}
