package voicechat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{}

// wsServer runs handler on an upgraded connection and converts the
// httptest URL to a ws:// endpoint.
func wsServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func recvEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-events:
		if !ok {
			t.Fatal("event channel closed")
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func TestTransportDeliversEventsInOrder(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		frames := []string{
			`{"type": "asr_result", "text": "first"}`,
			`{"type": "llm_response", "text": "second"}`,
			`{"type": "tts_audio", "audio_url": "https://x/y.wav"}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection open until the client closes.
		_, _, _ = conn.ReadMessage()
	})

	tr, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer tr.Close()

	if e := recvEvent(t, tr.Events()); e.(ASRResultEvent).Text != "first" {
		t.Errorf("event 1 = %+v, want asr_result first", e)
	}
	if e := recvEvent(t, tr.Events()); e.(LLMResponseEvent).Text != "second" {
		t.Errorf("event 2 = %+v, want llm_response second", e)
	}
	if e := recvEvent(t, tr.Events()); e.(TTSAudioEvent).AudioURL != "https://x/y.wav" {
		t.Errorf("event 3 = %+v, want tts_audio", e)
	}
}

func TestTransportSendsBinaryFrames(t *testing.T) {
	type frame struct {
		msgType int
		data    []byte
	}
	got := make(chan frame, 8)

	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			got <- frame{msgType: msgType, data: data}
		}
	})

	tr, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer tr.Close()

	chunk := []byte{0x01, 0x02, 0x03}
	if err := tr.Send(chunk); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := tr.SendRecordingStopped(); err != nil {
		t.Fatalf("SendRecordingStopped() error = %v", err)
	}

	f := <-got
	if f.msgType != websocket.BinaryMessage {
		t.Errorf("audio frame type = %d, want binary", f.msgType)
	}
	if string(f.data) != string(chunk) {
		t.Errorf("audio frame = %v, want %v", f.data, chunk)
	}

	f = <-got
	if f.msgType != websocket.TextMessage {
		t.Errorf("control frame type = %d, want text", f.msgType)
	}
	var msg controlMessage
	if err := json.Unmarshal(f.data, &msg); err != nil {
		t.Fatalf("control frame is not JSON: %v", err)
	}
	if msg.Type != "recording_stopped" {
		t.Errorf("control type = %q, want %q", msg.Type, "recording_stopped")
	}
}

func TestTransportMalformedFrameBecomesError(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "asr_result"`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "asr_result", "text": "ok"}`))
		_, _, _ = conn.ReadMessage()
	})

	tr, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer tr.Close()

	e := recvEvent(t, tr.Events())
	ee, ok := e.(ErrorEvent)
	if !ok {
		t.Fatalf("got %T, want ErrorEvent for malformed frame", e)
	}
	if !strings.Contains(ee.Message, "malformed server event") {
		t.Errorf("Message = %q, want malformed marker", ee.Message)
	}

	// The stream survives a bad frame.
	if e := recvEvent(t, tr.Events()); e.(ASRResultEvent).Text != "ok" {
		t.Errorf("follow-up event = %+v, want asr_result ok", e)
	}
}

func TestTransportClosedBehavior(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	tr, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}

	if err := tr.Send([]byte{1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() after close error = %v, want ErrNotConnected", err)
	}
	if err := tr.SendRecordingStopped(); err != nil {
		t.Errorf("SendRecordingStopped() after close error = %v, want nil", err)
	}

	select {
	case _, ok := <-tr.Events():
		if ok {
			t.Error("unexpected event after close")
		}
	case <-time.After(2 * time.Second):
		t.Error("event channel not closed after Close")
	}
}

func TestTransportPeerDisconnectClosesEvents(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		// Return immediately; the deferred Close drops the connection.
	})

	tr, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer tr.Close()

	select {
	case _, ok := <-tr.Events():
		if ok {
			t.Error("unexpected event from disconnecting peer")
		}
	case <-time.After(2 * time.Second):
		t.Error("event channel not closed after peer disconnect")
	}
}

func TestTransportReleasesSocketOnPeerDisconnect(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		// Return immediately; the deferred Close drops the connection.
	})

	tr, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	select {
	case _, ok := <-tr.Events():
		if ok {
			t.Fatal("unexpected event from disconnecting peer")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed after peer disconnect")
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() after disconnect error = %v", err)
	}

	// The read loop must have released the socket; a second close of the
	// underlying connection fails if and only if it did.
	if err := tr.conn.NetConn().Close(); err == nil {
		t.Error("underlying network connection still open after disconnect")
	}
}

func TestDialFailure(t *testing.T) {
	if _, err := Dial(context.Background(), "ws://127.0.0.1:1/ws/audio"); err == nil {
		t.Error("Dial() to dead endpoint succeeded, want error")
	}
}
