package playback

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPlayReportsFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	got := make(chan error, 1)
	p := NewPlayer()
	p.Play(srv.URL+"/reply.wav", func(err error) { got <- err })

	select {
	case err := <-got:
		if err == nil {
			t.Error("completion error = nil, want fetch failure")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never invoked on fetch failure")
	}
}

func TestStopSuppressesPendingCompletion(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	got := make(chan error, 1)
	p := NewPlayer()
	p.Play(srv.URL+"/reply.wav", func(err error) { got <- err })
	p.Stop()
	close(release)

	select {
	case <-got:
		t.Error("superseded playback still reported its outcome")
	case <-time.After(200 * time.Millisecond):
	}
}
