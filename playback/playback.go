// Package playback plays synthesized reply audio fetched from the backend.
// At most one resource plays at a time; starting a new one supersedes the
// previous playback and suppresses its completion callback.
package playback

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/koe-app/koe/wav"
)

// maxAudioBytes caps how much reply audio we will download.
const maxAudioBytes = 32 << 20

// Player fetches WAV resources over HTTP and plays them on the default
// output device. The oto context is created lazily on first use because
// it cannot be torn down and re-created within one process.
type Player struct {
	client *http.Client

	mu      sync.Mutex
	otoCtx  *oto.Context
	otoRate int
	current *oto.Player
	gen     int
}

// NewPlayer creates a player.
func NewPlayer() *Player {
	return &Player{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Play begins playback of the resource at url. onComplete is invoked
// exactly once with the playback outcome, nil on natural completion;
// it is suppressed if a newer Play or Stop supersedes this one.
func (p *Player) Play(url string, onComplete func(err error)) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	if p.current != nil {
		_ = p.current.Close()
		p.current = nil
	}
	p.mu.Unlock()

	go p.playResource(url, gen, onComplete)
}

// Stop halts the active playback, suppressing its pending completion.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	if p.current != nil {
		_ = p.current.Close()
		p.current = nil
	}
}

func (p *Player) playResource(url string, gen int, onComplete func(error)) {
	pcm, sampleRate, channels, err := p.fetch(url)
	if err != nil {
		slog.Error("fetch reply audio", "url", url, "error", err)
		p.finish(gen, onComplete, err)
		return
	}

	p.mu.Lock()
	if gen != p.gen {
		// Superseded while downloading.
		p.mu.Unlock()
		return
	}
	ctx, err := p.context(sampleRate, channels)
	if err != nil {
		p.mu.Unlock()
		slog.Error("init audio output", "error", err)
		p.finish(gen, onComplete, err)
		return
	}
	player := ctx.NewPlayer(bytes.NewReader(pcm))
	p.current = player
	p.mu.Unlock()

	player.Play()

	// Poll until the buffer drains or we are superseded.
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
		p.mu.Lock()
		stale := gen != p.gen
		p.mu.Unlock()
		if stale {
			return
		}
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	_ = player.Close()
	p.current = nil
	p.mu.Unlock()

	if onComplete != nil {
		onComplete(nil)
	}
}

// finish reports the outcome unless a newer Play or Stop superseded gen.
func (p *Player) finish(gen int, onComplete func(error), err error) {
	p.mu.Lock()
	stale := gen != p.gen
	p.mu.Unlock()

	if stale || onComplete == nil {
		return
	}
	onComplete(err)
}

func (p *Player) fetch(url string) (pcm []byte, sampleRate, channels int, err error) {
	resp, err := p.client.Get(url)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("get audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, 0, fmt.Errorf("get audio: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read audio body: %w", err)
	}

	pcm, sampleRate, channels, err = wav.Decode(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode audio: %w", err)
	}
	return pcm, sampleRate, channels, nil
}

// context returns the shared oto context, creating it on first use.
// oto supports one context per process, so the first resource's format
// wins; later resources with a different rate are resampled by the OS
// mixer poorly at worst.
func (p *Player) context(sampleRate, channels int) (*oto.Context, error) {
	if p.otoCtx != nil {
		if sampleRate != p.otoRate {
			slog.Debug("audio context rate mismatch", "have", p.otoRate, "want", sampleRate)
		}
		return p.otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	p.otoCtx = ctx
	p.otoRate = sampleRate
	return ctx, nil
}
