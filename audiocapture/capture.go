// Package audiocapture provides microphone capture via the system audio
// backend (miniaudio). Captured PCM is delivered as fixed-cadence binary
// chunks suitable for streaming.
package audiocapture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// ErrDeviceDenied is returned when the microphone cannot be acquired,
// typically because the platform denied access.
var ErrDeviceDenied = errors.New("microphone access denied")

// ErrAlreadyCapturing is returned when Start is called while recording.
var ErrAlreadyCapturing = errors.New("already capturing audio")

// Config holds configuration for microphone capture.
type Config struct {
	SampleRate    int           // default 16000 Hz
	Channels      int           // default 1 (mono)
	ChunkInterval time.Duration // chunk cadence, default 100ms
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:    16000,
		Channels:      1,
		ChunkInterval: 100 * time.Millisecond,
	}
}

// Capture records from the default microphone. The device is acquired on
// Start and released on Stop; no handle survives an error path.
type Capture struct {
	cfg Config

	mu        sync.Mutex
	capturing bool
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	chunker   *chunker
}

// New creates a new microphone capture instance.
func New(cfg Config) (*Capture, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkInterval == 0 {
		cfg.ChunkInterval = 100 * time.Millisecond
	}
	return &Capture{cfg: cfg}, nil
}

// SampleRate returns the configured sample rate.
func (c *Capture) SampleRate() int { return c.cfg.SampleRate }

// Channels returns the configured channel count.
func (c *Capture) Channels() int { return c.cfg.Channels }

// Start acquires the microphone and begins delivering s16le PCM chunks of
// roughly ChunkInterval each. The callback runs on the capture goroutine;
// it must not block for long.
func (c *Capture) Start(onChunk func(chunk []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capturing {
		return ErrAlreadyCapturing
	}

	chunkBytes := c.cfg.SampleRate * c.cfg.Channels * 2 * int(c.cfg.ChunkInterval.Milliseconds()) / 1000
	ck := newChunker(chunkBytes, onChunk)

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: init audio context: %s", ErrDeviceDenied, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(c.cfg.Channels)
	deviceConfig.SampleRate = uint32(c.cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			ck.Write(input)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		return fmt.Errorf("%w: open device: %s", ErrDeviceDenied, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		return fmt.Errorf("%w: start device: %s", ErrDeviceDenied, err)
	}

	c.ctx = mctx
	c.device = device
	c.chunker = ck
	c.capturing = true
	return nil
}

// Stop releases the microphone and flushes the residual partial chunk
// through the callback before returning. Stopping while not capturing is
// a no-op.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.capturing {
		return nil
	}
	c.capturing = false

	// Halt the device before flushing so no data races the final chunk.
	_ = c.device.Stop()
	c.device.Uninit()
	_ = c.ctx.Uninit()
	c.device = nil
	c.ctx = nil

	c.chunker.Flush()
	c.chunker = nil
	return nil
}

// IsCapturing reports whether the microphone is currently live.
func (c *Capture) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}
