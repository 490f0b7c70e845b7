package voicechat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/koe-app/koe/wav"
)

// Uploader posts a complete utterance to the REST side channel after a
// recording stops. The duplex session does not depend on it; a failed
// upload only surfaces as a displayed error.
type Uploader struct {
	baseURL string
	client  *http.Client
}

// NewUploader creates an uploader for the given backend base URL,
// e.g. "http://localhost:8000".
func NewUploader(baseURL string) *Uploader {
	return &Uploader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload wraps the utterance PCM in a WAV container and posts it as the
// multipart field "audio". Only success or failure is consumed.
func (u *Uploader) Upload(ctx context.Context, pcm []byte, sampleRate, channels int) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wav.Encode(pcm, sampleRate, channels)); err != nil {
		return fmt.Errorf("write audio part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/api/process-audio", &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("process audio: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("process audio: unexpected status %s", resp.Status)
	}
	return nil
}
