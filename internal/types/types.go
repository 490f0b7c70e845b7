// Package types provides shared type definitions for the application.
package types

// TranscriptEntry is one finalized message in the conversation.
// Entries are immutable once created and append-only from the core's
// perspective.
type TranscriptEntry struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	FromUser  bool   `json:"fromUser"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp in milliseconds
	AudioURL  string `json:"audioUrl,omitempty"`
}

// VoiceState is the observable snapshot of the voice session for the UI.
type VoiceState struct {
	IsRecording        bool   `json:"isRecording"`
	IsProcessing       bool   `json:"isProcessing"`
	IsAIResponding     bool   `json:"isAiResponding"`
	LastError          string `json:"lastError,omitempty"`
	LastRecognizedText string `json:"lastRecognizedText,omitempty"`
}
