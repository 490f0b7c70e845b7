package voicechat

import "encoding/json"

// Wire event types from the speech backend.
const (
	EventASRResult   = "asr_result"
	EventLLMResponse = "llm_response"
	EventTTSAudio    = "tts_audio"
	EventError       = "error"
)

// Event is a discriminated union for server events.
// Check the concrete type via type switch.
type Event interface {
	eventType() string
}

// ASRResultEvent carries the recognized text for the current utterance.
type ASRResultEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (ASRResultEvent) eventType() string { return EventASRResult }

// LLMResponseEvent carries the generated reply text.
type LLMResponseEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (LLMResponseEvent) eventType() string { return EventLLMResponse }

// TTSAudioEvent carries the URL of the synthesized reply audio.
type TTSAudioEvent struct {
	Type     string `json:"type"`
	AudioURL string `json:"audio_url"`
}

func (TTSAudioEvent) eventType() string { return EventTTSAudio }

// ErrorEvent is an explicit error reported by the backend.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (ErrorEvent) eventType() string { return EventError }

// UnknownEvent holds event types we don't recognize.
// Unknown types are ignored by the session so newer backends keep working.
type UnknownEvent struct {
	Type string `json:"type"`
	Raw  json.RawMessage
}

func (e UnknownEvent) eventType() string { return e.Type }

// ParseEvent unmarshals a server frame into the appropriate Event type.
func ParseEvent(data []byte) (Event, error) {
	// Parse type field first.
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, err
	}

	switch header.Type {
	case EventASRResult:
		var e ASRResultEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventLLMResponse:
		var e LLMResponseEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTTSAudio:
		var e TTSAudioEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventError:
		var e ErrorEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return UnknownEvent{Type: header.Type, Raw: data}, nil
	}
}
