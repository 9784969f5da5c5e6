package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/parleylabs/parley/pkg/copilot"
	"github.com/parleylabs/parley/pkg/telemetry"
)

// envelope is the wire frame in both directions:
// {"type": "...", "data": {...}}.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound message types.
const (
	msgStartSession = "start-session"
	msgAudioChunk   = "audio-chunk"
	msgEmotionData  = "emotion-data"
	msgEndSession   = "end-session"
)

// Outbound message types not covered by copilot events.
const (
	msgSessionStarted = "session-started"
	msgError          = "error"
)

type startSessionPayload struct {
	OwnerID         int64  `json:"ownerId"`
	CounterpartName string `json:"counterpartName"`
	RoleLabel       string `json:"roleLabel"`
}

type audioChunkPayload struct {
	SessionID string `json:"sessionId"`
	// AudioData is a standard-base64 encoded audio chunk.
	AudioData   string              `json:"audioData"`
	SpeakerRole copilot.SpeakerRole `json:"speakerRole"`
}

type emotionDataPayload struct {
	SessionID string           `json:"sessionId"`
	Emotion   telemetry.Sample `json:"emotion"`
}

type endSessionPayload struct {
	SessionID string `json:"sessionId"`
}

type sessionStartedPayload struct {
	SessionID string `json:"sessionId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func encodeEnvelope(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode %s payload: %w", typ, err)
	}
	return json.Marshal(envelope{Type: typ, Data: raw})
}

// eventEnvelope frames a copilot event under its wire event name.
func eventEnvelope(ev copilot.Event) ([]byte, error) {
	return encodeEnvelope(ev.EventType(), ev)
}
