package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleylabs/parley/pkg/copilot"
	"github.com/parleylabs/parley/pkg/infer"
	"github.com/parleylabs/parley/pkg/transcribe"
)

type silentInfer struct{}

func (silentInfer) Complete(context.Context, infer.Request) (string, error) { return "", nil }
func (silentInfer) Invoke(context.Context, infer.Call, any) error {
	return errors.New("no output")
}

func newTestGateway(t *testing.T) (*httptest.Server, *copilot.Registry) {
	t.Helper()
	reg, err := copilot.New(copilot.Options{
		Transcriber: transcribe.Func(func(_ context.Context, audio []byte, _ string) (*transcribe.Result, error) {
			return &transcribe.Result{Text: string(audio)}, nil
		}),
		Inference: silentInfer{},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	srv := httptest.NewServer(NewServer(reg, nil))
	t.Cleanup(func() {
		srv.Close()
		reg.Close()
	})
	return srv, reg
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendMsg(t *testing.T, ws *websocket.Conn, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := ws.WriteJSON(envelope{Type: typ, Data: raw}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil reads envelopes until one with the wanted type arrives,
// skipping the rest.
func readUntil(t *testing.T, ws *websocket.Conn, wantType string) json.RawMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env envelope
		if err := ws.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", wantType, err)
		}
		if env.Type == wantType {
			return env.Data
		}
	}
}

func startWireSession(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	sendMsg(t, ws, msgStartSession, startSessionPayload{
		OwnerID:         1,
		CounterpartName: "Sam",
		RoleLabel:       "product manager",
	})
	var started sessionStartedPayload
	if err := json.Unmarshal(readUntil(t, ws, msgSessionStarted), &started); err != nil {
		t.Fatalf("decode session-started: %v", err)
	}
	if started.SessionID == "" {
		t.Fatal("empty session id")
	}
	return started.SessionID
}

func TestGateway_SessionLifecycle(t *testing.T) {
	srv, reg := newTestGateway(t)
	ws := dialWS(t, srv)
	id := startWireSession(t, ws)
	if reg.Sessions() != 1 {
		t.Fatalf("sessions=%d", reg.Sessions())
	}

	sendMsg(t, ws, msgAudioChunk, audioChunkPayload{
		SessionID:   id,
		AudioData:   base64.StdEncoding.EncodeToString([]byte("good morning")),
		SpeakerRole: copilot.SpeakerCounterpart,
	})
	var tr struct {
		SpeakerRole string `json:"speakerRole"`
		Text        string `json:"text"`
	}
	if err := json.Unmarshal(readUntil(t, ws, "transcription"), &tr); err != nil {
		t.Fatalf("decode transcription: %v", err)
	}
	if tr.Text != "good morning" || tr.SpeakerRole != "counterpart" {
		t.Errorf("got %+v", tr)
	}

	sendMsg(t, ws, msgEmotionData, emotionDataPayload{SessionID: id})
	readUntil(t, ws, "emotion-update")

	sendMsg(t, ws, msgEndSession, endSessionPayload{SessionID: id})
	var ended struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(readUntil(t, ws, "session-ended"), &ended); err != nil {
		t.Fatalf("decode session-ended: %v", err)
	}
	if ended.SessionID != id {
		t.Errorf("got %q", ended.SessionID)
	}

	// The id is dead; further operations report session not found.
	sendMsg(t, ws, msgEndSession, endSessionPayload{SessionID: id})
	var ep errorPayload
	if err := json.Unmarshal(readUntil(t, ws, msgError), &ep); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if ep.Message != "session not found" {
		t.Errorf("message=%q", ep.Message)
	}
}

func TestGateway_Reconnect(t *testing.T) {
	srv, _ := newTestGateway(t)

	ws1 := dialWS(t, srv)
	id := startWireSession(t, ws1)
	ws1.Close()

	// A fresh connection referencing the live id is implicitly
	// resubscribed and keeps driving the session.
	ws2 := dialWS(t, srv)
	sendMsg(t, ws2, msgAudioChunk, audioChunkPayload{
		SessionID:   id,
		AudioData:   base64.StdEncoding.EncodeToString([]byte("still talking")),
		SpeakerRole: copilot.SpeakerInitiator,
	})
	var tr struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(readUntil(t, ws2, "transcription"), &tr); err != nil {
		t.Fatalf("decode transcription: %v", err)
	}
	if tr.Text != "still talking" {
		t.Errorf("got %q", tr.Text)
	}
}

func TestGateway_BadInput(t *testing.T) {
	srv, _ := newTestGateway(t)
	ws := dialWS(t, srv)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, ws, msgError)

	sendMsg(t, ws, "bogus-type", struct{}{})
	readUntil(t, ws, msgError)

	id := startWireSession(t, ws)
	sendMsg(t, ws, msgAudioChunk, audioChunkPayload{
		SessionID:   id,
		AudioData:   "%%%not-base64%%%",
		SpeakerRole: copilot.SpeakerInitiator,
	})
	var ep errorPayload
	if err := json.Unmarshal(readUntil(t, ws, msgError), &ep); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if ep.Message != "invalid audio encoding" {
		t.Errorf("message=%q", ep.Message)
	}

	sendMsg(t, ws, msgAudioChunk, audioChunkPayload{
		SessionID:   "no-such-session",
		AudioData:   base64.StdEncoding.EncodeToString([]byte("x")),
		SpeakerRole: copilot.SpeakerInitiator,
	})
	if err := json.Unmarshal(readUntil(t, ws, msgError), &ep); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if ep.Message != "session not found" {
		t.Errorf("message=%q", ep.Message)
	}
}
