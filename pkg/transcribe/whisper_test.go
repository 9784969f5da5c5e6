package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWhisper_Transcribe(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotAuth, gotModel, gotLang string
		var gotAudio []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/audio/transcriptions" {
				t.Errorf("path=%s", r.URL.Path)
			}
			gotAuth = r.Header.Get("Authorization")
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			gotModel = r.FormValue("model")
			gotLang = r.FormValue("language")
			f, _, err := r.FormFile("file")
			if err != nil {
				t.Fatalf("form file: %v", err)
			}
			gotAudio, _ = io.ReadAll(f)
			io.WriteString(w, `{"text":"hello there","language":"en","duration":2.5}`)
		}))
		defer srv.Close()

		wh := &Whisper{APIKey: "k", BaseURL: srv.URL}
		res, err := wh.Transcribe(context.Background(), []byte("audio-bytes"), "en")
		if err != nil {
			t.Fatalf("transcribe: %v", err)
		}
		if res.Text != "hello there" || res.Language != "en" || res.Duration != 2.5 {
			t.Errorf("got %+v", res)
		}
		if gotAuth != "Bearer k" {
			t.Errorf("auth=%s", gotAuth)
		}
		if gotModel != "whisper-1" {
			t.Errorf("model=%s", gotModel)
		}
		if gotLang != "en" {
			t.Errorf("language=%s", gotLang)
		}
		if string(gotAudio) != "audio-bytes" {
			t.Errorf("audio=%q", gotAudio)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		wh := &Whisper{}
		_, err := wh.Transcribe(context.Background(), []byte("x"), "")
		var terr *Error
		if !errors.As(err, &terr) || terr.Code != CodeMissingAPIKey {
			t.Errorf("got %v", err)
		}
	})

	t.Run("file too large", func(t *testing.T) {
		wh := &Whisper{APIKey: "k"}
		_, err := wh.Transcribe(context.Background(), make([]byte, maxAudioBytes+1), "")
		var terr *Error
		if !errors.As(err, &terr) || terr.Code != CodeFileTooLarge {
			t.Errorf("got %v", err)
		}
	})

	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"bad audio"}`, http.StatusBadRequest)
		}))
		defer srv.Close()

		wh := &Whisper{APIKey: "k", BaseURL: srv.URL}
		_, err := wh.Transcribe(context.Background(), []byte("x"), "")
		var terr *Error
		if !errors.As(err, &terr) || terr.Code != CodeRequestFailed {
			t.Fatalf("got %v", err)
		}
		if !strings.Contains(terr.Details, "bad audio") {
			t.Errorf("details=%s", terr.Details)
		}
	})

	t.Run("malformed response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `not json`)
		}))
		defer srv.Close()

		wh := &Whisper{APIKey: "k", BaseURL: srv.URL}
		_, err := wh.Transcribe(context.Background(), []byte("x"), "")
		var terr *Error
		if !errors.As(err, &terr) || terr.Code != CodeBadResponse {
			t.Errorf("got %v", err)
		}
	})
}
