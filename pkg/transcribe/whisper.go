package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	defaultWhisperBaseURL = "https://api.openai.com/v1"
	defaultWhisperModel   = "whisper-1"

	// maxAudioBytes is the Whisper API upload limit.
	maxAudioBytes = 25 * 1024 * 1024
)

// Whisper transcribes audio via the OpenAI audio transcription API.
//
// The request is a multipart upload with verbose_json response format
// so the detected language comes back alongside the text.
type Whisper struct {
	// APIKey authenticates requests. Required.
	APIKey string

	// BaseURL overrides the API base URL (e.g. for a proxy).
	BaseURL string

	// Model overrides the transcription model. Default "whisper-1".
	Model string

	// Prompt is an optional transcription hint passed on every call.
	Prompt string

	// HTTPClient overrides the HTTP client. Default http.DefaultClient.
	HTTPClient *http.Client
}

var _ Transcriber = (*Whisper)(nil)

type whisperVerbose struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Transcribe uploads the audio and returns the transcription.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, languageHint string) (*Result, error) {
	if w.APIKey == "" {
		return nil, &Error{Code: CodeMissingAPIKey, Message: "api key not configured"}
	}
	if len(audio) > maxAudioBytes {
		return nil, &Error{
			Code:    CodeFileTooLarge,
			Message: "audio too large",
			Details: fmt.Sprintf("%d bytes, max %d", len(audio), maxAudioBytes),
		}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.webm")
	if err != nil {
		return nil, &Error{Code: CodeRequestFailed, Message: "build request", Details: err.Error()}
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, &Error{Code: CodeRequestFailed, Message: "build request", Details: err.Error()}
	}
	model := w.Model
	if model == "" {
		model = defaultWhisperModel
	}
	mw.WriteField("model", model)
	mw.WriteField("response_format", "verbose_json")
	if languageHint != "" {
		mw.WriteField("language", languageHint)
	}
	if w.Prompt != "" {
		mw.WriteField("prompt", w.Prompt)
	}
	if err := mw.Close(); err != nil {
		return nil, &Error{Code: CodeRequestFailed, Message: "build request", Details: err.Error()}
	}

	base := w.BaseURL
	if base == "" {
		base = defaultWhisperBaseURL
	}
	url := strings.TrimSuffix(base, "/") + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, &Error{Code: CodeRequestFailed, Message: "build request", Details: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+w.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := w.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Code: CodeRequestFailed, Message: "transcription request failed", Details: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{
			Code:    CodeRequestFailed,
			Message: "transcription request failed",
			Details: fmt.Sprintf("%s: %s", resp.Status, bytes.TrimSpace(detail)),
		}
	}

	var out whisperVerbose
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{Code: CodeBadResponse, Message: "decode response", Details: err.Error()}
	}
	return &Result{Text: out.Text, Language: out.Language, Duration: out.Duration}, nil
}
