// Package transcribe wraps external speech-to-text services.
package transcribe

import "context"

// Result is the outcome of a successful transcription.
type Result struct {
	// Text is the full transcription.
	Text string

	// Language is the detected language code (e.g. "en", "ar").
	Language string

	// Duration is the audio duration in seconds, when reported.
	Duration float64
}

// Transcriber is the interface that wraps the Transcribe method.
//
// Implementations may fail independently per invocation; a failed call
// loses only that one audio chunk.
type Transcriber interface {
	// Transcribe converts raw audio bytes to text. languageHint is an
	// optional ISO language code passed to the service; the detected
	// language is returned on the Result.
	Transcribe(ctx context.Context, audio []byte, languageHint string) (*Result, error)
}

// Func is an adapter to allow the use of ordinary functions as
// Transcribers.
type Func func(ctx context.Context, audio []byte, languageHint string) (*Result, error)

// Transcribe calls the underlying function.
func (f Func) Transcribe(ctx context.Context, audio []byte, languageHint string) (*Result, error) {
	return f(ctx, audio, languageHint)
}

// Machine-readable error codes carried on *Error.
const (
	CodeMissingAPIKey = "missing_api_key"
	CodeFileTooLarge  = "file_too_large"
	CodeRequestFailed = "request_failed"
	CodeBadResponse   = "bad_response"
)

// Error is a transcription failure with a machine-readable code.
type Error struct {
	Code    string
	Message string
	Details string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details == "" {
		return "transcribe: " + e.Message
	}
	return "transcribe: " + e.Message + ": " + e.Details
}
