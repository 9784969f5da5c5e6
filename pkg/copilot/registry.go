package copilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleylabs/parley/pkg/blob"
	"github.com/parleylabs/parley/pkg/infer"
	"github.com/parleylabs/parley/pkg/jsontime"
	"github.com/parleylabs/parley/pkg/telemetry"
	"github.com/parleylabs/parley/pkg/transcribe"
)

// ErrSessionNotFound is returned when an operation references an
// unknown or already-ended session id. Ids are never reused.
var ErrSessionNotFound = errors.New("copilot: session not found")

// ErrRegistryClosed is returned by CreateSession after Close.
var ErrRegistryClosed = errors.New("copilot: registry closed")

// defaultSubscriberBuffer is the per-subscription event buffer. A
// subscriber that falls this far behind is dropped rather than
// blocking or reordering emission.
const defaultSubscriberBuffer = 256

// Options configures a Registry.
type Options struct {
	// Transcriber converts ingested audio chunks to text. Required.
	Transcriber transcribe.Transcriber

	// Inference backs the classifier, the response analyzer, the
	// tactical generator, opening questions, and the closing summary.
	// Required.
	Inference infer.Client

	// Blobs receives a best-effort upload of every ingested audio
	// chunk before transcription. Optional; nil skips uploads.
	Blobs blob.Store

	// Archive receives the flattened record of every ended session.
	// Optional; nil skips archival.
	Archive Archiver

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// LanguageHint is passed to the transcriber on every call.
	LanguageHint string

	// WindowSize bounds per-session telemetry retention.
	// Defaults to telemetry.DefaultWindowSize.
	WindowSize int

	// SubscriberBuffer overrides the per-subscription event buffer.
	SubscriberBuffer int
}

// Registry owns all live session state. It sequences incoming events
// per session, fans out results to subscribers, and never lets one
// session's failure affect another.
//
// All session state is guarded by a single mutex; every network call
// runs in its own goroutine holding no lock, and each completion
// re-resolves the session by id before appending, so results for
// ended sessions are silently discarded.
type Registry struct {
	transcriber  transcribe.Transcriber
	inference    infer.Client
	blobs        blob.Store
	archive      Archiver
	logger       *slog.Logger
	languageHint string
	windowSize   int
	subBuffer    int

	now func() time.Time

	mu        sync.Mutex
	sessions  map[string]*session
	nextSubID int64
	closed    bool

	wg sync.WaitGroup
}

// New creates a Registry.
func New(opts Options) (*Registry, error) {
	if opts.Transcriber == nil {
		return nil, errors.New("copilot: Options.Transcriber is required")
	}
	if opts.Inference == nil {
		return nil, errors.New("copilot: Options.Inference is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	subBuffer := opts.SubscriberBuffer
	if subBuffer <= 0 {
		subBuffer = defaultSubscriberBuffer
	}
	return &Registry{
		transcriber:  opts.Transcriber,
		inference:    opts.Inference,
		blobs:        opts.Blobs,
		archive:      opts.Archive,
		logger:       logger,
		languageHint: opts.LanguageHint,
		windowSize:   opts.WindowSize,
		subBuffer:    subBuffer,
		now:          time.Now,
		sessions:     make(map[string]*session),
	}, nil
}

// CreateSession allocates a new session with empty logs, registers it
// under a fresh unique id, and subscribes the caller to its event
// stream. A batch of opening question suggestions seeded from the role
// label is generated asynchronously; the returned subscription is
// attached before generation starts, so it observes the batch.
func (r *Registry) CreateSession(ownerID int64, counterpartName, roleLabel string) (string, *Subscription, error) {
	s := &session{
		id:              uuid.NewString(),
		ownerID:         ownerID,
		counterpartName: counterpartName,
		roleLabel:       roleLabel,
		startedAt:       r.now(),
		window:          telemetry.NewWindow(r.windowSize),
		subs:            make(map[int64]chan Event),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", nil, ErrRegistryClosed
	}
	r.sessions[s.id] = s
	sub := r.subscribeLocked(s)
	r.spawn(func() { r.seedOpening(s.id, roleLabel) })
	r.mu.Unlock()

	r.logger.Info("copilot: session started", "session", s.id, "owner", ownerID)
	return s.id, sub, nil
}

// Sessions returns the number of live sessions.
func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Subscription is an ordered event stream for one session. C is closed
// when the session ends, the subscription is cancelled, or the
// subscriber falls too far behind.
type Subscription struct {
	C      <-chan Event
	cancel func()
}

// Cancel detaches the subscription. Safe to call more than once and
// after the session has ended.
func (s *Subscription) Cancel() { s.cancel() }

// Subscribe attaches an event stream to a live session. Cancelling a
// session's only subscription does not destroy the session; a client
// may reconnect and subscribe again.
func (r *Registry) Subscribe(sessionID string) (*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return r.subscribeLocked(s), nil
}

func (r *Registry) subscribeLocked(s *session) *Subscription {
	r.nextSubID++
	id := r.nextSubID
	ch := make(chan Event, r.subBuffer)
	s.subs[id] = ch
	return &Subscription{
		C: ch,
		cancel: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		},
	}
}

// IngestAudio uploads and transcribes one audio chunk asynchronously.
// The transcript entry is appended when the transcription call
// resolves; back-to-back chunks whose calls resolve out of submission
// order are appended in resolution order.
func (r *Registry) IngestAudio(sessionID string, speaker SpeakerRole, audio []byte) error {
	if !speaker.Valid() {
		return fmt.Errorf("copilot: invalid speaker role %q", speaker)
	}
	r.mu.Lock()
	_, ok := r.sessions[sessionID]
	if ok {
		r.spawn(func() { r.processAudio(sessionID, speaker, audio) })
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (r *Registry) processAudio(sessionID string, speaker SpeakerRole, audio []byte) {
	ctx := context.Background()

	// Best-effort upload; transcription proceeds on the in-memory
	// bytes even if storage is down.
	if r.blobs != nil {
		key := fmt.Sprintf("live-sessions/%s/audio-%d.webm", sessionID, r.now().UnixMilli())
		if _, err := r.blobs.Put(ctx, key, audio, "audio/webm"); err != nil {
			r.logger.Warn("copilot: audio upload failed", "session", sessionID, "error", err)
		}
	}

	res, err := r.transcriber.Transcribe(ctx, audio, r.languageHint)
	if err != nil {
		r.logger.Warn("copilot: transcription failed", "session", sessionID, "error", err)
		r.emitTo(sessionID, ErrorEvent{Message: "Failed to process audio"})
		return
	}

	ts := jsontime.Millis(r.now())
	entry := TranscriptEntry{Speaker: speaker, Text: res.Text, Timestamp: ts}

	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		// Session ended while the call was outstanding.
		r.mu.Unlock()
		return
	}
	s.transcript = append(s.transcript, entry)
	r.emitLocked(s, TranscriptionEvent{Speaker: speaker, Text: res.Text, Timestamp: ts})
	r.maybeClassifyLocked(s)
	var recent []TranscriptEntry
	var roleLabel, counterpartName string
	analyze := speaker == SpeakerCounterpart && res.Text != ""
	if analyze {
		recent = append(recent, s.recentTranscript(analysisContextEntries)...)
		roleLabel, counterpartName = s.roleLabel, s.counterpartName
	}
	r.mu.Unlock()

	if analyze {
		r.spawn(func() { r.runAnalysis(sessionID, roleLabel, counterpartName, recent, res.Text) })
	}
}

func (r *Registry) runAnalysis(sessionID, roleLabel, counterpartName string, recent []TranscriptEntry, responseText string) {
	now := jsontime.Millis(r.now())
	sugs, flags, err := analyzeResponse(context.Background(), r.inference, roleLabel, counterpartName, recent, responseText, now)
	if err != nil {
		// A missed analysis is acceptable; a stalled session is not.
		r.logger.Warn("copilot: response analysis failed", "session", sessionID, "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	if len(sugs) > 0 {
		s.suggestions = append(s.suggestions, sugs...)
		r.emitLocked(s, SuggestionsEvent{Suggestions: sugs})
	}
	if len(flags) > 0 {
		s.redFlags = append(s.redFlags, flags...)
		r.emitLocked(s, RedFlagsEvent{RedFlags: flags})
	}
}

// IngestTelemetry appends one telemetry sample, echoes it to
// subscribers, and on every 50th sample since session start triggers
// tactical suggestion generation (fire and forget).
func (r *Registry) IngestTelemetry(sessionID string, sample telemetry.Sample) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	s.window.Append(sample)
	r.emitLocked(s, EmotionUpdateEvent{Emotion: sample})
	r.maybeClassifyLocked(s)

	if s.window.Total()%tacticalCadence == 0 && s.context != nil && len(s.transcript) > 0 {
		if means, ok := s.window.Means(tacticalWindowSamples); ok {
			genre := s.context.Genre
			var texts []string
			for _, e := range s.recentTranscript(analysisContextEntries) {
				texts = append(texts, e.Text)
			}
			excerpt := strings.Join(texts, " ")
			r.spawn(func() { r.generateTactical(sessionID, genre, means, excerpt) })
		}
	}
	r.mu.Unlock()
	return nil
}

// maybeClassifyLocked starts context classification once the
// transcript exceeds the minimum size. At most one classification ever
// runs per session; its failure defaults the genre to general.
func (r *Registry) maybeClassifyLocked(s *session) {
	if s.context != nil || s.classifying || len(s.transcript) <= classifyMinTranscript {
		return
	}
	s.classifying = true
	var texts []string
	for _, e := range s.transcript {
		texts = append(texts, e.Text)
	}
	joined := strings.Join(texts, " ")
	id := s.id
	r.spawn(func() { r.classify(id, joined) })
}

func (r *Registry) classify(sessionID, transcriptText string) {
	mc := classifyContext(context.Background(), r.inference, transcriptText)

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	s.context = mc
	r.logger.Info("copilot: meeting context detected", "session", sessionID, "genre", mc.Genre)
}

func (r *Registry) generateTactical(sessionID string, genre Genre, means telemetry.Means, excerpt string) {
	batch := ruleSuggestions(genre, means)

	if len(excerpt) > tacticalExcerptMin {
		ai, err := aiSuggestion(context.Background(), r.inference, genre, means, excerpt)
		if err != nil {
			r.logger.Warn("copilot: tactical ai suggestion failed", "session", sessionID, "error", err)
		} else if ai != nil {
			batch = append(batch, *ai)
		}
	}
	if len(batch) == 0 {
		return
	}
	sortByPriority(batch)
	ts := jsontime.Millis(r.now())
	for i := range batch {
		batch[i].Timestamp = ts
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	s.tactical = append(s.tactical, batch...)
	// One event per cycle; never split, to avoid client-side flicker.
	r.emitLocked(s, TacticalSuggestionsEvent{Suggestions: batch})
}

// EndSession claims the session immediately (any later operation on
// the id fails with ErrSessionNotFound), then asynchronously
// synthesizes the closing summary, archives the record, and emits the
// final session-ended event before closing all subscriptions. The
// final event is delivered even when archival fails.
func (r *Registry) EndSession(sessionID string) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
		r.spawn(func() { r.finish(s) })
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (r *Registry) finish(s *session) {
	ctx := context.Background()
	ended := r.now()
	elapsed := ended.Sub(s.startedAt)

	summary, err := sessionSummary(ctx, r.inference, s.roleLabel, s.counterpartName, elapsed, s.transcript, s.redFlags)
	if err != nil {
		r.logger.Warn("copilot: summary generation failed", "session", s.id, "error", err)
		summary = ""
	}

	if r.archive != nil {
		rec := &Record{
			SessionID:       s.id,
			OwnerID:         s.ownerID,
			CounterpartName: s.counterpartName,
			RoleLabel:       s.roleLabel,
			Status:          "completed",
			Summary:         summary,
			StartedAt:       jsontime.Millis(s.startedAt),
			EndedAt:         jsontime.Millis(ended),
			Duration:        jsontime.DurationMS(elapsed),
			Transcript:      s.transcript,
			Suggestions:     s.suggestions,
			RedFlags:        s.redFlags,
			Tactical:        s.tactical,
		}
		if err := r.archive.Save(ctx, rec); err != nil {
			// The live value of the conversation is not lost even if
			// archival is.
			r.logger.Error("copilot: archive save failed", "session", s.id, "error", err)
		}
	}

	r.mu.Lock()
	r.emitLocked(s, SessionEndedEvent{
		SessionID: s.id,
		Summary:   summary,
		Duration:  jsontime.DurationMS(elapsed),
	})
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	r.mu.Unlock()
	r.logger.Info("copilot: session ended", "session", s.id, "duration", elapsed)
}

func (r *Registry) seedOpening(sessionID, roleLabel string) {
	sugs, err := openingQuestions(context.Background(), r.inference, roleLabel, jsontime.Millis(r.now()))
	if err != nil {
		r.logger.Warn("copilot: opening questions failed", "session", sessionID, "error", err)
		return
	}
	if len(sugs) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	s.suggestions = append(s.suggestions, sugs...)
	r.emitLocked(s, SuggestionsEvent{Suggestions: sugs})
}

// emitTo emits an event to a session's subscribers if it still exists.
func (r *Registry) emitTo(sessionID string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		r.emitLocked(s, ev)
	}
}

// emitLocked delivers an event to every subscriber in emission order.
// A subscriber whose buffer is full is dropped; blocking here would
// stall the whole session, and reordering is worse than disconnecting.
func (r *Registry) emitLocked(s *session, ev Event) {
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			delete(s.subs, id)
			close(ch)
			r.logger.Warn("copilot: dropped slow subscriber", "session", s.id)
		}
	}
}

// Close ends every live session and waits for their termination work
// (summary, archival, final events) to complete. New sessions are
// refused after Close.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	claimed := make([]*session, 0, len(r.sessions))
	for id, s := range r.sessions {
		delete(r.sessions, id)
		claimed = append(claimed, s)
	}
	for _, s := range claimed {
		r.spawn(func() { r.finish(s) })
	}
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

// spawn runs f on a tracked goroutine. It must be called either with
// r.mu held or from a goroutine that is itself tracked, so the add is
// ordered before Close observes a zero counter and waits.
func (r *Registry) spawn(f func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		f()
	}()
}
