package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yoockh/scribe/internal/cache"
	"github.com/yoockh/scribe/internal/logger"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/realtime"
	"github.com/yoockh/scribe/internal/repositories/memory"
	"github.com/yoockh/scribe/internal/storage"
	"github.com/yoockh/scribe/internal/utils"
)

type sentEvent struct {
	sessionID string
	event     string
	data      any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
}

func (b *recordingBroadcaster) Broadcast(sessionID, event string, data any) {
	b.mu.Lock()
	b.events = append(b.events, sentEvent{sessionID, event, data})
	b.mu.Unlock()
}

func (b *recordingBroadcaster) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.event)
	}
	return out
}

func (b *recordingBroadcaster) last(event string) (sentEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].event == event {
			return b.events[i], true
		}
	}
	return sentEvent{}, false
}

type fakeLLM struct {
	mu      sync.Mutex
	calls   int
	summary string
	err     error
	block   chan struct{}
}

func (f *fakeLLM) Summarize(_ context.Context, transcript string) (string, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDrainer struct {
	mu       sync.Mutex
	stops    int
	released []string
}

func (d *fakeDrainer) Stop(string) <-chan struct{} {
	d.mu.Lock()
	d.stops++
	d.mu.Unlock()
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (d *fakeDrainer) Release(id string) {
	d.mu.Lock()
	d.released = append(d.released, id)
	d.mu.Unlock()
}

type fakeArchive struct {
	mu      sync.Mutex
	objects map[string]string
}

func (a *fakeArchive) Put(_ context.Context, t storage.Transcript) (string, error) {
	name := storage.TranscriptObject(t.SessionID)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = map[string]string{}
	}
	a.objects[name] = string(t.Body)
	return "gs://bucket/" + name, nil
}

type fixture struct {
	sessionRepo *memory.SessionRepo
	sessions    SessionService
	transcripts TranscriptService
	cache       *cache.MemoryCache
	llm         *fakeLLM
	queue       *fakeDrainer
	out         *recordingBroadcaster
	archive     *fakeArchive
	finalizer   FinalizeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logger.Discard()

	f := &fixture{
		sessionRepo: memory.NewSessionRepo(),
		cache:       cache.NewMemoryCache(ctx, 0),
		llm:         &fakeLLM{summary: "- decided things"},
		queue:       &fakeDrainer{},
		out:         &recordingBroadcaster{},
		archive:     &fakeArchive{},
	}
	f.sessions = NewSessionService(f.sessionRepo)
	f.transcripts = NewTranscriptService(memory.NewSegmentRepo(), f.sessions, f.cache, time.Minute, log)
	f.finalizer = NewFinalizeService(ctx, f.sessions, f.transcripts, f.llm, f.queue, f.out, f.archive, log)
	return f
}

func (f *fixture) appendText(t *testing.T, sessionID string, texts ...string) {
	t.Helper()
	for i, text := range texts {
		chunk := models.Chunk{SessionID: sessionID, Seq: int64(i + 1), MimeType: models.DefaultMimeType}
		if _, err := f.transcripts.AppendSegment(context.Background(), chunk, text, nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

func TestSessionService_JoinCreatesRecordingSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.sessions.Join(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if s.Status != models.StatusRecording || s.Title != models.DefaultSessionTitle {
		t.Fatalf("joined session = %+v", s)
	}

	// a second join is harmless
	if _, err := f.sessions.Join(ctx, "s1", "u1"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
}

func TestSessionService_JoinRespectsOwnershipAndTerminalStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.sessions.Start(ctx, "u1", "  ")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != models.StatusIdle || started.Title != models.DefaultSessionTitle {
		t.Fatalf("started = %+v", started)
	}

	joined, err := f.sessions.Join(ctx, started.SessionID, "u1")
	if err != nil || joined.Status != models.StatusRecording {
		t.Fatalf("join idle session = %+v, %v", joined, err)
	}

	if _, err := f.sessions.Join(ctx, started.SessionID, "intruder"); !utils.IsCode(err, utils.CodeForbidden) {
		t.Fatalf("foreign join err = %v, want FORBIDDEN", err)
	}

	_ = f.sessions.Complete(ctx, started.SessionID, "done", 0)
	joined, err = f.sessions.Join(ctx, started.SessionID, "u1")
	if err != nil || joined.Status != models.StatusCompleted {
		t.Fatalf("join completed session = %+v, %v", joined, err)
	}
}

func TestSessionService_GetOwnedHidesOtherUsersSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.sessions.Join(ctx, "s1", "u1")

	if _, err := f.sessions.GetOwned(ctx, "s1", "u2"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	if _, err := f.sessions.GetOwned(ctx, "missing", "u1"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestTranscriptService_ExportFormat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.sessions.Join(ctx, "s1", "u1")
	f.appendText(t, "s1", "hello", "world")

	exp, err := f.transcripts.Export(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exp.Filename() != "transcript-s1.txt" {
		t.Fatalf("filename = %q", exp.Filename())
	}

	text := exp.Text()
	wantParts := []string{
		"Title: Untitled Session\n",
		"Date: " + exp.CreatedAt.UTC().Format(time.RFC3339) + "\n\n",
		"Summary:\nNo summary available.\n\n",
		"Transcript:\nhello\nworld",
	}
	for _, p := range wantParts {
		if !strings.Contains(text, p) {
			t.Fatalf("export text missing %q:\n%s", p, text)
		}
	}
}

func TestTranscriptService_ExportCachesCompletedSessionsPerOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.sessions.Join(ctx, "s1", "u1")
	f.appendText(t, "s1", "hello")
	_ = f.sessions.Complete(ctx, "s1", "sum", 1)

	if _, err := f.transcripts.Export(ctx, "s1", "u1"); err != nil {
		t.Fatalf("export: %v", err)
	}
	var cached Export
	if hit, _ := f.cache.GetJSON(ctx, cache.ExportKey("s1"), &cached); !hit || cached.Summary != "sum" {
		t.Fatalf("cache hit=%v %+v", hit, cached)
	}

	if _, err := f.transcripts.Export(ctx, "s1", "u2"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("cached export leaked to another user: %v", err)
	}

	f.transcripts.InvalidateExport(ctx, "s1")
	if hit, _ := f.cache.GetJSON(ctx, cache.ExportKey("s1"), &cached); hit {
		t.Fatal("cache entry survived invalidation")
	}
}

func TestFinalize_SummarizesAndCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.sessions.Join(ctx, "s1", "u1")
	f.appendText(t, "s1", "hello", "world")

	if err := f.finalizer.Finalize(ctx, "s1", "https://example.com/a.webm"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got := f.out.names()
	if len(got) != 2 || got[0] != realtime.EventProcessing || got[1] != realtime.EventCompleted {
		t.Fatalf("events = %v", got)
	}
	done, _ := f.out.last(realtime.EventCompleted)
	payload := done.data.(realtime.CompletedPayload)
	if payload.Transcript != "hello\nworld" || payload.Summary != "- decided things" {
		t.Fatalf("completed payload = %+v", payload)
	}

	s, _ := f.sessions.Get(ctx, "s1")
	if s.Status != models.StatusCompleted || s.Summary != "- decided things" || s.SegmentCount != 2 {
		t.Fatalf("stored session = %+v", s)
	}
	if s.AudioURL != "https://example.com/a.webm" || s.EndedAt == nil {
		t.Fatalf("processing fields not stored: %+v", s)
	}
	if len(f.queue.released) != 1 {
		t.Fatalf("buffer released %d times", len(f.queue.released))
	}
	archived, ok := f.archive.objects["transcripts/transcript-s1.txt"]
	if !ok {
		t.Fatal("transcript not archived")
	}
	if !strings.Contains(archived, "Summary:\n- decided things\n") {
		t.Fatalf("archived = %q", archived)
	}
}

func TestFinalize_EmptyTranscriptUsesCannedSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.sessions.Join(ctx, "s1", "u1")

	if err := f.finalizer.Finalize(ctx, "s1", ""); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if f.llm.callCount() != 0 {
		t.Fatal("model called for an empty transcript")
	}
	done, _ := f.out.last(realtime.EventCompleted)
	if got := done.data.(realtime.CompletedPayload).Summary; got != "No transcript available to summarize." {
		t.Fatalf("summary = %q", got)
	}
}

func TestFinalize_RestopWithoutNewSegmentsDoesNotResummarize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.sessions.Join(ctx, "s1", "u1")
	f.appendText(t, "s1", "hello")

	_ = f.finalizer.Finalize(ctx, "s1", "")
	first, _ := f.out.last(realtime.EventCompleted)

	if err := f.finalizer.Finalize(ctx, "s1", ""); err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	second, _ := f.out.last(realtime.EventCompleted)

	if f.llm.callCount() != 1 {
		t.Fatalf("summarize calls = %d, want 1", f.llm.callCount())
	}
	if first.data != second.data {
		t.Fatalf("re-stop result differs: %+v vs %+v", first.data, second.data)
	}
}

func TestFinalize_SummarizationFailureKeepsSessionProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.sessions.Join(ctx, "s1", "u1")
	f.appendText(t, "s1", "hello")
	f.llm.err = errors.New("quota exceeded")

	if err := f.finalizer.Finalize(ctx, "s1", ""); !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("err = %v, want UNAVAILABLE", err)
	}

	ev, ok := f.out.last(realtime.EventSessionError)
	if !ok || ev.data.(realtime.ErrorPayload).Message != "summarization failed" {
		t.Fatalf("session-error = %+v", ev)
	}
	if _, ok := f.out.last(realtime.EventCompleted); ok {
		t.Fatal("completed broadcast after failed summary")
	}
	s, _ := f.sessions.Get(ctx, "s1")
	if s.Status != models.StatusProcessing {
		t.Fatalf("status = %s, want PROCESSING", s.Status)
	}

	// a later stop retries
	f.llm.err = nil
	if err := f.finalizer.Finalize(ctx, "s1", ""); err != nil {
		t.Fatalf("retry: %v", err)
	}
	s, _ = f.sessions.Get(ctx, "s1")
	if s.Status != models.StatusCompleted {
		t.Fatalf("status after retry = %s", s.Status)
	}
}

func TestFinalize_UnknownSessionReportsError(t *testing.T) {
	f := newFixture(t)

	if err := f.finalizer.Finalize(context.Background(), "ghost", ""); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	ev, ok := f.out.last(realtime.EventSessionError)
	if !ok || ev.data.(realtime.ErrorPayload).Message != "session not found" {
		t.Fatalf("session-error = %+v", ev)
	}
}

func TestRequestStop_IgnoresDuplicateWhileFinalizing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.sessions.Join(ctx, "s1", "u1")
	f.appendText(t, "s1", "hello")

	f.llm.block = make(chan struct{})
	if !f.finalizer.RequestStop("s1", "") {
		t.Fatal("first stop rejected")
	}

	// wait until the first run is inside the summarizer
	deadline := time.Now().Add(2 * time.Second)
	for f.llm.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if f.finalizer.RequestStop("s1", "") {
		t.Fatal("duplicate stop accepted while finalizing")
	}

	close(f.llm.block)
	f.finalizer.Wait()

	if f.llm.callCount() != 1 {
		t.Fatalf("summarize calls = %d, want 1", f.llm.callCount())
	}
	if !f.finalizer.RequestStop("s1", "") {
		t.Fatal("stop after completion rejected")
	}
	f.finalizer.Wait()
}
