package listen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSTT struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
	gate  chan struct{} // when set, Transcribe blocks until closed
}

func (f *fakeSTT) Transcribe(ctx context.Context, samples []int16) (string, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	text, err := f.text, f.err
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return text, err
}

func (f *fakeSTT) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSource struct {
	ch chan Chunk
}

func (f *fakeSource) Subscribe() (<-chan Chunk, error) { return f.ch, nil }
func (f *fakeSource) Unsubscribe()                     {}

func testConfig() Config {
	return Config{
		VolumeThreshold: 900,
		SilenceDuration: 300 * time.Millisecond,
		WakePhrase:      "isis",
		WakePhraseAlt:   "ices",
	}
}

// speakUtterance feeds one loud chunk followed by exactly enough
// silence for the boundary to land on the last fed chunk, using
// synthetic chunk-interval timestamps starting at base. Silence is
// counted from the start of the first quiet chunk, so three 100ms quiet
// chunks cover the 300ms test silence window.
func speakUtterance(l *Loop, base time.Time) time.Time {
	now := base
	step := span(chunkSize)
	now = now.Add(step)
	l.feed(loudChunk(5000), now) // consumed by skip on a fresh mode
	now = now.Add(step)
	l.feed(loudChunk(5000), now)
	for i := 0; i < 3; i++ {
		now = now.Add(step)
		l.feed(quietChunk(), now)
	}
	return now
}

func waitIdle(t *testing.T, l *Loop) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		busy := l.inFlight
		l.mu.Unlock()
		if !busy {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("transcription never settled")
}

func TestLoop_WakePhraseFulfillsWithFullTranscript(t *testing.T) {
	stt := &fakeSTT{text: "hey there isis can you help"}
	l := NewLoop(&fakeSource{}, stt, testConfig())

	s := l.enter(ModeWake)
	speakUtterance(l, time.Unix(0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := s.wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got != "hey there isis can you help" {
		t.Fatalf("transcript = %q", got)
	}
}

func TestLoop_WakeAlternateSpelling(t *testing.T) {
	stt := &fakeSTT{text: "hey ices turn on the light"}
	l := NewLoop(&fakeSource{}, stt, testConfig())

	s := l.enter(ModeWake)
	speakUtterance(l, time.Unix(0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.wait(ctx); err != nil {
		t.Fatalf("alternate spelling should match: %v", err)
	}
}

func TestLoop_NonMatchingTranscriptsNeverFulfill(t *testing.T) {
	stt := &fakeSTT{text: "just background chatter"}
	l := NewLoop(&fakeSource{}, stt, testConfig())

	s := l.enter(ModeWake)

	now := time.Unix(0, 0)
	for i := 0; i < 1000; i++ {
		now = speakUtterance(l, now)
		waitIdle(t, l)
	}

	if stt.callCount() != 1000 {
		t.Fatalf("transcriber called %d times, want 1000", stt.callCount())
	}

	l.mu.Lock()
	buffered := len(l.buf)
	l.mu.Unlock()
	if buffered != 0 {
		t.Fatalf("%d samples left buffered after boundaries, buffer must not grow", buffered)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := s.wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("pending result resolved without wake phrase: %v", err)
	}
}

func TestLoop_PureSilenceNeverTranscribed(t *testing.T) {
	stt := &fakeSTT{}
	l := NewLoop(&fakeSource{}, stt, testConfig())

	l.enter(ModeWake)

	now := time.Unix(0, 0)
	step := span(chunkSize)
	for i := 0; i < 50; i++ {
		now = now.Add(step)
		l.feed(quietChunk(), now)
	}

	if stt.callCount() != 0 {
		t.Fatalf("transcriber called %d times on pure silence", stt.callCount())
	}
}

func TestLoop_CommandEmptyTranscriptIsValidResult(t *testing.T) {
	stt := &fakeSTT{text: "  "}
	l := NewLoop(&fakeSource{}, stt, testConfig())

	s := l.enter(ModeCommand)

	now := time.Unix(0, 0)
	step := span(chunkSize)
	// command mode skips the first 6 chunks
	for i := 0; i < 6; i++ {
		now = now.Add(step)
		l.feed(loudChunk(5000), now)
	}
	now = now.Add(step)
	l.feed(loudChunk(5000), now)
	for i := 0; i < 4; i++ {
		now = now.Add(step)
		l.feed(quietChunk(), now)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := s.wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got != "" {
		t.Fatalf("transcript = %q, want empty", got)
	}
}

func TestLoop_BoundaryDroppedWhileTranscriptionInFlight(t *testing.T) {
	gate := make(chan struct{})
	stt := &fakeSTT{text: "first", gate: gate}
	l := NewLoop(&fakeSource{}, stt, testConfig())

	s := l.enter(ModeCommand)

	now := time.Unix(0, 0)
	step := span(chunkSize)
	for i := 0; i < 6; i++ {
		now = now.Add(step)
		l.feed(loudChunk(5000), now)
	}
	now = now.Add(step)
	l.feed(loudChunk(5000), now)
	for i := 0; i < 4; i++ {
		now = now.Add(step)
		l.feed(quietChunk(), now)
	}

	// second utterance completes while the first is still in flight
	now = now.Add(step)
	l.feed(loudChunk(5000), now)
	for i := 0; i < 4; i++ {
		now = now.Add(step)
		l.feed(quietChunk(), now)
	}

	close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := s.wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got != "first" {
		t.Fatalf("transcript = %q, want %q", got, "first")
	}

	waitIdle(t, l)
	if stt.callCount() != 1 {
		t.Fatalf("transcriber called %d times, superseded boundary must be dropped", stt.callCount())
	}
}

func TestLoop_ReenterResetsTurnState(t *testing.T) {
	stt := &fakeSTT{text: "isis hello"}
	l := NewLoop(&fakeSource{}, stt, testConfig())

	l.enter(ModeWake)
	now := time.Unix(0, 0)
	step := span(chunkSize)
	now = now.Add(step)
	l.feed(loudChunk(5000), now) // skipped
	now = now.Add(step)
	l.feed(loudChunk(5000), now) // buffered, speech recorded

	// re-entering must drop the buffered samples, the speech flag and
	// the old pending slot
	s2 := l.enter(ModeWake)

	l.mu.Lock()
	buffered := len(l.buf)
	speech := l.det.HasSpeech()
	l.mu.Unlock()
	if buffered != 0 || speech {
		t.Fatalf("residual state after re-entry: buffered=%d speech=%v", buffered, speech)
	}

	speakUtterance(l, now)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s2.wait(ctx); err != nil {
		t.Fatalf("fresh listen did not resolve: %v", err)
	}
}

func TestLoop_StreamErrorFailsPendingResult(t *testing.T) {
	src := &fakeSource{ch: make(chan Chunk, 1)}
	stt := &fakeSTT{}
	l := NewLoop(src, stt, testConfig())

	s := l.enter(ModeCommand)

	runErr := make(chan error, 1)
	go func() { runErr <- l.Run(context.Background()) }()

	src.ch <- Chunk{Err: errors.New("device gone")}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.wait(ctx)
	var serr *StreamError
	if !errors.As(err, &serr) {
		t.Fatalf("pending result error = %v, want StreamError", err)
	}

	select {
	case err := <-runErr:
		if !errors.As(err, &serr) {
			t.Fatalf("Run returned %v, want StreamError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after stream failure")
	}
}

func TestLoop_CommandTranscriptionFailureSurfaces(t *testing.T) {
	stt := &fakeSTT{err: errors.New("whisper crashed")}
	l := NewLoop(&fakeSource{}, stt, testConfig())

	s := l.enter(ModeCommand)
	now := time.Unix(0, 0)
	step := span(chunkSize)
	for i := 0; i < 6; i++ {
		now = now.Add(step)
		l.feed(loudChunk(5000), now)
	}
	now = now.Add(step)
	l.feed(loudChunk(5000), now)
	for i := 0; i < 4; i++ {
		now = now.Add(step)
		l.feed(quietChunk(), now)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.wait(ctx)
	var terr *TranscriptionError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want TranscriptionError", err)
	}
}

func TestLoop_WakeTranscriptionFailureIsSwallowed(t *testing.T) {
	stt := &fakeSTT{err: errors.New("whisper crashed")}
	l := NewLoop(&fakeSource{}, stt, testConfig())

	s := l.enter(ModeWake)
	speakUtterance(l, time.Unix(0, 0))
	waitIdle(t, l)

	// listening continues: a later good utterance still resolves
	stt.mu.Lock()
	stt.err = nil
	stt.text = "isis are you there"
	stt.mu.Unlock()

	speakUtterance(l, time.Unix(10, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.wait(ctx); err != nil {
		t.Fatalf("wake loop died after a transcription failure: %v", err)
	}
}

func TestLoop_CaptureForCollectsFixedWindow(t *testing.T) {
	stt := &fakeSTT{text: " yes please "}
	l := NewLoop(&fakeSource{}, stt, testConfig())

	done := make(chan struct{})
	var got string
	var err error
	go func() {
		got, err = l.CaptureFor(context.Background(), 100*time.Millisecond)
		close(done)
	}()

	// feed chunks while the window is open; threshold is disabled so
	// every post-skip chunk is kept
	now := time.Unix(0, 0)
	step := span(chunkSize)
	deadline := time.Now().Add(80 * time.Millisecond)
	for time.Now().Before(deadline) {
		now = now.Add(step)
		l.feed(quietChunk(), now)
		time.Sleep(5 * time.Millisecond)
	}

	<-done
	if err != nil {
		t.Fatalf("CaptureFor: %v", err)
	}
	if got != "yes please" {
		t.Fatalf("transcript = %q, want trimmed %q", got, "yes please")
	}
}
