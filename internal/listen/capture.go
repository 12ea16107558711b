package listen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "log/slog"
)

// Loop owns the capture subscription and runs every chunk, in arrival
// order, through the endpoint detector and the current mode's
// buffering. On a non-silent boundary the buffered utterance goes to
// the transcriber and the outcome to whichever caller is waiting.
type Loop struct {
	src Source
	stt Transcriber
	cfg Config

	mu       sync.Mutex
	mode     Mode
	det      *Detector
	buf      []int16
	slot     *slot
	inFlight bool
	gen      uint64

	archive Archiver
}

func NewLoop(src Source, stt Transcriber, cfg Config) *Loop {
	l := &Loop{
		src: src,
		stt: stt,
		cfg: cfg.withDefaults(),
	}
	l.det = NewDetector(l.cfg.VolumeThreshold, l.cfg.SilenceDuration, l.cfg.WakeSkipChunks)
	return l
}

// SetArchive installs an optional utterance archive. Must be called
// before Run.
func (l *Loop) SetArchive(a Archiver) { l.archive = a }

// Mode returns the currently active listen mode.
func (l *Loop) Mode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// Run consumes the capture stream until the context is cancelled or the
// source fails. A stream failure also fails the outstanding pending
// result, if any; recovery is the caller's responsibility.
func (l *Loop) Run(ctx context.Context) error {
	ch, err := l.src.Subscribe()
	if err != nil {
		return &StreamError{Err: err}
	}
	defer l.src.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-ch:
			if !ok {
				serr := &StreamError{Err: errors.New("capture stream closed")}
				l.failPending(serr)
				return serr
			}
			if c.Err != nil {
				serr := &StreamError{Err: c.Err}
				l.failPending(serr)
				return serr
			}
			l.feed(c.Samples, time.Now())
		}
	}
}

// ListenForWake resets into wake mode and blocks until a transcript
// containing the wake phrase completes, the context expires, or the
// stream fails. The full transcript is returned.
func (l *Loop) ListenForWake(ctx context.Context) (string, error) {
	return l.enter(ModeWake).wait(ctx)
}

// ListenForCommand resets into command mode and blocks until the first
// non-silent utterance completes. The transcript may be empty; empty
// means "no speech" and is a valid result.
func (l *Loop) ListenForCommand(ctx context.Context) (string, error) {
	return l.enter(ModeCommand).wait(ctx)
}

// CaptureFor records for a fixed window with silence endpointing
// disabled and transcribes whatever was captured. Used for short
// confirmation prompts where no boundary is wanted.
func (l *Loop) CaptureFor(ctx context.Context, d time.Duration) (string, error) {
	l.mu.Lock()
	l.mode = ModeCommand
	l.det = NewDetector(-1, l.cfg.SilenceDuration, l.cfg.WakeSkipChunks)
	l.buf = nil
	l.slot = nil
	l.inFlight = false
	l.gen++
	l.mu.Unlock()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.C:
	}

	l.mu.Lock()
	utter := l.buf
	l.buf = nil
	l.mu.Unlock()

	if len(utter) == 0 {
		return "", nil
	}

	tctx, cancel := context.WithTimeout(ctx, l.cfg.TranscribeTimeout)
	defer cancel()
	text, err := l.stt.Transcribe(tctx, utter)
	if err != nil {
		return "", &TranscriptionError{Err: err}
	}
	return strings.TrimSpace(text), nil
}

// enter forces the given mode and wipes every piece of turn-scoped
// state: detector, utterance buffer, in-flight marker and the pending
// result slot. Nothing from the previous listen survives.
func (l *Loop) enter(m Mode) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	skip := l.cfg.WakeSkipChunks
	if m == ModeCommand {
		skip = l.cfg.CommandSkipChunks
	}

	l.mode = m
	l.det = NewDetector(l.cfg.VolumeThreshold, l.cfg.SilenceDuration, skip)
	l.buf = nil
	l.inFlight = false
	l.gen++

	s := newSlot()
	l.slot = s
	return s
}

func (l *Loop) feed(samples []int16, now time.Time) {
	l.mu.Lock()

	switch l.det.Feed(samples, now) {
	case Skip:
		l.mu.Unlock()
		return

	case Keep:
		l.buf = append(l.buf, samples...)
		l.mu.Unlock()
		return

	case Boundary:
		l.buf = append(l.buf, samples...)
		utter := l.buf
		l.buf = nil

		if !l.det.Finish() {
			// Pure silence: nothing ever crossed the threshold, so
			// there is nothing worth a transcription round-trip.
			l.mu.Unlock()
			return
		}

		if l.inFlight {
			// A transcription is already running for this listen; the
			// buffer was logically superseded when it started.
			l.mu.Unlock()
			log.Debug("dropping boundary, transcription in flight", "samples", len(utter))
			return
		}

		l.inFlight = true
		mode, s, gen := l.mode, l.slot, l.gen
		l.mu.Unlock()

		go l.dispatch(utter, mode, s, gen)
	}
}

// dispatch transcribes one completed utterance and routes the result by
// the mode that was active when its boundary fired.
func (l *Loop) dispatch(utter []int16, mode Mode, s *slot, gen uint64) {
	defer func() {
		l.mu.Lock()
		if l.gen == gen {
			l.inFlight = false
		}
		l.mu.Unlock()
	}()

	if l.archive != nil {
		if name, err := l.archive.Save(utter); err != nil {
			log.Warn("failed to archive utterance", "err", err)
		} else if name != "" {
			log.Debug("archived utterance", "file", name)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.TranscribeTimeout)
	defer cancel()

	text, err := l.stt.Transcribe(ctx, utter)
	if err != nil {
		if mode == ModeCommand && s != nil {
			s.fail(&TranscriptionError{Err: err})
			return
		}
		// The wake loop runs unattended indefinitely; one bad
		// transcription must not kill it.
		log.Warn("transcription failed while waiting for wake", "err", err)
		return
	}

	switch mode {
	case ModeWake:
		if matchesWake(text, l.cfg.WakePhrase, l.cfg.WakePhraseAlt) {
			log.Info("wake phrase detected", "text", text)
			if s != nil {
				s.fulfill(text)
			}
		} else {
			log.Debug("no wake phrase", "text", text)
		}
	case ModeCommand:
		if s != nil {
			s.fulfill(strings.TrimSpace(text))
		}
	}
}

func (l *Loop) failPending(err error) {
	l.mu.Lock()
	s := l.slot
	l.slot = nil
	l.mu.Unlock()
	if s != nil {
		s.fail(err)
	}
}
