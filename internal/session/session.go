// Package session drives the interaction cycle: wait for the wake
// phrase, acknowledge, capture one command, generate a reply and speak
// it in chunks with continuation prompts, then start over. Every
// fallible step is a collaborator behind a narrow interface; the
// session only owns the ordering.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	log "log/slog"

	"aura/internal/bus"
	"aura/internal/listen"
)

type Listener interface {
	ListenForWake(ctx context.Context) (string, error)
	ListenForCommand(ctx context.Context) (string, error)
	CaptureFor(ctx context.Context, d time.Duration) (string, error)
}

type Speaker interface {
	Say(ctx context.Context, text string) error
}

type Generator interface {
	Send(ctx context.Context, text string) (string, error)
}

type Notifier interface {
	Publish(kind, content string)
}

type Ducker interface {
	Duck(ctx context.Context) error
	Unduck(ctx context.Context) error
}

const (
	defaultAcknowledgment = "Yes?"
	apologyNoSpeech       = "Sorry, I didn't hear anything."
	apologyFailure        = "Sorry, something went wrong."
	continuePrompt        = "Should I continue?"

	defaultSettlePause    = 300 * time.Millisecond
	defaultWakeCeiling    = 60 * time.Second
	defaultCommandCeiling = 30 * time.Second
	defaultConfirmWindow  = 3 * time.Second

	// sentences spoken between continuation prompts
	sentencesPerChunk = 2
)

type Config struct {
	Acknowledgment string

	// SettlePause lets the acoustic echo of the acknowledgment die out
	// before command capture begins; the command-mode leading-chunk
	// skip is the second line of defense.
	SettlePause time.Duration

	// WakeCeiling and CommandCeiling are the hard ceilings on a single
	// listen, in case a device fault keeps silence detection from ever
	// firing. A wake timeout just listens again; a command timeout
	// counts as an empty command.
	WakeCeiling    time.Duration
	CommandCeiling time.Duration

	// ConfirmWindow is the fixed capture window for yes/no answers.
	ConfirmWindow time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Acknowledgment == "" {
		out.Acknowledgment = defaultAcknowledgment
	}
	if out.SettlePause <= 0 {
		out.SettlePause = defaultSettlePause
	}
	if out.WakeCeiling <= 0 {
		out.WakeCeiling = defaultWakeCeiling
	}
	if out.CommandCeiling <= 0 {
		out.CommandCeiling = defaultCommandCeiling
	}
	if out.ConfirmWindow <= 0 {
		out.ConfirmWindow = defaultConfirmWindow
	}
	return out
}

type Session struct {
	cfg Config
	lst Listener
	spk Speaker
	gen Generator

	notifier Notifier
	ducker   Ducker
	chime    func() error
}

func New(lst Listener, spk Speaker, gen Generator, cfg Config) *Session {
	return &Session{
		cfg: cfg.withDefaults(),
		lst: lst,
		spk: spk,
		gen: gen,
	}
}

// SetNotifier installs an optional event bus.
func (s *Session) SetNotifier(n Notifier) { s.notifier = n }

// SetDucker installs optional volume ducking around each voice turn.
func (s *Session) SetDucker(d Ducker) { s.ducker = d }

// SetChime installs an optional acknowledgment chime played before the
// spoken acknowledgment.
func (s *Session) SetChime(chime func() error) { s.chime = chime }

// Run cycles until the context is cancelled or the capture stream
// fails. Collaborator failures inside a cycle are spoken, not fatal:
// the service runs unattended and must keep listening.
func (s *Session) Run(ctx context.Context) error {
	for {
		err := s.cycle(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var serr *listen.StreamError
		if errors.As(err, &serr) {
			// the recording device is gone; only a fresh session can
			// recover
			return err
		}

		log.Error("cycle failed", "err", err)
		s.publish(bus.KindError, err.Error())
		if err := s.spk.Say(ctx, apologyFailure); err != nil {
			log.Error("failed to speak apology", "err", err)
		}
	}
}

func (s *Session) cycle(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.WakeCeiling)
	transcript, err := s.lst.ListenForWake(wctx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			// a quiet room, not a failure
			return nil
		}
		return err
	}

	log.Info("woken", "transcript", transcript)
	s.publish(bus.KindWake, transcript)

	if s.ducker != nil {
		if err := s.ducker.Duck(ctx); err != nil {
			log.Warn("failed to duck other streams", "err", err)
		}
		defer func() {
			if err := s.ducker.Unduck(context.WithoutCancel(ctx)); err != nil {
				log.Warn("failed to restore other streams", "err", err)
			}
		}()
	}

	if s.chime != nil {
		if err := s.chime(); err != nil {
			log.Warn("chime failed", "err", err)
		}
	}
	if err := s.spk.Say(ctx, s.cfg.Acknowledgment); err != nil {
		return err
	}

	// let the acknowledgment's echo settle before listening again
	if err := sleep(ctx, s.cfg.SettlePause); err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.CommandCeiling)
	command, err := s.lst.ListenForCommand(cctx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			command = "" // silent timeout counts as no speech
		} else {
			return err
		}
	}

	command = strings.TrimSpace(command)
	if command == "" {
		return s.spk.Say(ctx, apologyNoSpeech)
	}

	log.Info("command captured", "text", command)
	s.publish(bus.KindCommand, command)

	reply, err := s.gen.Send(ctx, command)
	if err != nil {
		return err
	}
	s.publish(bus.KindReply, reply)

	return s.speakReply(ctx, reply)
}

// speakReply reads the reply a couple of sentences at a time; while
// more remain, it asks whether to continue and stops on anything that
// is not clearly affirmative, silence included.
func (s *Session) speakReply(ctx context.Context, reply string) error {
	sentences := SplitSentences(reply)

	for i := 0; i < len(sentences); i += sentencesPerChunk {
		end := i + sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		if err := s.spk.Say(ctx, strings.Join(sentences[i:end], " ")); err != nil {
			return err
		}
		if end >= len(sentences) {
			break
		}

		if err := s.spk.Say(ctx, continuePrompt); err != nil {
			return err
		}
		answer, err := s.lst.CaptureFor(ctx, s.cfg.ConfirmWindow)
		if err != nil {
			log.Warn("confirmation capture failed, stopping reply", "err", err)
			return nil
		}
		if !IsAffirmative(answer) {
			log.Debug("reply cut short", "answer", answer)
			return nil
		}
	}
	return nil
}

func (s *Session) publish(kind, content string) {
	if s.notifier != nil {
		s.notifier.Publish(kind, content)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
