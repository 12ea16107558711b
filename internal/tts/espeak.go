// Package tts is the speech-synthesis collaborator: an espeak-ng
// subprocess, either playing straight to the default output or
// rendering to a buffer for the playback sink.
package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"aura/pkg/audioconv"
)

// SynthesisError wraps any fault of the synthesis subprocess.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return fmt.Sprintf("synthesis: %v", e.Err) }
func (e *SynthesisError) Unwrap() error { return e.Err }

type Engine struct {
	Bin   string // defaults to "espeak-ng"
	Voice string // e.g. "en"
	Speed int    // words per minute, 0 = espeak default
}

func (e *Engine) bin() string {
	if e.Bin == "" {
		return "espeak-ng"
	}
	return e.Bin
}

func (e *Engine) args(extra ...string) []string {
	var args []string
	if e.Voice != "" {
		args = append(args, "-v", e.Voice)
	}
	if e.Speed > 0 {
		args = append(args, "-s", strconv.Itoa(e.Speed))
	}
	return append(args, extra...)
}

// Speak synthesizes text directly to the default audio output and
// blocks until playback completes.
func (e *Engine) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, e.bin(), e.args(text)...)
	if err := cmd.Run(); err != nil {
		return &SynthesisError{Err: err}
	}
	return nil
}

// SynthesizeToBuffer renders text to a temporary wav and decodes it to
// 16 kHz mono PCM for the playback sink.
func (e *Engine) SynthesizeToBuffer(ctx context.Context, text string) ([]int16, error) {
	if text == "" {
		return nil, nil
	}

	tmp, err := os.CreateTemp("", "aura-tts-*.wav")
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	cmd := exec.CommandContext(ctx, e.bin(), e.args("-w", tmp.Name(), text)...)
	if err := cmd.Run(); err != nil {
		return nil, &SynthesisError{Err: err}
	}

	samples, err := audioconv.DecodeFile(tmp.Name())
	if err != nil {
		return nil, &SynthesisError{Err: fmt.Errorf("decode synthesized wav: %w", err)}
	}
	return samples, nil
}

// Sink plays raw PCM; satisfied by the playback package.
type Sink interface {
	Play(samples []int16) error
}

// Buffered speaks through a playback sink instead of espeak's own
// output, so the sink's Stop can cut a reply short.
type Buffered struct {
	Engine *Engine
	Sink   Sink
}

func (b *Buffered) Say(ctx context.Context, text string) error {
	samples, err := b.Engine.SynthesizeToBuffer(ctx, text)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}
	if err := b.Sink.Play(samples); err != nil {
		return &SynthesisError{Err: err}
	}
	return nil
}
