// Package stt wraps the whisper.cpp Go bindings behind the narrow
// transcription contract the capture loop needs: bounded PCM in, text
// out, possibly empty, possibly wrong.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type Options struct {
	Language      string // e.g. "auto", "en"
	Threads       int    // <=0 => NumCPU()
	InitialPrompt string
}

type Transcriber struct {
	model whisper.Model
	opt   Options
}

func NewTranscriber(modelPath string, opt Options) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if opt.Language == "" {
		opt.Language = "auto"
	}
	return &Transcriber{model: m, opt: opt}, nil
}

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// Transcribe runs the model over one utterance of 16 kHz mono int16
// PCM and returns the joined segment text. Arbitrary-length buffers are
// accepted.
func (t *Transcriber) Transcribe(ctx context.Context, samples []int16) (string, error) {
	if t.model == nil {
		return "", errors.New("nil model")
	}
	if len(samples) == 0 {
		return "", nil
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("new context: %w", err)
	}

	if err := wctx.SetLanguage(t.opt.Language); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	threads := t.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))
	if t.opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(t.opt.InitialPrompt)
	}

	if err := wctx.Process(pcmToFloat32(samples), nil, nil, nil); err != nil {
		return "", fmt.Errorf("process: %w", err)
	}

	var parts []string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next segment: %w", err)
		}

		text := strings.TrimSpace(s.Text)
		// whisper annotates non-speech as bracketed events; they are
		// noise for a command transcript
		if text == "" || isAnnotation(text) {
			continue
		}
		parts = append(parts, text)
	}

	return strings.Join(parts, " "), nil
}

func isAnnotation(text string) bool {
	first, last := text[0], text[len(text)-1]
	return (first == '(' && last == ')') || (first == '[' && last == ']')
}

func pcmToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	const scale = 1.0 / 32768.0
	for i, s := range samples {
		out[i] = float32(s) * scale
	}
	return out
}
