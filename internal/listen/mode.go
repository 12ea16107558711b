package listen

import (
	"context"
	"strings"
)

// Mode selects the consumer of completed utterances. Transitions are
// caller-driven only: entering a mode resets all turn-scoped state and
// nothing in the data stream ever switches modes on its own.
type Mode int

const (
	ModeWake Mode = iota
	ModeCommand
)

func (m Mode) String() string {
	switch m {
	case ModeWake:
		return "wake"
	case ModeCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Chunk is one fixed-size slice of capture samples, or a stream-level
// failure. After a chunk with Err != nil the source closes the channel.
type Chunk struct {
	Samples []int16
	Err     error
}

// Source is the one long-lived recording handle. It is subscribed once
// for the process lifetime; tearing it down mid-session reintroduces
// the startup latency this design exists to avoid.
type Source interface {
	Subscribe() (<-chan Chunk, error)
	Unsubscribe()
}

// Transcriber turns a bounded utterance into text. The text may be
// empty and may be wrong; deciding what to do with it is the mode's
// job, not the transcriber's.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []int16) (string, error)
}

// Archiver optionally persists dispatched utterances for calibration.
type Archiver interface {
	Save(samples []int16) (string, error)
}

// matchesWake reports whether a transcript contains the configured wake
// phrase, lower-cased and trimmed, as an exact substring. One literal
// alternate spelling is accepted as a fallback for common
// mis-transcriptions.
func matchesWake(text, phrase, alt string) bool {
	if phrase == "" {
		return false
	}
	t := strings.ToLower(strings.TrimSpace(text))
	if strings.Contains(t, strings.ToLower(phrase)) {
		return true
	}
	return alt != "" && strings.Contains(t, strings.ToLower(alt))
}
