package listen

import "time"

// SampleRate is the fixed capture rate of the whole pipeline: 16 kHz,
// mono, signed 16-bit little-endian.
const SampleRate = 16000

const (
	defaultThreshold   = 900
	defaultSilence     = 1500 * time.Millisecond
	defaultWakeSkip    = 1
	defaultCommandSkip = 6
	defaultSTTTimeout  = 60 * time.Second
)

type Config struct {
	// VolumeThreshold is the peak amplitude (0..32767) below which a
	// chunk counts as silence. 0 picks the default; a negative value
	// disables silence endpointing.
	VolumeThreshold int

	// DisableEndpointing turns silence endpointing off regardless of
	// VolumeThreshold. Captures then end only at the caller's ceiling.
	DisableEndpointing bool

	// SilenceDuration is how long silence must persist inside an
	// utterance before a boundary fires.
	SilenceDuration time.Duration

	// WakePhrase is matched as a lower-cased substring of the
	// transcript. WakePhraseAlt is one literal alternate spelling
	// accepted for common mis-transcriptions.
	WakePhrase    string
	WakePhraseAlt string

	// WakeSkipChunks and CommandSkipChunks are the number of leading
	// chunks ignored after mode entry. The command skip is larger to
	// absorb residual playback energy leaking into the microphone.
	WakeSkipChunks    int
	CommandSkipChunks int

	// TranscribeTimeout bounds a single transcription call.
	TranscribeTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.DisableEndpointing {
		out.VolumeThreshold = -1
	}
	if out.VolumeThreshold == 0 {
		out.VolumeThreshold = defaultThreshold
	}
	if out.VolumeThreshold < 0 {
		out.VolumeThreshold = 0
	}
	if out.SilenceDuration <= 0 {
		out.SilenceDuration = defaultSilence
	}
	if out.WakeSkipChunks <= 0 {
		out.WakeSkipChunks = defaultWakeSkip
	}
	if out.CommandSkipChunks <= 0 {
		out.CommandSkipChunks = defaultCommandSkip
	}
	if out.TranscribeTimeout <= 0 {
		out.TranscribeTimeout = defaultSTTTimeout
	}
	return out
}
