package listen

import (
	"time"
)

// Decision is the detector's verdict for one chunk.
type Decision int

const (
	// Skip means the chunk is a leading chunk and must not be buffered
	// or counted toward amplitude tracking.
	Skip Decision = iota
	// Keep means the chunk belongs to the current utterance.
	Keep
	// Boundary means trailing silence has persisted long enough and the
	// current utterance is finished. The triggering chunk still belongs
	// to the utterance.
	Boundary
)

// Detector decides when an utterance ends, from a running stream of
// fixed-size PCM chunks. Silence is judged by peak amplitude against a
// fixed threshold; a boundary fires once silence has lasted at least
// the configured duration. A threshold of 0 disables endpointing
// entirely (no chunk is ever quieter than 0).
type Detector struct {
	threshold int
	silence   time.Duration
	skip      int

	index        int
	inSilence    bool
	silenceStart time.Time
	hasSpeech    bool
}

func NewDetector(threshold int, silence time.Duration, skipChunks int) *Detector {
	return &Detector{
		threshold: threshold,
		silence:   silence,
		skip:      skipChunks,
	}
}

// Feed processes one chunk received at the given time. Chunks must be
// fed in arrival order. After a Boundary the caller consumes the
// has-speech flag with Finish.
func (d *Detector) Feed(samples []int16, now time.Time) Decision {
	d.index++
	if d.index <= d.skip {
		return Skip
	}

	if d.threshold <= 0 {
		d.hasSpeech = true
		return Keep
	}

	if peak(samples) >= d.threshold {
		// Speech restarts the countdown from zero, no partial credit.
		d.inSilence = false
		d.hasSpeech = true
		return Keep
	}

	if !d.inSilence {
		// The chunk is quiet for its whole span, so silence began when
		// the chunk started recording, not when it arrived.
		d.inSilence = true
		d.silenceStart = now.Add(-span(len(samples)))
		return Keep
	}

	if now.Sub(d.silenceStart) >= d.silence {
		d.inSilence = false
		return Boundary
	}

	return Keep
}

// Finish consumes the has-speech flag at a boundary. It reports whether
// any chunk since the previous boundary crossed the threshold; a
// boundary without speech is pure silence and must be discarded without
// transcription.
func (d *Detector) Finish() bool {
	had := d.hasSpeech
	d.hasSpeech = false
	return had
}

// HasSpeech reports whether any chunk since the last boundary crossed
// the threshold.
func (d *Detector) HasSpeech() bool { return d.hasSpeech }

func peak(samples []int16) int {
	max := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > max {
			max = v
		}
	}
	return max
}

func span(n int) time.Duration {
	return time.Duration(n) * time.Second / SampleRate
}
