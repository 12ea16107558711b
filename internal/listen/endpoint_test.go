package listen

import (
	"testing"
	"time"
)

const chunkSize = 1600 // 100ms at 16kHz

func loudChunk(amp int16) []int16 {
	c := make([]int16, chunkSize)
	c[chunkSize/2] = amp
	return c
}

func quietChunk() []int16 {
	return make([]int16, chunkSize)
}

// feedAll feeds chunks spaced one chunk interval apart and returns the
// 1-based index of the first boundary, or 0 if none fired.
func feedAll(d *Detector, chunks [][]int16) int {
	start := time.Unix(0, 0)
	for i, c := range chunks {
		now := start.Add(time.Duration(i+1) * span(chunkSize))
		if d.Feed(c, now) == Boundary {
			return i + 1
		}
	}
	return 0
}

func TestDetector_NoBoundaryWhileLoud(t *testing.T) {
	d := NewDetector(900, 1500*time.Millisecond, 1)

	chunks := make([][]int16, 100)
	for i := range chunks {
		chunks[i] = loudChunk(5000)
	}

	if at := feedAll(d, chunks); at != 0 {
		t.Fatalf("boundary fired at chunk %d on all-loud stream", at)
	}
}

func TestDetector_BoundaryAfterSilence(t *testing.T) {
	// 20 loud chunks then 16 quiet ones at 100ms intervals: 15 chunks of
	// silence reach the 1.5s duration at chunk 35.
	d := NewDetector(900, 1500*time.Millisecond, 1)

	var chunks [][]int16
	for i := 0; i < 20; i++ {
		chunks = append(chunks, loudChunk(5000))
	}
	for i := 0; i < 16; i++ {
		chunks = append(chunks, quietChunk())
	}

	if at := feedAll(d, chunks); at != 35 {
		t.Fatalf("boundary at chunk %d, want 35", at)
	}
	if !d.Finish() {
		t.Fatal("boundary should carry speech")
	}
}

func TestDetector_SpeechResetsSilenceTimer(t *testing.T) {
	// 14 quiet chunks, one loud interruption, then 14 more quiet chunks:
	// the two runs must not be summed toward the duration.
	d := NewDetector(900, 1500*time.Millisecond, 0)

	var chunks [][]int16
	chunks = append(chunks, loudChunk(5000))
	for i := 0; i < 14; i++ {
		chunks = append(chunks, quietChunk())
	}
	chunks = append(chunks, loudChunk(5000))
	for i := 0; i < 14; i++ {
		chunks = append(chunks, quietChunk())
	}

	if at := feedAll(d, chunks); at != 0 {
		t.Fatalf("boundary fired at chunk %d, interrupted silence must restart from zero", at)
	}

	// One more quiet chunk completes the second run.
	now := time.Unix(0, 0).Add(31 * span(chunkSize))
	if d.Feed(quietChunk(), now) != Boundary {
		t.Fatal("expected boundary once the second silence run reached the duration")
	}
}

func TestDetector_PureSilenceBoundaryHasNoSpeech(t *testing.T) {
	d := NewDetector(900, 500*time.Millisecond, 0)

	var chunks [][]int16
	for i := 0; i < 10; i++ {
		chunks = append(chunks, quietChunk())
	}

	at := feedAll(d, chunks)
	if at == 0 {
		t.Fatal("expected a boundary from sustained silence")
	}
	if d.Finish() {
		t.Fatal("silence-only boundary must not carry speech")
	}
}

func TestDetector_ZeroThresholdDisablesEndpointing(t *testing.T) {
	d := NewDetector(-1, 100*time.Millisecond, 0)

	chunks := make([][]int16, 200)
	for i := range chunks {
		chunks[i] = quietChunk()
	}

	if at := feedAll(d, chunks); at != 0 {
		t.Fatalf("boundary at chunk %d with endpointing disabled", at)
	}
	if !d.HasSpeech() {
		t.Fatal("disabled endpointing records every chunk as speech")
	}
}

func TestDetector_LeadingChunksSkipped(t *testing.T) {
	d := NewDetector(900, 1500*time.Millisecond, 6)

	start := time.Unix(0, 0)
	for i := 0; i < 6; i++ {
		now := start.Add(time.Duration(i+1) * span(chunkSize))
		if got := d.Feed(loudChunk(32000), now); got != Skip {
			t.Fatalf("chunk %d: got %v, want Skip", i+1, got)
		}
	}
	if d.HasSpeech() {
		t.Fatal("skipped chunks must not contribute to amplitude tracking")
	}

	now := start.Add(7 * span(chunkSize))
	if got := d.Feed(loudChunk(5000), now); got != Keep {
		t.Fatalf("chunk 7: got %v, want Keep", got)
	}
}

func TestPeak(t *testing.T) {
	cases := []struct {
		name    string
		samples []int16
		want    int
	}{
		{"empty", nil, 0},
		{"positive", []int16{1, 500, 20}, 500},
		{"negative dominates", []int16{100, -900, 20}, 900},
		{"minimum int16", []int16{-32768}, 32768},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := peak(tc.samples); got != tc.want {
				t.Errorf("peak = %d, want %d", got, tc.want)
			}
		})
	}
}
