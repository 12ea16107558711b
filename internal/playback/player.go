// Package playback is the speaker-side sink: PCM playback and the
// acknowledgment chime, both through the beep speaker.
package playback

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"

	"aura/internal/listen"
)

// Player owns the output device. Init opens the speaker once at the
// pipeline rate; Play blocks until the buffer finishes or Stop clears
// it.
type Player struct {
	once sync.Once
	err  error
}

func (p *Player) Init() error {
	p.once.Do(func() {
		sr := beep.SampleRate(listen.SampleRate)
		p.err = speaker.Init(sr, sr.N(time.Second/10))
	})
	return p.err
}

func (p *Player) Play(samples []int16) error {
	if err := p.Init(); err != nil {
		return fmt.Errorf("open speaker: %w", err)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(&pcmStreamer{samples: samples}, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

// Stop drops whatever is queued on the speaker.
func (p *Player) Stop() {
	speaker.Clear()
}

// Chime plays a short mp3 asset, used to acknowledge the wake phrase
// before speaking.
func (p *Player) Chime(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open chime: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode chime: %w", err)
	}
	defer streamer.Close()

	if err := p.Init(); err != nil {
		return fmt.Errorf("open speaker: %w", err)
	}

	done := make(chan struct{})
	resampled := beep.Resample(4, format.SampleRate, beep.SampleRate(listen.SampleRate), streamer)
	speaker.Play(beep.Seq(resampled, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

// pcmStreamer adapts mono int16 PCM to beep's float64 stereo frames.
type pcmStreamer struct {
	samples []int16
	pos     int
}

func (s *pcmStreamer) Stream(out [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := 0
	for i := range out {
		if s.pos >= len(s.samples) {
			break
		}
		v := float64(s.samples[s.pos]) / 32768.0
		out[i][0] = v
		out[i][1] = v
		s.pos++
		n++
	}
	return n, true
}

func (s *pcmStreamer) Err() error { return nil }
