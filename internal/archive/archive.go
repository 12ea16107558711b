// Package archive persists dispatched utterances as wav files, for
// threshold calibration and transcription debugging.
package archive

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	wave "github.com/zenwerk/go-wave"

	"aura/internal/listen"
)

type Archive struct {
	fs  afero.Fs
	dir string
}

func New(fs afero.Fs, dir string) (*Archive, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{fs: fs, dir: dir}, nil
}

// Save writes one utterance as 16 kHz mono 16-bit wav and returns the
// file name.
func (a *Archive) Save(samples []int16) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	name := fmt.Sprintf("%s/utterance-%d.wav", a.dir, time.Now().UnixNano())
	f, err := a.fs.Create(name)
	if err != nil {
		return "", fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	w, err := wave.NewWriter(wave.WriterParam{
		Out:           f,
		Channel:       1,
		SampleRate:    listen.SampleRate,
		BitsPerSample: 16,
	})
	if err != nil {
		return "", fmt.Errorf("wav writer: %w", err)
	}
	defer w.Close()

	if _, err := w.WriteSample16(samples); err != nil {
		return "", fmt.Errorf("write samples: %w", err)
	}
	return name, nil
}
