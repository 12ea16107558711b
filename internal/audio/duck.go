package audio

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var volumeRe = regexp.MustCompile(`(\d+)\s*%`)

type sinkInput struct {
	id     int
	volume int
	app    string
}

// Ducker lowers the volume of other applications' playback streams
// while a voice turn is active, so the microphone hears the user and
// not the music. Streams whose application name matches one of
// selfNames are left alone. Implemented over pactl sink-inputs.
type Ducker struct {
	mu        sync.Mutex
	active    bool
	selfNames []string
	original  map[int]int
	factor    float64
}

func NewDucker(selfNames []string, factor float64) *Ducker {
	if factor <= 0 || factor >= 1 {
		factor = 0.3
	}
	return &Ducker{
		selfNames: append([]string(nil), selfNames...),
		original:  make(map[int]int),
		factor:    factor,
	}
}

// Duck scales every foreign stream down by the configured factor,
// remembering the original volumes. Calling it twice is a no-op.
func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	inputs, err := listSinkInputs(ctx)
	if err != nil {
		return fmt.Errorf("list sink inputs: %w", err)
	}

	d.original = make(map[int]int)
	for _, in := range inputs {
		if d.isSelf(in.app) {
			continue
		}
		target := int(float64(in.volume) * d.factor)
		if err := setSinkInputVolume(ctx, in.id, target); err != nil {
			return fmt.Errorf("duck stream %d: %w", in.id, err)
		}
		d.original[in.id] = in.volume
	}

	d.active = true
	return nil
}

// Unduck restores the volumes remembered by Duck. Streams that
// disappeared in the meantime are skipped silently.
func (d *Ducker) Unduck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	inputs, err := listSinkInputs(ctx)
	if err != nil {
		return fmt.Errorf("list sink inputs: %w", err)
	}

	alive := make(map[int]bool, len(inputs))
	for _, in := range inputs {
		alive[in.id] = true
	}

	for id, vol := range d.original {
		if !alive[id] {
			continue
		}
		if err := setSinkInputVolume(ctx, id, vol); err != nil {
			return fmt.Errorf("restore stream %d: %w", id, err)
		}
	}

	d.original = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(app string) bool {
	for _, name := range d.selfNames {
		if app == name {
			return true
		}
	}
	return false
}

func listSinkInputs(ctx context.Context) ([]sinkInput, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, err
	}

	blocks := strings.Split(string(out), "Sink Input #")
	var inputs []sinkInput
	for _, block := range blocks[1:] {
		nl := strings.IndexByte(block, '\n')
		if nl <= 0 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(block[:nl]))
		if err != nil {
			continue
		}

		in := sinkInput{id: id}
		for _, line := range strings.Split(block[nl+1:], "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "Volume:") && in.volume == 0 {
				if m := volumeRe.FindStringSubmatch(line); len(m) == 2 {
					in.volume, _ = strconv.Atoi(m[1])
				}
			}
			if strings.HasPrefix(line, "application.name =") && in.app == "" {
				if i := strings.Index(line, `"`); i >= 0 {
					rest := line[i+1:]
					if j := strings.Index(rest, `"`); j >= 0 {
						in.app = rest[:j]
					}
				}
			}
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func setSinkInputVolume(ctx context.Context, id, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 150 {
		percent = 150
	}
	return exec.CommandContext(ctx, "pactl",
		"set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent)).Run()
}
