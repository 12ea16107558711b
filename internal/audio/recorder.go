package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"aura/internal/listen"
)

const defaultChunkSize = 1600 // 100ms at 16kHz

// Recorder is the one OS-level recording handle. It opens a single
// portaudio input stream at 16 kHz mono and pushes fixed-size int16
// chunks over a channel until Unsubscribe or a stream fault. The stream
// is never torn down between utterances; restarting the device is what
// this design exists to avoid.
type Recorder struct {
	chunkSize int

	mu     sync.Mutex
	stream *portaudio.Stream
	out    chan listen.Chunk
	stop   chan struct{}
}

func NewRecorder(chunkSize int) *Recorder {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Recorder{chunkSize: chunkSize}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Subscribe opens the default input device and starts pumping chunks.
// Only one subscription may be active at a time.
func (r *Recorder) Subscribe() (<-chan listen.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream != nil {
		return nil, fmt.Errorf("recorder already subscribed")
	}

	buf := make([]int16, r.chunkSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(listen.SampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start input stream: %w", err)
	}

	r.stream = stream
	r.out = make(chan listen.Chunk, 4)
	r.stop = make(chan struct{})

	go r.pump(stream, buf, r.out, r.stop)

	return r.out, nil
}

func (r *Recorder) pump(stream *portaudio.Stream, buf []int16, out chan listen.Chunk, stop chan struct{}) {
	defer close(out)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			out <- listen.Chunk{Err: err}
			return
		}

		samples := make([]int16, len(buf))
		copy(samples, buf)

		select {
		case out <- listen.Chunk{Samples: samples}:
		case <-stop:
			return
		}
	}
}

func (r *Recorder) Unsubscribe() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream == nil {
		return
	}

	close(r.stop)
	r.stream.Stop()
	r.stream.Close()
	r.stream = nil
}
