package playback

import "testing"

func TestPCMStreamer_DrainsAndStops(t *testing.T) {
	s := &pcmStreamer{samples: []int16{16384, -16384, 0}}

	out := make([][2]float64, 2)
	n, ok := s.Stream(out)
	if n != 2 || !ok {
		t.Fatalf("first stream: n=%d ok=%v", n, ok)
	}
	if out[0][0] != 0.5 || out[0][1] != 0.5 {
		t.Errorf("mono sample not duplicated to both channels: %v", out[0])
	}
	if out[1][0] != -0.5 {
		t.Errorf("second sample = %v, want -0.5", out[1][0])
	}

	n, ok = s.Stream(out)
	if n != 1 || !ok {
		t.Fatalf("second stream: n=%d ok=%v", n, ok)
	}

	n, ok = s.Stream(out)
	if n != 0 || ok {
		t.Fatalf("exhausted streamer: n=%d ok=%v, want 0,false", n, ok)
	}
}
