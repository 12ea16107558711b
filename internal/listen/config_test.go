package listen

import "testing"

func TestConfigDefaults(t *testing.T) {
	c := Config{}
	got := c.withDefaults()

	if got.VolumeThreshold != defaultThreshold {
		t.Errorf("threshold = %d, want %d", got.VolumeThreshold, defaultThreshold)
	}
	if got.SilenceDuration != defaultSilence {
		t.Errorf("silence = %v, want %v", got.SilenceDuration, defaultSilence)
	}
	if got.WakeSkipChunks != defaultWakeSkip || got.CommandSkipChunks != defaultCommandSkip {
		t.Errorf("skip = %d/%d, want %d/%d",
			got.WakeSkipChunks, got.CommandSkipChunks, defaultWakeSkip, defaultCommandSkip)
	}
}

func TestConfigDisableEndpointing(t *testing.T) {
	// the explicit flag wins even over a configured threshold
	c := Config{VolumeThreshold: 900, DisableEndpointing: true}
	if got := c.withDefaults().VolumeThreshold; got != 0 {
		t.Fatalf("threshold = %d, want 0 (disabled)", got)
	}

	// a negative threshold disables too and is not remapped to the
	// default
	c = Config{VolumeThreshold: -1}
	if got := c.withDefaults().VolumeThreshold; got != 0 {
		t.Fatalf("threshold = %d, want 0 (disabled)", got)
	}
}
