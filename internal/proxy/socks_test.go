package proxy

import (
	"testing"
	"time"
)

func TestNewSocksClientTimeout(t *testing.T) {
	// building the client never dials, so an unused address is fine
	c, err := NewSocksClient("127.0.0.1:1080", 0)
	if err != nil {
		t.Fatalf("NewSocksClient: %v", err)
	}
	if c.Timeout != defaultTimeout {
		t.Errorf("timeout = %v, want default %v", c.Timeout, defaultTimeout)
	}

	c, err = NewSocksClient("127.0.0.1:1080", 5*time.Second)
	if err != nil {
		t.Fatalf("NewSocksClient: %v", err)
	}
	if c.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", c.Timeout)
	}
}
