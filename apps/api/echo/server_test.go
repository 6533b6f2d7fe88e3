package echoapi

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func Test_signalShutdown_neverBlocks(t *testing.T) {
	s := &server{shutdownSig: make(chan os.Signal, 1)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// repeated integrity errors may fire before main drains the channel
		s.signalShutdown()
		s.signalShutdown()
		s.signalShutdown()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("signalShutdown() blocked on a full channel")
	}

	select {
	case sig := <-s.shutdownSig:
		if sig != syscall.SIGTERM {
			t.Errorf("signal = %v, want SIGTERM", sig)
		}
	default:
		t.Error("no shutdown signal was delivered")
	}
}
