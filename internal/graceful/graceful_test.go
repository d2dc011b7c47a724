package graceful

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestWithSignals_parentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := WithSignals(parent, logrus.New())
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled with parent")
	}
}

func TestHandleSignals(t *testing.T) {
	// keeps SIGINT from terminating the test binary before HandleSignals subscribes
	guard := make(chan os.Signal, 16)
	signal.Notify(guard, syscall.SIGINT)
	defer signal.Stop(guard)

	var stopped atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		HandleSignals(logrus.New(), func() { stopped.Add(1) }, func() { stopped.Add(1) })
	}()

	proc, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)

	deadline := time.After(time.Second)
	for {
		require.NoError(t, proc.Signal(syscall.SIGINT))
		select {
		case <-done:
			require.Equal(t, int32(2), stopped.Load())
			return
		case <-deadline:
			t.Fatal("stop funcs not called on SIGINT")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
