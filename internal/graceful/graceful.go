package graceful

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

// HandleSignals blocks until SIGINT or SIGTERM, then runs every stopFunc
// concurrently and waits for all of them.
func HandleSignals(logger *logrus.Logger, stopFunc ...func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(signals)

	sig := <-signals
	logger.WithField("signal", sig.String()).Info("shutting down")

	wg := sync.WaitGroup{}
	wg.Add(len(stopFunc))
	for _, _f := range stopFunc {
		f := _f
		go func() {
			defer wg.Done()
			f()
		}()
	}
	wg.Wait()
}

// WithSignals returns a copy of parent that is cancelled on SIGINT or SIGTERM.
func WithSignals(parent context.Context, logger *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(signals)

		select {
		case sig := <-signals:
			logger.WithField("signal", sig.String()).Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
