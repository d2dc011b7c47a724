package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/transfer-tracker/internal/metrics"
	"github.com/vultisig/transfer-tracker/types"
)

const DefaultInterval = time.Second

var ErrEmptyPacketHash = errors.New("packet hash is empty")

var activePollers atomic.Int64

// Querier executes the transfer status query.
type Querier interface {
	TransferByPacketHash(ctx context.Context, packetHash string) ([]types.TransferRecord, error)
}

// Poller repeatedly queries the indexer for one packet hash and writes every outcome into the store.
// The next query is issued interval after the previous response was applied, so queries never overlap.
type Poller struct {
	logger        *logrus.Logger
	store         *Store
	querier       Querier
	interval      time.Duration
	stopOnSuccess bool
	metrics       metrics.PollerMetrics

	// mu guards the fields below and is held across every store write,
	// so no write can land after Stop returns.
	mu         sync.Mutex
	gen        uint64
	running    bool
	packetHash string
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewPoller(
	logger *logrus.Logger,
	store *Store,
	querier Querier,
	interval time.Duration,
	stopOnSuccess bool,
	pollerMetrics metrics.PollerMetrics, // Optional: pass nil to disable metrics
) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if pollerMetrics == nil {
		pollerMetrics = metrics.NewNilPollerMetrics()
	}
	done := make(chan struct{})
	close(done)
	return &Poller{
		logger:        logger.WithField("pkg", "tracker.poller").Logger,
		store:         store,
		querier:       querier,
		interval:      interval,
		stopOnSuccess: stopOnSuccess,
		metrics:       pollerMetrics,
		done:          done,
	}
}

// Start begins polling packetHash. Starting the hash that is already polled is a no-op;
// starting another hash stops the current loop and resets the store.
func (p *Poller) Start(ctx context.Context, packetHash string) error {
	if packetHash == "" {
		return ErrEmptyPacketHash
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running && p.packetHash == packetHash {
		return nil
	}
	p.stopLocked()

	p.store.Reset(packetHash)

	loopCtx, cancel := context.WithCancel(ctx)
	p.gen++
	p.running = true
	p.packetHash = packetHash
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(loopCtx, p.gen, packetHash, p.done)

	p.logger.WithField("packet_hash", packetHash).Info("polling started")
	return nil
}

// Stop cancels the loop. In-flight queries are abandoned and their results dropped;
// once Stop returns the store receives no further writes from this poller.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if !p.running {
		return
	}
	p.running = false
	p.cancel()
	p.logger.WithField("packet_hash", p.packetHash).Info("polling stopped")
}

// Done is closed when the current loop exits.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) PacketHash() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.packetHash
}

func (p *Poller) run(ctx context.Context, gen uint64, packetHash string, done chan struct{}) {
	defer close(done)
	p.metrics.SetActivePollers(float64(activePollers.Add(1)))
	defer func() {
		p.metrics.SetActivePollers(float64(activePollers.Add(-1)))
	}()
	defer func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.gen == gen && p.running {
			p.running = false
			p.cancel()
		}
	}()

	for {
		if p.poll(ctx, gen, packetHash) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

// poll runs one query and applies its outcome. It reports whether the loop should exit.
func (p *Poller) poll(ctx context.Context, gen uint64, packetHash string) bool {
	start := time.Now()
	records, err := p.querier.TransferByPacketHash(ctx, packetHash)

	// a poll cancelled before mu is taken never writes
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil || !p.running || p.gen != gen {
		return true
	}

	result := p.apply(packetHash, records, err)
	p.metrics.RecordPoll(result, time.Since(start).Seconds())
	p.metrics.SetLastPollTimestamp(float64(time.Now().Unix()))

	if result == resultFound && p.stopOnSuccess && records[0].Succeeded() {
		p.logger.WithField("packet_hash", packetHash).Info("transfer succeeded, polling finished")
		p.running = false
		p.cancel()
		return true
	}
	return false
}

const (
	resultFound          = "found"
	resultNotFound       = "not_found"
	resultTransportError = "transport_error"
)

// apply must be called with mu held.
func (p *Poller) apply(packetHash string, records []types.TransferRecord, err error) string {
	logger := p.logger.WithField("packet_hash", packetHash)

	if err != nil {
		var te *types.TransportError
		if !errors.As(err, &te) {
			err = types.NewTransportError(err)
		}
		p.store.SetError(err)
		logger.Errorf("processing error, continue loop: %v", err)
		return resultTransportError
	}

	if len(records) == 0 {
		p.store.SetError(types.NewNotFoundError())
		logger.Debug("transfer not indexed yet")
		return resultNotFound
	}

	if len(records) > 1 {
		logger.Warnf("indexer returned %d transfers, using the first", len(records))
	}
	rec := records[0]
	p.store.Set(types.Some(rec), nil)
	logger.WithFields(rec.Fields()).Debug("transfer updated")
	return resultFound
}
