package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/transfer-tracker/types"
)

// Observer receives the post-write snapshot on every store write.
// Observers run synchronously in the writer's goroutine and must not write to the store.
type Observer func(Snapshot)

// Store holds the latest known transfer record and the latest known error
// for the tracked packet hash. It never initiates I/O.
type Store struct {
	logger *logrus.Logger

	// writeMu serializes write+notify so observers see writes in order.
	writeMu sync.Mutex

	mu        sync.RWMutex
	snapshot  Snapshot
	observers map[uuid.UUID]Observer
	order     []uuid.UUID
}

func NewStore(logger *logrus.Logger) *Store {
	return &Store{
		logger:    logger.WithField("pkg", "tracker.store").Logger,
		observers: make(map[uuid.UUID]Observer),
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// SetData replaces the record. The error is left as is.
func (s *Store) SetData(data types.Option[types.TransferRecord]) {
	s.write(func(snap *Snapshot) {
		snap.Data = data
	})
}

// SetError replaces the error; nil clears it. The record is left as is.
func (s *Store) SetError(err error) {
	s.write(func(snap *Snapshot) {
		snap.Err = err
	})
}

// Set replaces both fields in one write.
func (s *Store) Set(data types.Option[types.TransferRecord], err error) {
	s.write(func(snap *Snapshot) {
		snap.Data = data
		snap.Err = err
	})
}

// Reset switches the store to a new packet hash and clears data and error.
// Resetting to the current hash is a no-op.
func (s *Store) Reset(packetHash string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.snapshot.PacketHash == packetHash {
		s.mu.Unlock()
		return
	}
	s.snapshot = Snapshot{
		PacketHash: packetHash,
		UpdatedAt:  time.Now().UTC(),
		Version:    s.snapshot.Version + 1,
	}
	snap, observers := s.snapshot, s.observerList()
	s.mu.Unlock()

	s.logger.WithField("packet_hash", packetHash).Debug("store reset")
	notify(observers, snap)
}

// Subscribe registers fn and returns its id and a function that removes it.
func (s *Store) Subscribe(fn Observer) (uuid.UUID, func()) {
	id := uuid.New()

	s.mu.Lock()
	s.observers[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	return id, func() {
		s.Unsubscribe(id)
	}
}

func (s *Store) Unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.observers[id]; !ok {
		return
	}
	delete(s.observers, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store) write(apply func(*Snapshot)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	apply(&s.snapshot)
	s.snapshot.UpdatedAt = time.Now().UTC()
	s.snapshot.Version++
	snap, observers := s.snapshot, s.observerList()
	s.mu.Unlock()

	notify(observers, snap)
}

// observerList must be called with mu held.
func (s *Store) observerList() []Observer {
	out := make([]Observer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.observers[id])
	}
	return out
}

func notify(observers []Observer, snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}
