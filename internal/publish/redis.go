package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/transfer-tracker/config"
	"github.com/vultisig/transfer-tracker/tracker"
)

const (
	queueSize    = 64
	writeTimeout = 5 * time.Second
	keyPrefix    = "transfer-status:"
	keyTTL       = 24 * time.Hour
)

// Conn is the subset of *redis.Client the publisher uses.
type Conn interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Publisher pushes every store snapshot to a Redis channel and keeps the latest
// one under transfer-status:<packet_hash>. Snapshots are queued and written by Run;
// when the queue is full the snapshot is dropped.
type Publisher struct {
	logger  *logrus.Logger
	conn    Conn
	channel string
	queue   chan tracker.Snapshot
}

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Username: cfg.User,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	status := client.Ping(ctx)
	if status.Err() != nil {
		return nil, fmt.Errorf("client.Ping: %w", status.Err())
	}
	return client, nil
}

func NewPublisher(logger *logrus.Logger, conn Conn, channel string) *Publisher {
	return &Publisher{
		logger:  logger.WithField("pkg", "publish.redis").Logger,
		conn:    conn,
		channel: channel,
		queue:   make(chan tracker.Snapshot, queueSize),
	}
}

// Observe is a store observer. It never blocks the writer.
func (p *Publisher) Observe(snap tracker.Snapshot) {
	select {
	case p.queue <- snap:
	default:
		p.logger.WithFields(logrus.Fields{
			"packet_hash": snap.PacketHash,
			"version":     snap.Version,
		}).Warn("publish queue full, snapshot dropped")
	}
}

func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("publisher started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("publisher stopped")
			return nil
		case snap := <-p.queue:
			err := p.publish(ctx, snap)
			if err != nil {
				p.logger.Errorf("processing error, continue loop: %v", err)
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, snap tracker.Snapshot) error {
	if snap.PacketHash == "" {
		return nil
	}
	msg, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("Encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = p.conn.Set(ctx, Key(snap.PacketHash), msg, keyTTL).Err()
	if err != nil {
		return fmt.Errorf("p.conn.Set: %w", err)
	}
	err = p.conn.Publish(ctx, p.channel, msg).Err()
	if err != nil {
		return fmt.Errorf("p.conn.Publish: %w", err)
	}
	return nil
}

func Key(packetHash string) string {
	return keyPrefix + packetHash
}

// Encode renders a snapshot in the same shape the status API serves.
func Encode(snap tracker.Snapshot) ([]byte, error) {
	return json.Marshal(snap.View())
}
