package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/vultisig/transfer-tracker/config"
	"github.com/vultisig/transfer-tracker/types"
)

const (
	defaultTimeout         = 10 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 10 * time.Second
	maxResponseBytes       = 4 << 20
)

// Client queries the transfer indexer's GraphQL endpoint.
// Every failure is returned as *types.TransportError.
type Client struct {
	logger  *logrus.Logger
	url     string
	client  *retryablehttp.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(logger *logrus.Logger, cfg config.IndexerConfig) *Client {
	logger = logger.WithField("pkg", "indexer.client").Logger

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = logger
	retryClient.RetryMax = cfg.MaxRetries

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "indexer",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		// cancelled calls are not failures
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	return &Client{
		logger:  logger,
		url:     cfg.URL,
		client:  retryClient,
		breaker: breaker,
	}
}

// TransferByPacketHash returns the transfers the indexer holds for the packet hash,
// in indexer order. An empty slice means the indexer has not seen the packet yet.
func (c *Client) TransferByPacketHash(ctx context.Context, packetHash string) ([]types.TransferRecord, error) {
	reqBody, err := json.Marshal(graphqlRequest{
		Query:         transferByPacketHashQuery,
		OperationName: "TransferByPacketHash",
		Variables:     map[string]any{"packet_hash": packetHash},
	})
	if err != nil {
		return nil, types.NewTransportError(fmt.Errorf("json.Marshal: %w", err))
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.post(ctx, reqBody)
	})
	if err != nil {
		return nil, types.NewTransportError(err)
	}

	records, err := decodeTransfers(body)
	if err != nil {
		return nil, types.NewTransportError(fmt.Errorf("decodeTransfers: %w", err))
	}
	return records, nil
}

func (c *Client) post(ctx context.Context, reqBody []byte) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("retryablehttp.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("c.client.Do: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: status_code: %d, res_body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
