package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/transfer-tracker/internal/metrics"
	"github.com/vultisig/transfer-tracker/types"
)

const defaultReceiptTimeout = 5 * time.Minute

// Service submits transactions and waits for their receipts on configured chains.
// Neither call retries: failures go straight back to the caller.
type Service struct {
	logger         *logrus.Logger
	clients        SupportedClients
	receiptTimeout time.Duration
	validate       *validator.Validate
	metrics        metrics.ChainMetrics
}

func NewService(
	logger *logrus.Logger,
	clients SupportedClients,
	receiptTimeout time.Duration,
	chainMetrics metrics.ChainMetrics, // Optional: pass nil to disable metrics
) *Service {
	if receiptTimeout <= 0 {
		receiptTimeout = defaultReceiptTimeout
	}
	if chainMetrics == nil {
		chainMetrics = metrics.NewNilChainMetrics()
	}
	return &Service{
		logger:         logger.WithField("pkg", "chain.service").Logger,
		clients:        clients,
		receiptTimeout: receiptTimeout,
		validate:       validator.New(),
		metrics:        chainMetrics,
	}
}

func (s *Service) Submit(ctx context.Context, chainID string, args TxArgs) (common.Hash, error) {
	hash, from, err := s.submit(ctx, chainID, args)
	if err != nil {
		s.metrics.RecordSubmission(chainID, "error")
		s.logger.WithField("chain", chainID).Errorf("submit failed: %v", err)
		return common.Hash{}, types.NewSubmissionError(chainID, err)
	}

	s.metrics.RecordSubmission(chainID, "ok")
	s.logger.WithFields(logrus.Fields{
		"chain":   chainID,
		"from":    from.Hex(),
		"tx_hash": hash.Hex(),
	}).Info("transaction submitted")
	return hash, nil
}

func (s *Service) submit(ctx context.Context, chainID string, args TxArgs) (common.Hash, common.Address, error) {
	client, ok := s.clients[chainID]
	if !ok || client.Wallet == nil {
		return common.Hash{}, common.Address{}, fmt.Errorf("%w: %s", ErrChainNotConfigured, chainID)
	}

	err := s.validate.Struct(args)
	if err != nil {
		return common.Hash{}, common.Address{}, fmt.Errorf("s.validate.Struct: %w", err)
	}

	from := client.Wallet.From()
	hash, err := client.Wallet.SendTransaction(ctx, args)
	if err != nil {
		return common.Hash{}, from, fmt.Errorf("client.Wallet.SendTransaction: %w", err)
	}
	return hash, from, nil
}

// WaitForReceipt makes a single wait call bounded by the receipt timeout.
func (s *Service) WaitForReceipt(ctx context.Context, chainID string, hash common.Hash) (*Receipt, error) {
	fields := logrus.Fields{
		"chain":   chainID,
		"tx_hash": hash.Hex(),
	}

	client, ok := s.clients[chainID]
	if !ok || client.Public == nil {
		err := fmt.Errorf("%w: %s", ErrChainNotConfigured, chainID)
		return nil, types.NewReceiptError(chainID, hash.Hex(), err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.receiptTimeout)
	defer cancel()

	start := time.Now()
	rec, err := client.Public.WaitMined(waitCtx, hash)
	if err != nil {
		if waitCtx.Err() != nil && !errors.Is(err, waitCtx.Err()) {
			err = fmt.Errorf("%w: %w", waitCtx.Err(), err)
		}
		s.metrics.RecordReceiptWait(chainID, "error", time.Since(start).Seconds())
		s.logger.WithFields(fields).Errorf("receipt wait failed: %v", err)
		return nil, types.NewReceiptError(chainID, hash.Hex(), err)
	}

	s.metrics.RecordReceiptWait(chainID, string(rec.Status), time.Since(start).Seconds())
	s.logger.WithFields(fields).WithField("block", rec.BlockNumber).Infof("receipt received, status=%s", rec.Status)
	return rec, nil
}
