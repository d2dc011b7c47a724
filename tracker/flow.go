package tracker

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/transfer-tracker/chain"
)

// ChainService is the submit/confirm side of a transfer.
type ChainService interface {
	Submit(ctx context.Context, chainID string, args chain.TxArgs) (common.Hash, error)
	WaitForReceipt(ctx context.Context, chainID string, hash common.Hash) (*chain.Receipt, error)
}

type Result struct {
	RequestID uuid.UUID
	ChainID   string
	Hash      common.Hash
	Receipt   *chain.Receipt
}

// Flow submits a transfer, starts tracking its hash and waits for the receipt.
type Flow struct {
	logger *logrus.Logger
	chain  ChainService
	poller *Poller
}

func NewFlow(logger *logrus.Logger, chainService ChainService, poller *Poller) *Flow {
	return &Flow{
		logger: logger.WithField("pkg", "tracker.flow").Logger,
		chain:  chainService,
		poller: poller,
	}
}

// Execute runs submit then confirm in the caller's goroutine. Polling starts as soon
// as the hash is known and keeps running after Execute returns, bound to ctx.
// A submission failure is returned as is and no receipt wait is made.
// On a receipt failure the returned result still carries the hash.
func (f *Flow) Execute(ctx context.Context, chainID string, args chain.TxArgs) (*Result, error) {
	res := &Result{
		RequestID: uuid.New(),
		ChainID:   chainID,
	}
	logger := f.logger.WithFields(logrus.Fields{
		"request_id": res.RequestID.String(),
		"chain":      chainID,
	})

	hash, err := f.chain.Submit(ctx, chainID, args)
	if err != nil {
		logger.Errorf("submit failed: %v", err)
		return nil, err
	}
	res.Hash = hash
	logger = logger.WithField("tx_hash", hash.Hex())

	err = f.poller.Start(ctx, hash.Hex())
	if err != nil {
		return nil, fmt.Errorf("f.poller.Start: %w", err)
	}

	rec, err := f.chain.WaitForReceipt(ctx, chainID, hash)
	if err != nil {
		logger.Errorf("receipt wait failed: %v", err)
		return res, err
	}
	res.Receipt = rec

	logger.WithField("block", rec.BlockNumber).Infof("transfer confirmed, status=%s", rec.Status)
	return res, nil
}
