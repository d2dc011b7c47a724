package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrChainNotConfigured = errors.New("chain not configured")
	ErrNoSigner           = errors.New("no signing key configured for chain")
)

// Wallet signs and broadcasts transactions on one chain.
type Wallet interface {
	From() common.Address
	SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error)
}

// PublicClient reads chain state on one chain.
type PublicClient interface {
	// WaitMined blocks until hash is included in a block or ctx is done.
	WaitMined(ctx context.Context, hash common.Hash) (*Receipt, error)
}

type Client struct {
	Wallet Wallet
	Public PublicClient
}

// SupportedClients is keyed by universal chain id.
type SupportedClients map[string]Client

// TxArgs is an unsigned transaction request. Gas of zero means estimate.
type TxArgs struct {
	To    *common.Address `json:"to" validate:"required"`
	Value *big.Int        `json:"value"`
	Data  []byte          `json:"data"`
	Gas   uint64          `json:"gas"`
}

type ReceiptStatus string

const (
	ReceiptSuccess  ReceiptStatus = "SUCCESS"
	ReceiptReverted ReceiptStatus = "REVERTED"
)

type Receipt struct {
	TxHash      common.Hash   `json:"tx_hash" yaml:"tx_hash"`
	Status      ReceiptStatus `json:"status" yaml:"status"`
	BlockNumber uint64        `json:"block_number" yaml:"block_number"`
	BlockHash   common.Hash   `json:"block_hash" yaml:"block_hash"`
	GasUsed     uint64        `json:"gas_used" yaml:"gas_used"`
}

func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptSuccess
}

func receiptFromEvm(rec *etypes.Receipt) *Receipt {
	status := ReceiptReverted
	if rec.Status == etypes.ReceiptStatusSuccessful {
		status = ReceiptSuccess
	}
	var height uint64
	if rec.BlockNumber != nil {
		height = rec.BlockNumber.Uint64()
	}
	return &Receipt{
		TxHash:      rec.TxHash,
		Status:      status,
		BlockNumber: height,
		BlockHash:   rec.BlockHash,
		GasUsed:     rec.GasUsed,
	}
}
