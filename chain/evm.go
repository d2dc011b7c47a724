package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultReceiptPoll = 2 * time.Second
)

// EvmBackend is the subset of ethclient.Client used here.
type EvmBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*etypes.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *etypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*etypes.Receipt, error)
}

type Evm struct {
	client      EvmBackend
	chainID     *big.Int
	key         *ecdsa.PrivateKey
	from        common.Address
	receiptPoll time.Duration
}

func NewEvm(c context.Context, rpcURL, hexKey string) (*Evm, error) {
	ctx, cancel := context.WithTimeout(c, defaultTimeout)
	defer cancel()

	cl, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("ethclient.DialContext: %w", err)
	}

	return NewEvmFromBackend(ctx, cl, hexKey)
}

// NewEvmFromBackend builds an Evm over an already connected backend.
// hexKey may be empty for a read-only client.
func NewEvmFromBackend(ctx context.Context, backend EvmBackend, hexKey string) (*Evm, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("backend.ChainID: %w", err)
	}

	e := &Evm{
		client:      backend,
		chainID:     chainID,
		receiptPoll: defaultReceiptPoll,
	}
	if hexKey == "" {
		return e, nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto.HexToECDSA: %w", err)
	}
	e.key = key
	e.from = crypto.PubkeyToAddress(key.PublicKey)
	return e, nil
}

func (e *Evm) From() common.Address {
	return e.from
}

func (e *Evm) SendTransaction(ct context.Context, args TxArgs) (common.Hash, error) {
	if e.key == nil {
		return common.Hash{}, ErrNoSigner
	}

	ctx, cancel := context.WithTimeout(ct, defaultTimeout)
	defer cancel()

	nonce, err := e.client.PendingNonceAt(ctx, e.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("e.client.PendingNonceAt: %w", err)
	}

	value := args.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gas := args.Gas
	if gas == 0 {
		gas, err = e.client.EstimateGas(ctx, ethereum.CallMsg{
			From:  e.from,
			To:    args.To,
			Value: value,
			Data:  args.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("e.client.EstimateGas: %w", err)
		}
	}

	tx, err := e.buildTx(ctx, nonce, gas, value, args)
	if err != nil {
		return common.Hash{}, err
	}

	signed, err := etypes.SignTx(tx, etypes.LatestSignerForChainID(e.chainID), e.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("etypes.SignTx: %w", err)
	}

	err = e.client.SendTransaction(ctx, signed)
	if err != nil {
		return common.Hash{}, fmt.Errorf("e.client.SendTransaction: %w", err)
	}
	return signed.Hash(), nil
}

// buildTx prefers a dynamic fee transaction and falls back to legacy pricing
// on chains whose head has no base fee.
func (e *Evm) buildTx(ctx context.Context, nonce, gas uint64, value *big.Int, args TxArgs) (*etypes.Transaction, error) {
	head, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("e.client.HeaderByNumber: %w", err)
	}

	if head.BaseFee == nil {
		gasPrice, er := e.client.SuggestGasPrice(ctx)
		if er != nil {
			return nil, fmt.Errorf("e.client.SuggestGasPrice: %w", er)
		}
		return etypes.NewTx(&etypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       args.To,
			Value:    value,
			Data:     args.Data,
		}), nil
	}

	tip, err := e.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("e.client.SuggestGasTipCap: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	return etypes.NewTx(&etypes.DynamicFeeTx{
		ChainID:   e.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        args.To,
		Value:     value,
		Data:      args.Data,
	}), nil
}

func (e *Evm) WaitMined(ctx context.Context, hash common.Hash) (*Receipt, error) {
	ticker := time.NewTicker(e.receiptPoll)
	defer ticker.Stop()

	for {
		rec, err := e.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receiptFromEvm(rec), nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("e.client.TransactionReceipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
