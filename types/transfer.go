package types

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ChainRef points at a chain by its universal id, e.g. "ethereum.11155111".
// Resolving it into chain metadata is left to the consumer.
type ChainRef struct {
	UniversalChainID string `json:"universal_chain_id" yaml:"universal_chain_id"`
}

// TraceEvent is one relay hop of a packet as reported by the indexer.
// Hops the indexer has not observed yet carry no height, hash or timestamp.
type TraceEvent struct {
	Type            string            `json:"type" yaml:"type"`
	Height          Option[uint64]    `json:"height" yaml:"height"`
	BlockHash       string            `json:"block_hash" yaml:"block_hash"`
	Timestamp       Option[time.Time] `json:"timestamp" yaml:"timestamp"`
	TransactionHash string            `json:"transaction_hash" yaml:"transaction_hash"`
	Chain           ChainRef          `json:"chain" yaml:"chain"`
}

func (e TraceEvent) Observed() bool {
	return e.TransactionHash != "" || e.Height.IsSome()
}

// TransferRecord is a snapshot of one transfer as known at poll time.
// Success stays None until the indexer has settled the transfer one way or the other.
type TransferRecord struct {
	SenderCanonical             string            `json:"sender_canonical" yaml:"sender_canonical"`
	ReceiverCanonical           string            `json:"receiver_canonical" yaml:"receiver_canonical"`
	SourceChain                 ChainRef          `json:"source_chain" yaml:"source_chain"`
	DestinationChain            ChainRef          `json:"destination_chain" yaml:"destination_chain"`
	TransferSendTransactionHash string            `json:"transfer_send_transaction_hash" yaml:"transfer_send_transaction_hash"`
	TransferSendTimestamp       Option[time.Time] `json:"transfer_send_timestamp" yaml:"transfer_send_timestamp"`
	TransferRecvTimestamp       Option[time.Time] `json:"transfer_recv_timestamp" yaml:"transfer_recv_timestamp"`
	BaseToken                   string            `json:"base_token" yaml:"base_token"`
	BaseAmount                  decimal.Decimal   `json:"base_amount" yaml:"base_amount"`
	QuoteToken                  string            `json:"quote_token" yaml:"quote_token"`
	QuoteAmount                 decimal.Decimal   `json:"quote_amount" yaml:"quote_amount"`
	Success                     Option[bool]      `json:"success" yaml:"success"`
	Traces                      []TraceEvent      `json:"traces" yaml:"traces"`
}

// Succeeded reports whether the indexer has marked the transfer successful.
func (r TransferRecord) Succeeded() bool {
	return r.Success.OrElse(false)
}

// Failed reports whether the indexer has marked the transfer as failed.
func (r TransferRecord) Failed() bool {
	v, ok := r.Success.Get()
	return ok && !v
}

func (r TransferRecord) Fields() logrus.Fields {
	return logrus.Fields{
		"sender":            r.SenderCanonical,
		"receiver":          r.ReceiverCanonical,
		"source_chain":      r.SourceChain.UniversalChainID,
		"destination_chain": r.DestinationChain.UniversalChainID,
		"send_tx_hash":      r.TransferSendTransactionHash,
		"send_ts":           r.TransferSendTimestamp.Ptr(),
		"recv_ts":           r.TransferRecvTimestamp.Ptr(),
		"success":           r.Success.Ptr(),
		"traces":            len(r.Traces),
	}
}
