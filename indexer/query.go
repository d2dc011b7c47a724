package indexer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vultisig/transfer-tracker/types"
)

const transferByPacketHashQuery = `query TransferByPacketHash($packet_hash: String!) {
  v2_transfers(args: { p_packet_hash: $packet_hash }) {
    sender_canonical
    source_chain {
      universal_chain_id
    }
    transfer_send_transaction_hash
    receiver_canonical
    destination_chain {
      universal_chain_id
    }
    transfer_send_timestamp
    transfer_recv_timestamp
    base_token
    base_amount
    quote_amount
    quote_token
    success
    traces {
      type
      height
      block_hash
      timestamp
      transaction_hash
      chain {
        universal_chain_id
      }
    }
  }
}`

type graphqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type transferResponse struct {
	Data *struct {
		V2Transfers []wireTransfer `json:"v2_transfers"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type wireChain struct {
	UniversalChainID string `json:"universal_chain_id"`
}

type wireTrace struct {
	Type            string     `json:"type"`
	Height          wireHeight `json:"height"`
	BlockHash       *string    `json:"block_hash"`
	Timestamp       wireTime   `json:"timestamp"`
	TransactionHash *string    `json:"transaction_hash"`
	Chain           *wireChain `json:"chain"`
}

type wireTransfer struct {
	SenderCanonical             string          `json:"sender_canonical"`
	SourceChain                 *wireChain      `json:"source_chain"`
	TransferSendTransactionHash string          `json:"transfer_send_transaction_hash"`
	ReceiverCanonical           string          `json:"receiver_canonical"`
	DestinationChain            *wireChain      `json:"destination_chain"`
	TransferSendTimestamp       wireTime        `json:"transfer_send_timestamp"`
	TransferRecvTimestamp       wireTime        `json:"transfer_recv_timestamp"`
	BaseToken                   string          `json:"base_token"`
	BaseAmount                  decimal.Decimal `json:"base_amount"`
	QuoteAmount                 decimal.Decimal `json:"quote_amount"`
	QuoteToken                  string          `json:"quote_token"`
	Success                     *bool           `json:"success"`
	Traces                      []wireTrace     `json:"traces"`
}

// Hasura renders timestamptz with an offset and timestamp without one.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

type wireTime struct {
	types.Option[time.Time]
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		t.Option = types.None[time.Time]()
		return nil
	}
	var s string
	err := json.Unmarshal(b, &s)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Option = types.None[time.Time]()
		return nil
	}
	for _, layout := range timeLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			t.Option = types.Some(ts.UTC())
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", s)
}

// wireHeight accepts both a json number and a quoted bigint.
type wireHeight struct {
	types.Option[uint64]
}

func (h *wireHeight) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "null" || s == "" {
		h.Option = types.None[uint64]()
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("height: %w", err)
	}
	h.Option = types.Some(v)
	return nil
}

func (c *wireChain) toChainRef() types.ChainRef {
	if c == nil {
		return types.ChainRef{}
	}
	return types.ChainRef{UniversalChainID: c.UniversalChainID}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (w wireTransfer) toRecord() types.TransferRecord {
	traces := make([]types.TraceEvent, 0, len(w.Traces))
	for _, tr := range w.Traces {
		traces = append(traces, types.TraceEvent{
			Type:            tr.Type,
			Height:          tr.Height.Option,
			BlockHash:       deref(tr.BlockHash),
			Timestamp:       tr.Timestamp.Option,
			TransactionHash: deref(tr.TransactionHash),
			Chain:           tr.Chain.toChainRef(),
		})
	}
	return types.TransferRecord{
		SenderCanonical:             w.SenderCanonical,
		ReceiverCanonical:           w.ReceiverCanonical,
		SourceChain:                 w.SourceChain.toChainRef(),
		DestinationChain:            w.DestinationChain.toChainRef(),
		TransferSendTransactionHash: w.TransferSendTransactionHash,
		TransferSendTimestamp:       w.TransferSendTimestamp.Option,
		TransferRecvTimestamp:       w.TransferRecvTimestamp.Option,
		BaseToken:                   w.BaseToken,
		BaseAmount:                  w.BaseAmount,
		QuoteToken:                  w.QuoteToken,
		QuoteAmount:                 w.QuoteAmount,
		Success:                     types.FromPtr(w.Success),
		Traces:                      traces,
	}
}

func decodeTransfers(body []byte) ([]types.TransferRecord, error) {
	var resp transferResponse
	err := json.Unmarshal(body, &resp)
	if err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("graphql: response has no data")
	}

	out := make([]types.TransferRecord, 0, len(resp.Data.V2Transfers))
	for _, w := range resp.Data.V2Transfers {
		out = append(out, w.toRecord())
	}
	return out, nil
}
