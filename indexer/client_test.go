package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/transfer-tracker/config"
	"github.com/vultisig/transfer-tracker/types"
)

const packetHash = "0x5c3a1e0b8fd5c1ae3bd4a46ecd36c4e0f4f0bb8c4a8f40f6ac0ef9d5e4c6a4b1"

const settledTransfer = `{
  "data": {
    "v2_transfers": [
      {
        "sender_canonical": "0xeBec795c9c8bBD61FFc14A6662944748F299cAcf",
        "source_chain": {"universal_chain_id": "ethereum.11155111"},
        "transfer_send_transaction_hash": "0x87a75af70c563b78598434d65dfdeca7eabd98f5f75a68281216ea40ff15648a",
        "receiver_canonical": "0x95222290DD7278Aa3Ddd389Cc1E1d165CC4BAfe5",
        "destination_chain": {"universal_chain_id": "base.84532"},
        "transfer_send_timestamp": "2025-03-10T12:00:00+00:00",
        "transfer_recv_timestamp": null,
        "base_token": "0x7b79995e5f793a07bc00c21412e50ecae098e7f9",
        "base_amount": "1000000000000000000",
        "quote_amount": "1000000000000000000",
        "quote_token": "0x4200000000000000000000000000000000000006",
        "success": true,
        "traces": [
          {
            "type": "PACKET_SEND",
            "height": 7890123,
            "block_hash": "0xb1",
            "timestamp": "2025-03-10T12:00:00.123456",
            "transaction_hash": "0x87a7",
            "chain": {"universal_chain_id": "ethereum.11155111"}
          },
          {
            "type": "PACKET_RECV",
            "height": null,
            "block_hash": null,
            "timestamp": null,
            "transaction_hash": null,
            "chain": {"universal_chain_id": "base.84532"}
          }
        ]
      },
      {
        "sender_canonical": "second",
        "source_chain": {"universal_chain_id": "ethereum.11155111"},
        "destination_chain": {"universal_chain_id": "base.84532"},
        "traces": []
      }
    ]
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(logrus.New(), config.IndexerConfig{
		URL:             srv.URL,
		RequestTimeout:  time.Second,
		MaxRetries:      0,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	})
}

func TestClient_TransferByPacketHash(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req graphqlRequest
		require.NoError(t, json.Unmarshal(b, &req))
		require.Equal(t, "TransferByPacketHash", req.OperationName)
		require.Equal(t, packetHash, req.Variables["packet_hash"])
		require.Contains(t, req.Query, "v2_transfers(args: { p_packet_hash: $packet_hash })")

		_, _ = w.Write([]byte(settledTransfer))
	})

	records, err := c.TransferByPacketHash(context.Background(), packetHash)
	require.NoError(t, err)
	require.Len(t, records, 2)

	rec := records[0]
	assert.Equal(t, "0xeBec795c9c8bBD61FFc14A6662944748F299cAcf", rec.SenderCanonical)
	assert.Equal(t, "ethereum.11155111", rec.SourceChain.UniversalChainID)
	assert.Equal(t, "base.84532", rec.DestinationChain.UniversalChainID)
	assert.True(t, rec.Succeeded())
	assert.True(t, rec.TransferRecvTimestamp.IsNone())
	assert.True(t, decimal.RequireFromString("1000000000000000000").Equal(rec.BaseAmount))

	sent, ok := rec.TransferSendTimestamp.Get()
	require.True(t, ok)
	assert.True(t, sent.Equal(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)))

	require.Len(t, rec.Traces, 2)
	assert.Equal(t, "PACKET_SEND", rec.Traces[0].Type)
	assert.Equal(t, types.Some[uint64](7890123), rec.Traces[0].Height)
	assert.True(t, rec.Traces[0].Observed())
	ts, ok := rec.Traces[0].Timestamp.Get()
	require.True(t, ok)
	assert.Equal(t, 123456000, ts.Nanosecond())

	assert.Equal(t, "PACKET_RECV", rec.Traces[1].Type)
	assert.False(t, rec.Traces[1].Observed())
	assert.Equal(t, "base.84532", rec.Traces[1].Chain.UniversalChainID)

	assert.Equal(t, "second", records[1].SenderCanonical)
	assert.True(t, records[1].Success.IsNone())
}

func TestClient_TransferByPacketHash_empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"v2_transfers":[]}}`))
	})

	records, err := c.TransferByPacketHash(context.Background(), packetHash)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestClient_TransferByPacketHash_stringHeight(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"v2_transfers":[{"success":false,"traces":[{"type":"PACKET_SEND","height":"18446744073709551615"}]}]}}`))
	})

	records, err := c.TransferByPacketHash(context.Background(), packetHash)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Failed())
	assert.Equal(t, types.Some[uint64](18446744073709551615), records[0].Traces[0].Height)
}

func TestClient_TransferByPacketHash_graphqlErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"field 'v2_transfers' not found in type: 'query_root'"}]}`))
	})

	_, err := c.TransferByPacketHash(context.Background(), packetHash)
	require.Error(t, err)

	var te *types.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, types.TagTransport, types.TagOf(err))
	assert.Contains(t, err.Error(), "v2_transfers")
}

func TestClient_TransferByPacketHash_badStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`bad request`))
	})

	_, err := c.TransferByPacketHash(context.Background(), packetHash)
	require.Error(t, err)
	assert.Equal(t, types.TagTransport, types.TagOf(err))
	assert.Contains(t, err.Error(), "400")
}

func TestClient_TransferByPacketHash_malformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"v2_transfers":[{"transfer_send_timestamp":"yesterday"}]}}`))
	})

	_, err := c.TransferByPacketHash(context.Background(), packetHash)
	require.Error(t, err)
	assert.Equal(t, types.TagTransport, types.TagOf(err))
}

func TestClient_TransferByPacketHash_breakerOpens(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		_, err := c.TransferByPacketHash(context.Background(), packetHash)
		require.Error(t, err)
	}

	_, err := c.TransferByPacketHash(context.Background(), packetHash)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, types.TagTransport, types.TagOf(err))
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_TransferByPacketHash_cancelledCallsKeepBreakerClosed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"v2_transfers":[]}}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := c.TransferByPacketHash(ctx, packetHash)
		require.ErrorIs(t, err, context.Canceled)
	}

	records, err := c.TransferByPacketHash(context.Background(), packetHash)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}
