package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vultisig/transfer-tracker/tracker"
	"github.com/vultisig/transfer-tracker/types"
)

func testView() tracker.View {
	return tracker.Snapshot{
		PacketHash: "0x01",
		Version:    4,
		Data: types.Some(types.TransferRecord{
			SourceChain:      types.ChainRef{UniversalChainID: "ethereum.11155111"},
			DestinationChain: types.ChainRef{UniversalChainID: "base.84532"},
			Traces: []types.TraceEvent{
				{Type: "PACKET_SEND", TransactionHash: "0xaa"},
				{Type: "PACKET_RECV"},
			},
		}),
		Err: types.NewTransportError(assert.AnError),
	}.View()
}

func TestPrinter_text(t *testing.T) {
	var buf bytes.Buffer
	p, err := newPrinter(&buf, formatText)
	require.NoError(t, err)

	require.NoError(t, p.Print(testView()))
	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "0x01 v4 state=POLLING_WITH_DATA outcome=PENDING"))
	assert.Contains(t, line, "ethereum.11155111->base.84532 traces=1/2")
	assert.Contains(t, line, "error=TransportError(")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestPrinter_json(t *testing.T) {
	var buf bytes.Buffer
	p, err := newPrinter(&buf, formatJSON)
	require.NoError(t, err)

	require.NoError(t, p.Print(testView()))
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "0x01", got["packet_hash"])
	assert.Equal(t, "PENDING", got["outcome"])
}

func TestPrinter_yaml(t *testing.T) {
	var buf bytes.Buffer
	p, err := newPrinter(&buf, formatYAML)
	require.NoError(t, err)

	require.NoError(t, p.Print(testView()))
	require.True(t, strings.HasPrefix(buf.String(), "---\n"))

	var got map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "0x01", got["packet_hash"])
	assert.Equal(t, "POLLING_WITH_DATA", got["state"])

	data, ok := got["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Nil(t, data["success"])
	assert.Equal(t, "0", data["base_amount"])
}

func TestNewPrinter_invalidFormat(t *testing.T) {
	_, err := newPrinter(&bytes.Buffer{}, "xml")
	require.Error(t, err)
}
