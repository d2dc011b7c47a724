package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestParseTxArgs(t *testing.T) {
	args, err := ParseTxArgs("0xeBec795c9c8bBD61FFc14A6662944748F299cAcf", "1000000000000000", "0xa9059cbb", 0)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xeBec795c9c8bBD61FFc14A6662944748F299cAcf"), *args.To)
	require.Zero(t, big.NewInt(1000000000000000).Cmp(args.Value))
	require.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, args.Data)
	require.Zero(t, args.Gas)

	args, err = ParseTxArgs("0xeBec795c9c8bBD61FFc14A6662944748F299cAcf", "", "", 21000)
	require.NoError(t, err)
	require.Nil(t, args.Value)
	require.Nil(t, args.Data)
	require.Equal(t, uint64(21000), args.Gas)
}

func TestParseTxArgs_invalid(t *testing.T) {
	tests := []struct {
		name, to, value, data string
	}{
		{"bad address", "0x123", "", ""},
		{"negative value", "0xeBec795c9c8bBD61FFc14A6662944748F299cAcf", "-1", ""},
		{"hex value", "0xeBec795c9c8bBD61FFc14A6662944748F299cAcf", "0x10", ""},
		{"bad data", "0xeBec795c9c8bBD61FFc14A6662944748F299cAcf", "", "a9059cbb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTxArgs(tt.to, tt.value, tt.data, 0)
			require.Error(t, err)
		})
	}
}
