package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseTxArgs builds TxArgs from raw flag values. value is in wei, base 10;
// data is 0x-prefixed hex. Empty value and data are allowed.
func ParseTxArgs(to, value, data string, gas uint64) (TxArgs, error) {
	if !common.IsHexAddress(to) {
		return TxArgs{}, fmt.Errorf("invalid to address: %q", to)
	}
	addr := common.HexToAddress(to)

	args := TxArgs{To: &addr, Gas: gas}
	if value != "" {
		v, ok := new(big.Int).SetString(value, 10)
		if !ok || v.Sign() < 0 {
			return TxArgs{}, fmt.Errorf("invalid value: %q is not a non-negative base-10 integer", value)
		}
		args.Value = v
	}
	if data != "" {
		b, err := hexutil.Decode(data)
		if err != nil {
			return TxArgs{}, fmt.Errorf("hexutil.Decode: %w", err)
		}
		args.Data = b
	}
	return args, nil
}
