package chain

import (
	"context"
	"fmt"

	"github.com/vultisig/transfer-tracker/config"
)

// Single place to build chain clients from config.
// Every configured chain is EVM: submission only exists for EVM wallets.

func Clients(ctx context.Context, chains []config.ChainConfig) (SupportedClients, error) {
	clients := make(SupportedClients, len(chains))
	for _, ch := range chains {
		evm, err := NewEvm(ctx, ch.RpcURL, ch.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("chain.NewEvm(%s): %w", ch.UniversalChainID, err)
		}

		client := Client{Public: evm}
		if ch.PrivateKey != "" {
			client.Wallet = evm
		}
		clients[ch.UniversalChainID] = client
	}
	return clients, nil
}
