package registry

import (
	"fmt"
	"strings"
)

// Default EVM RPC endpoints by chain ID, used when no provider URL is configured.
var defaultRPCByChainID = map[int64]string{
	1:        "https://eth.llamarpc.com",
	10:       "https://mainnet.optimism.io",
	56:       "https://bsc-dataseed.binance.org",
	137:      "https://polygon-rpc.com",
	250:      "https://rpc.ftm.tools",
	478:      "https://rpc.form.network/http",
	8453:     "https://mainnet.base.org",
	42161:    "https://arb1.arbitrum.io/rpc",
	43114:    "https://api.avax.network/ext/bc/C/rpc",
	59144:    "https://rpc.linea.build",
	84532:    "https://sepolia.base.org",
	132902:   "https://sepolia-rpc.form.network/http",
	11155111: "https://rpc.sepolia.org",
}

var explorerByChainID = map[int64]string{
	1:        "https://etherscan.io",
	10:       "https://optimistic.etherscan.io",
	56:       "https://bscscan.com",
	137:      "https://polygonscan.com",
	478:      "https://explorer.form.network",
	8453:     "https://basescan.org",
	42161:    "https://arbiscan.io",
	43114:    "https://snowtrace.io",
	84532:    "https://sepolia.basescan.org",
	132902:   "https://sepolia-explorer.form.network",
	11155111: "https://sepolia.etherscan.io",
}

func DefaultRPCURL(chainID int64) (string, bool) {
	value, ok := defaultRPCByChainID[chainID]
	return value, ok
}

func ResolveRPCURL(override string, chainID int64) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	if value, ok := DefaultRPCURL(chainID); ok {
		return value, nil
	}
	return "", fmt.Errorf("no default rpc configured for chain id %d; set a provider url", chainID)
}

// TxURL links a transaction hash to the chain's block explorer, or returns "" when unknown.
func TxURL(chainID int64, txHash string) string {
	base, ok := explorerByChainID[chainID]
	if !ok || strings.TrimSpace(txHash) == "" {
		return ""
	}
	return base + "/tx/" + txHash
}
