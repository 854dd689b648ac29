package id

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/agentkit/internal/errors"
)

// Chain is an EVM network known to the plugins.
type Chain struct {
	Name         string
	Slug         string
	EVMChainID   int64
	NativeSymbol string
	// AnkrSlug is the blockchain name used by the Ankr advanced API; empty when unsupported.
	AnkrSlug string
	Testnet  bool
}

var chains = []Chain{
	{Name: "Ethereum", Slug: "ethereum", EVMChainID: 1, NativeSymbol: "ETH", AnkrSlug: "eth"},
	{Name: "Optimism", Slug: "optimism", EVMChainID: 10, NativeSymbol: "ETH", AnkrSlug: "optimism"},
	{Name: "BSC", Slug: "bsc", EVMChainID: 56, NativeSymbol: "BNB", AnkrSlug: "bsc"},
	{Name: "Polygon", Slug: "polygon", EVMChainID: 137, NativeSymbol: "POL", AnkrSlug: "polygon"},
	{Name: "Fantom", Slug: "fantom", EVMChainID: 250, NativeSymbol: "FTM", AnkrSlug: "fantom"},
	{Name: "Form", Slug: "form", EVMChainID: 478, NativeSymbol: "ETH"},
	{Name: "Base", Slug: "base", EVMChainID: 8453, NativeSymbol: "ETH", AnkrSlug: "base"},
	{Name: "Arbitrum", Slug: "arbitrum", EVMChainID: 42161, NativeSymbol: "ETH", AnkrSlug: "arbitrum"},
	{Name: "Avalanche", Slug: "avalanche", EVMChainID: 43114, NativeSymbol: "AVAX", AnkrSlug: "avalanche"},
	{Name: "Linea", Slug: "linea", EVMChainID: 59144, NativeSymbol: "ETH", AnkrSlug: "linea"},
	{Name: "Base Sepolia", Slug: "base-sepolia", EVMChainID: 84532, NativeSymbol: "ETH", AnkrSlug: "base_sepolia", Testnet: true},
	{Name: "Form Testnet", Slug: "form-testnet", EVMChainID: 132902, NativeSymbol: "ETH", Testnet: true},
	{Name: "Sepolia", Slug: "sepolia", EVMChainID: 11155111, NativeSymbol: "ETH", AnkrSlug: "eth_sepolia", Testnet: true},
}

var aliases = map[string]string{
	"mainnet":      "ethereum",
	"eth":          "ethereum",
	"matic":        "polygon",
	"arb":          "arbitrum",
	"op":           "optimism",
	"avax":         "avalanche",
	"formtestnet":  "form-testnet",
	"form_testnet": "form-testnet",
	"eth_sepolia":  "sepolia",
	"base_sepolia": "base-sepolia",
}

var (
	chainBySlug = func() map[string]Chain {
		out := make(map[string]Chain, len(chains))
		for _, c := range chains {
			out[c.Slug] = c
		}
		return out
	}()
	chainByID = func() map[int64]Chain {
		out := make(map[int64]Chain, len(chains))
		for _, c := range chains {
			out[c.EVMChainID] = c
		}
		return out
	}()
)

func (c Chain) CAIP2() string {
	return fmt.Sprintf("eip155:%d", c.EVMChainID)
}

// ParseChain accepts a slug, alias, numeric chain id or eip155 CAIP-2 id.
func ParseChain(input string) (Chain, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Chain{}, clierr.Validation("chain is required")
	}
	norm := strings.ToLower(raw)
	if alias, ok := aliases[norm]; ok {
		norm = alias
	}
	if chain, ok := chainBySlug[norm]; ok {
		return chain, nil
	}

	numeric := strings.TrimPrefix(norm, "eip155:")
	if n, err := strconv.ParseInt(numeric, 10, 64); err == nil && n > 0 {
		if chain, ok := chainByID[n]; ok {
			return chain, nil
		}
		return Chain{Name: fmt.Sprintf("EVM-%d", n), Slug: fmt.Sprintf("evm-%d", n), EVMChainID: n, NativeSymbol: "ETH"}, nil
	}

	return Chain{}, clierr.Validation(fmt.Sprintf("unsupported chain: %s (known: %s)", input, strings.Join(ChainSlugs(), ", ")))
}

func ChainByID(chainID int64) (Chain, bool) {
	c, ok := chainByID[chainID]
	return c, ok
}

func ChainSlugs() []string {
	out := make([]string, 0, len(chains))
	for _, c := range chains {
		out = append(out, c.Slug)
	}
	sort.Strings(out)
	return out
}
