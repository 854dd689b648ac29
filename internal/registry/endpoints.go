package registry

import (
	"sort"
	"strings"
)

const (
	AnkrMultichainURL = "https://rpc.ankr.com/multichain"
	HyperbolicBaseURL = "https://api.hyperbolic.xyz"
)

// AnkrBlockchains lists the blockchain names the Ankr advanced API accepts.
var AnkrBlockchains = []string{
	"arbitrum", "avalanche", "base", "bsc", "eth", "fantom", "flare", "gnosis", "linea",
	"optimism", "polygon", "polygon_zkevm", "rollux", "scroll", "syscoin", "telos", "xai",
	"xlayer", "avalanche_fuji", "base_sepolia", "eth_holesky", "eth_sepolia",
	"optimism_testnet", "polygon_amoy",
}

func IsAnkrBlockchain(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, v := range AnkrBlockchains {
		if v == name {
			return true
		}
	}
	return false
}

// CosmosChain describes a Cosmos SDK chain reachable over its REST (LCD) endpoint.
type CosmosChain struct {
	Name         string
	ChainID      string
	Bech32Prefix string
	Denom        string
	Symbol       string
	Exponent     int
	RESTURL      string
	// GasPrice is the fee per gas unit in Denom, as a decimal string.
	GasPrice string
	CoinType uint32
}

var cosmosChains = map[string]CosmosChain{
	"cosmoshub": {Name: "cosmoshub", ChainID: "cosmoshub-4", Bech32Prefix: "cosmos", Denom: "uatom", Symbol: "ATOM", Exponent: 6, RESTURL: "https://rest.cosmos.directory/cosmoshub", GasPrice: "0.025", CoinType: 118},
	"osmosis":   {Name: "osmosis", ChainID: "osmosis-1", Bech32Prefix: "osmo", Denom: "uosmo", Symbol: "OSMO", Exponent: 6, RESTURL: "https://rest.cosmos.directory/osmosis", GasPrice: "0.025", CoinType: 118},
	"celestia":  {Name: "celestia", ChainID: "celestia", Bech32Prefix: "celestia", Denom: "utia", Symbol: "TIA", Exponent: 6, RESTURL: "https://rest.cosmos.directory/celestia", GasPrice: "0.02", CoinType: 118},
	"axelar":    {Name: "axelar", ChainID: "axelar-dojo-1", Bech32Prefix: "axelar", Denom: "uaxl", Symbol: "AXL", Exponent: 6, RESTURL: "https://rest.cosmos.directory/axelar", GasPrice: "0.007", CoinType: 118},
}

func CosmosChainByName(name string) (CosmosChain, bool) {
	c, ok := cosmosChains[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

func CosmosChainByPrefix(prefix string) (CosmosChain, bool) {
	for _, c := range cosmosChains {
		if c.Bech32Prefix == prefix {
			return c, true
		}
	}
	return CosmosChain{}, false
}

func CosmosChainNames() []string {
	out := make([]string, 0, len(cosmosChains))
	for name := range cosmosChains {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
