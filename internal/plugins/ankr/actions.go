// Package ankr exposes read-only chain data actions backed by the Ankr advanced API.
package ankr

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ggonzalez94/agentkit/internal/action"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/id"
	"github.com/ggonzalez94/agentkit/internal/registry"
)

const (
	SettingWallet   = "ANKR_WALLET"
	SettingEndpoint = "ANKR_ENDPOINT"

	cacheTTL        = time.Minute
	defaultPageSize = 10
	maxPageSize     = 100
	maxBlockRange   = 100
)

var (
	addressPattern = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
	hashPattern    = regexp.MustCompile(`\b0x[a-fA-F0-9]{64}\b`)
	chainPattern   = buildChainPattern()
	limitPattern   = regexp.MustCompile(`(?i)\b(?:limit|top|first|last|show)\s+(\d+)\b`)
	tokenIDPattern = regexp.MustCompile(`(?i)\btoken\s*(?:id)?\s*#?\s*(\d+)\b`)
	fromPattern    = regexp.MustCompile(`(?i)\bfrom\s+block\s+(\d+)\b`)
	toPattern      = regexp.MustCompile(`(?i)\bto\s+block\s+(\d+)\b`)
)

func buildChainPattern() *regexp.Regexp {
	names := append([]string{}, registry.AnkrBlockchains...)
	names = append(names, "ethereum", "arbitrum", "avax", "matic")
	for i, n := range names {
		names[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)\b`)
}

var (
	chainParam    = action.Param{Name: "chain", Description: "Ankr blockchain name, e.g. eth or base", Required: true, Pattern: chainPattern}
	optChainParam = action.Param{Name: "chain", Description: "Ankr blockchain name; omit for all chains", Pattern: chainPattern}
	walletParam   = action.Param{Name: "wallet", Description: "Wallet address", Required: true, Pattern: addressPattern}
	contractParam = action.Param{Name: "contract", Description: "Token or NFT contract address", Required: true, Pattern: addressPattern}
	limitParam    = action.Param{Name: "limit", Description: "Maximum number of rows", Pattern: limitPattern, Default: defaultPageSize}
)

// Plugin returns the Ankr plugin with every action registered.
func Plugin() action.Plugin {
	return action.Plugin{
		Name:            "ankr",
		Description:     "Multichain balances, prices, holders, transfers, NFTs and raw chain data via Ankr",
		SettingPrefixes: []string{"ANKR_"},
		Actions: []*action.Action{
			balanceAction(),
			tokenPriceAction(),
			tokenHoldersAction(),
			tokenHolderCountAction(),
			tokenTransfersAction(),
			transactionsByAddressAction(),
			transactionByHashAction(),
			nftsByOwnerAction(),
			nftMetadataAction(),
			nftHoldersAction(),
			blockchainStatsAction(),
			currenciesAction(),
			interactionsAction(),
			blocksAction(),
			logsAction(),
		},
	}
}

type queryFunc func(ctx context.Context, c *Client, v query) (string, any, error)

// query holds the union of fields Ankr actions read.
type query struct {
	Chain     string `mapstructure:"chain"`
	Wallet    string `mapstructure:"wallet"`
	Contract  string `mapstructure:"contract"`
	Token     string `mapstructure:"token"`
	TxHash    string `mapstructure:"txhash"`
	FromBlock int64  `mapstructure:"fromblock"`
	ToBlock   int64  `mapstructure:"toblock"`
	Limit     int    `mapstructure:"limit"`
}

func newReadAction(name, description string, similes []string, example [2]string, params []action.Param, run queryFunc) *action.Action {
	b := action.New(name).
		Similes(similes...).
		Description(description).
		Example(example[0], example[1]).
		ReadOnly(cacheTTL).
		Validate(validateWallet)
	for _, p := range params {
		b.Param(p)
	}
	return b.Handler(func(ctx context.Context, rt action.Runtime, msg action.Message, _ action.State, opts action.Options, cb action.Callback) error {
		var q query
		if err := action.Bind(params, msg, opts, &q); err != nil {
			return err
		}
		if err := normalizeQuery(&q); err != nil {
			return err
		}
		rt.Logger().Debug("querying ankr", "action", name, "chain", q.Chain)
		text, data, err := run(ctx, clientFor(rt), q)
		if err != nil {
			return err
		}
		return cb(action.Content{Text: text, Success: true, Data: data})
	}).Build()
}

func validateWallet(_ context.Context, rt action.Runtime, _ action.Message) error {
	if rt.Setting(SettingWallet) == "" {
		return clierr.Configuration(SettingWallet + " is not set")
	}
	return nil
}

func clientFor(rt action.Runtime) *Client {
	if endpoint := rt.Setting(SettingEndpoint); endpoint != "" {
		return NewClientWithEndpoint(rt.HTTPClient(), endpoint)
	}
	return NewClient(rt.HTTPClient(), rt.Setting(SettingWallet))
}

func normalizeQuery(q *query) error {
	if q.Chain != "" {
		chain, err := NormalizeChain(q.Chain)
		if err != nil {
			return err
		}
		q.Chain = chain
	}
	for _, addr := range []*string{&q.Wallet, &q.Contract} {
		if *addr != "" && !addressPattern.MatchString(*addr) {
			return clierr.Validation(fmt.Sprintf("invalid address %q", *addr))
		}
	}
	if q.TxHash != "" && !hashPattern.MatchString(q.TxHash) {
		return clierr.Validation(fmt.Sprintf("invalid transaction hash %q", q.TxHash))
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	return nil
}

// NormalizeChain maps chain names and aliases onto Ankr blockchain names.
func NormalizeChain(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if registry.IsAnkrBlockchain(name) {
		return name, nil
	}
	chain, err := id.ParseChain(name)
	if err == nil && chain.AnkrSlug != "" {
		return chain.AnkrSlug, nil
	}
	return "", clierr.Validation(fmt.Sprintf("unsupported chain %q for ankr", raw))
}

func balanceAction() *action.Action {
	return newReadAction("GET_BALANCE_ANKR",
		"Fetch the token balances of a wallet across one or all supported chains",
		[]string{"CHECK_BALANCE_ANKR", "WALLET_BALANCE_ANKR"},
		[2]string{"Show balances for [wallet]0x1111111111111111111111111111111111111111[/wallet] [chain]eth[/chain]", "Balances for 0x1111...1111: ..."},
		[]action.Param{walletParam, optChainParam},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			var chains []string
			if q.Chain != "" {
				chains = []string{q.Chain}
			}
			res, err := c.GetAccountBalance(ctx, q.Wallet, chains)
			if err != nil {
				return "", nil, err
			}
			return formatBalance(q.Wallet, res), res, nil
		})
}

func tokenPriceAction() *action.Action {
	return newReadAction("GET_TOKEN_PRICE_ANKR",
		"Get the USD price of a token, or of the chain's native coin when no contract is given",
		[]string{"TOKEN_PRICE_ANKR", "PRICE_CHECK_ANKR"},
		[2]string{"Price of [contract]0x8290333ceF9e6D528dD5618Fb97a76f268f3EDD4[/contract] on [chain]eth[/chain]", "Token price on eth: $0.02"},
		[]action.Param{chainParam, {Name: "contract", Description: "Token contract; omit for the native coin", Pattern: addressPattern}},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			res, err := c.GetTokenPrice(ctx, q.Chain, q.Contract)
			if err != nil {
				return "", nil, err
			}
			subject := "native coin"
			if q.Contract != "" {
				subject = q.Contract
			}
			return fmt.Sprintf("Price of %s on %s: $%s", subject, q.Chain, formatUSD(res.USDPrice)), res, nil
		})
}

func tokenHoldersAction() *action.Action {
	return newReadAction("GET_TOKEN_HOLDERS_ANKR",
		"List the largest holders of a token",
		[]string{"TOKEN_HOLDERS_ANKR", "TOP_HOLDERS_ANKR"},
		[2]string{"Top 5 holders of [contract]0xdAC17F958D2ee523a2206206994597C13D831ec7[/contract] [chain]eth[/chain]", "Holders of 0xdAC1...1ec7 on eth: ..."},
		[]action.Param{chainParam, contractParam, limitParam},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			res, err := c.GetTokenHolders(ctx, q.Chain, q.Contract, q.Limit)
			if err != nil {
				return "", nil, err
			}
			return formatHolders(q, res), res, nil
		})
}

func tokenHolderCountAction() *action.Action {
	return newReadAction("GET_TOKEN_HOLDER_COUNT_ANKR",
		"Get the number of holders of a token and how it changed over time",
		[]string{"HOLDER_COUNT_ANKR", "TOKEN_HOLDER_COUNT_ANKR"},
		[2]string{"How many holders does [contract]0xdAC17F958D2ee523a2206206994597C13D831ec7[/contract] have on [chain]eth[/chain]?", "0xdAC1...1ec7 has 5,432,100 holders on eth"},
		[]action.Param{chainParam, contractParam, limitParam},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			res, err := c.GetTokenHoldersCount(ctx, q.Chain, q.Contract, q.Limit)
			if err != nil {
				return "", nil, err
			}
			return formatHolderCount(q, res), res, nil
		})
}

func tokenTransfersAction() *action.Action {
	return newReadAction("GET_TOKEN_TRANSFERS_ANKR",
		"List recent token transfers for an address",
		[]string{"TOKEN_TRANSFERS_ANKR", "TRANSFER_HISTORY_ANKR"},
		[2]string{"Recent transfers of [wallet]0x1111111111111111111111111111111111111111[/wallet] on [chain]eth[/chain]", "Token transfers on eth: ..."},
		[]action.Param{chainParam, {Name: "wallet", Description: "Address whose transfers to list", Pattern: addressPattern}, limitParam},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			res, err := c.GetTokenTransfers(ctx, q.Chain, q.Wallet, q.Limit)
			if err != nil {
				return "", nil, err
			}
			return formatTransfers(q, res), res, nil
		})
}

func transactionsByAddressAction() *action.Action {
	return newReadAction("GET_TRANSACTIONS_BY_ADDRESS_ANKR",
		"List the latest transactions sent from or to an address",
		[]string{"ADDRESS_TRANSACTIONS_ANKR", "TX_HISTORY_ANKR"},
		[2]string{"Last 5 transactions of [wallet]0x1111111111111111111111111111111111111111[/wallet] on [chain]base[/chain]", "Transactions on base: ..."},
		[]action.Param{chainParam, walletParam, limitParam},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			res, err := c.GetTransactionsByAddress(ctx, q.Chain, q.Wallet, q.Limit)
			if err != nil {
				return "", nil, err
			}
			return formatTransactions(fmt.Sprintf("Transactions of %s on %s", shortAddress(q.Wallet), q.Chain), res.Transactions), res, nil
		})
}

func transactionByHashAction() *action.Action {
	return newReadAction("GET_TRANSACTION_BY_HASH_ANKR",
		"Look up a transaction by hash",
		[]string{"TRANSACTION_DETAILS_ANKR", "LOOKUP_TX_ANKR"},
		[2]string{"Details of [txhash]0x5a4bf6970980a9381e6d6c78d96ab278035bbff58c383ffe96a0a2bbc7c02a4c[/txhash] on [chain]eth[/chain]", "Transaction 0x5a4b...2a4c: ..."},
		[]action.Param{optChainParam, {Name: "txhash", Description: "Transaction hash", Required: true, Pattern: hashPattern}},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			res, err := c.GetTransactionByHash(ctx, q.Chain, q.TxHash)
			if err != nil {
				return "", nil, err
			}
			if len(res.Transactions) == 0 {
				return "", nil, clierr.New(clierr.CodeUnavailable, "transaction "+q.TxHash+" not found")
			}
			return formatTransactions("Transaction "+shortHash(q.TxHash), res.Transactions), res.Transactions[0], nil
		})
}

func nftsByOwnerAction() *action.Action {
	return newReadAction("GET_NFTS_BY_OWNER_ANKR",
		"List the NFTs a wallet owns",
		[]string{"OWNED_NFTS_ANKR", "NFT_PORTFOLIO_ANKR"},
		[2]string{"NFTs owned by [wallet]0x1111111111111111111111111111111111111111[/wallet] on [chain]eth[/chain]", "NFTs of 0x1111...1111: ..."},
		[]action.Param{walletParam, optChainParam, limitParam},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			res, err := c.GetNFTsByOwner(ctx, q.Chain, q.Wallet, q.Limit)
			if err != nil {
				return "", nil, err
			}
			return formatNFTs(q, res), res, nil
		})
}

func nftMetadataAction() *action.Action {
	return newReadAction("GET_NFT_METADATA_ANKR",
		"Fetch metadata and traits of a single NFT",
		[]string{"NFT_METADATA_ANKR", "NFT_DETAILS_ANKR"},
		[2]string{"Metadata for [contract]0xBC4CA0EdA7647A8aB7C2061c2E118A18a936f13D[/contract] [token]1[/token] on [chain]eth[/chain]", "NFT #1 of BoredApeYachtClub: ..."},
		[]action.Param{chainParam, contractParam, {Name: "token", Description: "Token id", Required: true, Pattern: tokenIDPattern}},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			res, err := c.GetNFTMetadata(ctx, q.Chain, q.Contract, q.Token)
			if err != nil {
				return "", nil, err
			}
			return formatNFTMetadata(q, res), res, nil
		})
}

func nftHoldersAction() *action.Action {
	return newReadAction("GET_NFT_HOLDERS_ANKR",
		"List holders of an NFT collection",
		[]string{"NFT_HOLDERS_ANKR", "COLLECTION_HOLDERS_ANKR"},
		[2]string{"Holders of [contract]0xBC4CA0EdA7647A8aB7C2061c2E118A18a936f13D[/contract] on [chain]eth[/chain]", "NFT holders: ..."},
		[]action.Param{chainParam, contractParam, limitParam},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			res, err := c.GetNFTHolders(ctx, q.Chain, q.Contract, q.Limit)
			if err != nil {
				return "", nil, err
			}
			lines := []string{fmt.Sprintf("Holders of %s on %s (%d shown):", shortAddress(q.Contract), q.Chain, len(res.Holders))}
			for i, h := range res.Holders {
				lines = append(lines, fmt.Sprintf("%d. %s", i+1, h))
			}
			return strings.Join(lines, "\n"), res, nil
		})
}

func blockchainStatsAction() *action.Action {
	return newReadAction("GET_BLOCKCHAIN_STATS_ANKR",
		"Get transaction counts, latest block and native coin price of a chain",
		[]string{"CHAIN_STATS_ANKR", "BLOCKCHAIN_STATS_ANKR"},
		[2]string{"Stats for [chain]polygon[/chain]", "polygon: latest block ..."},
		[]action.Param{optChainParam},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			res, err := c.GetBlockchainStats(ctx, q.Chain)
			if err != nil {
				return "", nil, err
			}
			return formatStats(res), res, nil
		})
}

func currenciesAction() *action.Action {
	return newReadAction("GET_CURRENCIES_ANKR",
		"List the currencies Ankr tracks on a chain",
		[]string{"LIST_CURRENCIES_ANKR", "CHAIN_CURRENCIES_ANKR"},
		[2]string{"Which currencies are on [chain]eth[/chain]?", "Currencies on eth: ..."},
		[]action.Param{chainParam, limitParam},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			res, err := c.GetCurrencies(ctx, q.Chain)
			if err != nil {
				return "", nil, err
			}
			return formatCurrencies(q, res), res, nil
		})
}

func interactionsAction() *action.Action {
	return newReadAction("GET_INTERACTIONS_ANKR",
		"List the chains an address has interacted with",
		[]string{"WALLET_INTERACTIONS_ANKR", "ACTIVE_CHAINS_ANKR"},
		[2]string{"Which chains has [wallet]0x1111111111111111111111111111111111111111[/wallet] used?", "0x1111...1111 interacted with: eth, base"},
		[]action.Param{walletParam},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			res, err := c.GetInteractions(ctx, q.Wallet)
			if err != nil {
				return "", nil, err
			}
			if len(res.Blockchains) == 0 {
				return fmt.Sprintf("%s has no recorded interactions", shortAddress(q.Wallet)), res, nil
			}
			return fmt.Sprintf("%s interacted with: %s", shortAddress(q.Wallet), strings.Join(res.Blockchains, ", ")), res, nil
		})
}

func blocksAction() *action.Action {
	return newReadAction("GET_BLOCKS_ANKR",
		"Fetch a range of blocks",
		[]string{"BLOCK_RANGE_ANKR", "BLOCKS_ANKR"},
		[2]string{"Blocks [chain]eth[/chain] [fromblock]19000000[/fromblock] [toblock]19000002[/toblock]", "Blocks 19000000-19000002 on eth: ..."},
		[]action.Param{
			chainParam,
			{Name: "fromblock", Description: "First block number", Required: true, Pattern: fromPattern},
			{Name: "toblock", Description: "Last block number", Required: true, Pattern: toPattern},
		},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			if err := checkBlockRange(q.FromBlock, q.ToBlock); err != nil {
				return "", nil, err
			}
			res, err := c.GetBlocks(ctx, q.Chain, q.FromBlock, q.ToBlock)
			if err != nil {
				return "", nil, err
			}
			return formatBlocks(q, res), res, nil
		})
}

func logsAction() *action.Action {
	return newReadAction("GET_LOGS_ANKR",
		"Fetch event logs emitted in a block range, optionally by one contract",
		[]string{"EVENT_LOGS_ANKR", "LOGS_ANKR"},
		[2]string{"Logs of [contract]0xdAC17F958D2ee523a2206206994597C13D831ec7[/contract] [chain]eth[/chain] [fromblock]19000000[/fromblock] [toblock]19000001[/toblock]", "Logs on eth: ..."},
		[]action.Param{
			chainParam,
			{Name: "contract", Description: "Emitting contract address", Pattern: addressPattern},
			{Name: "fromblock", Description: "First block number", Required: true, Pattern: fromPattern},
			{Name: "toblock", Description: "Last block number", Required: true, Pattern: toPattern},
			limitParam,
		},
		func(ctx context.Context, c *Client, q query) (string, any, error) {
			if err := checkBlockRange(q.FromBlock, q.ToBlock); err != nil {
				return "", nil, err
			}
			res, err := c.GetLogs(ctx, q.Chain, q.Contract, q.FromBlock, q.ToBlock, q.Limit)
			if err != nil {
				return "", nil, err
			}
			return formatLogs(q, res), res, nil
		})
}

func checkBlockRange(from, to int64) error {
	switch {
	case from < 0 || to < 0:
		return clierr.Validation("block numbers must be non-negative")
	case to < from:
		return clierr.Validation("toblock must be >= fromblock")
	case to-from >= maxBlockRange:
		return clierr.Validation("block range must span fewer than " + strconv.Itoa(maxBlockRange) + " blocks")
	}
	return nil
}
