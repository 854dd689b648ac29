// Package cosmos sends bank transfers and reads balances on Cosmos SDK chains.
package cosmos

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ggonzalez94/agentkit/internal/action"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/extract"
	"github.com/ggonzalez94/agentkit/internal/id"
	"github.com/ggonzalez94/agentkit/internal/registry"
)

const simulationGasLimit = 200_000

var (
	inclusionPollInterval = 2 * time.Second
	inclusionTimeout      = 90 * time.Second

	amountPattern  = regexp.MustCompile(`(?:^|\s)(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)(?:\s|$|,(?:\s|$)|[A-Za-z]{2,})`)
	addressPattern = regexp.MustCompile(`\b([a-z]{2,20}1[02-9ac-hj-np-z]{38,58})\b`)
	chainPattern   = regexp.MustCompile(`(?i)\bon\s+(` + strings.Join(registry.CosmosChainNames(), "|") + `)\b`)
)

func Plugin() action.Plugin {
	return action.Plugin{
		Name:            "cosmos",
		Description:     "Bank transfers and balances on Cosmos SDK chains",
		Actions:         []*action.Action{transferAction(), balanceAction()},
		SettingPrefixes: []string{"COSMOS_"},
	}
}

func validateMnemonic(_ context.Context, rt action.Runtime, _ action.Message) error {
	if strings.TrimSpace(rt.Setting(SettingMnemonic)) == "" {
		return clierr.Configuration(SettingMnemonic + " is not set")
	}
	return nil
}

// TransferRequest is the input of COSMOS_TRANSFER. Symbol is either the chain's
// display symbol (ATOM) or its base denom (uatom), in which case Amount is in base units.
type TransferRequest struct {
	Amount string `mapstructure:"amount"`
	Symbol string `mapstructure:"symbol"`
	To     string `mapstructure:"to"`
	Chain  string `mapstructure:"chain"`
	Memo   string `mapstructure:"memo"`
}

func transferAction() *action.Action {
	params := []action.Param{
		{Name: "amount", Description: "Amount to send", Required: true, Pattern: amountPattern},
		{Name: "symbol", Description: "Display symbol or base denom; defaults to the chain's staking coin"},
		{Name: "to", Description: "Bech32 recipient address", Required: true, Pattern: addressPattern},
		{Name: "chain", Description: "Chain name; inferred from the recipient prefix when omitted", Pattern: chainPattern},
		{Name: "memo", Description: "Transaction memo"},
	}
	b := action.New("COSMOS_TRANSFER").
		Similes("COSMOS_SEND_TOKENS", "COSMOS_TOKEN_TRANSFER", "COSMOS_MOVE_TOKENS").
		Description("Send tokens from the agent's Cosmos wallet to another address on the same chain").
		Example("Send 1.5 ATOM to cosmos1xy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
			"Sent 1.5 ATOM to cosmos1xy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh on cosmoshub").
		Validate(validateMnemonic)
	for _, p := range params {
		b.Param(p)
	}
	return b.Handler(func(ctx context.Context, rt action.Runtime, msg action.Message, _ action.State, opts action.Options, cb action.Callback) error {
		var p TransferRequest
		if err := action.Bind(params, msg, opts, &p); err != nil {
			return err
		}
		p.Amount = extract.Ungroup(p.Amount)
		if p.Symbol == "" {
			if _, symbol, ok := extract.Amount(msg.Text); ok {
				p.Symbol = symbol
			}
		}
		res, err := Transfer(ctx, rt, p)
		if err != nil {
			return err
		}
		text := fmt.Sprintf("Sent %s %s to %s on %s\nTransaction: %s", res.Amount, res.Symbol, res.To, res.Chain, res.TxHash)
		return cb(action.Content{Text: text, Success: true, Data: res})
	}).Build()
}

// TransferResult describes an included transfer.
type TransferResult struct {
	TxHash    string `json:"tx_hash"`
	Height    string `json:"height"`
	Chain     string `json:"chain"`
	ChainID   string `json:"chain_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Symbol    string `json:"symbol"`
	BaseUnits string `json:"amount_base_units"`
	Denom     string `json:"denom"`
	GasLimit  uint64 `json:"gas_limit"`
	Fee       string `json:"fee"`
}

// Transfer signs a MsgSend in direct mode, sizing gas from a simulation, and waits for inclusion.
func Transfer(ctx context.Context, rt action.Runtime, p TransferRequest) (TransferResult, error) {
	chains, err := availableChains(rt.Setting)
	if err != nil {
		return TransferResult{}, err
	}
	to := strings.TrimSpace(p.To)
	_, prefix := extract.Bech32Address(to)
	chain, err := pickChain(chains, p.Chain, prefix)
	if err != nil {
		return TransferResult{}, err
	}
	if err := ValidateAddress(to, chain.Bech32Prefix); err != nil {
		return TransferResult{}, err
	}
	denomExp, symbol, err := resolveDenom(chain, p.Symbol)
	if err != nil {
		return TransferResult{}, err
	}
	amount, err := id.PositiveBaseUnits(p.Amount, denomExp)
	if err != nil {
		return TransferResult{}, clierr.Validation(err.Error())
	}
	key, err := DeriveKey(rt.Setting(SettingMnemonic), chain.CoinType)
	if err != nil {
		return TransferResult{}, err
	}
	from, err := key.Address(chain.Bech32Prefix)
	if err != nil {
		return TransferResult{}, err
	}
	log := rt.Logger().With("chain", chain.Name, "from", from)
	client := &restClient{http: rt.HTTPClient(), baseURL: chain.RESTURL}

	number, sequence, err := client.Account(ctx, from)
	if err != nil {
		return TransferResult{}, err
	}
	tx := sendTx{
		From:          from,
		To:            to,
		Denom:         chain.Denom,
		Amount:        amount,
		Memo:          p.Memo,
		ChainID:       chain.ChainID,
		AccountNumber: number,
		Sequence:      sequence,
		GasLimit:      simulationGasLimit,
	}
	unsigned, err := tx.build(key, false)
	if err != nil {
		return TransferResult{}, err
	}
	gasUsed, err := client.Simulate(ctx, unsigned)
	if err != nil {
		return TransferResult{}, err
	}
	tx.GasLimit = adjustGas(gasUsed)
	if tx.FeeAmount, err = feeFor(chain.GasPrice, tx.GasLimit); err != nil {
		return TransferResult{}, err
	}
	if err := checkBalance(ctx, client, from, chain.Denom, new(big.Int).Add(amount, tx.FeeAmount.BigInt())); err != nil {
		return TransferResult{}, err
	}
	signed, err := tx.build(key, true)
	if err != nil {
		return TransferResult{}, err
	}
	sent, err := client.Broadcast(ctx, signed)
	if err != nil {
		return TransferResult{}, err
	}
	log.Info("cosmos transfer broadcast", "tx_hash", sent.TxHash, "gas_limit", tx.GasLimit)
	included, err := client.WaitTx(ctx, sent.TxHash, inclusionPollInterval, inclusionTimeout)
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{
		TxHash:    sent.TxHash,
		Height:    included.Height,
		Chain:     chain.Name,
		ChainID:   chain.ChainID,
		From:      from,
		To:        to,
		Amount:    p.Amount,
		Symbol:    symbol,
		BaseUnits: amount.String(),
		Denom:     chain.Denom,
		GasLimit:  tx.GasLimit,
		Fee:       tx.FeeAmount.String() + chain.Denom,
	}, nil
}

// resolveDenom returns the decimal exponent the amount is written in and the symbol to report.
func resolveDenom(chain registry.CosmosChain, symbol string) (int, string, error) {
	switch {
	case symbol == "", strings.EqualFold(symbol, chain.Symbol):
		return chain.Exponent, chain.Symbol, nil
	case strings.EqualFold(symbol, chain.Denom):
		return 0, chain.Denom, nil
	}
	return 0, "", clierr.Validation(fmt.Sprintf("%s is not supported on %s (use %s or %s)", symbol, chain.Name, chain.Symbol, chain.Denom))
}

// adjustGas pads the simulated gas by 40%.
func adjustGas(used uint64) uint64 {
	return (used*14 + 9) / 10
}

func feeFor(gasPrice string, gas uint64) (sdkmath.Int, error) {
	price, err := sdkmath.LegacyNewDecFromStr(gasPrice)
	if err != nil {
		return sdkmath.Int{}, clierr.Configuration(fmt.Sprintf("invalid gas price %q", gasPrice))
	}
	return price.MulInt64(int64(gas)).Ceil().TruncateInt(), nil
}

func checkBalance(ctx context.Context, client *restClient, addr, denom string, need *big.Int) error {
	coins, err := client.Balances(ctx, addr)
	if err != nil {
		return err
	}
	have := big.NewInt(0)
	for _, c := range coins {
		if c.Denom == denom {
			if _, ok := have.SetString(c.Amount, 10); !ok {
				return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("invalid balance amount %q", c.Amount))
			}
		}
	}
	if have.Cmp(need) < 0 {
		return clierr.Validation(fmt.Sprintf("insufficient balance: have %s%s, need %s%s including fees", have, denom, need, denom))
	}
	return nil
}

// BalanceRequest is the input of COSMOS_BALANCE.
type BalanceRequest struct {
	Address string `mapstructure:"address"`
	Chain   string `mapstructure:"chain"`
}

// ChainBalance lists an address's balances on one chain.
type ChainBalance struct {
	Chain    string `json:"chain"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Balance  string `json:"balance"`
	Balances []Coin `json:"balances"`
}

func balanceAction() *action.Action {
	params := []action.Param{
		{Name: "address", Description: "Bech32 address; defaults to the agent wallet", Pattern: addressPattern},
		{Name: "chain", Description: "Limit the query to one chain", Pattern: chainPattern},
	}
	b := action.New("COSMOS_BALANCE").
		Similes("COSMOS_WALLET_BALANCE", "COSMOS_GET_BALANCE").
		Description("Show balances of the agent's Cosmos wallet, or of a given address, on the configured chains").
		Example("What's my balance on osmosis?", "osmo1... holds 12.5 OSMO on osmosis").
		ReadOnly(30 * time.Second)
	for _, p := range params {
		b.Param(p)
	}
	return b.Handler(func(ctx context.Context, rt action.Runtime, msg action.Message, _ action.State, opts action.Options, cb action.Callback) error {
		var p BalanceRequest
		if err := action.Bind(params, msg, opts, &p); err != nil {
			return err
		}
		res, err := Balance(ctx, rt, p)
		if err != nil {
			return err
		}
		lines := make([]string, 0, len(res))
		for _, b := range res {
			lines = append(lines, fmt.Sprintf("%s holds %s %s on %s", b.Address, b.Balance, b.Symbol, b.Chain))
		}
		return cb(action.Content{Text: strings.Join(lines, "\n"), Success: true, Data: res})
	}).Build()
}

// Balance reads the staking-coin and other balances of an address, or of the wallet on every available chain.
func Balance(ctx context.Context, rt action.Runtime, p BalanceRequest) ([]ChainBalance, error) {
	chains, err := availableChains(rt.Setting)
	if err != nil {
		return nil, err
	}
	addr := strings.TrimSpace(p.Address)
	if addr != "" || p.Chain != "" {
		_, prefix := extract.Bech32Address(addr)
		chain, err := pickChain(chains, p.Chain, prefix)
		if err != nil {
			return nil, err
		}
		chains = []registry.CosmosChain{chain}
	}
	mnemonic := rt.Setting(SettingMnemonic)
	if addr == "" && strings.TrimSpace(mnemonic) == "" {
		return nil, clierr.Configuration("no address given and " + SettingMnemonic + " is not set")
	}
	out := make([]ChainBalance, 0, len(chains))
	for _, chain := range chains {
		owner := addr
		if owner == "" {
			key, err := DeriveKey(mnemonic, chain.CoinType)
			if err != nil {
				return nil, err
			}
			if owner, err = key.Address(chain.Bech32Prefix); err != nil {
				return nil, err
			}
		} else if err := ValidateAddress(owner, chain.Bech32Prefix); err != nil {
			return nil, err
		}
		client := &restClient{http: rt.HTTPClient(), baseURL: chain.RESTURL}
		coins, err := client.Balances(ctx, owner)
		if err != nil {
			return nil, err
		}
		native := "0"
		for _, c := range coins {
			if c.Denom == chain.Denom {
				native = id.FormatBaseUnits(c.Amount, chain.Exponent)
			}
		}
		out = append(out, ChainBalance{Chain: chain.Name, Address: owner, Symbol: chain.Symbol, Balance: native, Balances: coins})
	}
	return out, nil
}
