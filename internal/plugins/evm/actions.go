// Package evm transfers and inspects native coins and ERC20 tokens on EVM chains.
package evm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/agentkit/internal/action"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/execution"
	"github.com/ggonzalez94/agentkit/internal/extract"
	"github.com/ggonzalez94/agentkit/internal/id"
	"github.com/ggonzalez94/agentkit/internal/registry"
)

var (
	addressPattern = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
	amountPattern  = regexp.MustCompile(`(?:^|\s)\$?(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)(?:\s|$|,(?:\s|$)|[A-Za-z]{2,})`)
	recipientRe    = regexp.MustCompile(`(?i)\bto\s+(0x[a-fA-F0-9]{40})\b`)
	chainPattern   = buildChainPattern()
)

func buildChainPattern() *regexp.Regexp {
	names := id.ChainSlugs()
	names = append(names, "eth", "mainnet", "matic", "arb", "op", "avax")
	sortByLength(names)
	for i, n := range names {
		names[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(`(?i)\bon\s+(` + strings.Join(names, "|") + `)\b`)
}

// longer names first so "base-sepolia" wins over "base"
func sortByLength(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && len(names[j]) > len(names[j-1]); j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}

func Plugin() action.Plugin {
	return action.Plugin{
		Name:            "evm",
		Description:     "Native and ERC20 transfers and balances on EVM chains",
		Actions:         []*action.Action{sendTokensAction(), balanceAction()},
		SettingPrefixes: []string{SettingPrefix + "_", chainProviderPrefix},
	}
}

// TransferRequest is the input of SEND_TOKENS.
type TransferRequest struct {
	Amount string `mapstructure:"amount"`
	To     string `mapstructure:"to"`
	Chain  string `mapstructure:"chain"`
	Token  string `mapstructure:"token"`
}

func sendTokensAction() *action.Action {
	params := []action.Param{
		{Name: "amount", Description: "Decimal amount to send", Required: true, Pattern: amountPattern},
		{Name: "to", Description: "Recipient address", Pattern: recipientRe},
		{Name: "chain", Description: "Chain to send on", Pattern: chainPattern},
		{Name: "token", Description: "ERC20 contract address; omit for the native coin"},
	}
	b := action.New("SEND_TOKENS").
		Similes("TRANSFER_TOKENS", "TRANSFER", "SEND_ETH", "PAY").
		Description("Transfer the native coin or an ERC20 token from the agent wallet to an address").
		Example("Send 0.01 ETH to 0x742d35Cc6634C0532925a3b844Bc454e4438f44e on base",
			"Successfully transferred 0.01 ETH to 0x742d35Cc6634C0532925a3b844Bc454e4438f44e").
		Validate(func(_ context.Context, rt action.Runtime, _ action.Message) error {
			if !hasKey(rt) {
				return clierr.Configuration("EVM_PRIVATE_KEY is not set")
			}
			return nil
		})
	for _, p := range params {
		b.Param(p)
	}
	return b.Handler(func(ctx context.Context, rt action.Runtime, msg action.Message, _ action.State, opts action.Options, cb action.Callback) error {
		var p TransferRequest
		if err := action.Bind(params, msg, opts, &p); err != nil {
			return err
		}
		p.Amount = extract.Ungroup(p.Amount)
		addrs := extract.EVMAddresses(msg.Text)
		if p.To == "" && len(addrs) == 1 {
			p.To = addrs[0]
		}
		if p.To == "" {
			return clierr.Validation("invalid parameters: missing to")
		}
		if p.Token == "" {
			// "send 5 USDC" names a symbol; anything but the native one needs a contract address
			if _, symbol, ok := extract.Amount(msg.Text); ok && symbol != "" {
				p.Token = symbol
			}
			if len(addrs) > 1 {
				for _, a := range addrs {
					if !strings.EqualFold(a, p.To) {
						p.Token = a
						break
					}
				}
			}
		}
		if !common.IsHexAddress(p.To) {
			return clierr.Validation(fmt.Sprintf("invalid recipient address %q", p.To))
		}
		res, err := Transfer(ctx, rt, p)
		if err != nil {
			return err
		}
		text := fmt.Sprintf("Successfully transferred %s %s to %s\nTransaction: %s", p.Amount, res.Token.Symbol, res.To, res.TxHash)
		if url := registry.TxURL(res.Chain.EVMChainID, res.TxHash); url != "" {
			text += "\nExplorer: " + url
		}
		return cb(action.Content{Text: text, Success: true, Data: res})
	}).Build()
}

// TransferResult describes a confirmed transfer.
type TransferResult struct {
	PlanID    string   `json:"plan_id"`
	TxHash    string   `json:"tx_hash"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Amount    string   `json:"amount"`
	BaseUnits string   `json:"amount_base_units"`
	Token     Token    `json:"token"`
	Chain     id.Chain `json:"chain"`
	GasUsed   uint64   `json:"gas_used"`
}

// Transfer sends p.Amount of p.Token through a journaled single-step plan.
func Transfer(ctx context.Context, rt action.Runtime, p TransferRequest) (TransferResult, error) {
	chain, err := resolveChain(rt, p.Chain)
	if err != nil {
		return TransferResult{}, err
	}
	txSigner, err := loadSigner(rt)
	if err != nil {
		return TransferResult{}, err
	}
	url, err := ProviderURL(rt, chain)
	if err != nil {
		return TransferResult{}, err
	}
	client, err := dial(ctx, rt, url)
	if err != nil {
		return TransferResult{}, err
	}
	token, err := resolveToken(ctx, client, chain, p.Token)
	client.Close()
	if err != nil {
		return TransferResult{}, err
	}
	amount, err := id.PositiveBaseUnits(p.Amount, token.Decimals)
	if err != nil {
		return TransferResult{}, clierr.Validation(err.Error())
	}
	to := common.HexToAddress(p.To)

	plan := execution.NewPlan("send_tokens", "evm", chain.CAIP2())
	plan.ToAddress = to.Hex()
	plan.InputAmount = amount.String()
	step := execution.PlanStep{
		StepID:  "transfer-1",
		Status:  execution.StepStatusPending,
		ChainID: chain.CAIP2(),
		RPCURL:  url,
	}
	if token.Native() {
		step.Type = execution.StepTypeNativeTransfer
		step.Description = fmt.Sprintf("send %s %s", p.Amount, token.Symbol)
		step.Target = to.Hex()
		step.Value = amount.String()
	} else {
		data, err := execution.ContractCall{ABI: erc20ABI, Method: "transfer", Args: []any{to, amount}}.Pack()
		if err != nil {
			return TransferResult{}, err
		}
		step.Type = execution.StepTypeTokenTransfer
		step.Description = fmt.Sprintf("transfer %s %s", p.Amount, token.Symbol)
		step.Target = token.Address.Hex()
		step.Data = "0x" + common.Bytes2Hex(data)
		step.Value = "0"
	}
	plan.Steps = append(plan.Steps, step)
	plan.Metadata = map[string]any{"token": token.Symbol, "amount": p.Amount}

	opts := execution.DefaultExecuteOptions()
	opts.Dial = rt.ChainDialer()
	opts.Logger = rt.Logger()
	if err := execution.ExecutePlan(ctx, rt.PlanStore(), &plan, txSigner, opts); err != nil {
		return TransferResult{}, err
	}
	return TransferResult{
		PlanID:    plan.PlanID,
		TxHash:    plan.LastTxHash(),
		From:      plan.FromAddress,
		To:        to.Hex(),
		Amount:    p.Amount,
		BaseUnits: amount.String(),
		Token:     token,
		Chain:     chain,
		GasUsed:   plan.Steps[0].GasUsed,
	}, nil
}

// BalanceRequest is the input of GET_EVM_BALANCE.
type BalanceRequest struct {
	Chain   string `mapstructure:"chain"`
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
}

// BalanceResult is a balance read.
type BalanceResult struct {
	Address   string   `json:"address"`
	Balance   string   `json:"balance"`
	BaseUnits string   `json:"balance_base_units"`
	Token     Token    `json:"token"`
	Chain     id.Chain `json:"chain"`
}

func balanceAction() *action.Action {
	params := []action.Param{
		{Name: "chain", Description: "Chain to query", Pattern: chainPattern},
		{Name: "address", Description: "Address to inspect; defaults to the agent wallet"},
		{Name: "token", Description: "ERC20 contract address; omit for the native coin"},
	}
	b := action.New("GET_EVM_BALANCE").
		Similes("EVM_BALANCE", "WALLET_BALANCE", "CHECK_BALANCE").
		Description("Read the native or ERC20 balance of the agent wallet or any address").
		Example("What's my balance on base?", "0x742d...f44e holds 0.42 ETH on Base").
		ReadOnly(30 * time.Second)
	for _, p := range params {
		b.Param(p)
	}
	return b.Handler(func(ctx context.Context, rt action.Runtime, msg action.Message, _ action.State, opts action.Options, cb action.Callback) error {
		var p BalanceRequest
		if err := action.Bind(params, msg, opts, &p); err != nil {
			return err
		}
		addrs := extract.EVMAddresses(msg.Text)
		if p.Address == "" && len(addrs) > 0 {
			p.Address = addrs[0]
		}
		if p.Token == "" && len(addrs) > 1 {
			p.Token = addrs[1]
		}
		res, err := Balance(ctx, rt, p)
		if err != nil {
			return err
		}
		text := fmt.Sprintf("%s holds %s %s on %s", res.Address, res.Balance, res.Token.Symbol, res.Chain.Name)
		return cb(action.Content{Text: text, Success: true, Data: res})
	}).Build()
}

func Balance(ctx context.Context, rt action.Runtime, p BalanceRequest) (BalanceResult, error) {
	chain, err := resolveChain(rt, p.Chain)
	if err != nil {
		return BalanceResult{}, err
	}
	var owner common.Address
	switch {
	case p.Address != "":
		if !common.IsHexAddress(p.Address) {
			return BalanceResult{}, clierr.Validation(fmt.Sprintf("invalid address %q", p.Address))
		}
		owner = common.HexToAddress(p.Address)
	case hasKey(rt):
		s, err := loadSigner(rt)
		if err != nil {
			return BalanceResult{}, err
		}
		owner = s.Address()
	default:
		return BalanceResult{}, clierr.Configuration("no address given and EVM_PRIVATE_KEY is not set")
	}
	url, err := ProviderURL(rt, chain)
	if err != nil {
		return BalanceResult{}, err
	}
	client, err := dial(ctx, rt, url)
	if err != nil {
		return BalanceResult{}, err
	}
	defer client.Close()
	token, err := resolveToken(ctx, client, chain, p.Token)
	if err != nil {
		return BalanceResult{}, err
	}
	bal, err := balanceOf(ctx, client, token, owner)
	if err != nil {
		return BalanceResult{}, err
	}
	return BalanceResult{
		Address:   owner.Hex(),
		Balance:   id.FormatUnits(bal, token.Decimals),
		BaseUnits: bal.String(),
		Token:     token,
		Chain:     chain,
	}, nil
}
