// Package form trades curves bonding-curve tokens and reads balances on the Form chain.
package form

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/agentkit/internal/action"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/id"
	"github.com/ggonzalez94/agentkit/internal/registry"
)

var (
	subjectPattern = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
	amountPattern  = regexp.MustCompile(`(?:^|\s)(\d+(?:[.,]\d+)*)(?:\s|$|[!?]|[.,](?:\s|$))`)
	formulaPattern = regexp.MustCompile(`(?i)\b(quadratic|logarithmic|log)\b`)
	namePattern    = regexp.MustCompile(`(?i)\bnamed?\s+"?([^"\n]+?)"?(?:\s+(?:with\s+)?symbol\b|$)`)
	symbolPattern  = regexp.MustCompile(`(?i)\bsymbol\s+"?([A-Za-z0-9]{1,11})"?`)
)

var (
	subjectParam = action.Param{Name: "subject", Description: "Curves token subject address", Required: true, Pattern: subjectPattern}
	amountParam  = action.Param{Name: "amount", Description: "Whole number of curves tokens", Required: true, Pattern: amountPattern}
	formulaParam = action.Param{
		Name:        "formula",
		Description: "Bonding curve formula",
		Pattern:     formulaPattern,
		Default:     string(registry.CurvesQuadratic),
		Enum:        []string{string(registry.CurvesQuadratic), string(registry.CurvesLogarithmic), "LOG"},
	}
)

func Plugin() action.Plugin {
	return action.Plugin{
		Name:            "form",
		Description:     "Curves bonding-curve trading and ERC20 conversion on the Form chain",
		SettingPrefixes: []string{SettingPrefix + "_"},
		Actions: []*action.Action{
			buyAction(),
			sellAction(),
			withdrawAction(),
			depositAction(),
			mintAction(),
			buyPriceAction(),
			sellPriceAction(),
			curvesBalanceAction(),
			erc20DetailsAction(),
			formBalanceAction(),
		},
	}
}

type curvesRequest struct {
	Subject string `mapstructure:"subject"`
	Amount  string `mapstructure:"amount"`
	Formula string `mapstructure:"formula"`
	Owner   string `mapstructure:"owner"`
	Name    string `mapstructure:"name"`
	Symbol  string `mapstructure:"symbol"`
}

type resolved struct {
	subject common.Address
	amount  *big.Int
	formula registry.CurvesFormula
	owner   common.Address
}

func (r curvesRequest) resolve(needAmount bool) (resolved, error) {
	var out resolved
	if !common.IsHexAddress(r.Subject) {
		return out, clierr.Validation(fmt.Sprintf("invalid subject address %q", r.Subject))
	}
	out.subject = common.HexToAddress(r.Subject)
	formula, err := registry.ParseCurvesFormula(r.Formula)
	if err != nil {
		return out, clierr.Validation(err.Error())
	}
	out.formula = formula
	if needAmount {
		amount, ok := new(big.Int).SetString(strings.TrimSpace(r.Amount), 10)
		if !ok || amount.Sign() <= 0 {
			return out, clierr.Validation(fmt.Sprintf("amount must be a positive whole number, got %q", r.Amount))
		}
		out.amount = amount
	}
	if r.Owner != "" {
		if !common.IsHexAddress(r.Owner) {
			return out, clierr.Validation(fmt.Sprintf("invalid owner address %q", r.Owner))
		}
		out.owner = common.HexToAddress(r.Owner)
	}
	return out, nil
}

type curvesFunc func(ctx context.Context, w *WalletClient, req curvesRequest) (string, any, error)

// newCurvesAction wires the shared validate/bind/wallet steps around run.
func newCurvesAction(name, description string, similes []string, example [2]string, readOnly bool, params []action.Param, run curvesFunc) *action.Action {
	b := action.New(name).
		Similes(similes...).
		Description(description).
		Example(example[0], example[1]).
		Validate(validateKey)
	if readOnly {
		b.ReadOnly(cacheTTL)
	}
	for _, p := range params {
		b.Param(p)
	}
	return b.Handler(func(ctx context.Context, rt action.Runtime, msg action.Message, _ action.State, opts action.Options, cb action.Callback) error {
		var req curvesRequest
		if err := action.Bind(params, msg, opts, &req); err != nil {
			return err
		}
		w, err := NewWalletClient(rt)
		if err != nil {
			return err
		}
		text, data, err := run(ctx, w, req)
		if err != nil {
			return err
		}
		return cb(action.Content{Text: text, Success: true, Data: data})
	}).Build()
}

func validateKey(_ context.Context, rt action.Runtime, _ action.Message) error {
	if rt.Setting(SettingPrefix+"_PRIVATE_KEY") == "" && rt.Setting(SettingPrefix+"_PRIVATE_KEY_FILE") == "" && rt.Setting(SettingPrefix+"_KEYSTORE_PATH") == "" {
		return clierr.Configuration("FORM_PRIVATE_KEY is not set")
	}
	return nil
}

func formatWei(v *big.Int) string { return id.FormatUnits(v, 18) + " ETH" }

func txLines(res WriteResult) string {
	text := "Transaction: " + res.TxHash
	if res.TxURL != "" {
		text += "\nExplorer: " + res.TxURL
	}
	return text
}

func buyAction() *action.Action {
	return newCurvesAction("buy_curves_token",
		"Buy curves tokens of a subject, paying the bonding-curve price plus fees in ETH",
		[]string{"BUY_CURVES", "PURCHASE_CURVES_TOKEN", "BUY_FORM_TOKEN"},
		[2]string{"Buy 2 curves tokens of 0x742d35Cc6634C0532925a3b844Bc454e4438f44e", "Successfully bought 2 curves tokens for 0.0021 ETH"},
		false,
		[]action.Param{subjectParam, amountParam, formulaParam},
		func(ctx context.Context, w *WalletClient, req curvesRequest) (string, any, error) {
			r, err := req.resolve(true)
			if err != nil {
				return "", nil, err
			}
			res, price, err := w.BuyCurvesToken(ctx, r.formula, r.subject, r.amount)
			if err != nil {
				return "", nil, err
			}
			text := fmt.Sprintf("Successfully bought %s curves tokens of %s for %s\n%s", r.amount, r.subject.Hex(), formatWei(price), txLines(res))
			return text, map[string]any{"result": res, "price_wei": price.String(), "formula": r.formula}, nil
		})
}

func sellAction() *action.Action {
	return newCurvesAction("sell_curves_token",
		"Sell curves tokens of a subject back to the bonding curve",
		[]string{"SELL_CURVES", "SELL_FORM_TOKEN"},
		[2]string{"Sell 1 curves token of 0x742d35Cc6634C0532925a3b844Bc454e4438f44e", "Successfully sold 1 curves token"},
		false,
		[]action.Param{subjectParam, amountParam, formulaParam},
		func(ctx context.Context, w *WalletClient, req curvesRequest) (string, any, error) {
			r, err := req.resolve(true)
			if err != nil {
				return "", nil, err
			}
			res, err := w.SellCurvesToken(ctx, r.formula, r.subject, r.amount)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Successfully sold %s curves tokens of %s\n%s", r.amount, r.subject.Hex(), txLines(res)), res, nil
		})
}

func withdrawAction() *action.Action {
	return newCurvesAction("withdraw_curves_token",
		"Convert curves tokens into the subject's ERC20 token",
		[]string{"CURVES_TO_ERC20", "WITHDRAW_CURVES"},
		[2]string{"Withdraw 3 curves tokens of 0x742d35Cc6634C0532925a3b844Bc454e4438f44e to ERC20", "Successfully withdrew 3 curves tokens to ERC20"},
		false,
		[]action.Param{subjectParam, amountParam, formulaParam},
		func(ctx context.Context, w *WalletClient, req curvesRequest) (string, any, error) {
			r, err := req.resolve(true)
			if err != nil {
				return "", nil, err
			}
			res, err := w.WithdrawCurves(ctx, r.formula, r.subject, r.amount)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Successfully withdrew %s curves tokens of %s to ERC20\n%s", r.amount, r.subject.Hex(), txLines(res)), res, nil
		})
}

func depositAction() *action.Action {
	return newCurvesAction("deposit_curves_token",
		"Convert the subject's ERC20 tokens back into curves tokens",
		[]string{"ERC20_TO_CURVES", "DEPOSIT_CURVES"},
		[2]string{"Deposit 3 ERC20 tokens of 0x742d35Cc6634C0532925a3b844Bc454e4438f44e back to curves", "Successfully deposited 3 tokens to curves"},
		false,
		[]action.Param{subjectParam, amountParam, formulaParam},
		func(ctx context.Context, w *WalletClient, req curvesRequest) (string, any, error) {
			r, err := req.resolve(true)
			if err != nil {
				return "", nil, err
			}
			res, err := w.DepositCurves(ctx, r.formula, r.subject, r.amount)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Successfully deposited %s ERC20 tokens of %s to curves\n%s", r.amount, r.subject.Hex(), txLines(res)), res, nil
		})
}

func mintAction() *action.Action {
	return newCurvesAction("mint_curves_erc20",
		"Deploy the ERC20 token for a curves subject, optionally naming it",
		[]string{"MINT_CURVES_ERC20", "CREATE_CURVES_ERC20"},
		[2]string{"Mint the ERC20 for 0x742d35Cc6634C0532925a3b844Bc454e4438f44e named Agent Token symbol AGT", "Successfully minted ERC20 Agent Token (AGT)"},
		false,
		[]action.Param{
			subjectParam,
			formulaParam,
			{Name: "name", Description: "ERC20 name", Pattern: namePattern},
			{Name: "symbol", Description: "ERC20 symbol", Pattern: symbolPattern},
		},
		func(ctx context.Context, w *WalletClient, req curvesRequest) (string, any, error) {
			r, err := req.resolve(false)
			if err != nil {
				return "", nil, err
			}
			res, err := w.MintCurvesERC20(ctx, r.formula, r.subject, req.Name, req.Symbol)
			if err != nil {
				return "", nil, err
			}
			label := "ERC20"
			if req.Name != "" {
				label = fmt.Sprintf("ERC20 %s (%s)", req.Name, strings.ToUpper(req.Symbol))
			}
			return fmt.Sprintf("Successfully minted %s for %s\n%s", label, r.subject.Hex(), txLines(res)), res, nil
		})
}

func buyPriceAction() *action.Action {
	return newCurvesAction("get_curves_buy_price",
		"Quote the ETH cost, fees included, of buying curves tokens",
		[]string{"CURVES_BUY_PRICE", "CHECK_CURVES_BUY_PRICE"},
		[2]string{"How much to buy 5 curves of 0x742d35Cc6634C0532925a3b844Bc454e4438f44e?", "Buying 5 curves tokens costs 0.0125 ETH"},
		true,
		[]action.Param{subjectParam, amountParam, formulaParam},
		func(ctx context.Context, w *WalletClient, req curvesRequest) (string, any, error) {
			r, err := req.resolve(true)
			if err != nil {
				return "", nil, err
			}
			price, err := w.GetCurvesBuyPrice(ctx, r.formula, r.subject, r.amount)
			if err != nil {
				return "", nil, err
			}
			text := fmt.Sprintf("Buying %s curves tokens of %s costs %s", r.amount, r.subject.Hex(), formatWei(price))
			return text, map[string]any{"price_wei": price.String(), "price": id.FormatUnits(price, 18), "formula": r.formula}, nil
		})
}

func sellPriceAction() *action.Action {
	return newCurvesAction("get_curves_sell_price",
		"Quote the ETH received, fees deducted, for selling curves tokens",
		[]string{"CURVES_SELL_PRICE", "CHECK_CURVES_SELL_PRICE"},
		[2]string{"What do I get for selling 1 curves of 0x742d35Cc6634C0532925a3b844Bc454e4438f44e?", "Selling 1 curves token returns 0.001 ETH"},
		true,
		[]action.Param{subjectParam, amountParam, formulaParam},
		func(ctx context.Context, w *WalletClient, req curvesRequest) (string, any, error) {
			r, err := req.resolve(true)
			if err != nil {
				return "", nil, err
			}
			price, err := w.GetCurvesSellPrice(ctx, r.formula, r.subject, r.amount)
			if err != nil {
				return "", nil, err
			}
			text := fmt.Sprintf("Selling %s curves tokens of %s returns %s", r.amount, r.subject.Hex(), formatWei(price))
			return text, map[string]any{"price_wei": price.String(), "price": id.FormatUnits(price, 18), "formula": r.formula}, nil
		})
}

func curvesBalanceAction() *action.Action {
	return newCurvesAction("get_curves_balance",
		"Read how many curves tokens of a subject the agent wallet, or a given owner, holds",
		[]string{"CURVES_BALANCE", "CHECK_CURVES_BALANCE"},
		[2]string{"How many curves of 0x742d35Cc6634C0532925a3b844Bc454e4438f44e do I hold?", "You hold 4 curves tokens"},
		true,
		[]action.Param{subjectParam, formulaParam, {Name: "owner", Description: "Holder address; defaults to the agent wallet"}},
		func(ctx context.Context, w *WalletClient, req curvesRequest) (string, any, error) {
			r, err := req.resolve(false)
			if err != nil {
				return "", nil, err
			}
			owner := r.owner
			if owner == (common.Address{}) {
				owner = w.Address()
			}
			bal, err := w.GetCurvesBalance(ctx, r.formula, r.subject, owner)
			if err != nil {
				return "", nil, err
			}
			text := fmt.Sprintf("%s holds %s curves tokens of %s", owner.Hex(), bal, r.subject.Hex())
			return text, map[string]any{"owner": owner.Hex(), "subject": r.subject.Hex(), "balance": bal.String(), "formula": r.formula}, nil
		})
}

func erc20DetailsAction() *action.Action {
	return newCurvesAction("get_curves_erc20_details",
		"Show the ERC20 wrapper of a curves subject and the agent's balance of it",
		[]string{"CURVES_ERC20_DETAILS", "CURVES_ERC20_INFO"},
		[2]string{"ERC20 details for 0x742d35Cc6634C0532925a3b844Bc454e4438f44e", "Agent Token (AGT) at 0x..."},
		true,
		[]action.Param{subjectParam, formulaParam},
		func(ctx context.Context, w *WalletClient, req curvesRequest) (string, any, error) {
			r, err := req.resolve(false)
			if err != nil {
				return "", nil, err
			}
			d, err := w.GetCurvesERC20Details(ctx, r.formula, r.subject)
			if err != nil {
				return "", nil, err
			}
			if !d.Minted {
				return fmt.Sprintf("No ERC20 has been minted for %s yet", r.subject.Hex()), d, nil
			}
			text := fmt.Sprintf("%s (%s) at %s", d.Name, d.Symbol, d.Address)
			if d.Balance != "" {
				text += fmt.Sprintf("\nYour balance: %s %s", d.Balance, d.Symbol)
			}
			return text, d, nil
		})
}

func formBalanceAction() *action.Action {
	return action.New("get_form_balance").
		Similes("FORM_BALANCE", "CHECK_FORM_BALANCE").
		Description("Read the ETH balance of the agent wallet on the Form chain").
		Example("What's my Form balance?", "Your Form balance is 0.42 ETH").
		ReadOnly(30 * time.Second).
		Validate(validateKey).
		Handler(func(ctx context.Context, rt action.Runtime, _ action.Message, _ action.State, _ action.Options, cb action.Callback) error {
			w, err := NewWalletClient(rt)
			if err != nil {
				return err
			}
			bal, err := w.Balance(ctx)
			if err != nil {
				return err
			}
			return cb(action.Content{
				Text:    fmt.Sprintf("Your balance on %s is %s", w.Chain().Name, formatWei(bal)),
				Success: true,
				Data: map[string]any{
					"address":     w.Address().Hex(),
					"chain_id":    w.Chain().EVMChainID,
					"balance_wei": bal.String(),
					"balance":     id.FormatUnits(bal, 18),
				},
			})
		}).
		Build()
}
