package form

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/agentkit/internal/action"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/execution"
	"github.com/ggonzalez94/agentkit/internal/execution/signer"
	"github.com/ggonzalez94/agentkit/internal/id"
	"github.com/ggonzalez94/agentkit/internal/registry"
)

const (
	SettingPrefix  = "FORM"
	SettingTestnet = "FORM_TESTNET"
	SettingRPCURL  = "FORM_RPC_URL"

	mainnetChainID = 478
	testnetChainID = 132902
	erc20Decimals  = 18
	cacheTTL       = time.Minute
)

var (
	curvesABI = execution.MustParseABI(registry.CurvesABI)
	erc20ABI  = execution.MustParseABI(registry.ERC20ABI)
)

// WalletClient signs and reads on the Form chain, with curves trading helpers.
// Balance and price reads are cached through the runtime cache.
type WalletClient struct {
	rt     action.Runtime
	chain  id.Chain
	rpcURL string
	signer signer.Signer
}

// NewWalletClient loads the FORM_* key and picks mainnet or testnet from FORM_TESTNET.
func NewWalletClient(rt action.Runtime) (*WalletClient, error) {
	s, err := signer.FromSettings(rt.Setting, SettingPrefix)
	if err != nil {
		if errors.Is(err, signer.ErrNoKey) {
			return nil, clierr.Configuration(err.Error())
		}
		return nil, clierr.Wrap(clierr.CodeSigner, "load Form signer", err)
	}
	return newWalletClient(rt, s)
}

func newWalletClient(rt action.Runtime, s signer.Signer) (*WalletClient, error) {
	chainID := int64(mainnetChainID)
	if testnet, _ := strconv.ParseBool(rt.Setting(SettingTestnet)); testnet {
		chainID = testnetChainID
	}
	chain, ok := id.ChainByID(chainID)
	if !ok {
		return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("form chain %d is not registered", chainID))
	}
	url, err := registry.ResolveRPCURL(rt.Setting(SettingRPCURL), chainID)
	if err != nil {
		return nil, clierr.Configuration(err.Error())
	}
	return &WalletClient{rt: rt, chain: chain, rpcURL: url, signer: s}, nil
}

func (w *WalletClient) Address() common.Address { return w.signer.Address() }

func (w *WalletClient) Chain() id.Chain { return w.chain }

func (w *WalletClient) dial(ctx context.Context) (execution.ChainClient, error) {
	client, err := w.rt.ChainDialer()(ctx, w.rpcURL)
	if err != nil {
		return nil, clierr.API("connect form rpc", err)
	}
	return client, nil
}

// Balance returns the native balance of the wallet in wei.
func (w *WalletClient) Balance(ctx context.Context) (*big.Int, error) {
	key := fmt.Sprintf("form:balance:%d:%s", w.chain.EVMChainID, w.Address().Hex())
	return w.cachedInt(ctx, key, func() (*big.Int, error) {
		client, err := w.dial(ctx)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		bal, err := client.BalanceAt(ctx, w.Address(), nil)
		if err != nil {
			return nil, clierr.API("read form balance", err)
		}
		return bal, nil
	})
}

// Read runs a view call.
func (w *WalletClient) Read(ctx context.Context, call execution.ContractCall) ([]any, error) {
	client, err := w.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return execution.CallContract(ctx, client, call)
}

// Simulate runs a state-changing call from the wallet without sending it.
func (w *WalletClient) Simulate(ctx context.Context, call execution.ContractCall) ([]any, error) {
	call.From = w.Address()
	return w.Read(ctx, call)
}

// WriteResult is a confirmed on-chain write.
type WriteResult struct {
	PlanID  string `json:"plan_id"`
	TxHash  string `json:"tx_hash"`
	TxURL   string `json:"tx_url,omitempty"`
	GasUsed uint64 `json:"gas_used"`
}

// Write sends calls in order as one journaled plan and waits for each receipt.
func (w *WalletClient) Write(ctx context.Context, intent string, calls ...execution.ContractCall) (WriteResult, error) {
	plan := execution.NewPlan(intent, "form", w.chain.CAIP2())
	for i, call := range calls {
		data, err := call.Pack()
		if err != nil {
			return WriteResult{}, err
		}
		value := "0"
		if call.Value != nil {
			value = call.Value.String()
		}
		plan.Steps = append(plan.Steps, execution.PlanStep{
			StepID:      fmt.Sprintf("%s-%d", call.Method, i+1),
			Type:        execution.StepTypeContractCall,
			Status:      execution.StepStatusPending,
			ChainID:     w.chain.CAIP2(),
			RPCURL:      w.rpcURL,
			Description: call.Method,
			Target:      call.To.Hex(),
			Data:        "0x" + common.Bytes2Hex(data),
			Value:       value,
		})
	}
	if len(calls) > 0 {
		plan.ToAddress = calls[0].To.Hex()
	}
	opts := execution.DefaultExecuteOptions()
	opts.Dial = w.rt.ChainDialer()
	opts.Logger = w.rt.Logger()
	err := execution.ExecutePlan(ctx, w.rt.PlanStore(), &plan, w.signer, opts)
	w.forgetBalance(ctx)
	if err != nil {
		return WriteResult{}, err
	}
	var gas uint64
	for _, s := range plan.Steps {
		gas += s.GasUsed
	}
	hash := plan.LastTxHash()
	return WriteResult{PlanID: plan.PlanID, TxHash: hash, TxURL: registry.TxURL(w.chain.EVMChainID, hash), GasUsed: gas}, nil
}

// CurvesAddress resolves the curves contract for formula on the wallet's chain.
func (w *WalletClient) CurvesAddress(formula registry.CurvesFormula) (common.Address, error) {
	addr, ok := registry.CurvesContract(w.chain.EVMChainID, formula, w.rt.Setting(registry.CurvesSettingKey(formula)))
	if !ok {
		return common.Address{}, clierr.Configuration(fmt.Sprintf("no %s curves contract on %s; set %s", formula, w.chain.Name, registry.CurvesSettingKey(formula)))
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, clierr.Configuration(fmt.Sprintf("%s is not a valid address", registry.CurvesSettingKey(formula)))
	}
	return common.HexToAddress(addr), nil
}

func (w *WalletClient) curvesCall(formula registry.CurvesFormula, method string, args ...any) (execution.ContractCall, error) {
	to, err := w.CurvesAddress(formula)
	if err != nil {
		return execution.ContractCall{}, err
	}
	return execution.ContractCall{ABI: curvesABI, To: to, From: w.Address(), Method: method, Args: args}, nil
}

func (w *WalletClient) readUint(ctx context.Context, call execution.ContractCall) (*big.Int, error) {
	client, err := w.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return execution.CallUint256(ctx, client, call)
}

// GetCurvesBuyPrice quotes the wei cost, fees included, of buying amount curves tokens of subject.
func (w *WalletClient) GetCurvesBuyPrice(ctx context.Context, formula registry.CurvesFormula, subject common.Address, amount *big.Int) (*big.Int, error) {
	return w.price(ctx, formula, "getBuyPriceAfterFee", subject, amount)
}

// GetCurvesSellPrice quotes the wei proceeds, fees deducted, of selling amount curves tokens of subject.
func (w *WalletClient) GetCurvesSellPrice(ctx context.Context, formula registry.CurvesFormula, subject common.Address, amount *big.Int) (*big.Int, error) {
	return w.price(ctx, formula, "getSellPriceAfterFee", subject, amount)
}

func (w *WalletClient) price(ctx context.Context, formula registry.CurvesFormula, method string, subject common.Address, amount *big.Int) (*big.Int, error) {
	call, err := w.curvesCall(formula, method, subject, amount)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("form:%s:%d:%s:%s:%s", method, w.chain.EVMChainID, formula, subject.Hex(), amount)
	return w.cachedInt(ctx, key, func() (*big.Int, error) { return w.readUint(ctx, call) })
}

// GetCurvesBalance returns how many curves tokens of subject owner holds.
func (w *WalletClient) GetCurvesBalance(ctx context.Context, formula registry.CurvesFormula, subject, owner common.Address) (*big.Int, error) {
	call, err := w.curvesCall(formula, "curvesTokenBalance", subject, owner)
	if err != nil {
		return nil, err
	}
	return w.readUint(ctx, call)
}

// BuyCurvesToken pays the current after-fee price for amount curves tokens.
// The price is read fresh, not from cache, so the attached value matches the contract's quote.
func (w *WalletClient) BuyCurvesToken(ctx context.Context, formula registry.CurvesFormula, subject common.Address, amount *big.Int) (WriteResult, *big.Int, error) {
	quote, err := w.curvesCall(formula, "getBuyPriceAfterFee", subject, amount)
	if err != nil {
		return WriteResult{}, nil, err
	}
	price, err := w.readUint(ctx, quote)
	if err != nil {
		return WriteResult{}, nil, err
	}
	call, err := w.curvesCall(formula, "buyCurvesToken", subject, amount)
	if err != nil {
		return WriteResult{}, nil, err
	}
	call.Value = price
	res, err := w.Write(ctx, "buy_curves_token", call)
	return res, price, err
}

func (w *WalletClient) SellCurvesToken(ctx context.Context, formula registry.CurvesFormula, subject common.Address, amount *big.Int) (WriteResult, error) {
	if err := w.requireCurves(ctx, formula, subject, amount); err != nil {
		return WriteResult{}, err
	}
	call, err := w.curvesCall(formula, "sellCurvesToken", subject, amount)
	if err != nil {
		return WriteResult{}, err
	}
	return w.Write(ctx, "sell_curves_token", call)
}

// WithdrawCurves converts amount whole curves tokens into the subject's ERC20 token.
func (w *WalletClient) WithdrawCurves(ctx context.Context, formula registry.CurvesFormula, subject common.Address, amount *big.Int) (WriteResult, error) {
	if err := w.requireCurves(ctx, formula, subject, amount); err != nil {
		return WriteResult{}, err
	}
	call, err := w.curvesCall(formula, "withdraw", subject, amount)
	if err != nil {
		return WriteResult{}, err
	}
	return w.Write(ctx, "withdraw_curves_token", call)
}

// DepositCurves converts amount ERC20 tokens back into curves tokens. The contract takes
// ERC20 base units, so whole tokens are scaled by 10^18.
func (w *WalletClient) DepositCurves(ctx context.Context, formula registry.CurvesFormula, subject common.Address, amount *big.Int) (WriteResult, error) {
	scaled := new(big.Int).Mul(amount, new(big.Int).Exp(big.NewInt(10), big.NewInt(erc20Decimals), nil))
	call, err := w.curvesCall(formula, "deposit", subject, scaled)
	if err != nil {
		return WriteResult{}, err
	}
	return w.Write(ctx, "deposit_curves_token", call)
}

// MintCurvesERC20 deploys the subject's ERC20 wrapper, naming it first when name and symbol are given.
func (w *WalletClient) MintCurvesERC20(ctx context.Context, formula registry.CurvesFormula, subject common.Address, name, symbol string) (WriteResult, error) {
	var calls []execution.ContractCall
	if name != "" || symbol != "" {
		if name == "" || symbol == "" {
			return WriteResult{}, clierr.Validation("name and symbol must be given together")
		}
		setName, err := w.curvesCall(formula, "setNameAndSymbol", subject, name, strings.ToUpper(symbol))
		if err != nil {
			return WriteResult{}, err
		}
		calls = append(calls, setName)
	}
	mint, err := w.curvesCall(formula, "mint", subject)
	if err != nil {
		return WriteResult{}, err
	}
	calls = append(calls, mint)
	return w.Write(ctx, "mint_curves_erc20", calls...)
}

// ERC20Details describes the ERC20 wrapper of a curves subject.
type ERC20Details struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
	Minted  bool   `json:"minted"`
	Balance string `json:"balance,omitempty"`
}

func (w *WalletClient) GetCurvesERC20Details(ctx context.Context, formula registry.CurvesFormula, subject common.Address) (ERC20Details, error) {
	call, err := w.curvesCall(formula, "externalCurvesTokens", subject)
	if err != nil {
		return ERC20Details{}, err
	}
	out, err := w.Read(ctx, call)
	if err != nil {
		return ERC20Details{}, err
	}
	if len(out) != 3 {
		return ERC20Details{}, clierr.New(clierr.CodeUnavailable, "unexpected externalCurvesTokens result")
	}
	name, _ := out[0].(string)
	symbol, _ := out[1].(string)
	token, _ := out[2].(common.Address)
	details := ERC20Details{Name: name, Symbol: symbol, Address: token.Hex(), Minted: token != (common.Address{})}
	if details.Minted {
		bal, err := w.readUint(ctx, execution.ContractCall{ABI: erc20ABI, To: token, Method: "balanceOf", Args: []any{w.Address()}})
		if err == nil {
			details.Balance = id.FormatUnits(bal, erc20Decimals)
		}
	}
	return details, nil
}

func (w *WalletClient) requireCurves(ctx context.Context, formula registry.CurvesFormula, subject common.Address, amount *big.Int) error {
	bal, err := w.GetCurvesBalance(ctx, formula, subject, w.Address())
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return clierr.Validation(fmt.Sprintf("insufficient curves balance: have %s, need %s", bal, amount))
	}
	return nil
}

func (w *WalletClient) cachedInt(ctx context.Context, key string, load func() (*big.Int, error)) (*big.Int, error) {
	cache := w.rt.Cache()
	var cached string
	if ok, err := cache.Get(ctx, key, &cached); err == nil && ok {
		if v, ok := new(big.Int).SetString(cached, 10); ok {
			return v, nil
		}
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, key, v.String(), cacheTTL); err != nil {
		w.rt.Logger().Warn("failed to cache value", "key", key, "error", err)
	}
	return v, nil
}

func (w *WalletClient) forgetBalance(ctx context.Context) {
	deleter, ok := w.rt.Cache().(interface {
		Delete(ctx context.Context, key string) error
	})
	if !ok {
		return
	}
	key := fmt.Sprintf("form:balance:%d:%s", w.chain.EVMChainID, w.Address().Hex())
	if err := deleter.Delete(ctx, key); err != nil {
		w.rt.Logger().Warn("failed to drop cached balance", "key", key, "error", err)
	}
}
