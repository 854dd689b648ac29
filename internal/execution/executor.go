package execution

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/execution/signer"
	"github.com/hashicorp/go-hclog"
)

// ChainClient is the subset of ethclient.Client the executor and EVM plugins use.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

type Dialer func(ctx context.Context, rpcURL string) (ChainClient, error)

func DialEthClient(ctx context.Context, rpcURL string) (ChainClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type ExecuteOptions struct {
	Simulate           bool
	PollInterval       time.Duration
	StepTimeout        time.Duration
	GasMultiplier      float64
	MaxFeeGwei         string
	MaxPriorityFeeGwei string
	Dial               Dialer
	Logger             hclog.Logger
}

func DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{
		Simulate:      true,
		PollInterval:  2 * time.Second,
		StepTimeout:   2 * time.Minute,
		GasMultiplier: 1.2,
		Dial:          DialEthClient,
	}
}

// ExecutePlan signs and submits every pending step in order, persisting the plan after each change.
func ExecutePlan(ctx context.Context, store *Store, plan *Plan, txSigner signer.Signer, opts ExecuteOptions) error {
	if plan == nil {
		return clierr.New(clierr.CodeInternal, "missing plan")
	}
	if txSigner == nil {
		return clierr.New(clierr.CodeSigner, "missing signer")
	}
	if len(plan.Steps) == 0 {
		return clierr.New(clierr.CodeUsage, "plan has no executable steps")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 2 * time.Minute
	}
	if opts.GasMultiplier <= 1 {
		opts.GasMultiplier = 1.2
	}
	if opts.Dial == nil {
		opts.Dial = DialEthClient
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	persist := func() {
		if store == nil {
			return
		}
		if err := store.Save(*plan); err != nil {
			opts.Logger.Warn("failed to journal plan", "plan_id", plan.PlanID, "error", err)
		}
	}

	plan.Status = PlanStatusRunning
	plan.FromAddress = txSigner.Address().Hex()
	plan.Touch()
	persist()

	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.Status == StepStatusConfirmed {
			continue
		}
		if strings.TrimSpace(step.RPCURL) == "" {
			markStepFailed(plan, step, "missing rpc url")
			persist()
			return clierr.New(clierr.CodeUsage, "missing rpc url for plan step")
		}
		if !common.IsHexAddress(step.Target) {
			markStepFailed(plan, step, "invalid target address")
			persist()
			return clierr.New(clierr.CodeUsage, "invalid target address for plan step")
		}
		data, err := decodeHex(step.Data)
		if err != nil {
			markStepFailed(plan, step, err.Error())
			persist()
			return clierr.Wrap(clierr.CodeUsage, "decode step calldata", err)
		}
		if err := validateStepPolicy(step, data); err != nil {
			markStepFailed(plan, step, err.Error())
			persist()
			return err
		}
		client, err := opts.Dial(ctx, step.RPCURL)
		if err != nil {
			markStepFailed(plan, step, err.Error())
			persist()
			return clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
		}

		opts.Logger.Debug("executing plan step", "plan_id", plan.PlanID, "step_id", step.StepID, "type", step.Type)
		err = executeStep(ctx, client, txSigner, step, data, opts, persist)
		client.Close()
		if err != nil {
			markStepFailed(plan, step, err.Error())
			persist()
			return err
		}
		plan.Touch()
		persist()
	}
	plan.Status = PlanStatusCompleted
	plan.Touch()
	persist()
	return nil
}

func executeStep(ctx context.Context, client ChainClient, txSigner signer.Signer, step *PlanStep, data []byte, opts ExecuteOptions, persist func()) error {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "read chain id", err)
	}
	if step.ChainID != "" {
		expected := fmt.Sprintf("eip155:%d", chainID.Int64())
		if !strings.EqualFold(strings.TrimSpace(step.ChainID), expected) {
			return clierr.New(clierr.CodeUsage, fmt.Sprintf("step chain mismatch: rpc reports %s, step wants %s", expected, step.ChainID))
		}
	}
	target := common.HexToAddress(step.Target)
	value := new(big.Int)
	if strings.TrimSpace(step.Value) != "" {
		if _, ok := value.SetString(step.Value, 10); !ok {
			return clierr.New(clierr.CodeUsage, "invalid step value")
		}
	}
	msg := ethereum.CallMsg{From: txSigner.Address(), To: &target, Value: value, Data: data}

	if opts.Simulate {
		if _, err := client.CallContract(ctx, msg, nil); err != nil {
			return wrapEVMExecutionError(clierr.CodeSimulation, "simulate step (eth_call)", err)
		}
		step.Status = StepStatusSimulated
	}

	gasLimit, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return wrapEVMExecutionError(clierr.CodeSimulation, "estimate gas", err)
	}
	gasLimit = uint64(float64(gasLimit) * opts.GasMultiplier)

	tipCap, err := resolveTipCap(ctx, client, opts.MaxPriorityFeeGwei)
	if err != nil {
		return err
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap, err := resolveFeeCap(baseFee, tipCap, opts.MaxFeeGwei)
	if err != nil {
		return err
	}

	unlock := acquireSignerNonceLock(chainID, txSigner.Address())
	nonce, err := client.PendingNonceAt(ctx, txSigner.Address())
	if err != nil {
		unlock()
		return clierr.Wrap(clierr.CodeUnavailable, "fetch nonce", err)
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &target,
		Value:     value,
		Data:      data,
	})
	signed, err := txSigner.SignTx(chainID, tx)
	if err != nil {
		unlock()
		return clierr.Wrap(clierr.CodeSigner, "sign transaction", err)
	}
	err = client.SendTransaction(ctx, signed)
	unlock()
	if err != nil {
		return wrapEVMExecutionError(clierr.CodeUnavailable, "broadcast transaction", err)
	}
	step.Status = StepStatusSubmitted
	step.TxHash = signed.Hash().Hex()
	persist()

	return waitForReceipt(ctx, client, step, signed.Hash(), opts)
}

func waitForReceipt(ctx context.Context, client ChainClient, step *PlanStep, hash common.Hash, opts ExecuteOptions) error {
	waitCtx, cancel := context.WithTimeout(ctx, opts.StepTimeout)
	defer cancel()
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()
	for {
		// polling errors other than timeout are retried until the step deadline
		receipt, err := client.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			step.GasUsed = receipt.GasUsed
			if receipt.Status == types.ReceiptStatusSuccessful {
				step.Status = StepStatusConfirmed
				return nil
			}
			return clierr.New(clierr.CodeSimulation, fmt.Sprintf("transaction %s reverted on-chain", hash.Hex()))
		}
		select {
		case <-waitCtx.Done():
			return clierr.Wrap(clierr.CodeTimeout, "timed out waiting for receipt", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func resolveTipCap(ctx context.Context, client ChainClient, overrideGwei string) (*big.Int, error) {
	if strings.TrimSpace(overrideGwei) != "" {
		v, err := parseGwei(overrideGwei)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "parse max priority fee", err)
		}
		return v, nil
	}
	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return big.NewInt(2_000_000_000), nil // 2 gwei
	}
	return tipCap, nil
}

func resolveFeeCap(baseFee, tipCap *big.Int, overrideGwei string) (*big.Int, error) {
	if strings.TrimSpace(overrideGwei) != "" {
		v, err := parseGwei(overrideGwei)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "parse max fee", err)
		}
		if v.Cmp(tipCap) < 0 {
			return nil, clierr.New(clierr.CodeUsage, "max fee must be >= max priority fee")
		}
		return v, nil
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)
	return feeCap, nil
}

func parseGwei(v string) (*big.Int, error) {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return nil, fmt.Errorf("empty gwei value")
	}
	rat, ok := new(big.Rat).SetString(clean)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", v)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("value must be non-negative")
	}
	rat.Mul(rat, big.NewRat(1_000_000_000, 1))
	if !rat.IsInt() {
		return nil, fmt.Errorf("value must resolve to an integer wei amount")
	}
	return new(big.Int).Set(rat.Num()), nil
}

func markStepFailed(plan *Plan, step *PlanStep, msg string) {
	step.Status = StepStatusFailed
	step.Error = msg
	plan.Status = PlanStatusFailed
	plan.Touch()
}

func decodeHex(v string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(v), "0x")
	if clean == "" {
		return []byte{}, nil
	}
	if len(clean)%2 != 0 {
		clean = "0" + clean
	}
	buf, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return buf, nil
}
