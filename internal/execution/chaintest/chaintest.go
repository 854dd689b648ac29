// Package chaintest provides an in-memory execution.ChainClient for plugin tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ggonzalez94/agentkit/internal/execution"
)

// Fake answers chain reads from its fields and records sent transactions.
// Every sent transaction is immediately mined, successfully unless Reverted is set.
type Fake struct {
	mu       sync.Mutex
	ID       int64
	Balance  *big.Int
	Reverted bool
	// Call answers eth_call; nil returns empty output.
	Call func(msg ethereum.CallMsg) ([]byte, error)

	Calls []ethereum.CallMsg
	Sent  []*types.Transaction
	Dials []string
}

func (f *Fake) Dialer() execution.Dialer {
	return func(_ context.Context, url string) (execution.ChainClient, error) {
		f.mu.Lock()
		f.Dials = append(f.Dials, url)
		f.mu.Unlock()
		return f, nil
	}
}

func (f *Fake) ChainID(context.Context) (*big.Int, error) { return big.NewInt(f.ID), nil }

func (f *Fake) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	if f.Balance == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(f.Balance), nil
}

func (f *Fake) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, msg)
	f.mu.Unlock()
	if f.Call == nil {
		return nil, nil
	}
	return f.Call(msg)
}

func (f *Fake) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 60_000, nil }

func (f *Fake) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *Fake) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *Fake) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.Sent)), nil
}

func (f *Fake) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, tx)
	return nil
}

func (f *Fake) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	status := types.ReceiptStatusSuccessful
	if f.Reverted {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status, GasUsed: 50_000}, nil
}

func (f *Fake) Close() {}

// LastSent returns the most recent transaction, or nil.
func (f *Fake) LastSent() *types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return nil
	}
	return f.Sent[len(f.Sent)-1]
}
