package evm

import (
	"bytes"
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/agentkit/internal/action"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/execution"
	"github.com/ggonzalez94/agentkit/internal/execution/chaintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey     = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	recipient   = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	usdcAddress = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	fakeRPCURL  = "http://rpc.test"
)

func erc20Responder(t *testing.T) func(ethereum.CallMsg) ([]byte, error) {
	return func(msg ethereum.CallMsg) ([]byte, error) {
		method, err := erc20ABI.MethodById(msg.Data[:4])
		require.NoError(t, err)
		switch method.Name {
		case "decimals":
			return method.Outputs.Pack(uint8(6))
		case "symbol":
			return method.Outputs.Pack("USDC")
		case "balanceOf":
			return method.Outputs.Pack(big.NewInt(7_250_000))
		case "transfer":
			return method.Outputs.Pack(true)
		}
		return nil, nil
	}
}

func newRuntime(t *testing.T, chain *chaintest.Fake, settings map[string]string) (action.Runtime, *execution.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := execution.OpenStore(filepath.Join(dir, "plans.db"), filepath.Join(dir, "plans.lock"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return action.NewRuntime(action.RuntimeConfig{
		Settings:  func(k string) string { return settings[k] },
		PlanStore: store,
		Dialer:    chain.Dialer(),
	}), store
}

func dispatch(t *testing.T, rt action.Runtime, act *action.Action, text string, opts action.Options) ([]action.Content, error) {
	t.Helper()
	return action.Dispatch(context.Background(), rt, act, action.NewMessage("tester", text), nil, opts, nil)
}

func TestSendNativeOnNamedChain(t *testing.T) {
	chain := &chaintest.Fake{ID: 8453}
	rt, store := newRuntime(t, chain, map[string]string{
		"EVM_PRIVATE_KEY":        testKey,
		"ETHEREUM_PROVIDER_BASE": fakeRPCURL,
	})
	contents, err := dispatch(t, rt, sendTokensAction(), "Send 0.01 ETH to "+recipient+" on base", nil)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Contains(t, contents[0].Text, "Successfully transferred 0.01 ETH")
	assert.Contains(t, contents[0].Text, "https://basescan.org/tx/0x")
	assert.Equal(t, []string{fakeRPCURL, fakeRPCURL}, chain.Dials)

	tx := chain.LastSent()
	require.NotNil(t, tx)
	assert.Equal(t, "10000000000000000", tx.Value().String())
	assert.Equal(t, common.HexToAddress(recipient), *tx.To())
	assert.Empty(t, tx.Data())

	res := contents[0].Data.(TransferResult)
	plan, err := store.Get(res.PlanID)
	require.NoError(t, err)
	assert.Equal(t, execution.PlanStatusCompleted, plan.Status)
	assert.Equal(t, tx.Hash().Hex(), plan.LastTxHash())
}

func TestSendERC20ByContractAddress(t *testing.T) {
	chain := &chaintest.Fake{ID: 1}
	chain.Call = erc20Responder(t)
	rt, _ := newRuntime(t, chain, map[string]string{
		"EVM_PRIVATE_KEY":  testKey,
		"EVM_PROVIDER_URL": fakeRPCURL,
	})
	contents, err := dispatch(t, rt, sendTokensAction(), "send 2.5 USDC ("+usdcAddress+") to "+recipient, nil)
	require.NoError(t, err)
	assert.Contains(t, contents[0].Text, "2.5 USDC")

	tx := chain.LastSent()
	require.NotNil(t, tx)
	assert.Equal(t, common.HexToAddress(usdcAddress), *tx.To())
	assert.Zero(t, tx.Value().Sign())
	transfer := erc20ABI.Methods["transfer"]
	require.True(t, bytes.Equal(transfer.ID, tx.Data()[:4]))
	args, err := transfer.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(recipient), args[0])
	assert.Equal(t, "2500000", args[1].(*big.Int).String())
}

func TestSendReadsThousandsSeparator(t *testing.T) {
	chain := &chaintest.Fake{ID: 1}
	rt, _ := newRuntime(t, chain, map[string]string{"EVM_PRIVATE_KEY": testKey, "EVM_PROVIDER_URL": fakeRPCURL})
	contents, err := dispatch(t, rt, sendTokensAction(), "Send 1,000 ETH to "+recipient, nil)
	require.NoError(t, err)
	assert.Contains(t, contents[0].Text, "Successfully transferred 1000 ETH")
	tx := chain.LastSent()
	require.NotNil(t, tx)
	assert.Equal(t, "1000000000000000000000", tx.Value().String())
}

func TestSendRejectsMalformedGrouping(t *testing.T) {
	chain := &chaintest.Fake{ID: 1}
	rt, _ := newRuntime(t, chain, map[string]string{"EVM_PRIVATE_KEY": testKey, "EVM_PROVIDER_URL": fakeRPCURL})
	_, err := dispatch(t, rt, sendTokensAction(), "Send 1,00 ETH to "+recipient, nil)
	require.Error(t, err)
	assert.Equal(t, clierr.KindValidation, clierr.KindOf(err))
	assert.Contains(t, err.Error(), "missing amount")
	assert.Empty(t, chain.Sent)
}

func TestSendRejectsUnknownSymbol(t *testing.T) {
	chain := &chaintest.Fake{ID: 1}
	rt, _ := newRuntime(t, chain, map[string]string{"EVM_PRIVATE_KEY": testKey, "EVM_PROVIDER_URL": fakeRPCURL})
	_, err := dispatch(t, rt, sendTokensAction(), "send 5 DOGE to "+recipient, nil)
	require.Error(t, err)
	assert.Equal(t, clierr.KindValidation, clierr.KindOf(err))
	assert.Empty(t, chain.Sent)
}

func TestSendRequiresKey(t *testing.T) {
	chain := &chaintest.Fake{ID: 1}
	rt, _ := newRuntime(t, chain, map[string]string{})
	_, err := dispatch(t, rt, sendTokensAction(), "send 1 ETH to "+recipient, nil)
	require.Error(t, err)
	assert.Equal(t, clierr.KindConfiguration, clierr.KindOf(err))
}

func TestSendRevertedReceiptFailsPlan(t *testing.T) {
	chain := &chaintest.Fake{ID: 1, Reverted: true}
	rt, _ := newRuntime(t, chain, map[string]string{"EVM_PRIVATE_KEY": testKey, "EVM_PROVIDER_URL": fakeRPCURL})
	contents, err := dispatch(t, rt, sendTokensAction(), "", action.Options{"amount": "1", "to": recipient})
	require.Error(t, err)
	assert.Equal(t, clierr.KindAPI, clierr.KindOf(err))
	assert.False(t, contents[0].Success)
}

func TestBalanceOfExplicitAddress(t *testing.T) {
	chain := &chaintest.Fake{ID: 1, Balance: big.NewInt(1_500_000_000_000_000_000)}
	rt, _ := newRuntime(t, chain, map[string]string{"ETHEREUM_PROVIDER_ETHEREUM": fakeRPCURL})
	contents, err := dispatch(t, rt, balanceAction(), "balance of "+recipient, nil)
	require.NoError(t, err)
	assert.Contains(t, contents[0].Text, "1.5 ETH on Ethereum")
}

func TestBalanceOfTokenForAgentWallet(t *testing.T) {
	chain := &chaintest.Fake{ID: 137}
	chain.Call = erc20Responder(t)
	rt, _ := newRuntime(t, chain, map[string]string{"EVM_PRIVATE_KEY": testKey, "ETHEREUM_PROVIDER_POLYGON": fakeRPCURL})
	contents, err := dispatch(t, rt, balanceAction(), "my balance on polygon", action.Options{"token": usdcAddress})
	require.NoError(t, err)
	res := contents[0].Data.(BalanceResult)
	assert.Equal(t, "7.25", res.Balance)
	assert.Equal(t, "USDC", res.Token.Symbol)
	assert.Equal(t, "polygon", res.Chain.Slug)
}

func TestBalanceWithoutAddressOrKey(t *testing.T) {
	rt, _ := newRuntime(t, &chaintest.Fake{ID: 1}, map[string]string{})
	_, err := dispatch(t, rt, balanceAction(), "what is my balance", nil)
	assert.Equal(t, clierr.KindConfiguration, clierr.KindOf(err))
}

func TestProviderSettingKey(t *testing.T) {
	chain := &chaintest.Fake{ID: 84532}
	rt, _ := newRuntime(t, chain, map[string]string{"ETHEREUM_PROVIDER_BASE_SEPOLIA": "http://sepolia.test"})
	parsed, err := resolveChain(rt, "base-sepolia")
	require.NoError(t, err)
	url, err := ProviderURL(rt, parsed)
	require.NoError(t, err)
	assert.Equal(t, "http://sepolia.test", url)
}
