package form

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/agentkit/internal/action"
	"github.com/ggonzalez94/agentkit/internal/cache"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/execution/chaintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey      = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	curvesAddr   = "0x00000000000000000000000000000000000C0ffe"
	subject      = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	tokenAddress = "0x00000000000000000000000000000000000Ee20a"
	formRPC      = "http://form.test"
)

type curvesState struct {
	buyPrice   *big.Int
	sellPrice  *big.Int
	balance    *big.Int
	erc20      common.Address
	priceReads int
}

func (s *curvesState) respond(t *testing.T) func(ethereum.CallMsg) ([]byte, error) {
	return func(msg ethereum.CallMsg) ([]byte, error) {
		if method, err := curvesABI.MethodById(msg.Data[:4]); err == nil {
			switch method.Name {
			case "getBuyPriceAfterFee":
				s.priceReads++
				return method.Outputs.Pack(s.buyPrice)
			case "getSellPriceAfterFee":
				s.priceReads++
				return method.Outputs.Pack(s.sellPrice)
			case "curvesTokenBalance":
				return method.Outputs.Pack(s.balance)
			case "externalCurvesTokens":
				return method.Outputs.Pack("Agent Token", "AGT", s.erc20)
			}
			return nil, nil
		}
		method, err := erc20ABI.MethodById(msg.Data[:4])
		require.NoError(t, err)
		return method.Outputs.Pack(big.NewInt(0).Mul(big.NewInt(3), big.NewInt(1_000_000_000_000_000_000)))
	}
}

func setup(t *testing.T, settings map[string]string) (action.Runtime, *chaintest.Fake, *curvesState) {
	t.Helper()
	base := map[string]string{
		"FORM_PRIVATE_KEY":              testKey,
		"FORM_RPC_URL":                  formRPC,
		"FORM_CURVES_QUADRATIC_ADDRESS": curvesAddr,
	}
	for k, v := range settings {
		base[k] = v
	}
	state := &curvesState{buyPrice: big.NewInt(2_100_000_000_000_000), sellPrice: big.NewInt(900_000_000_000_000), balance: big.NewInt(5)}
	chain := &chaintest.Fake{ID: 478, Balance: big.NewInt(420_000_000_000_000_000)}
	chain.Call = state.respond(t)
	mem, err := cache.NewTiered(nil, 0)
	require.NoError(t, err)
	t.Cleanup(mem.Close)
	rt := action.NewRuntime(action.RuntimeConfig{
		Settings: func(k string) string { return base[k] },
		Cache:    mem,
		Dialer:   chain.Dialer(),
	})
	return rt, chain, state
}

func find(t *testing.T, name string) *action.Action {
	t.Helper()
	for _, a := range Plugin().Actions {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("action %s not registered", name)
	return nil
}

func run(t *testing.T, rt action.Runtime, name, text string, opts action.Options) ([]action.Content, error) {
	t.Helper()
	return action.Dispatch(context.Background(), rt, find(t, name), action.NewMessage("tester", text), nil, opts, nil)
}

func unpackSent(t *testing.T, data []byte) (string, []any) {
	t.Helper()
	method, err := curvesABI.MethodById(data[:4])
	require.NoError(t, err)
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	return method.Name, args
}

func TestBuyPaysAfterFeePrice(t *testing.T) {
	rt, chain, _ := setup(t, nil)
	contents, err := run(t, rt, "buy_curves_token", "Buy 2 curves tokens of "+subject, nil)
	require.NoError(t, err)
	assert.Contains(t, contents[0].Text, "for 0.0021 ETH")
	assert.Contains(t, contents[0].Text, "https://explorer.form.network/tx/0x")

	tx := chain.LastSent()
	require.NotNil(t, tx)
	assert.Equal(t, common.HexToAddress(curvesAddr), *tx.To())
	assert.Equal(t, "2100000000000000", tx.Value().String())
	name, args := unpackSent(t, tx.Data())
	assert.Equal(t, "buyCurvesToken", name)
	assert.Equal(t, common.HexToAddress(subject), args[0])
	assert.Equal(t, int64(2), args[1].(*big.Int).Int64())
}

func TestBuyRejectsFractionalAmount(t *testing.T) {
	rt, chain, _ := setup(t, nil)
	_, err := run(t, rt, "buy_curves_token", "Buy 2.5 curves tokens of "+subject, nil)
	require.Error(t, err)
	assert.Equal(t, clierr.KindValidation, clierr.KindOf(err))
	assert.Contains(t, err.Error(), `got "2.5"`)
	assert.Empty(t, chain.Sent)
}

func TestSellChecksBalanceFirst(t *testing.T) {
	rt, chain, state := setup(t, nil)
	state.balance = big.NewInt(1)
	_, err := run(t, rt, "sell_curves_token", "sell 3 curves of "+subject, nil)
	require.Error(t, err)
	assert.Equal(t, clierr.KindValidation, clierr.KindOf(err))
	assert.Contains(t, err.Error(), "insufficient curves balance")
	assert.Empty(t, chain.Sent)
}

func TestDepositScalesToERC20Units(t *testing.T) {
	rt, chain, _ := setup(t, nil)
	_, err := run(t, rt, "deposit_curves_token", "deposit 3 tokens of "+subject+" back to curves", nil)
	require.NoError(t, err)
	name, args := unpackSent(t, chain.LastSent().Data())
	assert.Equal(t, "deposit", name)
	assert.Equal(t, "3000000000000000000", args[1].(*big.Int).String())
}

func TestWithdrawUsesWholeTokens(t *testing.T) {
	rt, chain, _ := setup(t, nil)
	_, err := run(t, rt, "withdraw_curves_token", "withdraw 4 curves of "+subject, nil)
	require.NoError(t, err)
	name, args := unpackSent(t, chain.LastSent().Data())
	assert.Equal(t, "withdraw", name)
	assert.Equal(t, int64(4), args[1].(*big.Int).Int64())
}

func TestMintNamesTokenBeforeMinting(t *testing.T) {
	rt, chain, _ := setup(t, nil)
	contents, err := run(t, rt, "mint_curves_erc20", "Mint the ERC20 for "+subject+" named Agent Token symbol agt", nil)
	require.NoError(t, err)
	assert.Contains(t, contents[0].Text, "ERC20 Agent Token (AGT)")
	require.Len(t, chain.Sent, 2)
	first, args := unpackSent(t, chain.Sent[0].Data())
	assert.Equal(t, "setNameAndSymbol", first)
	assert.Equal(t, "Agent Token", args[1])
	assert.Equal(t, "AGT", args[2])
	second, _ := unpackSent(t, chain.Sent[1].Data())
	assert.Equal(t, "mint", second)
	assert.Equal(t, chain.Sent[0].Nonce()+1, chain.Sent[1].Nonce())
}

func TestBuyPriceIsCached(t *testing.T) {
	rt, _, state := setup(t, nil)
	for i := 0; i < 2; i++ {
		contents, err := run(t, rt, "get_curves_buy_price", "price to buy 5 curves of "+subject, nil)
		require.NoError(t, err)
		assert.Contains(t, contents[0].Text, "costs 0.0021 ETH")
	}
	assert.Equal(t, 1, state.priceReads)
}

func TestLogarithmicFormulaNeedsItsAddress(t *testing.T) {
	rt, _, _ := setup(t, nil)
	_, err := run(t, rt, "get_curves_sell_price", "sell price of 1 logarithmic curves of "+subject, nil)
	require.Error(t, err)
	assert.Equal(t, clierr.KindConfiguration, clierr.KindOf(err))
	assert.Contains(t, err.Error(), "FORM_CURVES_LOGARITHMIC_ADDRESS")
}

func TestCurvesBalanceForOwner(t *testing.T) {
	rt, _, _ := setup(t, nil)
	owner := "0x1111111111111111111111111111111111111111"
	contents, err := run(t, rt, "get_curves_balance", "[subject]"+subject+"[/subject]", action.Options{"owner": owner})
	require.NoError(t, err)
	assert.Contains(t, contents[0].Text, "holds 5 curves tokens")
	assert.Contains(t, contents[0].Text, common.HexToAddress(owner).Hex())
}

func TestERC20Details(t *testing.T) {
	rt, _, state := setup(t, nil)
	contents, err := run(t, rt, "get_curves_erc20_details", "erc20 of "+subject, nil)
	require.NoError(t, err)
	assert.Contains(t, contents[0].Text, "No ERC20 has been minted")

	state.erc20 = common.HexToAddress(tokenAddress)
	contents, err = run(t, rt, "get_curves_erc20_details", "erc20 of "+subject, nil)
	require.NoError(t, err)
	assert.Contains(t, contents[0].Text, "Agent Token (AGT)")
	assert.Contains(t, contents[0].Text, "Your balance: 3 AGT")
}

func TestFormBalanceOnTestnet(t *testing.T) {
	rt, chain, _ := setup(t, map[string]string{"FORM_TESTNET": "true", "FORM_RPC_URL": ""})
	contents, err := run(t, rt, "get_form_balance", "what's my balance", nil)
	require.NoError(t, err)
	assert.Contains(t, contents[0].Text, "Form Testnet is 0.42 ETH")
	assert.Equal(t, []string{"https://sepolia-rpc.form.network/http"}, chain.Dials)
}

func TestMissingKey(t *testing.T) {
	rt, _, _ := setup(t, map[string]string{"FORM_PRIVATE_KEY": ""})
	_, err := run(t, rt, "get_form_balance", "balance", nil)
	assert.Equal(t, clierr.KindConfiguration, clierr.KindOf(err))
}
