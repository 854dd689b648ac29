package cosmos

import (
	"testing"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ggonzalez94/agentkit/internal/action"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeySharesAccountAcrossPrefixes(t *testing.T) {
	key, err := DeriveKey("  "+testMnemonic+"\n", 118)
	require.NoError(t, err)
	hub, err := key.Address("cosmos")
	require.NoError(t, err)
	osmo, err := key.Address("osmo")
	require.NoError(t, err)

	_, hubBytes, err := bech32.DecodeAndConvert(hub)
	require.NoError(t, err)
	_, osmoBytes, err := bech32.DecodeAndConvert(osmo)
	require.NoError(t, err)
	assert.Equal(t, hubBytes, osmoBytes)
	assert.Len(t, hubBytes, 20)

	other, err := DeriveKey(testMnemonic, 330)
	require.NoError(t, err)
	terra, err := other.Address("cosmos")
	require.NoError(t, err)
	assert.NotEqual(t, hub, terra)
}

func TestDeriveKeyRequiresMnemonic(t *testing.T) {
	_, err := DeriveKey(" ", 118)
	require.Error(t, err)
	assert.Equal(t, clierr.KindConfiguration, clierr.KindOf(err))
}

func TestValidateAddress(t *testing.T) {
	key, err := DeriveKey(testMnemonic, 118)
	require.NoError(t, err)
	addr, err := key.Address("cosmos")
	require.NoError(t, err)

	assert.NoError(t, ValidateAddress(addr, "cosmos"))
	assert.ErrorContains(t, ValidateAddress(addr, "osmo"), "belongs to cosmos")
	assert.ErrorContains(t, ValidateAddress("cosmos1notanaddress", "cosmos"), "invalid bech32")
}

func TestAvailableChains(t *testing.T) {
	chains, err := availableChains(action.MapSettings(map[string]string{}))
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Equal(t, "cosmoshub", chains[0].Name)

	chains, err = availableChains(func(k string) string {
		return map[string]string{
			SettingAvailableChains:    "osmosis, celestia",
			"COSMOS_OSMOSIS_REST_URL": "http://lcd.local/",
		}[k]
	})
	require.NoError(t, err)
	require.Len(t, chains, 2)
	assert.Equal(t, "http://lcd.local", chains[0].RESTURL)
	assert.Equal(t, "utia", chains[1].Denom)

	_, err = availableChains(func(k string) string { return map[string]string{SettingAvailableChains: "juno"}[k] })
	assert.ErrorContains(t, err, `unknown cosmos chain "juno"`)
}

func TestPickChain(t *testing.T) {
	chains, err := availableChains(func(k string) string { return map[string]string{SettingAvailableChains: "cosmoshub,osmosis"}[k] })
	require.NoError(t, err)

	c, err := pickChain(chains, "", "osmo")
	require.NoError(t, err)
	assert.Equal(t, "osmosis", c.Name)
	c, err = pickChain(chains, "CosmosHub", "")
	require.NoError(t, err)
	assert.Equal(t, "cosmoshub", c.Name)
	_, err = pickChain(chains, "", "")
	assert.ErrorContains(t, err, "specify the chain")
	_, err = pickChain(chains, "celestia", "")
	assert.ErrorContains(t, err, "chain celestia is not in")
	_, err = pickChain(chains, "", "axelar")
	assert.ErrorContains(t, err, "chain axelar is not in")
	_, err = pickChain(chains, "", "zzz")
	assert.ErrorContains(t, err, "chain prefix zzz is not in")
}

func TestFeeAndGasAdjustment(t *testing.T) {
	assert.Equal(t, uint64(140000), adjustGas(100000))
	assert.Equal(t, uint64(16), adjustGas(11))
	fee, err := feeFor("0.025", 140001)
	require.NoError(t, err)
	assert.Equal(t, "3501", fee.String())
	_, err = feeFor("cheap", 1)
	assert.Error(t, err)
}
