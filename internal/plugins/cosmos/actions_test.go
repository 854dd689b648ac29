package cosmos

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/ggonzalez94/agentkit/internal/action"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testHash     = "9F3C2A6B1E0D4C8B7A6958473625140F1E2D3C4B5A69788796A5B4C3D2E1F001"
)

// lcd is a minimal Cosmos REST endpoint recording what it receives.
type lcd struct {
	mu          sync.Mutex
	balance     string
	gasUsed     string
	checkCode   uint32
	pendingPoll int
	simulated   []*txtypes.TxRaw
	broadcast   []*txtypes.TxRaw
	polls       int
}

func (l *lcd) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		defer l.mu.Unlock()
		path := r.URL.Path
		switch {
		case strings.HasPrefix(path, "/cosmos/auth/v1beta1/accounts/"):
			writeJSON(w, `{"account":{"@type":"/cosmos.auth.v1beta1.BaseAccount","account_number":"12","sequence":"3"}}`)
		case strings.HasPrefix(path, "/cosmos/bank/v1beta1/balances/"):
			writeJSON(w, `{"balances":[{"denom":"ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2","amount":"5"},{"denom":"uatom","amount":"`+l.balance+`"}]}`)
		case path == "/cosmos/tx/v1beta1/simulate":
			l.simulated = append(l.simulated, decodeTx(t, r))
			writeJSON(w, `{"gas_info":{"gas_wanted":"200000","gas_used":"`+l.gasUsed+`"}}`)
		case path == "/cosmos/tx/v1beta1/txs" && r.Method == http.MethodPost:
			l.broadcast = append(l.broadcast, decodeTx(t, r))
			resp, _ := json.Marshal(map[string]any{"tx_response": map[string]any{"txhash": testHash, "code": l.checkCode, "raw_log": "insufficient fees"}})
			writeJSON(w, string(resp))
		case path == "/cosmos/tx/v1beta1/txs/"+testHash:
			l.polls++
			if l.polls <= l.pendingPoll {
				http.Error(w, `{"code":5,"message":"tx not found"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, `{"tx_response":{"txhash":"`+testHash+`","height":"4242","code":0,"gas_used":"91000"}}`)
		default:
			http.NotFound(w, r)
		}
	}
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func decodeTx(t *testing.T, r *http.Request) *txtypes.TxRaw {
	var req struct {
		TxBytes string `json:"tx_bytes"`
		Mode    string `json:"mode"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	raw, err := base64.StdEncoding.DecodeString(req.TxBytes)
	require.NoError(t, err)
	var tx txtypes.TxRaw
	require.NoError(t, tx.Unmarshal(raw))
	return &tx
}

func newRuntime(t *testing.T, server *lcd, settings map[string]string) action.Runtime {
	t.Helper()
	srv := httptest.NewServer(server.handler(t))
	t.Cleanup(srv.Close)
	merged := map[string]string{
		SettingMnemonic:             testMnemonic,
		"COSMOS_COSMOSHUB_REST_URL": srv.URL,
		"COSMOS_OSMOSIS_REST_URL":   srv.URL,
	}
	for k, v := range settings {
		merged[k] = v
	}
	return action.NewRuntime(action.RuntimeConfig{Settings: func(k string) string { return merged[k] }})
}

func fastPolling(t *testing.T) {
	prevInterval, prevTimeout := inclusionPollInterval, inclusionTimeout
	inclusionPollInterval, inclusionTimeout = 5*time.Millisecond, 2*time.Second
	t.Cleanup(func() { inclusionPollInterval, inclusionTimeout = prevInterval, prevTimeout })
}

func dispatch(t *testing.T, rt action.Runtime, act *action.Action, text string, opts action.Options) ([]action.Content, error) {
	t.Helper()
	return action.Dispatch(context.Background(), rt, act, action.NewMessage("tester", text), nil, opts, nil)
}

func walletAddress(t *testing.T, prefix string) string {
	key, err := DeriveKey(testMnemonic, 118)
	require.NoError(t, err)
	addr, err := key.Address(prefix)
	require.NoError(t, err)
	return addr
}

func TestTransferSignsSimulatesAndWaits(t *testing.T) {
	fastPolling(t)
	server := &lcd{balance: "5000000", gasUsed: "100000", pendingPoll: 2}
	rt := newRuntime(t, server, nil)
	recipient := walletAddress(t, "cosmos")

	contents, err := dispatch(t, rt, transferAction(), "Send 1.5 ATOM to "+recipient, nil)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.True(t, contents[0].Success)
	assert.Contains(t, contents[0].Text, "Sent 1.5 ATOM to "+recipient+" on cosmoshub")
	assert.Contains(t, contents[0].Text, testHash)

	res := contents[0].Data.(TransferResult)
	assert.Equal(t, "1500000", res.BaseUnits)
	assert.Equal(t, uint64(140000), res.GasLimit)
	assert.Equal(t, "3500uatom", res.Fee)
	assert.Equal(t, "4242", res.Height)
	assert.Equal(t, 3, server.polls)

	require.Len(t, server.simulated, 1)
	require.Len(t, server.simulated[0].Signatures, 1)
	assert.Empty(t, server.simulated[0].Signatures[0])

	require.Len(t, server.broadcast, 1)
	raw := server.broadcast[0]
	var body txtypes.TxBody
	require.NoError(t, body.Unmarshal(raw.BodyBytes))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "/cosmos.bank.v1beta1.MsgSend", body.Messages[0].TypeUrl)
	var send banktypes.MsgSend
	require.NoError(t, send.Unmarshal(body.Messages[0].Value))
	assert.Equal(t, res.From, send.FromAddress)
	assert.Equal(t, recipient, send.ToAddress)
	assert.Equal(t, "1500000uatom", send.Amount.String())

	var auth txtypes.AuthInfo
	require.NoError(t, auth.Unmarshal(raw.AuthInfoBytes))
	assert.Equal(t, uint64(140000), auth.Fee.GasLimit)
	assert.Equal(t, "3500uatom", auth.Fee.Amount.String())
	require.Len(t, auth.SignerInfos, 1)
	assert.Equal(t, uint64(3), auth.SignerInfos[0].Sequence)

	key, err := DeriveKey(testMnemonic, 118)
	require.NoError(t, err)
	doc := txtypes.SignDoc{BodyBytes: raw.BodyBytes, AuthInfoBytes: raw.AuthInfoBytes, ChainId: "cosmoshub-4", AccountNumber: 12}
	signBytes, err := doc.Marshal()
	require.NoError(t, err)
	require.Len(t, raw.Signatures, 1)
	assert.True(t, key.priv.PubKey().VerifySignature(signBytes, raw.Signatures[0]))
}

func TestTransferInBaseDenomOnPrefixedChain(t *testing.T) {
	fastPolling(t)
	server := &lcd{balance: "5000000", gasUsed: "80000"}
	rt := newRuntime(t, server, map[string]string{SettingAvailableChains: "cosmoshub,osmosis"})
	recipient := walletAddress(t, "osmo")

	contents, err := dispatch(t, rt, transferAction(), "", action.Options{"amount": "250", "symbol": "uosmo", "to": recipient})
	require.Error(t, err)
	// the fake only reports uatom balances
	assert.Equal(t, string(clierr.KindValidation), contents[0].Error.Kind)
	assert.Contains(t, err.Error(), "insufficient balance")
	assert.Empty(t, server.broadcast)
	require.Len(t, server.simulated, 1)

	var body txtypes.TxBody
	require.NoError(t, body.Unmarshal(server.simulated[0].BodyBytes))
	var send banktypes.MsgSend
	require.NoError(t, send.Unmarshal(body.Messages[0].Value))
	assert.Equal(t, "250uosmo", send.Amount.String())
	assert.True(t, strings.HasPrefix(send.FromAddress, "osmo1"))
}

func TestTransferReadsThousandsSeparator(t *testing.T) {
	fastPolling(t)
	server := &lcd{balance: "5000000", gasUsed: "100000"}
	rt := newRuntime(t, server, nil)
	_, err := dispatch(t, rt, transferAction(), "Send 1,000 ATOM to "+walletAddress(t, "cosmos"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
	assert.Empty(t, server.broadcast)
	require.Len(t, server.simulated, 1)

	var body txtypes.TxBody
	require.NoError(t, body.Unmarshal(server.simulated[0].BodyBytes))
	var send banktypes.MsgSend
	require.NoError(t, send.Unmarshal(body.Messages[0].Value))
	assert.Equal(t, "1000000000uatom", send.Amount.String())
}

func TestTransferRejectsMalformedGrouping(t *testing.T) {
	server := &lcd{balance: "5000000", gasUsed: "100000"}
	rt := newRuntime(t, server, nil)
	_, err := dispatch(t, rt, transferAction(), "Send 1,00 ATOM to "+walletAddress(t, "cosmos"), nil)
	require.Error(t, err)
	assert.Equal(t, clierr.KindValidation, clierr.KindOf(err))
	assert.Contains(t, err.Error(), "missing amount")
	assert.Empty(t, server.simulated)
}

func TestTransferRejectsUnavailableChain(t *testing.T) {
	rt := newRuntime(t, &lcd{}, nil)
	_, err := dispatch(t, rt, transferAction(), "send 1 OSMO to "+walletAddress(t, "osmo"), nil)
	require.Error(t, err)
	assert.Equal(t, clierr.KindValidation, clierr.KindOf(err))
	assert.Contains(t, err.Error(), "COSMOS_AVAILABLE_CHAINS")
}

func TestTransferUnknownSymbol(t *testing.T) {
	rt := newRuntime(t, &lcd{}, nil)
	_, err := dispatch(t, rt, transferAction(), "send 1 DOGE to "+walletAddress(t, "cosmos"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOGE is not supported on cosmoshub")
}

func TestTransferBroadcastRejected(t *testing.T) {
	fastPolling(t)
	server := &lcd{balance: "5000000", gasUsed: "100000", checkCode: 13}
	rt := newRuntime(t, server, nil)
	_, err := dispatch(t, rt, transferAction(), "send 1 ATOM to "+walletAddress(t, "cosmos"), nil)
	require.Error(t, err)
	assert.Equal(t, clierr.KindAPI, clierr.KindOf(err))
	assert.Contains(t, err.Error(), "code 13")
	assert.Zero(t, server.polls)
}

func TestTransferRequiresMnemonic(t *testing.T) {
	rt := newRuntime(t, &lcd{}, map[string]string{SettingMnemonic: ""})
	contents, err := dispatch(t, rt, transferAction(), "send 1 ATOM to "+walletAddress(t, "cosmos"), nil)
	require.Error(t, err)
	assert.Equal(t, string(clierr.KindConfiguration), contents[0].Error.Kind)
}

func TestTransferMissingParams(t *testing.T) {
	rt := newRuntime(t, &lcd{}, nil)
	_, err := dispatch(t, rt, transferAction(), "send some tokens please", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing amount")
	assert.Contains(t, err.Error(), "missing to")
}

func TestBalanceAcrossAvailableChains(t *testing.T) {
	rt := newRuntime(t, &lcd{balance: "12500000"}, map[string]string{SettingAvailableChains: "cosmoshub, osmosis"})
	contents, err := dispatch(t, rt, balanceAction(), "what's my cosmos balance?", nil)
	require.NoError(t, err)
	res := contents[0].Data.([]ChainBalance)
	require.Len(t, res, 2)
	assert.Equal(t, "cosmoshub", res[0].Chain)
	assert.Equal(t, "12.5", res[0].Balance)
	assert.Equal(t, "osmosis", res[1].Chain)
	assert.Equal(t, "0", res[1].Balance)
	assert.True(t, strings.HasPrefix(res[1].Address, "osmo1"))
	assert.Contains(t, contents[0].Text, "holds 12.5 ATOM on cosmoshub")
}

func TestBalanceOfGivenAddress(t *testing.T) {
	rt := newRuntime(t, &lcd{balance: "7"}, map[string]string{SettingMnemonic: ""})
	addr := walletAddress(t, "cosmos")
	contents, err := dispatch(t, rt, balanceAction(), "balance of "+addr, nil)
	require.NoError(t, err)
	res := contents[0].Data.([]ChainBalance)
	require.Len(t, res, 1)
	assert.Equal(t, addr, res[0].Address)
	assert.Equal(t, "0.000007", res[0].Balance)
	assert.Len(t, res[0].Balances, 2)
}

func TestBalanceWithoutWalletOrAddress(t *testing.T) {
	rt := newRuntime(t, &lcd{}, map[string]string{SettingMnemonic: ""})
	_, err := dispatch(t, rt, balanceAction(), "balance", nil)
	require.Error(t, err)
	assert.Equal(t, clierr.KindConfiguration, clierr.KindOf(err))
}
