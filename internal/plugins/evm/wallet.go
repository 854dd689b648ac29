package evm

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/agentkit/internal/action"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/execution"
	"github.com/ggonzalez94/agentkit/internal/execution/signer"
	"github.com/ggonzalez94/agentkit/internal/id"
	"github.com/ggonzalez94/agentkit/internal/registry"
)

const (
	SettingPrefix       = "EVM"
	SettingProviderURL  = "EVM_PROVIDER_URL"
	SettingDefaultChain = "EVM_DEFAULT_CHAIN"
	chainProviderPrefix = "ETHEREUM_PROVIDER_"
	defaultChain        = "ethereum"
	nativeTokenDecimals = 18
)

var erc20ABI = execution.MustParseABI(registry.ERC20ABI)

// ProviderSettingKey names the per-chain RPC override, e.g. ETHEREUM_PROVIDER_BASE_SEPOLIA.
func ProviderSettingKey(chain id.Chain) string {
	return chainProviderPrefix + strings.ToUpper(strings.ReplaceAll(chain.Slug, "-", "_"))
}

// ProviderURL picks the RPC endpoint for chain: the per-chain setting, then
// EVM_PROVIDER_URL for the default chain, then the built-in public endpoint.
func ProviderURL(rt action.Runtime, chain id.Chain) (string, error) {
	if v := rt.Setting(ProviderSettingKey(chain)); v != "" {
		return v, nil
	}
	if v := rt.Setting(SettingProviderURL); v != "" && chain.Slug == defaultChainSlug(rt) {
		return v, nil
	}
	url, err := registry.ResolveRPCURL("", chain.EVMChainID)
	if err != nil {
		return "", clierr.Configuration(err.Error())
	}
	return url, nil
}

func defaultChainSlug(rt action.Runtime) string {
	if v := rt.Setting(SettingDefaultChain); v != "" {
		if chain, err := id.ParseChain(v); err == nil {
			return chain.Slug
		}
	}
	return defaultChain
}

func resolveChain(rt action.Runtime, raw string) (id.Chain, error) {
	if strings.TrimSpace(raw) == "" {
		raw = defaultChainSlug(rt)
	}
	chain, err := id.ParseChain(raw)
	if err != nil {
		return id.Chain{}, clierr.Validation(err.Error())
	}
	return chain, nil
}

func hasKey(rt action.Runtime) bool {
	for _, suffix := range []string{signer.SuffixPrivateKey, signer.SuffixPrivateKeyFile, signer.SuffixKeystorePath} {
		if rt.Setting(SettingPrefix+suffix) != "" {
			return true
		}
	}
	return false
}

func loadSigner(rt action.Runtime) (*signer.LocalSigner, error) {
	s, err := signer.FromSettings(rt.Setting, SettingPrefix)
	if err != nil {
		if errors.Is(err, signer.ErrNoKey) {
			return nil, clierr.Configuration(err.Error())
		}
		return nil, clierr.Wrap(clierr.CodeSigner, "load EVM signer", err)
	}
	return s, nil
}

// Token is an ERC20 token, or the native coin when Address is zero.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals int            `json:"decimals"`
}

func (t Token) Native() bool { return t.Address == (common.Address{}) }

// resolveToken interprets raw as a contract address, the native symbol, or empty for native.
func resolveToken(ctx context.Context, client execution.ChainClient, chain id.Chain, raw string) (Token, error) {
	raw = strings.TrimSpace(raw)
	native := Token{Symbol: chain.NativeSymbol, Decimals: nativeTokenDecimals}
	if raw == "" || strings.EqualFold(raw, chain.NativeSymbol) {
		return native, nil
	}
	if !common.IsHexAddress(raw) {
		return Token{}, clierr.Validation("unknown token " + raw + " on " + chain.Slug + "; pass the token contract address")
	}
	addr := common.HexToAddress(raw)
	decimals, err := execution.CallUint256(ctx, client, execution.ContractCall{ABI: erc20ABI, To: addr, Method: "decimals"})
	if err != nil {
		return Token{}, err
	}
	symbol := "tokens"
	if out, err := execution.CallContract(ctx, client, execution.ContractCall{ABI: erc20ABI, To: addr, Method: "symbol"}); err == nil && len(out) > 0 {
		if s, ok := out[0].(string); ok && s != "" {
			symbol = s
		}
	}
	return Token{Address: addr, Symbol: symbol, Decimals: int(decimals.Int64())}, nil
}

func balanceOf(ctx context.Context, client execution.ChainClient, token Token, owner common.Address) (*big.Int, error) {
	if token.Native() {
		bal, err := client.BalanceAt(ctx, owner, nil)
		if err != nil {
			return nil, clierr.API("read native balance", err)
		}
		return bal, nil
	}
	return execution.CallUint256(ctx, client, execution.ContractCall{ABI: erc20ABI, To: token.Address, Method: "balanceOf", Args: []any{owner}})
}

func dial(ctx context.Context, rt action.Runtime, url string) (execution.ChainClient, error) {
	client, err := rt.ChainDialer()(ctx, url)
	if err != nil {
		return nil, clierr.API("connect rpc", err)
	}
	return client, nil
}
