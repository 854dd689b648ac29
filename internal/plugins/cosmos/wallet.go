package cosmos

import (
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/registry"
)

const (
	SettingMnemonic        = "COSMOS_RECOVERY_PHRASE"
	SettingAvailableChains = "COSMOS_AVAILABLE_CHAINS"
	defaultChain           = "cosmoshub"
)

// Key is a secp256k1 account derived from the recovery phrase for one coin type.
type Key struct {
	priv *secp256k1.PrivKey
}

// DeriveKey derives the first account (m/44'/coinType'/0'/0/0) of mnemonic.
func DeriveKey(mnemonic string, coinType uint32) (*Key, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if mnemonic == "" {
		return nil, clierr.Configuration(SettingMnemonic + " is not set")
	}
	path := hd.CreateHDPath(coinType, 0, 0).String()
	raw, err := hd.Secp256k1.Derive()(mnemonic, "", path)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "derive cosmos key", err)
	}
	return &Key{priv: &secp256k1.PrivKey{Key: raw}}, nil
}

// Address encodes the account address with the chain's bech32 prefix.
func (k *Key) Address(prefix string) (string, error) {
	addr, err := bech32.ConvertAndEncode(prefix, k.priv.PubKey().Address())
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "encode bech32 address", err)
	}
	return addr, nil
}

func (k *Key) Sign(msg []byte) ([]byte, error) {
	return k.priv.Sign(msg)
}

// ValidateAddress checks that addr is bech32 with the expected prefix.
func ValidateAddress(addr, prefix string) error {
	hrp, data, err := bech32.DecodeAndConvert(addr)
	if err != nil {
		return clierr.Validation(fmt.Sprintf("invalid bech32 address %q", addr))
	}
	if hrp != prefix {
		return clierr.Validation(fmt.Sprintf("address %s belongs to %s, not %s", addr, hrp, prefix))
	}
	if len(data) != 20 && len(data) != 32 {
		return clierr.Validation(fmt.Sprintf("address %s has invalid length", addr))
	}
	return nil
}

// availableChains returns the configured chains, defaulting to the Cosmos Hub.
func availableChains(setting func(string) string) ([]registry.CosmosChain, error) {
	raw := strings.TrimSpace(setting(SettingAvailableChains))
	if raw == "" {
		raw = defaultChain
	}
	var out []registry.CosmosChain
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		chain, ok := registry.CosmosChainByName(name)
		if !ok {
			return nil, clierr.Configuration(fmt.Sprintf("unknown cosmos chain %q in %s (known: %s)", name, SettingAvailableChains, strings.Join(registry.CosmosChainNames(), ", ")))
		}
		if url := setting(restSettingKey(chain)); url != "" {
			chain.RESTURL = strings.TrimRight(url, "/")
		}
		out = append(out, chain)
	}
	return out, nil
}

// restSettingKey names the REST endpoint override, e.g. COSMOS_OSMOSIS_REST_URL.
func restSettingKey(chain registry.CosmosChain) string {
	return "COSMOS_" + strings.ToUpper(chain.Name) + "_REST_URL"
}

func pickChain(chains []registry.CosmosChain, name, prefix string) (registry.CosmosChain, error) {
	for _, c := range chains {
		if name != "" && strings.EqualFold(c.Name, name) {
			return c, nil
		}
		if name == "" && prefix != "" && c.Bech32Prefix == prefix {
			return c, nil
		}
	}
	if name == "" && prefix == "" && len(chains) == 1 {
		return chains[0], nil
	}
	want := name
	if want == "" {
		if prefix == "" {
			return registry.CosmosChain{}, clierr.Validation("specify the chain to use")
		}
		want = "prefix " + prefix
		if known, ok := registry.CosmosChainByPrefix(prefix); ok {
			want = known.Name
		}
	}
	return registry.CosmosChain{}, clierr.Validation(fmt.Sprintf("chain %s is not in %s", want, SettingAvailableChains))
}
