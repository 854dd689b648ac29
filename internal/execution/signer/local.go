package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Setting suffixes appended to a plugin prefix, e.g. EVM_PRIVATE_KEY or FORM_KEYSTORE_PATH.
const (
	SuffixPrivateKey           = "_PRIVATE_KEY"
	SuffixPrivateKeyFile       = "_PRIVATE_KEY_FILE"
	SuffixKeystorePath         = "_KEYSTORE_PATH"
	SuffixKeystorePassword     = "_KEYSTORE_PASSWORD"
	SuffixKeystorePasswordFile = "_KEYSTORE_PASSWORD_FILE"
)

// ErrNoKey reports that none of the key settings for a prefix is set.
var ErrNoKey = errors.New("no signing key configured")

type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

func (s *LocalSigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	if s == nil || s.privateKey == nil {
		return nil, errors.New("local signer is not initialized")
	}
	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, s.privateKey)
}

// FromSettings builds a signer from prefixed settings. Precedence is hex key, key file, keystore.
func FromSettings(lookup func(string) string, prefix string) (*LocalSigner, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	cfg := LocalSignerConfig{
		PrivateKeyHex:        lookup(prefix + SuffixPrivateKey),
		PrivateKeyFile:       lookup(prefix + SuffixPrivateKeyFile),
		KeystorePath:         lookup(prefix + SuffixKeystorePath),
		KeystorePassword:     lookup(prefix + SuffixKeystorePassword),
		KeystorePasswordFile: lookup(prefix + SuffixKeystorePasswordFile),
	}
	if strings.TrimSpace(cfg.PrivateKeyHex+cfg.PrivateKeyFile+cfg.KeystorePath) == "" {
		return nil, fmt.Errorf("%w: set %s, %s or %s", ErrNoKey, prefix+SuffixPrivateKey, prefix+SuffixPrivateKeyFile, prefix+SuffixKeystorePath)
	}
	return NewLocalSigner(cfg)
}

type LocalSignerConfig struct {
	PrivateKeyHex        string
	PrivateKeyFile       string
	KeystorePath         string
	KeystorePassword     string
	KeystorePasswordFile string
}

func NewLocalSigner(cfg LocalSignerConfig) (*LocalSigner, error) {
	pk, err := loadPrivateKey(cfg)
	if err != nil {
		return nil, err
	}
	pub, ok := pk.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("invalid ECDSA public key")
	}
	return &LocalSigner{privateKey: pk, address: crypto.PubkeyToAddress(*pub)}, nil
}

func loadPrivateKey(cfg LocalSignerConfig) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(cfg.PrivateKeyHex) != "" {
		return parseHexKey(cfg.PrivateKeyHex)
	}
	if strings.TrimSpace(cfg.PrivateKeyFile) != "" {
		buf, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key file: %w", err)
		}
		return parseHexKey(string(buf))
	}
	if strings.TrimSpace(cfg.KeystorePath) != "" {
		password := cfg.KeystorePassword
		if strings.TrimSpace(password) == "" && strings.TrimSpace(cfg.KeystorePasswordFile) != "" {
			buf, err := os.ReadFile(cfg.KeystorePasswordFile)
			if err != nil {
				return nil, fmt.Errorf("read keystore password file: %w", err)
			}
			password = strings.TrimSpace(string(buf))
		}
		if strings.TrimSpace(password) == "" {
			return nil, fmt.Errorf("keystore password is required")
		}
		buf, err := os.ReadFile(cfg.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("read keystore file: %w", err)
		}
		key, err := keystore.DecryptKey(buf, password)
		if err != nil {
			return nil, fmt.Errorf("decrypt keystore: %w", err)
		}
		return key.PrivateKey, nil
	}
	return nil, ErrNoKey
}

func parseHexKey(raw string) (*ecdsa.PrivateKey, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if clean == "" {
		return nil, fmt.Errorf("empty private key")
	}
	pk, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return pk, nil
}
