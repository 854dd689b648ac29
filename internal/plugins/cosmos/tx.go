package cosmos

import (
	"math/big"

	"cosmossdk.io/math"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
)

// sendTx holds everything needed to sign a bank send in direct mode.
type sendTx struct {
	From          string
	To            string
	Denom         string
	Amount        *big.Int
	Memo          string
	ChainID       string
	AccountNumber uint64
	Sequence      uint64
	GasLimit      uint64
	FeeAmount     math.Int
}

// build encodes the TxRaw. With sign unset the signature slot is left empty,
// which is what the simulate endpoint expects.
func (t sendTx) build(key *Key, sign bool) ([]byte, error) {
	msg := &banktypes.MsgSend{
		FromAddress: t.From,
		ToAddress:   t.To,
		Amount:      sdk.NewCoins(sdk.NewCoin(t.Denom, math.NewIntFromBigInt(t.Amount))),
	}
	msgAny, err := codectypes.NewAnyWithValue(msg)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack MsgSend", err)
	}
	body := txtypes.TxBody{Messages: []*codectypes.Any{msgAny}, Memo: t.Memo}
	bodyBytes, err := body.Marshal()
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode tx body", err)
	}
	if key == nil {
		return nil, clierr.New(clierr.CodeInternal, "missing signing key")
	}
	pubAny, err := codectypes.NewAnyWithValue(key.priv.PubKey())
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack public key", err)
	}
	fee := sdk.NewCoins()
	if !t.FeeAmount.IsNil() && t.FeeAmount.IsPositive() {
		fee = sdk.NewCoins(sdk.NewCoin(t.Denom, t.FeeAmount))
	}
	authInfo := txtypes.AuthInfo{
		SignerInfos: []*txtypes.SignerInfo{{
			PublicKey: pubAny,
			ModeInfo: &txtypes.ModeInfo{
				Sum: &txtypes.ModeInfo_Single_{Single: &txtypes.ModeInfo_Single{Mode: signing.SignMode_SIGN_MODE_DIRECT}},
			},
			Sequence: t.Sequence,
		}},
		Fee: &txtypes.Fee{Amount: fee, GasLimit: t.GasLimit},
	}
	authBytes, err := authInfo.Marshal()
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode auth info", err)
	}
	sig := []byte{}
	if sign {
		doc := txtypes.SignDoc{BodyBytes: bodyBytes, AuthInfoBytes: authBytes, ChainId: t.ChainID, AccountNumber: t.AccountNumber}
		signBytes, err := doc.Marshal()
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "encode sign doc", err)
		}
		sig, err = key.Sign(signBytes)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeSigner, "sign cosmos tx", err)
		}
	}
	raw := txtypes.TxRaw{BodyBytes: bodyBytes, AuthInfoBytes: authBytes, Signatures: [][]byte{sig}}
	out, err := raw.Marshal()
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode tx", err)
	}
	return out, nil
}
