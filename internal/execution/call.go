package execution

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
)

// ContractCall is a single eth_call against a contract method.
type ContractCall struct {
	ABI    abi.ABI
	To     common.Address
	From   common.Address
	Value  *big.Int
	Method string
	Args   []any
}

// Pack returns the calldata for the call.
func (c ContractCall) Pack() ([]byte, error) {
	data, err := c.ABI.Pack(c.Method, c.Args...)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeValidation, fmt.Sprintf("encode %s call", c.Method), err)
	}
	return data, nil
}

// CallContract runs c with eth_call at the latest block and unpacks the outputs.
// Reverts are decoded into simulation errors.
func CallContract(ctx context.Context, client ChainClient, c ContractCall) ([]any, error) {
	data, err := c.Pack()
	if err != nil {
		return nil, err
	}
	to := c.To
	msg := ethereum.CallMsg{From: c.From, To: &to, Value: c.Value, Data: data}
	raw, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, wrapEVMExecutionError(clierr.CodeSimulation, "call "+c.Method, err)
	}
	out, err := c.ABI.Unpack(c.Method, raw)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("decode %s result", c.Method), err)
	}
	return out, nil
}

// CallUint256 runs a call whose first output is a uint.
func CallUint256(ctx context.Context, client ChainClient, c ContractCall) (*big.Int, error) {
	out, err := CallContract(ctx, client, c)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, clierr.New(clierr.CodeUnavailable, c.Method+" returned no value")
	}
	switch v := out[0].(type) {
	case *big.Int:
		return v, nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("%s returned %T, want integer", c.Method, out[0]))
	}
}

// MustParseABI parses a JSON ABI known at compile time.
func MustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
