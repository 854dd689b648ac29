package execution

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/registry"
)

var (
	policyERC20ABI  = MustParseABI(registry.ERC20ABI)
	policyCurvesABI = MustParseABI(registry.CurvesABI)

	policyTransferSelector = policyERC20ABI.Methods["transfer"].ID
)

// validateStepPolicy rejects steps whose calldata does not match their declared type.
func validateStepPolicy(step *PlanStep, data []byte) error {
	if step == nil {
		return clierr.New(clierr.CodeInternal, "missing plan step")
	}
	value, ok := parseBaseUnits(step.Value)
	if !ok {
		return clierr.New(clierr.CodeUsage, "invalid step value")
	}
	switch step.Type {
	case StepTypeNativeTransfer:
		if len(data) != 0 {
			return clierr.New(clierr.CodeUsage, "native transfer step must not carry calldata")
		}
		if value.Sign() <= 0 {
			return clierr.New(clierr.CodeUsage, "native transfer step must move a positive value")
		}
	case StepTypeTokenTransfer:
		return validateTokenTransfer(data, value)
	case StepTypeContractCall:
		return validateCurvesCall(data, value)
	default:
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported step type %q", step.Type))
	}
	return nil
}

func validateTokenTransfer(data []byte, value *big.Int) error {
	if len(data) < 4 || !bytes.Equal(data[:4], policyTransferSelector) {
		return clierr.New(clierr.CodeUsage, "token transfer step must call ERC20 transfer(to,amount)")
	}
	if value.Sign() != 0 {
		return clierr.New(clierr.CodeUsage, "token transfer step must not send native value")
	}
	args, err := policyERC20ABI.Methods["transfer"].Inputs.Unpack(data[4:])
	if err != nil || len(args) != 2 {
		return clierr.New(clierr.CodeUsage, "token transfer calldata is invalid")
	}
	to, ok := args[0].(common.Address)
	if !ok || to == (common.Address{}) {
		return clierr.New(clierr.CodeUsage, "token transfer has invalid recipient")
	}
	amount, ok := args[1].(*big.Int)
	if !ok || amount.Sign() <= 0 {
		return clierr.New(clierr.CodeUsage, "token transfer amount must be positive")
	}
	return nil
}

func validateCurvesCall(data []byte, value *big.Int) error {
	if len(data) < 4 {
		return clierr.New(clierr.CodeUsage, "contract call step is missing calldata")
	}
	method, err := policyCurvesABI.MethodById(data[:4])
	if err != nil {
		return clierr.New(clierr.CodeUsage, "contract call step does not target a known curves method")
	}
	if method.IsConstant() {
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("curves method %s is read-only", method.Name))
	}
	if !method.IsPayable() && value.Sign() != 0 {
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("curves method %s is not payable", method.Name))
	}
	return nil
}

func parseBaseUnits(value string) (*big.Int, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return new(big.Int), true
	}
	parsed, ok := new(big.Int).SetString(v, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, false
	}
	return parsed, true
}
