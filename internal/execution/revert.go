package execution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
)

// decodeRevertData turns revert return data into a readable reason.
func decodeRevertData(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	return fmt.Sprintf("custom error %s", common.Bytes2Hex(data[:4]))
}

func decodeRevertFromError(err error) string {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return ""
	}
	switch v := dataErr.ErrorData().(type) {
	case string:
		return decodeRevertData(common.FromHex(v))
	case []byte:
		return decodeRevertData(v)
	default:
		return ""
	}
}

func wrapEVMExecutionError(code clierr.Code, message string, err error) error {
	reason := decodeRevertFromError(err)
	if reason == "" {
		return clierr.Wrap(code, message, err)
	}
	if strings.HasPrefix(reason, "custom error ") {
		reason = "0x" + strings.TrimPrefix(reason, "custom error ")
		return clierr.Wrap(code, fmt.Sprintf("%s: reverted with custom error %s", message, reason), err)
	}
	return clierr.Wrap(code, fmt.Sprintf("%s: reverted: %s", message, reason), err)
}
