package execution

import (
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var signerNonceLocks sync.Map

// acquireSignerNonceLock serializes nonce reads and broadcasts for one signer on one chain.
func acquireSignerNonceLock(chainID *big.Int, address common.Address) func() {
	key := strings.ToLower(address.Hex())
	if chainID != nil {
		key = chainID.String() + ":" + key
	}
	value, _ := signerNonceLocks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
