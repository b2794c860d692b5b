package token

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABI = `[
	{
		"type": "function",
		"name": "decimals",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}]
	}
]`

// ContractCaller is the slice of the ethclient surface needed for
// read-only token metadata calls.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// MetadataClient reads ERC-20 token metadata from the chain. Decimals
// are immutable, so results are cached for the process lifetime.
type MetadataClient struct {
	caller ContractCaller
	abi    abi.ABI

	mu    sync.RWMutex
	cache map[string]uint8
}

func NewMetadataClient(caller ContractCaller) (*MetadataClient, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}
	return &MetadataClient{
		caller: caller,
		abi:    parsed,
		cache:  make(map[string]uint8),
	}, nil
}

// Decimals returns the decimal precision of the token at the given
// address.
func (c *MetadataClient) Decimals(ctx context.Context, token string) (uint8, error) {
	key := strings.ToLower(token)

	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := c.abi.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals call: %w", err)
	}

	addr := common.HexToAddress(token)
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("decimals call for %s: %w", token, err)
	}

	results, err := c.abi.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals for %s: %w", token, err)
	}
	decimals, ok := results[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type for %s", token)
	}

	c.mu.Lock()
	c.cache[key] = decimals
	c.mu.Unlock()
	return decimals, nil
}
