package token

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	calls int
	out   []byte
	err   error
}

func (f *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	return f.out, f.err
}

// decimals() returns a uint8 padded to a 32-byte word.
func decimalsWord(d uint8) []byte {
	out := make([]byte, 32)
	out[31] = d
	return out
}

func TestMetadataClient_Decimals(t *testing.T) {
	caller := &fakeCaller{out: decimalsWord(18)}
	client, err := NewMetadataClient(caller)
	require.NoError(t, err)

	d, err := client.Decimals(context.Background(), "0xABC0000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, uint8(18), d)
}

func TestMetadataClient_CachesPerToken(t *testing.T) {
	caller := &fakeCaller{out: decimalsWord(9)}
	client, err := NewMetadataClient(caller)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Decimals(ctx, "0xABC0000000000000000000000000000000000001")
	require.NoError(t, err)
	_, err = client.Decimals(ctx, "0xabc0000000000000000000000000000000000001")
	require.NoError(t, err)

	assert.Equal(t, 1, caller.calls, "decimals are immutable and must be cached")
}

func TestMetadataClient_CallFailure(t *testing.T) {
	caller := &fakeCaller{err: errors.New("connection refused")}
	client, err := NewMetadataClient(caller)
	require.NoError(t, err)

	_, err = client.Decimals(context.Background(), "0xABC0000000000000000000000000000000000001")
	assert.Error(t, err)
	assert.Equal(t, 1, caller.calls)
}
