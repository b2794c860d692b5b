package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_UnitPriceUSD(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"token": map[string]any{"derivedUSD": "3.14"}},
		}))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{URL: srv.URL})
	ctx := context.Background()

	price, err := client.UnitPriceUSD(ctx, "0xCAKE", "1000")
	require.NoError(t, err)
	assert.Equal(t, "3.14", price)

	// Same token+block hits the cache; token case does not matter.
	price, err = client.UnitPriceUSD(ctx, "0xcake", "1000")
	require.NoError(t, err)
	assert.Equal(t, "3.14", price)
	assert.Equal(t, int32(1), calls.Load())

	// A different block is a different cache key.
	_, err = client.UnitPriceUSD(ctx, "0xcake", "1001")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NoPriceForToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"token": nil},
		}))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{URL: srv.URL})
	_, err := client.UnitPriceUSD(context.Background(), "0xunknown", "1000")
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}
