package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usemate/order-stats-api/internal/models"
)

func pageHandler(t *testing.T, pages [][]models.RemoteOrder, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		var req struct {
			Variables struct {
				LastID string `json:"lastID"`
				First  int    `json:"first"`
			} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var orders []models.RemoteOrder
		if n < len(pages) {
			orders = pages[n]
		}
		resp := map[string]any{"data": map[string]any{"orders": orders}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func makePage(prefix string, size int) []models.RemoteOrder {
	page := make([]models.RemoteOrder, size)
	for i := range page {
		page[i] = models.RemoteOrder{
			ID:     fmt.Sprintf("%s-%04d", prefix, i),
			Status: models.StatusOpen,
		}
	}
	return page
}

func TestClient_PaginationTermination(t *testing.T) {
	var calls atomic.Int32
	pages := [][]models.RemoteOrder{
		makePage("a", 1000),
		makePage("b", 1000),
		{},
	}
	srv := httptest.NewServer(pageHandler(t, pages, &calls))
	defer srv.Close()

	client := NewClient(ClientConfig{URL: srv.URL, PageSize: 1000})

	orders, err := client.AllOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 2000)
	assert.Equal(t, int32(3), calls.Load(), "must stop after the first empty page")
}

func TestClient_CursorAdvances(t *testing.T) {
	var calls atomic.Int32
	var cursors []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		var req struct {
			Variables struct {
				LastID string `json:"lastID"`
			} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		cursors = append(cursors, req.Variables.LastID)

		var orders []models.RemoteOrder
		if n == 0 {
			orders = []models.RemoteOrder{{ID: "0xaa"}, {ID: "0xbb"}}
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"orders": orders},
		}))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{URL: srv.URL})
	orders, err := client.AllOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, []string{"", "0xbb"}, cursors)
}

func TestClient_RemoteFailureAbortsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{URL: srv.URL})
	orders, err := client.AllOrders(context.Background())
	assert.Nil(t, orders)
	assert.ErrorIs(t, err, ErrRemoteFetch)
}

func TestClient_GraphQLErrorAbortsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "indexing in progress"}},
		}))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{URL: srv.URL})
	_, err := client.AllOrders(context.Background())
	assert.ErrorIs(t, err, ErrRemoteFetch)
	assert.Contains(t, err.Error(), "indexing in progress")
}
