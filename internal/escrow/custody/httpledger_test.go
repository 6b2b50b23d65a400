package custody

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerServer(t *testing.T, succeed bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/transfer", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req transferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, req.From)
		assert.NotEmpty(t, req.To)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(transferResponse{Success: succeed})
	})
	mux.HandleFunc("/v1/transfer-from", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req transferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.From)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(transferResponse{Success: succeed})
	})
	mux.HandleFunc("/v1/balances/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(balanceResponse{
			Account: strings.TrimPrefix(r.URL.Path, "/v1/balances/"),
			Amount:  250,
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPLedgerTransfers(t *testing.T) {
	ctx := context.Background()

	t.Run("success responses", func(t *testing.T) {
		server := newLedgerServer(t, true)
		ledger := NewHTTPLedger(server.URL, time.Second)

		ok, err := ledger.Transfer(ctx, "bob", 100)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = ledger.TransferFrom(ctx, "alice", "custody", 100)
		require.NoError(t, err)
		assert.True(t, ok)

		amount, err := ledger.BalanceOf(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(250), amount)
	})

	t.Run("ledger-level rejection", func(t *testing.T) {
		server := newLedgerServer(t, false)
		ledger := NewHTTPLedger(server.URL, time.Second)

		ok, err := ledger.Transfer(ctx, "bob", 100)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("http error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(server.Close)
		ledger := NewHTTPLedger(server.URL, time.Second)

		_, err := ledger.Transfer(ctx, "bob", 100)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("unreachable service", func(t *testing.T) {
		ledger := NewHTTPLedger("http://127.0.0.1:1", 200*time.Millisecond)
		_, err := ledger.Transfer(ctx, "bob", 100)
		assert.Error(t, err)
	})
}

func TestNativeHTTPLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("success maps to nil error", func(t *testing.T) {
		server := newLedgerServer(t, true)
		native := NewNativeHTTPLedger(NewHTTPLedger(server.URL, time.Second))

		assert.NoError(t, native.Transfer(ctx, "bob", 100))
		assert.NoError(t, native.TransferFrom(ctx, "alice", "custody", 100))
	})

	t.Run("rejection maps to error", func(t *testing.T) {
		server := newLedgerServer(t, false)
		native := NewNativeHTTPLedger(NewHTTPLedger(server.URL, time.Second))

		assert.Error(t, native.Transfer(ctx, "bob", 100))
		assert.Error(t, native.TransferFrom(ctx, "alice", "custody", 100))
	})
}
