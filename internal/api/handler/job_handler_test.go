package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdhoang/escrow-be/internal/api/dto"
	"github.com/tdhoang/escrow-be/internal/api/handler"
	"github.com/tdhoang/escrow-be/internal/api/router"
	"github.com/tdhoang/escrow-be/internal/escrow"
	"github.com/tdhoang/escrow-be/internal/escrow/custody"
	"github.com/tdhoang/escrow-be/internal/escrow/domain"
	"github.com/tdhoang/escrow-be/internal/escrow/registry"
	"github.com/tdhoang/escrow-be/shared/logger"
)

type testLedger struct {
	balances      map[domain.Identity]uint64
	failTransfers bool
}

func (l *testLedger) Transfer(_ context.Context, to domain.Identity, amount uint64) error {
	if l.failTransfers {
		return errors.New("ledger unavailable")
	}
	l.balances[to] += amount
	return nil
}

func (l *testLedger) TransferFrom(_ context.Context, from, to domain.Identity, amount uint64) error {
	if l.balances[from] < amount {
		return errors.New("insufficient balance")
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

type apiHarness struct {
	router *gin.Engine
	ledger *testLedger
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewDefault()
	reg := registry.NewMemory()
	require.NoError(t, reg.SetAdmin(context.Background(), "admin"))
	require.NoError(t, reg.SetResolver(context.Background(), "arbiter"))

	ledger := &testLedger{balances: map[domain.Identity]uint64{"alice": 1000}}
	engine := escrow.NewEngine(escrow.Config{
		Registry: reg,
		Custody:  custody.NewAdapter("custody", ledger, log),
		Logger:   log,
	})

	r := router.SetupRouter(&handler.Dependencies{
		Logger: log,
		Engine: engine,
	})
	return &apiHarness{router: r, ledger: ledger}
}

func (h *apiHarness) do(t *testing.T, method, path string, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(handler.CallerHeader, caller)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *apiHarness) createJob(t *testing.T) int64 {
	t.Helper()

	w := h.do(t, http.MethodPost, "/api/v1/jobs", "alice", dto.CreateJobRequest{
		Asset:    string(domain.AssetNative),
		Amount:   100,
		Title:    "Build landing page",
		Deadline: time.Now().Add(72 * time.Hour).UTC(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var job dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	return job.JobID
}

func (h *apiHarness) act(t *testing.T, id int64, action, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return h.do(t, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/%s", id, action), caller, body)
}

func TestCreateJobEndpoint(t *testing.T) {
	h := newAPIHarness(t)

	t.Run("success", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/api/v1/jobs", "alice", dto.CreateJobRequest{
			Asset:       string(domain.AssetNative),
			Amount:      100,
			Title:       "Build landing page",
			Description: "Responsive landing page",
			Deadline:    time.Now().Add(72 * time.Hour).UTC(),
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var job dto.JobDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
		assert.Equal(t, int64(1), job.JobID)
		assert.Equal(t, "alice", job.Client)
		assert.Equal(t, string(domain.StatusOpen), job.Status)
		assert.Equal(t, uint64(100), job.DepositAmount)
		assert.Empty(t, job.Contractor)
	})

	t.Run("missing caller header", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/api/v1/jobs", "", dto.CreateJobRequest{
			Asset:    string(domain.AssetNative),
			Amount:   100,
			Title:    "x",
			Deadline: time.Now().Add(time.Hour).UTC(),
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/api/v1/jobs", "alice", map[string]any{
			"amount": "not-a-number",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("domain validation maps to 400", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/api/v1/jobs", "alice", dto.CreateJobRequest{
			Asset:    string(domain.AssetNative),
			Amount:   100,
			Title:    "x",
			Deadline: time.Now().Add(-time.Hour).UTC(),
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetJobEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createJob(t)

	t.Run("found", func(t *testing.T) {
		w := h.do(t, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d", id), "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown id maps to 404", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/api/v1/jobs/999", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-numeric id maps to 400", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/api/v1/jobs/abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListJobsEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	h.createJob(t)
	h.createJob(t)

	w := h.do(t, http.MethodGet, "/api/v1/jobs?status=OPEN&client=alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 2)

	t.Run("page size caps results", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/api/v1/jobs?page_size=1", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.ListJobsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Jobs, 1)
	})
}

func TestLifecycleEndpoints(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createJob(t)

	w := h.act(t, id, "apply", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("second apply maps to 409", func(t *testing.T) {
		w := h.act(t, id, "apply", "carol", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("start by non-client maps to 403", func(t *testing.T) {
		w := h.act(t, id, "start", "bob", dto.StartContractRequest{ExpectedContractor: "bob"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	w = h.act(t, id, "start", "alice", dto.StartContractRequest{ExpectedContractor: "bob"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("premature withdraw maps to 409", func(t *testing.T) {
		w := h.act(t, id, "withdraw", "bob", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("premature auto-cancel maps to 409", func(t *testing.T) {
		w := h.act(t, id, "auto-cancel", "carol", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	w = h.act(t, id, "deliver", "bob", dto.DeliverWorkRequest{SubmissionURI: "ipfs://work"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var delivered dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &delivered))
	assert.Equal(t, string(domain.StatusDelivered), delivered.Status)
	assert.NotEmpty(t, delivered.DeliveredAt)

	w = h.act(t, id, "approve", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("transfer failure maps to 502", func(t *testing.T) {
		h.ledger.failTransfers = true
		w := h.act(t, id, "withdraw", "bob", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		h.ledger.failTransfers = false
	})

	w = h.act(t, id, "withdraw", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resolved dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
	assert.Equal(t, string(domain.StatusResolved), resolved.Status)
	assert.Equal(t, uint64(0), resolved.DepositAmount)
	assert.Equal(t, uint64(100), h.ledger.balances["bob"])
}

func TestDisputeEndpoints(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createJob(t)

	w := h.act(t, id, "apply", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = h.act(t, id, "start", "alice", dto.StartContractRequest{ExpectedContractor: "bob"})
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("outsider cannot dispute", func(t *testing.T) {
		w := h.act(t, id, "dispute", "carol", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	w = h.act(t, id, "dispute", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("non-resolver cannot resolve", func(t *testing.T) {
		w := h.act(t, id, "resolve", "alice", dto.ResolveDisputeRequest{Verdict: domain.VerdictClientUpheld})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown verdict maps to 400", func(t *testing.T) {
		w := h.act(t, id, "resolve", "arbiter", dto.ResolveDisputeRequest{Verdict: "SPLIT"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w = h.act(t, id, "resolve", "arbiter", dto.ResolveDisputeRequest{Verdict: domain.VerdictContractorUpheld})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, uint64(100), h.ledger.balances["bob"])
}

func TestSetResolverEndpoint(t *testing.T) {
	h := newAPIHarness(t)

	t.Run("non-admin maps to 403", func(t *testing.T) {
		w := h.do(t, http.MethodPut, "/api/v1/settings/resolver", "alice", dto.SetResolverRequest{Resolver: "new-arbiter"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin succeeds", func(t *testing.T) {
		w := h.do(t, http.MethodPut, "/api/v1/settings/resolver", "admin", dto.SetResolverRequest{Resolver: "new-arbiter"})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	w := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
