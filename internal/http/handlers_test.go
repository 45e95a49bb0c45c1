package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/config"
	"nexus/internal/engine"
	applog "nexus/internal/log"
	"nexus/internal/narration"
	"nexus/internal/storage"
)

type fakeRecorder struct {
	records []storage.AllocationRecord
	err     error
}

func (f *fakeRecorder) RecordAllocation(_ context.Context, rec storage.AllocationRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRecorder) ListRecent(_ context.Context, limit int) ([]storage.AllocationRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.records) {
		limit = len(f.records)
	}
	return f.records[:limit], nil
}

type fakePublisher struct {
	published []string
	narrators []string
}

func (f *fakePublisher) PublishAllocationRecorded(_ context.Context, allocationID, narrator string) error {
	f.published = append(f.published, allocationID)
	f.narrators = append(f.narrators, narrator)
	return nil
}

type failingNarrator struct{}

func (failingNarrator) Narrate(context.Context, *engine.AllocationResult, narration.UserContext) (*narration.Narratives, error) {
	return nil, errors.New("model unavailable")
}

func (failingNarrator) ReExplain(context.Context, []engine.Account, engine.Plan, []engine.SplitItem, narration.UserContext) (string, error) {
	return "", errors.New("model unavailable")
}

func (failingNarrator) Name() string { return "gemini" }

func testConfig() *config.Config {
	return &config.Config{
		Port:               "8080",
		AllocationStrategy: "greedy",
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	}
}

func newTestServer(t *testing.T, narrator narration.Narrator, recorder Recorder, pub Publisher) *Server {
	t.Helper()
	logger := applog.New(applog.DefaultConfig())
	s := NewServer(testConfig(), engine.New(engine.StrategyGreedy), narrator, recorder, pub, logger)
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s
}

func postJSON(t *testing.T, s *Server, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(w, req)
	return w
}

const allocateBody = `{
	"accounts": [
		{"id": "a", "name": "Sapphire", "balance": 1000, "apr": 24.99, "creditLimit": 2000},
		{"id": "b", "name": "Freedom", "balance": 500, "apr": 15.49, "creditLimit": 1000}
	],
	"payment_amount": 200,
	"user_context": {"primary_goal": "pay less interest"}
}`

func TestHandleAllocate(t *testing.T) {
	recorder := &fakeRecorder{}
	pub := &fakePublisher{}
	s := newTestServer(t, narration.NewStaticNarrator(), recorder, pub)

	w := postJSON(t, s, "/v2/interestkiller", allocateBody)
	require.Equal(t, http.StatusOK, w.Code)

	var resp allocateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.AllocationID)
	assert.Equal(t, engine.PlanNameAvalanche, resp.NexusRecommendation)
	assert.Equal(t, engine.PlanNameAvalanche, resp.MinimizeInterest.Name)
	assert.Equal(t, engine.PlanNameScoreBooster, resp.MaximizeScore.Name)
	assert.NotEmpty(t, resp.MinimizeInterest.Explanation)
	assert.NotEmpty(t, resp.MaximizeScore.ProjectedOutcome)

	// Highest APR card takes the discretionary remainder.
	require.Len(t, resp.MinimizeInterest.Split, 2)
	assert.Equal(t, "a", resp.MinimizeInterest.TargetCardID)
	total := resp.MinimizeInterest.Split[0].Amount.Add(resp.MinimizeInterest.Split[1].Amount)
	assert.Equal(t, "200", total.String())

	require.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	assert.Equal(t, resp.AllocationID, rec.ID)
	assert.Equal(t, 2, rec.AccountCount)
	assert.Equal(t, storage.NarrationStatic, rec.NarrationStatus)
	assert.Equal(t, "greedy", rec.Strategy)

	require.Len(t, pub.published, 1)
	assert.Equal(t, resp.AllocationID, pub.published[0])
	assert.Equal(t, "static", pub.narrators[0])
}

func TestHandleAllocateValidationError(t *testing.T) {
	s := newTestServer(t, narration.NewStaticNarrator(), nil, nil)

	body := `{"accounts": [{"id": "a", "name": "A", "balance": 100, "apr": 20, "creditLimit": 500}], "payment_amount": -5, "user_context": {"primary_goal": "x"}}`
	w := postJSON(t, s, "/v2/interestkiller", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, errTypeValidation, envelope.Error.Type)
	assert.NotEmpty(t, envelope.Error.Detail)
}

func TestHandleAllocateBadJSON(t *testing.T) {
	s := newTestServer(t, narration.NewStaticNarrator(), nil, nil)

	w := postJSON(t, s, "/v2/interestkiller", `{not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, errTypeInvalidRequest, envelope.Error.Type)
}

func TestHandleAllocateMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, narration.NewStaticNarrator(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v2/interestkiller", nil)
	w := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleAllocateNarratorFallback(t *testing.T) {
	pub := &fakePublisher{}
	s := newTestServer(t, failingNarrator{}, &fakeRecorder{}, pub)

	w := postJSON(t, s, "/v2/interestkiller", allocateBody)
	require.Equal(t, http.StatusOK, w.Code)

	var resp allocateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.MinimizeInterest.Explanation)

	require.Len(t, pub.narrators, 1)
	assert.Equal(t, "static", pub.narrators[0])
}

func TestHandleReExplain(t *testing.T) {
	s := newTestServer(t, narration.NewStaticNarrator(), nil, nil)

	body := `{
		"accounts": [{"id": "a", "name": "A", "balance": 100, "apr": 20, "creditLimit": 500}],
		"optimal_plan": {"name": "Avalanche Method", "split": []},
		"custom_split": [{"card_id": "a", "card_name": "A", "amount": 75, "type": "Power Payment"}],
		"user_context": {"primary_goal": "debt free"}
	}`
	w := postJSON(t, s, "/v2/interestkiller/re-explain", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp reExplainResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Explanation, "$75.00")
}

func TestHandleReExplainEmptySplit(t *testing.T) {
	s := newTestServer(t, narration.NewStaticNarrator(), nil, nil)

	body := `{"accounts": [], "optimal_plan": {"name": "Avalanche Method", "split": []}, "custom_split": [], "user_context": {"primary_goal": "x"}}`
	w := postJSON(t, s, "/v2/interestkiller/re-explain", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealthAndRoot(t *testing.T) {
	s := newTestServer(t, narration.NewStaticNarrator(), nil, nil)

	for _, path := range []string{"/", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.Server.Handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, path)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(w, req)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "static", body["narrator"])
}

func TestHandleHistory(t *testing.T) {
	recorder := &fakeRecorder{}
	s := newTestServer(t, narration.NewStaticNarrator(), recorder, nil)

	w := postJSON(t, s, "/v2/interestkiller", allocateBody)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v2/interestkiller/history", nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Allocations, 1)
	entry := resp.Allocations[0]
	assert.Equal(t, recorder.records[0].ID, entry.AllocationID)
	assert.Equal(t, 2, entry.AccountCount)
	assert.Equal(t, storage.NarrationStatic, entry.NarrationStatus)
}

func TestHandleHistoryBadLimit(t *testing.T) {
	s := newTestServer(t, narration.NewStaticNarrator(), &fakeRecorder{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v2/interestkiller/history?limit=zero", nil)
	w := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, errTypeInvalidRequest, envelope.Error.Type)
}

func TestRateLimiterExhaustsAndRefills(t *testing.T) {
	rl := newRateLimiter(2, 50*time.Millisecond)
	defer rl.stop()

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))

	// A different client has its own bucket.
	assert.True(t, rl.allow("10.0.0.2"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.allow("10.0.0.1"))
}

func TestRateLimitedRequestGetsEnvelope(t *testing.T) {
	logger := applog.New(applog.DefaultConfig())
	cfg := testConfig()
	cfg.RateLimitRequests = 1
	s := NewServer(cfg, engine.New(engine.StrategyGreedy), narration.NewStaticNarrator(), nil, nil, logger)
	t.Cleanup(func() { s.rateLimiter.stop() })

	first := postJSON(t, s, "/v2/interestkiller", allocateBody)
	require.Equal(t, http.StatusOK, first.Code)

	second := postJSON(t, s, "/v2/interestkiller", allocateBody)
	require.Equal(t, http.StatusTooManyRequests, second.Code)

	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &envelope))
	assert.Equal(t, errTypeRateLimited, envelope.Error.Type)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}
