package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/amqp"
	"nexus/internal/engine"
	applog "nexus/internal/log"
	"nexus/internal/narration"
	"nexus/internal/storage"
)

type fakeStore struct {
	records map[string]*storage.AllocationRecord
	updates map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]*storage.AllocationRecord),
		updates: make(map[string]string),
	}
}

func (f *fakeStore) GetAllocation(_ context.Context, id string) (*storage.AllocationRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) ListStaticNarrations(_ context.Context, limit int) ([]storage.AllocationRecord, error) {
	var out []storage.AllocationRecord
	for _, rec := range f.records {
		if rec.NarrationStatus == storage.NarrationStatic && len(out) < limit {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateNarration(_ context.Context, id, narrationJSON, status string) error {
	rec, ok := f.records[id]
	if !ok {
		return storage.ErrNotFound
	}
	rec.Narration = narrationJSON
	rec.NarrationStatus = status
	f.updates[id] = status
	return nil
}

type erroringNarrator struct{}

func (erroringNarrator) Narrate(context.Context, *engine.AllocationResult, narration.UserContext) (*narration.Narratives, error) {
	return nil, errors.New("model unavailable")
}

func (erroringNarrator) ReExplain(context.Context, []engine.Account, engine.Plan, []engine.SplitItem, narration.UserContext) (string, error) {
	return "", errors.New("model unavailable")
}

func (erroringNarrator) Name() string { return "gemini" }

func storedResult(t *testing.T) string {
	t.Helper()
	result := engine.AllocationResult{
		AvalanchePlan: engine.Plan{
			Name: engine.PlanNameAvalanche,
			Split: []engine.SplitItem{
				{CardID: "a", CardName: "Visa", Amount: decimal.NewFromInt(150), Type: engine.SplitPowerPayment},
			},
			TargetCardID: "a",
		},
		ScoreBoosterPlan: engine.Plan{
			Name: engine.PlanNameScoreBooster,
			Split: []engine.SplitItem{
				{CardID: "a", CardName: "Visa", Amount: decimal.NewFromInt(150), Type: engine.SplitPowerPayment},
			},
			TargetCardID: "a",
		},
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)
	return string(data)
}

func staticRecord(t *testing.T, id string) *storage.AllocationRecord {
	t.Helper()
	return &storage.AllocationRecord{
		ID:              id,
		PaymentAmount:   decimal.NewFromInt(150),
		AccountCount:    1,
		Strategy:        "greedy",
		Result:          storedResult(t),
		NarrationStatus: storage.NarrationStatic,
	}
}

func newWorker(store Store, narrator narration.Narrator) *BackfillWorker {
	return NewBackfillWorker(store, narrator, 10, applog.New(applog.DefaultConfig()))
}

func TestHandleAllocationRecordedBackfills(t *testing.T) {
	store := newFakeStore()
	store.records["run-1"] = staticRecord(t, "run-1")
	w := newWorker(store, narration.NewStaticNarrator())

	msg := amqp.NewAllocationRecordedMessage("run-1", "static")
	require.NoError(t, w.HandleAllocationRecorded(context.Background(), msg))

	assert.Equal(t, storage.NarrationBackfilled, store.updates["run-1"])

	var narratives narration.Narratives
	require.NoError(t, json.Unmarshal([]byte(store.records["run-1"].Narration), &narratives))
	assert.True(t, narratives.Complete())
}

func TestHandleAllocationRecordedSkipsModelNarrated(t *testing.T) {
	store := newFakeStore()
	store.records["run-1"] = staticRecord(t, "run-1")
	w := newWorker(store, narration.NewStaticNarrator())

	msg := amqp.NewAllocationRecordedMessage("run-1", "gemini")
	require.NoError(t, w.HandleAllocationRecorded(context.Background(), msg))
	assert.Empty(t, store.updates)
}

func TestHandleAllocationRecordedMissingRecord(t *testing.T) {
	w := newWorker(newFakeStore(), narration.NewStaticNarrator())

	msg := amqp.NewAllocationRecordedMessage("gone", "static")
	err := w.HandleAllocationRecorded(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHandleAllocationRecordedNarratorErrorRequeues(t *testing.T) {
	store := newFakeStore()
	store.records["run-1"] = staticRecord(t, "run-1")
	w := newWorker(store, erroringNarrator{})

	msg := amqp.NewAllocationRecordedMessage("run-1", "static")
	require.Error(t, w.HandleAllocationRecorded(context.Background(), msg))

	// Still static so the sweep can retry it later.
	assert.Equal(t, storage.NarrationStatic, store.records["run-1"].NarrationStatus)
}

func TestBackfillCorruptResultMarkedFailed(t *testing.T) {
	store := newFakeStore()
	rec := staticRecord(t, "run-1")
	rec.Result = "{corrupt"
	store.records["run-1"] = rec
	w := newWorker(store, narration.NewStaticNarrator())

	msg := amqp.NewAllocationRecordedMessage("run-1", "static")
	require.Error(t, w.HandleAllocationRecorded(context.Background(), msg))
	assert.Equal(t, storage.NarrationFailed, store.updates["run-1"])
}

func TestProcessPendingNarrations(t *testing.T) {
	store := newFakeStore()
	store.records["run-1"] = staticRecord(t, "run-1")
	store.records["run-2"] = staticRecord(t, "run-2")
	done := staticRecord(t, "run-3")
	done.NarrationStatus = storage.NarrationModel
	store.records["run-3"] = done

	w := newWorker(store, narration.NewStaticNarrator())
	require.NoError(t, w.ProcessPendingNarrations(context.Background()))

	assert.Equal(t, storage.NarrationBackfilled, store.updates["run-1"])
	assert.Equal(t, storage.NarrationBackfilled, store.updates["run-2"])
	_, touched := store.updates["run-3"]
	assert.False(t, touched)
}
