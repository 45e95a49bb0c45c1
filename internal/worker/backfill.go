// Package worker backfills model narration for allocation runs that were
// served with the static fallback narrator.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"nexus/internal/amqp"
	"nexus/internal/engine"
	applog "nexus/internal/log"
	"nexus/internal/narration"
	"nexus/internal/storage"
)

// Store is the slice of the repository the worker needs.
type Store interface {
	GetAllocation(ctx context.Context, id string) (*storage.AllocationRecord, error)
	ListStaticNarrations(ctx context.Context, limit int) ([]storage.AllocationRecord, error)
	UpdateNarration(ctx context.Context, id, narration, status string) error
}

// BackfillWorker replaces static narration with model-generated text.
type BackfillWorker struct {
	store     Store
	narrator  narration.Narrator
	batchSize int
	logger    *applog.Logger
}

func NewBackfillWorker(store Store, narrator narration.Narrator, batchSize int, logger *applog.Logger) *BackfillWorker {
	return &BackfillWorker{
		store:     store,
		narrator:  narrator,
		batchSize: batchSize,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleAllocationRecorded processes a single allocation-recorded message.
// Runs already narrated by the model are acknowledged without work.
func (w *BackfillWorker) HandleAllocationRecorded(ctx context.Context, msg *amqp.AllocationRecordedMessage) error {
	if msg.Narrator != "static" {
		w.logger.DebugContext(ctx, "Run already narrated by model, skipping",
			applog.FieldAllocationID, msg.AllocationID,
			applog.FieldNarrator, msg.Narrator)
		return nil
	}

	rec, err := w.store.GetAllocation(ctx, msg.AllocationID)
	if err != nil {
		return fmt.Errorf("get allocation from storage: %w", err)
	}
	if rec.NarrationStatus != storage.NarrationStatic {
		return nil
	}

	return w.backfill(ctx, rec)
}

// ProcessPendingNarrations sweeps runs still carrying static narration.
// This is a backup mechanism in case AMQP messages are lost.
func (w *BackfillWorker) ProcessPendingNarrations(ctx context.Context) error {
	pending, err := w.store.ListStaticNarrations(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending narrations: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "Processing pending narrations", "count", len(pending))

	for i := range pending {
		if err := w.backfill(ctx, &pending[i]); err != nil {
			w.logger.ErrorContext(ctx, "Failed to backfill narration",
				applog.FieldAllocationID, pending[i].ID,
				applog.FieldError, err)
			continue
		}
	}

	return nil
}

func (w *BackfillWorker) backfill(ctx context.Context, rec *storage.AllocationRecord) error {
	var result engine.AllocationResult
	if err := json.Unmarshal([]byte(rec.Result), &result); err != nil {
		// The stored result will never parse, stop retrying it.
		if markErr := w.store.UpdateNarration(ctx, rec.ID, rec.Narration, storage.NarrationFailed); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark narration failed",
				applog.FieldAllocationID, rec.ID,
				applog.FieldError, markErr)
		}
		return fmt.Errorf("unmarshal stored result: %w", err)
	}

	// User context is not persisted with the run; the backfill narrates from
	// the plan numbers alone.
	narratives, err := w.narrator.Narrate(ctx, &result, narration.UserContext{})
	if err != nil {
		return fmt.Errorf("narrate allocation %s: %w", rec.ID, err)
	}

	narrationJSON, err := json.Marshal(narratives)
	if err != nil {
		return fmt.Errorf("marshal narration: %w", err)
	}

	if err := w.store.UpdateNarration(ctx, rec.ID, string(narrationJSON), storage.NarrationBackfilled); err != nil {
		return fmt.Errorf("update narration: %w", err)
	}

	w.logger.InfoContext(ctx, "Backfilled narration",
		applog.FieldAllocationID, rec.ID,
		applog.FieldNarrator, w.narrator.Name())

	return nil
}
