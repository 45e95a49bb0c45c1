package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"nexus/internal/engine"
	applog "nexus/internal/log"
	"nexus/internal/narration"
	"nexus/internal/storage"
)

// Error envelope types, matching what clients already parse.
const (
	errTypeInvalidRequest = "invalid_request"
	errTypeValidation     = "validation_error"
	errTypeNarration      = "ai_response_validation"
	errTypeRateLimited    = "rate_limited"
	errTypeInternal       = "internal_server_error"
)

type errorBody struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeError(w http.ResponseWriter, status int, errType, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{Type: errType, Detail: detail}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type allocateRequest struct {
	Accounts      []engine.Account      `json:"accounts"`
	PaymentAmount decimal.Decimal       `json:"payment_amount"`
	UserContext   narration.UserContext `json:"user_context"`
}

type planResponse struct {
	Name             string             `json:"name"`
	Split            []engine.SplitItem `json:"split"`
	TargetCardID     string             `json:"target_card_id,omitempty"`
	Explanation      string             `json:"explanation"`
	ProjectedOutcome string             `json:"projected_outcome"`
}

type allocateResponse struct {
	AllocationID        string          `json:"allocation_id"`
	NexusRecommendation string          `json:"nexus_recommendation"`
	MinimizeInterest    planResponse    `json:"minimize_interest_plan"`
	MaximizeScore       planResponse    `json:"maximize_score_plan"`
	Context             engine.Context  `json:"context"`
	InsufficientFunds   bool            `json:"insufficient_funds"`
	LeftoverAmount      decimal.Decimal `json:"leftover_amount"`
}

type reExplainRequest struct {
	Accounts    []engine.Account      `json:"accounts"`
	OptimalPlan engine.Plan           `json:"optimal_plan"`
	CustomSplit []engine.SplitItem    `json:"custom_split"`
	UserContext narration.UserContext `json:"user_context"`
}

type reExplainResponse struct {
	Explanation string `json:"explanation"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"narrator": s.narrator.Name(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAllocate computes both payment plans, narrates them, stores the run,
// and announces it to the backfill worker.
func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	var req allocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errTypeInvalidRequest, "invalid request body")
		return
	}

	result, err := s.engine.Allocate(req.Accounts, req.PaymentAmount)
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, errTypeValidation, verr.Error())
			return
		}
		logger.ErrorContext(ctx, "Allocation failed", applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, errTypeInternal, "allocation failed")
		return
	}

	logger.InfoContext(ctx, "Allocation computed",
		applog.FieldOperation, applog.OpAllocate,
		applog.FieldAccountCount, len(req.Accounts),
		"avalanche_target", applog.RedactCardID(result.AvalanchePlan.TargetCardID),
		"score_booster_target", applog.RedactCardID(result.ScoreBoosterPlan.TargetCardID),
		"insufficient_funds", result.InsufficientFunds)

	narratives, narrator := s.narrate(r, result, req.UserContext)

	resp := allocateResponse{
		AllocationID:        uuid.NewString(),
		NexusRecommendation: narratives.Recommendation,
		MinimizeInterest: planResponse{
			Name:             result.AvalanchePlan.Name,
			Split:            result.AvalanchePlan.Split,
			TargetCardID:     result.AvalanchePlan.TargetCardID,
			Explanation:      narratives.AvalancheExplanation,
			ProjectedOutcome: narratives.AvalancheProjection,
		},
		MaximizeScore: planResponse{
			Name:             result.ScoreBoosterPlan.Name,
			Split:            result.ScoreBoosterPlan.Split,
			TargetCardID:     result.ScoreBoosterPlan.TargetCardID,
			Explanation:      narratives.ScoreBoosterExplanation,
			ProjectedOutcome: narratives.ScoreBoosterProjection,
		},
		Context:           result.Context,
		InsufficientFunds: result.InsufficientFunds,
		LeftoverAmount:    result.LeftoverAmount,
	}

	s.record(r, resp.AllocationID, &req, result, narratives, narrator)

	writeJSON(w, http.StatusOK, resp)
}

// narrate runs the configured narrator and falls back to the static one
// when the model call fails. Returns the narrator name that produced the
// text.
func (s *Server) narrate(r *http.Request, result *engine.AllocationResult, user narration.UserContext) (*narration.Narratives, string) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	narratives, err := s.narrator.Narrate(ctx, result, user)
	if err == nil {
		return narratives, s.narrator.Name()
	}

	logger.WarnContext(ctx, "Narrator failed, using static fallback",
		applog.FieldNarrator, s.narrator.Name(),
		applog.FieldError, err)

	narratives, _ = s.fallback.Narrate(ctx, result, user)
	return narratives, s.fallback.Name()
}

// record persists the run and publishes the allocation-recorded event.
// Failures are logged but never fail the request; the plan was already
// computed and belongs to the caller.
func (s *Server) record(r *http.Request, id string, req *allocateRequest, result *engine.AllocationResult, narratives *narration.Narratives, narrator string) {
	if s.recorder == nil {
		return
	}

	ctx := r.Context()
	logger := applog.FromContext(ctx)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to serialize allocation result", applog.FieldError, err)
		return
	}
	narrationJSON, err := json.Marshal(narratives)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to serialize narration", applog.FieldError, err)
		return
	}

	status := storage.NarrationStatic
	if narrator != "static" {
		status = storage.NarrationModel
	}

	rec := storage.AllocationRecord{
		ID:                id,
		CreatedAt:         time.Now(),
		PaymentAmount:     req.PaymentAmount,
		AccountCount:      len(req.Accounts),
		Strategy:          s.strategy,
		InsufficientFunds: result.InsufficientFunds,
		Result:            string(resultJSON),
		Narration:         string(narrationJSON),
		NarrationStatus:   status,
	}
	if err := s.recorder.RecordAllocation(ctx, rec); err != nil {
		logger.ErrorContext(ctx, "Failed to record allocation",
			applog.FieldAllocationID, id,
			applog.FieldError, err)
		return
	}

	if s.pub != nil {
		if err := s.pub.PublishAllocationRecorded(ctx, id, narrator); err != nil {
			logger.ErrorContext(ctx, "Failed to publish allocation recorded event",
				applog.FieldAllocationID, id,
				applog.FieldError, err)
		}
	}
}

type historyEntry struct {
	AllocationID      string          `json:"allocation_id"`
	CreatedAt         time.Time       `json:"created_at"`
	PaymentAmount     decimal.Decimal `json:"payment_amount"`
	AccountCount      int             `json:"account_count"`
	Strategy          string          `json:"strategy"`
	InsufficientFunds bool            `json:"insufficient_funds"`
	NarrationStatus   string          `json:"narration_status"`
}

type historyResponse struct {
	Allocations []historyEntry `json:"allocations"`
}

// handleHistory lists recently served allocation runs, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	if s.recorder == nil {
		writeJSON(w, http.StatusOK, historyResponse{Allocations: []historyEntry{}})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, errTypeInvalidRequest, "limit must be a positive integer")
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	records, err := s.recorder.ListRecent(ctx, limit)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list allocations", applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, errTypeInternal, "could not list allocations")
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{
			AllocationID:      rec.ID,
			CreatedAt:         rec.CreatedAt,
			PaymentAmount:     rec.PaymentAmount,
			AccountCount:      rec.AccountCount,
			Strategy:          rec.Strategy,
			InsufficientFunds: rec.InsufficientFunds,
			NarrationStatus:   rec.NarrationStatus,
		})
	}

	writeJSON(w, http.StatusOK, historyResponse{Allocations: entries})
}

// handleReExplain narrates a user's hand-modified split without changing any
// number in it.
func (s *Server) handleReExplain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	var req reExplainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errTypeInvalidRequest, "invalid request body")
		return
	}
	if len(req.CustomSplit) == 0 {
		writeError(w, http.StatusBadRequest, errTypeValidation, "custom_split must not be empty")
		return
	}

	explanation, err := s.narrator.ReExplain(ctx, req.Accounts, req.OptimalPlan, req.CustomSplit, req.UserContext)
	if err != nil {
		logger.WarnContext(ctx, "Re-explain narrator failed, using static fallback",
			applog.FieldNarrator, s.narrator.Name(),
			applog.FieldError, err)
		explanation, err = s.fallback.ReExplain(ctx, req.Accounts, req.OptimalPlan, req.CustomSplit, req.UserContext)
		if err != nil {
			writeError(w, http.StatusInternalServerError, errTypeNarration, "could not explain the custom split")
			return
		}
	}

	writeJSON(w, http.StatusOK, reExplainResponse{Explanation: explanation})
}
