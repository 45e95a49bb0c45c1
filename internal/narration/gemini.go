package narration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	generativelanguage "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"nexus/internal/engine"
	applog "nexus/internal/log"
)

const maxRetries = 3

// GeminiNarrator generates plan explanations with the Gemini API via the
// Generative Language service.
type GeminiNarrator struct {
	service *generativelanguage.Service
	model   string
	logger  *applog.Logger
}

// NewGeminiNarrator builds a narrator from an API key and a model resource
// name such as "models/gemini-1.5-flash-latest".
func NewGeminiNarrator(ctx context.Context, apiKey, model string, logger *applog.Logger) (*GeminiNarrator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini narrator requires an API key")
	}
	service, err := generativelanguage.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create generative language service: %w", err)
	}
	return &GeminiNarrator{
		service: service,
		model:   model,
		logger:  logger.WithComponent(applog.ComponentNarration),
	}, nil
}

func (g *GeminiNarrator) Name() string { return "gemini" }

// Narrate implements Narrator.
func (g *GeminiNarrator) Narrate(ctx context.Context, result *engine.AllocationResult, user UserContext) (*Narratives, error) {
	prompt, err := buildNarratePrompt(result, user)
	if err != nil {
		return nil, err
	}

	answer, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var narratives Narratives
	if err := json.Unmarshal([]byte(answer), &narratives); err != nil {
		return nil, fmt.Errorf("decode narratives: %w", err)
	}
	if !narratives.Complete() {
		return nil, errors.New("model response is missing required explanation fields")
	}
	return &narratives, nil
}

// ReExplain implements Narrator.
func (g *GeminiNarrator) ReExplain(ctx context.Context, accounts []engine.Account, optimal engine.Plan, custom []engine.SplitItem, user UserContext) (string, error) {
	prompt, err := buildReExplainPrompt(accounts, optimal, custom, user)
	if err != nil {
		return "", err
	}

	answer, err := g.generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	var payload struct {
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(answer), &payload); err != nil {
		return "", fmt.Errorf("decode explanation: %w", err)
	}
	if payload.Explanation == "" {
		return "", errors.New("model response is missing the explanation field")
	}
	return payload.Explanation, nil
}

// generate calls the model with bounded retry on rate limiting. Each retry
// backs off exponentially with jitter.
func (g *GeminiNarrator) generate(ctx context.Context, prompt string) (string, error) {
	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := g.service.Models.GenerateContent(g.model, req).Context(ctx).Do()
		if err != nil {
			if !isRateLimited(err) {
				return "", fmt.Errorf("generate content: %w", err)
			}
			lastErr = err
			wait := time.Duration(1<<attempt)*time.Second + time.Duration(rand.Int63n(int64(time.Second)))
			g.logger.WarnContext(ctx, "Rate limited by model API, backing off",
				applog.FieldAttempt, attempt+1, "wait", wait.String())
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := candidateText(resp)
		if err != nil {
			return "", err
		}
		return extractAnswer(text)
	}
	return "", fmt.Errorf("rate limit exceeded after %d attempts: %w", maxRetries+1, lastErr)
}

func candidateText(resp *generativelanguage.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("model returned no candidates")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			return part.Text, nil
		}
	}
	return "", errors.New("model returned no text parts")
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	return false
}
