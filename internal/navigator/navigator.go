// Package navigator tracks a conversation's position inside a multi-step
// procedure. Two states per session: idle and active. All outcomes short
// of a backend failure are structured responses, never errors; "no active
// procedure" and "end of procedure" are recoverable conditions the caller
// relays to the user.
package navigator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sopgraph/internal/models"
)

// startSearchResults is how many chunks the procedure lookup inspects.
const startSearchResults = 10

// SearchIndex is the chunk index surface the navigator uses to resolve a
// procedure name to its steps.
type SearchIndex interface {
	Search(ctx context.Context, query string, k int, where map[string]string) ([]models.RetrievalResult, error)
}

// Navigator is a mapping from session id to navigation state. Safe for
// concurrent use when the underlying SessionStore is.
type Navigator struct {
	index SearchIndex
	store SessionStore
	log   *slog.Logger
}

// New creates a navigator backed by the given session store.
func New(index SearchIndex, store SessionStore, log *slog.Logger) *Navigator {
	if log == nil {
		log = slog.Default()
	}
	return &Navigator{index: index, store: store, log: log}
}

// Start looks the procedure up by name and activates it for the session
// at step 0. Starting over an already active procedure replaces it. When
// no steps can be found the session keeps whatever state it had.
func (n *Navigator) Start(ctx context.Context, sessionID, procedureName string) (models.NavResult, error) {
	docs, err := n.index.Search(ctx, "procedure "+procedureName, startSearchResults, nil)
	if err != nil {
		return models.NavResult{}, fmt.Errorf("search procedure %q: %w", procedureName, err)
	}

	var steps []string
	var procedureID string
	for _, doc := range docs {
		if len(doc.Metadata.Steps) == 0 {
			continue
		}
		if procedureID == "" {
			procedureID = procedureIDFromMeta(doc.Metadata)
		}
		steps = append(steps, doc.Metadata.Steps...)
	}

	if len(steps) == 0 {
		return models.NavResult{
			Success: false,
			Message: fmt.Sprintf("Procedure '%s' not found in uploaded documents.", procedureName),
		}, nil
	}

	state := models.SessionState{
		ProcedureID:   procedureID,
		ProcedureName: procedureName,
		StepCursor:    0,
		Steps:         steps,
		StartedAt:     time.Now(),
	}
	if err := n.store.Put(ctx, sessionID, state); err != nil {
		return models.NavResult{}, fmt.Errorf("store session: %w", err)
	}

	n.log.Info("procedure started", "session", sessionID, "procedure", procedureName, "steps", len(steps))
	return models.NavResult{
		Success:    true,
		Message:    fmt.Sprintf("Started procedure: %s. Found %d steps.", procedureName, len(steps)),
		StepNumber: 1,
		TotalSteps: len(steps),
		StepText:   steps[0],
		IsFirst:    true,
		IsLast:     len(steps) == 1,
	}, nil
}

// procedureIDFromMeta recovers the graph procedure id from a chunk's step
// ids, which embed it as "<procedure>_step_<n>". Chunks indexed without
// graph backing fall back to the source document name.
func procedureIDFromMeta(meta models.ChunkMeta) string {
	for _, id := range meta.StepIDs {
		if i := strings.LastIndex(id, "_step_"); i > 0 {
			return id[:i]
		}
	}
	return meta.Source
}

// Next advances the cursor. At the last step the cursor stays put and the
// result signals completion.
func (n *Navigator) Next(ctx context.Context, sessionID string) (models.NavResult, error) {
	state, ok, err := n.store.Get(ctx, sessionID)
	if err != nil {
		return models.NavResult{}, err
	}
	if !ok {
		return noActiveProcedure(), nil
	}

	if state.StepCursor >= len(state.Steps)-1 {
		return models.NavResult{
			Success:   false,
			Message:   "You've reached the end of the procedure.",
			Completed: true,
		}, nil
	}

	state.StepCursor++
	if err := n.store.Put(ctx, sessionID, state); err != nil {
		return models.NavResult{}, fmt.Errorf("store session: %w", err)
	}
	return stepResult(state), nil
}

// Previous moves the cursor back. At the first step it is a no-op.
func (n *Navigator) Previous(ctx context.Context, sessionID string) (models.NavResult, error) {
	state, ok, err := n.store.Get(ctx, sessionID)
	if err != nil {
		return models.NavResult{}, err
	}
	if !ok {
		return noActiveProcedure(), nil
	}

	if state.StepCursor <= 0 {
		return models.NavResult{
			Success: false,
			Message: "You're already at the first step.",
		}, nil
	}

	state.StepCursor--
	if err := n.store.Put(ctx, sessionID, state); err != nil {
		return models.NavResult{}, fmt.Errorf("store session: %w", err)
	}
	return stepResult(state), nil
}

// Current reports the active step without mutating state.
func (n *Navigator) Current(ctx context.Context, sessionID string) (models.NavResult, error) {
	state, ok, err := n.store.Get(ctx, sessionID)
	if err != nil {
		return models.NavResult{}, err
	}
	if !ok {
		return noActiveProcedure(), nil
	}
	return stepResult(state), nil
}

// End deactivates the session and reports completion statistics. The
// cursor counts as completed through the step it rests on.
func (n *Navigator) End(ctx context.Context, sessionID string) (models.NavResult, *models.CompletionInfo, error) {
	state, ok, err := n.store.Get(ctx, sessionID)
	if err != nil {
		return models.NavResult{}, nil, err
	}
	if !ok {
		return models.NavResult{
			Success: false,
			Message: "No active procedure to end.",
		}, nil, nil
	}

	completedSteps := state.StepCursor + 1
	totalSteps := len(state.Steps)
	info := &models.CompletionInfo{
		ProcedureName:  state.ProcedureName,
		CompletedSteps: completedSteps,
		TotalSteps:     totalSteps,
		FullyCompleted: completedSteps >= totalSteps,
		StartedAt:      state.StartedAt,
		EndedAt:        time.Now(),
	}
	if totalSteps > 0 {
		info.Percentage = float64(completedSteps) / float64(totalSteps) * 100
	}

	if err := n.store.Delete(ctx, sessionID); err != nil {
		return models.NavResult{}, nil, fmt.Errorf("delete session: %w", err)
	}

	n.log.Info("procedure ended", "session", sessionID, "procedure", state.ProcedureName,
		"completed_steps", completedSteps, "total_steps", totalSteps)
	return models.NavResult{
		Success: true,
		Message: fmt.Sprintf("Procedure '%s' ended. Completed %d of %d steps.",
			state.ProcedureName, completedSteps, totalSteps),
	}, info, nil
}

// Status reports progress without mutating state. Safe in any state.
func (n *Navigator) Status(ctx context.Context, sessionID string) (models.NavStatus, error) {
	state, ok, err := n.store.Get(ctx, sessionID)
	if err != nil {
		return models.NavStatus{}, err
	}
	if !ok {
		return models.NavStatus{Active: false}, nil
	}

	status := models.NavStatus{
		Active:        true,
		ProcedureName: state.ProcedureName,
		CurrentStep:   state.StepCursor + 1,
		TotalSteps:    len(state.Steps),
		StepText:      state.Steps[state.StepCursor],
		IsFirst:       state.StepCursor == 0,
		IsLast:        state.StepCursor == len(state.Steps)-1,
	}
	if len(state.Steps) > 0 {
		status.Percentage = float64(state.StepCursor+1) / float64(len(state.Steps)) * 100
	}
	return status, nil
}

// StepContext renders the active step as extra prompt context for the
// answer synthesizer; empty when the session is idle.
func (n *Navigator) StepContext(ctx context.Context, sessionID string) string {
	state, ok, err := n.store.Get(ctx, sessionID)
	if err != nil || !ok {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\nCurrent Procedure: %s\n", state.ProcedureName)
	fmt.Fprintf(&b, "Current Step: %d of %d\n", state.StepCursor+1, len(state.Steps))
	fmt.Fprintf(&b, "Step Text: %s\n", state.Steps[state.StepCursor])
	return b.String()
}

func stepResult(state models.SessionState) models.NavResult {
	return models.NavResult{
		Success:    true,
		Message:    fmt.Sprintf("Step %d: %s", state.StepCursor+1, state.Steps[state.StepCursor]),
		StepNumber: state.StepCursor + 1,
		TotalSteps: len(state.Steps),
		StepText:   state.Steps[state.StepCursor],
		IsFirst:    state.StepCursor == 0,
		IsLast:     state.StepCursor == len(state.Steps)-1,
	}
}

func noActiveProcedure() models.NavResult {
	return models.NavResult{
		Success: false,
		Message: "No active procedure. Please start a procedure first.",
	}
}
