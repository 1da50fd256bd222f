package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"sopgraph/internal/graph"
	"sopgraph/internal/index"
	"sopgraph/internal/llm"
	"sopgraph/internal/metrics"
	"sopgraph/internal/models"
	"sopgraph/internal/navigator"
	"sopgraph/internal/retriever"
)

// Synthesizer is the answer-synthesis boundary. The service hands it the
// query, the ranked context and recent turns; how the text is produced is
// not its concern.
type Synthesizer interface {
	SynthesizeAnswer(ctx context.Context, query string, docs []models.RetrievalResult, history []llm.Turn) (llm.Answer, error)
}

// QueryService answers questions: navigation commands go to the
// navigator, everything else through the retrieval chain and on to the
// synthesizer.
type QueryService struct {
	retriever *retriever.Retriever
	navigator *navigator.Navigator
	model     Synthesizer
	metrics   *metrics.Collector
	log       *slog.Logger
	topK      int
}

// NewQueryService creates a new query service. model may be nil, in which
// case no answer text is synthesized and callers get the raw context.
func NewQueryService(r *retriever.Retriever, nav *navigator.Navigator, model Synthesizer, collector *metrics.Collector, log *slog.Logger, topK int) *QueryService {
	if log == nil {
		log = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if topK <= 0 {
		topK = 5
	}
	return &QueryService{
		retriever: r,
		navigator: nav,
		model:     model,
		metrics:   collector,
		log:       log,
		topK:      topK,
	}
}

// QueryOptions configures one query.
type QueryOptions struct {
	// SessionID selects the navigation session; empty means no procedure
	// context.
	SessionID string
	// Filter optionally scopes the semantic search, e.g. {"source": ...}.
	Filter map[string]string
	// History is the recent conversation, oldest first.
	History []llm.Turn
}

// QueryResponse is the result of one query.
type QueryResponse struct {
	Response          string                   `json:"response"`
	Context           []models.RetrievalResult `json:"context"`
	Entities          []string                 `json:"entities_extracted"`
	Stage             models.Stage             `json:"stage"`
	Sources           []string                 `json:"sources"`
	Confidence        float64                  `json:"confidence"`
	ContextUsed       bool                     `json:"context_used"`
	CurrentProcedure  string                   `json:"current_procedure,omitempty"`
	SafetyInformation []string                 `json:"safety_information,omitempty"`
	Navigation        *models.NavResult        `json:"navigation,omitempty"`
	Degraded          []string                 `json:"degraded,omitempty"`
}

// Query processes one user query. Navigation phrasing short-circuits to
// the navigator; otherwise the retrieval chain builds the context and the
// synthesizer phrases the answer.
func (s *QueryService) Query(ctx context.Context, query string, opts QueryOptions) (QueryResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return QueryResponse{}, fmt.Errorf("empty query")
	}

	if opts.SessionID != "" {
		if nav, handled, err := s.handleNavigation(ctx, opts.SessionID, query); err != nil {
			return QueryResponse{}, err
		} else if handled {
			return QueryResponse{
				Response:         nav.Message,
				Navigation:       &nav,
				CurrentProcedure: s.currentProcedure(ctx, opts.SessionID),
			}, nil
		}
	}

	ctxRes, err := s.retriever.AnswerContext(ctx, query, s.topK, opts.Filter)
	if err != nil {
		return QueryResponse{}, err
	}

	resp := QueryResponse{
		Context:          ctxRes.Results,
		Entities:         ctxRes.Entities,
		Stage:            ctxRes.Stage,
		Confidence:       maxRelevance(ctxRes.Results),
		ContextUsed:      len(ctxRes.Results) > 0,
		CurrentProcedure: s.currentProcedure(ctx, opts.SessionID),
		Degraded:         ctxRes.Degraded,
	}

	if strings.Contains(strings.ToLower(query), "safety") {
		resp.SafetyInformation = extractSafetyInformation(ctxRes.Results)
	}

	if s.model != nil {
		enhanced := query
		if opts.SessionID != "" {
			enhanced += s.navigator.StepContext(ctx, opts.SessionID)
		}

		start := time.Now()
		answer, synthErr := s.model.SynthesizeAnswer(ctx, enhanced, ctxRes.Results, opts.History)
		s.metrics.RecordTiming(metrics.OpSynthesize, time.Since(start))
		if synthErr != nil {
			// The context is still useful on its own; report the missing
			// synthesizer instead of failing the query.
			s.log.Error("answer synthesis failed", "error", synthErr)
			resp.Degraded = append(resp.Degraded, "answer synthesizer unavailable")
		} else {
			resp.Response = answer.Text
			resp.Sources = answer.Sources
		}
	}

	return resp, nil
}

var startProcedureRe = regexp.MustCompile(`(?:start|begin)\s+(?:procedure\s+)?([^.!?]+)`)

// handleNavigation routes procedural phrasing to the navigator. Returns
// handled=false when the query is a regular question.
func (s *QueryService) handleNavigation(ctx context.Context, sessionID, query string) (models.NavResult, bool, error) {
	lower := strings.ToLower(query)

	switch {
	case containsAny(lower, "next step", "continue", "move forward", "proceed"):
		res, err := s.navigator.Next(ctx, sessionID)
		return res, true, err
	case containsAny(lower, "previous step", "go back", "move back", "last step"):
		res, err := s.navigator.Previous(ctx, sessionID)
		return res, true, err
	case containsAny(lower, "current step", "where am i", "what step"):
		res, err := s.navigator.Current(ctx, sessionID)
		return res, true, err
	case containsAny(lower, "end procedure", "stop procedure", "finish procedure", "exit procedure"):
		res, _, err := s.navigator.End(ctx, sessionID)
		return res, true, err
	case containsAny(lower, "procedure status", "my progress", "how far along"):
		status, err := s.navigator.Status(ctx, sessionID)
		if err != nil {
			return models.NavResult{}, true, err
		}
		if !status.Active {
			return models.NavResult{Message: "No active procedure. Please start a procedure first."}, true, nil
		}
		return models.NavResult{
			Success:    true,
			Message:    fmt.Sprintf("Procedure '%s': step %d of %d (%.0f%% complete).", status.ProcedureName, status.CurrentStep, status.TotalSteps, status.Percentage),
			StepNumber: status.CurrentStep,
			TotalSteps: status.TotalSteps,
			StepText:   status.StepText,
			IsFirst:    status.IsFirst,
			IsLast:     status.IsLast,
		}, true, nil
	case containsAny(lower, "start procedure", "begin procedure"):
		if m := startProcedureRe.FindStringSubmatch(lower); m != nil {
			name := strings.TrimSpace(strings.TrimPrefix(m[1], "procedure "))
			res, err := s.navigator.Start(ctx, sessionID, name)
			return res, true, err
		}
	}
	return models.NavResult{}, false, nil
}

func containsAny(s string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func (s *QueryService) currentProcedure(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		return ""
	}
	status, err := s.navigator.Status(ctx, sessionID)
	if err != nil || !status.Active {
		return ""
	}
	return status.ProcedureName
}

func maxRelevance(docs []models.RetrievalResult) float64 {
	var best float64
	for _, doc := range docs {
		if doc.RelevanceScore > best {
			best = doc.RelevanceScore
		}
	}
	return best
}

// extractSafetyInformation gathers safety notes from the context chunks,
// deduplicated in first-seen order.
func extractSafetyInformation(docs []models.RetrievalResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, doc := range docs {
		for _, note := range doc.Metadata.SafetyNotes {
			if note == "" || seen[note] {
				continue
			}
			seen[note] = true
			out = append(out, note)
		}
	}
	return out
}

// StatsService reports combined system statistics.
type StatsService struct {
	index *index.Index
	graph graph.Store
	coll  *metrics.Collector
}

// NewStatsService creates a stats service.
func NewStatsService(idx *index.Index, store graph.Store, collector *metrics.Collector) *StatsService {
	return &StatsService{index: idx, graph: store, coll: collector}
}

// SystemStats is the combined view of both backends plus runtime metrics.
type SystemStats struct {
	IndexedChunks int              `json:"indexed_chunks"`
	Graph         graph.Stats      `json:"graph"`
	Runtime       metrics.Snapshot `json:"runtime"`
	Procedures    []ProcedureInfo  `json:"procedures"`
}

// ProcedureInfo is a short procedure listing entry.
type ProcedureInfo struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Source string `json:"source"`
	Steps  int    `json:"steps"`
}

// Stats gathers counts from the index, the graph and the collector.
func (s *StatsService) Stats(ctx context.Context) (SystemStats, error) {
	graphStats, err := s.graph.Stats(ctx)
	if err != nil {
		return SystemStats{}, fmt.Errorf("graph stats: %w", err)
	}
	procs, err := s.graph.ListProcedures(ctx)
	if err != nil {
		return SystemStats{}, fmt.Errorf("list procedures: %w", err)
	}

	infos := make([]ProcedureInfo, 0, len(procs))
	for _, p := range procs {
		infos = append(infos, ProcedureInfo{
			ID:     p.ID,
			Title:  p.Title,
			Source: p.SourceDocID,
			Steps:  len(p.Steps),
		})
	}

	return SystemStats{
		IndexedChunks: s.index.Count(),
		Graph:         graphStats,
		Runtime:       s.coll.Snapshot(),
		Procedures:    infos,
	}, nil
}
