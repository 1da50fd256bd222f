package models

// ChunkMeta is the metadata carried by every indexed chunk. Validated at
// the ingestion boundary so retrieval can rely on these fields existing.
type ChunkMeta struct {
	Source      string   `json:"source"`
	Ordinal     int      `json:"ordinal"`
	FileType    string   `json:"file_type,omitempty"`
	Section     string   `json:"section,omitempty"`
	StepIDs     []string `json:"step_ids,omitempty"`
	Steps       []string `json:"steps,omitempty"`
	StepCount   int      `json:"step_count"`
	SafetyCount int      `json:"safety_count"`
	SafetyNotes []string `json:"safety_notes,omitempty"`
}

// EntityMatch summarizes how one extracted entity matched the graph.
type EntityMatch struct {
	Entity    string   `json:"entity"`
	StepIDs   []string `json:"step_ids"`
	RelTypes  []string `json:"rel_types"`
	MatchKind string   `json:"match_kind"` // exact or partial
}

// KGContext annotates a retrieval result with graph evidence.
type KGContext struct {
	Enhanced     bool          `json:"kg_enhanced"`
	SemanticOnly bool          `json:"semantic_match,omitempty"`
	Matches      []EntityMatch `json:"matches,omitempty"`
}

// RetrievalResult is one ranked context item. Transient, never persisted.
type RetrievalResult struct {
	ChunkID        string     `json:"chunk_id"`
	Text           string     `json:"text"`
	Metadata       ChunkMeta  `json:"metadata"`
	RelevanceScore float64    `json:"relevance_score"`
	KGContext      *KGContext `json:"kg_context,omitempty"`
}

// Stage identifies which stage of the retrieval chain produced the output.
type Stage string

const (
	StageSemantic        Stage = "semantic"          // raw vector search, no entities or no graph match
	StageKGFiltered      Stage = "kg_filtered"       // graph-grounded filter survived
	StageSemanticOverlap Stage = "semantic_overlap"  // entity substring fallback
	StageSemanticFinal   Stage = "semantic_fallback" // all filters empty, original order wins
)

// ContextResult is the outcome of answer-context retrieval. Degraded lists
// backends that were skipped (timeout or unavailable); the results are
// still usable, just less grounded.
type ContextResult struct {
	Results  []RetrievalResult `json:"results"`
	Entities []string          `json:"entities_extracted"`
	Stage    Stage             `json:"stage"`
	Degraded []string          `json:"degraded,omitempty"`
}
