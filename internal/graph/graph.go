// Package graph stores procedures, steps and the entities they touch as a
// property graph and answers entity-to-step lookups. Two backends exist:
// Neo4j for production and an in-memory store for tests and single-binary
// use.
package graph

import (
	"context"

	"sopgraph/internal/models"
)

// Node labels.
const (
	LabelProcedure  = "Procedure"
	LabelStep       = "Step"
	LabelTool       = "Tool"
	LabelMaterial   = "Material"
	LabelSafetyNote = "SafetyNote"
	LabelConcept    = "Concept"
	LabelDefinition = "Definition"
)

// Relationship types.
const (
	RelHasStep       = "HAS_STEP"
	RelRequiresTool  = "REQUIRES_TOOL"
	RelUsesMaterial  = "USES_MATERIAL"
	RelHasSafetyNote = "HAS_SAFETY_NOTE"
	RelMentions      = "MENTIONS_CONCEPT"
	RelDefines       = "DEFINES"
)

// Match kinds reported by FindStepsForEntity.
const (
	MatchExact     = "exact"
	MatchSubstring = "substring"
)

// StepMatch is a step reached from an entity node, annotated with how it
// was reached.
type StepMatch struct {
	Step      models.Step
	RelType   string
	NodeLabel string
	// NodeText is the matched node's name or text, original casing.
	NodeText  string
	MatchKind string
}

// Stats are node and edge counts for reporting.
type Stats struct {
	Procedures  int `json:"procedures"`
	Steps       int `json:"steps"`
	Tools       int `json:"tools"`
	Materials   int `json:"materials"`
	SafetyNotes int `json:"safety_notes"`
	Concepts    int `json:"concepts"`
	Definitions int `json:"definitions"`
	Edges       int `json:"edges"`
}

// Store is the graph backend. Ingest merges by natural identity (step id,
// entity name): re-ingesting the same procedure must not create duplicate
// nodes or edges.
type Store interface {
	IngestProcedure(ctx context.Context, p models.Procedure) error

	// FindStepsForEntity matches in two phases. Phase 1 is an exact match
	// on the normalized entity name or note text; if it yields anything,
	// phase 2 never runs. Phase 2 is a case-insensitive substring match in
	// both directions. The order of the phases is load-bearing: it decides
	// when a partial match is allowed to widen the result set.
	FindStepsForEntity(ctx context.Context, entity string) ([]StepMatch, error)

	ListProcedures(ctx context.Context) ([]models.Procedure, error)
	DeleteBySource(ctx context.Context, sourceDocID string) error
	Stats(ctx context.Context) (Stats, error)
	Close(ctx context.Context) error
}
