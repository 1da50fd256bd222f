// Package models defines data structures for the sopgraph retrieval engine.
package models

import "time"

// Definition is a term/definition pair extracted from a document.
type Definition struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// ChunkRecord is the ingestion input produced by the document processor.
// The embedding is never pre-supplied; it is computed at add time.
type ChunkRecord struct {
	Text        string       `json:"text"`
	ChunkID     int          `json:"chunk_id"`
	Source      string       `json:"source"`
	FileType    string       `json:"file_type"`
	ChunkSize   int          `json:"chunk_size"`
	Section     string       `json:"section,omitempty"`
	Steps       []string     `json:"steps"`
	SafetyNotes []string     `json:"safety_notes"`
	Tools       []string     `json:"tools"`
	Materials   []string     `json:"materials"`
	Concepts    []string     `json:"concepts"`
	Figures     []string     `json:"figures"`
	Definitions []Definition `json:"definitions"`
}

// Extracted holds the structured content pulled out of a chunk's text.
type Extracted struct {
	Steps       []string     `json:"steps"`
	Tools       []string     `json:"tools"`
	Materials   []string     `json:"materials"`
	SafetyNotes []string     `json:"safety_notes"`
	Concepts    []string     `json:"concepts"`
	Definitions []Definition `json:"definitions"`
	Figures     []string     `json:"figures"`
}

// Chunk is an indexed document chunk. Immutable once created.
type Chunk struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Embedding    []float32 `json:"embedding,omitempty"`
	SourceDocID  string    `json:"source_document_id"`
	FileType     string    `json:"file_type,omitempty"`
	OrdinalIndex int       `json:"ordinal_index"`
	Size         int       `json:"size"`
	SectionLabel string    `json:"section_label,omitempty"`
	Extracted    Extracted `json:"extracted"`
	AddedAt      time.Time `json:"added_at"`

	// StepIDs are the graph step ids derived from this chunk, stored in the
	// index metadata so retrieval can filter on them without a graph lookup.
	StepIDs []string `json:"step_ids,omitempty"`
}
