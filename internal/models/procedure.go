package models

import "time"

// EntityRef is a named node shared across procedures. Identity is the
// normalized name, not the procedure that mentioned it.
type EntityRef struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // tool, material, concept, safety_note, definition
}

// Step is a single ordered step of a procedure. Order is unique and
// contiguous within the owning procedure.
type Step struct {
	ID          string       `json:"id"`
	Order       int          `json:"order"`
	Description string       `json:"description"`
	ChunkID     string       `json:"chunk_id"`
	Tools       []EntityRef  `json:"tools,omitempty"`
	Materials   []EntityRef  `json:"materials,omitempty"`
	SafetyNotes []string     `json:"safety_notes,omitempty"`
	Concepts    []EntityRef  `json:"concepts,omitempty"`
	Definitions []Definition `json:"definitions,omitempty"`
}

// Procedure is the ordered step sequence built from one ingested document.
type Procedure struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	SourceDocID string    `json:"source_document_id"`
	CreatedAt   time.Time `json:"created_at"`
	Steps       []Step    `json:"steps"`
}
