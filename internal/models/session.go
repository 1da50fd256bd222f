package models

import "time"

// SessionState tracks one conversation's position inside a procedure.
// Keyed per session id; never shared between conversations. The step
// snapshot is taken at start time so navigation does not re-query.
type SessionState struct {
	ProcedureID   string    `json:"procedure_id"`
	ProcedureName string    `json:"procedure_name"`
	StepCursor    int       `json:"step_cursor"`
	Steps         []string  `json:"steps"`
	StartedAt     time.Time `json:"started_at"`
}

// NavResult is the structured response of a navigation operation. Failures
// here are recoverable conditions, not errors.
type NavResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	StepNumber int    `json:"step_number,omitempty"` // 1-based
	TotalSteps int    `json:"total_steps,omitempty"`
	StepText   string `json:"step_text,omitempty"`
	IsFirst    bool   `json:"is_first_step,omitempty"`
	IsLast     bool   `json:"is_last_step,omitempty"`
	Completed  bool   `json:"completed,omitempty"`
}

// CompletionInfo summarizes a finished (or abandoned) procedure run.
type CompletionInfo struct {
	ProcedureName  string    `json:"procedure_name"`
	CompletedSteps int       `json:"completed_steps"`
	TotalSteps     int       `json:"total_steps"`
	Percentage     float64   `json:"completion_percentage"`
	FullyCompleted bool      `json:"fully_completed"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
}

// NavStatus reports session progress without mutating state.
type NavStatus struct {
	Active        bool    `json:"active"`
	ProcedureName string  `json:"procedure_name,omitempty"`
	CurrentStep   int     `json:"current_step,omitempty"` // 1-based
	TotalSteps    int     `json:"total_steps,omitempty"`
	Percentage    float64 `json:"progress_percentage,omitempty"`
	StepText      string  `json:"current_step_text,omitempty"`
	IsFirst       bool    `json:"is_first_step,omitempty"`
	IsLast        bool    `json:"is_last_step,omitempty"`
}
