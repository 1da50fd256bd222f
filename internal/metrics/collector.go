// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpSemanticSearch = "semantic_search"
	OpEntityExtract  = "entity_extract"
	OpGraphLookup    = "graph_lookup"
	OpSynthesize     = "synthesize"
	OpIngest         = "ingest"
)

// OperationMetrics holds aggregated timings for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// RetrievalSnapshot aggregates the retrieval chain's behavior: how often
// each stage produced the final answer context and how hard the graph
// filter worked.
type RetrievalSnapshot struct {
	Queries           int64            `json:"queries"`
	EntitiesExtracted int64            `json:"entities_extracted"`
	StageCounts       map[string]int64 `json:"stage_counts"`
	ResultsIn         int64            `json:"results_in"`
	ResultsOut        int64            `json:"results_out"`
	Degraded          int64            `json:"degraded"`
}

// Snapshot represents the full statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                       `json:"uptime_seconds"`
	Retrieval     RetrievalSnapshot             `json:"retrieval"`
	Operations    map[string]*OperationSnapshot `json:"operations"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics

	queries           int64
	entitiesExtracted int64
	stageCounts       map[string]int64
	resultsIn         int64
	resultsOut        int64
	degraded          int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime:   time.Now(),
		ops:         make(map[string]*OperationMetrics),
		stageCounts: make(map[string]int64),
	}
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	m.Count++
	m.TotalTime += duration
	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordRetrieval records one answer-context run: the stage that produced
// the final output, entity and result counts, and whether any backend was
// skipped.
func (c *Collector) RecordRetrieval(stage string, entities, resultsIn, resultsOut int, degraded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queries++
	c.entitiesExtracted += int64(entities)
	c.stageCounts[stage]++
	c.resultsIn += int64(resultsIn)
	c.resultsOut += int64(resultsOut)
	if degraded {
		c.degraded++
	}
}

func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ops := make(map[string]*OperationSnapshot, len(c.ops))
	for name, m := range c.ops {
		if snap := snapshotOp(m); snap != nil {
			ops[name] = snap
		}
	}

	stages := make(map[string]int64, len(c.stageCounts))
	for stage, n := range c.stageCounts {
		stages[stage] = n
	}

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Retrieval: RetrievalSnapshot{
			Queries:           c.queries,
			EntitiesExtracted: c.entitiesExtracted,
			StageCounts:       stages,
			ResultsIn:         c.resultsIn,
			ResultsOut:        c.resultsOut,
			Degraded:          c.degraded,
		},
		Operations: ops,
	}
}
