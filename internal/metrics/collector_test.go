package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpSemanticSearch, 10*time.Millisecond)
	c.RecordTiming(OpSemanticSearch, 30*time.Millisecond)

	snap := c.Snapshot()
	op := snap.Operations[OpSemanticSearch]
	if op == nil {
		t.Fatal("expected semantic_search snapshot")
	}
	if op.Count != 2 {
		t.Errorf("Count = %d, want 2", op.Count)
	}
	if op.MinTimeMs != 10 || op.MaxTimeMs != 30 {
		t.Errorf("Min/Max = %d/%d, want 10/30", op.MinTimeMs, op.MaxTimeMs)
	}
	if op.AvgTimeMs != 20 {
		t.Errorf("AvgTimeMs = %v, want 20", op.AvgTimeMs)
	}
}

func TestRecordRetrieval(t *testing.T) {
	c := NewCollector()
	c.RecordRetrieval("kg_filtered", 3, 5, 1, false)
	c.RecordRetrieval("semantic", 0, 5, 5, true)

	snap := c.Snapshot()
	r := snap.Retrieval
	if r.Queries != 2 {
		t.Errorf("Queries = %d, want 2", r.Queries)
	}
	if r.EntitiesExtracted != 3 {
		t.Errorf("EntitiesExtracted = %d, want 3", r.EntitiesExtracted)
	}
	if r.StageCounts["kg_filtered"] != 1 || r.StageCounts["semantic"] != 1 {
		t.Errorf("StageCounts = %v", r.StageCounts)
	}
	if r.ResultsIn != 10 || r.ResultsOut != 6 {
		t.Errorf("ResultsIn/Out = %d/%d, want 10/6", r.ResultsIn, r.ResultsOut)
	}
	if r.Degraded != 1 {
		t.Errorf("Degraded = %d, want 1", r.Degraded)
	}
}

func TestCollectorConcurrency(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpGraphLookup, time.Millisecond)
			c.RecordRetrieval("semantic", 1, 1, 1, false)
			_ = c.Snapshot()
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.Operations[OpGraphLookup].Count != 50 {
		t.Errorf("Count = %d, want 50", snap.Operations[OpGraphLookup].Count)
	}
	if snap.Retrieval.Queries != 50 {
		t.Errorf("Queries = %d, want 50", snap.Retrieval.Queries)
	}
}
