package graph

import (
	"context"
	"sort"
	"strings"
	"sync"

	"sopgraph/internal/models"
)

type nodeKey struct {
	label string
	norm  string
}

type entityNode struct {
	label string
	text  string // original casing of first mention
}

type edgeKey struct {
	from string // qualified id, e.g. "Step:manual_step_1"
	rel  string
	to   string
}

// MemoryStore keeps the graph in process memory. Same merge and match
// semantics as the Neo4j store, so the retrieval chain behaves identically
// against either backend.
type MemoryStore struct {
	mu         sync.RWMutex
	procedures map[string]models.Procedure
	steps      map[string]models.Step
	stepProc   map[string]string
	nodes      map[nodeKey]entityNode
	edges      map[edgeKey]struct{}
}

// NewMemoryStore returns an empty in-memory graph.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		procedures: make(map[string]models.Procedure),
		steps:      make(map[string]models.Step),
		stepProc:   make(map[string]string),
		nodes:      make(map[nodeKey]entityNode),
		edges:      make(map[edgeKey]struct{}),
	}
}

func qualify(label, id string) string { return label + ":" + id }

func (s *MemoryStore) mergeNode(label, text string) nodeKey {
	key := nodeKey{label: label, norm: models.NormalizeEntityName(text)}
	if _, ok := s.nodes[key]; !ok {
		s.nodes[key] = entityNode{label: label, text: text}
	}
	return key
}

func (s *MemoryStore) mergeEdge(from, rel string, to nodeKey) {
	s.edges[edgeKey{from: from, rel: rel, to: qualify(to.label, to.norm)}] = struct{}{}
}

// IngestProcedure merges the procedure, its steps and all entity nodes and
// edges by natural identity. Calling it twice with the same ids leaves the
// graph unchanged after the first call, apart from refreshed properties.
func (s *MemoryStore) IngestProcedure(_ context.Context, p models.Procedure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.procedures[p.ID] = p
	for _, step := range p.Steps {
		s.steps[step.ID] = step
		s.stepProc[step.ID] = p.ID
		s.edges[edgeKey{from: qualify(LabelProcedure, p.ID), rel: RelHasStep, to: qualify(LabelStep, step.ID)}] = struct{}{}

		from := qualify(LabelStep, step.ID)
		for _, t := range step.Tools {
			s.mergeEdge(from, RelRequiresTool, s.mergeNode(LabelTool, t.Name))
		}
		for _, m := range step.Materials {
			s.mergeEdge(from, RelUsesMaterial, s.mergeNode(LabelMaterial, m.Name))
		}
		for _, n := range step.SafetyNotes {
			s.mergeEdge(from, RelHasSafetyNote, s.mergeNode(LabelSafetyNote, n))
		}
		for _, c := range step.Concepts {
			s.mergeEdge(from, RelMentions, s.mergeNode(LabelConcept, c.Name))
		}
		for _, d := range step.Definitions {
			s.mergeEdge(from, RelDefines, s.mergeNode(LabelDefinition, d.Term))
		}
	}
	return nil
}

func (s *MemoryStore) FindStepsForEntity(_ context.Context, entity string) ([]StepMatch, error) {
	q := models.NormalizeEntityName(entity)
	if q == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	exact := s.collect(func(key nodeKey) bool { return key.norm == q }, MatchExact)
	if len(exact) > 0 {
		return exact, nil
	}
	return s.collect(func(key nodeKey) bool {
		return strings.Contains(key.norm, q) || strings.Contains(q, key.norm)
	}, MatchSubstring), nil
}

// collect walks entity nodes accepted by match and follows their incoming
// step edges. Results are ordered by step order, then step id, for stable
// output.
func (s *MemoryStore) collect(match func(nodeKey) bool, kind string) []StepMatch {
	var out []StepMatch
	for key, node := range s.nodes {
		if !match(key) {
			continue
		}
		to := qualify(key.label, key.norm)
		for e := range s.edges {
			if e.to != to {
				continue
			}
			stepID, ok := strings.CutPrefix(e.from, LabelStep+":")
			if !ok {
				continue
			}
			step, ok := s.steps[stepID]
			if !ok {
				continue
			}
			out = append(out, StepMatch{
				Step:      step,
				RelType:   e.rel,
				NodeLabel: node.label,
				NodeText:  node.text,
				MatchKind: kind,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Step.Order != out[j].Step.Order {
			return out[i].Step.Order < out[j].Step.Order
		}
		if out[i].Step.ID != out[j].Step.ID {
			return out[i].Step.ID < out[j].Step.ID
		}
		return out[i].RelType < out[j].RelType
	})
	return out
}

func (s *MemoryStore) ListProcedures(_ context.Context) ([]models.Procedure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Procedure, 0, len(s.procedures))
	for _, p := range s.procedures {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteBySource removes every procedure from the source document, its
// steps and their edges. Entity nodes left without any edge are removed
// too, so repeated ingest/delete cycles do not leak nodes.
func (s *MemoryStore) DeleteBySource(_ context.Context, sourceDocID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.procedures {
		if p.SourceDocID != sourceDocID {
			continue
		}
		for _, step := range p.Steps {
			delete(s.steps, step.ID)
			delete(s.stepProc, step.ID)
			from := qualify(LabelStep, step.ID)
			for e := range s.edges {
				if e.from == from {
					delete(s.edges, e)
				}
			}
		}
		procQ := qualify(LabelProcedure, id)
		for e := range s.edges {
			if e.from == procQ {
				delete(s.edges, e)
			}
		}
		delete(s.procedures, id)
	}

	referenced := make(map[string]bool, len(s.edges))
	for e := range s.edges {
		referenced[e.to] = true
	}
	for key := range s.nodes {
		if !referenced[qualify(key.label, key.norm)] {
			delete(s.nodes, key)
		}
	}
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Procedures: len(s.procedures),
		Steps:      len(s.steps),
		Edges:      len(s.edges),
	}
	for key := range s.nodes {
		switch key.label {
		case LabelTool:
			st.Tools++
		case LabelMaterial:
			st.Materials++
		case LabelSafetyNote:
			st.SafetyNotes++
		case LabelConcept:
			st.Concepts++
		case LabelDefinition:
			st.Definitions++
		}
	}
	return st, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }
