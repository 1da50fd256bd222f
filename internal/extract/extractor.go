// Package extract turns free text into candidate domain entities for graph
// lookup. Extraction is best-effort and never fails: if the linguistic
// backend is unavailable the heuristics still run, and the worst case is
// an empty set.
package extract

import (
	"context"
	"log/slog"
	"strings"
)

// NERBackend is an optional linguistic extractor (LLM-based named-entity
// and noun-phrase recognition). Errors from the backend degrade extraction
// to heuristics only; they never surface to the caller.
type NERBackend interface {
	ExtractEntities(ctx context.Context, text string) ([]string, error)
}

// Extractor combines linguistic extraction with the domain lexicon and
// surface heuristics.
type Extractor struct {
	ner NERBackend
	log *slog.Logger
}

// New creates an Extractor. ner may be nil; log may be nil.
func New(ner NERBackend, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{ner: ner, log: log}
}

// Extract returns the ordered, de-duplicated entity candidates found in
// query. De-duplication is case-insensitive; the casing of the first
// occurrence is preserved. Deterministic for a given query and backend.
func (e *Extractor) Extract(ctx context.Context, query string) []string {
	set := newOrderedSet()

	if e.ner != nil {
		entities, err := e.ner.ExtractEntities(ctx, query)
		if err != nil {
			e.log.Warn("linguistic extraction unavailable, using heuristics only", "error", err)
		} else {
			for _, ent := range entities {
				set.add(ent)
			}
		}
	}

	for _, re := range lexiconPatterns {
		for _, m := range re.FindAllString(query, -1) {
			set.add(m)
		}
	}

	for _, m := range capitalizedWordRe.FindAllString(query, -1) {
		set.add(m)
	}

	for _, groups := range quotedRe.FindAllStringSubmatch(query, -1) {
		if groups[1] != "" {
			set.add(groups[1])
		} else {
			set.add(groups[2])
		}
	}

	for _, m := range abbreviationRe.FindAllString(query, -1) {
		set.add(m)
	}

	entities := collapseSubstrings(set.items)
	e.log.Debug("entities extracted", "query_len", len(query), "count", len(entities))
	return entities
}

// collapseSubstrings drops candidates contained in a longer candidate, so
// a phrase match like "torque wrench" suppresses the bare verb "torque".
func collapseSubstrings(items []string) []string {
	var out []string
	for i, item := range items {
		key := strings.ToLower(item)
		contained := false
		for j, other := range items {
			if i == j {
				continue
			}
			o := strings.ToLower(other)
			if len(o) > len(key) && strings.Contains(o, key) {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, item)
		}
	}
	return out
}

// orderedSet keeps first-seen order with case-insensitive identity.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(raw string) {
	candidate := strings.TrimSpace(raw)
	if len(candidate) < 2 {
		return
	}
	key := strings.ToLower(candidate)
	if _, stop := stopWords[key]; stop {
		return
	}
	if _, dup := s.seen[key]; dup {
		return
	}
	s.seen[key] = struct{}{}
	s.items = append(s.items, candidate)
}
