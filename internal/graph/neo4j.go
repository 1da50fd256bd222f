package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"sopgraph/internal/models"
)

// Neo4jConfig holds connection settings for the Neo4j backend.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

// Neo4jStore implements Store on a Neo4j database. Entity nodes carry both
// the original name and a normalized form; all merging and matching runs
// on the normalized form.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	log      *slog.Logger
}

// NewNeo4jStore connects, verifies connectivity and installs the
// uniqueness constraints the merge queries rely on.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig, log *slog.Logger) (*Neo4jStore, error) {
	if log == nil {
		log = slog.Default()
	}
	user := cfg.User
	if user == "" {
		user = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(user, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("init neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	s := &Neo4jStore{driver: driver, database: cfg.Database, log: log.With("store", "neo4j")}
	s.initSchema(ctx)
	return s, nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

// initSchema is best effort: a failed constraint never blocks startup.
func (s *Neo4jStore) initSchema(ctx context.Context) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT procedure_id_unique IF NOT EXISTS FOR (p:Procedure) REQUIRE p.id IS UNIQUE`,
		`CREATE CONSTRAINT step_id_unique IF NOT EXISTS FOR (s:Step) REQUIRE s.id IS UNIQUE`,
		`CREATE CONSTRAINT tool_name_unique IF NOT EXISTS FOR (t:Tool) REQUIRE t.name_norm IS UNIQUE`,
		`CREATE CONSTRAINT material_name_unique IF NOT EXISTS FOR (m:Material) REQUIRE m.name_norm IS UNIQUE`,
		`CREATE CONSTRAINT safety_note_text_unique IF NOT EXISTS FOR (n:SafetyNote) REQUIRE n.text_norm IS UNIQUE`,
		`CREATE CONSTRAINT concept_name_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.name_norm IS UNIQUE`,
		`CREATE CONSTRAINT definition_term_unique IF NOT EXISTS FOR (d:Definition) REQUIRE d.name_norm IS UNIQUE`,
	}
	for _, q := range stmts {
		if res, err := session.Run(ctx, q, nil); err != nil {
			s.log.Warn("schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

type entityRel struct {
	rel    string
	cypher string
}

var entityRels = []entityRel{
	{rel: RelRequiresTool, cypher: `
UNWIND $rels AS r
MATCH (s:Step {id: r.step_id})
MERGE (e:Tool {name_norm: r.norm})
ON CREATE SET e.name = r.name
MERGE (s)-[:REQUIRES_TOOL]->(e)`},
	{rel: RelUsesMaterial, cypher: `
UNWIND $rels AS r
MATCH (s:Step {id: r.step_id})
MERGE (e:Material {name_norm: r.norm})
ON CREATE SET e.name = r.name
MERGE (s)-[:USES_MATERIAL]->(e)`},
	{rel: RelHasSafetyNote, cypher: `
UNWIND $rels AS r
MATCH (s:Step {id: r.step_id})
MERGE (e:SafetyNote {text_norm: r.norm})
ON CREATE SET e.text = r.name
MERGE (s)-[:HAS_SAFETY_NOTE]->(e)`},
	{rel: RelMentions, cypher: `
UNWIND $rels AS r
MATCH (s:Step {id: r.step_id})
MERGE (e:Concept {name_norm: r.norm})
ON CREATE SET e.name = r.name
MERGE (s)-[:MENTIONS_CONCEPT]->(e)`},
	{rel: RelDefines, cypher: `
UNWIND $rels AS r
MATCH (s:Step {id: r.step_id})
MERGE (e:Definition {name_norm: r.norm})
ON CREATE SET e.name = r.name, e.definition = r.definition
MERGE (s)-[:DEFINES]->(e)`},
}

func (s *Neo4jStore) IngestProcedure(ctx context.Context, p models.Procedure) error {
	steps := make([]map[string]any, 0, len(p.Steps))
	rels := make(map[string][]map[string]any)
	for _, step := range p.Steps {
		steps = append(steps, map[string]any{
			"id":          step.ID,
			"description": step.Description,
			"order":       step.Order,
			"chunk_id":    step.ChunkID,
		})
		add := func(rel, name, definition string) {
			norm := models.NormalizeEntityName(name)
			if norm == "" {
				return
			}
			rels[rel] = append(rels[rel], map[string]any{
				"step_id":    step.ID,
				"name":       name,
				"norm":       norm,
				"definition": definition,
			})
		}
		for _, t := range step.Tools {
			add(RelRequiresTool, t.Name, "")
		}
		for _, m := range step.Materials {
			add(RelUsesMaterial, m.Name, "")
		}
		for _, n := range step.SafetyNotes {
			add(RelHasSafetyNote, n, "")
		}
		for _, c := range step.Concepts {
			add(RelMentions, c.Name, "")
		}
		for _, d := range step.Definitions {
			add(RelDefines, d.Term, d.Definition)
		}
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := run(ctx, tx, `
MERGE (p:Procedure {id: $id})
SET p.title = $title, p.source = $source, p.created_at = $created_at
`, map[string]any{
			"id":         p.ID,
			"title":      p.Title,
			"source":     p.SourceDocID,
			"created_at": p.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return nil, err
		}

		if len(steps) > 0 {
			if err := run(ctx, tx, `
MATCH (p:Procedure {id: $proc_id})
UNWIND $steps AS st
MERGE (s:Step {id: st.id})
SET s.description = st.description, s.order = st.order, s.chunk_id = st.chunk_id
MERGE (p)-[:HAS_STEP]->(s)
`, map[string]any{"proc_id": p.ID, "steps": steps}); err != nil {
				return nil, err
			}
		}

		for _, er := range entityRels {
			batch := rels[er.rel]
			if len(batch) == 0 {
				continue
			}
			if err := run(ctx, tx, er.cypher, map[string]any{"rels": batch}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("ingest procedure %s: %w", p.ID, err)
	}

	s.log.Info("procedure ingested", "procedure", p.ID, "steps", len(p.Steps))
	return nil
}

func run(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

const phase1Query = `
MATCH (step:Step)-[r]->(e)
WHERE e.name_norm = $q OR e.text_norm = $q
RETURN DISTINCT step, type(r) AS rel, labels(e)[0] AS label, coalesce(e.name, e.text) AS node_text
ORDER BY step.order, step.id
`

const phase2Query = `
MATCH (step:Step)-[r]->(e)
WITH step, r, e, coalesce(e.name_norm, e.text_norm) AS norm
WHERE norm CONTAINS $q OR $q CONTAINS norm
RETURN DISTINCT step, type(r) AS rel, labels(e)[0] AS label, coalesce(e.name, e.text) AS node_text
ORDER BY step.order, step.id
`

func (s *Neo4jStore) FindStepsForEntity(ctx context.Context, entity string) ([]StepMatch, error) {
	q := models.NormalizeEntityName(entity)
	if q == "" {
		return nil, nil
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		matches, err := findSteps(ctx, tx, phase1Query, q, MatchExact)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return matches, nil
		}
		return findSteps(ctx, tx, phase2Query, q, MatchSubstring)
	})
	if err != nil {
		return nil, fmt.Errorf("find steps for %q: %w", entity, err)
	}
	return out.([]StepMatch), nil
}

func findSteps(ctx context.Context, tx neo4j.ManagedTransaction, cypher, q, kind string) ([]StepMatch, error) {
	res, err := tx.Run(ctx, cypher, map[string]any{"q": q})
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]StepMatch, 0, len(records))
	for _, rec := range records {
		nodeVal, ok := rec.Get("step")
		if !ok {
			continue
		}
		node, ok := nodeVal.(neo4j.Node)
		if !ok {
			continue
		}
		matches = append(matches, StepMatch{
			Step: models.Step{
				ID:          stringProp(node, "id"),
				Order:       intProp(node, "order"),
				Description: stringProp(node, "description"),
				ChunkID:     stringProp(node, "chunk_id"),
			},
			RelType:   stringVal(rec.AsMap()["rel"]),
			NodeLabel: stringVal(rec.AsMap()["label"]),
			NodeText:  stringVal(rec.AsMap()["node_text"]),
			MatchKind: kind,
		})
	}
	return matches, nil
}

func (s *Neo4jStore) ListProcedures(ctx context.Context) ([]models.Procedure, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (p:Procedure)
OPTIONAL MATCH (p)-[:HAS_STEP]->(s:Step)
WITH p, s ORDER BY p.id, s.order
RETURN p, collect(s) AS steps
`, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		procs := make([]models.Procedure, 0, len(records))
		for _, rec := range records {
			pVal, _ := rec.Get("p")
			pNode, ok := pVal.(neo4j.Node)
			if !ok {
				continue
			}
			proc := models.Procedure{
				ID:          stringProp(pNode, "id"),
				Title:       stringProp(pNode, "title"),
				SourceDocID: stringProp(pNode, "source"),
			}
			if ts, err := time.Parse(time.RFC3339, stringProp(pNode, "created_at")); err == nil {
				proc.CreatedAt = ts
			}
			stepsVal, _ := rec.Get("steps")
			if stepList, ok := stepsVal.([]any); ok {
				for _, sv := range stepList {
					sNode, ok := sv.(neo4j.Node)
					if !ok {
						continue
					}
					proc.Steps = append(proc.Steps, models.Step{
						ID:          stringProp(sNode, "id"),
						Order:       intProp(sNode, "order"),
						Description: stringProp(sNode, "description"),
						ChunkID:     stringProp(sNode, "chunk_id"),
					})
				}
			}
			procs = append(procs, proc)
		}
		return procs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list procedures: %w", err)
	}
	return out.([]models.Procedure), nil
}

func (s *Neo4jStore) DeleteBySource(ctx context.Context, sourceDocID string) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := run(ctx, tx, `
MATCH (p:Procedure {source: $source})
OPTIONAL MATCH (p)-[:HAS_STEP]->(s:Step)
DETACH DELETE s, p
`, map[string]any{"source": sourceDocID}); err != nil {
			return nil, err
		}
		// Orphaned entity nodes go with their last referencing step.
		return nil, run(ctx, tx, `
MATCH (e)
WHERE NOT e:Procedure AND NOT e:Step AND NOT ()-->(e)
DELETE e
`, nil)
	})
	if err != nil {
		return fmt.Errorf("delete source %s: %w", sourceDocID, err)
	}
	return nil
}

func (s *Neo4jStore) Stats(ctx context.Context) (Stats, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (n)
RETURN labels(n)[0] AS label, count(n) AS cnt
`, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		var st Stats
		for _, rec := range records {
			m := rec.AsMap()
			cnt := int(intVal(m["cnt"]))
			switch stringVal(m["label"]) {
			case LabelProcedure:
				st.Procedures = cnt
			case LabelStep:
				st.Steps = cnt
			case LabelTool:
				st.Tools = cnt
			case LabelMaterial:
				st.Materials = cnt
			case LabelSafetyNote:
				st.SafetyNotes = cnt
			case LabelConcept:
				st.Concepts = cnt
			case LabelDefinition:
				st.Definitions = cnt
			}
		}

		res, err = tx.Run(ctx, `MATCH ()-[r]->() RETURN count(r) AS cnt`, nil)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		st.Edges = int(intVal(rec.AsMap()["cnt"]))
		return st, nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("graph stats: %w", err)
	}
	return out.(Stats), nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func stringProp(n neo4j.Node, key string) string {
	return stringVal(n.Props[key])
}

func intProp(n neo4j.Node, key string) int {
	return int(intVal(n.Props[key]))
}

func stringVal(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func intVal(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
