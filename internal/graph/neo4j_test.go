//go:build integration

// Integration tests against a real Neo4j instance. Run with:
//
//	go test -tags integration ./internal/graph/
package graph

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testStore *Neo4jStore
var testContainer testcontainers.Container

func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "neo4j:5.26",
			ExposedPorts: []string{"7687/tcp"},
			Env:          map[string]string{"NEO4J_AUTH": "neo4j/testpassword"},
			WaitingFor:   wait.ForLog("Started.").WithStartupTimeout(120 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start Neo4j container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "7687")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testStore, err = NewNeo4jStore(ctx, Neo4jConfig{
		URI:      fmt.Sprintf("bolt://%s:%s", host, mappedPort.Port()),
		User:     "neo4j",
		Password: "testpassword",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to Neo4j: %v", err)
	}

	code := m.Run()

	_ = testStore.Close(ctx)
	if err := testContainer.Terminate(ctx); err != nil {
		log.Printf("Failed to terminate container: %v", err)
	}

	os.Exit(code)
}

func resetGraph(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	session := testStore.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	res, err := session.Run(ctx, `MATCH (n) DETACH DELETE n`, nil)
	require.NoError(t, err)
	_, err = res.Consume(ctx)
	require.NoError(t, err)
}

func TestNeo4jIngestAndFind(t *testing.T) {
	resetGraph(t)
	ctx := context.Background()

	require.NoError(t, testStore.IngestProcedure(ctx, wheelProcedure()))

	matches, err := testStore.FindStepsForEntity(ctx, "jack")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "manual_step_2", matches[0].Step.ID)
	assert.Equal(t, RelRequiresTool, matches[0].RelType)
	assert.Equal(t, MatchExact, matches[0].MatchKind)

	matches, err = testStore.FindStepsForEntity(ctx, "Wrench")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, MatchSubstring, matches[0].MatchKind)
}

func TestNeo4jIngestIdempotent(t *testing.T) {
	resetGraph(t)
	ctx := context.Background()

	require.NoError(t, testStore.IngestProcedure(ctx, wheelProcedure()))
	first, err := testStore.Stats(ctx)
	require.NoError(t, err)

	require.NoError(t, testStore.IngestProcedure(ctx, wheelProcedure()))
	second, err := testStore.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 3, second.Steps)
}

func TestNeo4jDeleteBySource(t *testing.T) {
	resetGraph(t)
	ctx := context.Background()

	require.NoError(t, testStore.IngestProcedure(ctx, wheelProcedure()))
	require.NoError(t, testStore.DeleteBySource(ctx, "manual.pdf"))

	st, err := testStore.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}
