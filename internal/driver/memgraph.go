package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/unifydata/unify/internal/core/identity"
	"github.com/unifydata/unify/internal/core/model"
	"github.com/unifydata/unify/internal/metrics"
)

// cypherExecutor is the slice of the neo4j driver the archiver needs; tests
// substitute a recording fake.
type cypherExecutor interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
}

// MemgraphArchiver writes identity graphs to Memgraph (or any Bolt-speaking
// store) over the neo4j driver.
type MemgraphArchiver struct {
	driver neo4j.DriverWithContext
	exec   cypherExecutor
	logger *slog.Logger
}

type boltExecutor struct {
	driver neo4j.DriverWithContext
}

func (b boltExecutor) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, b.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func NewMemgraphArchiver(uri, username, password string, logger *slog.Logger) (*MemgraphArchiver, error) {
	d, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := d.VerifyConnectivity(context.Background()); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connected to graph archive", "uri", uri)
	return &MemgraphArchiver{driver: d, exec: boltExecutor{driver: d}, logger: logger}, nil
}

func (a *MemgraphArchiver) Close(ctx context.Context) error {
	return a.driver.Close(ctx)
}

// ArchiveGraph persists every node, then every edge, of g under batchID.
// Node-before-edge ordering mirrors the graph's own invariant: an edge never
// references an identity the store has not seen.
func (a *MemgraphArchiver) ArchiveGraph(ctx context.Context, batchID string, master model.IdentityKey, g *identity.Graph) error {
	archivedAt := time.Now().UTC().Format(time.RFC3339)

	for _, n := range g.Nodes() {
		sources := make([]string, len(n.Sources))
		for i, s := range n.Sources {
			sources[i] = string(s)
		}
		params := map[string]interface{}{
			"key":         string(n.Identity),
			"batch_id":    batchID,
			"sources":     sources,
			"confidence":  n.Confidence,
			"is_master":   n.Identity == master,
			"archived_at": archivedAt,
		}
		if _, err := a.exec.ExecuteQuery(ctx, saveIdentityNodeQuery, params); err != nil {
			return fmt.Errorf("archiving identity node %s: %w", n.Identity, err)
		}
		metrics.GraphNodesArchived.Inc()
	}

	for _, e := range g.Edges() {
		params := map[string]interface{}{
			"from_key":     string(e.From),
			"to_key":       string(e.To),
			"batch_id":     batchID,
			"relationship": string(e.Relationship),
			"confidence":   e.Confidence,
			"valid_from":   e.Validity.From.Format(time.RFC3339),
			"valid_to":     formatOptional(e.Validity.To),
		}
		if _, err := a.exec.ExecuteQuery(ctx, saveIdentityEdgeQuery, params); err != nil {
			return fmt.Errorf("archiving identity edge %s -> %s: %w", e.From, e.To, err)
		}
	}

	return nil
}

func (a *MemgraphArchiver) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :Identity(key);",
		"CREATE INDEX ON :Identity(batch_id);",
	}
	for _, q := range queries {
		if _, err := a.exec.ExecuteQuery(ctx, q, nil); err != nil {
			// index may already exist
			a.logger.Warn("failed to create index", "query", q, "error", err)
		}
	}
	return nil
}

func formatOptional(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
