package driver

import (
	"context"
	"log/slog"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifydata/unify/internal/core/identity"
	"github.com/unifydata/unify/internal/core/model"
)

type recordingExecutor struct {
	queries []string
	params  []map[string]interface{}
	err     error
}

func (r *recordingExecutor) ExecuteQuery(_ context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	r.queries = append(r.queries, query)
	r.params = append(r.params, params)
	return neo4j.EagerResult{}, r.err
}

func TestArchiveGraphWritesNodesBeforeEdges(t *testing.T) {
	g := identity.NewGraph()
	g.AddNode("master-1", model.SourceInitial, 1.0)
	g.AddNode("crm-9", "crm", 0.8)
	require.NoError(t, g.AddEdge("master-1", "crm-9", model.RelSharesContact, 0.8, model.TimeRange{}))

	exec := &recordingExecutor{}
	a := &MemgraphArchiver{exec: exec, logger: slog.Default()}

	err := a.ArchiveGraph(context.Background(), "batch-1", "master-1", g)
	require.NoError(t, err)

	require.Len(t, exec.queries, 3)
	assert.Equal(t, saveIdentityNodeQuery, exec.queries[0])
	assert.Equal(t, saveIdentityNodeQuery, exec.queries[1])
	assert.Equal(t, saveIdentityEdgeQuery, exec.queries[2])

	assert.Equal(t, true, exec.params[0]["is_master"])
	assert.Equal(t, false, exec.params[1]["is_master"])
	assert.Equal(t, "batch-1", exec.params[2]["batch_id"])
	assert.Equal(t, string(model.RelSharesContact), exec.params[2]["relationship"])
}

func TestArchiveGraphPropagatesExecutorErrors(t *testing.T) {
	g := identity.NewGraph()
	g.AddNode("master-1", model.SourceInitial, 1.0)

	exec := &recordingExecutor{err: assert.AnError}
	a := &MemgraphArchiver{exec: exec, logger: slog.Default()}

	err := a.ArchiveGraph(context.Background(), "batch-1", "master-1", g)
	assert.ErrorIs(t, err, assert.AnError)
}
