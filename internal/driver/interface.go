// Package driver archives finished identity graphs to an external graph
// store. Archival happens after a resolution call has produced its result;
// the live graph is never read or written concurrently with resolution.
package driver

import (
	"context"

	"github.com/unifydata/unify/internal/core/identity"
	"github.com/unifydata/unify/internal/core/model"
)

// GraphArchiver persists one resolution call's identity graph under a batch
// identifier.
type GraphArchiver interface {
	ArchiveGraph(ctx context.Context, batchID string, master model.IdentityKey, g *identity.Graph) error
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}
