// Package core wires the identity and conflict resolution components into the
// two entry points collaborators call: ResolveIdentity and ResolveConflicts.
package core

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/unifydata/unify/internal/core/conflict"
	"github.com/unifydata/unify/internal/core/consensus"
	"github.com/unifydata/unify/internal/core/model"
	"github.com/unifydata/unify/internal/driver"
)

// Unify is the resolution core. Identity and conflict resolution are
// in-process computations over data already materialized in memory; the
// optional archiver persists finished identity graphs for later inspection
// and never participates in resolution itself.
type Unify struct {
	Identities *consensus.Resolver
	Conflicts  *conflict.Resolver
	Archiver   driver.GraphArchiver
	Logger     *slog.Logger
}

func New(identities *consensus.Resolver, conflicts *conflict.Resolver, archiver driver.GraphArchiver, logger *slog.Logger) *Unify {
	if logger == nil {
		logger = slog.Default()
	}
	return &Unify{
		Identities: identities,
		Conflicts:  conflicts,
		Archiver:   archiver,
		Logger:     logger,
	}
}

// ResolveIdentity converges the per-source evidence on one consensus identity
// with a populated identity graph. The graph is exclusively owned by this
// call while under construction; once returned it is read-only. Archival is
// best-effort: a failing archiver is logged, never surfaced to the caller.
func (u *Unify) ResolveIdentity(ctx context.Context, initial model.IdentityKey, ev model.EvidenceSet) (*consensus.Result, error) {
	result, err := u.Identities.Resolve(ctx, initial, ev)
	if err != nil {
		return nil, err
	}

	if u.Archiver != nil {
		batchID := uuid.New().String()
		if err := u.Archiver.ArchiveGraph(ctx, batchID, result.MasterIdentity, result.Graph); err != nil {
			u.Logger.Warn("identity graph archival failed",
				"batch_id", batchID, "master", result.MasterIdentity, "error", err)
		}
	}

	u.Logger.Info("identity resolved",
		"master", result.MasterIdentity,
		"confidence", result.OverallConfidence,
		"graph_nodes", result.Graph.NodeCount(),
		"graph_edges", result.Graph.EdgeCount())
	return result, nil
}

// ResolveConflicts resolves every detected attribute conflict it can and
// returns the resolved profile, the ordered audit log, and the conflicts that
// remain. Partial success is the expected steady state.
func (u *Unify) ResolveConflicts(ctx context.Context, profile model.Profile) (*model.ResolutionReport, error) {
	report, err := u.Conflicts.Resolve(ctx, profile)
	if err != nil {
		return nil, err
	}

	u.Logger.Info("profile conflicts resolved",
		"resolved", len(report.Log),
		"remaining", len(report.RemainingConflicts))
	return report, nil
}
