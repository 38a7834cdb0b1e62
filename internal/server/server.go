package server

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unifydata/unify/internal/config"
	"github.com/unifydata/unify/internal/core"
	"github.com/unifydata/unify/internal/core/cluster"
	"github.com/unifydata/unify/internal/core/conflict"
	"github.com/unifydata/unify/internal/core/consensus"
	"github.com/unifydata/unify/internal/core/model"
	"github.com/unifydata/unify/internal/driver"
	"github.com/unifydata/unify/internal/metrics"
)

type Server struct {
	Unify *core.Unify
}

func NewServer() *Server {
	logger := slog.Default()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/unify.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Could not load %s (%v), using defaults", cfgPath, err)
		cfg = config.Default()
	}

	// env overrides for deployment secrets
	if uri := os.Getenv("ARCHIVE_URI"); uri != "" {
		cfg.Archive.Enabled = true
		cfg.Archive.URI = uri
	}
	if user := os.Getenv("ARCHIVE_USER"); user != "" {
		cfg.Archive.User = user
	}
	if pass := os.Getenv("ARCHIVE_PASSWORD"); pass != "" {
		cfg.Archive.Password = pass
	}

	strategies := []consensus.ClaimStrategy{
		consensus.ContactFingerprintStrategy{},
		consensus.DeviceLinkageStrategy{},
		consensus.BehaviorSimilarityStrategy{MinSimilarity: cfg.Resolution.BehaviorMinSimilarity},
		consensus.TransactionLinkageStrategy{},
	}
	resolverOpts := []consensus.Option{
		consensus.WithWeights(cfg.Resolution.StrategyWeights),
		consensus.WithLogger(logger),
	}
	if cfg.Resolution.Clusters {
		resolverOpts = append(resolverOpts, consensus.WithClusterDetector(cluster.NewLabelPropagationDetector()))
	}
	identities := consensus.NewResolver(strategies, resolverOpts...)

	conflicts := conflict.NewResolver(
		conflict.NewDetector(cfg.Conflict.NumericTolerance),
		conflict.WithConcurrency(cfg.Conflict.Concurrency),
		conflict.WithPlausibilityChecks(plausibilityChecks(cfg)),
		conflict.WithLogger(logger),
	)

	var archiver driver.GraphArchiver
	if cfg.Archive.Enabled {
		a, err := driver.NewMemgraphArchiver(cfg.Archive.URI, cfg.Archive.User, cfg.Archive.Password, logger)
		if err != nil {
			log.Fatalf("Failed to connect to graph archive: %v", err)
		}
		if err := a.BuildIndices(context.Background()); err != nil {
			log.Printf("Failed to build archive indices: %v", err)
		}
		archiver = a
	}

	return &Server{
		Unify: core.New(identities, conflicts, archiver, logger),
	}
}

func plausibilityChecks(cfg *config.Config) map[model.AttributeName][]conflict.PlausibilityCheck {
	checks := make(map[model.AttributeName][]conflict.PlausibilityCheck)
	for attr, bounds := range cfg.Conflict.Ranges {
		checks[model.AttributeName(attr)] = append(checks[model.AttributeName(attr)],
			conflict.RangeCheck{Min: bounds.Min, Max: bounds.Max})
	}
	for attr, values := range cfg.Conflict.AllowedValues {
		checks[model.AttributeName(attr)] = append(checks[model.AttributeName(attr)],
			conflict.AllowedValuesCheck{Values: values})
	}
	return checks
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/v1/resolve/identity", s.ResolveIdentity)
	r.POST("/v1/resolve/conflicts", s.ResolveConflicts)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type ResolveIdentityRequest struct {
	InitialIdentifier model.IdentityKey `json:"initial_identifier" binding:"required"`
	Evidence          model.EvidenceSet `json:"evidence"`
}

type graphJSON struct {
	Nodes []model.IdentityNode `json:"nodes"`
	Edges []model.IdentityEdge `json:"edges"`
}

type ResolveIdentityResponse struct {
	MasterIdentity    model.IdentityKey                     `json:"master_identity"`
	OverallConfidence float64                               `json:"overall_confidence"`
	Attributes        map[model.AttributeName]any           `json:"attributes,omitempty"`
	Votes             map[model.IdentityKey]model.VoteTally `json:"votes"`
	Clusters          []model.IdentityCluster               `json:"clusters,omitempty"`
	Graph             graphJSON                             `json:"graph"`
}

func (s *Server) ResolveIdentity(c *gin.Context) {
	var req ResolveIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	start := time.Now()
	result, err := s.Unify.ResolveIdentity(c.Request.Context(), req.InitialIdentifier, req.Evidence)
	metrics.IdentityResolutionSeconds.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, consensus.ErrNoIdentityEvidence):
		metrics.IdentityResolutions.WithLabelValues("no_evidence").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no identity evidence from any strategy"})
		return
	case err != nil:
		metrics.IdentityResolutions.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve identity"})
		return
	}
	metrics.IdentityResolutions.WithLabelValues("success").Inc()

	c.JSON(http.StatusOK, ResolveIdentityResponse{
		MasterIdentity:    result.MasterIdentity,
		OverallConfidence: result.OverallConfidence,
		Attributes:        result.Attributes,
		Votes:             result.Votes,
		Clusters:          result.Clusters,
		Graph: graphJSON{
			Nodes: result.Graph.Nodes(),
			Edges: result.Graph.Edges(),
		},
	})
}

type ResolveConflictsRequest struct {
	Profile model.Profile `json:"profile" binding:"required"`
}

func (s *Server) ResolveConflicts(c *gin.Context) {
	var req ResolveConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	report, err := s.Unify.ResolveConflicts(c.Request.Context(), req.Profile)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve conflicts"})
		return
	}
	metrics.ConflictsResolved.Add(float64(len(report.Log)))
	metrics.ConflictsRemaining.Add(float64(len(report.RemainingConflicts)))

	c.JSON(http.StatusOK, report)
}
