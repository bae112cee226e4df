package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"squadgraph/backend/pkg/errors"
	"squadgraph/backend/pkg/logger"
)

// upsertChunkSize bounds the UNWIND parameter list of one statement
const upsertChunkSize = 5000

// Repository handles all Neo4j database operations
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewRepository creates a new graph repository. An empty database name uses
// the server default.
func NewRepository(driver neo4j.DriverWithContext, database string) *Repository {
	return &Repository{
		driver:   driver,
		database: database,
		logger:   logger.Named("graph"),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

func (r *Repository) readSession(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: r.database})
}

func (r *Repository) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: r.database})
}

// wrap classifies driver failures: connectivity problems become
// ErrStoreUnavailable, everything else keeps its original error.
func (r *Repository) wrap(operation string, err error) error {
	if err == nil {
		return nil
	}
	if neo4j.IsConnectivityError(err) {
		return errors.NewStoreUnavailable("graph", operation, err)
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// collect runs a read query and returns every record
func (r *Repository) collect(ctx context.Context, operation, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, r.wrap(operation, err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, r.wrap(operation, err)
	}
	return records, nil
}

// EnsureIndexes creates the uniqueness constraints the upserts rely on.
// Safe to call on every start.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	queries := []string{
		"CREATE CONSTRAINT player_name IF NOT EXISTS FOR (p:Player) REQUIRE p.name IS UNIQUE",
		"CREATE CONSTRAINT server_id IF NOT EXISTS FOR (s:Server) REQUIRE s.id IS UNIQUE",
		"CREATE CONSTRAINT community_id IF NOT EXISTS FOR (c:Community) REQUIRE c.id IS UNIQUE",
		"CREATE INDEX player_community IF NOT EXISTS FOR (p:Player) ON (p.communityId)",
	}

	for _, q := range queries {
		if _, err := session.Run(ctx, q, nil); err != nil {
			return r.wrap("ensure indexes", err)
		}
	}

	r.logger.Info("Graph constraints ensured", zap.Int("count", len(queries)))
	return nil
}
