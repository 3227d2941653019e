package store

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"cogbot/backend/pkg/config"
	"cogbot/backend/pkg/logger"
)

// Open returns the Neo4j store when NEO4J_URI is set and an in-memory store
// otherwise. On success the returned close function is never nil.
func Open(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	log := logger.Get()

	if cfg.Neo4jURI == "" {
		log.Warn("NEO4J_URI not set, settings will not survive a restart")
		return NewMemory(), func() {}, nil
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return nil, nil, err
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, nil, err
	}

	s := NewNeo4j(driver)
	if err := s.EnsureSchema(ctx); err != nil {
		driver.Close(ctx)
		return nil, nil, err
	}

	log.Info("Using Neo4j settings store", zap.String("uri", cfg.Neo4jURI))
	return s, func() {
		if err := s.Close(); err != nil {
			log.Warn("Failed to close Neo4j driver", zap.Error(err))
		}
	}, nil
}
