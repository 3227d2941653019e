package store

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "cogbot/backend/pkg/errors"
	"cogbot/backend/pkg/logger"
)

// Neo4j stores settings as (:Setting {scope, key, value, updated_at}) nodes
type Neo4j struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewNeo4j creates a Neo4j-backed store
func NewNeo4j(driver neo4j.DriverWithContext) *Neo4j {
	return &Neo4j{
		driver: driver,
		logger: logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (r *Neo4j) Close() error {
	return r.driver.Close(context.Background())
}

// EnsureSchema creates the lookup index for settings
func (r *Neo4j) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `CREATE INDEX setting_scope_key IF NOT EXISTS FOR (s:Setting) ON (s.scope, s.key)`
	if _, err := session.Run(ctx, query, nil); err != nil {
		return apperrors.NewStoreQueryFailed("*", "*", err)
	}
	return nil
}

func (r *Neo4j) Get(ctx context.Context, scope, key string) (string, bool, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (s:Setting {scope: $scope, key: $key})
		RETURN s.value as value
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"scope": scope,
		"key":   key,
	})
	if err != nil {
		return "", false, apperrors.NewStoreQueryFailed(scope, key, err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return "", false, apperrors.NewStoreQueryFailed(scope, key, err)
		}
		return "", false, nil
	}

	return getStringFromRecord(result.Record(), "value"), true, nil
}

func (r *Neo4j) Set(ctx context.Context, scope, key, value string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (s:Setting {scope: $scope, key: $key})
		SET s.value = $value, s.updated_at = $now
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"scope": scope,
		"key":   key,
		"value": value,
		"now":   time.Now().Unix(),
	})
	if err != nil {
		return apperrors.NewStoreQueryFailed(scope, key, err)
	}

	r.logger.Debug("Stored setting",
		zap.String("scope", scope),
		zap.String("key", key),
	)
	return nil
}

func (r *Neo4j) All(ctx context.Context, scope string) (map[string]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (s:Setting {scope: $scope})
		RETURN s.key as key, s.value as value
		ORDER BY key
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"scope": scope})
	if err != nil {
		return nil, apperrors.NewStoreQueryFailed(scope, "*", err)
	}

	out := make(map[string]string)
	for result.Next(ctx) {
		record := result.Record()
		out[getStringFromRecord(record, "key")] = getStringFromRecord(record, "value")
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStoreQueryFailed(scope, "*", err)
	}
	return out, nil
}

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}
