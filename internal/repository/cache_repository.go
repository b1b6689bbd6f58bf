package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/degree-audit-api/internal/models"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
)

const (
	graphCacheKey        = "catalog:graph"
	latestRunKeyTemplate = "audit:latest:%s"
)

// CacheRepository provides Redis-backed caching for the catalog graph
// snapshot and per-student latest-audit summaries. Everything here is
// best-effort: a dead Redis degrades to a rebuild or a database read,
// never to a failed request.
type CacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	runTTL time.Duration
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository. A nil client
// disables caching entirely.
func NewCacheRepository(client *redis.Client, ttl, runTTL time.Duration, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, ttl: ttl, runTTL: runTTL, logger: logger}
}

// GetGraph returns the cached catalog graph snapshot, if any.
func (r *CacheRepository) GetGraph(ctx context.Context) (*models.CatalogGraph, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, graphCacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", graphCacheKey, err)
	}
	var graph models.CatalogGraph
	if err := json.Unmarshal(raw, &graph); err != nil {
		return nil, fmt.Errorf("unmarshal cached graph: %w", err)
	}
	return &graph, nil
}

// SetGraph caches the catalog graph snapshot with the configured TTL.
func (r *CacheRepository) SetGraph(ctx context.Context, graph *models.CatalogGraph) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}
	if err := r.client.Set(ctx, graphCacheKey, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", graphCacheKey, err)
	}
	return nil
}

// InvalidateGraph drops the cached snapshot after catalog writes.
func (r *CacheRepository) InvalidateGraph(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, graphCacheKey).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", graphCacheKey, err)
	}
	return nil
}

// GetLatestRun returns a student's cached latest audit run, if any.
func (r *CacheRepository) GetLatestRun(ctx context.Context, studentID string) (*models.AuditRun, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	key := fmt.Sprintf(latestRunKeyTemplate, studentID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	var run models.AuditRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("unmarshal cached audit run: %w", err)
	}
	return &run, nil
}

// SetLatestRun caches a student's latest audit run with the result TTL.
func (r *CacheRepository) SetLatestRun(ctx context.Context, run *models.AuditRun) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal audit run: %w", err)
	}
	key := fmt.Sprintf(latestRunKeyTemplate, run.StudentID)
	if err := r.client.Set(ctx, key, payload, r.runTTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
