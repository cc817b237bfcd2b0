package reportapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"cn-dashboard/internal/models"
)

const defaultCacheTTL = 5 * time.Minute

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

var _ Fetcher = (*CachedFetcher)(nil)

// CachedFetcher keeps successful responses in Redis. Redis failures are
// logged and the upstream is called directly; upstream errors are never
// cached.
type CachedFetcher struct {
	next   Fetcher
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedFetcher(next Fetcher, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedFetcher {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedFetcher{next: next, cache: cache, ttl: ttl, logger: logger}
}

func cacheKey(start, end time.Time) string {
	return fmt.Sprintf("cnreport:%s:%s", models.FormatDay(start), models.FormatDay(end))
}

func (f *CachedFetcher) FetchReport(ctx context.Context, start, end time.Time) ([]models.DailyReportRecord, error) {
	key := cacheKey(start, end)

	val, err := f.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var records []models.DailyReportRecord
		if err := json.Unmarshal(val, &records); err == nil {
			f.logger.Debug("report cache hit", "key", key, "records", len(records))
			return records, nil
		}
		f.logger.Warn("corrupted report cache entry, removing", "key", key)
		f.cache.Del(ctx, key)
	case errors.Is(err, redis.Nil):
	default:
		f.logger.Warn("report cache read failed", "key", key, "error", err)
	}

	records, err := f.next.FetchReport(ctx, start, end)
	if err != nil {
		return nil, err
	}

	if records == nil {
		records = []models.DailyReportRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		f.logger.Warn("report cache encode failed", "key", key, "error", err)
		return records, nil
	}
	if err := f.cache.Set(ctx, key, data, f.ttl).Err(); err != nil {
		f.logger.Warn("report cache write failed", "key", key, "error", err)
	}
	return records, nil
}

// Invalidate drops the cached response for a range.
func (f *CachedFetcher) Invalidate(ctx context.Context, start, end time.Time) error {
	return f.cache.Del(ctx, cacheKey(start, end)).Err()
}
