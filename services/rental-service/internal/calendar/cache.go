package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

// CachedRepository serves bi-week reads from redis and falls through to the
// wrapped repository on a miss or any redis error. Writes bump a per-tenant
// version so earlier entries are never read again.
type CachedRepository struct {
	storage.CalendarRepository
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedRepository(repo storage.CalendarRepository, rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedRepository{
		CalendarRepository: repo,
		rdb:                rdb,
		ttl:                ttl,
		logger:             logger.With("component", "calendar_cache"),
	}
}

func versionKey(tenantID string) string {
	return fmt.Sprintf("cal:{%s}:ver", tenantID)
}

func weekKey(tenantID string, version int64, id string) string {
	return fmt.Sprintf("cal:{%s}:v%d:bw:%s", tenantID, version, id)
}

type cachedWeek struct {
	ID     string    `json:"id"`
	Year   int       `json:"year"`
	Seq    int       `json:"seq"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Active bool      `json:"active"`
}

func (r *CachedRepository) GetBiWeeks(ctx context.Context, tenantID string, ids []string) ([]model.BiWeek, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	version, err := r.version(ctx, tenantID)
	if err != nil {
		r.logger.Debug("calendar cache unavailable", "err", err)
		return r.CalendarRepository.GetBiWeeks(ctx, tenantID, ids)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = weekKey(tenantID, version, id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		r.logger.Debug("calendar cache read failed", "err", err)
		return r.CalendarRepository.GetBiWeeks(ctx, tenantID, ids)
	}

	hits := make(map[string]model.BiWeek, len(ids))
	var missing []string
	for i, v := range vals {
		raw, ok := v.(string)
		var cw cachedWeek
		if !ok || json.Unmarshal([]byte(raw), &cw) != nil {
			missing = append(missing, ids[i])
			continue
		}
		hits[ids[i]] = model.BiWeek{ID: cw.ID, TenantID: tenantID, Year: cw.Year, Seq: cw.Seq, Start: cw.Start.UTC(), End: cw.End.UTC(), Active: cw.Active}
	}

	if len(missing) > 0 {
		loaded, err := r.CalendarRepository.GetBiWeeks(ctx, tenantID, missing)
		if err != nil {
			return nil, err
		}
		pipe := r.rdb.Pipeline()
		for _, w := range loaded {
			hits[w.ID] = w
			raw, _ := json.Marshal(cachedWeek{ID: w.ID, Year: w.Year, Seq: w.Seq, Start: w.Start, End: w.End, Active: w.Active})
			pipe.Set(ctx, weekKey(tenantID, version, w.ID), raw, r.ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			r.logger.Debug("calendar cache fill failed", "err", err)
		}
	}

	out := make([]model.BiWeek, 0, len(hits))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if w, ok := hits[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *CachedRepository) SaveBiWeeks(ctx context.Context, tenantID string, weeks []model.BiWeek, mode storage.SaveMode) (storage.SaveResult, error) {
	res, err := r.CalendarRepository.SaveBiWeeks(ctx, tenantID, weeks, mode)
	if err == nil {
		r.invalidate(ctx, tenantID)
	}
	return res, err
}

func (r *CachedRepository) SetBiWeekActive(ctx context.Context, tenantID, id string, active bool) (model.BiWeek, error) {
	w, err := r.CalendarRepository.SetBiWeekActive(ctx, tenantID, id, active)
	if err == nil {
		r.invalidate(ctx, tenantID)
	}
	return w, err
}

func (r *CachedRepository) version(ctx context.Context, tenantID string) (int64, error) {
	v, err := r.rdb.Get(ctx, versionKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *CachedRepository) invalidate(ctx context.Context, tenantID string) {
	if err := r.rdb.Incr(ctx, versionKey(tenantID)).Err(); err != nil {
		r.logger.Warn("calendar cache invalidation failed", "tenant_id", tenantID, "err", err)
	}
}
