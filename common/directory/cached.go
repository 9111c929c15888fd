package directory

import (
	"context"

	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/models"
)

// SummaryCache stores user summaries keyed by id.
type SummaryCache interface {
	GetMany(ctx context.Context, ids []string) (map[string]models.UserSummary, error)
	SetMany(ctx context.Context, users []models.UserSummary) error
	Delete(ctx context.Context, ids ...string) error
}

// CachedDirectory serves FindUsersByIDs from a cache and falls back to the
// wrapped directory for misses. Cache failures only cost a store read.
type CachedDirectory struct {
	Directory
	cache  SummaryCache
	logger *logger.Logger
}

func NewCachedDirectory(next Directory, cache SummaryCache, log *logger.Logger) *CachedDirectory {
	return &CachedDirectory{Directory: next, cache: cache, logger: log}
}

func (c *CachedDirectory) FindUsersByIDs(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return []models.UserSummary{}, nil
	}

	hits, err := c.cache.GetMany(ctx, unique)
	if err != nil {
		c.logger.Warn("User cache read failed", "error", err)
		hits = map[string]models.UserSummary{}
	}

	misses := make([]string, 0, len(unique))
	for _, id := range unique {
		if _, ok := hits[id]; !ok {
			misses = append(misses, id)
		}
	}

	out := make([]models.UserSummary, 0, len(unique))
	for _, id := range unique {
		if u, ok := hits[id]; ok {
			out = append(out, u)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	loaded, err := c.Directory.FindUsersByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetMany(ctx, loaded); err != nil {
		c.logger.Warn("User cache write failed", "error", err, "count", len(loaded))
	}
	return append(out, loaded...), nil
}

func (c *CachedDirectory) RemoveByID(ctx context.Context, id string) (*models.User, error) {
	user, err := c.Directory.RemoveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Evict(ctx, user.ID)
	return user, nil
}

func (c *CachedDirectory) RemoveByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := c.Directory.RemoveByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	c.Evict(ctx, user.ID)
	return user, nil
}

// Evict drops cached summaries for ids.
func (c *CachedDirectory) Evict(ctx context.Context, ids ...string) {
	if err := c.cache.Delete(ctx, ids...); err != nil {
		c.logger.Warn("User cache eviction failed", "error", err, "ids", ids)
	}
}
