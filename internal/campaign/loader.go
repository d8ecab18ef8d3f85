package campaign

import (
	"context"

	apperrors "mapping-viewer/internal/common/errors"
	"mapping-viewer/internal/common/logger"
	"mapping-viewer/internal/models"
)

// Fetcher downloads the campaign from the backend.
type Fetcher interface {
	Campaign(ctx context.Context) (*models.Campaign, error)
}

// Loader fetches the campaign through a cache. Cache failures fall back to the network.
type Loader struct {
	fetcher  Fetcher
	cache    Cache
	key      string
	logger   logger.Logger
	reporter *apperrors.Reporter
}

// NewLoader caches under "campaign:<source>". cache may be nil.
func NewLoader(fetcher Fetcher, cache Cache, source string, log logger.Logger) *Loader {
	l := logger.ForComponent(log, "campaign")
	return &Loader{
		fetcher:  fetcher,
		cache:    cache,
		key:      "campaign:" + source,
		logger:   l,
		reporter: apperrors.NewReporter(l),
	}
}

// Key is the cache key of the campaign.
func (l *Loader) Key() string {
	return l.key
}

func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	if d, ok := l.fromCache(ctx); ok {
		return d, nil
	}

	c, err := l.fetcher.Campaign(ctx)
	if err != nil {
		return nil, err
	}
	d, err := NewDataset(c)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, l.key, c); err != nil {
			l.logger.Warn("failed to cache campaign", map[string]interface{}{"key": l.key, "error": err.Error()})
		}
	}
	l.logger.Info("campaign loaded", map[string]interface{}{
		"campaignId": d.ID,
		"features":   len(c.Features),
		"images":     len(c.Images),
	})
	return d, nil
}

// Invalidate drops the cached campaign so the next Load fetches it.
func (l *Loader) Invalidate(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}
	return l.cache.Delete(ctx, l.key)
}

func (l *Loader) fromCache(ctx context.Context) (*Dataset, bool) {
	if l.cache == nil {
		return nil, false
	}
	c, err := l.cache.Get(ctx, l.key)
	if err != nil {
		if !isMiss(err) {
			l.logger.Warn("campaign cache unavailable", map[string]interface{}{"key": l.key, "error": err.Error()})
		}
		return nil, false
	}
	d, err := NewDataset(c)
	if err != nil {
		l.reporter.Report("cachedCampaign", err)
		if delErr := l.cache.Delete(ctx, l.key); delErr != nil {
			l.logger.Warn("failed to drop cached campaign", map[string]interface{}{"key": l.key, "error": delErr.Error()})
		}
		return nil, false
	}
	l.logger.Debug("campaign served from cache", map[string]interface{}{"key": l.key})
	return d, true
}
