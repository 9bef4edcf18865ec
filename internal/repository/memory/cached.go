package memory

import (
	"context"

	"github.com/xpanvictor/quil-bridge/pkg/Logger"
)

// cachedStore reads through a cache in front of a primary store. Cache
// failures are logged and never fail the call.
type cachedStore struct {
	primary Store
	cache   Store
	logger  *Logger.Logger
}

func NewCached(primary, cache Store, logger *Logger.Logger) Store {
	if logger == nil {
		logger = Logger.NewNop()
	}
	return &cachedStore{primary: primary, cache: cache, logger: logger}
}

func (c *cachedStore) Load(ctx context.Context, sessionID string) (*Summary, error) {
	if s, err := c.cache.Load(ctx, sessionID); err != nil {
		c.logger.Warnw("memory cache read failed", "session", sessionID, "error", err)
	} else if s != nil {
		return s, nil
	}

	s, err := c.primary.Load(ctx, sessionID)
	if err != nil || s == nil {
		return s, err
	}
	if err := c.cache.Save(ctx, sessionID, s.Summary); err != nil {
		c.logger.Warnw("memory cache fill failed", "session", sessionID, "error", err)
	}
	return s, nil
}

func (c *cachedStore) Save(ctx context.Context, sessionID, summary string) error {
	if err := c.primary.Save(ctx, sessionID, summary); err != nil {
		return err
	}
	if err := c.cache.Save(ctx, sessionID, summary); err != nil {
		c.logger.Warnw("memory cache write failed", "session", sessionID, "error", err)
	}
	return nil
}
