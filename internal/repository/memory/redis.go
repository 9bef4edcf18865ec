package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis"

	"github.com/xpanvictor/quil-bridge/pkg/utils"
)

type redisStore struct {
	rc  *redis.Client
	ttl time.Duration
}

func SummaryKey(sessionID string) string {
	return fmt.Sprintf("memory:session:%s", sessionID)
}

// NewRedis stores summaries as JSON values expiring after ttl (0 keeps them).
func NewRedis(rc *redis.Client, ttl time.Duration) Store {
	return &redisStore{rc: rc, ttl: ttl}
}

func (r *redisStore) Load(ctx context.Context, sessionID string) (*Summary, error) {
	raw, err := r.rc.WithContext(ctx).Get(SummaryKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, utils.XError{Reason: "loading memory", Meta: err}.ToError()
	}
	var s Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, utils.XError{Reason: "decoding memory", Meta: err}.ToError()
	}
	return &s, nil
}

func (r *redisStore) Save(ctx context.Context, sessionID, summary string) error {
	data, err := json.Marshal(Summary{SessionID: sessionID, Summary: summary, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := r.rc.WithContext(ctx).Set(SummaryKey(sessionID), data, r.ttl).Err(); err != nil {
		return utils.XError{Reason: "storing memory", Meta: err}.ToError()
	}
	return nil
}
