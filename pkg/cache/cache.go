// Package cache keeps computed group summaries so dashboards do not re-sum
// every contribution and loan on each request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cache stores group summaries. A miss is reported as (nil, nil).
//
// Every Invalidate bumps the group's version. Callers read Version before
// computing a summary and pass it to SetSummary, which drops the write when
// an invalidation landed in between.
type Cache interface {
	GetSummary(ctx context.Context, groupID uuid.UUID) (*models.GroupSummary, error)
	Version(ctx context.Context, groupID uuid.UUID) (int64, error)
	SetSummary(ctx context.Context, summary *models.GroupSummary, version int64) error
	Invalidate(ctx context.Context, groupID uuid.UUID) error
}

// Noop caches nothing.
type Noop struct{}

func (Noop) GetSummary(context.Context, uuid.UUID) (*models.GroupSummary, error) { return nil, nil }
func (Noop) Version(context.Context, uuid.UUID) (int64, error)                   { return 0, nil }
func (Noop) SetSummary(context.Context, *models.GroupSummary, int64) error       { return nil }
func (Noop) Invalidate(context.Context, uuid.UUID) error                         { return nil }

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Connect dials Redis at addr. When addr is empty or the server does not answer
// a ping, caching is disabled and Noop is returned.
func Connect(ctx context.Context, addr, password string, db int, ttl time.Duration, log *slog.Logger) Cache {
	if addr == "" {
		log.Warn("redis address not set, summary caching disabled")
		return Noop{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		log.Error("could not connect to redis, summary caching disabled", "addr", addr, "error", err)
		client.Close()
		return Noop{}
	}

	log.Info("connected to redis", "addr", addr)
	return NewRedis(client, ttl)
}

func SummaryKey(groupID uuid.UUID) string {
	return "ikimina:summary:" + groupID.String()
}

func VersionKey(groupID uuid.UUID) string {
	return SummaryKey(groupID) + ":version"
}

func (r *Redis) GetSummary(ctx context.Context, groupID uuid.UUID) (*models.GroupSummary, error) {
	data, err := r.client.Get(ctx, SummaryKey(groupID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached summary: %w", err)
	}

	var s models.GroupSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode cached summary: %w", err)
	}
	return &s, nil
}

func (r *Redis) Version(ctx context.Context, groupID uuid.UUID) (int64, error) {
	v, err := version(r.client.Get(ctx, VersionKey(groupID)))
	if err != nil {
		return 0, fmt.Errorf("failed to read summary version: %w", err)
	}
	return v, nil
}

// version reads a GET of a version key; a missing key is version 0.
func version(cmd *redis.StringCmd) (int64, error) {
	v, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetSummary stores s only while the group's version still equals v. The
// version key is watched, so an Invalidate racing the write aborts it.
func (r *Redis) SetSummary(ctx context.Context, s *models.GroupSummary, v int64) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := version(tx.Get(ctx, VersionKey(s.GroupID)))
		if err != nil {
			return err
		}
		if current != v {
			return redis.TxFailedErr
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, SummaryKey(s.GroupID), data, r.ttl)
			return nil
		})
		return err
	}, VersionKey(s.GroupID))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to cache summary: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, groupID uuid.UUID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, VersionKey(groupID))
		pipe.Del(ctx, SummaryKey(groupID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate summary: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
