/*
Copyright 2025 Midas Labs Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cache provides the read-through cache used for hot list queries.
// Entries live in redis with a small in-process TinyLFU tier in front, so a
// page that was just served does not round-trip to redis again.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"

	"github.com/midaslabs/midas/config"
	redis_db "github.com/midaslabs/midas/internal/redis-db"
)

// localEntries bounds the in-process tier; localTTL keeps it short-lived so
// redis stays the source of truth across instances.
const (
	localEntries = 100_000
	localTTL     = 2 * time.Minute
)

// Cache is the read-through store handed to the datasource. A miss is not an
// error: Get leaves value untouched and returns nil, so callers fall through
// to the database.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

type tieredCache struct {
	codec *cache.Cache
}

// NewCache connects to the configured redis and layers the local tier on top.
func NewCache() (Cache, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	client, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", cfg.Redis.Dns)})
	if err != nil {
		return nil, err
	}

	return &tieredCache{codec: cache.New(&cache.Options{
		Redis:      client.Client(),
		LocalCache: cache.NewTinyLFU(localEntries, localTTL),
	})}, nil
}

func (t *tieredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return t.codec.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: value,
		TTL:   ttl,
	})
}

func (t *tieredCache) Get(ctx context.Context, key string, value interface{}) error {
	err := t.codec.Get(ctx, key, value)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}

func (t *tieredCache) Delete(ctx context.Context, key string) error {
	return t.codec.Delete(ctx, key)
}
