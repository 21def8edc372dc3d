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

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/midaslabs/midas/config"
)

type cachedPage struct {
	IDs []string
}

func newTestCache(t *testing.T) Cache {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{
		DataSource: config.DataSourceConfig{Dns: "postgres://mock"},
		Redis:      config.RedisConfig{Dns: mr.Addr()},
	})

	c, err := NewCache()
	assert.NoError(t, err)
	return c
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	c := newTestCache(t)

	stored := cachedPage{IDs: []string{"op_1", "op_2"}}
	err := c.Set(context.Background(), "operations:paginated:10:0", stored, time.Minute)
	assert.NoError(t, err)

	var got cachedPage
	err = c.Get(context.Background(), "operations:paginated:10:0", &got)
	assert.NoError(t, err)
	assert.Equal(t, stored.IDs, got.IDs)
}

func TestCache_MissLeavesValueUntouched(t *testing.T) {
	c := newTestCache(t)

	got := cachedPage{IDs: []string{"sentinel"}}
	err := c.Get(context.Background(), "operations:paginated:99:0", &got)
	assert.NoError(t, err)
	assert.Equal(t, []string{"sentinel"}, got.IDs)
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t)

	err := c.Set(context.Background(), "operations:paginated:10:0", cachedPage{IDs: []string{"op_1"}}, time.Minute)
	assert.NoError(t, err)
	assert.NoError(t, c.Delete(context.Background(), "operations:paginated:10:0"))

	var got cachedPage
	err = c.Get(context.Background(), "operations:paginated:10:0", &got)
	assert.NoError(t, err)
	assert.Empty(t, got.IDs)
}
