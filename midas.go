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

package midas

import (
	"embed"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/midaslabs/midas/config"
	"github.com/midaslabs/midas/database"
	redis_db "github.com/midaslabs/midas/internal/redis-db"
)

// Midas is the main service struct. It coordinates the ledger datasource,
// the task queue, and the redis client used for cross-instance locks.
type Midas struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewMidas initializes the service with the provided datasource, wiring up
// redis and the task queue from configuration.
func NewMidas(db database.IDataSource) (*Midas, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	return &Midas{datasource: db, queue: newQueue, redis: redisClient.Client()}, nil
}
