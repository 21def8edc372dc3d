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
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/midaslabs/midas/config"
	redis_db "github.com/midaslabs/midas/internal/redis-db"
)

// Queue wraps the asynq client used for webhook delivery and scheduled
// pending-operation expiry.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance from configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB}
	return &Queue{
		Client:    asynq.NewClient(queueOptions),
		Inspector: asynq.NewInspector(queueOptions),
	}
}

// queuePendingExpiry schedules a task that cancels the operation if it is
// still awaiting approval when the TTL elapses. The task ID is the operation
// ID, so rescheduling the same operation is a no-op.
func (q *Queue) queuePendingExpiry(operationID string, expiresAt time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(operationID)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(operationID),
		asynq.Queue(cfg.Queue.ExpiryQueue),
		asynq.ProcessIn(time.Until(expiresAt)),
		asynq.MaxRetry(cfg.Queue.MaxRetryAttempts),
	}
	task := asynq.NewTask(cfg.Queue.ExpiryQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Queued pending expiry for operation %s at %s", operationID, expiresAt.Format(time.RFC3339))
	return nil
}
