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
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/hibiken/asynq"

	"github.com/midaslabs/midas/config"
	"github.com/midaslabs/midas/internal/request"
	"github.com/midaslabs/midas/model"
)

// NewWebhook is the envelope for an outbound webhook notification.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// getEventFromStatus maps an operation status to its webhook event name.
func getEventFromStatus(status string) string {
	switch status {
	case model.StatusPending:
		return "operation.pending"
	case model.StatusUnderReview:
		return "operation.under_review"
	case model.StatusApproved:
		return "operation.approved"
	case model.StatusProcessing:
		return "operation.processing"
	case model.StatusCompleted:
		return "operation.completed"
	case model.StatusDisbursed:
		return "operation.disbursed"
	case model.StatusActive:
		return "operation.active"
	case model.StatusFailed:
		return "operation.failed"
	case model.StatusRejected:
		return "operation.rejected"
	case model.StatusCancelled:
		return "operation.cancelled"
	case model.StatusClosed:
		return "operation.closed"
	case model.StatusDefaulted:
		return "operation.defaulted"
	default:
		return "operation.unknown"
	}
}

func processHTTP(data NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		log.Println("Error fetching config:", err)
		return err
	}

	payload, err := request.ToJsonReq(data)
	if err != nil {
		log.Println("Error marshaling data:", err)
		return err
	}

	req, err := http.NewRequest("POST", conf.Notification.Webhook.Url, payload)
	if err != nil {
		log.Println("Error creating request:", err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	var response map[string]interface{}
	resp, err := request.Call(req, &response)
	if err != nil {
		log.Println("Error sending request:", err)
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Webhook delivery failed with status code: %d\n", resp.StatusCode)
		return nil
	}

	log.Println("Webhook notification sent successfully:", data.Event)
	return nil
}

// SendWebhook enqueues a webhook notification task. A deployment with no
// webhook URL configured silently drops notifications.
func (m *Midas) SendWebhook(newWebhook NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	payload, err := json.Marshal(newWebhook)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{asynq.Queue(conf.Queue.WebhookQueue)}
	task := asynq.NewTask(conf.Queue.WebhookQueue, payload, taskOptions...)
	info, err := m.queue.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// ProcessWebhook is the asynq handler that delivers a queued webhook.
func ProcessWebhook(_ context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling task payload: %v", err)
		return err
	}
	log.Printf("Processing webhook: %s", payload.Event)
	return processHTTP(payload)
}
