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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/midaslabs/midas/internal/notification"
	"github.com/midaslabs/midas/model"
)

// notifyStatusChange reacts to an operation landing in a new status: it syncs
// the transaction history rows to the reduced status vocabulary and emits the
// matching webhook event. An operation status with no history mapping is a
// programming error and is reported loudly instead of being papered over
// with a default.
func (m *Midas) notifyStatusChange(op *model.Operation) {
	historyStatus, err := model.HistoryStatus(op.Status)
	if err != nil {
		notification.NotifyError(err)
		logrus.WithFields(logrus.Fields{
			"operation_id": op.OperationID,
			"status":       op.Status,
		}).Error("status observer: unmapped operation status")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var processedAt *time.Time
	if model.IsSettledStatus(op.Status) {
		processedAt = op.CompletedAt
		if processedAt == nil {
			now := time.Now()
			processedAt = &now
		}
	}
	if err := m.datasource.UpdateHistoryStatus(ctx, op.Type, op.OperationID, historyStatus, processedAt); err != nil {
		notification.NotifyError(err)
	}

	if err := m.SendWebhook(NewWebhook{
		Event:   getEventFromStatus(op.Status),
		Payload: op,
	}); err != nil {
		notification.NotifyError(err)
	}
}
