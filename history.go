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

	"github.com/midaslabs/midas/internal/apierror"
	"github.com/midaslabs/midas/model"
)

// GetHistory returns an owner's transaction history, newest first, optionally
// narrowed by operation type and time window.
func (m *Midas) GetHistory(ctx context.Context, ownerID string, filter model.HistoryFilter) ([]model.HistoryEntry, error) {
	if ownerID == "" {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Owner ID is required", nil)
	}
	if filter.OperationType != "" && !filter.OperationType.Valid() {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Unknown operation type filter", nil)
	}
	return m.datasource.GetHistoryByOwner(ctx, ownerID, filter)
}
