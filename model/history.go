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

package model

import "time"

// HistoryEntry is one row of the append-only transaction history log. Each
// ledger leg of an operation owns exactly one row, keyed by the polymorphic
// (operation_type, operation_id, tag) triple; status changes update the row in
// place instead of duplicating it.
type HistoryEntry struct {
	ID            int64                  `json:"-"`
	HistoryID     string                 `json:"history_id"`
	OwnerID       string                 `json:"owner_id"`
	OperationType OperationType          `json:"operation_type"`
	OperationID   string                 `json:"operation_id"`
	Tag           string                 `json:"tag"`
	Amount        int64                  `json:"amount"`
	Currency      string                 `json:"currency"`
	Status        string                 `json:"status"`
	Description   string                 `json:"description,omitempty"`
	BalanceAfter  *int64                 `json:"balance_after,omitempty"`
	ProcessedAt   *time.Time             `json:"processed_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	MetaData      map[string]interface{} `json:"meta_data,omitempty"`
}

// HistoryFilter narrows history queries for statement generation. Results are
// always ordered newest first.
type HistoryFilter struct {
	OperationType OperationType `json:"operation_type"`
	From          time.Time     `json:"from"`
	To            time.Time     `json:"to"`
	Limit         int           `json:"limit"`
	Offset        int           `json:"offset"`
}

// HistoryEntriesFor builds the initial history rows for a freshly created
// operation, one per prospective ledger leg, all in the history status that
// mirrors the operation's.
func HistoryEntriesFor(op *Operation) ([]HistoryEntry, error) {
	status, err := HistoryStatus(op.Status)
	if err != nil {
		return nil, err
	}
	movements := op.Movements()
	entries := make([]HistoryEntry, 0, len(movements))
	for _, m := range movements {
		entries = append(entries, HistoryEntry{
			HistoryID:     GenerateUUIDWithSuffix("hst"),
			OwnerID:       op.OwnerID,
			OperationType: op.Type,
			OperationID:   op.OperationID,
			Tag:           m.Direction,
			Amount:        m.Amount,
			Currency:      m.Currency,
			Status:        status,
			Description:   op.Description,
			CreatedAt:     op.CreatedAt,
			MetaData:      op.MetaData,
		})
	}
	return entries, nil
}
