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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/midaslabs/midas/internal/apierror"
	"github.com/midaslabs/midas/model"
)

// upsertHistoryEntryTx writes one history row inside an open transaction. The
// (operation_type, operation_id, tag) triple is the idempotency key: replays
// update the existing row instead of inserting a duplicate.
func upsertHistoryEntryTx(ctx context.Context, tx *sql.Tx, entry *model.HistoryEntry) error {
	metaDataJSON, err := json.Marshal(entry.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO midas.transaction_history
			(history_id, owner_id, operation_type, operation_id, tag, amount, currency, status, description, balance_after, processed_at, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (operation_type, operation_id, tag) DO UPDATE
		SET status = EXCLUDED.status,
		    balance_after = COALESCE(EXCLUDED.balance_after, midas.transaction_history.balance_after),
		    processed_at = COALESCE(EXCLUDED.processed_at, midas.transaction_history.processed_at),
		    description = EXCLUDED.description
	`, entry.HistoryID, entry.OwnerID, entry.OperationType, entry.OperationID, entry.Tag,
		entry.Amount, entry.Currency, entry.Status, entry.Description, entry.BalanceAfter,
		entry.ProcessedAt, entry.CreatedAt, metaDataJSON)
	if err != nil {
		return mapLedgerError(err, "Failed to record history entry")
	}
	return nil
}

// UpdateHistoryStatus moves every history row of an operation to the given
// reduced status. Used by the status observer for transitions that carry no
// ledger movement. processed_at is stamped only on settled transitions and
// cleared by any transition out of them.
func (d Datasource) UpdateHistoryStatus(ctx context.Context, operationType model.OperationType, operationID, status string, processedAt *time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE midas.transaction_history
		SET status = $1, processed_at = $2
		WHERE operation_type = $3 AND operation_id = $4
	`, status, processedAt, operationType, operationID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update history status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		logrus.WithFields(logrus.Fields{
			"operation_type": operationType,
			"operation_id":   operationID,
		}).Warn("no history rows for operation")
	}
	return nil
}

// GetHistoryByOwner returns the owner's transaction history newest first,
// optionally narrowed by operation type and time window.
func (d Datasource) GetHistoryByOwner(ctx context.Context, ownerID string, filter model.HistoryFilter) ([]model.HistoryEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT history_id, owner_id, operation_type, operation_id, tag, amount, currency, status, description, balance_after, processed_at, created_at, meta_data
		FROM midas.transaction_history
		WHERE owner_id = $1
		  AND ($2 = '' OR operation_type = $2)
		  AND ($3::timestamp IS NULL OR created_at >= $3)
		  AND ($4::timestamp IS NULL OR created_at <= $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6
	`, ownerID, string(filter.OperationType), nullableTime(filter.From), nullableTime(filter.To), limit, filter.Offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve history", err)
	}
	defer func(rows *sql.Rows) {
		err := rows.Close()
		if err != nil {
			logrus.Error(err)
		}
	}(rows)

	var entries []model.HistoryEntry
	for rows.Next() {
		entry := model.HistoryEntry{}
		var description sql.NullString
		var balanceAfter sql.NullInt64
		var processedAt sql.NullTime
		var metaDataJSON []byte

		err = rows.Scan(
			&entry.HistoryID,
			&entry.OwnerID,
			&entry.OperationType,
			&entry.OperationID,
			&entry.Tag,
			&entry.Amount,
			&entry.Currency,
			&entry.Status,
			&description,
			&balanceAfter,
			&processedAt,
			&entry.CreatedAt,
			&metaDataJSON,
		)
		if err != nil {
			return nil, err
		}

		entry.Description = description.String
		if balanceAfter.Valid {
			entry.BalanceAfter = &balanceAfter.Int64
		}
		if processedAt.Valid {
			entry.ProcessedAt = &processedAt.Time
		}
		if len(metaDataJSON) > 0 {
			if err := json.Unmarshal(metaDataJSON, &entry.MetaData); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
