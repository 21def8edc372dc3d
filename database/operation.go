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
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/midaslabs/midas/internal/apierror"
	"github.com/midaslabs/midas/model"
)

const operationColumns = `operation_id, reference, type, owner_id, source_account_id, destination_account_id,
	amount, currency, destination_currency, rate, status, reason, approver_id, description, funds_held,
	pin_verified_at, otp_verified_at, approved_at, completed_at, created_at, meta_data`

// RecordOperation persists a new operation together with its initial history
// rows in one transaction, so an operation is never visible without its
// history. A duplicate reference surfaces as CONFLICT for the caller to
// regenerate.
func (d Datasource) RecordOperation(ctx context.Context, op *model.Operation) (_ *model.Operation, err error) {
	metaDataJSON, err := json.Marshal(op.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer rollbackOnError(tx, &err)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO midas.operations (`+operationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`, op.OperationID, op.Reference, op.Type, op.OwnerID,
		nullableString(op.SourceAccountID), nullableString(op.DestinationAccountID),
		op.Amount, op.Currency, nullableString(op.DestinationCurrency), op.Rate,
		op.Status, nullableString(op.Reason), nullableString(op.ApproverID), nullableString(op.Description),
		op.FundsHeld, op.PinVerifiedAt, op.OtpVerifiedAt, op.ApprovedAt, op.CompletedAt, op.CreatedAt, metaDataJSON)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Operation with reference '%s' already exists", op.Reference), err)
			case "foreign_key_violation":
				return nil, apierror.NewAPIError(apierror.ErrNotFound, "Referenced account does not exist", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record operation", err)
	}

	entries, err := model.HistoryEntriesFor(op)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Unmapped operation status", err)
	}
	for i := range entries {
		if err = upsertHistoryEntryTx(ctx, tx, &entries[i]); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit operation", err)
	}
	return op, nil
}

// GetOperation retrieves an operation by its unique ID.
func (d Datasource) GetOperation(ctx context.Context, id string) (*model.Operation, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+operationColumns+`
		FROM midas.operations
		WHERE operation_id = $1
	`, id)

	op, err := scanOperationRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Operation with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan operation data", err)
	}
	return op, nil
}

// GetOperationByReference retrieves an operation by its client-facing
// reference.
func (d Datasource) GetOperationByReference(ctx context.Context, reference string) (*model.Operation, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+operationColumns+`
		FROM midas.operations
		WHERE reference = $1
	`, reference)

	op, err := scanOperationRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Operation with reference '%s' not found", reference), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan operation data", err)
	}
	return op, nil
}

// OperationExistsByReference checks reference uniqueness ahead of insert.
func (d Datasource) OperationExistsByReference(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM midas.operations WHERE reference = $1)
	`, reference).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check operation reference", err)
	}
	return exists, nil
}

// UpdateOperation persists the mutable lifecycle fields of an operation.
// OperationID, reference, type, accounts and amount are immutable once
// recorded and are deliberately absent from the SET list.
func (d Datasource) UpdateOperation(ctx context.Context, op *model.Operation) error {
	metaDataJSON, err := json.Marshal(op.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE midas.operations
		SET status = $1, reason = $2, approver_id = $3, funds_held = $4,
		    pin_verified_at = $5, otp_verified_at = $6, approved_at = $7, completed_at = $8, meta_data = $9
		WHERE operation_id = $10
	`, op.Status, nullableString(op.Reason), nullableString(op.ApproverID), op.FundsHeld,
		op.PinVerifiedAt, op.OtpVerifiedAt, op.ApprovedAt, op.CompletedAt, metaDataJSON, op.OperationID)
	if err != nil {
		return mapLedgerError(err, "Failed to update operation")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Operation with ID '%s' not found", op.OperationID), nil)
	}
	return nil
}

// GetAllOperations retrieves operations ordered by creation time, newest
// first. Pages are cached briefly; lifecycle reads by ID always go to the
// database.
func (d Datasource) GetAllOperations(ctx context.Context, limit, offset int) ([]model.Operation, error) {
	cacheKey := fmt.Sprintf("operations:paginated:%d:%d", limit, offset)

	var operations []model.Operation
	if err := d.Cache.Get(ctx, cacheKey, &operations); err == nil && len(operations) > 0 {
		return operations, nil
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+operationColumns+`
		FROM midas.operations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve operations", err)
	}
	defer func(rows *sql.Rows) {
		err := rows.Close()
		if err != nil {
			logrus.Error(err)
		}
	}(rows)

	for rows.Next() {
		op, err := scanOperationRows(rows)
		if err != nil {
			return nil, err
		}
		operations = append(operations, *op)
	}

	if len(operations) > 0 {
		if err := d.Cache.Set(ctx, cacheKey, operations, 5*time.Minute); err != nil {
			logrus.Warnf("failed to cache operations: %v", err)
		}
	}
	return operations, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(scanner rowScanner) (*model.Operation, error) {
	op := &model.Operation{}
	var sourceAccountID, destinationAccountID, destinationCurrency sql.NullString
	var reason, approverID, description sql.NullString
	var pinVerifiedAt, otpVerifiedAt, approvedAt, completedAt sql.NullTime
	var metaDataJSON []byte

	err := scanner.Scan(
		&op.OperationID,
		&op.Reference,
		&op.Type,
		&op.OwnerID,
		&sourceAccountID,
		&destinationAccountID,
		&op.Amount,
		&op.Currency,
		&destinationCurrency,
		&op.Rate,
		&op.Status,
		&reason,
		&approverID,
		&description,
		&op.FundsHeld,
		&pinVerifiedAt,
		&otpVerifiedAt,
		&approvedAt,
		&completedAt,
		&op.CreatedAt,
		&metaDataJSON,
	)
	if err != nil {
		return nil, err
	}

	op.SourceAccountID = sourceAccountID.String
	op.DestinationAccountID = destinationAccountID.String
	op.DestinationCurrency = destinationCurrency.String
	op.Reason = reason.String
	op.ApproverID = approverID.String
	op.Description = description.String
	if pinVerifiedAt.Valid {
		op.PinVerifiedAt = &pinVerifiedAt.Time
	}
	if otpVerifiedAt.Valid {
		op.OtpVerifiedAt = &otpVerifiedAt.Time
	}
	if approvedAt.Valid {
		op.ApprovedAt = &approvedAt.Time
	}
	if completedAt.Valid {
		op.CompletedAt = &completedAt.Time
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &op.MetaData); err != nil {
			return nil, err
		}
	}
	return op, nil
}

func scanOperationRow(row *sql.Row) (*model.Operation, error)    { return scanOperation(row) }
func scanOperationRows(rows *sql.Rows) (*model.Operation, error) { return scanOperation(rows) }

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
