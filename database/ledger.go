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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/midaslabs/midas/internal/apierror"
	"github.com/midaslabs/midas/model"
)

// The ledger methods below are the only code paths that write account
// balances. Each one opens a transaction, takes row locks with
// SELECT ... FOR UPDATE on every account it touches, applies the balance
// change, and writes the paired transaction_history rows before committing.
// Any failure rolls the whole transaction back, so a balance change and its
// history row can never be observed apart.

// lockAccountTx loads an account row under FOR UPDATE, serializing concurrent
// mutations of the same account at the database.
func lockAccountTx(ctx context.Context, tx *sql.Tx, accountID string) (*model.Account, error) {
	account := &model.Account{}
	err := tx.QueryRowContext(ctx, `
		SELECT id, account_id, owner_id, balance, currency, active
		FROM midas.accounts
		WHERE account_id = $1
		FOR UPDATE
	`, accountID).Scan(
		&account.ID,
		&account.AccountID,
		&account.OwnerID,
		&account.Balance,
		&account.Currency,
		&account.Active,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%s' not found", accountID), err)
		}
		return nil, mapLedgerError(err, "Failed to lock account row")
	}
	return account, nil
}

// mapLedgerError translates lock contention into a retryable CONFLICT so the
// service layer can back off and replay. Everything else is internal.
func mapLedgerError(err error, fallback string) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch string(pqErr.Code) {
		case "40001", "40P01", "55P03":
			return apierror.NewAPIError(apierror.ErrConflict, "Concurrent balance mutation detected, retry the operation", err)
		}
	}
	return apierror.NewAPIError(apierror.ErrInternalServer, fallback, err)
}

func rollbackOnError(tx *sql.Tx, err *error) {
	if *err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			logrus.Error("ledger rollback failed: ", rbErr)
		}
	}
}

// CreditAccount adds amount to the account balance and records the matching
// history entry in the same transaction.
func (d Datasource) CreditAccount(ctx context.Context, accountID string, amount int64, entry *model.HistoryEntry) (_ *model.Account, err error) {
	if amount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Credit amount must be a positive integer in minor units", nil)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer rollbackOnError(tx, &err)

	account, err := lockAccountTx(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Account '%s' is not active", accountID), nil)
	}

	account.Balance += amount
	_, err = tx.ExecContext(ctx, `
		UPDATE midas.accounts SET balance = $1 WHERE account_id = $2
	`, account.Balance, accountID)
	if err != nil {
		return nil, mapLedgerError(err, "Failed to credit account")
	}

	if entry != nil {
		entry.BalanceAfter = &account.Balance
		if err = upsertHistoryEntryTx(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, mapLedgerError(err, "Failed to commit credit")
	}
	return account, nil
}

// DebitAccount subtracts amount from the account balance. When the balance
// cannot cover the amount the transaction is rolled back untouched and
// INSUFFICIENT_FUNDS is returned.
func (d Datasource) DebitAccount(ctx context.Context, accountID string, amount int64, entry *model.HistoryEntry) (_ *model.Account, err error) {
	if amount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Debit amount must be a positive integer in minor units", nil)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer rollbackOnError(tx, &err)

	account, err := lockAccountTx(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Account '%s' is not active", accountID), nil)
	}
	if account.Balance < amount {
		return nil, apierror.NewAPIError(apierror.ErrInsufficientFunds,
			fmt.Sprintf("Insufficient funds: balance %d, requested %d", account.Balance, amount), nil)
	}

	account.Balance -= amount
	_, err = tx.ExecContext(ctx, `
		UPDATE midas.accounts SET balance = $1 WHERE account_id = $2
	`, account.Balance, accountID)
	if err != nil {
		return nil, mapLedgerError(err, "Failed to debit account")
	}

	if entry != nil {
		entry.BalanceAfter = &account.Balance
		if err = upsertHistoryEntryTx(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, mapLedgerError(err, "Failed to commit debit")
	}
	return account, nil
}

// ApplyMovements is the one primitive that moves money and the operation row
// together: it locks every involved account in a stable order, applies each
// debit and credit, moves the operation row to newStatus, and syncs the
// history rows -- all in one transaction. Settlement, the verification hold
// and the compensating refund all go through here, so a replayed call can
// never observe a balance change without its matching status. The operation's
// funds_held flag is persisted as the caller staged it on op; reason and the
// verification timestamps are carried along when set. It returns the
// post-movement balance of each touched account.
func (d Datasource) ApplyMovements(ctx context.Context, op *model.Operation, movements []model.Movement, newStatus string) (_ map[string]int64, err error) {
	historyStatus, err := model.HistoryStatus(newStatus)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Unmapped operation status", err)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer rollbackOnError(tx, &err)

	// Locking in sorted account order keeps two concurrent operations over
	// the same account pair from deadlocking each other.
	accountIDs := make([]string, 0, len(movements))
	seen := make(map[string]bool, len(movements))
	for _, m := range movements {
		if !seen[m.AccountID] {
			seen[m.AccountID] = true
			accountIDs = append(accountIDs, m.AccountID)
		}
	}
	sort.Strings(accountIDs)

	accounts := make(map[string]*model.Account, len(accountIDs))
	for _, id := range accountIDs {
		account, lockErr := lockAccountTx(ctx, tx, id)
		if lockErr != nil {
			err = lockErr
			return nil, err
		}
		if !account.Active {
			err = apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Account '%s' is not active", id), nil)
			return nil, err
		}
		accounts[id] = account
	}

	for _, m := range movements {
		account := accounts[m.AccountID]
		if !strings.EqualFold(account.Currency, m.Currency) {
			err = apierror.NewAPIError(apierror.ErrBadRequest,
				fmt.Sprintf("Currency mismatch: account '%s' holds %s, movement is %s", m.AccountID, account.Currency, m.Currency), nil)
			return nil, err
		}
		switch m.Direction {
		case model.DirectionDebit:
			if account.Balance < m.Amount {
				err = apierror.NewAPIError(apierror.ErrInsufficientFunds,
					fmt.Sprintf("Insufficient funds in account '%s': balance %d, requested %d", m.AccountID, account.Balance, m.Amount), nil)
				return nil, err
			}
			account.Balance -= m.Amount
		case model.DirectionCredit:
			account.Balance += m.Amount
		default:
			err = apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("Unknown movement direction %q", m.Direction), nil)
			return nil, err
		}
	}

	for _, id := range accountIDs {
		_, err = tx.ExecContext(ctx, `
			UPDATE midas.accounts SET balance = $1 WHERE account_id = $2
		`, accounts[id].Balance, id)
		if err != nil {
			return nil, mapLedgerError(err, "Failed to update account balance")
		}
	}

	var completedAt *time.Time
	if model.IsSettledStatus(newStatus) {
		now := time.Now()
		completedAt = &now
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE midas.operations
		SET status = $1, funds_held = $2, reason = COALESCE($3, reason),
		    pin_verified_at = COALESCE($4, pin_verified_at),
		    otp_verified_at = COALESCE($5, otp_verified_at),
		    completed_at = COALESCE($6, completed_at)
		WHERE operation_id = $7
	`, newStatus, op.FundsHeld, nullableString(op.Reason),
		op.PinVerifiedAt, op.OtpVerifiedAt, completedAt, op.OperationID)
	if err != nil {
		return nil, mapLedgerError(err, "Failed to update operation status")
	}

	for _, m := range movements {
		balance := accounts[m.AccountID].Balance
		tag := m.Tag
		if tag == "" {
			tag = m.Direction
		}
		entry := &model.HistoryEntry{
			HistoryID:     model.GenerateUUIDWithSuffix("hst"),
			OwnerID:       op.OwnerID,
			OperationType: op.Type,
			OperationID:   op.OperationID,
			Tag:           tag,
			Amount:        m.Amount,
			Currency:      m.Currency,
			Status:        historyStatus,
			Description:   op.Description,
			BalanceAfter:  &balance,
			ProcessedAt:   completedAt,
			CreatedAt:     op.CreatedAt,
			MetaData:      op.MetaData,
		}
		if err = upsertHistoryEntryTx(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, mapLedgerError(err, "Failed to commit movements")
	}

	op.Status = newStatus
	if completedAt != nil {
		op.CompletedAt = completedAt
	}

	balances := make(map[string]int64, len(accounts))
	for id, account := range accounts {
		balances[id] = account.Balance
	}
	return balances, nil
}
