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

// CreateAccount inserts a new account row. The balance always starts at zero;
// money only enters through the ledger.
func (d Datasource) CreateAccount(account model.Account) (model.Account, error) {
	metaDataJSON, err := json.Marshal(account.MetaData)
	if err != nil {
		return model.Account{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	account.AccountID = model.GenerateUUIDWithSuffix("acc")
	account.CreatedAt = time.Now()
	account.Active = true
	account.Balance = 0

	_, err = d.Conn.Exec(`
		INSERT INTO midas.accounts (account_id, owner_id, balance, currency, active, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.AccountID, account.OwnerID, account.Balance, account.Currency, account.Active, account.CreatedAt, metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.Account{}, apierror.NewAPIError(apierror.ErrConflict, "Account with this ID already exists", err)
			default:
				return model.Account{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.Account{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create account", err)
	}

	return account, nil
}

// GetAccountByID retrieves an account by its unique ID. Soft-deleted accounts
// are still returned so history links stay resolvable; callers check Active.
func (d Datasource) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT account_id, owner_id, balance, currency, active, created_at, deleted_at, meta_data
		FROM midas.accounts
		WHERE account_id = $1
	`, id)

	account, err := scanAccountRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan account data", err)
	}
	return account, nil
}

func scanAccountRow(row *sql.Row) (*model.Account, error) {
	account := &model.Account{}
	var metaDataJSON []byte
	var deletedAt sql.NullTime

	err := row.Scan(
		&account.AccountID,
		&account.OwnerID,
		&account.Balance,
		&account.Currency,
		&account.Active,
		&account.CreatedAt,
		&deletedAt,
		&metaDataJSON,
	)
	if err != nil {
		return nil, err
	}

	if deletedAt.Valid {
		account.DeletedAt = &deletedAt.Time
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &account.MetaData); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// GetAllAccounts retrieves accounts ordered by creation time, newest first.
func (d Datasource) GetAllAccounts(ctx context.Context, limit, offset int) ([]model.Account, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT account_id, owner_id, balance, currency, active, created_at, deleted_at, meta_data
		FROM midas.accounts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve accounts", err)
	}
	defer func(rows *sql.Rows) {
		err := rows.Close()
		if err != nil {
			logrus.Error(err)
		}
	}(rows)

	var accounts []model.Account
	for rows.Next() {
		account := model.Account{}
		var metaDataJSON []byte
		var deletedAt sql.NullTime

		err = rows.Scan(
			&account.AccountID,
			&account.OwnerID,
			&account.Balance,
			&account.Currency,
			&account.Active,
			&account.CreatedAt,
			&deletedAt,
			&metaDataJSON,
		)
		if err != nil {
			return nil, err
		}

		if deletedAt.Valid {
			account.DeletedAt = &deletedAt.Time
		}
		if len(metaDataJSON) > 0 {
			if err := json.Unmarshal(metaDataJSON, &account.MetaData); err != nil {
				return nil, err
			}
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// SoftDeleteAccount marks the account inactive. Rows referenced by transaction
// history are never hard-deleted.
func (d Datasource) SoftDeleteAccount(ctx context.Context, id string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE midas.accounts
		SET active = FALSE, deleted_at = NOW()
		WHERE account_id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete account", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%s' not found", id), nil)
	}
	return nil
}
