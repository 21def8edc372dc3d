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
	"time"

	"github.com/midaslabs/midas/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	account
	ledger
	operation
	history
}

// account defines methods for account records. Balances are never written
// through this interface; that is the ledger's job.
type account interface {
	CreateAccount(account model.Account) (model.Account, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAllAccounts(ctx context.Context, limit, offset int) ([]model.Account, error)
	SoftDeleteAccount(ctx context.Context, id string) error
}

// ledger is the sole mutation gateway for account balances. Every method runs
// its read-modify-write inside one database transaction with the account rows
// locked FOR UPDATE, and writes the paired history rows in the same
// transaction.
type ledger interface {
	CreditAccount(ctx context.Context, accountID string, amount int64, entry *model.HistoryEntry) (*model.Account, error)
	DebitAccount(ctx context.Context, accountID string, amount int64, entry *model.HistoryEntry) (*model.Account, error)
	ApplyMovements(ctx context.Context, op *model.Operation, movements []model.Movement, newStatus string) (map[string]int64, error)
}

// operation defines methods for the operation lifecycle records.
type operation interface {
	RecordOperation(ctx context.Context, op *model.Operation) (*model.Operation, error)
	GetOperation(ctx context.Context, id string) (*model.Operation, error)
	GetOperationByReference(ctx context.Context, reference string) (*model.Operation, error)
	OperationExistsByReference(ctx context.Context, reference string) (bool, error)
	UpdateOperation(ctx context.Context, op *model.Operation) error
	GetAllOperations(ctx context.Context, limit, offset int) ([]model.Operation, error)
}

// history defines methods for the append-only transaction history log. Rows
// are written by the ledger methods; only status sync and reads live here.
type history interface {
	UpdateHistoryStatus(ctx context.Context, operationType model.OperationType, operationID, status string, processedAt *time.Time) error
	GetHistoryByOwner(ctx context.Context, ownerID string, filter model.HistoryFilter) ([]model.HistoryEntry, error)
}
