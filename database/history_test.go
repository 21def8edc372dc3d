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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/midaslabs/midas/model"
)

func TestUpsertHistoryEntryTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	entry := &model.HistoryEntry{
		HistoryID:     model.GenerateUUIDWithSuffix("hst"),
		OwnerID:       "own_1",
		OperationType: model.TypeDepositMobile,
		OperationID:   "dep_1",
		Tag:           model.DirectionCredit,
		Amount:        2500,
		Currency:      "USD",
		Status:        model.HistoryStatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO midas.transaction_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := ds.Conn.Begin()
	assert.NoError(t, err)
	err = upsertHistoryEntryTx(context.Background(), tx, entry)
	assert.NoError(t, err)
	assert.NoError(t, tx.Commit())
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateHistoryStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	mock.ExpectExec("UPDATE midas.transaction_history SET status =").
		WithArgs(model.HistoryStatusCompleted, sqlmock.AnyArg(), string(model.TypeTransferInternal), "twr_1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err = ds.UpdateHistoryStatus(context.Background(), model.TypeTransferInternal, "twr_1", model.HistoryStatusCompleted, &now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHistoryByOwner_NewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	earlier := now.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"history_id", "owner_id", "operation_type", "operation_id", "tag", "amount", "currency", "status", "description", "balance_after", "processed_at", "created_at", "meta_data"}).
		AddRow("hst_2", "own_1", string(model.TypeTransferInternal), "twr_2", model.DirectionDebit, int64(2500), "USD", model.HistoryStatusCompleted, "rent", int64(7500), now, now, nil).
		AddRow("hst_1", "own_1", string(model.TypeDepositMobile), "dep_1", model.DirectionCredit, int64(10000), "USD", model.HistoryStatusCompleted, nil, int64(10000), earlier, earlier, nil)

	mock.ExpectQuery("SELECT (.+) FROM midas.transaction_history WHERE owner_id =").
		WillReturnRows(rows)

	entries, err := ds.GetHistoryByOwner(context.Background(), "own_1", model.HistoryFilter{Limit: 10})
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "hst_2", entries[0].HistoryID)
	assert.Equal(t, int64(7500), *entries[0].BalanceAfter)
	assert.Equal(t, "hst_1", entries[1].HistoryID)
}
