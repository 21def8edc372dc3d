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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/midaslabs/midas/internal/apierror"
	"github.com/midaslabs/midas/model"
)

type mockCache struct {
	data map[string]interface{}
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string]interface{})}
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mockCache) Get(ctx context.Context, key string, data interface{}) error {
	if v, ok := m.data[key]; ok {
		switch d := data.(type) {
		case *[]model.Operation:
			*d = v.([]model.Operation)
		}
		return nil
	}
	return errors.New("cache miss")
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func operationColumnsList() []string {
	return []string{
		"operation_id", "reference", "type", "owner_id", "source_account_id", "destination_account_id",
		"amount", "currency", "destination_currency", "rate", "status", "reason", "approver_id", "description",
		"funds_held", "pin_verified_at", "otp_verified_at", "approved_at", "completed_at", "created_at", "meta_data",
	}
}

func TestRecordOperation_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	op := &model.Operation{
		OperationID:          model.GenerateUUIDWithSuffix("op"),
		Reference:            "TWR-000000000001",
		Type:                 model.TypeTransferInternal,
		OwnerID:              "own_1",
		SourceAccountID:      "acc_a",
		DestinationAccountID: "acc_b",
		Amount:               10000,
		Currency:             "USD",
		Status:               model.StatusPending,
		CreatedAt:            time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO midas.operations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// One history row per prospective leg: debit and credit.
	mock.ExpectExec("INSERT INTO midas.transaction_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO midas.transaction_history").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	recorded, err := ds.RecordOperation(context.Background(), op)
	assert.NoError(t, err)
	assert.Equal(t, op.OperationID, recorded.OperationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOperation_DuplicateReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	op := &model.Operation{
		OperationID:          model.GenerateUUIDWithSuffix("op"),
		Reference:            "TWR-000000000001",
		Type:                 model.TypeTransferInternal,
		OwnerID:              "own_1",
		SourceAccountID:      "acc_a",
		DestinationAccountID: "acc_b",
		Amount:               10000,
		Currency:             "USD",
		Status:               model.StatusPending,
		CreatedAt:            time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO midas.operations").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err = ds.RecordOperation(context.Background(), op)
	assert.Error(t, err)
	assert.True(t, apierror.HasCode(err, apierror.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOperation_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	rows := sqlmock.NewRows(operationColumnsList()).
		AddRow("op_1", "LND-000000000042", string(model.TypeLoanDisbursement), "own_1", nil, "acc_b",
			int64(500000), "USD", nil, decimal.NewFromInt(1), model.StatusPending, nil, nil, "small business loan",
			false, nil, nil, nil, nil, now, []byte(`{"term_months":12}`))

	mock.ExpectQuery("SELECT (.+) FROM midas.operations WHERE operation_id =").
		WithArgs("op_1").
		WillReturnRows(rows)

	op, err := ds.GetOperation(context.Background(), "op_1")
	assert.NoError(t, err)
	assert.Equal(t, model.TypeLoanDisbursement, op.Type)
	assert.Equal(t, "acc_b", op.DestinationAccountID)
	assert.Empty(t, op.SourceAccountID)
	assert.Equal(t, int64(500000), op.Amount)
	assert.Equal(t, float64(12), op.MetaData["term_months"])
}

func TestGetOperation_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM midas.operations WHERE operation_id =").
		WithArgs("op_missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetOperation(context.Background(), "op_missing")
	assert.Error(t, err)
	assert.True(t, apierror.HasCode(err, apierror.ErrNotFound))
}

func TestOperationExistsByReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("TWR-000000000001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := ds.OperationExistsByReference(context.Background(), "TWR-000000000001")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestGetAllOperations_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mc := newMockCache()
	ds := Datasource{Conn: db, Cache: mc}

	now := time.Now()
	rows := sqlmock.NewRows(operationColumnsList()).
		AddRow("op_1", "TWR-000000000001", string(model.TypeTransferInternal), "own_1", "acc_a", "acc_b",
			int64(10000), "USD", nil, decimal.NewFromInt(1), model.StatusCompleted, nil, nil, nil,
			false, nil, nil, nil, now, now, []byte(`{}`))

	mock.ExpectQuery("SELECT (.+) FROM midas.operations ORDER BY created_at DESC").
		WithArgs(10, 0).
		WillReturnRows(rows)

	operations, err := ds.GetAllOperations(context.Background(), 10, 0)
	assert.NoError(t, err)
	assert.Len(t, operations, 1)
	assert.Equal(t, "op_1", operations[0].OperationID)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Second call is served from the cache with no further queries.
	cached, err := ds.GetAllOperations(context.Background(), 10, 0)
	assert.NoError(t, err)
	assert.Len(t, cached, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAllOperations_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mc := newMockCache()
	ds := Datasource{Conn: db, Cache: mc}

	mock.ExpectQuery("SELECT (.+) FROM midas.operations ORDER BY created_at DESC").
		WithArgs(10, 0).
		WillReturnError(sql.ErrConnDone)

	operations, err := ds.GetAllOperations(context.Background(), 10, 0)
	assert.Error(t, err)
	assert.Nil(t, operations)
	assert.True(t, apierror.HasCode(err, apierror.ErrInternalServer))
}

func TestUpdateOperation_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	op := &model.Operation{
		OperationID: "op_missing",
		Status:      model.StatusApproved,
	}

	mock.ExpectExec("UPDATE midas.operations SET status =").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.UpdateOperation(context.Background(), op)
	assert.Error(t, err)
	assert.True(t, apierror.HasCode(err, apierror.ErrNotFound))
}
