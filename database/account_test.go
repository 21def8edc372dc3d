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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/midaslabs/midas/internal/apierror"
	"github.com/midaslabs/midas/model"
)

func TestCreateAccount_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	account := model.Account{
		OwnerID:  gofakeit.UUID(),
		Currency: "USD",
		MetaData: map[string]interface{}{
			"tier": "standard",
		},
	}

	metaDataJSON, err := json.Marshal(account.MetaData)
	assert.NoError(t, err)

	mock.ExpectExec("INSERT INTO midas.accounts").
		WithArgs(sqlmock.AnyArg(), account.OwnerID, int64(0), account.Currency, true, sqlmock.AnyArg(), metaDataJSON).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateAccount(account)
	assert.NoError(t, err)
	assert.NotEmpty(t, created.AccountID)
	assert.Contains(t, created.AccountID, "acc_")
	assert.True(t, created.Active)
	assert.Equal(t, int64(0), created.Balance)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)
}

func TestCreateAccount_UniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO midas.accounts").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err = ds.CreateAccount(model.Account{OwnerID: gofakeit.UUID(), Currency: "USD"})
	assert.Error(t, err)
	assert.True(t, apierror.HasCode(err, apierror.ErrConflict))
}

func TestGetAccountByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	accountID := "acc_" + gofakeit.UUID()
	ownerID := gofakeit.UUID()
	metaDataJSON, _ := json.Marshal(map[string]interface{}{"tier": "standard"})

	rows := sqlmock.NewRows([]string{"account_id", "owner_id", "balance", "currency", "active", "created_at", "deleted_at", "meta_data"}).
		AddRow(accountID, ownerID, int64(250000), "USD", true, time.Now(), nil, metaDataJSON)

	mock.ExpectQuery("SELECT account_id, owner_id, balance, currency, active, created_at, deleted_at, meta_data FROM midas.accounts WHERE account_id =").
		WithArgs(accountID).
		WillReturnRows(rows)

	account, err := ds.GetAccountByID(context.Background(), accountID)
	assert.NoError(t, err)
	assert.Equal(t, accountID, account.AccountID)
	assert.Equal(t, ownerID, account.OwnerID)
	assert.Equal(t, int64(250000), account.Balance)
	assert.Nil(t, account.DeletedAt)
}

func TestGetAccountByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT account_id, owner_id, balance, currency, active, created_at, deleted_at, meta_data FROM midas.accounts WHERE account_id =").
		WithArgs("acc_missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetAccountByID(context.Background(), "acc_missing")
	assert.Error(t, err)
	assert.True(t, apierror.HasCode(err, apierror.ErrNotFound))
}

func TestSoftDeleteAccount_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	accountID := "acc_" + gofakeit.UUID()
	mock.ExpectExec("UPDATE midas.accounts SET active = FALSE, deleted_at = NOW").
		WithArgs(accountID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.SoftDeleteAccount(context.Background(), accountID)
	assert.NoError(t, err)
}

func TestSoftDeleteAccount_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE midas.accounts SET active = FALSE, deleted_at = NOW").
		WithArgs("acc_missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.SoftDeleteAccount(context.Background(), "acc_missing")
	assert.Error(t, err)
	assert.True(t, apierror.HasCode(err, apierror.ErrNotFound))
}
