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

package api

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/midaslabs/midas"
	"github.com/midaslabs/midas/cache"
	"github.com/midaslabs/midas/config"
	"github.com/midaslabs/midas/database"
	"github.com/midaslabs/midas/internal/request"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response != nil {
		if err := json.NewDecoder(resp.Body).Decode(&s.Response); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func setupRouter(t *testing.T, conf *config.Configuration) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)

	if conf == nil {
		conf = &config.Configuration{}
	}
	conf.DataSource = config.DataSourceConfig{Dns: "postgres://mock"}
	conf.Redis = config.RedisConfig{Dns: mr.Addr()}
	config.MockConfig(conf)

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	newCache, err := cache.NewCache()
	assert.NoError(t, err)

	service, err := midas.NewMidas(&database.Datasource{Conn: db, Cache: newCache})
	assert.NoError(t, err)

	return NewAPI(service).Router(), mock
}

func TestCreateAccountAPI(t *testing.T) {
	router, mock := setupRouter(t, nil)

	mock.ExpectExec("INSERT INTO midas.accounts").
		WillReturnResult(sqlmock.NewResult(1, 1))

	payload, err := request.ToJsonReq(map[string]interface{}{
		"owner_id": "own_1",
		"currency": "USD",
	})
	assert.NoError(t, err)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payload,
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/accounts",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Contains(t, response["account_id"], "acc_")
	assert.Equal(t, float64(0), response["balance"])
}

func TestCreateAccountAPI_MissingOwner(t *testing.T) {
	router, _ := setupRouter(t, nil)

	payload, err := request.ToJsonReq(map[string]interface{}{
		"currency": "USD",
	})
	assert.NoError(t, err)

	resp, err := SetUpTestRequest(TestRequest{
		Payload: payload,
		Router:  router,
		Method:  http.MethodPost,
		Route:   "/accounts",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateOperationAPI_UnknownType(t *testing.T) {
	router, _ := setupRouter(t, nil)

	payload, err := request.ToJsonReq(map[string]interface{}{
		"type":     "teleport",
		"owner_id": "own_1",
		"amount":   1000,
		"currency": "USD",
	})
	assert.NoError(t, err)

	resp, err := SetUpTestRequest(TestRequest{
		Payload: payload,
		Router:  router,
		Method:  http.MethodPost,
		Route:   "/operations",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetOperationAPI_NotFound(t *testing.T) {
	router, mock := setupRouter(t, nil)

	mock.ExpectQuery("SELECT (.+) FROM midas.operations WHERE operation_id =").
		WillReturnError(sql.ErrNoRows)

	resp, err := SetUpTestRequest(TestRequest{
		Router: router,
		Method: http.MethodGet,
		Route:  "/operations/op_missing",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGetHistoryAPI_BadTimeFilter(t *testing.T) {
	router, _ := setupRouter(t, nil)

	resp, err := SetUpTestRequest(TestRequest{
		Router: router,
		Method: http.MethodGet,
		Route:  "/history/own_1?from=yesterday",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetHistoryAPI(t *testing.T) {
	router, mock := setupRouter(t, nil)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"history_id", "owner_id", "operation_type", "operation_id", "tag", "amount", "currency", "status", "description", "balance_after", "processed_at", "created_at", "meta_data"}).
		AddRow("hst_1", "own_1", "deposit_mobile", "dep_1", "credit", int64(10000), "USD", "COMPLETED", nil, int64(10000), now, now, nil)

	mock.ExpectQuery("SELECT (.+) FROM midas.transaction_history WHERE owner_id =").
		WillReturnRows(rows)

	var response []map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &response,
		Method:   http.MethodGet,
		Route:    "/history/own_1",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, response, 1)
	assert.Equal(t, "hst_1", response[0]["history_id"])
}

func TestSecretKeyAuth(t *testing.T) {
	router, _ := setupRouter(t, &config.Configuration{
		Server: config.ServerConfig{Secure: true, SecretKey: "some-secret"},
	})

	resp, err := SetUpTestRequest(TestRequest{
		Router: router,
		Method: http.MethodGet,
		Route:  "/accounts/acc_1",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{
		Router: router,
		Method: http.MethodGet,
		Route:  "/accounts/acc_1",
		Header: map[string]string{"X-Midas-Key": "wrong-secret"},
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
