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

package midas

import (
	"context"
	"fmt"

	"github.com/midaslabs/midas/config"
	"github.com/midaslabs/midas/internal/apierror"
	"github.com/midaslabs/midas/internal/notification"
	"github.com/midaslabs/midas/model"
)

// CreateAccount opens a new account with a zero balance in a configured
// currency.
func (m *Midas) CreateAccount(account model.Account) (model.Account, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return model.Account{}, err
	}
	if account.OwnerID == "" {
		return model.Account{}, apierror.NewAPIError(apierror.ErrBadRequest, "Account owner is required", nil)
	}
	if !cnf.CurrencyKnown(account.Currency) {
		return model.Account{}, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Currency '%s' is not enabled", account.Currency), nil)
	}

	created, err := m.datasource.CreateAccount(account)
	if err != nil {
		notification.NotifyError(err)
		return model.Account{}, err
	}
	return created, nil
}

// GetAccount retrieves a single account by ID.
func (m *Midas) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return m.datasource.GetAccountByID(ctx, id)
}

// GetAllAccounts lists accounts newest first.
func (m *Midas) GetAllAccounts(ctx context.Context, limit, offset int) ([]model.Account, error) {
	return m.datasource.GetAllAccounts(ctx, limit, offset)
}

// DeleteAccount soft-deletes an account. The row survives so transaction
// history stays resolvable, but an inactive account rejects all movements.
func (m *Midas) DeleteAccount(ctx context.Context, id string) error {
	account, err := m.datasource.GetAccountByID(ctx, id)
	if err != nil {
		return err
	}
	if account.Balance != 0 {
		return apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("Account '%s' still holds funds and cannot be closed", id), nil)
	}
	return m.datasource.SoftDeleteAccount(ctx, id)
}
