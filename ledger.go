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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/midaslabs/midas/config"
	"github.com/midaslabs/midas/internal/apierror"
	"github.com/midaslabs/midas/model"
)

// retryOnConflict replays fn while it fails with CONFLICT (lock contention at
// the database), backing off exponentially up to the configured attempt
// budget. Any other error aborts immediately.
func retryOnConflict(ctx context.Context, fn func() error) error {
	cnf, err := config.Fetch()
	if err != nil {
		return err
	}

	attempts := 0
	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(50*time.Millisecond),
		backoff.WithMaxInterval(time.Second),
	), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !apierror.HasCode(err, apierror.ErrConflict) {
			return backoff.Permanent(err)
		}
		attempts++
		if attempts >= cnf.Ledger.MaxConflictRetries {
			return backoff.Permanent(err)
		}
		logrus.WithField("attempt", attempts).Warn("retrying ledger call after conflict")
		return err
	}, policy)
}

// CreditAccount adds funds to an account, retrying on lock contention. The
// history entry is written in the same database transaction as the balance
// change.
func (m *Midas) CreditAccount(ctx context.Context, accountID string, amount int64, entry *model.HistoryEntry) (*model.Account, error) {
	var account *model.Account
	err := retryOnConflict(ctx, func() error {
		var err error
		account, err = m.datasource.CreditAccount(ctx, accountID, amount, entry)
		return err
	})
	return account, err
}

// DebitAccount removes funds from an account, retrying on lock contention.
// An insufficient balance fails without mutating anything.
func (m *Midas) DebitAccount(ctx context.Context, accountID string, amount int64, entry *model.HistoryEntry) (*model.Account, error) {
	var account *model.Account
	err := retryOnConflict(ctx, func() error {
		var err error
		account, err = m.datasource.DebitAccount(ctx, accountID, amount, entry)
		return err
	})
	return account, err
}

// applyMovements settles an operation's ledger legs with conflict retry.
func (m *Midas) applyMovements(ctx context.Context, op *model.Operation, movements []model.Movement, newStatus string) (map[string]int64, error) {
	var balances map[string]int64
	err := retryOnConflict(ctx, func() error {
		var err error
		balances, err = m.datasource.ApplyMovements(ctx, op, movements, newStatus)
		return err
	})
	return balances, err
}
