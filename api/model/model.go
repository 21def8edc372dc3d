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

package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/midaslabs/midas/model"
)

// CreateAccount is the request body for opening an account.
type CreateAccount struct {
	OwnerID  string                 `json:"owner_id"`
	Currency string                 `json:"currency"`
	MetaData map[string]interface{} `json:"meta_data"`
}

func (a *CreateAccount) ValidateCreateAccount() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.OwnerID, validation.Required),
		validation.Field(&a.Currency, validation.Required, validation.Length(3, 3)),
	)
}

func (a *CreateAccount) ToAccount() model.Account {
	return model.Account{
		OwnerID:  a.OwnerID,
		Currency: a.Currency,
		MetaData: a.MetaData,
	}
}

// RecordOperation is the request body for creating an operation. Amount is an
// integer in the smallest unit of Currency.
type RecordOperation struct {
	Type                 string                 `json:"type"`
	OwnerID              string                 `json:"owner_id"`
	SourceAccountID      string                 `json:"source_account_id"`
	DestinationAccountID string                 `json:"destination_account_id"`
	Amount               int64                  `json:"amount"`
	Currency             string                 `json:"currency"`
	DestinationCurrency  string                 `json:"destination_currency"`
	Rate                 decimal.Decimal        `json:"rate"`
	Description          string                 `json:"description"`
	MetaData             map[string]interface{} `json:"meta_data"`
}

func exchangeFieldsValidation(r *RecordOperation) validation.RuleFunc {
	return func(value interface{}) error {
		if r.Type != string(model.TypeCurrencyExchange) {
			return nil
		}
		if r.DestinationCurrency == "" {
			return errors.New("destination_currency is required for currency_exchange")
		}
		if r.Rate.Sign() <= 0 {
			return errors.New("rate must be a positive decimal for currency_exchange")
		}
		return nil
	}
}

func (r *RecordOperation) ValidateRecordOperation() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Type, validation.Required, validation.By(func(value interface{}) error {
			if !model.OperationType(r.Type).Valid() {
				return errors.New("unknown operation type")
			}
			return nil
		})),
		validation.Field(&r.OwnerID, validation.Required),
		validation.Field(&r.Amount, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&r.Type, validation.By(exchangeFieldsValidation(r))),
	)
}

func (r *RecordOperation) ToOperation() *model.Operation {
	return &model.Operation{
		Type:                 model.OperationType(r.Type),
		OwnerID:              r.OwnerID,
		SourceAccountID:      r.SourceAccountID,
		DestinationAccountID: r.DestinationAccountID,
		Amount:               r.Amount,
		Currency:             r.Currency,
		DestinationCurrency:  r.DestinationCurrency,
		Rate:                 r.Rate,
		Description:          r.Description,
		MetaData:             r.MetaData,
	}
}

// VerifyOperation is the request body for a verification step.
type VerifyOperation struct {
	Step string `json:"step"`
}

func (v *VerifyOperation) ValidateVerifyOperation() error {
	return validation.ValidateStruct(v,
		validation.Field(&v.Step, validation.Required,
			validation.In(string(model.VerificationStepPin), string(model.VerificationStepOtp))),
	)
}

// ApproveOperation is the request body for approving an operation.
type ApproveOperation struct {
	ApproverID string `json:"approver_id"`
}

func (a *ApproveOperation) ValidateApproveOperation() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.ApproverID, validation.Required),
	)
}

// RejectOperation is the request body for rejecting or cancelling an
// operation.
type RejectOperation struct {
	Reason string `json:"reason"`
}

func (r *RejectOperation) ValidateRejectOperation() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Required),
	)
}

// UpdateOperationStatus is the request body for a movement-free status
// transition.
type UpdateOperationStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (u *UpdateOperationStatus) ValidateUpdateOperationStatus() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Status, validation.Required,
			validation.In(model.StatusUnderReview, model.StatusProcessing, model.StatusActive, model.StatusClosed, model.StatusDefaulted)),
	)
}
