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
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OperationType identifies the concrete money-movement variant an Operation
// represents. The type decides the ledger legs, the reference prefix and
// whether a separate disbursement step follows approval.
type OperationType string

const (
	TypeTransferWire      OperationType = "transfer_wire"
	TypeTransferDomestic  OperationType = "transfer_domestic"
	TypeTransferInternal  OperationType = "transfer_internal"
	TypeTransferAccount   OperationType = "transfer_account"
	TypeDepositCheck      OperationType = "deposit_check"
	TypeDepositMobile     OperationType = "deposit_mobile"
	TypeDepositCrypto     OperationType = "deposit_crypto"
	TypeLoanDisbursement  OperationType = "loan_disbursement"
	TypeLoanRepayment     OperationType = "loan_repayment"
	TypeGrantDisbursement OperationType = "grant_disbursement"
	TypeWithdrawal        OperationType = "withdrawal"
	TypeMoneyRequest      OperationType = "money_request"
	TypeCurrencyExchange  OperationType = "currency_exchange"
)

// Operation statuses. The exact set in play varies per operation type; loans
// additionally move through ACTIVE/DEFAULTED/CLOSED, disbursement types end in
// DISBURSED instead of COMPLETED.
const (
	StatusPending     = "PENDING"
	StatusUnderReview = "UNDER_REVIEW"
	StatusApproved    = "APPROVED"
	StatusProcessing  = "PROCESSING"
	StatusCompleted   = "COMPLETED"
	StatusDisbursed   = "DISBURSED"
	StatusActive      = "ACTIVE"
	StatusFailed      = "FAILED"
	StatusRejected    = "REJECTED"
	StatusCancelled   = "CANCELLED"
	StatusClosed      = "CLOSED"
	StatusDefaulted   = "DEFAULTED"
)

// VerificationStep identifies one customer verification factor.
type VerificationStep string

// Verification steps recorded on the way from PENDING to PROCESSING.
const (
	VerificationStepPin VerificationStep = "pin"
	VerificationStepOtp VerificationStep = "otp"
)

// Movement directions.
const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

var referencePrefixes = map[OperationType]string{
	TypeTransferWire:      "TWR",
	TypeTransferDomestic:  "TDM",
	TypeTransferInternal:  "TIN",
	TypeTransferAccount:   "TAC",
	TypeDepositCheck:      "DPC",
	TypeDepositMobile:     "DPM",
	TypeDepositCrypto:     "DPX",
	TypeLoanDisbursement:  "LND",
	TypeLoanRepayment:     "LNR",
	TypeGrantDisbursement: "GRD",
	TypeWithdrawal:        "WDL",
	TypeMoneyRequest:      "MRQ",
	TypeCurrencyExchange:  "FXC",
}

// ReferencePrefix returns the type-specific prefix used for reference numbers.
func (t OperationType) ReferencePrefix() string {
	if p, ok := referencePrefixes[t]; ok {
		return p
	}
	return "OPR"
}

// Valid reports whether t is a known operation type.
func (t OperationType) Valid() bool {
	_, ok := referencePrefixes[t]
	return ok
}

// RequiresDisbursement reports whether approval stops short of moving money,
// leaving the movement to an explicit disbursement (complete) call.
func (t OperationType) RequiresDisbursement() bool {
	return t == TypeLoanDisbursement || t == TypeGrantDisbursement
}

// CompletionStatus returns the status an operation of this type lands in once
// its ledger movement has been applied.
func (t OperationType) CompletionStatus() string {
	if t.RequiresDisbursement() {
		return StatusDisbursed
	}
	return StatusCompleted
}

// Operation is a pending-to-settled money movement. Reference and OperationID
// are immutable once assigned; Amount is always a positive integer in minor
// units of Currency.
type Operation struct {
	ID                   int64                  `json:"-"`
	OperationID          string                 `json:"operation_id"`
	Reference            string                 `json:"reference"`
	Type                 OperationType          `json:"type"`
	OwnerID              string                 `json:"owner_id"`
	SourceAccountID      string                 `json:"source_account_id,omitempty"`
	DestinationAccountID string                 `json:"destination_account_id,omitempty"`
	Amount               int64                  `json:"amount"`
	Currency             string                 `json:"currency"`
	DestinationCurrency  string                 `json:"destination_currency,omitempty"`
	Rate                 decimal.Decimal        `json:"rate"`
	Status               string                 `json:"status"`
	Reason               string                 `json:"reason,omitempty"`
	ApproverID           string                 `json:"approver_id,omitempty"`
	Description          string                 `json:"description,omitempty"`
	FundsHeld            bool                   `json:"funds_held"`
	PinVerifiedAt        *time.Time             `json:"pin_verified_at,omitempty"`
	OtpVerifiedAt        *time.Time             `json:"otp_verified_at,omitempty"`
	ApprovedAt           *time.Time             `json:"approved_at,omitempty"`
	CompletedAt          *time.Time             `json:"completed_at,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	MetaData             map[string]interface{} `json:"meta_data,omitempty"`
}

// Movement is a single ledger leg of an operation.
type Movement struct {
	AccountID string `json:"account_id"`
	Direction string `json:"direction"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	// Tag names the history row written for this movement. Empty means the
	// direction is the tag. A refund carries its own tag so it never
	// collides with the operation's original credit row.
	Tag string `json:"tag,omitempty"`
}

var terminalStatuses = map[string]bool{
	StatusCompleted: true,
	StatusFailed:    true,
	StatusRejected:  true,
	StatusCancelled: true,
	StatusClosed:    true,
	StatusDefaulted: true,
}

// allowedTransitions is the full lifecycle graph. Anything not listed here is
// an invalid transition, including every move out of a terminal status.
var allowedTransitions = map[string][]string{
	StatusPending:     {StatusUnderReview, StatusApproved, StatusProcessing, StatusRejected, StatusCancelled, StatusFailed},
	StatusUnderReview: {StatusApproved, StatusRejected, StatusCancelled, StatusFailed},
	StatusApproved:    {StatusProcessing, StatusCompleted, StatusDisbursed, StatusRejected, StatusFailed},
	StatusProcessing:  {StatusCompleted, StatusDisbursed, StatusRejected, StatusFailed},
	StatusDisbursed:   {StatusActive, StatusCompleted, StatusFailed},
	StatusActive:      {StatusClosed, StatusDefaulted},
}

// IsTerminalStatus reports whether no further transition is permitted.
func IsTerminalStatus(status string) bool {
	return terminalStatuses[status]
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to string) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Reduced status vocabulary of the transaction history log.
const (
	HistoryStatusPending    = "PENDING"
	HistoryStatusProcessing = "PROCESSING"
	HistoryStatusCompleted  = "COMPLETED"
	HistoryStatusFailed     = "FAILED"
)

// historyStatusByOperationStatus maps every operation status to exactly one
// history status. The mapping must stay total; HistoryStatus fails loudly on
// anything unmapped instead of defaulting.
var historyStatusByOperationStatus = map[string]string{
	StatusPending:     HistoryStatusPending,
	StatusUnderReview: HistoryStatusPending,
	StatusApproved:    HistoryStatusProcessing,
	StatusProcessing:  HistoryStatusProcessing,
	StatusActive:      HistoryStatusProcessing,
	StatusCompleted:   HistoryStatusCompleted,
	StatusDisbursed:   HistoryStatusCompleted,
	StatusClosed:      HistoryStatusCompleted,
	StatusFailed:      HistoryStatusFailed,
	StatusRejected:    HistoryStatusFailed,
	StatusCancelled:   HistoryStatusFailed,
	StatusDefaulted:   HistoryStatusFailed,
}

// HistoryStatus maps an operation status into the history log's reduced
// vocabulary. An unmapped status is a configuration error.
func HistoryStatus(operationStatus string) (string, error) {
	s, ok := historyStatusByOperationStatus[operationStatus]
	if !ok {
		return "", fmt.Errorf("no history status mapping for operation status %q", operationStatus)
	}
	return s, nil
}

// IsSettledStatus reports whether a status counts as completed-equivalent for
// the purpose of stamping processed_at on history rows.
func IsSettledStatus(status string) bool {
	return status == StatusCompleted || status == StatusDisbursed || status == StatusClosed
}

// Validate checks the structural invariants of an operation before it is
// persisted. Account existence and ownership are checked by the datasource.
func (op *Operation) Validate() error {
	if !op.Type.Valid() {
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
	if op.Amount <= 0 {
		return errors.New("operation amount must be a positive integer in minor units")
	}
	if op.OwnerID == "" {
		return errors.New("operation owner is required")
	}
	needsSource, needsDestination := op.Type.legShape()
	if needsSource && op.SourceAccountID == "" {
		return fmt.Errorf("%s requires a source account", op.Type)
	}
	if needsDestination && op.DestinationAccountID == "" {
		return fmt.Errorf("%s requires a destination account", op.Type)
	}
	if op.Type == TypeCurrencyExchange && op.DestinationCurrency == "" {
		return errors.New("currency exchange requires a destination currency")
	}
	return nil
}

// legShape reports which ledger legs a type carries. Disbursements may debit a
// funding pool when one is attached, so their source leg is optional.
func (t OperationType) legShape() (source, destination bool) {
	switch t {
	case TypeDepositCheck, TypeDepositMobile, TypeDepositCrypto:
		return false, true
	case TypeLoanDisbursement, TypeGrantDisbursement:
		return false, true
	case TypeWithdrawal:
		return true, false
	default:
		return true, true
	}
}

// DestinationAmount converts the operation amount into destination minor units
// using the exchange rate. A zero rate is treated as 1 (no conversion).
func (op *Operation) DestinationAmount() int64 {
	rate := op.Rate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(op.Amount).Mul(rate).RoundBank(0).IntPart()
}

// Movements builds the ledger legs for this operation. Transfers, repayments,
// money requests and exchanges debit the source and credit the destination;
// deposits and pool-less disbursements are credit-only; withdrawals debit-only.
func (op *Operation) Movements() []Movement {
	var movements []Movement
	if op.SourceAccountID != "" {
		movements = append(movements, Movement{
			AccountID: op.SourceAccountID,
			Direction: DirectionDebit,
			Amount:    op.Amount,
			Currency:  op.Currency,
		})
	}
	if op.DestinationAccountID != "" {
		amount := op.Amount
		currency := op.Currency
		if op.Type == TypeCurrencyExchange {
			amount = op.DestinationAmount()
			currency = op.DestinationCurrency
		}
		movements = append(movements, Movement{
			AccountID: op.DestinationAccountID,
			Direction: DirectionCredit,
			Amount:    amount,
			Currency:  currency,
		})
	}
	return movements
}

// HoldMovement returns the debit leg applied when funds are held ahead of
// approval, or nil for types that carry no source leg.
func (op *Operation) HoldMovement() *Movement {
	if op.SourceAccountID == "" {
		return nil
	}
	return &Movement{
		AccountID: op.SourceAccountID,
		Direction: DirectionDebit,
		Amount:    op.Amount,
		Currency:  op.Currency,
	}
}

// SettlementMovements returns the legs still owed at completion time. When the
// source debit was already taken as a hold, only the credit legs remain.
func (op *Operation) SettlementMovements() []Movement {
	movements := op.Movements()
	if !op.FundsHeld {
		return movements
	}
	remaining := make([]Movement, 0, len(movements))
	for _, m := range movements {
		if m.Direction == DirectionDebit && m.AccountID == op.SourceAccountID {
			continue
		}
		remaining = append(remaining, m)
	}
	return remaining
}

// RefundMovement returns the compensating credit owed to the source when a
// held operation is rejected or cancelled, or nil when nothing was held.
func (op *Operation) RefundMovement() *Movement {
	if !op.FundsHeld || op.SourceAccountID == "" {
		return nil
	}
	return &Movement{
		AccountID: op.SourceAccountID,
		Direction: DirectionCredit,
		Amount:    op.Amount,
		Currency:  op.Currency,
		Tag:       "refund",
	}
}
