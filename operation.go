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
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/midaslabs/midas/config"
	"github.com/midaslabs/midas/internal/apierror"
	redlock "github.com/midaslabs/midas/internal/lock"
	"github.com/midaslabs/midas/internal/notification"
	"github.com/midaslabs/midas/model"
)

// CreateOperation validates and records a new operation in PENDING status.
// The client-facing reference is generated server-side; a collision with an
// existing reference is regenerated and retried. Pending operations are
// scheduled for expiry so an abandoned request cannot hold its slot forever.
func (m *Midas) CreateOperation(ctx context.Context, op *model.Operation) (*model.Operation, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if err := op.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, err.Error(), nil)
	}
	if !cnf.CurrencyKnown(op.Currency) {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Currency '%s' is not enabled", op.Currency), nil)
	}
	if op.Type == model.TypeCurrencyExchange && !cnf.CurrencyKnown(op.DestinationCurrency) {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Currency '%s' is not enabled", op.DestinationCurrency), nil)
	}

	if op.SourceAccountID != "" {
		source, err := m.datasource.GetAccountByID(ctx, op.SourceAccountID)
		if err != nil {
			return nil, err
		}
		if !source.Active {
			return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Account '%s' is not active", op.SourceAccountID), nil)
		}
		if source.OwnerID != op.OwnerID {
			return nil, apierror.NewAPIError(apierror.ErrForbidden, "Source account does not belong to the operation owner", nil)
		}
	}
	if op.DestinationAccountID != "" {
		destination, err := m.datasource.GetAccountByID(ctx, op.DestinationAccountID)
		if err != nil {
			return nil, err
		}
		if !destination.Active {
			return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Account '%s' is not active", op.DestinationAccountID), nil)
		}
	}

	op.OperationID = model.GenerateUUIDWithSuffix("op")
	op.Status = model.StatusPending
	op.CreatedAt = time.Now()

	var recorded *model.Operation
	for attempt := 0; attempt < cnf.Queue.MaxRetryAttempts; attempt++ {
		op.Reference = model.GenerateReference(op.Type)
		exists, err := m.datasource.OperationExistsByReference(ctx, op.Reference)
		if err != nil {
			return nil, err
		}
		if exists {
			logrus.WithField("reference", op.Reference).Warn("reference already taken, regenerating")
			continue
		}
		recorded, err = m.datasource.RecordOperation(ctx, op)
		if err == nil {
			break
		}
		// The unique index is the backstop for a reference claimed between
		// the check and the insert.
		if !apierror.HasCode(err, apierror.ErrConflict) {
			notification.NotifyError(err)
			return nil, err
		}
		logrus.WithField("reference", op.Reference).Warn("reference collision, regenerating")
	}
	if recorded == nil {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Could not allocate a unique operation reference", nil)
	}

	expiresAt := recorded.CreatedAt.Add(time.Duration(cnf.Queue.PendingOperationTTL) * time.Hour)
	if err := m.queue.queuePendingExpiry(recorded.OperationID, expiresAt); err != nil {
		// The operation stands; expiry is best-effort scheduling.
		notification.NotifyError(err)
	}

	m.notifyStatusChange(recorded)
	return recorded, nil
}

// GetOperation retrieves an operation by ID.
func (m *Midas) GetOperation(ctx context.Context, id string) (*model.Operation, error) {
	return m.datasource.GetOperation(ctx, id)
}

// GetOperationByReference retrieves an operation by its reference.
func (m *Midas) GetOperationByReference(ctx context.Context, reference string) (*model.Operation, error) {
	return m.datasource.GetOperationByReference(ctx, reference)
}

// GetAllOperations lists operations newest first.
func (m *Midas) GetAllOperations(ctx context.Context, limit, offset int) ([]model.Operation, error) {
	return m.datasource.GetAllOperations(ctx, limit, offset)
}

// VerifyOperation records a PIN or OTP verification step on a pending
// operation. Completing the final step places a hold on the source funds and
// advances the operation to PROCESSING, so the money a customer authorized
// cannot be spent twice while the operation awaits settlement.
func (m *Midas) VerifyOperation(ctx context.Context, operationID string, step model.VerificationStep) (*model.Operation, error) {
	locker := redlock.NewLocker(m.redis, operationID, model.GenerateUUIDWithSuffix("loc"))
	if err := locker.WaitLock(ctx, 30*time.Second, 30*time.Second); err != nil {
		return nil, err
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Error("failed to release lock: ", err)
		}
	}()

	op, err := m.datasource.GetOperation(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if op.Status != model.StatusPending {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState,
			fmt.Sprintf("Operation '%s' is %s and can no longer be verified", operationID, op.Status), nil)
	}

	now := time.Now()
	switch step {
	case model.VerificationStepPin:
		if op.PinVerifiedAt != nil {
			return nil, apierror.NewAPIError(apierror.ErrInvalidState, "PIN already verified for this operation", nil)
		}
		op.PinVerifiedAt = &now
	case model.VerificationStepOtp:
		if op.PinVerifiedAt == nil {
			return nil, apierror.NewAPIError(apierror.ErrInvalidState, "PIN verification must precede OTP verification", nil)
		}
		if op.OtpVerifiedAt != nil {
			return nil, apierror.NewAPIError(apierror.ErrInvalidState, "OTP already verified for this operation", nil)
		}
		op.OtpVerifiedAt = &now
	default:
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Unknown verification step %q", step), nil)
	}

	finalStep := op.PinVerifiedAt != nil && op.OtpVerifiedAt != nil
	if !finalStep {
		if err := m.datasource.UpdateOperation(ctx, op); err != nil {
			return nil, err
		}
		return op, nil
	}

	// Both steps done: hold the source funds and move on to PROCESSING.
	// The hold debit and the operation row land in one database
	// transaction, so a verification replay can never debit twice. Admin
	// approval through ApproveOperation is the alternate gate for
	// operations still awaiting review.
	var movements []model.Movement
	if hold := op.HoldMovement(); hold != nil && !op.FundsHeld {
		movements = append(movements, *hold)
		op.FundsHeld = true
	}
	if _, err := m.applyMovements(ctx, op, movements, model.StatusProcessing); err != nil {
		return nil, err
	}
	m.notifyStatusChange(op)
	return op, nil
}

// ApproveOperation moves a reviewed operation to APPROVED, stamping the
// approver. Types with an explicit disbursement step stop here and settle
// through a later CompleteOperation call; everything else settles immediately.
func (m *Midas) ApproveOperation(ctx context.Context, operationID, approverID string) (*model.Operation, error) {
	op, err := m.transitionOperation(ctx, operationID, model.StatusApproved, "", func(op *model.Operation) error {
		now := time.Now()
		op.ApproverID = approverID
		op.ApprovedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if op.Type.RequiresDisbursement() {
		return op, nil
	}
	return m.CompleteOperation(ctx, operationID)
}

// RejectOperation moves an operation to REJECTED, crediting held funds back
// to the source.
func (m *Midas) RejectOperation(ctx context.Context, operationID, reason string) (*model.Operation, error) {
	return m.transitionOperation(ctx, operationID, model.StatusRejected, reason, nil)
}

// CancelOperation moves an operation to CANCELLED, crediting held funds back
// to the source. Cancellation is owner-initiated; rejection is reviewer-
// initiated. Both settle the same way.
func (m *Midas) CancelOperation(ctx context.Context, operationID, reason string) (*model.Operation, error) {
	return m.transitionOperation(ctx, operationID, model.StatusCancelled, reason, nil)
}

// CompleteOperation settles an approved operation: it applies the remaining
// ledger legs and lands the operation in its completion status (DISBURSED for
// loan and grant disbursements, COMPLETED otherwise). Completing an already
// settled operation fails with INVALID_STATE and moves no money.
func (m *Midas) CompleteOperation(ctx context.Context, operationID string) (*model.Operation, error) {
	locker := redlock.NewLocker(m.redis, operationID, model.GenerateUUIDWithSuffix("loc"))
	if err := locker.WaitLock(ctx, 30*time.Second, 30*time.Second); err != nil {
		return nil, err
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Error("failed to release lock: ", err)
		}
	}()

	op, err := m.datasource.GetOperation(ctx, operationID)
	if err != nil {
		return nil, err
	}

	target := op.Type.CompletionStatus()
	if !model.CanTransition(op.Status, target) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState,
			fmt.Sprintf("Operation '%s' cannot move from %s to %s", operationID, op.Status, target), nil)
	}

	movements := op.SettlementMovements()
	heldBefore := op.FundsHeld
	op.FundsHeld = false
	_, err = m.applyMovements(ctx, op, movements, target)
	if err != nil {
		op.FundsHeld = heldBefore
		if apierror.HasCode(err, apierror.ErrNotFound) {
			// A missing account can never settle; fail the operation and
			// refund any hold. Insufficient funds is not fatal: the
			// operation keeps its status and completion can be retried
			// once the account is funded.
			if failErr := m.failOperation(ctx, op, err.Error()); failErr != nil {
				notification.NotifyError(failErr)
			}
		}
		return nil, err
	}

	m.notifyStatusChange(op)
	return op, nil
}

// UpdateOperationStatus performs a movement-free lifecycle transition, such
// as PENDING to UNDER_REVIEW or the loan transitions out of DISBURSED and
// ACTIVE. Transitions with ledger effects must go through the dedicated calls
// instead.
func (m *Midas) UpdateOperationStatus(ctx context.Context, operationID, newStatus, reason string) (*model.Operation, error) {
	switch newStatus {
	case model.StatusRejected, model.StatusCancelled, model.StatusFailed:
		return nil, apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("Status %s must be set through its dedicated call", newStatus), nil)
	case model.StatusCompleted, model.StatusDisbursed:
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Settlement goes through completion", nil)
	}
	return m.transitionOperation(ctx, operationID, newStatus, reason, nil)
}

// ExpirePendingOperation cancels an operation whose approval window has
// elapsed. Operations that progressed past the awaiting states are left
// untouched.
func (m *Midas) ExpirePendingOperation(ctx context.Context, operationID string) error {
	op, err := m.datasource.GetOperation(ctx, operationID)
	if err != nil {
		return err
	}
	if op.Status != model.StatusPending && op.Status != model.StatusUnderReview {
		logrus.WithFields(logrus.Fields{
			"operation_id": operationID,
			"status":       op.Status,
		}).Info("operation progressed before expiry, skipping")
		return nil
	}
	_, err = m.CancelOperation(ctx, operationID, "approval window expired")
	return err
}

// ProcessExpiredOperation is the asynq handler for scheduled expiry tasks.
func (m *Midas) ProcessExpiredOperation(ctx context.Context, task *asynq.Task) error {
	var operationID string
	if err := json.Unmarshal(task.Payload(), &operationID); err != nil {
		return err
	}
	return m.ExpirePendingOperation(ctx, operationID)
}

// transitionOperation is the shared guarded state transition: it locks the
// operation, checks the lifecycle graph, applies the status-specific side
// effects (refunding held funds on the failure branch), persists, and fires
// the status observer.
func (m *Midas) transitionOperation(ctx context.Context, operationID, newStatus, reason string, mutate func(*model.Operation) error) (*model.Operation, error) {
	locker := redlock.NewLocker(m.redis, operationID, model.GenerateUUIDWithSuffix("loc"))
	if err := locker.WaitLock(ctx, 30*time.Second, 30*time.Second); err != nil {
		return nil, err
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Error("failed to release lock: ", err)
		}
	}()

	op, err := m.datasource.GetOperation(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(op.Status, newStatus) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState,
			fmt.Sprintf("Operation '%s' cannot move from %s to %s", operationID, op.Status, newStatus), nil)
	}

	if mutate != nil {
		if err := mutate(op); err != nil {
			return nil, err
		}
	}

	if reason != "" {
		op.Reason = reason
	}

	if refund := refundFor(op, newStatus); refund != nil {
		// The compensating credit, the status change and the hold clear
		// commit in one transaction. A replayed reject either sees the
		// terminal status or a still-held operation; it can never credit
		// the source twice.
		op.FundsHeld = false
		if _, err := m.applyMovements(ctx, op, []model.Movement{*refund}, newStatus); err != nil {
			op.FundsHeld = true
			return nil, err
		}
	} else {
		op.Status = newStatus
		if model.IsSettledStatus(newStatus) && op.CompletedAt == nil {
			now := time.Now()
			op.CompletedAt = &now
		}
		if err := m.datasource.UpdateOperation(ctx, op); err != nil {
			return nil, err
		}
	}

	m.notifyStatusChange(op)
	return op, nil
}

// failOperation force-fails an operation that can never settle, refunding any
// held funds. It bypasses the dedicated-call guard deliberately.
func (m *Midas) failOperation(ctx context.Context, op *model.Operation, reason string) error {
	if !model.CanTransition(op.Status, model.StatusFailed) {
		return apierror.NewAPIError(apierror.ErrInvalidState,
			fmt.Sprintf("Operation '%s' cannot move from %s to %s", op.OperationID, op.Status, model.StatusFailed), nil)
	}

	op.Reason = reason
	if refund := op.RefundMovement(); refund != nil {
		op.FundsHeld = false
		if _, err := m.applyMovements(ctx, op, []model.Movement{*refund}, model.StatusFailed); err != nil {
			op.FundsHeld = true
			return err
		}
	} else {
		op.Status = model.StatusFailed
		if err := m.datasource.UpdateOperation(ctx, op); err != nil {
			return err
		}
	}
	m.notifyStatusChange(op)
	return nil
}

// refundFor returns the compensating credit owed when the transition lands on
// a failure-family status, or nil.
func refundFor(op *model.Operation, newStatus string) *model.Movement {
	switch newStatus {
	case model.StatusRejected, model.StatusCancelled, model.StatusFailed:
		return op.RefundMovement()
	}
	return nil
}
