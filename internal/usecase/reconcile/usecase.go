// Package reconcile matches M-Pesa STK callbacks to the pending requests
// they resolve and books the money into the ledger.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chama-backend/internal/apperr"
	"chama-backend/internal/domain/loan"
	"chama-backend/internal/domain/member"
	"chama-backend/internal/domain/mpesa"
	"chama-backend/internal/domain/uow"
	"chama-backend/internal/infrastructure/metrics"
	"chama-backend/internal/usecase/contribution"
	"chama-backend/internal/usecase/payment"

	"gorm.io/gorm"
)

// mysql TEXT
const maxStoredPayload = 65535

type Usecase struct {
	uow           uow.UnitOfWork
	transactions  mpesa.Repository
	payments      *payment.Usecase
	contributions *contribution.Usecase
	log           *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewUsecase(tx uow.UnitOfWork, transactions mpesa.Repository, payments *payment.Usecase, contributions *contribution.Usecase, log *slog.Logger, m *metrics.Metrics) *Usecase {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Usecase{
		uow:           tx,
		transactions:  transactions,
		payments:      payments,
		contributions: contributions,
		log:           log,
		metrics:       m,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (u *Usecase) SetClock(now func() time.Time) { u.now = now }

type result struct {
	outcome    mpesa.Outcome
	checkoutID string
	detail     string
	txn        *mpesa.Transaction
	applied    *payment.Applied
}

// Handle processes one callback delivery. Anomalies (unknown id, duplicate,
// malformed payload, confirmed money that could not be booked) are logged and
// reported through the Outcome; only storage failures return an error, in
// which case nothing was changed and the provider may redeliver.
func (u *Usecase) Handle(ctx context.Context, payload []byte) (mpesa.Outcome, error) {
	received := u.now()
	cb, err := Parse(payload)
	if err != nil {
		u.finish(ctx, result{outcome: mpesa.OutcomeMalformed, checkoutID: cb.CheckoutRequestID, detail: err.Error()}, payload, received)
		return mpesa.OutcomeMalformed, nil
	}

	var res result
	err = u.uow.WithinCheckoutTx(ctx, cb.CheckoutRequestID, func(r uow.Repos, t *mpesa.Transaction) error {
		res = result{checkoutID: cb.CheckoutRequestID, txn: t}
		return u.resolve(ctx, r, t, cb, received, &res)
	})
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		res = result{outcome: mpesa.OutcomeUnmatched, checkoutID: cb.CheckoutRequestID, detail: "no pending request for this checkout id"}
	default:
		u.log.ErrorContext(ctx, "mpesa: callback not processed",
			"checkout_request_id", cb.CheckoutRequestID,
			"result_code", cb.ResultCode,
			"err", err,
		)
		return "", err
	}

	u.finish(ctx, res, payload, received)
	if res.applied != nil {
		u.payments.Committed(ctx, res.applied, member.System)
	}
	return res.outcome, nil
}

// resolve runs with the transaction row locked. Lookups of the loan and
// member happen before any ledger write so a rejected effect leaves only the
// SUCCESS status and a settlement note behind.
func (u *Usecase) resolve(ctx context.Context, r uow.Repos, t *mpesa.Transaction, cb Callback, at time.Time, res *result) error {
	if t.Status.Terminal() {
		res.outcome = mpesa.OutcomeDuplicate
		res.detail = fmt.Sprintf("already %s", t.Status)
		return nil
	}

	status := mpesa.StatusSuccess
	if !cb.Succeeded() {
		status = mpesa.StatusFailed
	}
	won, err := r.Transactions.Resolve(ctx, t.ID, mpesa.Resolution{
		Status:          status,
		ResultCode:      cb.ResultCode,
		ResultDesc:      cb.ResultDesc,
		ReceiptNumber:   cb.Receipt,
		TransactionDate: cb.TransactionDate,
		At:              at,
	})
	if err != nil {
		return err
	}
	if !won {
		res.outcome = mpesa.OutcomeDuplicate
		res.detail = "resolved concurrently"
		return nil
	}
	t.Status = status
	t.ReceiptNumber = cb.Receipt

	if status == mpesa.StatusFailed {
		res.outcome = mpesa.OutcomeFailed
		res.detail = cb.ResultDesc
		return nil
	}

	if cb.Amount != nil && !cb.Amount.Equal(t.Amount) {
		return u.unsettled(ctx, r, t, res, fmt.Sprintf("amount mismatch: requested %s, confirmed %s", t.Amount.StringFixed(2), cb.Amount.StringFixed(2)))
	}

	// the provider's date dates the money; ledger transitions use at
	paidAt := at
	if cb.TransactionDate != nil {
		paidAt = cb.TransactionDate.UTC()
	}

	var effectErr error
	switch t.Purpose {
	case mpesa.PurposeContribution:
		_, effectErr = u.contributions.CreditInTx(ctx, r, contribution.Credit{
			MemberID:    t.MemberID,
			Amount:      t.Amount,
			Reference:   t.CheckoutRequestID,
			Receipt:     cb.Receipt,
			Description: "M-Pesa " + cb.Receipt,
			At:          paidAt,
		})
	case mpesa.PurposeLoanPayment:
		var l *loan.Loan
		l, effectErr = u.lockLoan(ctx, r, t)
		if effectErr == nil {
			res.applied, effectErr = u.payments.ApplyInTx(ctx, r, l, payment.Posting{
				Amount:    t.Amount,
				Reference: t.CheckoutRequestID,
				Receipt:   cb.Receipt,
				At:        at,
				PaidAt:    paidAt,
				Actor:     member.System,
			})
		}
	default:
		effectErr = apperr.Validation("reconcile.Handle", "unknown purpose %q", t.Purpose)
	}

	switch {
	case effectErr == nil:
	case apperr.Is(effectErr, apperr.KindValidation), apperr.Is(effectErr, apperr.KindNotFound), apperr.Is(effectErr, apperr.KindConflict):
		res.applied = nil
		return u.unsettled(ctx, r, t, res, apperr.Message(effectErr))
	default:
		return effectErr
	}

	settled := at
	if err := r.Transactions.MarkSettled(ctx, t.ID, &settled, ""); err != nil {
		return err
	}
	t.SettledAt = &settled
	res.outcome = mpesa.OutcomeApplied
	return nil
}

// lockLoan finds the loan a repayment is for, then locks the borrower so
// ApplyInTx cannot fail on a missing member after it has started writing.
func (u *Usecase) lockLoan(ctx context.Context, r uow.Repos, t *mpesa.Transaction) (*loan.Loan, error) {
	const op = "reconcile.Handle"
	var (
		l   *loan.Loan
		err error
	)
	if t.LoanNumber != "" {
		l, err = r.Loans.GetByLoanNumberForUpdate(ctx, t.LoanNumber)
	} else {
		l, err = r.Loans.GetPayableByMemberIDForUpdate(ctx, t.MemberID)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(op, "no payable loan for member %d", t.MemberID)
	}
	if err != nil {
		return nil, err
	}
	if _, err := r.Members.GetByIDForUpdate(ctx, l.MemberID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "member %d of loan %s not found", l.MemberID, l.LoanNumber)
		}
		return nil, err
	}
	return l, nil
}

// unsettled keeps the provider's SUCCESS but records why the money was not
// booked.
func (u *Usecase) unsettled(ctx context.Context, r uow.Repos, t *mpesa.Transaction, res *result, note string) error {
	if err := r.Transactions.MarkSettled(ctx, t.ID, nil, note); err != nil {
		return err
	}
	t.SettlementNote = note
	res.outcome = mpesa.OutcomeUnsettled
	res.detail = note
	return nil
}

func (u *Usecase) finish(ctx context.Context, res result, payload []byte, received time.Time) {
	u.metrics.Callback(string(res.outcome))

	attrs := []any{"checkout_request_id", res.checkoutID, "outcome", string(res.outcome)}
	if res.detail != "" {
		attrs = append(attrs, "detail", res.detail)
	}
	if t := res.txn; t != nil {
		attrs = append(attrs, "purpose", string(t.Purpose), "member_id", t.MemberID, "amount", t.Amount.StringFixed(2))
		if t.ReceiptNumber != "" {
			attrs = append(attrs, "receipt", t.ReceiptNumber)
		}
	}
	switch res.outcome {
	case mpesa.OutcomeApplied, mpesa.OutcomeFailed:
		u.log.InfoContext(ctx, "mpesa: callback processed", attrs...)
	default:
		u.log.WarnContext(ctx, "mpesa: callback needs review", attrs...)
	}

	stored := payload
	if len(stored) > maxStoredPayload {
		stored = stored[:maxStoredPayload]
	}
	if err := u.transactions.LogCallback(ctx, &mpesa.CallbackLog{
		CheckoutRequestID: res.checkoutID,
		Outcome:           res.outcome,
		Detail:            res.detail,
		Payload:           string(stored),
		ReceivedAt:        received,
	}); err != nil {
		u.log.WarnContext(ctx, "mpesa: callback log not stored", "checkout_request_id", res.checkoutID, "err", err)
	}
}
