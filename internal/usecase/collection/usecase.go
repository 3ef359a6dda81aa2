// Package collection starts M-Pesa STK push collections for contributions
// and loan repayments. The money is booked later by the reconciler.
package collection

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"chama-backend/internal/apperr"
	"chama-backend/internal/domain/loan"
	"chama-backend/internal/domain/member"
	"chama-backend/internal/domain/mpesa"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InitiateInput struct {
	PhoneNumber string          `json:"phone_number" validate:"required,kephone"`
	Amount      decimal.Decimal `json:"amount" validate:"required,intlike,gte=1"`
	Purpose     mpesa.Purpose   `json:"purpose" validate:"required,purpose"`
	// LoanNumber targets a specific loan; empty means the member's active loan.
	LoanNumber       string `json:"loan_number" validate:"max=32"`
	AccountReference string `json:"account_reference" validate:"max=64"`
	Description      string `json:"description" validate:"max=255"`
}

type InitiateResult struct {
	CheckoutRequestID   string `json:"checkout_request_id"`
	MerchantRequestID   string `json:"merchant_request_id"`
	ResponseCode        string `json:"response_code"`
	ResponseDescription string `json:"response_description"`
	CustomerMessage     string `json:"customer_message"`
}

type Usecase struct {
	gateway      mpesa.Gateway
	members      member.Repository
	loans        loan.Repository
	transactions mpesa.Repository
	log          *slog.Logger
}

func NewUsecase(gw mpesa.Gateway, members member.Repository, loans loan.Repository, transactions mpesa.Repository, log *slog.Logger) *Usecase {
	if log == nil {
		log = slog.Default()
	}
	return &Usecase{gateway: gw, members: members, loans: loans, transactions: transactions, log: log}
}

// Initiate prompts the phone for payment and records the request as PENDING
// under the provider's CheckoutRequestID. Nothing is stored when the provider
// does not accept the request. Retries are not deduplicated here: each call
// is a new prompt with a new checkout id.
func (u *Usecase) Initiate(ctx context.Context, actor member.Actor, in InitiateInput) (*InitiateResult, error) {
	const op = "collection.Initiate"
	if actor.MemberID == 0 {
		return nil, apperr.Forbidden(op, "a member identity is required")
	}
	if !in.Purpose.Valid() {
		return nil, apperr.Validation(op, "purpose must be %s or %s", mpesa.PurposeContribution, mpesa.PurposeLoanPayment)
	}
	if !in.Amount.IsInteger() || in.Amount.LessThan(decimal.NewFromInt(1)) {
		return nil, apperr.Validation(op, "amount must be a whole number of at least 1")
	}
	phone, err := mpesa.NormalizePhone(in.PhoneNumber)
	if err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}

	payer, err := u.members.GetByID(ctx, actor.MemberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "member %d not found", actor.MemberID)
		}
		return nil, err
	}

	txn := &mpesa.Transaction{
		PhoneNumber: phone,
		Amount:      in.Amount,
		Purpose:     in.Purpose,
		MemberID:    payer.ID,
		Status:      mpesa.StatusPending,
	}
	ref := strings.TrimSpace(in.AccountReference)
	desc := strings.TrimSpace(in.Description)

	switch in.Purpose {
	case mpesa.PurposeLoanPayment:
		l, err := u.targetLoan(ctx, actor, in.LoanNumber)
		if err != nil {
			return nil, err
		}
		if in.Amount.GreaterThan(l.Balance) {
			return nil, apperr.Validation(op, "amount %s exceeds loan balance %s", in.Amount.StringFixed(2), l.Balance.StringFixed(2))
		}
		txn.MemberID = l.MemberID
		txn.LoanNumber = l.LoanNumber
		if ref == "" {
			ref = l.LoanNumber
		}
		if desc == "" {
			desc = "Loan repayment"
		}
	default:
		if ref == "" {
			ref = payer.MemberNumber
		}
		if desc == "" {
			desc = "Contribution"
		}
	}
	txn.AccountReference = ref

	ack, err := u.gateway.STKPush(ctx, mpesa.PushRequest{
		PhoneNumber:      phone,
		Amount:           in.Amount.IntPart(),
		AccountReference: ref,
		Description:      desc,
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			return nil, apperr.Integration(op, err, "stk push failed")
		}
		return nil, err
	}
	if ack == nil || !ack.Accepted() {
		return nil, apperr.Integration(op, nil, "stk push not accepted")
	}

	txn.CheckoutRequestID = ack.CheckoutRequestID
	txn.MerchantRequestID = ack.MerchantRequestID
	if err := u.transactions.Create(ctx, txn); err != nil {
		// the phone has been prompted; the callback will arrive UNMATCHED
		u.log.ErrorContext(ctx, "mpesa: pending transaction not stored",
			"checkout_request_id", ack.CheckoutRequestID,
			"member_id", txn.MemberID,
			"amount", txn.Amount.StringFixed(2),
			"err", err,
		)
		return nil, err
	}

	u.log.InfoContext(ctx, "mpesa: stk push initiated",
		"checkout_request_id", txn.CheckoutRequestID,
		"purpose", string(txn.Purpose),
		"member_id", txn.MemberID,
		"loan_number", txn.LoanNumber,
		"amount", txn.Amount.StringFixed(2),
		"actor", actor.String(),
	)
	return &InitiateResult{
		CheckoutRequestID:   ack.CheckoutRequestID,
		MerchantRequestID:   ack.MerchantRequestID,
		ResponseCode:        ack.ResponseCode,
		ResponseDescription: ack.ResponseDescription,
		CustomerMessage:     ack.CustomerMessage,
	}, nil
}

// Status returns a collection request as stored. The member it was raised for
// and the chair or treasurer may read it.
func (u *Usecase) Status(ctx context.Context, actor member.Actor, checkoutRequestID string) (*mpesa.Transaction, error) {
	const op = "collection.Status"
	t, err := u.transactions.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(op, "no collection request %s", checkoutRequestID)
	}
	if err != nil {
		return nil, err
	}
	if t.MemberID != actor.MemberID && !actor.CanApprove() {
		return nil, apperr.Forbidden(op, "collection request %s belongs to another member", checkoutRequestID)
	}
	return t, nil
}

// targetLoan resolves and pre-checks the loan a repayment prompt is for. The
// reconciler checks again when the money arrives.
func (u *Usecase) targetLoan(ctx context.Context, actor member.Actor, loanNumber string) (*loan.Loan, error) {
	const op = "collection.Initiate"
	var (
		l   *loan.Loan
		err error
	)
	if loanNumber != "" {
		l, err = u.loans.GetByLoanNumber(ctx, loanNumber)
	} else {
		l, err = u.loans.GetActiveByMemberID(ctx, actor.MemberID)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if loanNumber != "" {
			return nil, apperr.NotFound(op, "loan %s not found", loanNumber)
		}
		return nil, apperr.NotFound(op, "member %d has no active loan", actor.MemberID)
	}
	if err != nil {
		return nil, err
	}
	if l.MemberID != actor.MemberID && !actor.CanApprove() {
		return nil, apperr.Forbidden(op, "only the borrower or a treasurer may collect for loan %s", l.LoanNumber)
	}
	if !l.IsPayable() {
		return nil, apperr.Validation(op, "loan %s is %s and does not accept payments", l.LoanNumber, l.Status)
	}
	return l, nil
}
