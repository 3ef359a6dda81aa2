package loan

import (
	"time"

	"chama-backend/internal/domain/audit"
	"chama-backend/internal/domain/loan"

	"github.com/shopspring/decimal"
)

type ApplyInput struct {
	Principal      decimal.Decimal `json:"principal" validate:"required,dec2,gte=1000,lte=1000000"`
	InterestRate   decimal.Decimal `json:"interest_rate" validate:"required,dec2,gte=0.01,lte=50"`
	DurationMonths int             `json:"duration_months" validate:"required,gte=1,lte=60"`
	Purpose        string          `json:"purpose" validate:"required,max=500"`
}

type LoanDTO struct {
	LoanNumber      string          `json:"loan_number"`
	MemberID        uint64          `json:"member_id"`
	Principal       decimal.Decimal `json:"principal"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	DurationMonths  int             `json:"duration_months"`
	MonthlyPayment  decimal.Decimal `json:"monthly_payment"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TotalInterest   decimal.Decimal `json:"total_interest"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	Balance         decimal.Decimal `json:"balance"`
	Status          string          `json:"status"`
	Purpose         string          `json:"purpose"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	DisbursedAt     *time.Time      `json:"disbursed_at,omitempty"`
	StatusUpdatedAt time.Time       `json:"status_updated_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

type PaymentDTO struct {
	Amount               decimal.Decimal `json:"amount"`
	PrincipalPortion     decimal.Decimal `json:"principal_portion"`
	InterestPortion      decimal.Decimal `json:"interest_portion"`
	TransactionReference string          `json:"transaction_reference"`
	ReceiptNumber        string          `json:"receipt_number,omitempty"`
	PaidAt               time.Time       `json:"paid_at"`
}

type TransitionDTO struct {
	From   string    `json:"from,omitempty"`
	To     string    `json:"to"`
	Actor  string    `json:"actor"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

func ToDTO(l *loan.Loan) *LoanDTO {
	return &LoanDTO{
		LoanNumber:      l.LoanNumber,
		MemberID:        l.MemberID,
		Principal:       l.Principal,
		InterestRate:    l.InterestRate,
		DurationMonths:  l.DurationMonths,
		MonthlyPayment:  l.MonthlyPayment,
		TotalAmount:     l.TotalAmount,
		TotalInterest:   l.TotalAmount.Sub(l.Principal),
		AmountPaid:      l.AmountPaid,
		Balance:         l.Balance,
		Status:          string(l.Status),
		Purpose:         l.Purpose,
		ApprovedBy:      l.ApprovedBy,
		ApprovedAt:      l.ApprovedAt,
		RejectionReason: l.RejectionReason,
		DisbursedAt:     l.DisbursedAt,
		StatusUpdatedAt: l.StatusUpdatedAt,
		CreatedAt:       l.CreatedAt,
	}
}

func PaymentToDTO(p *loan.Payment) PaymentDTO {
	return PaymentDTO{
		Amount:               p.Amount,
		PrincipalPortion:     p.PrincipalPortion,
		InterestPortion:      p.InterestPortion,
		TransactionReference: p.TransactionReference,
		ReceiptNumber:        p.ReceiptNumber,
		PaidAt:               p.PaidAt,
	}
}

func transitionToDTO(t audit.Transition) TransitionDTO {
	return TransitionDTO{From: t.FromStatus, To: t.ToStatus, Actor: t.Actor, Reason: t.Reason, At: t.At}
}
