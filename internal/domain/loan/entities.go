package loan

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTransition = errors.New("invalid loan state transition")
	ErrInvariant         = errors.New("loan ledger invariant violated")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusDisbursed Status = "DISBURSED"
	StatusPaid      Status = "PAID"
)

// ActiveStatuses block a new application by the same member.
var ActiveStatuses = []Status{StatusPending, StatusApproved, StatusDisbursed}

// Table: loans
type Loan struct {
	ID              uint64          `gorm:"primaryKey;column:id" json:"-"`
	LoanNumber      string          `gorm:"column:loan_number;size:32;not null;uniqueIndex:ux_loans_loan_number" json:"loan_number"`
	MemberID        uint64          `gorm:"column:member_id;not null;index:idx_loans_member_status,priority:1" json:"member_id"`
	Principal       decimal.Decimal `gorm:"column:principal;type:decimal(19,2);not null" json:"principal"`
	InterestRate    decimal.Decimal `gorm:"column:interest_rate;type:decimal(5,2);not null" json:"interest_rate"`
	DurationMonths  int             `gorm:"column:duration_months;not null" json:"duration_months"`
	MonthlyPayment  decimal.Decimal `gorm:"column:monthly_payment;type:decimal(19,2);not null" json:"monthly_payment"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:decimal(19,2);not null" json:"total_amount"`
	AmountPaid      decimal.Decimal `gorm:"column:amount_paid;type:decimal(19,2);not null" json:"amount_paid"`
	Balance         decimal.Decimal `gorm:"column:balance;type:decimal(19,2);not null" json:"balance"`
	Status          Status          `gorm:"column:status;type:varchar(16);not null;default:'PENDING';index:idx_loans_member_status,priority:2" json:"status"`
	Purpose         string          `gorm:"column:purpose;type:text" json:"purpose"`
	ApprovedBy      string          `gorm:"column:approved_by;size:128" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `gorm:"column:approved_at" json:"approved_at,omitempty"`
	RejectionReason string          `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	DisbursedAt     *time.Time      `gorm:"column:disbursed_at" json:"disbursed_at,omitempty"`
	StatusUpdatedAt time.Time       `gorm:"column:status_updated_at" json:"status_updated_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

// Table: loan_payments. Rows are append-only.
type Payment struct {
	ID                   uint64          `gorm:"primaryKey;column:id" json:"-"`
	LoanID               uint64          `gorm:"column:loan_id;not null;index:idx_loan_payments_loan_paid,priority:1" json:"-"`
	Amount               decimal.Decimal `gorm:"column:amount;type:decimal(19,2);not null" json:"amount"`
	PrincipalPortion     decimal.Decimal `gorm:"column:principal_portion;type:decimal(19,2);not null" json:"principal_portion"`
	InterestPortion      decimal.Decimal `gorm:"column:interest_portion;type:decimal(19,2);not null" json:"interest_portion"`
	TransactionReference string          `gorm:"column:transaction_reference;size:64;not null;uniqueIndex:ux_loan_payments_reference" json:"transaction_reference"`
	ReceiptNumber        string          `gorm:"column:receipt_number;size:32" json:"receipt_number,omitempty"`
	PaidAt               time.Time       `gorm:"column:paid_at;not null;index:idx_loan_payments_loan_paid,priority:2" json:"paid_at"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime" json:"-"`
}

func (Payment) TableName() string { return "loan_payments" }
