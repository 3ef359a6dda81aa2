package mpesa

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

func (s Status) Terminal() bool { return s == StatusSuccess || s == StatusFailed }

type Purpose string

const (
	PurposeContribution Purpose = "CONTRIBUTION"
	PurposeLoanPayment  Purpose = "LOAN_PAYMENT"
)

func (p Purpose) Valid() bool { return p == PurposeContribution || p == PurposeLoanPayment }

// Transaction is a payment request pushed to the provider, keyed by the
// provider's CheckoutRequestID. Rows are never deleted.
//
// Table: mpesa_transactions
type Transaction struct {
	ID                uint64          `gorm:"primaryKey;column:id" json:"-"`
	CheckoutRequestID string          `gorm:"column:checkout_request_id;size:64;not null;uniqueIndex:ux_mpesa_checkout_request_id" json:"checkout_request_id"`
	MerchantRequestID string          `gorm:"column:merchant_request_id;size:64" json:"merchant_request_id"`
	PhoneNumber       string          `gorm:"column:phone_number;size:16;not null" json:"phone_number"`
	Amount            decimal.Decimal `gorm:"column:amount;type:decimal(19,2);not null" json:"amount"`
	Purpose           Purpose         `gorm:"column:purpose;type:varchar(16);not null" json:"purpose"`
	MemberID          uint64          `gorm:"column:member_id;not null;index" json:"member_id"`
	LoanNumber        string          `gorm:"column:loan_number;size:32" json:"loan_number,omitempty"`
	AccountReference  string          `gorm:"column:account_reference;size:64" json:"account_reference"`
	Status            Status          `gorm:"column:status;type:varchar(16);not null;default:'PENDING';index" json:"status"`
	ResultCode        *int            `gorm:"column:result_code" json:"result_code,omitempty"`
	ResultDesc        string          `gorm:"column:result_desc;type:text" json:"result_desc,omitempty"`
	ReceiptNumber     string          `gorm:"column:receipt_number;size:32" json:"receipt_number,omitempty"`
	TransactionDate   *time.Time      `gorm:"column:transaction_date" json:"transaction_date,omitempty"`
	SettledAt         *time.Time      `gorm:"column:settled_at" json:"settled_at,omitempty"`
	SettlementNote    string          `gorm:"column:settlement_note;type:text" json:"settlement_note,omitempty"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string { return "mpesa_transactions" }

// Resolution is the single PENDING → terminal write.
type Resolution struct {
	Status          Status
	ResultCode      int
	ResultDesc      string
	ReceiptNumber   string
	TransactionDate *time.Time
	At              time.Time
}

// Outcome classifies how an inbound callback was handled.
type Outcome string

const (
	OutcomeApplied   Outcome = "APPLIED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeUnsettled Outcome = "UNSETTLED"
	OutcomeUnmatched Outcome = "UNMATCHED"
	OutcomeDuplicate Outcome = "DUPLICATE"
	OutcomeMalformed Outcome = "MALFORMED"
)

// Table: mpesa_callbacks. Every delivery is kept for operator review.
type CallbackLog struct {
	ID                uint64    `gorm:"primaryKey;column:id"`
	CheckoutRequestID string    `gorm:"column:checkout_request_id;size:64;index"`
	Outcome           Outcome   `gorm:"column:outcome;type:varchar(16);not null;index"`
	Detail            string    `gorm:"column:detail;type:text"`
	Payload           string    `gorm:"column:payload;type:text"`
	ReceivedAt        time.Time `gorm:"column:received_at;not null"`
}

func (CallbackLog) TableName() string { return "mpesa_callbacks" }
