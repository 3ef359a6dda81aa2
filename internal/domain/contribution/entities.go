package contribution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Table: contributions
type Contribution struct {
	ID                   uint64          `gorm:"primaryKey;column:id" json:"-"`
	MemberID             uint64          `gorm:"column:member_id;not null;index" json:"member_id"`
	Amount               decimal.Decimal `gorm:"column:amount;type:decimal(19,2);not null" json:"amount"`
	TransactionReference string          `gorm:"column:transaction_reference;size:64;not null;uniqueIndex:ux_contributions_reference" json:"transaction_reference"`
	ReceiptNumber        string          `gorm:"column:receipt_number;size:32" json:"receipt_number,omitempty"`
	Description          string          `gorm:"column:description;type:text" json:"description"`
	ContributedAt        time.Time       `gorm:"column:contributed_at;not null" json:"contributed_at"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime" json:"-"`
}

func (Contribution) TableName() string { return "contributions" }

type Repository interface {
	Create(ctx context.Context, c *Contribution) error
	ListByMemberID(ctx context.Context, memberID uint64) ([]Contribution, error)
}
