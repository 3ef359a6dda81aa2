package audit

import (
	"context"
	"time"
)

// Table: loan_transitions. One row per loan state change.
type Transition struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	LoanID     uint64    `gorm:"column:loan_id;not null;index"`
	FromStatus string    `gorm:"column:from_status;size:16"`
	ToStatus   string    `gorm:"column:to_status;size:16;not null"`
	Actor      string    `gorm:"column:actor;size:128;not null"`
	ActorID    uint64    `gorm:"column:actor_id"`
	Reason     string    `gorm:"column:reason;type:text"`
	At         time.Time `gorm:"column:at;not null"`
}

func (Transition) TableName() string { return "loan_transitions" }

type Repository interface {
	Record(ctx context.Context, t *Transition) error
	ListByLoanID(ctx context.Context, loanID uint64) ([]Transition, error)
}
