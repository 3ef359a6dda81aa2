package member

import (
	"time"

	"github.com/shopspring/decimal"
)

// Table: members. Registration and profile CRUD live outside this service;
// the ledger only reads identity and keeps the two running aggregates.
type Member struct {
	ID                 uint64          `gorm:"primaryKey;column:id" json:"id"`
	MemberNumber       string          `gorm:"column:member_number;size:32;not null;uniqueIndex:ux_members_member_number" json:"member_number"`
	Name               string          `gorm:"column:name;size:128;not null" json:"name"`
	Phone              string          `gorm:"column:phone;size:16" json:"phone"`
	TotalContributions decimal.Decimal `gorm:"column:total_contributions;type:decimal(19,2);not null;default:0" json:"total_contributions"`
	OutstandingLoan    decimal.Decimal `gorm:"column:outstanding_loan;type:decimal(19,2);not null;default:0" json:"outstanding_loan"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Member) TableName() string { return "members" }

type Role string

const (
	RoleMember      Role = "MEMBER"
	RoleChairperson Role = "CHAIRPERSON"
	RoleTreasurer   Role = "TREASURER"
	RoleSecretary   Role = "SECRETARY"
)

// Actor is whoever performs an operation. It is passed explicitly into every
// usecase call instead of being looked up from request state.
type Actor struct {
	MemberID uint64
	Name     string
	Role     Role
}

// System is the actor used for provider-driven changes (callbacks).
var System = Actor{Name: "mpesa-callback", Role: "SYSTEM"}

func (a Actor) CanApprove() bool {
	return a.Role == RoleChairperson || a.Role == RoleTreasurer
}

func (a Actor) String() string {
	if a.Name != "" {
		return a.Name
	}
	return string(a.Role)
}
