package contribution

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chama-backend/internal/apperr"
	"chama-backend/internal/domain/contribution"
	"chama-backend/internal/domain/member"
	"chama-backend/internal/domain/uow"
	"chama-backend/pkg/id"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const referencePrefix = "CNT"

type ContributeInput struct {
	// MemberID defaults to the actor. Only a treasurer or chairperson may
	// post for someone else.
	MemberID    uint64          `json:"member_id"`
	Amount      decimal.Decimal `json:"amount" validate:"required,dec2,gt=0"`
	Description string          `json:"description" validate:"max=255"`
}

type ContributionDTO struct {
	MemberID             uint64          `json:"member_id"`
	Amount               decimal.Decimal `json:"amount"`
	TransactionReference string          `json:"transaction_reference"`
	ReceiptNumber        string          `json:"receipt_number,omitempty"`
	Description          string          `json:"description"`
	ContributedAt        time.Time       `json:"contributed_at"`
}

func toDTO(c *contribution.Contribution) *ContributionDTO {
	return &ContributionDTO{
		MemberID:             c.MemberID,
		Amount:               c.Amount,
		TransactionReference: c.TransactionReference,
		ReceiptNumber:        c.ReceiptNumber,
		Description:          c.Description,
		ContributedAt:        c.ContributedAt,
	}
}

type Usecase struct {
	uow           uow.UnitOfWork
	contributions contribution.Repository
	log           *slog.Logger
	now           func() time.Time
}

func NewUsecase(tx uow.UnitOfWork, contributions contribution.Repository, log *slog.Logger) *Usecase {
	if log == nil {
		log = slog.Default()
	}
	return &Usecase{uow: tx, contributions: contributions, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (u *Usecase) SetClock(now func() time.Time) { u.now = now }

// Credit is one contribution to record. An empty Reference gets a generated
// CNT- reference.
type Credit struct {
	MemberID    uint64
	Amount      decimal.Decimal
	Reference   string
	Receipt     string
	Description string
	At          time.Time
}

// CreditInTx records c and bumps the member's running total inside the
// caller's transaction. The member is checked before anything is written.
func (u *Usecase) CreditInTx(ctx context.Context, r uow.Repos, c Credit) (*contribution.Contribution, error) {
	const op = "contribution.Credit"
	switch {
	case !c.Amount.IsPositive():
		return nil, apperr.Validation(op, "contribution amount must be positive")
	case !c.Amount.Equal(c.Amount.Round(2)):
		return nil, apperr.Validation(op, "contribution amount must have at most 2 decimal places")
	}
	if _, err := r.Members.GetByIDForUpdate(ctx, c.MemberID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "member %d not found", c.MemberID)
		}
		return nil, err
	}
	if c.Reference == "" {
		c.Reference = id.NewReference(referencePrefix)
	}

	row := &contribution.Contribution{
		MemberID:             c.MemberID,
		Amount:               c.Amount,
		TransactionReference: c.Reference,
		ReceiptNumber:        c.Receipt,
		Description:          c.Description,
		ContributedAt:        c.At,
	}
	if err := r.Contributions.Create(ctx, row); err != nil {
		return nil, err
	}
	if err := r.Members.AddContributions(ctx, c.MemberID, c.Amount); err != nil {
		return nil, err
	}
	return row, nil
}

// Contribute posts a manual (cash or bank) contribution.
func (u *Usecase) Contribute(ctx context.Context, actor member.Actor, in ContributeInput) (*ContributionDTO, error) {
	const op = "contribution.Contribute"
	target := in.MemberID
	if target == 0 {
		target = actor.MemberID
	}
	if target == 0 {
		return nil, apperr.Validation(op, "member_id is required")
	}
	if target != actor.MemberID && !actor.CanApprove() {
		return nil, apperr.Forbidden(op, "only a treasurer may post contributions for another member")
	}

	var row *contribution.Contribution
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		row, err = u.CreditInTx(ctx, r, Credit{
			MemberID:    target,
			Amount:      in.Amount,
			Description: strings.TrimSpace(in.Description),
			At:          u.now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	u.log.InfoContext(ctx, "contribution recorded",
		"member_id", row.MemberID,
		"reference", row.TransactionReference,
		"amount", row.Amount.StringFixed(2),
		"actor", actor.String(),
	)
	return toDTO(row), nil
}

func (u *Usecase) ListByMember(ctx context.Context, memberID uint64) ([]ContributionDTO, error) {
	rows, err := u.contributions.ListByMemberID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	out := make([]ContributionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *toDTO(&rows[i]))
	}
	return out, nil
}
