package mysql

import (
	"context"

	contributionDomain "chama-backend/internal/domain/contribution"

	"gorm.io/gorm"
)

type ContributionRepository struct{ db *gorm.DB }

func NewContributionRepository(db *gorm.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

func (r *ContributionRepository) Create(ctx context.Context, c *contributionDomain.Contribution) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ContributionRepository) ListByMemberID(ctx context.Context, memberID uint64) ([]contributionDomain.Contribution, error) {
	var out []contributionDomain.Contribution
	res := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("contributed_at DESC, id DESC").
		Find(&out)
	return out, res.Error
}
