package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kurantoB/TwitterClone-sub000/internal/domain"
)

// GormBlockRepository implements BlockRegistry using GORM.
type GormBlockRepository struct {
	db *gorm.DB
}

// NewGormBlockRepository creates a new GORM-backed block registry.
func NewGormBlockRepository(db *gorm.DB) *GormBlockRepository {
	return &GormBlockRepository{db: db}
}

// ListBlocked returns the accounts blockerID has blocked, oldest account first.
func (r *GormBlockRepository) ListBlocked(ctx context.Context, blockerID string, page domain.Page) ([]domain.Account, error) {
	var rows []domain.UserModel
	err := r.db.WithContext(ctx).Model(&domain.UserModel{}).
		Select("users.id", "users.username", "users.created_at").
		Joins("JOIN blocks ON blocks.blocked_id = users.id").
		Where("blocks.blocker_id = ?", blockerID).
		Order("users.created_at ASC").
		Order("users.id ASC").
		Offset(page.Offset).
		Limit(page.Amount).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toAccounts(rows), nil
}

func (t *gormGraphTx) BlockExists(blockerID, blockedID string) (bool, error) {
	var count int64
	err := t.db.Model(&domain.BlockModel{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (t *gormGraphTx) BlockedEither(a, b string) (bool, error) {
	return blockedEither(t.db, a, b)
}

func (t *gormGraphTx) InsertBlock(blockerID, blockedID string) error {
	return t.db.Create(&domain.BlockModel{
		BlockerID: blockerID,
		BlockedID: blockedID,
	}).Error
}

func (t *gormGraphTx) DeleteBlock(blockerID, blockedID string) (bool, error) {
	result := t.db.
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&domain.BlockModel{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func blockedEither(db *gorm.DB, a, b string) (bool, error) {
	var count int64
	err := db.Model(&domain.BlockModel{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ BlockRegistry = (*GormBlockRepository)(nil)
