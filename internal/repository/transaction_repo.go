package repository

import (
	"context"
	"errors"

	"fnordcredit/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// ListByUserID 按写入顺序（id 升序）返回用户全部流水
func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Transaction, error) {
	transactions := make([]*model.Transaction, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&transactions).Error
	return transactions, err
}

// LatestByUserID 用户最近一笔流水，没有流水时返回 nil, nil
func (r *TransactionRepository) LatestByUserID(ctx context.Context, userID int64) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// DeleteByUserID 仅在开启级联删除时使用
func (r *TransactionRepository) DeleteByUserID(ctx context.Context, tx *gorm.DB, userID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Transaction{})
	return result.RowsAffected, result.Error
}
