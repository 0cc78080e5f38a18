package repository

import (
	"context"
	"errors"
	"time"

	"fnordcredit/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound  = errors.New("用户不存在")
	ErrDuplicateName = errors.New("用户名已存在")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Create 新增用户，唯一索引冲突时返回 ErrDuplicateName
func (r *UserRepository) Create(ctx context.Context, tx *gorm.DB, user *model.User) error {
	err := r.conn(tx).WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateName
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// GetByIDForUpdate 在事务内加行锁读取用户
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	return r.first(r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *UserRepository) GetByName(ctx context.Context, tx *gorm.DB, name string) (*model.User, error) {
	return r.first(r.conn(tx).WithContext(ctx).Where("name = ?", name))
}

// GetByToken 按会话 token 查询，空 token 不匹配任何用户
func (r *UserRepository) GetByToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrUserNotFound
	}
	return r.first(r.db.WithContext(ctx).Where("token = ?", token))
}

func (r *UserRepository) first(query *gorm.DB) (*model.User, error) {
	var user model.User
	err := query.First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// List 按 id 升序返回全部用户
func (r *UserRepository) List(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, err
}

func (r *UserRepository) UpdateCredit(ctx context.Context, tx *gorm.DB, id int64, credit decimal.Decimal, changedAt time.Time) error {
	return r.UpdateFields(ctx, tx, id, map[string]interface{}{
		"credit":      credit,
		"lastchanged": changedAt,
	})
}

// UpdateFields 按列更新，值为 nil 时写入 NULL
//
// 不以 RowsAffected 判断用户是否存在：MySQL 在值未变化时返回 0，调用方需先确认用户存在
func (r *UserRepository) UpdateFields(ctx context.Context, tx *gorm.DB, id int64, fields map[string]interface{}) error {
	err := r.conn(tx).WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(fields).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateName
	}
	return err
}

func (r *UserRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	result := r.conn(tx).WithContext(ctx).Where("id = ?", id).Delete(&model.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
