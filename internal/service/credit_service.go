package service

import (
	"context"
	"time"

	"fnordcredit/internal/config"
	"fnordcredit/internal/infrastructure/lock"
	"fnordcredit/internal/model"
	"fnordcredit/internal/repository"
	"fnordcredit/pkg/idgen"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreditService struct {
	db              *gorm.DB
	guard           *lock.Guard
	logger          zerolog.Logger
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
	events          *eventRecorder
}

func NewCreditService(db *gorm.DB, guard *lock.Guard, ids *idgen.Snowflake, cfg *config.Config, logger zerolog.Logger) *CreditService {
	return &CreditService{
		db:              db,
		guard:           guard,
		logger:          logger.With().Str("component", "credit").Logger(),
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		events:          newEventRecorder(db, ids, cfg.Kafka.Topic.CreditEvents),
	}
}

// UpdateCredit 按 delta 调整余额并追加一笔流水
//
// 【关键点】
// 1. 用户锁：同一用户的余额变动串行执行，不会丢失更新
// 2. 事务：加锁读取用户 -> 写流水 -> 写余额 -> 写事件，任一步失败整体回滚
// 3. 新余额以数据库中的当前余额为准计算，调用方手里的旧数据不参与计算
// 4. 用户不存在时直接返回 ErrUserNotFound，不会留下孤立流水
func (s *CreditService) UpdateCredit(ctx context.Context, userID int64, delta decimal.Decimal, description string) (*model.User, error) {
	var (
		user      *model.User
		oldCredit decimal.Decimal
	)

	err := s.guard.WithUser(ctx, userID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			user, err = s.userRepo.GetByIDForUpdate(ctx, tx, userID)
			if err != nil {
				return err
			}

			oldCredit = user.Credit
			newCredit := model.RoundCredit(oldCredit.Add(delta))
			now := time.Now().UTC()

			trans := &model.Transaction{
				UserID:      userID,
				Delta:       delta,
				Credit:      newCredit,
				Time:        now,
				Description: description,
			}
			if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
				return err
			}

			if err := s.userRepo.UpdateCredit(ctx, tx, userID, newCredit, now); err != nil {
				return err
			}
			user.Credit = newCredit
			user.LastChanged = now

			event := userEvent(model.EventCreditChanged, user)
			event.Delta = &delta
			event.Description = description
			event.Time = now
			return s.events.record(ctx, tx, event)
		})
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("user_id", userID).
			Str("delta", delta.String()).
			Msg("余额变动失败")
		return nil, classify("更新余额", err)
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("name", user.Name).
		Str("delta", delta.String()).
		Str("old_credit", oldCredit.String()).
		Str("credit", user.Credit.String()).
		Msg("余额已变动")
	return user, nil
}

// GetUserTransactions 按写入顺序返回用户全部流水
// 不校验用户是否存在，已删除用户保留下来的流水仍可查询
func (s *CreditService) GetUserTransactions(ctx context.Context, userID int64) ([]*model.Transaction, error) {
	transactions, err := s.transactionRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, classify("查询流水", err)
	}
	return transactions, nil
}
