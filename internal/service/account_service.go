package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"fnordcredit/internal/config"
	"fnordcredit/internal/infrastructure/lock"
	"fnordcredit/internal/model"
	"fnordcredit/internal/repository"
	"fnordcredit/pkg/idgen"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AccountService struct {
	db              *gorm.DB
	guard           *lock.Guard
	cfg             *config.Config
	logger          zerolog.Logger
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
	events          *eventRecorder
}

func NewAccountService(db *gorm.DB, guard *lock.Guard, ids *idgen.Snowflake, cfg *config.Config, logger zerolog.Logger) *AccountService {
	return &AccountService{
		db:              db,
		guard:           guard,
		cfg:             cfg,
		logger:          logger.With().Str("component", "account").Logger(),
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		events:          newEventRecorder(db, ids, cfg.Kafka.Topic.CreditEvents),
	}
}

// AddUser 创建用户，初始余额为 0
//
// 用户名检查与写入在同一把用户名锁和同一个事务内完成
func (s *AccountService) AddUser(ctx context.Context, name string) (*model.User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	user := &model.User{
		Name:        name,
		Credit:      decimal.Zero,
		DebtAllowed: true,
		LastChanged: time.Now().UTC(),
	}

	err := s.guard.WithName(ctx, name, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.ensureNameFree(ctx, tx, name); err != nil {
				return err
			}
			if err := s.userRepo.Create(ctx, tx, user); err != nil {
				return err
			}
			return s.events.record(ctx, tx, userEvent(model.EventUserCreated, user))
		})
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateName) {
			s.logger.Error().Str("name", name).Msg("用户已存在，无法创建")
		}
		return nil, classify("创建用户", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Str("name", name).Msg("新用户已创建")
	return user, nil
}

func (s *AccountService) ensureNameFree(ctx context.Context, tx *gorm.DB, name string) error {
	_, err := s.userRepo.GetByName(ctx, tx, name)
	if err == nil {
		return ErrDuplicateName
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	return err
}

func (s *AccountService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	return user, classify("查询用户", err)
}

func (s *AccountService) GetUserByName(ctx context.Context, name string) (*model.User, error) {
	user, err := s.userRepo.GetByName(ctx, nil, name)
	return user, classify("查询用户", err)
}

func (s *AccountService) GetUserByToken(ctx context.Context, token string) (*model.User, error) {
	user, err := s.userRepo.GetByToken(ctx, token)
	return user, classify("查询用户", err)
}

// GetAllUsers 按 id 返回全部用户，不含 token 与 pincode
func (s *AccountService) GetAllUsers(ctx context.Context) ([]model.UserSummary, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, classify("查询用户列表", err)
	}

	summaries := make([]model.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	return summaries, nil
}

// RenameUser 修改用户名，只更新 name
func (s *AccountService) RenameUser(ctx context.Context, id int64, newName string) (*model.User, error) {
	if strings.TrimSpace(newName) == "" {
		return nil, ErrEmptyName
	}

	var user *model.User
	var oldName string
	err := s.guard.WithUserAndName(ctx, id, newName, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			user, err = s.userRepo.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if user.Name == newName {
				return ErrSameName
			}
			if err := s.ensureNameFree(ctx, tx, newName); err != nil {
				return err
			}
			if err := s.userRepo.UpdateFields(ctx, tx, id, map[string]interface{}{"name": newName}); err != nil {
				return err
			}

			oldName = user.Name
			user.Name = newName
			event := userEvent(model.EventUserRenamed, user)
			event.OldName = oldName
			return s.events.record(ctx, tx, event)
		})
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", id).Str("new_name", newName).Msg("用户改名失败")
		return nil, classify("修改用户名", err)
	}

	s.logger.Info().Int64("user_id", id).Str("old_name", oldName).Str("new_name", newName).Msg("用户已改名")
	return user, nil
}

// DeleteUser 删除用户
//
// 余额不为 0 时必须 force；流水默认保留，开启 ledger.cascade_delete 后一并删除
func (s *AccountService) DeleteUser(ctx context.Context, id int64, force bool) error {
	var removed int64
	err := s.guard.WithUser(ctx, id, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			user, err := s.userRepo.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if !force && !user.Credit.IsZero() {
				return ErrNonZeroBalance
			}
			if s.cfg.Ledger.CascadeDelete {
				removed, err = s.transactionRepo.DeleteByUserID(ctx, tx, id)
				if err != nil {
					return err
				}
			}
			if err := s.userRepo.Delete(ctx, tx, id); err != nil {
				return err
			}
			return s.events.record(ctx, tx, userEvent(model.EventUserDeleted, user))
		})
	})
	if err != nil {
		return classify("删除用户", err)
	}

	s.logger.Info().
		Int64("user_id", id).
		Bool("force", force).
		Int64("transactions_removed", removed).
		Msg("用户已删除")
	return nil
}

// UpdateToken 覆盖会话 token，空字符串清除 token
func (s *AccountService) UpdateToken(ctx context.Context, id int64, token string) error {
	return s.updateFields(ctx, "更新 token", id, map[string]interface{}{"token": nullable(token)})
}

// UpdatePin 设置 PIN，空 PIN 清除；只保存 bcrypt 哈希
func (s *AccountService) UpdatePin(ctx context.Context, id int64, pin string) error {
	var hashed *string
	if pin != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(pin), s.cfg.Security.BcryptCost)
		if err != nil {
			return classify("生成 PIN 哈希", err)
		}
		str := string(h)
		hashed = &str
	}
	return s.updateFields(ctx, "更新 PIN", id, map[string]interface{}{"pincode": hashed})
}

// UpdateAvatar 覆盖头像地址，返回更新后的用户
func (s *AccountService) UpdateAvatar(ctx context.Context, id int64, url string) (*model.User, error) {
	if err := s.updateFields(ctx, "更新头像", id, map[string]interface{}{"avatar": nullable(url)}); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

func (s *AccountService) UserHasPin(ctx context.Context, id int64) (bool, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	return user.HasPin(), nil
}

// CheckUserPin 校验 PIN，校验失败返回 ErrWrongPin
//
// 未设置 PIN 时任何输入都通过。security.legacy_token_pin_check 开启时，
// 输入与用户 token 字面相等同样判定为错误，与旧服务保持一致。
func (s *AccountService) CheckUserPin(ctx context.Context, id int64, pin string) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", id).Msg("无法校验用户 PIN")
		return classify("校验 PIN", err)
	}

	if user.Pincode != nil && bcrypt.CompareHashAndPassword([]byte(*user.Pincode), []byte(pin)) != nil {
		s.logger.Warn().Int64("user_id", id).Msg("PIN 校验失败")
		return ErrWrongPin
	}
	if s.cfg.Security.LegacyTokenPinCheck && user.Token != nil && *user.Token == pin {
		s.logger.Warn().Int64("user_id", id).Msg("PIN 与 token 相同，拒绝")
		return ErrWrongPin
	}
	return nil
}

// updateFields 在用户锁内确认用户存在后更新指定列
func (s *AccountService) updateFields(ctx context.Context, op string, id int64, fields map[string]interface{}) error {
	err := s.guard.WithUser(ctx, id, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := s.userRepo.GetByIDForUpdate(ctx, tx, id); err != nil {
				return err
			}
			return s.userRepo.UpdateFields(ctx, tx, id, fields)
		})
	})
	if err != nil {
		return classify(op, err)
	}
	s.logger.Debug().Int64("user_id", id).Str("op", op).Msg("用户资料已更新")
	return nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
