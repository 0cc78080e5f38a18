package job

import (
	"context"
	"time"

	"fnordcredit/internal/config"
	"fnordcredit/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Mismatch 余额与最近一笔流水快照不一致的用户
type Mismatch struct {
	UserID   int64           `json:"user_id"`
	Name     string          `json:"name"`
	Credit   decimal.Decimal `json:"credit"`
	Snapshot decimal.Decimal `json:"snapshot"`
}

type AuditReport struct {
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches"`
}

// LedgerAuditJob 定期核对账本：每个用户的余额应等于最近一笔流水记录的余额快照，
// 没有流水的用户余额应为 0。只报告，不修复
type LedgerAuditJob struct {
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
	logger          zerolog.Logger
	stopCh          chan struct{}
	interval        time.Duration
}

func NewLedgerAuditJob(db *gorm.DB, cfg *config.Config, logger zerolog.Logger) *LedgerAuditJob {
	return &LedgerAuditJob{
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		logger:          logger.With().Str("job", "ledger_audit").Logger(),
		stopCh:          make(chan struct{}),
		interval:        cfg.Ledger.AuditInterval,
	}
}

func (j *LedgerAuditJob) Start(ctx context.Context) {
	j.logger.Info().Dur("interval", j.interval).Msg("账本核对任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.logger.Info().Msg("任务停止")
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				j.logger.Error().Err(err).Msg("账本核对失败")
			}
		}
	}
}

func (j *LedgerAuditJob) Stop() {
	close(j.stopCh)
}

// RunOnce 核对一轮全部用户
func (j *LedgerAuditJob) RunOnce(ctx context.Context) (*AuditReport, error) {
	users, err := j.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{Mismatches: make([]Mismatch, 0)}
	for _, u := range users {
		latest, err := j.transactionRepo.LatestByUserID(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		report.Checked++

		snapshot := decimal.Zero
		if latest != nil {
			snapshot = latest.Credit
		}
		if u.Credit.Equal(snapshot) {
			continue
		}

		report.Mismatches = append(report.Mismatches, Mismatch{
			UserID:   u.ID,
			Name:     u.Name,
			Credit:   u.Credit,
			Snapshot: snapshot,
		})
		j.logger.Warn().
			Int64("user_id", u.ID).
			Str("name", u.Name).
			Str("credit", u.Credit.String()).
			Str("snapshot", snapshot.String()).
			Msg("余额与流水不一致")
	}

	if len(report.Mismatches) > 0 {
		j.logger.Warn().Int("checked", report.Checked).Int("mismatches", len(report.Mismatches)).Msg("账本核对完成，存在不一致")
	} else {
		j.logger.Debug().Int("checked", report.Checked).Msg("账本核对完成")
	}
	return report, nil
}
