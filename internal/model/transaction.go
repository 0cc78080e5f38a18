package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction 余额流水表
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改；仅在开启级联删除时随用户一并删除
// 2. Delta 按调用方传入的值保存；Credit 为本次变动后四舍五入到分的余额快照，写入后不再重算
// 3. 不对 user 表建外键，用户删除后流水默认保留
type Transaction struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64           `gorm:"index;not null" json:"userId"`
	Delta       decimal.Decimal `gorm:"type:decimal(16,4);not null" json:"delta"`
	Credit      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"credit"`
	Time        time.Time       `gorm:"not null;index" json:"time"`
	Description string          `gorm:"type:varchar(512)" json:"description"`
}

func (Transaction) TableName() string {
	return "transaction"
}
