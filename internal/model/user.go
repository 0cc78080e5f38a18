package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User 用户表
// credit 为两位小数的定点金额，每次变动后都会四舍五入到分
type User struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(191);uniqueIndex;not null" json:"name"`
	Credit      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"credit"`
	DebtAllowed bool            `gorm:"not null;default:true" json:"debtAllowed"`
	LastChanged time.Time       `gorm:"column:lastchanged;not null" json:"lastchanged"`
	Token       *string         `gorm:"type:varchar(255);index" json:"-"`
	Pincode     *string         `gorm:"type:varchar(255)" json:"-"`
	Avatar      *string         `gorm:"type:varchar(512)" json:"avatar"`
}

func (User) TableName() string {
	return "user"
}

// HasPin 是否设置了 PIN
func (u *User) HasPin() bool {
	return u.Pincode != nil
}

// UserSummary 用户列表的投影，不包含 token 和 pincode
type UserSummary struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	LastChanged    time.Time       `json:"lastchanged"`
	Credit         decimal.Decimal `json:"credit"`
	Avatar         *string         `json:"avatar"`
	IsPinProtected bool            `json:"isPinProtected"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Name:           u.Name,
		LastChanged:    u.LastChanged,
		Credit:         u.Credit,
		Avatar:         u.Avatar,
		IsPinProtected: u.HasPin(),
	}
}

// RoundCredit 金额统一保留两位小数
func RoundCredit(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
