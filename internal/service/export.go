package service

import (
	"bufio"
	"context"
	"io"
	"strings"

	"fnordcredit/internal/model"
)

const (
	qifHeader     = "!Type:Bank"
	qifPayee      = "Fnordcredit"
	qifDateLayout = "2006-01-02"
)

// ExportTransactionsQIF 以 QIF 格式导出用户流水
func (s *CreditService) ExportTransactionsQIF(ctx context.Context, userID int64) (string, error) {
	transactions, err := s.GetUserTransactions(ctx, userID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := WriteQIF(&sb, transactions); err != nil {
		return "", classify("导出流水", err)
	}
	return sb.String(), nil
}

// WriteQIF 每笔流水一段，顺序与传入顺序一致：
//
//	!Type:Bank
//	D2024-01-31
//	T-5
//	Mdescription
//	PFnordcredit
//	^
//
// 日期固定为 UTC 下的 ISO 8601 日期，不随主机区域设置变化
func WriteQIF(w io.Writer, transactions []*model.Transaction) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(qifHeader + "\n")
	for _, t := range transactions {
		bw.WriteString("D" + t.Time.UTC().Format(qifDateLayout) + "\n")
		bw.WriteString("T" + t.Delta.String() + "\n")
		bw.WriteString("M" + singleLine(t.Description) + "\n")
		bw.WriteString("P" + qifPayee + "\n")
		bw.WriteString("^\n")
	}
	return bw.Flush()
}

// singleLine 描述中的换行会破坏 QIF 结构，替换为空格
func singleLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
