package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"fnordcredit/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteQIF(t *testing.T) {
	transactions := []*model.Transaction{
		{
			UserID:      1,
			Delta:       decimal.NewFromInt(10),
			Credit:      decimal.NewFromInt(10),
			Time:        time.Date(2024, 1, 30, 23, 59, 0, 0, time.UTC),
			Description: "a",
		},
		{
			UserID:      1,
			Delta:       decimal.NewFromInt(-5),
			Credit:      decimal.NewFromInt(5),
			Time:        time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC),
			Description: "b",
		},
	}

	var sb strings.Builder
	require.NoError(t, WriteQIF(&sb, transactions))

	expected := "!Type:Bank\n" +
		"D2024-01-30\nT10\nMa\nPFnordcredit\n^\n" +
		"D2024-01-31\nT-5\nMb\nPFnordcredit\n^\n"
	assert.Equal(t, expected, sb.String())
}

func TestWriteQIFEmpty(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteQIF(&sb, nil))
	assert.Equal(t, "!Type:Bank\n", sb.String())
}

func TestWriteQIFNormalizesDateAndDescription(t *testing.T) {
	// UTC 下仍是 1 月 31 日
	berlin := time.FixedZone("CET", 3600)
	transactions := []*model.Transaction{{
		Delta:       decimal.RequireFromString("-1.50"),
		Time:        time.Date(2024, 2, 1, 0, 30, 0, 0, berlin),
		Description: "Club Mate\nx2\r\nkalt",
	}}

	var sb strings.Builder
	require.NoError(t, WriteQIF(&sb, transactions))

	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "D2024-01-31", lines[1])
	assert.Equal(t, "T-1.5", lines[2])
	assert.Equal(t, "MClub Mate x2 kalt", lines[3])
	assert.Equal(t, "^", lines[5])
}

func TestExportTransactionsQIF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.addUser(t, "alice")

	_, err := f.credit.UpdateCredit(ctx, u.ID, dec("10"), "a")
	require.NoError(t, err)
	_, err = f.credit.UpdateCredit(ctx, u.ID, dec("-5"), "b")
	require.NoError(t, err)

	out, err := f.credit.ExportTransactionsQIF(ctx, u.ID)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "!Type:Bank\n"))
	assert.Equal(t, 2, strings.Count(out, "^\n"))
	assert.Equal(t, 2, strings.Count(out, "PFnordcredit\n"))

	first := strings.Index(out, "T10\nMa\n")
	second := strings.Index(out, "T-5\nMb\n")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)

	assert.Regexp(t, `(?m)^D\d{4}-\d{2}-\d{2}$`, out)
}

func TestExportTransactionsQIFWithoutHistory(t *testing.T) {
	f := newFixture(t)

	out, err := f.credit.ExportTransactionsQIF(context.Background(), 12345)
	require.NoError(t, err)
	assert.Equal(t, "!Type:Bank\n", out)
}
