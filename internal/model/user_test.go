package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundCredit(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"0.1", "0.1"},
		{"1.005", "1.01"},
		{"-1.005", "-1.01"},
		{"2.344", "2.34"},
		{"10", "10"},
	}
	for _, c := range cases {
		got := RoundCredit(decimal.RequireFromString(c.in))
		assert.True(t, got.Equal(decimal.RequireFromString(c.want)), "%s -> %s, got %s", c.in, c.want, got)
	}
}

func TestSummaryHidesSecrets(t *testing.T) {
	pin := "$2a$10$hash"
	token := "session"
	avatar := "https://example.org/a.png"
	u := &User{
		ID:          3,
		Name:        "alice",
		Credit:      decimal.RequireFromString("4.5"),
		LastChanged: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Token:       &token,
		Pincode:     &pin,
		Avatar:      &avatar,
	}

	s := u.Summary()
	assert.True(t, s.IsPinProtected)
	assert.Equal(t, "alice", s.Name)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "session")
	assert.NotContains(t, string(raw), "$2a$")
	assert.Contains(t, string(raw), `"isPinProtected":true`)

	raw, err = json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "session")
	assert.NotContains(t, string(raw), "$2a$")
}
