package usecases

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSettlementDefaults(t *testing.T) {
	t.Run("minimum and tolerance parse as decimals", func(t *testing.T) {
		assert.True(t, decimal.RequireFromString(DefaultMinimumUSDC).Equal(decimal.NewFromInt(1)))
		assert.Equal(t, "0.99", decimal.RequireFromString(DepositTolerance).String())
	})

	t.Run("polling is faster than the timeout", func(t *testing.T) {
		assert.Less(t, int64(DefaultDepositPollInterval), int64(DefaultDepositTimeout))
	})
}
