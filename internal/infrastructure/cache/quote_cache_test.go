package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanders/microfinance/internal/domain/model"
)

const ttl = 24 * time.Hour

func standardSchedule(t *testing.T) model.ScheduleResult {
	t.Helper()
	calc, err := model.NewAmortizationCalculator(model.DefaultLoanTerms())
	require.NoError(t, err)
	res, err := calc.Compute(decimal.NewFromInt(10000), 17, 4)
	require.NoError(t, err)
	return res
}

func encoded(t *testing.T, res model.ScheduleResult) string {
	t.Helper()
	data, err := json.Marshal(fromModel(res))
	require.NoError(t, err)
	return string(data)
}

func TestQuoteCache_Key(t *testing.T) {
	db, _ := redismock.NewClientMock()
	c := NewQuoteCache(db, model.DefaultLoanTerms(), ttl)

	assert.Equal(t, "ledger:quote:r0.06:f425:s0.01:p5000-50000:w4-52:10000:17:4", c.Key(decimal.NewFromInt(10000), 17, 4))
	assert.Equal(t, c.Key(decimal.RequireFromString("10000.00"), 17, 4), c.Key(decimal.NewFromInt(10000), 17, 4))

	t.Run("sub-cent principals never share a key", func(t *testing.T) {
		assert.NotEqual(t, c.Key(decimal.NewFromInt(50000), 17, 4),
			c.Key(decimal.RequireFromString("50000.004"), 17, 4))
	})

	t.Run("any term change moves the key", func(t *testing.T) {
		changes := map[string]func(*model.LoanTerms){
			"interest rate": func(tm *model.LoanTerms) { tm.InterestRate = decimal.RequireFromString("0.05") },
			"max principal": func(tm *model.LoanTerms) { tm.MaxPrincipal = decimal.NewFromInt(40000) },
			"min principal": func(tm *model.LoanTerms) { tm.MinPrincipal = decimal.NewFromInt(6000) },
			"max weeks":     func(tm *model.LoanTerms) { tm.MaxTermWeeks = 26 },
			"min weeks":     func(tm *model.LoanTerms) { tm.MinTermWeeks = 8 },
		}
		for name, change := range changes {
			other := model.DefaultLoanTerms()
			change(&other)
			assert.NotEqual(t, c.Key(decimal.NewFromInt(10000), 17, 4),
				NewQuoteCache(db, other, ttl).Key(decimal.NewFromInt(10000), 17, 4), name)
		}
	})
}

func TestQuoteCache_Set(t *testing.T) {
	t.Run("stores the encoded schedule with ttl", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewQuoteCache(db, model.DefaultLoanTerms(), ttl)
		res := standardSchedule(t)

		mock.ExpectSet(c.Key(res.Principal, 17, 4), encoded(t, res), ttl).SetVal("OK")

		require.NoError(t, c.Set(context.Background(), res))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis failure is returned", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewQuoteCache(db, model.DefaultLoanTerms(), ttl)
		res := standardSchedule(t)

		mock.ExpectSet(c.Key(res.Principal, 17, 4), encoded(t, res), ttl).SetErr(errors.New("connection refused"))

		err := c.Set(context.Background(), res)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis set quote")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestQuoteCache_Get(t *testing.T) {
	principal := decimal.NewFromInt(10000)

	t.Run("hit decodes the full schedule", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewQuoteCache(db, model.DefaultLoanTerms(), ttl)
		want := standardSchedule(t)

		mock.ExpectGet(c.Key(principal, 17, 4)).SetVal(encoded(t, want))

		got, ok, err := c.Get(context.Background(), principal, 17, 4)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, got.TotalLoanAmount.Equal(decimal.NewFromInt(12825)))
		assert.True(t, got.WeeklyPaymentBase.Equal(decimal.RequireFromString("854.41")))
		require.Len(t, got.Entries, 17)
		for i := range want.Entries {
			assert.True(t, want.Entries[i].ExpectedPayment.Equal(got.Entries[i].ExpectedPayment), "week %d", i+1)
			assert.True(t, want.Entries[i].Savings.Equal(got.Entries[i].Savings), "week %d", i+1)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss reports false without error", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewQuoteCache(db, model.DefaultLoanTerms(), ttl)

		mock.ExpectGet(c.Key(principal, 17, 4)).RedisNil()

		_, ok, err := c.Get(context.Background(), principal, 17, 4)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt value is an error", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewQuoteCache(db, model.DefaultLoanTerms(), ttl)

		mock.ExpectGet(c.Key(principal, 17, 4)).SetVal("{not json")

		_, ok, err := c.Get(context.Background(), principal, 17, 4)
		require.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("record for another term is rejected", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewQuoteCache(db, model.DefaultLoanTerms(), ttl)

		mock.ExpectGet(c.Key(principal, 26, 6)).SetVal(encoded(t, standardSchedule(t)))

		_, ok, err := c.Get(context.Background(), principal, 26, 6)
		require.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("redis failure is returned", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := NewQuoteCache(db, model.DefaultLoanTerms(), ttl)

		mock.ExpectGet(c.Key(principal, 17, 4)).SetErr(errors.New("timeout"))

		_, _, err := c.Get(context.Background(), principal, 17, 4)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis get quote")
	})
}
