package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
)

var _ port.QuoteCache = (*QuoteCache)(nil)

// ConnectionInfo holds the redis connection parameters.
type ConnectionInfo struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	Timeout     time.Duration
}

// NewRedisClient connects and pings the server. The client is closed again
// if the ping fails.
func NewRedisClient(ctx context.Context, info ConnectionInfo) (*goredis.Client, error) {
	timeout := info.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         info.Addr,
		Password:     info.Password,
		DB:           info.DB,
		DialTimeout:  info.DialTimeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", info.Addr, err)
	}
	return rdb, nil
}

// QuoteCache memoises amortization schedules in redis. Keys embed the
// product terms and their bounds, so a configuration change never serves a
// stale schedule.
type QuoteCache struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewQuoteCache creates a cache over client for schedules computed with terms.
func NewQuoteCache(client goredis.Cmdable, terms model.LoanTerms, ttl time.Duration) *QuoteCache {
	return &QuoteCache{
		client: client,
		prefix: fmt.Sprintf("ledger:quote:r%s:f%s:s%s:p%s-%s:w%d-%d",
			terms.InterestRate.String(), terms.InsuranceFee.String(), terms.SavingsRate.String(),
			terms.MinPrincipal.String(), terms.MaxPrincipal.String(), terms.MinTermWeeks, terms.MaxTermWeeks),
		ttl: ttl,
	}
}

// Key returns the redis key for a quote. The principal is keyed exactly as
// given; trailing zeros are the only normalisation.
func (c *QuoteCache) Key(principal decimal.Decimal, termWeeks, termMonths int) string {
	return fmt.Sprintf("%s:%s:%d:%d", c.prefix, principal.String(), termWeeks, termMonths)
}

// Get returns the cached schedule. A miss reports false with a nil error.
func (c *QuoteCache) Get(ctx context.Context, principal decimal.Decimal, termWeeks, termMonths int) (model.ScheduleResult, bool, error) {
	raw, err := c.client.Get(ctx, c.Key(principal, termWeeks, termMonths)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return model.ScheduleResult{}, false, nil
	}
	if err != nil {
		return model.ScheduleResult{}, false, fmt.Errorf("redis get quote: %w", err)
	}

	var rec quoteRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.ScheduleResult{}, false, fmt.Errorf("decode cached quote: %w", err)
	}
	if len(rec.Entries) != rec.TermWeeks || rec.TermWeeks != termWeeks || rec.TermMonths != termMonths {
		return model.ScheduleResult{}, false, fmt.Errorf("decode cached quote: record does not match key")
	}
	return rec.toModel(), true, nil
}

func (c *QuoteCache) Set(ctx context.Context, res model.ScheduleResult) error {
	data, err := json.Marshal(fromModel(res))
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	key := c.Key(res.Principal, res.TermWeeks, res.TermMonths)
	if err := c.client.Set(ctx, key, string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set quote: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Wire format
// ---------------------------------------------------------------------------

type quoteRecord struct {
	Principal         decimal.Decimal `json:"principal"`
	InterestRate      decimal.Decimal `json:"interest_rate"`
	TotalInterest     decimal.Decimal `json:"total_interest"`
	InsuranceFee      decimal.Decimal `json:"insurance_fee"`
	SavingsDeduction  decimal.Decimal `json:"savings_deduction"`
	TotalLoanAmount   decimal.Decimal `json:"total_loan_amount"`
	WeeklyPaymentBase decimal.Decimal `json:"weekly_payment"`
	TermWeeks         int             `json:"term_weeks"`
	TermMonths        int             `json:"term_months"`
	Entries           []entryRecord   `json:"entries"`
}

type entryRecord struct {
	Week             int             `json:"week"`
	ExpectedPayment  decimal.Decimal `json:"expected_payment"`
	Principal        decimal.Decimal `json:"principal"`
	Interest         decimal.Decimal `json:"interest"`
	Insurance        decimal.Decimal `json:"insurance"`
	Savings          decimal.Decimal `json:"savings"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

func fromModel(res model.ScheduleResult) quoteRecord {
	rec := quoteRecord{
		Principal:         res.Principal,
		InterestRate:      res.InterestRate,
		TotalInterest:     res.TotalInterest,
		InsuranceFee:      res.InsuranceFee,
		SavingsDeduction:  res.SavingsDeduction,
		TotalLoanAmount:   res.TotalLoanAmount,
		WeeklyPaymentBase: res.WeeklyPaymentBase,
		TermWeeks:         res.TermWeeks,
		TermMonths:        res.TermMonths,
		Entries:           make([]entryRecord, len(res.Entries)),
	}
	for i, e := range res.Entries {
		rec.Entries[i] = entryRecord{
			Week:             e.Week,
			ExpectedPayment:  e.ExpectedPayment,
			Principal:        e.Principal,
			Interest:         e.Interest,
			Insurance:        e.Insurance,
			Savings:          e.Savings,
			RemainingBalance: e.RemainingBalance,
		}
	}
	return rec
}

func (r quoteRecord) toModel() model.ScheduleResult {
	res := model.ScheduleResult{
		Principal:         r.Principal,
		InterestRate:      r.InterestRate,
		TotalInterest:     r.TotalInterest,
		InsuranceFee:      r.InsuranceFee,
		SavingsDeduction:  r.SavingsDeduction,
		TotalLoanAmount:   r.TotalLoanAmount,
		WeeklyPaymentBase: r.WeeklyPaymentBase,
		TermWeeks:         r.TermWeeks,
		TermMonths:        r.TermMonths,
		Entries:           make([]model.AmortizationEntry, len(r.Entries)),
	}
	for i, e := range r.Entries {
		res.Entries[i] = model.AmortizationEntry{
			Week:             e.Week,
			ExpectedPayment:  e.ExpectedPayment,
			Principal:        e.Principal,
			Interest:         e.Interest,
			Insurance:        e.Insurance,
			Savings:          e.Savings,
			RemainingBalance: e.RemainingBalance,
		}
	}
	return res
}
