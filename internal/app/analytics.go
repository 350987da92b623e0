/**
 * @description
 * This file contains the balance-forecasting and account-trend analytics.
 * Projections are simple linear extrapolations of the recent transaction
 * history: the last ten transactions the account initiated are averaged over
 * a thirty-day window and carried forward.
 *
 * @notes
 * - Only transactions where the card is the acting account feed the averages;
 *   entries that show up in the history because the card was a transfer
 *   target belong to the counterparty's activity.
 * - Balance inquiries and administrative entries carry a zero amount and so
 *   do not move the averages.
 *
 * @dependencies
 * - context, fmt, time: Standard Go libraries.
 * - github.com/shopspring/decimal: Money arithmetic.
 * - internal/domain: Transaction model.
 */
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/atm-service/internal/domain"
)

const (
	// forecastSampleSize caps how many recent transactions feed a projection.
	forecastSampleSize = 10

	// forecastWindowDays is the averaging window the sampled activity is
	// assumed to span.
	forecastWindowDays = 30

	// maxHorizonDays bounds every user-supplied horizon and window; the trend
	// buckets allocate one point per day.
	maxHorizonDays = 3650
)

// TrendPoint is one day's aggregated activity.
type TrendPoint struct {
	Date    string          `json:"date"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
}

// ownTransactions filters the card's history down to the entries the card
// itself initiated, in insertion order.
func (s *Service) ownTransactions(ctx context.Context, cardNumber string) ([]domain.Transaction, error) {
	history, err := s.history.ForCard(ctx, cardNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	own := make([]domain.Transaction, 0, len(history))
	for _, tx := range history {
		if tx.CardNumber == cardNumber {
			own = append(own, tx)
		}
	}
	return own, nil
}

// flowOf classifies a transaction's effect on the balance: positive inflow,
// negative outflow, or zero for informational entries.
func flowOf(tx *domain.Transaction) decimal.Decimal {
	switch tx.Type {
	case domain.TypeDeposit:
		return tx.Amount
	case domain.TypeWithdrawal, domain.TypeTransfer:
		return tx.Amount.Neg()
	default:
		return decimal.Zero
	}
}

// PredictBalance projects the account balance the given number of days ahead.
// A zero-day horizon or fewer than two transactions on record both return the
// current balance unchanged; the projection never goes below zero.
func (s *Service) PredictBalance(ctx context.Context, session domain.Session, days int) (decimal.Decimal, error) {
	if days < 0 {
		return decimal.Zero, domain.NewError(domain.CodeInvalidFormat, "forecast horizon must not be negative")
	}
	if days > maxHorizonDays {
		return decimal.Zero, domain.NewError(domain.CodeInvalidFormat, "forecast horizon must not exceed ten years")
	}

	account, err := s.getAccount(ctx, session.CardNumber)
	if err != nil {
		return decimal.Zero, err
	}
	own, err := s.ownTransactions(ctx, session.CardNumber)
	if err != nil {
		return decimal.Zero, err
	}
	if len(own) < 2 {
		return account.Balance, nil
	}
	if len(own) > forecastSampleSize {
		own = own[len(own)-forecastSampleSize:]
	}

	net := decimal.Zero
	for i := range own {
		net = net.Add(flowOf(&own[i]))
	}
	dailyDelta := net.Div(decimal.NewFromInt(forecastWindowDays))

	predicted := account.Balance.Add(dailyDelta.Mul(decimal.NewFromInt(int64(days))))
	if predicted.IsNegative() {
		return decimal.Zero, nil
	}
	return predicted, nil
}

// PredictMultiDay runs one independent projection per horizon.
func (s *Service) PredictMultiDay(ctx context.Context, session domain.Session, horizons []int) (map[int]decimal.Decimal, error) {
	if len(horizons) == 0 {
		return nil, domain.NewError(domain.CodeInvalidFormat, "at least one forecast horizon is required")
	}
	out := make(map[int]decimal.Decimal, len(horizons))
	for _, days := range horizons {
		predicted, err := s.PredictBalance(ctx, session, days)
		if err != nil {
			return nil, err
		}
		out[days] = predicted
	}
	return out, nil
}

// AccountTrend buckets the card's own activity of the last `days` days into
// per-day inflow and outflow totals, oldest day first. Days without activity
// are included with zero totals.
func (s *Service) AccountTrend(ctx context.Context, session domain.Session, days int) ([]TrendPoint, error) {
	if days <= 0 {
		return nil, domain.NewError(domain.CodeInvalidFormat, "trend window must be at least one day")
	}
	if days > maxHorizonDays {
		return nil, domain.NewError(domain.CodeInvalidFormat, "trend window must not exceed ten years")
	}
	own, err := s.ownTransactions(ctx, session.CardNumber)
	if err != nil {
		return nil, err
	}

	type bucket struct{ inflow, outflow decimal.Decimal }
	buckets := make(map[string]*bucket, days)
	now := s.now()
	cutoff := now.AddDate(0, 0, -days)
	for i := range own {
		tx := &own[i]
		if tx.Timestamp.Before(cutoff) {
			continue
		}
		day := tx.Timestamp.Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &bucket{inflow: decimal.Zero, outflow: decimal.Zero}
			buckets[day] = b
		}
		flow := flowOf(tx)
		if flow.IsPositive() {
			b.inflow = b.inflow.Add(flow)
		} else {
			b.outflow = b.outflow.Add(flow.Neg())
		}
	}

	points := make([]TrendPoint, 0, days)
	for offset := days - 1; offset >= 0; offset-- {
		day := now.AddDate(0, 0, -offset).Format("2006-01-02")
		point := TrendPoint{Date: day, Inflow: decimal.Zero, Outflow: decimal.Zero}
		if b, ok := buckets[day]; ok {
			point.Inflow = b.inflow
			point.Outflow = b.outflow
		}
		points = append(points, point)
	}
	return points, nil
}

// TransactionFrequency reports how many transactions the account initiated in
// the last `days` days.
func (s *Service) TransactionFrequency(ctx context.Context, session domain.Session, days int) (int, error) {
	if days <= 0 {
		return 0, domain.NewError(domain.CodeInvalidFormat, "frequency window must be at least one day")
	}
	if days > maxHorizonDays {
		return 0, domain.NewError(domain.CodeInvalidFormat, "frequency window must not exceed ten years")
	}
	own, err := s.ownTransactions(ctx, session.CardNumber)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	count := 0
	for i := range own {
		if !own[i].Timestamp.Before(cutoff) {
			count++
		}
	}
	return count, nil
}
