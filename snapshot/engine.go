// Copyright 2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/folio-vault/folio-api/common"
	"github.com/folio-vault/folio-api/fx"
	"github.com/folio-vault/folio-api/observability/opentelemetry"
	"github.com/folio-vault/folio-api/quote"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrNoPortfolios        = errors.New("no portfolios supplied")
	ErrPriceUnavailable    = errors.New("no price available for symbol on date")
	ErrSnapshotNotFound    = errors.New("no snapshot exists for date and portfolio")
	ErrSerialize           = errors.New("could not serialize snapshot detail")
	ErrInvalidDateRange    = errors.New("start date occurs after end date")
	ErrMigrationInProgress = errors.New("backfill migration already recorded as complete")
)

// PriceSource supplies one market price per (symbol, date). The live quote
// map and the historical series cache both implement it.
type PriceSource interface {
	Price(symbol string, date time.Time) (float64, string, error)
}

// LivePrices adapts a unified-quote result map into a PriceSource for
// "today" snapshots.
type LivePrices map[string]*quote.QuoteRecord

func (l LivePrices) Price(symbol string, _ time.Time) (float64, string, error) {
	rec, ok := l[symbol]
	if !ok {
		return 0, "", fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	return rec.RegularMarketPrice, rec.Currency, nil
}

// SeriesPrices adapts per-symbol historical series into a PriceSource for
// backfill. A non-trading date resolves to the nearest available trading
// day at or before it.
type SeriesPrices map[string][]quote.PricePoint

func (s SeriesPrices) Price(symbol string, date time.Time) (float64, string, error) {
	points, ok := s[symbol]
	if !ok {
		return 0, "", fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	point, ok := quote.PricePointOnOrBefore(points, date)
	if !ok {
		return 0, "", fmt.Errorf("%w: %s has no bar on or before %s", ErrPriceUnavailable, symbol, date.Format("2006-01-02"))
	}
	return point.Close, point.Currency, nil
}

// Engine computes and persists DailySnapshot records. Construct one at
// process start and pass it to consumers.
type Engine struct {
	quotes *quote.Service
	rates  *fx.Service

	notify *notifier
}

// NewEngine creates a valuation engine backed by the given services.
func NewEngine(quotes *quote.Service, rates *fx.Service) *Engine {
	return &Engine{
		quotes: quotes,
		rates:  rates,
		notify: newNotifier(),
	}
}

// ComputeSnapshot computes the snapshot for one date over the supplied
// portfolios, valued in base currency. A single portfolio yields that
// portfolio's snapshot; multiple portfolios yield the all-accounts
// aggregate (PortfolioID uuid.Nil). prev is the prior day's snapshot for the
// same key, or nil at inception.
//
// Holdings with no price or no fresh exchange rate are excluded from the
// aggregate and recorded in Omitted; they never silently value at zero.
func (e *Engine) ComputeSnapshot(ctx context.Context, date time.Time, portfolios []*Portfolio, prices PriceSource, base string, prev *DailySnapshot) (*DailySnapshot, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.ComputeSnapshot")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{Key: "Date", Value: attribute.StringValue(date.Format("2006-01-02"))})

	if len(portfolios) == 0 {
		return nil, ErrNoPortfolios
	}

	snap := &DailySnapshot{
		Date:         common.MidnightInTz(date),
		PortfolioID:  uuid.Nil,
		BaseCurrency: base,
	}
	if len(portfolios) == 1 {
		snap.PortfolioID = portfolios[0].ID
	}

	prevPositions := make(map[string]*HoldingPosition)
	if prev != nil {
		for _, hp := range prev.Holdings {
			prevPositions[hp.Symbol] = hp
		}
	}

	// replay holdings through end of day D. Positions are merged per symbol
	// across portfolios so the aggregate carries one entry per symbol and the
	// prior-day diff below subtracts each previous position exactly once.
	endOfDay := snap.Date.AddDate(0, 0, 1).Add(-time.Nanosecond)
	byAsset := make(map[AssetType]*BreakdownItem)
	positions := make(map[string]*HoldingPosition)

	for _, p := range portfolios {
		for _, h := range p.Holdings {
			pos := positionAt(h.Transactions, endOfDay)
			if pos.Shares <= 0 {
				continue
			}

			price, currency, err := prices.Price(h.Symbol, endOfDay)
			if err != nil {
				log.Warn().Err(err).Str("Symbol", h.Symbol).Time("Date", date).Msg("holding excluded from snapshot: no price")
				snap.Omitted = append(snap.Omitted, h.Symbol)
				continue
			}

			value, ok := e.rates.Convert(pos.Shares*price, currency, base)
			if !ok {
				log.Warn().Str("Symbol", h.Symbol).Str("From", currency).Str("To", base).Msg("holding excluded from snapshot: no exchange rate")
				snap.Omitted = append(snap.Omitted, h.Symbol)
				continue
			}
			cost, ok := e.rates.Convert(pos.CostBasis, h.Currency, base)
			if !ok {
				log.Warn().Str("Symbol", h.Symbol).Str("From", h.Currency).Str("To", base).Msg("holding excluded from snapshot: no exchange rate for cost")
				snap.Omitted = append(snap.Omitted, h.Symbol)
				continue
			}

			detail, ok := positions[h.Symbol]
			if !ok {
				detail = &HoldingPosition{Symbol: h.Symbol, AssetType: h.AssetType}
				positions[h.Symbol] = detail
			}
			detail.Shares += pos.Shares
			detail.Value += value
			detail.Cost += cost

			bucket, ok := byAsset[h.AssetType]
			if !ok {
				bucket = &BreakdownItem{AssetType: h.AssetType, Currency: base}
				byAsset[h.AssetType] = bucket
			}
			bucket.Value += value
			bucket.Cost += cost
			bucket.PnL += value - cost

			snap.TotalValue += value
			snap.TotalCost += cost
		}
	}

	for _, detail := range positions {
		if prevPos, ok := prevPositions[detail.Symbol]; ok {
			detail.DailyPnL = (detail.Value - detail.Cost) - (prevPos.Value - prevPos.Cost)
		} else {
			detail.DailyPnL = detail.Value - detail.Cost
		}
		snap.Holdings = append(snap.Holdings, detail)
	}

	snap.Partial = len(snap.Omitted) > 0

	for _, bucket := range byAsset {
		snap.Breakdown = append(snap.Breakdown, bucket)
	}
	sort.Slice(snap.Breakdown, func(i, j int) bool {
		return snap.Breakdown[i].AssetType < snap.Breakdown[j].AssetType
	})
	sort.Slice(snap.Holdings, func(i, j int) bool {
		return snap.Holdings[i].Symbol < snap.Holdings[j].Symbol
	})

	// daily P&L is the change in unrealized P&L versus the prior day
	var prevValue, prevCost, prevCumulative float64
	if prev != nil {
		prevValue = prev.TotalValue
		prevCost = prev.TotalCost
		prevCumulative = prev.CumulativePnL
	}
	snap.DailyPnL = (snap.TotalValue - snap.TotalCost) - (prevValue - prevCost)
	if prevValue != 0 {
		snap.DailyPnLPercent = snap.DailyPnL / prevValue * 100
	}
	snap.CumulativePnL = prevCumulative + snap.DailyPnL
	if snap.TotalCost != 0 {
		snap.UnrealizedPnLPercent = (snap.TotalValue - snap.TotalCost) / snap.TotalCost * 100
	}

	return snap, nil
}

// ComputeAndUpsert recomputes the snapshot for date across the supplied
// portfolios using live quotes, persists it, and emits a snapshot-updated
// event. It is safe to call repeatedly, e.g. after every transaction edit:
// the upsert overwrites in place and never duplicates.
func (e *Engine) ComputeAndUpsert(ctx context.Context, date time.Time, portfolios []*Portfolio, base string) (*DailySnapshot, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.ComputeAndUpsert")
	defer span.End()

	if len(portfolios) == 0 {
		return nil, ErrNoPortfolios
	}

	symbols := collectSymbols(portfolios)
	quotes := e.quotes.FetchUnifiedQuotes(ctx, symbols)

	if err := e.rates.RefreshRates(ctx, collectCurrencies(portfolios), base); err != nil {
		// surfaced to the caller: a failed refresh is an environment issue,
		// not a single bad symbol
		return nil, err
	}

	key := uuid.Nil
	if len(portfolios) == 1 {
		key = portfolios[0].ID
	}
	prev, err := LoadLatestBefore(ctx, date, key)
	if err != nil && !errors.Is(err, ErrSnapshotNotFound) {
		return nil, err
	}

	snap, err := e.ComputeSnapshot(ctx, date, portfolios, LivePrices(quotes), base, prev)
	if err != nil {
		return nil, err
	}

	if err := UpsertSnapshot(ctx, snap); err != nil {
		return nil, err
	}

	e.notify.emit(SnapshotEvent{
		Date:        snap.Date,
		PortfolioID: snap.PortfolioID,
		TotalValue:  snap.TotalValue,
		Partial:     snap.Partial,
	})

	return snap, nil
}

// RecomputeAll recomputes date's snapshot for each portfolio individually
// and, when more than one exists, the all-accounts aggregate. It returns the
// aggregate snapshot (or the single portfolio's when there is only one).
func (e *Engine) RecomputeAll(ctx context.Context, date time.Time, portfolios []*Portfolio, base string) (*DailySnapshot, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.RecomputeAll")
	defer span.End()

	if len(portfolios) == 0 {
		return nil, ErrNoPortfolios
	}

	var last *DailySnapshot
	for _, p := range portfolios {
		snap, err := e.ComputeAndUpsert(ctx, date, []*Portfolio{p}, base)
		if err != nil {
			return nil, err
		}
		last = snap
	}

	if len(portfolios) > 1 {
		var err error
		last, err = e.ComputeAndUpsert(ctx, date, portfolios, base)
		if err != nil {
			return nil, err
		}
	}

	return last, nil
}

func collectSymbols(portfolios []*Portfolio) []string {
	seen := make(map[string]bool)
	symbols := make([]string, 0)
	for _, p := range portfolios {
		for _, h := range p.Holdings {
			if !seen[h.Symbol] {
				seen[h.Symbol] = true
				symbols = append(symbols, h.Symbol)
			}
		}
	}
	sort.Strings(symbols)
	return symbols
}

func collectCurrencies(portfolios []*Portfolio) []string {
	seen := make(map[string]bool)
	currencies := make([]string, 0)
	for _, p := range portfolios {
		for _, h := range p.Holdings {
			if !seen[h.Currency] {
				seen[h.Currency] = true
				currencies = append(currencies, h.Currency)
			}
		}
		if !seen[p.BaseCurrency] {
			seen[p.BaseCurrency] = true
			currencies = append(currencies, p.BaseCurrency)
		}
	}
	sort.Strings(currencies)
	return currencies
}
