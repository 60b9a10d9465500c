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
	"time"

	"github.com/folio-vault/folio-api/common"
	"github.com/folio-vault/folio-api/database"
	"github.com/folio-vault/folio-api/observability/opentelemetry"
	"github.com/folio-vault/folio-api/quote"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// BackfillMigrationName is the one-shot flag recorded once the historical
// backfill has run to completion; startup races re-invoking the backfill
// find the flag and return immediately.
const BackfillMigrationName = "snapshot_backfill_v1"

// Backfill populates missing daily snapshots over [begin, end], oldest to
// newest. Each day's cumulative P&L depends on the prior day's totals, so
// the day loop is a hard sequential dependency. Historical series are
// fetched once per symbol, not once per day.
//
// The operation is cancellable and resumable: a cancelled run leaves
// previously upserted days intact, and a re-run skips days that already have
// a snapshot.
func (e *Engine) Backfill(ctx context.Context, portfolios []*Portfolio, begin, end time.Time, base string) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "snapshot.Backfill")
	defer span.End()

	subLog := log.With().Time("Begin", begin).Time("End", end).Logger()

	if len(portfolios) == 0 {
		return ErrNoPortfolios
	}
	if begin.After(end) {
		return ErrInvalidDateRange
	}

	done, err := database.MigrationComplete(ctx, BackfillMigrationName)
	if err != nil {
		return err
	}
	if done {
		subLog.Info().Msg("backfill already complete; skipping")
		return ErrMigrationInProgress
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// one series fetch per symbol for the whole run; re-fetching per
	// (symbol, day) would multiply upstream calls by the day count and risk
	// rate limiting
	series, err := e.fetchAllSeries(ctx, portfolios, begin)
	if err != nil {
		return err
	}

	if err := e.rates.RefreshRates(ctx, collectCurrencies(portfolios), base); err != nil {
		return err
	}

	begin = common.MidnightInTz(begin)
	end = common.MidnightInTz(end)

	// chain each portfolio key off its own prior snapshot
	keys := make([]uuid.UUID, 0, len(portfolios)+1)
	grouping := make(map[uuid.UUID][]*Portfolio)
	for _, p := range portfolios {
		keys = append(keys, p.ID)
		grouping[p.ID] = []*Portfolio{p}
	}
	if len(portfolios) > 1 {
		keys = append(keys, uuid.Nil)
		grouping[uuid.Nil] = portfolios
	}

	prev := make(map[uuid.UUID]*DailySnapshot, len(keys))
	for _, key := range keys {
		p, err := LoadLatestBefore(ctx, begin, key)
		if err != nil && !errors.Is(err, ErrSnapshotNotFound) {
			return err
		}
		prev[key] = p
	}

	numDays := 0
	for day := begin; !day.After(end); day = day.AddDate(0, 0, 1) {
		// cancellation lands on a clean day boundary so no partial-day
		// corruption is possible
		select {
		case <-ctx.Done():
			subLog.Info().Time("StoppedAt", day).Int("DaysWritten", numDays).Msg("backfill cancelled")
			return ctx.Err()
		default:
		}

		for _, key := range keys {
			exists, err := HasSnapshot(ctx, day, key)
			if err != nil {
				return err
			}
			if exists {
				// already populated by an earlier run; reload so the next
				// day chains off the right totals
				existing, err := LoadSnapshot(ctx, day, key)
				if err != nil {
					return err
				}
				prev[key] = existing
				continue
			}

			snap, err := e.ComputeSnapshot(ctx, day, grouping[key], series, base, prev[key])
			if err != nil {
				return err
			}
			if err := UpsertSnapshot(ctx, snap); err != nil {
				return err
			}
			prev[key] = snap
		}
		numDays++
	}

	if err := database.MarkMigrationComplete(ctx, BackfillMigrationName); err != nil {
		return err
	}

	subLog.Info().Int("DaysWritten", numDays).Msg("backfill complete")
	return nil
}

func (e *Engine) fetchAllSeries(ctx context.Context, portfolios []*Portfolio, begin time.Time) (SeriesPrices, error) {
	rng := rangeCovering(begin)
	series := make(SeriesPrices)
	for _, symbol := range collectSymbols(portfolios) {
		points, err := e.quotes.FetchHistoricalSeries(ctx, symbol, quote.IntervalDaily, rng)
		if err != nil {
			if errors.Is(err, quote.ErrNoData) {
				log.Warn().Str("Symbol", symbol).Msg("no historical series for symbol; its days will be flagged partial")
				continue
			}
			return nil, err
		}
		series[symbol] = points
	}
	return series, nil
}

// rangeCovering picks the smallest supported lookback that reaches begin.
func rangeCovering(begin time.Time) quote.Range {
	age := time.Since(begin)
	switch {
	case age <= 28*24*time.Hour:
		return quote.RangeOneMonth
	case age <= 175*24*time.Hour:
		return quote.RangeSixMonths
	case age <= 360*24*time.Hour:
		return quote.RangeOneYear
	case age <= 5*360*24*time.Hour:
		return quote.RangeFiveYears
	case age <= 10*360*24*time.Hour:
		return quote.RangeTenYears
	default:
		return quote.RangeMax
	}
}
