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

	"github.com/folio-vault/folio-api/database"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
)

// UpsertSnapshot persists snap, overwriting all fields in place when a row
// already exists for (date, portfolio). This is what makes "recompute today"
// callable repeatedly without duplicates or drifting cumulative totals.
func UpsertSnapshot(ctx context.Context, snap *DailySnapshot) error {
	subLog := log.With().Time("Date", snap.Date).Str("PortfolioID", snap.PortfolioID.String()).Logger()

	breakdown, err := json.Marshal(snap.Breakdown)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not serialize breakdown")
		return ErrSerialize
	}
	holdings, err := json.Marshal(snap.Holdings)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not serialize holdings")
		return ErrSerialize
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		return err
	}

	sql := `INSERT INTO portfolio_snapshots (
		event_date,
		portfolio_id,
		base_currency,
		total_value,
		total_cost,
		daily_pnl,
		daily_pnl_percent,
		cumulative_pnl,
		unrealized_pnl_percent,
		breakdown,
		holdings,
		omitted,
		partial
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
	) ON CONFLICT ON CONSTRAINT portfolio_snapshots_pkey
	DO UPDATE SET
		base_currency = EXCLUDED.base_currency,
		total_value = EXCLUDED.total_value,
		total_cost = EXCLUDED.total_cost,
		daily_pnl = EXCLUDED.daily_pnl,
		daily_pnl_percent = EXCLUDED.daily_pnl_percent,
		cumulative_pnl = EXCLUDED.cumulative_pnl,
		unrealized_pnl_percent = EXCLUDED.unrealized_pnl_percent,
		breakdown = EXCLUDED.breakdown,
		holdings = EXCLUDED.holdings,
		omitted = EXCLUDED.omitted,
		partial = EXCLUDED.partial`

	_, err = trx.Exec(ctx, sql,
		snap.Date,                 // 1
		snap.PortfolioID,          // 2
		snap.BaseCurrency,         // 3
		snap.TotalValue,           // 4
		snap.TotalCost,            // 5
		snap.DailyPnL,             // 6
		snap.DailyPnLPercent,      // 7
		snap.CumulativePnL,        // 8
		snap.UnrealizedPnLPercent, // 9
		breakdown,                 // 10
		holdings,                  // 11
		snap.Omitted,              // 12
		snap.Partial,              // 13
	)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not upsert snapshot")
		if rollbackErr := trx.Rollback(ctx); rollbackErr != nil {
			subLog.Error().Stack().Err(rollbackErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit snapshot upsert")
		return err
	}

	return nil
}

const snapshotColumns = `event_date, portfolio_id, base_currency, total_value, total_cost,
	daily_pnl, daily_pnl_percent, cumulative_pnl, unrealized_pnl_percent,
	breakdown, holdings, omitted, partial`

// LoadSnapshot fetches the snapshot for an exact (date, portfolio) key.
func LoadSnapshot(ctx context.Context, date time.Time, portfolioID uuid.UUID) (*DailySnapshot, error) {
	sql := `SELECT ` + snapshotColumns + ` FROM portfolio_snapshots WHERE event_date=$1 AND portfolio_id=$2`
	row := database.GetPool().QueryRow(ctx, sql, date, portfolioID)
	return scanSnapshot(row)
}

// LoadLatestBefore fetches the most recent snapshot strictly before date for
// the given key, for chaining daily P&L across days.
func LoadLatestBefore(ctx context.Context, date time.Time, portfolioID uuid.UUID) (*DailySnapshot, error) {
	sql := `SELECT ` + snapshotColumns + ` FROM portfolio_snapshots
		WHERE event_date < $1 AND portfolio_id=$2
		ORDER BY event_date DESC LIMIT 1`
	row := database.GetPool().QueryRow(ctx, sql, date, portfolioID)
	return scanSnapshot(row)
}

// HasSnapshot reports whether a snapshot already exists for the key; the
// backfill uses it to skip already-populated days.
func HasSnapshot(ctx context.Context, date time.Time, portfolioID uuid.UUID) (bool, error) {
	var cnt int
	sql := `SELECT count(*) FROM portfolio_snapshots WHERE event_date=$1 AND portfolio_id=$2`
	err := database.GetPool().QueryRow(ctx, sql, date, portfolioID).Scan(&cnt)
	if err != nil {
		log.Error().Stack().Err(err).Time("Date", date).Msg("could not check for existing snapshot")
		return false, err
	}
	return cnt > 0, nil
}

func scanSnapshot(row pgx.Row) (*DailySnapshot, error) {
	snap := &DailySnapshot{}
	var breakdown, holdings pgtype.JSONB
	err := row.Scan(
		&snap.Date,
		&snap.PortfolioID,
		&snap.BaseCurrency,
		&snap.TotalValue,
		&snap.TotalCost,
		&snap.DailyPnL,
		&snap.DailyPnLPercent,
		&snap.CumulativePnL,
		&snap.UnrealizedPnLPercent,
		&breakdown,
		&holdings,
		&snap.Omitted,
		&snap.Partial,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		log.Error().Stack().Err(err).Msg("could not scan snapshot row")
		return nil, err
	}

	if breakdown.Status == pgtype.Present {
		if err := json.Unmarshal(breakdown.Bytes, &snap.Breakdown); err != nil {
			log.Error().Stack().Err(err).Msg("could not deserialize breakdown")
			return nil, ErrSerialize
		}
	}
	if holdings.Status == pgtype.Present {
		if err := json.Unmarshal(holdings.Bytes, &snap.Holdings); err != nil {
			log.Error().Stack().Err(err).Msg("could not deserialize holdings")
			return nil, ErrSerialize
		}
	}
	snap.Partial = len(snap.Omitted) > 0

	return snap, nil
}
