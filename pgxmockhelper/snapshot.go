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

// Package pgxmockhelper holds shared expectations for snapshot persistence
// tests so each suite doesn't restate the SQL surface.
package pgxmockhelper

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/pashagolub/pgxmock"
)

var snapshotColumns = []string{
	"event_date", "portfolio_id", "base_currency", "total_value", "total_cost",
	"daily_pnl", "daily_pnl_percent", "cumulative_pnl", "unrealized_pnl_percent",
	"breakdown", "holdings", "omitted", "partial",
}

// ExpectSnapshotUpsert expects the full upsert transaction: begin, the
// ON CONFLICT insert, commit.
func ExpectSnapshotUpsert(db pgxmock.PgxConnIface) {
	db.ExpectBegin()
	db.ExpectExec("INSERT INTO portfolio_snapshots").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	db.ExpectCommit()
}

// SnapshotRow builds a single result row in the snapshot column order.
// breakdown and holdings are raw jsonb payloads.
func SnapshotRow(date time.Time, portfolioID uuid.UUID, baseCurrency string,
	totalValue, totalCost, dailyPnL, dailyPnLPercent, cumulativePnL, unrealizedPercent float64,
	breakdown, holdings []byte, omitted []string, partial bool) *pgxmock.Rows {
	return pgxmock.NewRows(snapshotColumns).AddRow(
		date, portfolioID, baseCurrency, totalValue, totalCost,
		dailyPnL, dailyPnLPercent, cumulativePnL, unrealizedPercent,
		breakdown, holdings, omitted, partial,
	)
}

// ExpectSnapshotQuery expects a snapshot select returning the given rows.
func ExpectSnapshotQuery(db pgxmock.PgxConnIface, rows *pgxmock.Rows) {
	db.ExpectQuery("SELECT (.+) FROM portfolio_snapshots").WillReturnRows(rows)
}

// ExpectNoSnapshot expects a snapshot select that finds nothing.
func ExpectNoSnapshot(db pgxmock.PgxConnIface) {
	db.ExpectQuery("SELECT (.+) FROM portfolio_snapshots").WillReturnError(pgx.ErrNoRows)
}

// ExpectHasSnapshot expects the existence count query.
func ExpectHasSnapshot(db pgxmock.PgxConnIface, cnt int) {
	db.ExpectQuery("SELECT count(.+) FROM portfolio_snapshots").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(cnt))
}

// ExpectMigrationCheck expects the migrations-table guard query.
func ExpectMigrationCheck(db pgxmock.PgxConnIface, complete bool) {
	cnt := 0
	if complete {
		cnt = 1
	}
	db.ExpectQuery("SELECT count(.+) FROM migrations").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(cnt))
}

// ExpectMarkMigration expects the migration completion insert.
func ExpectMarkMigration(db pgxmock.PgxConnIface) {
	db.ExpectExec("INSERT INTO migrations").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}
