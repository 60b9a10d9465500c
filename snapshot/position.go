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
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// position is the replayed state of one holding as of a date, in the
// holding's trading currency.
type position struct {
	Shares    float64
	CostBasis float64
	Realized  float64
}

// positionAt replays all transactions dated at or before asOf. Buys increase
// shares and cost basis (fees included); sells reduce shares at average cost
// and realize P&L; dividends add to realized income without changing shares.
func positionAt(transactions []*Transaction, asOf time.Time) position {
	sorted := make([]*Transaction, len(transactions))
	copy(sorted, transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var pos position
	for _, trx := range sorted {
		if trx.Date.After(asOf) {
			break
		}

		switch trx.Kind {
		case BuyTransaction:
			pos.Shares += trx.Shares
			pos.CostBasis += trx.Shares*trx.PricePerShare + trx.Fee
		case SellTransaction:
			if pos.Shares <= 0 {
				log.Warn().Str("TransactionID", trx.ID.String()).Time("TransactionDate", trx.Date).Msg("sell transaction against empty position; skipping")
				continue
			}
			shares := trx.Shares
			if shares > pos.Shares {
				log.Warn().Str("TransactionID", trx.ID.String()).Float64("Shares", shares).Float64("Held", pos.Shares).Msg("sell exceeds position; clamping")
				shares = pos.Shares
			}
			avgCost := pos.CostBasis / pos.Shares
			pos.Realized += shares*(trx.PricePerShare-avgCost) - trx.Fee
			pos.CostBasis -= shares * avgCost
			pos.Shares -= shares
		case DividendTransaction:
			pos.Realized += trx.Shares*trx.PricePerShare - trx.Fee
		default:
			log.Warn().Str("TransactionKind", trx.Kind).Str("TransactionID", trx.ID.String()).Msg("unknown transaction kind; skipping")
		}
	}

	return pos
}
