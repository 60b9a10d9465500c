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
	"math"
	"sort"
)

// TopMovers ranks the snapshot's holdings by magnitude of daily P&L percent
// and returns the top n. The result is always derived fresh from the
// snapshot's holding-level detail; it is never stored.
func TopMovers(snap *DailySnapshot, n int) []HoldingDailyPnL {
	movers := make([]HoldingDailyPnL, 0, len(snap.Holdings))
	for _, hp := range snap.Holdings {
		mover := HoldingDailyPnL{
			Symbol: hp.Symbol,
			PnL:    hp.DailyPnL,
		}
		base := hp.Value - hp.DailyPnL
		if base != 0 {
			mover.Percent = hp.DailyPnL / base * 100
		}
		movers = append(movers, mover)
	}

	sort.SliceStable(movers, func(i, j int) bool {
		return math.Abs(movers[i].Percent) > math.Abs(movers[j].Percent)
	})

	if n > 0 && len(movers) > n {
		movers = movers[:n]
	}
	return movers
}
