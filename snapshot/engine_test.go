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

package snapshot_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/folio-vault/folio-api/fx"
	"github.com/folio-vault/folio-api/quote"
	"github.com/folio-vault/folio-api/snapshot"
)

var _ = Describe("ComputeSnapshot", func() {
	var (
		ctx       context.Context
		engine    *snapshot.Engine
		portfolio *snapshot.Portfolio
		series    snapshot.SeriesPrices
		day1      time.Time
		day2      time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		engine = snapshot.NewEngine(quote.NewService(), fx.NewService())

		day1 = time.Date(2022, 1, 3, 12, 0, 0, 0, time.UTC)
		day2 = time.Date(2022, 1, 4, 12, 0, 0, 0, time.UTC)

		portfolio = &snapshot.Portfolio{
			ID:           uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			Name:         "Brokerage",
			BaseCurrency: "USD",
			Tier:         snapshot.TierGeneral,
			Holdings: []*snapshot.Holding{
				{
					Symbol:    "AAPL",
					Name:      "Apple Inc.",
					Market:    quote.MarketUS,
					AssetType: snapshot.AssetStock,
					Currency:  "USD",
					Transactions: []*snapshot.Transaction{
						{
							ID:            uuid.New(),
							Kind:          snapshot.BuyTransaction,
							Date:          time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC),
							Shares:        10,
							PricePerShare: 100,
							Currency:      "USD",
						},
					},
				},
			},
		}

		series = snapshot.SeriesPrices{
			"AAPL": {
				{Date: day1.Add(2 * time.Hour), Close: 100, Currency: "USD"},
				{Date: day2.Add(2 * time.Hour), Close: 110, Currency: "USD"},
			},
		}
	})

	Describe("a single buy valued over two days", func() {
		It("has flat P&L on the purchase day", func() {
			snap, err := engine.ComputeSnapshot(ctx, day1, []*snapshot.Portfolio{portfolio}, series, "USD", nil)
			Expect(err).To(BeNil())

			Expect(snap.PortfolioID).To(Equal(portfolio.ID))
			Expect(snap.TotalValue).Should(BeNumerically("~", 1000.0, 1e-9))
			Expect(snap.TotalCost).Should(BeNumerically("~", 1000.0, 1e-9))
			Expect(snap.DailyPnL).Should(BeNumerically("~", 0.0, 1e-9))
			Expect(snap.CumulativePnL).Should(BeNumerically("~", 0.0, 1e-9))
			Expect(snap.Partial).To(BeFalse())
		})

		It("books the price move as the next day's P&L", func() {
			prev, err := engine.ComputeSnapshot(ctx, day1, []*snapshot.Portfolio{portfolio}, series, "USD", nil)
			Expect(err).To(BeNil())

			snap, err := engine.ComputeSnapshot(ctx, day2, []*snapshot.Portfolio{portfolio}, series, "USD", prev)
			Expect(err).To(BeNil())

			Expect(snap.TotalValue).Should(BeNumerically("~", 1100.0, 1e-9))
			Expect(snap.TotalCost).Should(BeNumerically("~", 1000.0, 1e-9))
			Expect(snap.DailyPnL).Should(BeNumerically("~", 100.0, 1e-9))
			Expect(snap.DailyPnLPercent).Should(BeNumerically("~", 10.0, 1e-9))
			Expect(snap.CumulativePnL).Should(BeNumerically("~", 100.0, 1e-9))
			Expect(snap.UnrealizedPnLPercent).Should(BeNumerically("~", 10.0, 1e-9))
		})

		It("recomputes to identical totals given identical inputs", func() {
			first, err := engine.ComputeSnapshot(ctx, day2, []*snapshot.Portfolio{portfolio}, series, "USD", nil)
			Expect(err).To(BeNil())
			second, err := engine.ComputeSnapshot(ctx, day2, []*snapshot.Portfolio{portfolio}, series, "USD", nil)
			Expect(err).To(BeNil())

			Expect(second.TotalValue).To(Equal(first.TotalValue))
			Expect(second.TotalCost).To(Equal(first.TotalCost))
			Expect(second.DailyPnL).To(Equal(first.DailyPnL))
			Expect(second.CumulativePnL).To(Equal(first.CumulativePnL))
		})
	})

	Describe("transaction replay", func() {
		BeforeEach(func() {
			portfolio.Holdings[0].Transactions = append(portfolio.Holdings[0].Transactions,
				&snapshot.Transaction{
					ID:            uuid.New(),
					Kind:          snapshot.SellTransaction,
					Date:          time.Date(2022, 1, 4, 12, 0, 0, 0, time.UTC),
					Shares:        4,
					PricePerShare: 108,
					Fee:           1,
					Currency:      "USD",
				})
		})

		It("reduces the position at average cost", func() {
			snap, err := engine.ComputeSnapshot(ctx, day2, []*snapshot.Portfolio{portfolio}, series, "USD", nil)
			Expect(err).To(BeNil())

			Expect(snap.Holdings).To(HaveLen(1))
			Expect(snap.Holdings[0].Shares).Should(BeNumerically("~", 6.0, 1e-9))
			Expect(snap.TotalValue).Should(BeNumerically("~", 660.0, 1e-9))
			Expect(snap.TotalCost).Should(BeNumerically("~", 600.0, 1e-9))
		})

		It("ignores transactions dated after the snapshot day", func() {
			snap, err := engine.ComputeSnapshot(ctx, day1, []*snapshot.Portfolio{portfolio}, series, "USD", nil)
			Expect(err).To(BeNil())
			Expect(snap.Holdings[0].Shares).Should(BeNumerically("~", 10.0, 1e-9))
		})

		It("drops a holding entirely sold out", func() {
			portfolio.Holdings[0].Transactions[1].Shares = 100 // oversell clamps to held shares
			snap, err := engine.ComputeSnapshot(ctx, day2, []*snapshot.Portfolio{portfolio}, series, "USD", nil)
			Expect(err).To(BeNil())
			Expect(snap.Holdings).To(BeEmpty())
			Expect(snap.TotalValue).Should(BeNumerically("~", 0.0, 1e-9))
		})
	})

	Describe("partial snapshots", func() {
		BeforeEach(func() {
			portfolio.Holdings = append(portfolio.Holdings, &snapshot.Holding{
				Symbol:    "NOPRICE",
				AssetType: snapshot.AssetStock,
				Currency:  "USD",
				Transactions: []*snapshot.Transaction{
					{
						ID:            uuid.New(),
						Kind:          snapshot.BuyTransaction,
						Date:          time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC),
						Shares:        5,
						PricePerShare: 50,
						Currency:      "USD",
					},
				},
			})
		})

		It("excludes holdings without a price instead of zeroing them", func() {
			snap, err := engine.ComputeSnapshot(ctx, day1, []*snapshot.Portfolio{portfolio}, series, "USD", nil)
			Expect(err).To(BeNil())

			Expect(snap.Partial).To(BeTrue())
			Expect(snap.Omitted).To(ConsistOf("NOPRICE"))
			// the valued holding is unchanged; the missing one contributes nothing
			Expect(snap.TotalValue).Should(BeNumerically("~", 1000.0, 1e-9))
		})

		It("excludes holdings without an exchange rate", func() {
			portfolio.Holdings[1].Currency = "JPY"
			series["NOPRICE"] = []quote.PricePoint{
				{Date: day1.Add(2 * time.Hour), Close: 5000, Currency: "JPY"},
			}

			snap, err := engine.ComputeSnapshot(ctx, day1, []*snapshot.Portfolio{portfolio}, series, "USD", nil)
			Expect(err).To(BeNil())
			Expect(snap.Partial).To(BeTrue())
			Expect(snap.Omitted).To(ConsistOf("NOPRICE"))
		})
	})

	Describe("multi-portfolio aggregation", func() {
		var second *snapshot.Portfolio

		BeforeEach(func() {
			second = &snapshot.Portfolio{
				ID:           uuid.MustParse("22222222-2222-2222-2222-222222222222"),
				Name:         "Retirement",
				BaseCurrency: "USD",
				Tier:         snapshot.TierTrancheA,
				Holdings: []*snapshot.Holding{
					{
						Symbol:    "BND",
						AssetType: snapshot.AssetBond,
						Currency:  "USD",
						Transactions: []*snapshot.Transaction{
							{
								ID:            uuid.New(),
								Kind:          snapshot.BuyTransaction,
								Date:          time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC),
								Shares:        20,
								PricePerShare: 75,
								Fee:           2,
								Currency:      "USD",
							},
						},
					},
				},
			}
			series["BND"] = []quote.PricePoint{
				{Date: day1.Add(2 * time.Hour), Close: 76, Currency: "USD"},
			}
		})

		It("keys the aggregate on the nil UUID", func() {
			snap, err := engine.ComputeSnapshot(ctx, day1, []*snapshot.Portfolio{portfolio, second}, series, "USD", nil)
			Expect(err).To(BeNil())
			Expect(snap.PortfolioID).To(Equal(uuid.Nil))
		})

		It("merges a symbol held in two portfolios into one position", func() {
			second.Holdings = append(second.Holdings, &snapshot.Holding{
				Symbol:    "AAPL",
				AssetType: snapshot.AssetStock,
				Currency:  "USD",
				Transactions: []*snapshot.Transaction{
					{
						ID:            uuid.New(),
						Kind:          snapshot.BuyTransaction,
						Date:          time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC),
						Shares:        5,
						PricePerShare: 100,
						Currency:      "USD",
					},
				},
			})

			prev, err := engine.ComputeSnapshot(ctx, day1, []*snapshot.Portfolio{portfolio, second}, series, "USD", nil)
			Expect(err).To(BeNil())

			// sorted by symbol: AAPL then BND, with AAPL appearing once
			Expect(prev.Holdings).To(HaveLen(2))
			Expect(prev.Holdings[0].Symbol).To(Equal("AAPL"))
			Expect(prev.Holdings[0].Shares).Should(BeNumerically("~", 15.0, 1e-9))
			Expect(prev.Holdings[0].Value).Should(BeNumerically("~", 1500.0, 1e-9))

			snap, err := engine.ComputeSnapshot(ctx, day2, []*snapshot.Portfolio{portfolio, second}, series, "USD", prev)
			Expect(err).To(BeNil())

			Expect(snap.Holdings).To(HaveLen(2))
			Expect(snap.Holdings[0].Symbol).To(Equal("AAPL"))
			Expect(snap.Holdings[0].Shares).Should(BeNumerically("~", 15.0, 1e-9))
			// the full 15-share move books once, not once per portfolio
			Expect(snap.Holdings[0].DailyPnL).Should(BeNumerically("~", 150.0, 1e-9))
		})

		It("sums breakdown buckets to the aggregate total", func() {
			snap, err := engine.ComputeSnapshot(ctx, day1, []*snapshot.Portfolio{portfolio, second}, series, "USD", nil)
			Expect(err).To(BeNil())

			Expect(snap.Breakdown).To(HaveLen(2))
			var sum float64
			for _, item := range snap.Breakdown {
				sum += item.Value
			}
			Expect(sum).Should(BeNumerically("~", snap.TotalValue, 0.01))
			Expect(snap.TotalValue).Should(BeNumerically("~", 1000.0+20*76, 1e-9))
			Expect(snap.TotalCost).Should(BeNumerically("~", 1000.0+20*75+2, 1e-9))
		})
	})
})

var _ = Describe("TopMovers", func() {
	It("ranks holdings by magnitude of daily move", func() {
		snap := &snapshot.DailySnapshot{
			Holdings: []*snapshot.HoldingPosition{
				{Symbol: "FLAT", Value: 1000, DailyPnL: 1},
				{Symbol: "UP", Value: 1100, DailyPnL: 100},
				{Symbol: "DOWN", Value: 900, DailyPnL: -120},
			},
		}

		movers := snapshot.TopMovers(snap, 2)
		Expect(movers).To(HaveLen(2))
		Expect(movers[0].Symbol).To(Equal("DOWN"))
		Expect(movers[0].Percent).Should(BeNumerically("~", -120.0/1020*100, 1e-9))
		Expect(movers[1].Symbol).To(Equal("UP"))
		Expect(movers[1].Percent).Should(BeNumerically("~", 10.0, 1e-9))
	})

	It("returns everything when n exceeds the holding count", func() {
		snap := &snapshot.DailySnapshot{
			Holdings: []*snapshot.HoldingPosition{{Symbol: "ONLY", Value: 100, DailyPnL: 5}},
		}
		Expect(snapshot.TopMovers(snap, 10)).To(HaveLen(1))
	})
})
