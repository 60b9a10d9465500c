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

package quota_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/folio-vault/folio-api/quota"
	"github.com/folio-vault/folio-api/snapshot"
)

func buy(year int, shares, price, fee float64) *snapshot.Transaction {
	return &snapshot.Transaction{
		Kind:          snapshot.BuyTransaction,
		Date:          time.Date(year, 3, 15, 0, 0, 0, 0, time.UTC),
		Shares:        shares,
		PricePerShare: price,
		Fee:           fee,
		Currency:      "USD",
	}
}

var _ = Describe("Quota", func() {
	AfterEach(func() {
		viper.Set("quota.tranche_a.annual", 0)
		viper.Set("quota.tranche_a.lifetime", 0)
	})

	Describe("TrancheLimits", func() {
		It("falls back to compiled-in caps", func() {
			limits := quota.TrancheLimits(snapshot.TierTrancheA)
			Expect(limits.Annual.Equal(decimal.NewFromInt(1_200_000))).To(BeTrue())
			Expect(limits.Lifetime.Equal(decimal.NewFromInt(6_000_000))).To(BeTrue())

			limits = quota.TrancheLimits(snapshot.TierTrancheB)
			Expect(limits.Annual.Equal(decimal.NewFromInt(2_400_000))).To(BeTrue())
			Expect(limits.Lifetime.Equal(decimal.NewFromInt(12_000_000))).To(BeTrue())
		})

		It("prefers configured caps", func() {
			viper.Set("quota.tranche_a.annual", 400_000.0)
			limits := quota.TrancheLimits(snapshot.TierTrancheA)
			Expect(limits.Annual.Equal(decimal.NewFromInt(400_000))).To(BeTrue())
			Expect(limits.Lifetime.Equal(decimal.NewFromInt(6_000_000))).To(BeTrue())
		})

		It("leaves general accounts uncapped", func() {
			limits := quota.TrancheLimits(snapshot.TierGeneral)
			Expect(limits.Annual.IsZero()).To(BeTrue())
			Expect(limits.Lifetime.IsZero()).To(BeTrue())
		})
	})

	Describe("Calculate", func() {
		It("sums buys at transaction-time cost including fees", func() {
			holdings := []*snapshot.Holding{
				{
					Symbol: "AAPL",
					Tier:   snapshot.TierTrancheA,
					Transactions: []*snapshot.Transaction{
						buy(2022, 10, 150.25, 4.95),
						buy(2022, 5, 148.10, 4.95),
					},
				},
			}

			usage := quota.Calculate(holdings, 2022)
			tranche := usage.Tranches[snapshot.TierTrancheA]
			// 10*150.25 + 4.95 + 5*148.10 + 4.95
			want := decimal.NewFromFloat(2252.90)
			Expect(tranche.AnnualRaw.Equal(want)).To(BeTrue())
			Expect(tranche.LifetimeRaw.Equal(want)).To(BeTrue())
			Expect(tranche.OverContributed()).To(BeFalse())
		})

		It("counts only the requested year toward the annual total", func() {
			holdings := []*snapshot.Holding{
				{
					Symbol: "VTI",
					Tier:   snapshot.TierTrancheA,
					Transactions: []*snapshot.Transaction{
						buy(2021, 10, 100, 0),
						buy(2022, 10, 100, 0),
					},
				},
			}

			usage := quota.Calculate(holdings, 2022)
			tranche := usage.Tranches[snapshot.TierTrancheA]
			Expect(tranche.AnnualRaw.Equal(decimal.NewFromInt(1000))).To(BeTrue())
			Expect(tranche.LifetimeRaw.Equal(decimal.NewFromInt(2000))).To(BeTrue())
		})

		It("ignores sells and general-tier holdings", func() {
			sell := buy(2022, 5, 100, 0)
			sell.Kind = snapshot.SellTransaction
			holdings := []*snapshot.Holding{
				{
					Symbol:       "VTI",
					Tier:         snapshot.TierTrancheA,
					Transactions: []*snapshot.Transaction{buy(2022, 10, 100, 0), sell},
				},
				{
					Symbol:       "MSFT",
					Tier:         snapshot.TierGeneral,
					Transactions: []*snapshot.Transaction{buy(2022, 10, 300, 0)},
				},
			}

			usage := quota.Calculate(holdings, 2022)
			Expect(usage.Tranches).To(HaveLen(2))
			Expect(usage.Tranches).NotTo(HaveKey(snapshot.TierGeneral))
			tranche := usage.Tranches[snapshot.TierTrancheA]
			Expect(tranche.AnnualRaw.Equal(decimal.NewFromInt(1000))).To(BeTrue())
		})

		It("keeps tranches separate", func() {
			holdings := []*snapshot.Holding{
				{Tier: snapshot.TierTrancheA, Transactions: []*snapshot.Transaction{buy(2022, 10, 100, 0)}},
				{Tier: snapshot.TierTrancheB, Transactions: []*snapshot.Transaction{buy(2022, 20, 100, 0)}},
			}

			usage := quota.Calculate(holdings, 2022)
			Expect(usage.Tranches[snapshot.TierTrancheA].AnnualRaw.Equal(decimal.NewFromInt(1000))).To(BeTrue())
			Expect(usage.Tranches[snapshot.TierTrancheB].AnnualRaw.Equal(decimal.NewFromInt(2000))).To(BeTrue())
		})
	})

	Describe("over-contribution", func() {
		It("clamps the displayed value but preserves the raw total", func() {
			holdings := []*snapshot.Holding{
				{
					Tier:         snapshot.TierTrancheA,
					Transactions: []*snapshot.Transaction{buy(2022, 1000, 1500, 0)},
				},
			}

			usage := quota.Calculate(holdings, 2022)
			tranche := usage.Tranches[snapshot.TierTrancheA]
			Expect(tranche.AnnualRaw.Equal(decimal.NewFromInt(1_500_000))).To(BeTrue())
			Expect(tranche.AnnualDisplayed().Equal(decimal.NewFromInt(1_200_000))).To(BeTrue())
			Expect(tranche.LifetimeDisplayed().Equal(decimal.NewFromInt(1_500_000))).To(BeTrue())
			Expect(tranche.OverContributed()).To(BeTrue())
		})

		It("reports lifetime breaches even when the year is within its cap", func() {
			holdings := []*snapshot.Holding{
				{
					Tier: snapshot.TierTrancheA,
					Transactions: []*snapshot.Transaction{
						buy(2019, 1000, 1100, 0),
						buy(2020, 1000, 1100, 0),
						buy(2021, 1000, 1100, 0),
						buy(2022, 1000, 1100, 0),
						buy(2023, 1000, 1100, 0),
						buy(2024, 1000, 1100, 0),
					},
				},
			}

			usage := quota.Calculate(holdings, 2024)
			tranche := usage.Tranches[snapshot.TierTrancheA]
			Expect(tranche.AnnualRaw.Equal(decimal.NewFromInt(1_100_000))).To(BeTrue())
			Expect(tranche.LifetimeRaw.Equal(decimal.NewFromInt(6_600_000))).To(BeTrue())
			Expect(tranche.LifetimeDisplayed().Equal(decimal.NewFromInt(6_000_000))).To(BeTrue())
			Expect(tranche.OverContributed()).To(BeTrue())
		})
	})
})
