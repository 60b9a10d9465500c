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

// Package quota tracks tax-advantaged contribution usage against tiered
// limits. It is pure computation over holding facts; no I/O.
package quota

import (
	"time"

	"github.com/folio-vault/folio-api/snapshot"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Limits holds the annual and lifetime contribution caps for one tranche.
// A zero cap means uncapped.
type Limits struct {
	Annual   decimal.Decimal
	Lifetime decimal.Decimal
}

// TrancheUsage carries both the raw contribution total and the capped
// display value. Raw is preserved so over-contribution stays detectable
// instead of being hidden by clamping.
type TrancheUsage struct {
	Tier        snapshot.AccountTier
	AnnualRaw   decimal.Decimal
	LifetimeRaw decimal.Decimal
	Limits      Limits
}

// QuotaUsage is the per-tranche usage map for a set of holdings. Derived on
// demand from transaction facts; never persisted.
type QuotaUsage struct {
	Year     int
	Tranches map[snapshot.AccountTier]*TrancheUsage
}

// TrancheLimits returns the configured caps for a tranche, falling back to
// compiled-in defaults.
func TrancheLimits(tier snapshot.AccountTier) Limits {
	switch tier {
	case snapshot.TierTrancheA:
		return Limits{
			Annual:   configuredCap("quota.tranche_a.annual", 1_200_000),
			Lifetime: configuredCap("quota.tranche_a.lifetime", 6_000_000),
		}
	case snapshot.TierTrancheB:
		return Limits{
			Annual:   configuredCap("quota.tranche_b.annual", 2_400_000),
			Lifetime: configuredCap("quota.tranche_b.lifetime", 12_000_000),
		}
	default:
		return Limits{}
	}
}

func configuredCap(key string, fallback int64) decimal.Decimal {
	if v := viper.GetFloat64(key); v != 0 {
		return decimal.NewFromFloat(v)
	}
	return decimal.NewFromInt(fallback)
}

// Calculate sums contribution usage for the given year across holdings.
// Only buy transactions count, at their transaction-time cost including
// fees, never at current market value.
func Calculate(holdings []*snapshot.Holding, year int) QuotaUsage {
	usage := QuotaUsage{
		Year:     year,
		Tranches: make(map[snapshot.AccountTier]*TrancheUsage),
	}

	for _, tier := range []snapshot.AccountTier{snapshot.TierTrancheA, snapshot.TierTrancheB} {
		usage.Tranches[tier] = &TrancheUsage{
			Tier:   tier,
			Limits: TrancheLimits(tier),
		}
	}

	for _, h := range holdings {
		tranche, ok := usage.Tranches[h.Tier]
		if !ok {
			// general accounts have no contribution caps
			continue
		}
		for _, trx := range h.Transactions {
			if trx.Kind != snapshot.BuyTransaction {
				continue
			}
			cost := decimal.NewFromFloat(trx.Shares).
				Mul(decimal.NewFromFloat(trx.PricePerShare)).
				Add(decimal.NewFromFloat(trx.Fee))
			tranche.LifetimeRaw = tranche.LifetimeRaw.Add(cost)
			if trx.Date.Year() == year {
				tranche.AnnualRaw = tranche.AnnualRaw.Add(cost)
			}
		}
	}

	return usage
}

// CalculateCurrentYear is Calculate for the present calendar year.
func CalculateCurrentYear(holdings []*snapshot.Holding) QuotaUsage {
	return Calculate(holdings, time.Now().Year())
}

// AnnualDisplayed returns the annual usage clamped at the tranche's annual
// cap, suitable for display.
func (u *TrancheUsage) AnnualDisplayed() decimal.Decimal {
	return clamp(u.AnnualRaw, u.Limits.Annual)
}

// LifetimeDisplayed returns the lifetime usage clamped at the tranche's
// lifetime cap.
func (u *TrancheUsage) LifetimeDisplayed() decimal.Decimal {
	return clamp(u.LifetimeRaw, u.Limits.Lifetime)
}

// OverContributed reports whether either raw total exceeds its cap.
func (u *TrancheUsage) OverContributed() bool {
	if !u.Limits.Annual.IsZero() && u.AnnualRaw.GreaterThan(u.Limits.Annual) {
		return true
	}
	if !u.Limits.Lifetime.IsZero() && u.LifetimeRaw.GreaterThan(u.Limits.Lifetime) {
		return true
	}
	return false
}

func clamp(raw, limit decimal.Decimal) decimal.Decimal {
	if limit.IsZero() || raw.LessThanOrEqual(limit) {
		return raw
	}
	return limit
}
