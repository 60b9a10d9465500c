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

// Package snapshot replays transaction history against market prices and
// exchange rates to compute and persist immutable daily valuation records.
package snapshot

import (
	"time"

	"github.com/folio-vault/folio-api/quote"
	"github.com/google/uuid"
)

const (
	BuyTransaction      = "BUY"
	SellTransaction     = "SELL"
	DividendTransaction = "DIVIDEND"
)

// AccountTier identifies the tax treatment of an account.
type AccountTier string

const (
	TierGeneral  AccountTier = "GENERAL"
	TierTrancheA AccountTier = "TRANCHE_A"
	TierTrancheB AccountTier = "TRANCHE_B"
)

// AssetType buckets holdings for the snapshot breakdown.
type AssetType string

const (
	AssetStock AssetType = "STOCK"
	AssetETF   AssetType = "ETF"
	AssetFund  AssetType = "FUND"
	AssetBond  AssetType = "BOND"
)

// Transaction is an externally supplied, already-persisted fact. The engine
// treats it as read-only for a given computation.
type Transaction struct {
	ID            uuid.UUID `json:"id"`
	Kind          string    `json:"kind"`
	Date          time.Time `json:"date"`
	Shares        float64   `json:"shares"`
	PricePerShare float64   `json:"pricePerShare"`
	Fee           float64   `json:"fee"`
	Currency      string    `json:"currency"`
	Note          string    `json:"note,omitempty"`

	// SourceID is a deterministic hash of the transaction's identifying
	// fields, used to dedupe re-imports.
	SourceID []byte `json:"sourceID,omitempty"`
}

// Holding is an externally supplied fact: one instrument held in one
// account, with its full transaction history.
type Holding struct {
	Symbol       string         `json:"symbol"`
	Name         string         `json:"name"`
	Market       quote.Market   `json:"market"`
	AssetType    AssetType      `json:"assetType"`
	Currency     string         `json:"currency"`
	Tier         AccountTier    `json:"tier"`
	Transactions []*Transaction `json:"transactions"`
}

// Portfolio is an externally supplied fact.
type Portfolio struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	BaseCurrency string      `json:"baseCurrency"`
	Tier         AccountTier `json:"tier"`
	SortOrder    int         `json:"sortOrder"`
	Holdings     []*Holding  `json:"holdings"`
}

// BreakdownItem is one asset-type bucket of a snapshot, in the snapshot's
// base currency.
type BreakdownItem struct {
	AssetType AssetType `json:"assetType"`
	Value     float64   `json:"value"`
	Cost      float64   `json:"cost"`
	PnL       float64   `json:"pnl"`
	Currency  string    `json:"currency"`
}

// HoldingPosition is the holding-level detail of a snapshot, in the
// snapshot's base currency.
type HoldingPosition struct {
	Symbol    string    `json:"symbol"`
	AssetType AssetType `json:"assetType"`
	Shares    float64   `json:"shares"`
	Value     float64   `json:"value"`
	Cost      float64   `json:"cost"`
	DailyPnL  float64   `json:"dailyPnl"`
}

// DailySnapshot is the owned, persisted artifact: one row per
// (date, portfolio). PortfolioID is uuid.Nil for the all-accounts aggregate.
// Recomputation overwrites in place; at most one row exists per key.
type DailySnapshot struct {
	Date                 time.Time          `json:"date"`
	PortfolioID          uuid.UUID          `json:"portfolioID"`
	BaseCurrency         string             `json:"baseCurrency"`
	TotalValue           float64            `json:"totalValue"`
	TotalCost            float64            `json:"totalCost"`
	DailyPnL             float64            `json:"dailyPnl"`
	DailyPnLPercent      float64            `json:"dailyPnlPercent"`
	CumulativePnL        float64            `json:"cumulativePnl"`
	UnrealizedPnLPercent float64            `json:"unrealizedPnlPercent"`
	Breakdown            []*BreakdownItem   `json:"breakdown"`
	Holdings             []*HoldingPosition `json:"holdings"`

	// Omitted lists symbols excluded because no price or exchange rate was
	// available; Partial is set whenever it is non-empty so callers can
	// surface a partial-data indicator.
	Omitted []string `json:"omitted,omitempty"`
	Partial bool     `json:"partial,omitempty"`
}

// HoldingDailyPnL is derived and never persisted; always recomputed from a
// snapshot's holding-level detail.
type HoldingDailyPnL struct {
	Symbol  string  `json:"symbol"`
	PnL     float64 `json:"pnl"`
	Percent float64 `json:"percent"`
}
