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

package impexp

import (
	"os"
	"sort"
	"strings"

	"github.com/folio-vault/folio-api/snapshot"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// portfolioNamespace seeds deterministic portfolio IDs so the same account
// name maps to the same snapshot key across runs.
var portfolioNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// BuildPortfolios groups imported rows into portfolios by account name and
// holdings by symbol. Portfolio IDs are derived from the account name so
// snapshots keyed on them survive re-imports. Account tiers come from the
// portfolio.tiers config map; unlisted accounts are GENERAL.
func BuildPortfolios(rows []*Row) []*snapshot.Portfolio {
	baseCurrency := viper.GetString("portfolio.base_currency")
	if baseCurrency == "" {
		baseCurrency = "USD"
	}
	tiers := viper.GetStringMapString("portfolio.tiers")

	byAccount := make(map[string]map[string]*snapshot.Holding)
	for _, row := range rows {
		holdings, ok := byAccount[row.Account]
		if !ok {
			holdings = make(map[string]*snapshot.Holding)
			byAccount[row.Account] = holdings
		}

		h, ok := holdings[row.Symbol]
		if !ok {
			h = &snapshot.Holding{
				Symbol:    row.Symbol,
				Name:      row.Name,
				Market:    row.Market,
				AssetType: row.AssetType,
				Currency:  row.Transaction.Currency,
				Tier:      accountTier(tiers, row.Account),
			}
			holdings[row.Symbol] = h
		}
		h.Transactions = append(h.Transactions, row.Transaction)
	}

	accounts := make([]string, 0, len(byAccount))
	for name := range byAccount {
		accounts = append(accounts, name)
	}
	sort.Strings(accounts)

	portfolios := make([]*snapshot.Portfolio, 0, len(accounts))
	for idx, name := range accounts {
		holdings := byAccount[name]
		symbols := make([]string, 0, len(holdings))
		for sym := range holdings {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)

		p := &snapshot.Portfolio{
			ID:           uuid.NewSHA1(portfolioNamespace, []byte(name)),
			Name:         name,
			BaseCurrency: baseCurrency,
			Tier:         accountTier(tiers, name),
			SortOrder:    idx,
		}
		for _, sym := range symbols {
			p.Holdings = append(p.Holdings, holdings[sym])
		}
		portfolios = append(portfolios, p)
	}

	return portfolios
}

func accountTier(tiers map[string]string, account string) snapshot.AccountTier {
	switch strings.ToUpper(tiers[strings.ToLower(account)]) {
	case string(snapshot.TierTrancheA):
		return snapshot.TierTrancheA
	case string(snapshot.TierTrancheB):
		return snapshot.TierTrancheB
	default:
		return snapshot.TierGeneral
	}
}

// LoadPortfolios imports the transaction CSV at path and groups it into
// portfolios.
func LoadPortfolios(path string) ([]*snapshot.Portfolio, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	rows, err := Import(fh)
	if err != nil {
		return nil, err
	}
	return BuildPortfolios(rows), nil
}
