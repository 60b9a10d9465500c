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

package quote_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/folio-vault/folio-api/quote"
)

var _ = Describe("Market", func() {
	DescribeTable("inferring a market from a symbol suffix",
		func(symbol string, expected quote.Market) {
			Expect(quote.InferMarket(symbol)).To(Equal(expected))
		},
		Entry("Tokyo suffix", "7203.T", quote.MarketJapan),
		Entry("Hong Kong suffix", "0700.HK", quote.MarketHongKong),
		Entry("Shanghai suffix", "600519.SS", quote.MarketChina),
		Entry("Shenzhen suffix", "000001.SZ", quote.MarketChina),
		Entry("bare US ticker", "AAPL", quote.MarketUS),
		Entry("unknown suffix falls through to US", "VODL.L", quote.MarketUS),
	)

	DescribeTable("canonicalizing provider codes",
		func(market quote.Market, code, expected string) {
			Expect(quote.CanonicalSymbol(market, code)).To(Equal(expected))
		},
		Entry("japan code gains .T", quote.MarketJapan, "7203", "7203.T"),
		Entry("japan code already qualified", quote.MarketJapan, "7203.T", "7203.T"),
		Entry("hong kong code zero-padded to four digits", quote.MarketHongKong, "700", "0700.HK"),
		Entry("hong kong code already qualified", quote.MarketHongKong, "0700.HK", "0700.HK"),
		Entry("shanghai listing from 6-prefix", quote.MarketChina, "600519", "600519.SS"),
		Entry("shenzhen listing otherwise", quote.MarketChina, "000001", "000001.SZ"),
		Entry("US tickers uppercased", quote.MarketUS, "aapl", "AAPL"),
	)
})
