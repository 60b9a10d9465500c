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
	"context"
	"errors"
	"os"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/folio-vault/folio-api/quote"
)

var _ = Describe("FetchMarketMovers", func() {
	var (
		ctx context.Context
		svc *quote.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		viper.Set("quote.mover_count", 25)
		svc = quote.NewService()
		httpmock.ActivateNonDefault(svc.HTTPClient())
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
		viper.Set("quote.mover_count", 0)
	})

	Context("for the US screener", func() {
		BeforeEach(func() {
			content, err := os.ReadFile("testdata/screener_us.json")
			Expect(err).To(BeNil())
			httpmock.RegisterResponder("GET",
				"https://query1.finance.yahoo.com/v1/finance/screener/predefined/saved?scrIds=day_gainers&count=25&region=US",
				httpmock.NewBytesResponder(200, content))
		})

		It("normalizes screener quotes from their wrapped values", func() {
			records, err := svc.FetchMarketMovers(ctx, quote.MarketUS, quote.RankGainers)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(2))
			Expect(records[0].Symbol).To(Equal("NVDA"))
			Expect(records[0].RegularMarketPrice).Should(BeNumerically("~", 178.02, 1e-9))
			Expect(records[0].RegularMarketChangePercent).Should(BeNumerically("~", 8.73, 1e-9))
			Expect(records[0].Volume).To(Equal(int64(51230000)))
			Expect(records[0].Market).To(Equal(quote.MarketUS))
		})
	})

	Context("for the Hong Kong screener", func() {
		BeforeEach(func() {
			content, err := os.ReadFile("testdata/screener_hk.json")
			Expect(err).To(BeNil())
			httpmock.RegisterResponder("GET",
				"https://query1.finance.yahoo.com/v1/finance/screener/predefined/saved?scrIds=most_actives&count=25&region=HK",
				httpmock.NewBytesResponder(200, content))
		})

		It("keeps the .HK qualified symbols", func() {
			records, err := svc.FetchMarketMovers(ctx, quote.MarketHongKong, quote.RankMostActive)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(2))
			Expect(records[0].Symbol).To(Equal("0700.HK"))
			Expect(records[0].Currency).To(Equal("HKD"))
			Expect(records[0].Market).To(Equal(quote.MarketHongKong))
		})
	})

	Context("for the mainland China ranking", func() {
		BeforeEach(func() {
			content, err := os.ReadFile("testdata/cn_rank.json")
			Expect(err).To(BeNil())
			httpmock.RegisterResponder("GET",
				"https://push2.eastmoney.com/api/qt/clist/get?pn=1&pz=25&po=1&fid=f3&fields=f2,f3,f4,f5,f12,f14",
				httpmock.NewBytesResponder(200, content))
			httpmock.RegisterResponder("GET",
				"https://push2.eastmoney.com/api/qt/clist/get?pn=1&pz=25&po=0&fid=f3&fields=f2,f3,f4,f5,f12,f14",
				httpmock.NewBytesResponder(200, content))
		})

		It("translates the terse field keys", func() {
			records, err := svc.FetchMarketMovers(ctx, quote.MarketChina, quote.RankGainers)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(2))
			Expect(records[0].Symbol).To(Equal("600519.SS"))
			Expect(records[0].ShortName).To(Equal("贵州茅台"))
			Expect(records[0].RegularMarketPrice).Should(BeNumerically("~", 13.52, 1e-9))
			Expect(records[0].RegularMarketChangePercent).Should(BeNumerically("~", 10.0, 1e-9))
			Expect(records[0].PreviousClose).Should(BeNumerically("~", 12.29, 1e-9))
			Expect(records[0].Currency).To(Equal("CNY"))
			Expect(records[1].Symbol).To(Equal("000001.SZ"))
		})

		It("flips the sort direction for losers", func() {
			_, err := svc.FetchMarketMovers(ctx, quote.MarketChina, quote.RankLosers)
			Expect(err).To(BeNil())

			info := httpmock.GetCallCountInfo()
			Expect(info["GET https://push2.eastmoney.com/api/qt/clist/get?pn=1&pz=25&po=0&fid=f3&fields=f2,f3,f4,f5,f12,f14"]).To(Equal(1))
		})
	})

	Context("for the Japan scanner", func() {
		BeforeEach(func() {
			content, err := os.ReadFile("testdata/jp_scan.json")
			Expect(err).To(BeNil())
			httpmock.RegisterResponder("GET",
				"https://scanner.kabutan.jp/api/v1/scan?ranking=gainers&limit=25",
				httpmock.NewBytesResponder(200, content))
		})

		It("decodes heterogeneous rows and drops malformed ones", func() {
			records, err := svc.FetchMarketMovers(ctx, quote.MarketJapan, quote.RankGainers)
			Expect(err).To(BeNil())
			// the fixture has four rows, one with a null price
			Expect(records).To(HaveLen(3))

			Expect(records[0].Symbol).To(Equal("7203.T"))
			Expect(records[0].RegularMarketPrice).Should(BeNumerically("~", 2150.5, 1e-9))
			Expect(records[0].PreviousClose).Should(BeNumerically("~", 2045.5, 1e-9))
			Expect(records[0].Currency).To(Equal("JPY"))

			// numeric code rows still canonicalize
			Expect(records[1].Symbol).To(Equal("6758.T"))

			// numeric-string volume rows still parse
			Expect(records[2].Symbol).To(Equal("8306.T"))
			Expect(records[2].Volume).To(Equal(int64(31200000)))
		})
	})

	It("rejects unknown markets without a network call", func() {
		_, err := svc.FetchMarketMovers(ctx, quote.Market("XX"), quote.RankGainers)
		Expect(errors.Is(err, quote.ErrInvalidRequest)).To(BeTrue())
		Expect(httpmock.GetTotalCallCount()).To(Equal(0))
	})

	It("rejects unknown rankings", func() {
		_, err := svc.FetchMarketMovers(ctx, quote.MarketUS, quote.RankingType("sideways"))
		Expect(errors.Is(err, quote.ErrInvalidRequest)).To(BeTrue())
	})
})
