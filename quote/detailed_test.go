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
	"os"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/folio-vault/folio-api/quote"
)

var _ = Describe("FetchDetailedQuote", func() {
	var (
		ctx context.Context
		svc *quote.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		svc = quote.NewService()
		httpmock.ActivateNonDefault(svc.HTTPClient())
		httpmock.ActivateNonDefault(svc.AuthHTTPClient())

		httpmock.RegisterResponder("GET", "https://finance.yahoo.com",
			httpmock.NewStringResponder(200, "<html></html>"))

		// the unified path is always registered so fallback behavior is
		// observable in every scenario
		content, err := os.ReadFile("testdata/unified_aapl.json")
		Expect(err).To(BeNil())
		httpmock.RegisterResponder("GET",
			"https://query1.finance.yahoo.com/v7/finance/quote?symbols=AAPL",
			httpmock.NewBytesResponder(200, content))
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	registerCrumb := func(crumb string) {
		httpmock.RegisterResponder("GET",
			"https://query1.finance.yahoo.com/v1/test/getcrumb",
			httpmock.NewStringResponder(200, crumb))
	}

	Context("when the handshake succeeds", func() {
		BeforeEach(func() {
			registerCrumb("testcrumb")

			content, err := os.ReadFile("testdata/quote_summary.json")
			Expect(err).To(BeNil())
			httpmock.RegisterResponder("GET",
				"https://query1.finance.yahoo.com/v10/finance/quoteSummary/AAPL?modules=price,summaryDetail,defaultKeyStatistics&crumb=testcrumb",
				httpmock.NewBytesResponder(200, content))
		})

		It("returns a record with fundamentals attached", func() {
			rec, err := svc.FetchDetailedQuote(ctx, "AAPL")
			Expect(err).To(BeNil())
			Expect(rec.RegularMarketPrice).Should(BeNumerically("~", 150.25, 1e-9))
			Expect(rec.Fundamentals).ToNot(BeNil())
			Expect(rec.Fundamentals.TrailingPE).Should(BeNumerically("~", 24.85, 1e-9))
			Expect(rec.Fundamentals.EPS).Should(BeNumerically("~", 6.05, 1e-9))
			Expect(rec.Fundamentals.MarketCap).Should(BeNumerically("~", 2.45e12, 1e6))
		})

		It("reuses the token across calls", func() {
			_, err := svc.FetchDetailedQuote(ctx, "AAPL")
			Expect(err).To(BeNil())
			_, err = svc.FetchDetailedQuote(ctx, "AAPL")
			Expect(err).To(BeNil())

			info := httpmock.GetCallCountInfo()
			Expect(info["GET https://query1.finance.yahoo.com/v1/test/getcrumb"]).To(Equal(1))
		})
	})

	Context("when the handshake fails", func() {
		BeforeEach(func() {
			httpmock.RegisterResponder("GET",
				"https://query1.finance.yahoo.com/v1/test/getcrumb",
				httpmock.NewStringResponder(500, "no crumb for you"))
		})

		It("falls back to the unified quote without fundamentals", func() {
			rec, err := svc.FetchDetailedQuote(ctx, "AAPL")
			Expect(err).To(BeNil())
			Expect(rec.RegularMarketPrice).Should(BeNumerically("~", 150.25, 1e-9))
			Expect(rec.Fundamentals).To(BeNil())
		})
	})

	Context("when the provider rejects the token", func() {
		BeforeEach(func() {
			registerCrumb("stalecrumb")
			httpmock.RegisterResponder("GET",
				"https://query1.finance.yahoo.com/v10/finance/quoteSummary/AAPL?modules=price,summaryDetail,defaultKeyStatistics&crumb=stalecrumb",
				httpmock.NewStringResponder(401, "unauthorized"))
		})

		It("falls back to the unified quote", func() {
			rec, err := svc.FetchDetailedQuote(ctx, "AAPL")
			Expect(err).To(BeNil())
			Expect(rec.Fundamentals).To(BeNil())
		})

		It("re-runs the handshake on the next call", func() {
			_, err := svc.FetchDetailedQuote(ctx, "AAPL")
			Expect(err).To(BeNil())
			_, err = svc.FetchDetailedQuote(ctx, "AAPL")
			Expect(err).To(BeNil())

			info := httpmock.GetCallCountInfo()
			Expect(info["GET https://query1.finance.yahoo.com/v1/test/getcrumb"]).To(Equal(2))
		})
	})
})
