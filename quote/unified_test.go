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

var _ = Describe("FetchUnifiedQuotes", func() {
	var (
		ctx context.Context
		svc *quote.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		svc = quote.NewService()
		httpmock.ActivateNonDefault(svc.HTTPClient())

		content, err := os.ReadFile("testdata/unified_aapl.json")
		Expect(err).To(BeNil())
		httpmock.RegisterResponder("GET",
			"https://query1.finance.yahoo.com/v7/finance/quote?symbols=AAPL",
			httpmock.NewBytesResponder(200, content))

		content, err = os.ReadFile("testdata/unified_7203t.json")
		Expect(err).To(BeNil())
		httpmock.RegisterResponder("GET",
			"https://query1.finance.yahoo.com/v7/finance/quote?symbols=7203.T",
			httpmock.NewBytesResponder(200, content))

		httpmock.RegisterResponder("GET",
			"https://query1.finance.yahoo.com/v7/finance/quote?symbols=BROKEN",
			httpmock.NewStringResponder(502, "bad gateway"))
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	It("fans out and merges per-symbol results", func() {
		quotes := svc.FetchUnifiedQuotes(ctx, []string{"AAPL", "7203.T"})
		Expect(quotes).To(HaveLen(2))

		Expect(quotes["AAPL"].RegularMarketPrice).Should(BeNumerically("~", 150.25, 1e-9))
		Expect(quotes["AAPL"].Session).To(Equal(quote.SessionRegular))
		Expect(quotes["AAPL"].Market).To(Equal(quote.MarketUS))

		Expect(quotes["7203.T"].Currency).To(Equal("JPY"))
		Expect(quotes["7203.T"].Market).To(Equal(quote.MarketJapan))
		Expect(quotes["7203.T"].Session).To(Equal(quote.SessionClosed))
	})

	It("omits failed symbols instead of failing the batch", func() {
		quotes := svc.FetchUnifiedQuotes(ctx, []string{"AAPL", "BROKEN"})
		Expect(quotes).To(HaveLen(1))
		Expect(quotes).To(HaveKey("AAPL"))
		Expect(quotes).ToNot(HaveKey("BROKEN"))
	})

	It("returns an empty map when every symbol fails", func() {
		quotes := svc.FetchUnifiedQuotes(ctx, []string{"BROKEN"})
		Expect(quotes).To(BeEmpty())
	})
})
