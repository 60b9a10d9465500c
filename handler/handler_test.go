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

package handler_test

import (
	"context"
	"io"
	"net/http/httptest"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/folio-vault/folio-api/database"
	"github.com/folio-vault/folio-api/handler"
	"github.com/folio-vault/folio-api/pgxmockhelper"
	"github.com/folio-vault/folio-api/snapshot"
)

var _ = Describe("Handler", func() {
	var (
		app        *fiber.App
		h          *handler.Handler
		portfolios []*snapshot.Portfolio
	)

	BeforeEach(func() {
		portfolios = []*snapshot.Portfolio{
			{
				ID:           uuid.MustParse("11111111-1111-1111-1111-111111111111"),
				Name:         "Retirement",
				BaseCurrency: "USD",
				Tier:         snapshot.TierTrancheA,
				Holdings: []*snapshot.Holding{
					{
						Symbol:    "VTI",
						AssetType: snapshot.AssetETF,
						Currency:  "USD",
						Tier:      snapshot.TierTrancheA,
						Transactions: []*snapshot.Transaction{
							{
								ID:            uuid.New(),
								Kind:          snapshot.BuyTransaction,
								Date:          time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC),
								Shares:        100,
								PricePerShare: 241.4,
								Currency:      "USD",
							},
						},
					},
				},
			},
		}

		h = &handler.Handler{
			Portfolios: func(_ context.Context) ([]*snapshot.Portfolio, error) {
				return portfolios, nil
			},
			BaseCurrency: "USD",
		}

		app = fiber.New()
		app.Get("/quota", h.GetQuota)
		app.Get("/movers/top", h.GetTopMovers)
	})

	Describe("GetQuota", func() {
		It("reports usage for the requested year", func() {
			resp, err := app.Test(httptest.NewRequest("GET", "/quota?year=2022", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).To(BeNil())
			var decoded struct {
				Year     int `json:"year"`
				Tranches []struct {
					Tier      string `json:"tier"`
					AnnualRaw string `json:"annualRaw"`
				} `json:"tranches"`
			}
			Expect(json.Unmarshal(body, &decoded)).To(Succeed())
			Expect(decoded.Year).To(Equal(2022))
			Expect(decoded.Tranches).To(HaveLen(2))
			Expect(decoded.Tranches[0].Tier).To(Equal("TRANCHE_A"))
			Expect(decoded.Tranches[0].AnnualRaw).To(Equal("24140.00"))
		})

		It("defaults to the current year", func() {
			resp, err := app.Test(httptest.NewRequest("GET", "/quota", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).To(BeNil())
			var decoded struct {
				Year int `json:"year"`
			}
			Expect(json.Unmarshal(body, &decoded)).To(Succeed())
			Expect(decoded.Year).To(Equal(time.Now().Year()))
		})

		It("rejects a year that is not a number", func() {
			resp, err := app.Test(httptest.NewRequest("GET", "/quota?year=abc", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("GetTopMovers", func() {
		var dbPool pgxmock.PgxConnIface

		BeforeEach(func() {
			var err error
			dbPool, err = pgxmock.NewConn()
			Expect(err).To(BeNil())
			database.SetPool(dbPool)
		})

		AfterEach(func() {
			dbPool.Close(context.Background())
		})

		It("limits the ranking to the requested count", func() {
			holdings := []byte(`[{"symbol":"AAPL","assetType":"STOCK","shares":10,"value":1100,"cost":1000,"dailyPnl":100},{"symbol":"BND","assetType":"BOND","shares":20,"value":1510,"cost":1502,"dailyPnl":2}]`)
			pgxmockhelper.ExpectSnapshotQuery(dbPool, pgxmockhelper.SnapshotRow(
				time.Date(2022, 1, 4, 0, 0, 0, 0, time.UTC), uuid.Nil, "USD",
				2610, 2502, 102, 4.1, 102, 4.3,
				[]byte(`[]`), holdings, nil, false))

			resp, err := app.Test(httptest.NewRequest("GET", "/movers/top?count=1", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).To(BeNil())
			var movers []struct {
				Symbol string `json:"symbol"`
			}
			Expect(json.Unmarshal(body, &movers)).To(Succeed())
			Expect(movers).To(HaveLen(1))
			Expect(movers[0].Symbol).To(Equal("AAPL"))
			Expect(dbPool.ExpectationsWereMet()).To(Succeed())
		})

		It("rejects a count that is not a number", func() {
			resp, err := app.Test(httptest.NewRequest("GET", "/movers/top?count=abc", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects a non-positive count", func() {
			resp, err := app.Test(httptest.NewRequest("GET", "/movers/top?count=0", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})
})
