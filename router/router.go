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

package router

import (
	"github.com/folio-vault/folio-api/handler"
	"github.com/folio-vault/folio-api/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// SetupRoutes registers the v1 api surface
func SetupRoutes(app *fiber.App, h *handler.Handler) {
	app.Use(cors.New())

	api := app.Group("/v1", middleware.NewLogger())
	api.Get("/", handler.Ping)

	// Quotes
	quotes := api.Group("/quotes")
	quotes.Get("/:symbol", h.GetQuote)

	// Movers
	api.Get("/movers/top", h.GetTopMovers)
	api.Get("/movers/:market/:ranking", h.GetMovers)

	// Snapshots
	snapshots := api.Group("/snapshots")
	snapshots.Post("/recompute", h.RecomputeSnapshot)
	snapshots.Get("/:portfolioID", h.GetSnapshot)

	// Quota
	api.Get("/quota", h.GetQuota)
}
