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

package handler

import (
	"errors"

	"github.com/folio-vault/folio-api/quote"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// GetQuote fetches the detailed quote for a single symbol. The acquisition
// layer already degrades to the unified quote when detail is unavailable, so
// the only hard failures here are unknown symbols and unreachable upstreams.
func (h *Handler) GetQuote(c *fiber.Ctx) error {
	symbol := c.Params("symbol")
	if symbol == "" {
		return fiber.ErrBadRequest
	}

	record, err := h.Quotes.FetchDetailedQuote(c.Context(), symbol)
	if err != nil {
		log.Warn().Stack().Err(err).Str("Symbol", symbol).Msg("quote fetch failed")
		switch {
		case errors.Is(err, quote.ErrNoData), errors.Is(err, quote.ErrInvalidRequest):
			return fiber.ErrNotFound
		default:
			return fiber.ErrBadGateway
		}
	}

	return c.JSON(record)
}

// GetMovers lists ranked movers for a market.
func (h *Handler) GetMovers(c *fiber.Ctx) error {
	market := quote.Market(c.Params("market"))
	switch market {
	case quote.MarketUS, quote.MarketJapan, quote.MarketHongKong, quote.MarketChina:
	default:
		return fiber.ErrBadRequest
	}

	ranking := quote.RankingType(c.Params("ranking"))
	switch ranking {
	case quote.RankGainers, quote.RankLosers, quote.RankMostActive:
	default:
		return fiber.ErrBadRequest
	}

	records, err := h.Quotes.FetchMarketMovers(c.Context(), market, ranking)
	if err != nil {
		log.Warn().Stack().Err(err).Str("Market", string(market)).Str("Ranking", string(ranking)).Msg("movers fetch failed")
		return fiber.ErrBadGateway
	}

	return c.JSON(records)
}
