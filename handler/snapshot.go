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
	"strconv"
	"time"

	"github.com/folio-vault/folio-api/common"
	"github.com/folio-vault/folio-api/snapshot"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GetSnapshot returns the persisted daily snapshot for a portfolio.
// Use "aggregate" as the portfolio ID for the all-accounts row. An optional
// date query parameter (2006-01-02) selects a historical snapshot; the
// default is the most recent one.
func (h *Handler) GetSnapshot(c *fiber.Ctx) error {
	portfolioID := uuid.Nil
	if idStr := c.Params("portfolioID"); idStr != "aggregate" {
		var err error
		portfolioID, err = uuid.Parse(idStr)
		if err != nil {
			log.Warn().Stack().Err(err).Str("PortfolioID", idStr).Msg("invalid portfolio id")
			return fiber.ErrBadRequest
		}
	}

	var (
		snap *snapshot.DailySnapshot
		err  error
	)
	if dateStr := c.Query("date"); dateStr != "" {
		var date time.Time
		date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return fiber.ErrBadRequest
		}
		snap, err = snapshot.LoadSnapshot(c.Context(), common.MidnightInTz(date), portfolioID)
	} else {
		snap, err = snapshot.LoadLatestBefore(c.Context(), time.Now().AddDate(0, 0, 1), portfolioID)
	}
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			return fiber.ErrNotFound
		}
		log.Error().Stack().Err(err).Str("PortfolioID", portfolioID.String()).Msg("snapshot load failed")
		return fiber.ErrInternalServerError
	}

	return c.JSON(snap)
}

// RecomputeSnapshot recomputes and overwrites today's snapshots for every
// portfolio plus the aggregate. Recomputation is idempotent; running it twice
// with the same upstream data leaves the same rows.
func (h *Handler) RecomputeSnapshot(c *fiber.Ctx) error {
	portfolios, err := h.Portfolios(c.Context())
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not load portfolios for recompute")
		return fiber.ErrInternalServerError
	}

	snap, err := h.Engine.RecomputeAll(c.Context(), time.Now(), portfolios, h.BaseCurrency)
	if err != nil {
		log.Error().Stack().Err(err).Msg("snapshot recompute failed")
		return fiber.ErrInternalServerError
	}

	return c.JSON(snap)
}

// GetTopMovers ranks a snapshot's holdings by absolute daily move.
func (h *Handler) GetTopMovers(c *fiber.Ctx) error {
	n := 5
	if countStr := c.Query("count"); countStr != "" {
		parsed, err := strconv.Atoi(countStr)
		if err != nil || parsed < 1 {
			return fiber.ErrBadRequest
		}
		n = parsed
	}
	snap, err := snapshot.LoadLatestBefore(c.Context(), time.Now().AddDate(0, 0, 1), uuid.Nil)
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			return fiber.ErrNotFound
		}
		log.Error().Stack().Err(err).Msg("snapshot load failed")
		return fiber.ErrInternalServerError
	}

	return c.JSON(snapshot.TopMovers(snap, n))
}
