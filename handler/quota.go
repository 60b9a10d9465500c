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
	"strconv"
	"time"

	"github.com/folio-vault/folio-api/quota"
	"github.com/folio-vault/folio-api/snapshot"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type trancheResponse struct {
	Tier            snapshot.AccountTier `json:"tier"`
	Annual          string               `json:"annual"`
	AnnualRaw       string               `json:"annualRaw"`
	AnnualLimit     string               `json:"annualLimit"`
	Lifetime        string               `json:"lifetime"`
	LifetimeRaw     string               `json:"lifetimeRaw"`
	LifetimeLimit   string               `json:"lifetimeLimit"`
	OverContributed bool                 `json:"overContributed"`
}

type quotaResponse struct {
	Year     int                `json:"year"`
	Tranches []*trancheResponse `json:"tranches"`
}

// GetQuota reports contribution usage per tranche for the requested year
// (default: current year). Displayed figures clamp at the cap; raw figures
// are preserved so over-contribution stays visible.
func (h *Handler) GetQuota(c *fiber.Ctx) error {
	year := time.Now().Year()
	if yearStr := c.Query("year"); yearStr != "" {
		parsed, err := strconv.Atoi(yearStr)
		if err != nil {
			return fiber.ErrBadRequest
		}
		year = parsed
	}

	portfolios, err := h.Portfolios(c.Context())
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not load portfolios for quota")
		return fiber.ErrInternalServerError
	}

	holdings := make([]*snapshot.Holding, 0)
	for _, p := range portfolios {
		holdings = append(holdings, p.Holdings...)
	}

	usage := quota.Calculate(holdings, year)
	resp := quotaResponse{Year: usage.Year}
	for _, tier := range []snapshot.AccountTier{snapshot.TierGeneral, snapshot.TierTrancheA, snapshot.TierTrancheB} {
		t, ok := usage.Tranches[tier]
		if !ok {
			continue
		}
		resp.Tranches = append(resp.Tranches, &trancheResponse{
			Tier:            t.Tier,
			Annual:          t.AnnualDisplayed().StringFixed(2),
			AnnualRaw:       t.AnnualRaw.StringFixed(2),
			AnnualLimit:     t.Limits.Annual.StringFixed(2),
			Lifetime:        t.LifetimeDisplayed().StringFixed(2),
			LifetimeRaw:     t.LifetimeRaw.StringFixed(2),
			LifetimeLimit:   t.Limits.Lifetime.StringFixed(2),
			OverContributed: t.OverContributed(),
		})
	}

	return c.JSON(resp)
}
