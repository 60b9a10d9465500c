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

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/folio-vault/folio-api/common"
	"github.com/folio-vault/folio-api/database"
	"github.com/folio-vault/folio-api/fx"
	"github.com/folio-vault/folio-api/impexp"
	"github.com/folio-vault/folio-api/quote"
	"github.com/folio-vault/folio-api/snapshot"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Recompute today's snapshots",
	Long:  `Recompute and persist today's snapshot for every portfolio plus the all-accounts aggregate. Safe to run repeatedly.`,
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Stack().Err(err).Msg("could not connect to database")
		}

		portfolios, err := impexp.LoadPortfolios(viper.GetString("portfolio.file"))
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("could not load portfolios")
		}

		engine := snapshot.NewEngine(quote.NewService(), fx.NewService())
		snap, err := engine.RecomputeAll(ctx, time.Now(), portfolios, viper.GetString("portfolio.base_currency"))
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("snapshot recompute failed")
		}

		fmt.Printf("%s  value=%.2f %s  dailyPnL=%.2f (%.2f%%)  cumulative=%.2f\n",
			snap.Date.Format("2006-01-02"), snap.TotalValue, snap.BaseCurrency,
			snap.DailyPnL, snap.DailyPnLPercent, snap.CumulativePnL)
		if snap.Partial {
			fmt.Printf("partial: no price or rate for %v\n", snap.Omitted)
		}
	},
}
