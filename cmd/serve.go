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
	"os"
	"os/signal"
	"time"

	"github.com/folio-vault/folio-api/common"
	"github.com/folio-vault/folio-api/database"
	"github.com/folio-vault/folio-api/fx"
	"github.com/folio-vault/folio-api/handler"
	"github.com/folio-vault/folio-api/impexp"
	"github.com/folio-vault/folio-api/observability/opentelemetry"
	"github.com/folio-vault/folio-api/quote"
	"github.com/folio-vault/folio-api/router"
	"github.com/folio-vault/folio-api/snapshot"

	"github.com/go-co-op/gocron"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	viper.BindEnv("server.snapshot_time", "FV_SNAPSHOT_TIME")
	serveCmd.Flags().String("snapshot-time", "16:30", "local time of day (HH:MM, exchange timezone) to recompute daily snapshots")
	viper.BindPFlag("server.snapshot_time", serveCmd.Flags().Lookup("snapshot-time"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the folio-api server",
	Long:  `Run HTTP server that exposes quotes, snapshots and quota over the v1 API`,
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		log.Info().Msg("initialized logging")

		ctx := context.Background()

		traceShutdown, err := opentelemetry.Setup()
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("could not initialize tracing")
		}
		defer func() {
			if err := traceShutdown(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not shutdown tracing")
			}
		}()

		if err := database.Connect(ctx); err != nil {
			log.Fatal().Stack().Err(err).Msg("could not connect to database")
		}

		quotes := quote.NewService()
		rates := fx.NewService()
		engine := snapshot.NewEngine(quotes, rates)

		portfolioFile := viper.GetString("portfolio.file")
		portfolios := func(_ context.Context) ([]*snapshot.Portfolio, error) {
			return impexp.LoadPortfolios(portfolioFile)
		}

		baseCurrency := viper.GetString("portfolio.base_currency")

		h := &handler.Handler{
			Quotes:       quotes,
			Engine:       engine,
			Portfolios:   handler.PortfolioSource(portfolios),
			BaseCurrency: baseCurrency,
		}

		app := fiber.New()

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c
			log.Info().Str("Signal", sig.String()).Msg("received signal; shutting down")
			if err := app.Shutdown(); err != nil {
				log.Fatal().Stack().Err(err).Msg("could not shutdown server")
			}
		}()

		router.SetupRoutes(app, h)

		// log snapshot-updated events
		go func() {
			for evt := range engine.Subscribe() {
				log.Info().
					Time("Date", evt.Date).
					Str("PortfolioID", evt.PortfolioID.String()).
					Float64("TotalValue", evt.TotalValue).
					Bool("Partial", evt.Partial).
					Msg("snapshot updated")
			}
		}()

		scheduler := gocron.NewScheduler(common.GetTimezone())

		// keep exchange rates warm so quote conversion never blocks a request
		scheduler.Every(1).Hours().Do(func() {
			loaded, err := portfolios(ctx)
			if err != nil {
				log.Error().Stack().Err(err).Msg("scheduled rate refresh could not load portfolios")
				return
			}
			currencies := make(map[string]bool)
			for _, p := range loaded {
				for _, holding := range p.Holdings {
					currencies[holding.Currency] = true
				}
			}
			list := make([]string, 0, len(currencies))
			for cur := range currencies {
				list = append(list, cur)
			}
			if err := rates.RefreshRates(ctx, list, baseCurrency); err != nil {
				log.Error().Stack().Err(err).Msg("scheduled rate refresh failed")
			}
		})

		// end-of-day snapshot recompute
		scheduler.Every(1).Day().At(viper.GetString("server.snapshot_time")).Do(func() {
			loaded, err := portfolios(ctx)
			if err != nil {
				log.Error().Stack().Err(err).Msg("scheduled snapshot could not load portfolios")
				return
			}
			if _, err := engine.RecomputeAll(ctx, time.Now(), loaded, baseCurrency); err != nil {
				log.Error().Stack().Err(err).Msg("scheduled snapshot recompute failed")
			}
		})

		scheduler.StartAsync()

		if err := app.Listen(":" + viper.GetString("server.port")); err != nil {
			log.Fatal().Stack().Err(err).Msg("server exited with error")
		}
	},
}
