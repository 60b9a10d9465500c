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
	"errors"
	"fmt"
	"os"
	"os/signal"
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

var (
	backfillBegin string
	backfillEnd   string
)

func init() {
	backfillCmd.Flags().StringVar(&backfillBegin, "begin", "", "first date to backfill (2006-01-02); defaults to the earliest transaction date")
	backfillCmd.Flags().StringVar(&backfillEnd, "end", "", "last date to backfill (2006-01-02); defaults to today")

	rootCmd.AddCommand(backfillCmd)
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Build historical snapshots from transaction history",
	Long: `Walk trading days oldest to newest and persist a snapshot per portfolio per
day. Days that already have snapshots are skipped, so an interrupted run can
be resumed by running the command again.`,
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// interrupting stops at the next day boundary; already-written days
		// stay persisted
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c
			log.Info().Str("Signal", sig.String()).Msg("received signal; stopping at day boundary")
			cancel()
		}()

		if err := database.Connect(ctx); err != nil {
			log.Fatal().Stack().Err(err).Msg("could not connect to database")
		}

		portfolios, err := impexp.LoadPortfolios(viper.GetString("portfolio.file"))
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("could not load portfolios")
		}

		begin, end, err := backfillRange(portfolios)
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("invalid backfill range")
		}

		engine := snapshot.NewEngine(quote.NewService(), fx.NewService())
		err = engine.Backfill(ctx, portfolios, begin, end, viper.GetString("portfolio.base_currency"))
		switch {
		case errors.Is(err, snapshot.ErrMigrationInProgress):
			fmt.Println("backfill already recorded as complete; nothing to do")
		case errors.Is(err, context.Canceled):
			fmt.Println("backfill interrupted; re-run to resume")
		case err != nil:
			log.Fatal().Stack().Err(err).Msg("backfill failed")
		default:
			fmt.Printf("backfilled %s through %s\n", begin.Format("2006-01-02"), end.Format("2006-01-02"))
		}
	},
}

func backfillRange(portfolios []*snapshot.Portfolio) (time.Time, time.Time, error) {
	var begin, end time.Time

	if backfillBegin != "" {
		var err error
		begin, err = time.Parse("2006-01-02", backfillBegin)
		if err != nil {
			return begin, end, err
		}
	} else {
		for _, p := range portfolios {
			for _, h := range p.Holdings {
				for _, trx := range h.Transactions {
					if begin.IsZero() || trx.Date.Before(begin) {
						begin = trx.Date
					}
				}
			}
		}
		if begin.IsZero() {
			return begin, end, errors.New("no transactions to backfill from")
		}
	}

	if backfillEnd != "" {
		var err error
		end, err = time.Parse("2006-01-02", backfillEnd)
		if err != nil {
			return begin, end, err
		}
	} else {
		end = time.Now()
	}

	return common.MidnightInTz(begin), common.MidnightInTz(end), nil
}
