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

	"github.com/folio-vault/folio-api/common"
	"github.com/folio-vault/folio-api/quote"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(moversCmd)
}

var moversCmd = &cobra.Command{
	Use:   "movers <market> <ranking>",
	Short: "List ranked market movers",
	Long:  `List gainers, losers or most-active instruments for a market. Markets: US, JP, HK, CN. Rankings: gainers, losers, most-active.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		market := quote.Market(args[0])
		ranking := quote.RankingType(args[1])

		records, err := quote.NewService().FetchMarketMovers(context.Background(), market, ranking)
		if err != nil {
			log.Fatal().Stack().Err(err).Str("Market", args[0]).Str("Ranking", args[1]).Msg("could not fetch movers")
		}

		for _, rec := range records {
			fmt.Printf("%-12s %-28s %12.2f %+8.2f%%\n", rec.Symbol, rec.ShortName, rec.RegularMarketPrice, rec.RegularMarketChangePercent)
		}
	},
}
