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

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(quoteCmd)
}

var quoteCmd = &cobra.Command{
	Use:   "quote <symbol>...",
	Short: "Fetch quotes for one or more symbols",
	Long:  `Fetch the detailed quote for each symbol and print it as JSON. Falls back to the basic quote when the detailed path is unavailable.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		ctx := context.Background()
		svc := quote.NewService()

		for _, symbol := range args {
			record, err := svc.FetchDetailedQuote(ctx, symbol)
			if err != nil {
				log.Error().Stack().Err(err).Str("Symbol", symbol).Msg("could not fetch quote")
				continue
			}
			out, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				log.Error().Stack().Err(err).Str("Symbol", symbol).Msg("could not serialize quote")
				continue
			}
			fmt.Println(string(out))
		}
	},
}
