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

package quote

import (
	"context"
	"fmt"
	"net/url"

	"github.com/folio-vault/folio-api/observability/opentelemetry"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

type unifiedQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string   `json:"symbol"`
			ShortName                  string   `json:"shortName"`
			LongName                   string   `json:"longName"`
			Currency                   string   `json:"currency"`
			MarketState                string   `json:"marketState"`
			RegularMarketPrice         float64  `json:"regularMarketPrice"`
			RegularMarketChange        float64  `json:"regularMarketChange"`
			RegularMarketChangePercent float64  `json:"regularMarketChangePercent"`
			RegularMarketPreviousClose float64  `json:"regularMarketPreviousClose"`
			RegularMarketVolume        int64    `json:"regularMarketVolume"`
			PreMarketPrice             *float64 `json:"preMarketPrice"`
			PostMarketPrice            *float64 `json:"postMarketPrice"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol string
	Record *QuoteRecord
	Err    error
}

// FetchUnifiedQuotes fans out one request per symbol and merges the results
// into a map keyed by symbol. Per-symbol failures are swallowed: a failed
// symbol is simply absent from the result. Callers must treat missing
// entries as unknown, not as zero.
func (s *Service) FetchUnifiedQuotes(ctx context.Context, symbols []string) map[string]*QuoteRecord {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "quote.FetchUnifiedQuotes")
	defer span.End()

	res := make(map[string]*QuoteRecord, len(symbols))
	ch := make(chan quoteResult)
	for ii := range symbols {
		go s.unifiedQuoteWorker(ctx, ch, symbols[ii])
	}

	for range symbols {
		v := <-ch
		if v.Err != nil {
			log.Warn().Err(v.Err).Str("Symbol", v.Symbol).Msg("cannot fetch quote for symbol")
			continue
		}
		res[v.Symbol] = v.Record
	}

	return res
}

func (s *Service) unifiedQuoteWorker(ctx context.Context, result chan<- quoteResult, symbol string) {
	rec, err := s.fetchUnifiedQuote(ctx, symbol)
	result <- quoteResult{
		Symbol: symbol,
		Record: rec,
		Err:    err,
	}
}

func (s *Service) fetchUnifiedQuote(ctx context.Context, symbol string) (*QuoteRecord, error) {
	subLog := log.With().Str("Symbol", symbol).Logger()

	reqURL := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", quoteHost(), url.QueryEscape(symbol))
	body, err := s.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp unifiedQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		subLog.Error().Err(err).Msg("could not unmarshal quote payload")
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	if resp.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoData, resp.QuoteResponse.Error.Description)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	raw := resp.QuoteResponse.Result[0]
	rec := &QuoteRecord{
		Symbol:                     raw.Symbol,
		ShortName:                  raw.ShortName,
		LongName:                   raw.LongName,
		Market:                     InferMarket(raw.Symbol),
		Currency:                   raw.Currency,
		RegularMarketPrice:         raw.RegularMarketPrice,
		RegularMarketChange:        raw.RegularMarketChange,
		RegularMarketChangePercent: raw.RegularMarketChangePercent,
		PreviousClose:              raw.RegularMarketPreviousClose,
		Volume:                     raw.RegularMarketVolume,
		Session:                    sessionFromState(raw.MarketState),
		PreMarketPrice:             raw.PreMarketPrice,
		PostMarketPrice:            raw.PostMarketPrice,
	}
	return rec, nil
}

func sessionFromState(state string) MarketSession {
	switch state {
	case "PRE", "PREPRE":
		return SessionPre
	case "REGULAR":
		return SessionRegular
	case "POST", "POSTPOST":
		return SessionPost
	default:
		return SessionClosed
	}
}
