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
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/folio-vault/folio-api/observability/opentelemetry"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// wrappedValue is the provider's {raw, fmt} numeric encoding. The raw value
// is authoritative; fmt is a display string and is never used for
// computation.
type wrappedValue struct {
	Raw float64 `json:"raw"`
	Fmt string  `json:"fmt"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				Symbol                     string        `json:"symbol"`
				ShortName                  string        `json:"shortName"`
				LongName                   string        `json:"longName"`
				Currency                   string        `json:"currency"`
				MarketState                string        `json:"marketState"`
				RegularMarketPrice         wrappedValue  `json:"regularMarketPrice"`
				RegularMarketChange        wrappedValue  `json:"regularMarketChange"`
				RegularMarketChangePercent wrappedValue  `json:"regularMarketChangePercent"`
				RegularMarketPreviousClose wrappedValue  `json:"regularMarketPreviousClose"`
				RegularMarketVolume        wrappedValue  `json:"regularMarketVolume"`
				PreMarketPrice             *wrappedValue `json:"preMarketPrice"`
				PostMarketPrice            *wrappedValue `json:"postMarketPrice"`
				MarketCap                  wrappedValue  `json:"marketCap"`
			} `json:"price"`
			SummaryDetail struct {
				TrailingPE       wrappedValue `json:"trailingPE"`
				DividendYield    wrappedValue `json:"dividendYield"`
				FiftyTwoWeekLow  wrappedValue `json:"fiftyTwoWeekLow"`
				FiftyTwoWeekHigh wrappedValue `json:"fiftyTwoWeekHigh"`
			} `json:"summaryDetail"`
			KeyStatistics struct {
				TrailingEPS wrappedValue `json:"trailingEps"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// FetchDetailedQuote retrieves a fundamentals-enriched QuoteRecord. The path
// requires a crumb; when the handshake fails, the provider rejects the token,
// or the payload cannot be decoded, the service falls back to the basic
// unified-quote path and returns a record with Fundamentals absent.
// Fundamentals are a nice-to-have; basic price data is not.
func (s *Service) FetchDetailedQuote(ctx context.Context, symbol string) (*QuoteRecord, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "quote.FetchDetailedQuote")
	defer span.End()

	subLog := log.With().Str("Symbol", symbol).Logger()

	rec, err := s.fetchDetailedQuote(ctx, symbol)
	if err == nil {
		return rec, nil
	}

	if errors.Is(err, ErrAuthenticationFailed) || errors.Is(err, ErrDecodeFailed) {
		subLog.Warn().Err(err).Msg("detailed quote failed; falling back to unified path")
		span.SetStatus(codes.Error, "fell back to unified quote")
		quotes := s.FetchUnifiedQuotes(ctx, []string{symbol})
		if fallback, ok := quotes[symbol]; ok {
			return fallback, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	return nil, err
}

func (s *Service) fetchDetailedQuote(ctx context.Context, symbol string) (*QuoteRecord, error) {
	subLog := log.With().Str("Symbol", symbol).Logger()

	crumb, err := s.crumb.getValidToken(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=price,summaryDetail,defaultKeyStatistics&crumb=%s",
		quoteHost(), url.PathEscape(symbol), url.QueryEscape(crumb))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	// authenticated requests must ride the session that produced the crumb
	resp, err := s.crumb.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// stale crumb; drop it so the next call re-runs the handshake
		s.crumb.invalidate()
		subLog.Warn().Int("HTTPResponseStatusCode", resp.StatusCode).Msg("provider rejected crumb")
		return nil, fmt.Errorf("%w: status %d", ErrAuthenticationFailed, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	var summary quoteSummaryResponse
	if err := json.Unmarshal(body, &summary); err != nil {
		subLog.Error().Err(err).Msg("could not unmarshal quote summary payload")
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	if summary.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecodeFailed, summary.QuoteSummary.Error.Description)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: empty result", ErrDecodeFailed)
	}

	raw := summary.QuoteSummary.Result[0]
	rec := &QuoteRecord{
		Symbol:                     raw.Price.Symbol,
		ShortName:                  raw.Price.ShortName,
		LongName:                   raw.Price.LongName,
		Market:                     InferMarket(raw.Price.Symbol),
		Currency:                   raw.Price.Currency,
		RegularMarketPrice:         raw.Price.RegularMarketPrice.Raw,
		RegularMarketChange:        raw.Price.RegularMarketChange.Raw,
		RegularMarketChangePercent: raw.Price.RegularMarketChangePercent.Raw,
		PreviousClose:              raw.Price.RegularMarketPreviousClose.Raw,
		Volume:                     int64(raw.Price.RegularMarketVolume.Raw),
		Session:                    sessionFromState(raw.Price.MarketState),
		Fundamentals: &Fundamentals{
			TrailingPE:       raw.SummaryDetail.TrailingPE.Raw,
			EPS:              raw.KeyStatistics.TrailingEPS.Raw,
			DividendYield:    raw.SummaryDetail.DividendYield.Raw,
			FiftyTwoWeekLow:  raw.SummaryDetail.FiftyTwoWeekLow.Raw,
			FiftyTwoWeekHigh: raw.SummaryDetail.FiftyTwoWeekHigh.Raw,
			MarketCap:        raw.Price.MarketCap.Raw,
		},
	}
	if raw.Price.PreMarketPrice != nil {
		rec.PreMarketPrice = &raw.Price.PreMarketPrice.Raw
	}
	if raw.Price.PostMarketPrice != nil {
		rec.PostMarketPrice = &raw.Price.PostMarketPrice.Raw
	}
	return rec, nil
}
