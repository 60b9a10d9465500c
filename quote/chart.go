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
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/folio-vault/folio-api/observability/opentelemetry"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Interval is the spacing between points of a historical series.
type Interval string

const (
	IntervalDaily   Interval = "1d"
	IntervalWeekly  Interval = "1wk"
	IntervalMonthly Interval = "1mo"
)

// Range is the lookback period of a historical series request.
type Range string

const (
	RangeOneMonth  Range = "1mo"
	RangeSixMonths Range = "6mo"
	RangeOneYear   Range = "1y"
	RangeFiveYears Range = "5y"
	RangeTenYears  Range = "10y"
	RangeMax       Range = "max"
)

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []float64 `json:"open"`
					High  []float64 `json:"high"`
					Low   []float64 `json:"low"`
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type seriesCacheKey struct {
	Symbol   string
	Interval Interval
	Range    Range
}

// FetchHistoricalSeries retrieves the historical price series for symbol at
// the requested interval and range. Series are cached in-memory so a backfill
// run fetches each symbol once, not once per day.
func (s *Service) FetchHistoricalSeries(ctx context.Context, symbol string, interval Interval, rng Range) ([]PricePoint, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "quote.FetchHistoricalSeries")
	defer span.End()

	subLog := log.With().Str("Symbol", symbol).Str("Interval", string(interval)).Str("Range", string(rng)).Logger()

	if strings.TrimSpace(symbol) == "" || strings.ContainsAny(symbol, " /?") {
		return nil, fmt.Errorf("%w: symbol %q", ErrInvalidRequest, symbol)
	}

	key := seriesCacheKey{Symbol: symbol, Interval: interval, Range: rng}
	if cached, ok := s.series.Get(key); ok {
		return cached.([]PricePoint), nil
	}

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		quoteHost(), url.PathEscape(symbol), interval, rng)
	span.SetAttributes(
		attribute.KeyValue{Key: "Url", Value: attribute.StringValue(reqURL)},
		attribute.KeyValue{Key: "Symbol", Value: attribute.StringValue(symbol)},
	)

	body, err := s.get(ctx, reqURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chart request failed")
		subLog.Warn().Err(err).Msg("chart request failed")
		return nil, err
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not unmarshal json")
		subLog.Error().Err(err).Msg("could not unmarshal chart payload")
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	if resp.Chart.Error != nil {
		subLog.Warn().Str("UpstreamCode", resp.Chart.Error.Code).Msg("chart endpoint returned error")
		return nil, fmt.Errorf("%w: %s", ErrNoData, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: empty result for %s", ErrDecodeFailed, symbol)
	}

	result := resp.Chart.Result[0]
	if len(result.Timestamp) == 0 {
		return nil, fmt.Errorf("%w: no timestamps for %s", ErrNoData, symbol)
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no quote indicators for %s", ErrDecodeFailed, symbol)
	}

	bars := result.Indicators.Quote[0]
	points := make([]PricePoint, 0, len(result.Timestamp))
	for idx, ts := range result.Timestamp {
		if idx >= len(bars.Close) {
			break
		}
		closePrice := bars.Close[idx]
		// providers emit null bars for halted days; skip them
		if closePrice == 0 || math.IsNaN(closePrice) {
			continue
		}
		point := PricePoint{
			Date:     time.Unix(ts, 0).UTC(),
			Close:    closePrice,
			Currency: result.Meta.Currency,
		}
		if idx < len(bars.Open) {
			point.Open = bars.Open[idx]
		}
		if idx < len(bars.High) {
			point.High = bars.High[idx]
		}
		if idx < len(bars.Low) {
			point.Low = bars.Low[idx]
		}
		points = append(points, point)
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: all bars empty for %s", ErrNoData, symbol)
	}

	s.series.Add(key, points)
	return points, nil
}

// PricePointOnOrBefore returns the latest point dated at or before date, for
// valuing holdings on non-trading days. The boolean is false when the series
// has no point early enough.
func PricePointOnOrBefore(points []PricePoint, date time.Time) (PricePoint, bool) {
	// series arrive oldest-to-newest; find first point after date
	idx := sort.Search(len(points), func(i int) bool {
		return points[i].Date.After(date)
	})
	if idx == 0 {
		return PricePoint{}, false
	}
	return points[idx-1], true
}

// get performs a GET request with the service timeout, mapping transport and
// HTTP status failures onto the quote error taxonomy.
func (s *Service) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	return body, nil
}
