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

	"github.com/folio-vault/folio-api/observability/opentelemetry"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// RankingType selects which mover list to fetch.
type RankingType string

const (
	RankGainers    RankingType = "gainers"
	RankLosers     RankingType = "losers"
	RankMostActive RankingType = "most-active"
)

// FetchMarketMovers returns a ranked gainer/loser/most-active list for the
// requested market. Three structurally different upstream APIs serve these
// rankings; each adapter normalizes its payload into QuoteRecord with
// canonical suffix-qualified symbols so callers never see the data's origin.
func (s *Service) FetchMarketMovers(ctx context.Context, market Market, ranking RankingType) ([]*QuoteRecord, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "quote.FetchMarketMovers")
	defer span.End()
	span.SetAttributes(
		attribute.KeyValue{Key: "Market", Value: attribute.StringValue(string(market))},
		attribute.KeyValue{Key: "Ranking", Value: attribute.StringValue(string(ranking))},
	)

	switch market {
	case MarketUS, MarketHongKong:
		return s.fetchScreenerMovers(ctx, market, ranking)
	case MarketChina:
		return s.fetchChinaMovers(ctx, ranking)
	case MarketJapan:
		return s.fetchJapanMovers(ctx, ranking)
	default:
		return nil, fmt.Errorf("%w: unknown market %q", ErrInvalidRequest, market)
	}
}

// screener API (US and Hong Kong)

type screenerResponse struct {
	Finance struct {
		Result []struct {
			Quotes []struct {
				Symbol                     string       `json:"symbol"`
				ShortName                  string       `json:"shortName"`
				Currency                   string       `json:"currency"`
				RegularMarketPrice         wrappedValue `json:"regularMarketPrice"`
				RegularMarketChange        wrappedValue `json:"regularMarketChange"`
				RegularMarketChangePercent wrappedValue `json:"regularMarketChangePercent"`
				RegularMarketVolume        wrappedValue `json:"regularMarketVolume"`
			} `json:"quotes"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"finance"`
}

func (s *Service) fetchScreenerMovers(ctx context.Context, market Market, ranking RankingType) ([]*QuoteRecord, error) {
	subLog := log.With().Str("Market", string(market)).Str("Ranking", string(ranking)).Logger()

	var scrID string
	switch ranking {
	case RankGainers:
		scrID = "day_gainers"
	case RankLosers:
		scrID = "day_losers"
	case RankMostActive:
		scrID = "most_actives"
	default:
		return nil, fmt.Errorf("%w: unknown ranking %q", ErrInvalidRequest, ranking)
	}

	region := "US"
	if market == MarketHongKong {
		region = "HK"
	}

	reqURL := fmt.Sprintf("%s/v1/finance/screener/predefined/saved?scrIds=%s&count=%d&region=%s",
		quoteHost(), scrID, moverCount(), region)

	body, err := s.get(ctx, reqURL)
	if err != nil {
		subLog.Warn().Err(err).Msg("screener request failed")
		return nil, err
	}

	var resp screenerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		subLog.Error().Err(err).Msg("could not unmarshal screener payload")
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	if resp.Finance.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoData, resp.Finance.Error.Description)
	}
	if len(resp.Finance.Result) == 0 {
		return nil, fmt.Errorf("%w: empty screener result", ErrNoData)
	}

	quotes := resp.Finance.Result[0].Quotes
	records := make([]*QuoteRecord, 0, len(quotes))
	for _, q := range quotes {
		records = append(records, &QuoteRecord{
			Symbol:                     CanonicalSymbol(market, q.Symbol),
			ShortName:                  q.ShortName,
			Market:                     market,
			Currency:                   q.Currency,
			RegularMarketPrice:         q.RegularMarketPrice.Raw,
			RegularMarketChange:        q.RegularMarketChange.Raw,
			RegularMarketChangePercent: q.RegularMarketChangePercent.Raw,
			Volume:                     int64(q.RegularMarketVolume.Raw),
			Session:                    SessionRegular,
		})
	}
	return records, nil
}

// mainland China ranking API
//
// Fields come back under terse positional keys; the struct tags below are
// the translation table. Sort direction is encoded in the po parameter
// rather than in the field id.

type chinaRankRow struct {
	Price         float64 `json:"f2"`
	ChangePercent float64 `json:"f3"`
	Change        float64 `json:"f4"`
	Volume        int64   `json:"f5"`
	Code          string  `json:"f12"`
	Name          string  `json:"f14"`
}

type chinaRankResponse struct {
	Data *struct {
		Total int            `json:"total"`
		Diff  []chinaRankRow `json:"diff"`
	} `json:"data"`
}

func (s *Service) fetchChinaMovers(ctx context.Context, ranking RankingType) ([]*QuoteRecord, error) {
	subLog := log.With().Str("Ranking", string(ranking)).Logger()

	// po=1 sorts descending, po=0 ascending; fid selects the sort field
	sortField := "f3"
	sortDir := 1
	switch ranking {
	case RankGainers:
	case RankLosers:
		sortDir = 0
	case RankMostActive:
		sortField = "f5"
	default:
		return nil, fmt.Errorf("%w: unknown ranking %q", ErrInvalidRequest, ranking)
	}

	host := viper.GetString("quote.cn_rank_host")
	if host == "" {
		host = "https://push2.eastmoney.com"
	}
	reqURL := fmt.Sprintf("%s/api/qt/clist/get?pn=1&pz=%d&po=%d&fid=%s&fields=f2,f3,f4,f5,f12,f14",
		host, moverCount(), sortDir, sortField)

	body, err := s.get(ctx, reqURL)
	if err != nil {
		subLog.Warn().Err(err).Msg("cn ranking request failed")
		return nil, err
	}

	var resp chinaRankResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		subLog.Error().Err(err).Msg("could not unmarshal cn ranking payload")
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	if resp.Data == nil || len(resp.Data.Diff) == 0 {
		return nil, fmt.Errorf("%w: empty cn ranking", ErrNoData)
	}

	records := make([]*QuoteRecord, 0, len(resp.Data.Diff))
	for _, row := range resp.Data.Diff {
		prev := row.Price - row.Change
		records = append(records, &QuoteRecord{
			Symbol:                     CanonicalSymbol(MarketChina, row.Code),
			ShortName:                  row.Name,
			Market:                     MarketChina,
			Currency:                   "CNY",
			RegularMarketPrice:         row.Price,
			RegularMarketChange:        row.Change,
			RegularMarketChangePercent: row.ChangePercent,
			PreviousClose:              prev,
			Volume:                     row.Volume,
			Session:                    SessionRegular,
		})
	}
	return records, nil
}

// Japan scanner API
//
// Each result row is a heterogeneous array mixing strings and numbers:
// [code, name, price, change, changePercent, volume]. Rows decode into
// []Value and convert through the typed accessors; malformed rows are
// dropped with a warning rather than failing the list.

type japanScanResponse struct {
	Result [][]Value `json:"result"`
}

func (s *Service) fetchJapanMovers(ctx context.Context, ranking RankingType) ([]*QuoteRecord, error) {
	subLog := log.With().Str("Ranking", string(ranking)).Logger()

	host := viper.GetString("quote.jp_scan_host")
	if host == "" {
		host = "https://scanner.kabutan.jp"
	}
	reqURL := fmt.Sprintf("%s/api/v1/scan?ranking=%s&limit=%d", host, ranking, moverCount())

	body, err := s.get(ctx, reqURL)
	if err != nil {
		subLog.Warn().Err(err).Msg("jp scanner request failed")
		return nil, err
	}

	var resp japanScanResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		subLog.Error().Err(err).Msg("could not unmarshal jp scanner payload")
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	if len(resp.Result) == 0 {
		return nil, fmt.Errorf("%w: empty jp scanner result", ErrNoData)
	}

	records := make([]*QuoteRecord, 0, len(resp.Result))
	for idx, row := range resp.Result {
		rec, ok := japanRowToRecord(row)
		if !ok {
			subLog.Warn().Int("Row", idx).Msg("dropping malformed jp scanner row")
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: all jp scanner rows malformed", ErrDecodeFailed)
	}
	return records, nil
}

func japanRowToRecord(row []Value) (*QuoteRecord, bool) {
	if len(row) < 6 {
		return nil, false
	}

	code, ok := row[0].AsString()
	if !ok {
		// some rows carry bare numeric codes
		n, numOk := row[0].AsNumber()
		if !numOk {
			return nil, false
		}
		code = fmt.Sprintf("%.0f", n)
	}
	name, _ := row[1].AsString()
	price, ok := row[2].AsNumber()
	if !ok {
		return nil, false
	}
	change, ok := row[3].AsNumber()
	if !ok {
		return nil, false
	}
	changePct, ok := row[4].AsNumber()
	if !ok {
		return nil, false
	}
	volume, _ := row[5].AsNumber()

	return &QuoteRecord{
		Symbol:                     CanonicalSymbol(MarketJapan, code),
		ShortName:                  name,
		Market:                     MarketJapan,
		Currency:                   "JPY",
		RegularMarketPrice:         price,
		RegularMarketChange:        change,
		RegularMarketChangePercent: changePct,
		PreviousClose:              price - change,
		Volume:                     int64(volume),
		Session:                    SessionRegular,
	}, true
}

func moverCount() int {
	cnt := viper.GetInt("quote.mover_count")
	if cnt == 0 {
		cnt = 25
	}
	return cnt
}
