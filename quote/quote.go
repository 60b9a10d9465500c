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

// Package quote fetches real-time quotes, historical price series, and
// market mover rankings from upstream financial data providers and
// normalizes them into a single model.
package quote

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// MarketSession describes the trading session a quote was captured in.
type MarketSession string

const (
	SessionPre     MarketSession = "PRE"
	SessionRegular MarketSession = "REGULAR"
	SessionPost    MarketSession = "POST"
	SessionClosed  MarketSession = "CLOSED"
)

// Fundamentals holds valuation statistics only available through the
// authenticated detailed-quote path.
type Fundamentals struct {
	TrailingPE       float64 `json:"trailingPe"`
	EPS              float64 `json:"eps"`
	DividendYield    float64 `json:"dividendYield"`
	FiftyTwoWeekLow  float64 `json:"fiftyTwoWeekLow"`
	FiftyTwoWeekHigh float64 `json:"fiftyTwoWeekHigh"`
	MarketCap        float64 `json:"marketCap"`
}

// QuoteRecord is the normalized snapshot of a symbol's current market data.
// It is produced fresh on every fetch and never persisted.
type QuoteRecord struct {
	Symbol                     string        `json:"symbol"`
	ShortName                  string        `json:"shortName"`
	LongName                   string        `json:"longName,omitempty"`
	Market                     Market        `json:"market"`
	Currency                   string        `json:"currency"`
	RegularMarketPrice         float64       `json:"regularMarketPrice"`
	RegularMarketChange        float64       `json:"regularMarketChange"`
	RegularMarketChangePercent float64       `json:"regularMarketChangePercent"`
	PreviousClose              float64       `json:"previousClose"`
	Volume                     int64         `json:"volume,omitempty"`
	Session                    MarketSession `json:"session"`

	// extended-hours prices; nil outside pre/post sessions
	PreMarketPrice  *float64 `json:"preMarketPrice,omitempty"`
	PostMarketPrice *float64 `json:"postMarketPrice,omitempty"`

	// nil unless the detailed-quote path succeeded
	Fundamentals *Fundamentals `json:"fundamentals,omitempty"`
}

// PricePoint is one bar of a historical series, immutable once fetched.
type PricePoint struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Currency string    `json:"currency"`
}

// Service is the quote acquisition service. Construct one at process start
// with NewService and pass it to consumers; it owns the authentication token
// lifecycle and an in-memory cache of historical series.
type Service struct {
	client *http.Client
	crumb  *crumbStore
	series *lru.Cache
}

// NewService creates a quote service configured from viper.
func NewService() *Service {
	timeout := viper.GetDuration("quote.timeout")
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	// the crumb handshake needs a cookie session; everything else is
	// stateless
	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Panic().Err(err).Msg("could not create cookie jar")
	}

	cacheSize := viper.GetInt("quote.series_cache_size")
	if cacheSize == 0 {
		cacheSize = 256
	}
	series, err := lru.New(cacheSize)
	if err != nil {
		log.Panic().Err(err).Msg("could not create series LRU cache")
	}

	client := &http.Client{Timeout: timeout}
	return &Service{
		client: client,
		crumb: &crumbStore{
			client: &http.Client{Timeout: timeout, Jar: jar},
		},
		series: series,
	}
}

// HTTPClient exposes the service's HTTP client so tests can attach a mock
// transport.
func (s *Service) HTTPClient() *http.Client {
	return s.client
}

// AuthHTTPClient exposes the cookie-session client used for the crumb
// handshake and authenticated requests.
func (s *Service) AuthHTTPClient() *http.Client {
	return s.crumb.client
}

func quoteHost() string {
	host := viper.GetString("quote.api_host")
	if host == "" {
		host = "https://query1.finance.yahoo.com"
	}
	return host
}
