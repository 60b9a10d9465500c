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

// Package fx fetches and caches foreign-exchange rates and converts amounts
// between currencies.
package fx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/folio-vault/folio-api/observability/opentelemetry"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrRateUnavailable indicates no fresh rate exists for a currency pair.
	// Callers must treat this distinctly from a zero rate; silently zeroing
	// out a valuation is forbidden.
	ErrRateUnavailable = errors.New("no fresh exchange rate available")

	// ErrRefreshFailed indicates the batch rate fetch could not complete.
	ErrRefreshFailed = errors.New("could not refresh exchange rates")
)

type pairKey struct {
	From string
	To   string
}

type rateEntry struct {
	Rate     float64
	Captured time.Time
}

// Service caches exchange rates keyed by (from, to) with a fixed TTL.
// Concurrent readers are safe; refreshes are serialized by the write lock so
// two refreshes cannot interleave for the same pair.
type Service struct {
	mu     sync.RWMutex
	rates  map[pairKey]rateEntry
	client *http.Client
}

// NewService creates an FX service configured from viper.
func NewService() *Service {
	timeout := viper.GetDuration("fx.timeout")
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		rates:  make(map[pairKey]rateEntry),
		client: &http.Client{Timeout: timeout},
	}
}

// HTTPClient exposes the service's HTTP client so tests can attach a mock
// transport.
func (s *Service) HTTPClient() *http.Client {
	return s.client
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// RefreshRates batch-fetches rates for every currency in the set against
// base and stores both directions of each pair with a capture time.
func (s *Service) RefreshRates(ctx context.Context, currencies []string, base string) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "fx.RefreshRates")
	defer span.End()

	subLog := log.With().Str("Base", base).Strs("Currencies", currencies).Logger()

	host := viper.GetString("fx.api_host")
	if host == "" {
		host = "https://open.er-api.com"
	}
	reqURL := fmt.Sprintf("%s/v6/latest/%s", host, base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate request failed")
		subLog.Error().Stack().Err(err).Msg("fx rate request failed")
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if resp.StatusCode >= 400 {
		subLog.Error().Int("HTTPResponseStatusCode", resp.StatusCode).Msg("fx rate request returned error status")
		return fmt.Errorf("%w: status %d", ErrRefreshFailed, resp.StatusCode)
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		subLog.Error().Err(err).Msg("could not unmarshal fx payload")
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range currencies {
		if cur == base {
			continue
		}
		rate, ok := parsed.Rates[cur]
		if !ok || rate == 0 {
			subLog.Warn().Str("Currency", cur).Msg("rate missing from fx payload")
			continue
		}
		s.rates[pairKey{From: base, To: cur}] = rateEntry{Rate: rate, Captured: now}
		s.rates[pairKey{From: cur, To: base}] = rateEntry{Rate: 1.0 / rate, Captured: now}
	}

	subLog.Debug().Int("NumPairs", len(s.rates)).Msg("fx rates refreshed")
	return nil
}

// GetRate returns a cached conversion rate. Identical currencies short
// circuit to 1.0 without touching the cache. The boolean is false when no
// fresh rate exists; the caller must not treat that as a zero rate.
func (s *Service) GetRate(from, to string) (float64, bool) {
	if from == to {
		return 1.0, true
	}

	s.mu.RLock()
	entry, ok := s.rates[pairKey{From: from, To: to}]
	s.mu.RUnlock()
	if !ok {
		return 0, false
	}

	if time.Since(entry.Captured) > rateTTL() {
		return 0, false
	}
	return entry.Rate, true
}

// Convert converts amount from one currency to another using the cached
// rate. The boolean follows GetRate semantics.
func (s *Service) Convert(amount float64, from, to string) (float64, bool) {
	rate, ok := s.GetRate(from, to)
	if !ok {
		return 0, false
	}
	return amount * rate, true
}

func rateTTL() time.Duration {
	ttl := viper.GetDuration("fx.ttl")
	if ttl == 0 {
		ttl = time.Hour
	}
	return ttl
}
