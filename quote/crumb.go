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
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// crumbStore owns the short-lived authentication token required by the
// detailed-quote path. All access goes through getValidToken; the mutex
// serializes refreshes so two concurrent detailed-quote calls cannot race to
// re-run the handshake or observe a half-updated token.
type crumbStore struct {
	mu      sync.Mutex
	client  *http.Client // carries the session cookie jar
	crumb   string
	expires time.Time
}

// getValidToken returns a cached crumb, re-running the two-step handshake
// when the cached token is absent or expired. Expiry is checked lazily here
// rather than by a background timer.
func (c *crumbStore) getValidToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.crumb != "" && time.Now().Before(c.expires) {
		return c.crumb, nil
	}

	// step 1: establish a session cookie by visiting the landing page
	landing := viper.GetString("quote.landing_url")
	if landing == "" {
		landing = "https://finance.yahoo.com"
	}
	if err := c.visit(ctx, landing); err != nil {
		log.Warn().Err(err).Msg("crumb handshake: could not establish session cookie")
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	// step 2: request a token bound to that cookie
	crumbURL := fmt.Sprintf("%s/v1/test/getcrumb", quoteHost())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, crumbURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("crumb handshake: token request failed")
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if resp.StatusCode >= 400 {
		log.Warn().Int("HTTPResponseStatusCode", resp.StatusCode).Msg("crumb handshake: token request rejected")
		return "", fmt.Errorf("%w: status %d", ErrAuthenticationFailed, resp.StatusCode)
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return "", fmt.Errorf("%w: empty token", ErrAuthenticationFailed)
	}

	lifetime := viper.GetDuration("quote.crumb_ttl")
	if lifetime == 0 {
		lifetime = time.Hour
	}

	c.crumb = crumb
	c.expires = time.Now().Add(lifetime)
	log.Debug().Time("Expires", c.expires).Msg("crumb refreshed")
	return c.crumb, nil
}

// invalidate drops the cached token so the next call re-runs the handshake.
func (c *crumbStore) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crumb = ""
	c.expires = time.Time{}
}

func (c *crumbStore) visit(ctx context.Context, pageURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// drain so the connection can be reused; content is irrelevant
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("landing page returned status %d", resp.StatusCode)
	}
	return nil
}
