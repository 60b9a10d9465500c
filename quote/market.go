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

import "strings"

// Market identifies which exchange region a symbol trades in.
type Market string

const (
	MarketUS       Market = "US"
	MarketJapan    Market = "JP"
	MarketHongKong Market = "HK"
	MarketChina    Market = "CN"
)

// InferMarket guesses a symbol's market from its suffix. This is a
// heuristic: an unlisted or malformed symbol falls through to US. There is
// no authoritative exchange registry backing this mapping.
func InferMarket(symbol string) Market {
	switch {
	case strings.HasSuffix(symbol, ".T"):
		return MarketJapan
	case strings.HasSuffix(symbol, ".HK"):
		return MarketHongKong
	case strings.HasSuffix(symbol, ".SS"), strings.HasSuffix(symbol, ".SZ"):
		return MarketChina
	default:
		return MarketUS
	}
}

// CanonicalSymbol maps a bare exchange code to the suffix-qualified form used
// throughout the rest of the system, so downstream code never needs to know
// which upstream produced it.
func CanonicalSymbol(market Market, code string) string {
	code = strings.TrimSpace(code)
	switch market {
	case MarketJapan:
		if strings.HasSuffix(code, ".T") {
			return code
		}
		return code + ".T"
	case MarketHongKong:
		if strings.HasSuffix(code, ".HK") {
			return code
		}
		// HK codes are zero-padded to four digits
		for len(code) < 4 {
			code = "0" + code
		}
		return code + ".HK"
	case MarketChina:
		if strings.HasSuffix(code, ".SS") || strings.HasSuffix(code, ".SZ") {
			return code
		}
		// Shanghai listings start with 6; everything else trades in Shenzhen
		if strings.HasPrefix(code, "6") {
			return code + ".SS"
		}
		return code + ".SZ"
	default:
		return strings.ToUpper(code)
	}
}
