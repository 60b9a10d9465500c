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

package common

import (
	"time"

	"github.com/rs/zerolog/log"
)

// GetTimezone returns the reference timezone snapshot dates are keyed in.
// All daily valuation records use midnight in this zone regardless of which
// exchanges the underlying holdings trade on.
func GetTimezone() *time.Location {
	tz, err := time.LoadLocation("America/New_York") // New York is the reference time
	if err != nil {
		log.Panic().Err(err).Msg("could not load timezone")
	}
	return tz
}

// MidnightInTz truncates t to midnight in the reference timezone.
func MidnightInTz(t time.Time) time.Time {
	tz := GetTimezone()
	t = t.In(tz)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, tz)
}

// SameDate reports whether a and b fall on the same civil date in the
// reference timezone.
func SameDate(a, b time.Time) bool {
	return MidnightInTz(a).Equal(MidnightInTz(b))
}
