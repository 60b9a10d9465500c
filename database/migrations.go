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

package database

import (
	"context"

	"github.com/rs/zerolog/log"
)

// One-shot migration bookkeeping. A named migration is recorded once it has
// run to completion; re-invoking it during startup races is a no-op.

// MigrationComplete reports whether the named migration has already run.
func MigrationComplete(ctx context.Context, name string) (bool, error) {
	subLog := log.With().Str("Migration", name).Logger()
	var cnt int
	err := pool.QueryRow(ctx, `SELECT count(*) FROM migrations WHERE name=$1`, name).Scan(&cnt)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not query migrations table")
		return false, err
	}
	return cnt > 0, nil
}

// MarkMigrationComplete records the named migration as finished.
func MarkMigrationComplete(ctx context.Context, name string) error {
	subLog := log.With().Str("Migration", name).Logger()
	_, err := pool.Exec(ctx, `INSERT INTO migrations (name, completed) VALUES ($1, now()) ON CONFLICT DO NOTHING`, name)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not record migration")
		return err
	}
	subLog.Info().Msg("migration recorded as complete")
	return nil
}
