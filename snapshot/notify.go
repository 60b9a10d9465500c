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

package snapshot

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SnapshotEvent is emitted after every successful upsert so consumers (e.g.
// a presentation layer) can react to recomputed valuations without polling.
type SnapshotEvent struct {
	Date        time.Time
	PortfolioID uuid.UUID
	TotalValue  float64
	Partial     bool
}

type notifier struct {
	mu          sync.Mutex
	subscribers []chan SnapshotEvent
}

func newNotifier() *notifier {
	return &notifier{}
}

func (n *notifier) subscribe() <-chan SnapshotEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan SnapshotEvent, 16)
	n.subscribers = append(n.subscribers, ch)
	return ch
}

// emit delivers the event to every subscriber without blocking; a slow
// subscriber drops events rather than stalling the engine.
func (n *notifier) emit(evt SnapshotEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subscribers {
		select {
		case ch <- evt:
		default:
			log.Warn().Time("Date", evt.Date).Msg("subscriber channel full; dropping snapshot event")
		}
	}
}

// Subscribe registers a consumer for snapshot-updated events.
func (e *Engine) Subscribe() <-chan SnapshotEvent {
	return e.notify.subscribe()
}
