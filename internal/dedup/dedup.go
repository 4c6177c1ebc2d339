// Copyright (c) 2026 the mailconnector authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dedup keeps the relay daemon from re-publishing a message when
// consecutive poll windows return it again. Seen message IDs live in Redis
// under a TTL, claimed atomically with SETNX.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a seen message ID is remembered. Poll windows are
// minutes apart, so a day covers any realistic overlap.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "mailrelay:seen:"

// Filter tracks which message IDs have already been published.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a dedup filter backed by Redis.
func NewFilter(rdb *redis.Client) *Filter {
	return NewFilterTTL(rdb, DefaultTTL)
}

// NewFilterTTL creates a dedup filter with a custom retention window.
func NewFilterTTL(rdb *redis.Client, ttl time.Duration) *Filter {
	return &Filter{rdb: rdb, ttl: ttl}
}

// IsNew atomically claims the message ID and reports whether this is its
// first sighting. A true result means the caller owns publishing it.
func (f *Filter) IsNew(ctx context.Context, messageID string) (bool, error) {
	set, err := f.rdb.SetNX(ctx, keyPrefix+messageID, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}
	return set, nil
}

// Forget releases a claimed message ID so the next poll pass retries it.
// Used when publishing fails after the claim succeeded.
func (f *Filter) Forget(ctx context.Context, messageID string) error {
	if err := f.rdb.Del(ctx, keyPrefix+messageID).Err(); err != nil {
		return fmt.Errorf("dedup DEL: %w", err)
	}
	return nil
}
