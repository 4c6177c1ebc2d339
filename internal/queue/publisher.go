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

// Package queue publishes retrieved messages to a Redis list for downstream
// workers to consume.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/flowtask/mailconnector/internal/mail"
)

// Publisher sends retrieval results to Redis as JSON task envelopes.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a new Redis publisher targeting the specified queue.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// taskEnvelope wraps a retrieval result for Redis transport.
type taskEnvelope struct {
	ID          string               `json:"id"`
	Account     string               `json:"account"`
	PublishedAt string               `json:"published_at"`
	Result      mail.RetrievalResult `json:"result"`
}

// PublishResult serialises a retrieval result and pushes it onto the queue.
func (p *Publisher) PublishResult(ctx context.Context, account string, result mail.RetrievalResult) error {
	taskID := uuid.New().String()

	envelope := taskEnvelope{
		ID:          taskID,
		Account:     account,
		PublishedAt: time.Now().UTC().Format(time.RFC3339),
		Result:      result,
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal task envelope: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, payload).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("published retrieval result",
		"task_id", taskID,
		"message_id", result.ID,
		"account", account,
		"queue", p.queueName,
	)

	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
