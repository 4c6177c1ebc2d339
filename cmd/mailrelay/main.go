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

// mailrelay — mailbox polling daemon
//
// Polls configured Microsoft 365 mailboxes through the retrieval engine and
// publishes new messages to a Redis queue for downstream workers. It:
//  1. Loads account configuration from config.yaml
//  2. Connects to Redis
//  3. Builds an OAuth2 client-credentials Graph client per account
//  4. Runs one retrieve pass per account at each poll interval
//  5. Handles graceful shutdown on SIGTERM/SIGINT
//
// Usage:
//
//	go run ./cmd/mailrelay/ [--once]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/flowtask/mailconnector/internal/config"
	"github.com/flowtask/mailconnector/internal/dedup"
	"github.com/flowtask/mailconnector/internal/graph"
	"github.com/flowtask/mailconnector/internal/queue"
	"github.com/flowtask/mailconnector/internal/retrieve"
)

// account bundles an engine with its per-call settings and options.
type account struct {
	alias    string
	engine   *retrieve.Engine
	settings retrieve.Settings
	options  retrieve.Options
}

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	onceFlag := flag.Bool("once", false, "Run a single poll pass and exit")
	flag.Parse()

	slog.Info("starting mailrelay daemon")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"accounts", len(cfg.Accounts),
		"poll_interval", cfg.PollInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	publisher := queue.NewPublisher(rdb, cfg.ResultsQueue)
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Dedup Filter ---
	filter := dedup.NewFilter(rdb)

	// --- Build accounts ---
	accounts := make([]account, 0, len(cfg.Accounts))
	for _, acc := range cfg.Accounts {
		creds := &clientcredentials.Config{
			ClientID:     acc.ClientID,
			ClientSecret: acc.ClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", acc.TenantID),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		}
		client := graph.NewClient(creds.Client(ctx), "")

		accounts = append(accounts, account{
			alias:  acc.Alias,
			engine: retrieve.NewEngine(client),
			settings: retrieve.Settings{
				Mailbox:    acc.Mailbox,
				MailFolder: acc.MailFolder,
				Username:   acc.Mailbox,
				Password:   acc.ClientSecret,
				AppID:      acc.ClientID,
				TenantID:   acc.TenantID,
			},
			options: retrieve.Options{
				MaxMessages:       acc.MaxMessages,
				SenderFilter:      acc.SenderFilter,
				SubjectFilter:     acc.SubjectFilter,
				UnreadOnly:        acc.UnreadOnly,
				AttachmentsOnly:   acc.AttachmentsOnly,
				IgnoreAttachments: acc.AttachmentDir == "",
				MarkAsRead:        acc.MarkAsRead,
				AttachmentDir:     acc.AttachmentDir,
				OnCollision:       retrieve.Rename,
			},
		})
	}

	pollAll(ctx, accounts, filter, publisher)
	if *onceFlag {
		return
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return
		case <-ticker.C:
			pollAll(ctx, accounts, filter, publisher)
		}
	}
}

// pollAll runs one retrieve pass per account and publishes unseen results.
func pollAll(ctx context.Context, accounts []account, filter *dedup.Filter, publisher *queue.Publisher) {
	for _, acc := range accounts {
		if ctx.Err() != nil {
			return
		}

		results, err := acc.engine.Retrieve(ctx, acc.settings, acc.options)
		if err != nil {
			slog.Error("retrieve failed", "account", acc.alias, "error", err)
			continue
		}

		published := 0
		for _, res := range results {
			isNew, err := filter.IsNew(ctx, res.ID)
			if err != nil {
				slog.Warn("dedup check failed, publishing anyway", "error", err)
			} else if !isNew {
				continue
			}

			if err := publisher.PublishResult(ctx, acc.alias, res); err != nil {
				slog.Error("publish failed",
					"account", acc.alias,
					"message_id", res.ID,
					"error", err,
				)
				// Release the dedup claim so the next pass retries it.
				if ferr := filter.Forget(ctx, res.ID); ferr != nil {
					slog.Warn("failed to release dedup claim", "error", ferr)
				}
				continue
			}
			published++
		}

		slog.Info("poll pass complete",
			"account", acc.alias,
			"retrieved", len(results),
			"published", published,
		)
	}
}
