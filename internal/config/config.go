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

// Package config loads the relay daemon's configuration from config.yaml
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AccountConfig holds one watched mailbox: credentials for the Graph
// client-credentials flow plus the retrieval filters to apply each poll.
type AccountConfig struct {
	Alias        string `yaml:"alias"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	Mailbox    string `yaml:"mailbox"`
	MailFolder string `yaml:"mail_folder"`

	MaxMessages     int    `yaml:"max_messages"`
	SenderFilter    string `yaml:"sender_filter"`
	SubjectFilter   string `yaml:"subject_filter"`
	UnreadOnly      bool   `yaml:"unread_only"`
	AttachmentsOnly bool   `yaml:"attachments_only"`
	AttachmentDir   string `yaml:"attachment_dir"`
	MarkAsRead      bool   `yaml:"mark_as_read"`
}

// Config holds all configuration for the relay daemon.
type Config struct {
	Accounts []AccountConfig

	PollInterval time.Duration

	RedisURL     string
	ResultsQueue string
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Accounts []AccountConfig `yaml:"accounts"`
	Redis    struct {
		URL    string `yaml:"url"`
		Queues struct {
			Results string `yaml:"results"`
		} `yaml:"queues"`
	} `yaml:"redis"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		PollInterval: envOrDefaultDuration("POLL_INTERVAL", 60*time.Second),
		RedisURL:     firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		ResultsQueue: firstNonEmpty(raw.Redis.Queues.Results, envOrDefault("RESULTS_QUEUE", "mail-results")),
	}

	for _, acc := range raw.Accounts {
		// Skip accounts with empty credentials (commented out in YAML)
		if acc.TenantID == "" || acc.ClientID == "" || acc.ClientSecret == "" || acc.Mailbox == "" {
			continue
		}

		if acc.Alias == "" {
			acc.Alias = acc.Mailbox
		}
		if acc.MailFolder == "" {
			acc.MailFolder = "Inbox"
		}
		if acc.MaxMessages <= 0 {
			acc.MaxMessages = envOrDefaultInt("MAX_MESSAGES", 10)
		}

		cfg.Accounts = append(cfg.Accounts, acc)
	}

	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured — check config.yaml and environment variables")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
