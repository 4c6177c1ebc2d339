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

// Package ews reads attachment-bearing messages from an on-premises
// Exchange server over the legacy Exchange Web Services SOAP endpoint.
// Unlike the cloud mailbox engine, every filter — including unread state —
// is evaluated server side inside the FindItem restriction, and the search
// always requires HasAttachments=true.
package ews

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/flowtask/mailconnector/internal/mail"
	"github.com/flowtask/mailconnector/internal/retrieve"
)

// Settings holds the EWS endpoint connection parameters.
type Settings struct {
	// ServerURL is the full EWS endpoint, e.g.
	// https://exchange.example.com/EWS/Exchange.asmx.
	ServerURL string

	Username string
	Password string

	// AcceptAllCerts disables certificate verification, for default Exchange
	// installations with self-signed certificates.
	AcceptAllCerts bool
}

// Options control the server-side search and post-read handling.
type Options struct {
	MaxMessages     int
	SenderFilter    string
	SubjectFilter   string
	UnreadOnly      bool
	ErrorIfEmpty    bool
	MarkAsRead      bool
	DeleteAfterRead bool
	AttachmentDir   string
	OnCollision     retrieve.CollisionPolicy
}

// Client talks to a single EWS endpoint with basic authentication.
type Client struct {
	settings   Settings
	httpClient *http.Client
}

// NewClient creates an EWS client for the given endpoint settings.
func NewClient(settings Settings) *Client {
	transport := http.DefaultTransport
	if settings.AcceptAllCerts {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		settings:   settings,
		httpClient: &http.Client{Transport: transport},
	}
}

// FetchAttachments finds inbox messages carrying attachments that match the
// options, writes their file attachments into the save directory and returns
// one result per message. Mutation after acceptance follows the cloud
// engine's rule: delete takes precedence over mark-read, at most one per
// message.
func (c *Client) FetchAttachments(ctx context.Context, opts Options) ([]mail.RetrievalResult, error) {
	if strings.TrimSpace(opts.AttachmentDir) == "" {
		return nil, &retrieve.ConfigError{Field: "attachment save directory"}
	}

	items, err := c.findItems(ctx, opts)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		if opts.ErrorIfEmpty {
			return nil, retrieve.ErrNoMessages
		}
		return nil, nil
	}

	var results []mail.RetrievalResult
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attachments, to, cc, err := c.getItem(ctx, item.ID)
		if err != nil {
			return nil, err
		}

		paths, err := retrieve.Materialize(attachments, opts.AttachmentDir, opts.OnCollision)
		if err != nil {
			return nil, err
		}

		results = append(results, mail.RetrievalResult{
			ID:              item.ID,
			To:              to,
			Cc:              cc,
			From:            item.From,
			ReceivedAt:      item.Received,
			Subject:         item.Subject,
			AttachmentPaths: paths,
		})

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch {
		case opts.DeleteAfterRead:
			if err := c.deleteItem(ctx, item); err != nil {
				return nil, err
			}
		case opts.MarkAsRead:
			if err := c.markRead(ctx, item); err != nil {
				return nil, err
			}
		}
	}

	slog.Debug("ews fetch complete", "found", len(items), "results", len(results))
	return results, nil
}

// call posts a SOAP body to the endpoint and returns the raw response.
func (c *Client) call(ctx context.Context, body string) ([]byte, error) {
	envelope := soapEnvelope(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.ServerURL, bytes.NewReader([]byte(envelope)))
	if err != nil {
		return nil, fmt.Errorf("build EWS request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.SetBasicAuth(c.settings.Username, c.settings.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call EWS endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read EWS response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("EWS error", "status", resp.StatusCode, "body", string(raw))
		return nil, fmt.Errorf("EWS endpoint returned HTTP %d", resp.StatusCode)
	}

	return raw, nil
}
