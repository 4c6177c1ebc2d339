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

// Package connector exposes the task-level surface of the library: a
// Connector is built once from configuration, selecting exactly one protocol
// backend, and then serves send and retrieve calls. The variant set is
// closed — cloud mailbox (Microsoft Graph), legacy Exchange (EWS) and IMAP —
// there is no open-ended plugin dispatch.
package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/flowtask/mailconnector/internal/ews"
	"github.com/flowtask/mailconnector/internal/graph"
	"github.com/flowtask/mailconnector/internal/imapread"
	"github.com/flowtask/mailconnector/internal/mail"
	"github.com/flowtask/mailconnector/internal/retrieve"
	"github.com/flowtask/mailconnector/internal/smtp"
)

// Protocol selects the backend a Connector talks to.
type Protocol string

const (
	// CloudMailbox reads and sends through the Microsoft Graph API.
	CloudMailbox Protocol = "graph"

	// LegacyExchange reads through an on-premises EWS endpoint.
	LegacyExchange Protocol = "ews"

	// IMAP reads through a plain IMAP server.
	IMAP Protocol = "imap"
)

// ErrSendUnsupported is returned when the selected protocol cannot send.
var ErrSendUnsupported = errors.New("send is not supported over this protocol")

// GraphAccount configures the cloud mailbox backend. HTTPClient must attach
// the OAuth2 bearer token (see oauth2/clientcredentials); BaseURL is
// overridable for tests and sovereign clouds.
type GraphAccount struct {
	Settings   retrieve.Settings
	HTTPClient *http.Client
	BaseURL    string
}

// Config selects and configures exactly one protocol backend, plus an
// optional SMTP transport for sending when the backend itself cannot.
type Config struct {
	Protocol Protocol

	Graph *GraphAccount
	EWS   *ews.Settings
	IMAP  *imapread.Settings

	// SMTP enables Send for the IMAP and EWS variants.
	SMTP *smtp.Settings
}

// Connector is the per-account entry point for the two operations.
type Connector struct {
	protocol Protocol

	graphSettings retrieve.Settings
	graphClient   *graph.Client
	engine        *retrieve.Engine
	ewsClient     *ews.Client
	imapSettings  imapread.Settings
	smtpClient    *smtp.Client
}

// New builds a connector for the configured protocol. The protocol choice
// happens exactly once, here.
func New(cfg Config) (*Connector, error) {
	c := &Connector{protocol: cfg.Protocol}

	if cfg.SMTP != nil {
		c.smtpClient = smtp.NewClient(*cfg.SMTP)
	}

	switch cfg.Protocol {
	case CloudMailbox:
		if cfg.Graph == nil {
			return nil, fmt.Errorf("cloud mailbox protocol requires a Graph account")
		}
		c.graphSettings = cfg.Graph.Settings
		c.graphClient = graph.NewClient(cfg.Graph.HTTPClient, cfg.Graph.BaseURL)
		c.engine = retrieve.NewEngine(c.graphClient)
	case LegacyExchange:
		if cfg.EWS == nil {
			return nil, fmt.Errorf("legacy Exchange protocol requires EWS settings")
		}
		c.ewsClient = ews.NewClient(*cfg.EWS)
	case IMAP:
		if cfg.IMAP == nil {
			return nil, fmt.Errorf("IMAP protocol requires IMAP settings")
		}
		c.imapSettings = *cfg.IMAP
	default:
		return nil, fmt.Errorf("unknown protocol %q", cfg.Protocol)
	}

	return c, nil
}

// Retrieve fetches one bounded page of matching messages from the backend.
func (c *Connector) Retrieve(ctx context.Context, opts retrieve.Options) ([]mail.RetrievalResult, error) {
	switch c.protocol {
	case CloudMailbox:
		return c.engine.Retrieve(ctx, c.graphSettings, opts)
	case LegacyExchange:
		return c.ewsClient.FetchAttachments(ctx, ews.Options{
			MaxMessages:     opts.MaxMessages,
			SenderFilter:    opts.SenderFilter,
			SubjectFilter:   opts.SubjectFilter,
			UnreadOnly:      opts.UnreadOnly,
			ErrorIfEmpty:    opts.ErrorIfEmpty,
			MarkAsRead:      opts.MarkAsRead,
			DeleteAfterRead: opts.DeleteAfterRead,
			AttachmentDir:   opts.AttachmentDir,
			OnCollision:     opts.OnCollision,
		})
	default:
		return imapread.Read(c.imapSettings, imapread.Options{
			MaxMessages:     opts.MaxMessages,
			UnreadOnly:      opts.UnreadOnly,
			MarkAsRead:      opts.MarkAsRead,
			DeleteAfterRead: opts.DeleteAfterRead,
		})
	}
}

// Send submits a message. The cloud mailbox variant sends through the Graph
// sendMail endpoint; the other variants require an SMTP transport in the
// configuration.
func (c *Connector) Send(ctx context.Context, msg *smtp.Message, attachments []smtp.Attachment) (mail.SendResult, error) {
	if c.protocol == CloudMailbox {
		parts, notSent, err := smtp.Resolve(attachments)
		if err != nil {
			return mail.SendResult{}, err
		}
		if notSent != "" {
			return mail.SendResult{Sent: false, Status: notSent}, nil
		}
		mailbox := c.graphSettings.Mailbox
		if mailbox == "" {
			mailbox = c.graphSettings.Username
		}
		return c.graphClient.SendMessage(ctx, mailbox, graph.OutgoingMessage{
			To:          msg.To,
			Cc:          msg.Cc,
			Bcc:         msg.Bcc,
			Subject:     msg.Subject,
			Body:        msg.Body,
			HTML:        msg.HTML,
			Attachments: parts,
		})
	}

	if c.smtpClient == nil {
		return mail.SendResult{}, ErrSendUnsupported
	}
	return c.smtpClient.Send(msg, attachments)
}
