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

// Package retrieve implements the mailbox retrieval and filtering engine:
// folder resolution, server-side search construction, per-message read-state
// and attachment gating, attachment materialization with collision policies,
// and post-read mutation (mark read / hard delete) against a Gateway.
//
// Failure semantics are asymmetric and deliberate: configuration and folder
// resolution failures happen before any remote mutation and leave no side
// effects, while mid-loop failures abort the remaining messages and leave
// mutations from earlier iterations in place. A failed call returns no
// partial result list even when some messages were already mutated remotely.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flowtask/mailconnector/internal/mail"
)

// Engine runs retrieve operations against a Gateway. It holds no mutable
// state; a single Engine may serve concurrent invocations.
type Engine struct {
	gateway Gateway
}

// NewEngine creates a retrieval engine backed by the given gateway.
func NewEngine(gw Gateway) *Engine {
	return &Engine{gateway: gw}
}

// Retrieve fetches one bounded page of matching messages and processes each
// one sequentially: unread gate, attachment materialization, result
// construction, then at most one mutation. Cancellation is observed between
// discrete units of work — before each message's attachment fetch and before
// each mutation call — never mid-call.
func (e *Engine) Retrieve(ctx context.Context, settings Settings, opts Options) ([]mail.RetrievalResult, error) {
	if err := validate(settings, opts); err != nil {
		return nil, err
	}

	mailbox := settings.Mailbox
	if strings.TrimSpace(mailbox) == "" {
		mailbox = settings.Username
	}
	folderName := settings.MailFolder
	if strings.TrimSpace(folderName) == "" {
		folderName = DefaultFolder
	}

	folderID, err := ResolveFolder(ctx, e.gateway, mailbox, folderName)
	if err != nil {
		return nil, err
	}

	search := BuildSearch(opts)

	slog.Debug("querying mailbox",
		"mailbox", mailbox,
		"folder", folderName,
		"search", search,
		"max", opts.MaxMessages,
	)

	messages, err := e.gateway.QueryMessages(ctx, mailbox, folderID, search, opts.MaxMessages)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	if len(messages) == 0 && opts.ErrorIfEmpty {
		return nil, ErrNoMessages
	}

	var results []mail.RetrievalResult
	for _, msg := range messages {
		// Read-state gate: skipped messages are never mutated.
		if opts.UnreadOnly && msg.IsRead {
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var paths []string
		if !opts.IgnoreAttachments && msg.HasAttachments {
			attachments, err := e.gateway.GetAttachments(ctx, mailbox, msg.ID)
			if err != nil {
				return nil, fmt.Errorf("get attachments for message %s: %w", msg.ID, err)
			}
			paths, err = Materialize(attachments, opts.AttachmentDir, opts.OnCollision)
			if err != nil {
				return nil, err
			}
		}

		// Attachment gate: only messages that produced at least one file count.
		if opts.AttachmentsOnly && len(paths) == 0 {
			continue
		}

		results = append(results, buildResult(msg, paths))

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch {
		case opts.DeleteAfterRead:
			if err := e.gateway.DeleteMessage(ctx, mailbox, msg.ID); err != nil {
				return nil, fmt.Errorf("delete message %s: %w", msg.ID, err)
			}
		case opts.MarkAsRead:
			if err := e.gateway.MarkRead(ctx, mailbox, msg.ID); err != nil {
				return nil, fmt.Errorf("mark message %s read: %w", msg.ID, err)
			}
		}
	}

	slog.Debug("retrieve complete",
		"mailbox", mailbox,
		"fetched", len(messages),
		"accepted", len(results),
	)

	return results, nil
}

func buildResult(msg mail.Message, paths []string) mail.RetrievalResult {
	return mail.RetrievalResult{
		ID:              msg.ID,
		To:              addressList(msg.To),
		Cc:              addressList(msg.Cc),
		From:            msg.From.Address,
		ReceivedAt:      msg.ReceivedAt,
		Subject:         msg.Subject,
		BodyText:        msg.BodyText,
		BodyHTML:        msg.BodyHTML,
		AttachmentPaths: paths,
	}
}

func addressList(addrs []mail.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address)
	}
	return out
}
