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

// Package mail defines the data structures shared across the connector backends.
package mail

import "time"

// Address represents a sender or recipient with an address and optional name.
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Attachment represents a file attached to a remote message. Content holds
// the decoded bytes. Item is true for nested-message ("item") attachments,
// which carry no file content and are never written to disk.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content,omitempty"`
	Item        bool   `json:"item,omitempty"`
}

// Message is a read-only view of a remote mailbox message. The connector
// never mutates it in place; read-state changes and deletions go through
// explicit gateway calls.
type Message struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	From           Address   `json:"from"`
	To             []Address `json:"to"`
	Cc             []Address `json:"cc,omitempty"`
	BodyText       string    `json:"body_text,omitempty"`
	BodyHTML       string    `json:"body_html,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
	IsRead         bool      `json:"is_read"`
	HasAttachments bool      `json:"has_attachments"`
}

// RetrievalResult is produced for each accepted message during a retrieve
// operation. AttachmentPaths lists the absolute paths of attachments written
// to disk, in attachment order; it is empty when attachments were ignored.
// The caller owns the value exclusively after return.
type RetrievalResult struct {
	ID              string    `json:"id"`
	To              []string  `json:"to"`
	Cc              []string  `json:"cc,omitempty"`
	From            string    `json:"from"`
	ReceivedAt      time.Time `json:"received_at"`
	Subject         string    `json:"subject"`
	BodyText        string    `json:"body_text,omitempty"`
	BodyHTML        string    `json:"body_html,omitempty"`
	AttachmentPaths []string  `json:"attachment_paths,omitempty"`
}

// SendResult reports the outcome of a send operation. Sent is false with a
// Status explanation for normal not-sent outcomes (for example when no
// attachment files matched and the caller chose not to send without them);
// genuine failures are returned as errors instead.
type SendResult struct {
	Sent   bool   `json:"sent"`
	Status string `json:"status"`
}
