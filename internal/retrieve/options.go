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

package retrieve

import "strings"

// DefaultFolder is searched when Settings.MailFolder is left empty.
const DefaultFolder = "Inbox"

// Settings identifies which mailbox and folder a retrieve call targets.
// Credential material itself is opaque to the engine — authentication happens
// inside the gateway's HTTP client — but the identifying fields are validated
// as non-blank before any remote call is made.
type Settings struct {
	// Mailbox is the account whose folder is searched. Defaults to Username,
	// which supports reading another user's mailbox when permitted.
	Mailbox string

	// MailFolder is the display name of the folder to search. Defaults to
	// DefaultFolder. Matching is exact and case sensitive.
	MailFolder string

	Username string
	Password string
	AppID    string
	TenantID string
}

// CollisionPolicy is the rule applied when a materialized attachment's target
// filename already exists in the save directory.
type CollisionPolicy string

const (
	// Overwrite deletes the existing file and writes the new one in its place.
	Overwrite CollisionPolicy = "overwrite"

	// Rename writes to name(1).ext, name(2).ext, ... — the lowest suffix whose
	// target does not exist yet.
	Rename CollisionPolicy = "rename"

	// Abort fails the whole materialization for the message. Files written
	// before the collision stay on disk.
	Abort CollisionPolicy = "error"
)

// Options control filtering, attachment handling and post-read mutation for a
// single retrieve call.
type Options struct {
	// MaxMessages caps the number of messages fetched from the server.
	MaxMessages int

	// SenderFilter keeps only messages from this address (server side).
	SenderFilter string

	// SubjectFilter keeps only messages whose subject contains this string
	// (server side).
	SubjectFilter string

	// UnreadOnly drops messages that are already read. This filter is applied
	// locally after the fetch, never in the server search expression, so a
	// page of MaxMessages may yield fewer results than unread messages exist.
	UnreadOnly bool

	// AttachmentsOnly accepts a message only when at least one attachment was
	// materialized for it.
	AttachmentsOnly bool

	// IgnoreAttachments skips attachment download and materialization
	// entirely, regardless of whether messages report attachments.
	IgnoreAttachments bool

	// MarkAsRead flags each accepted message as read after processing.
	MarkAsRead bool

	// DeleteAfterRead hard-deletes each accepted message after processing.
	// Takes precedence over MarkAsRead; at most one mutation is issued per
	// accepted message.
	DeleteAfterRead bool

	// ErrorIfEmpty turns a zero-match search into ErrNoMessages.
	ErrorIfEmpty bool

	// AttachmentDir is where attachments are written. Required unless
	// IgnoreAttachments is set; created if missing.
	AttachmentDir string

	// OnCollision selects the collision policy for existing target files.
	OnCollision CollisionPolicy
}

func validate(settings Settings, opts Options) error {
	checks := []struct {
		field string
		value string
	}{
		{"username", settings.Username},
		{"password", settings.Password},
		{"application ID", settings.AppID},
		{"tenant ID", settings.TenantID},
	}
	for _, c := range checks {
		if strings.TrimSpace(c.value) == "" {
			return &ConfigError{Field: c.field}
		}
	}

	if !opts.IgnoreAttachments && strings.TrimSpace(opts.AttachmentDir) == "" {
		return &ConfigError{Field: "attachment save directory"}
	}

	return nil
}
