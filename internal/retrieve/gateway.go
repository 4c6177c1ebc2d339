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

import (
	"context"

	"github.com/flowtask/mailconnector/internal/mail"
)

// Folder is a remote mail folder as reported by the gateway.
type Folder struct {
	ID          string
	DisplayName string
}

// Gateway is the authenticated remote-mailbox API surface the retrieval
// engine depends on. The engine only sees these operation contracts, never
// the transport; failures from any call are propagated unwrapped and fatal,
// with no retry.
type Gateway interface {
	// ListFolders returns all mail folders visible to the mailbox.
	ListFolders(ctx context.Context, mailbox string) ([]Folder, error)

	// QueryMessages returns at most limit messages from the folder, in the
	// server's default order. search is a server-evaluated filter expression;
	// empty means no filter.
	QueryMessages(ctx context.Context, mailbox, folderID, search string, limit int) ([]mail.Message, error)

	// GetAttachments returns the attachments of a message, content included.
	GetAttachments(ctx context.Context, mailbox, messageID string) ([]mail.Attachment, error)

	// MarkRead sets the message's read flag.
	MarkRead(ctx context.Context, mailbox, messageID string) error

	// DeleteMessage hard-deletes the message from the mailbox.
	DeleteMessage(ctx context.Context, mailbox, messageID string) error
}
