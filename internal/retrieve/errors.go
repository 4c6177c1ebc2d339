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
	"errors"
	"fmt"
)

// ErrNoMessages is returned when a search matched nothing and the caller
// opted in to treat that as a failure via Options.ErrorIfEmpty. Without the
// opt-in an empty search is a normal outcome and yields an empty result list.
var ErrNoMessages = errors.New("no messages matched the search")

// ConfigError reports a missing or unusable setting. It is always raised
// before any remote call, so a failed validation has no side effects.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s must not be empty", e.Field)
}

// FolderNotFoundError reports that no folder in the mailbox matched the
// requested display name. Folder matching is exact and case sensitive; the
// engine never falls back to Inbox.
type FolderNotFoundError struct {
	Folder string
}

func (e *FolderNotFoundError) Error() string {
	return fmt.Sprintf("no folder found with name %s (folder names are case sensitive)", e.Folder)
}

// CollisionError reports that an attachment's target file already exists and
// the collision policy is Abort. Attachments written before the collision
// remain on disk.
type CollisionError struct {
	Name string
}

func (e *CollisionError) Error() string {
	return "Attachment file " + e.Name + " already exists in the given directory."
}
