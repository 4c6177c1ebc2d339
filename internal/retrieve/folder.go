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
	"fmt"
)

// ResolveFolder maps a folder display name to its remote identifier by
// listing the mailbox's folders and matching on exact, case-sensitive
// display-name equality. When several folders share the name, the last match
// in listing order wins; this tie-break is kept for compatibility with
// earlier releases even though first-match would be the saner rule.
func ResolveFolder(ctx context.Context, gw Gateway, mailbox, name string) (string, error) {
	folders, err := gw.ListFolders(ctx, mailbox)
	if err != nil {
		return "", fmt.Errorf("list mail folders: %w", err)
	}

	id := ""
	for _, f := range folders {
		if f.DisplayName == name {
			id = f.ID
		}
	}

	if id == "" {
		return "", &FolderNotFoundError{Folder: name}
	}

	return id, nil
}
