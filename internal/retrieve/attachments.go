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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flowtask/mailconnector/internal/mail"
)

// Materialize writes a message's file attachments into dir, creating the
// directory if missing, and returns the absolute paths written in attachment
// order. Item attachments are silently skipped. A failure aborts the
// remaining attachments; files already written stay on disk.
func Materialize(attachments []mail.Attachment, dir string, policy CollisionPolicy) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment directory %s: %w", dir, err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve attachment directory %s: %w", dir, err)
	}

	var paths []string
	for _, att := range attachments {
		if att.Item {
			continue
		}

		path := filepath.Join(absDir, att.Name)
		if _, err := os.Stat(path); err == nil {
			switch policy {
			case Overwrite:
				if err := os.Remove(path); err != nil {
					return nil, fmt.Errorf("remove existing attachment %s: %w", att.Name, err)
				}
			case Rename:
				path = renamedPath(absDir, att.Name)
			default:
				return nil, &CollisionError{Name: att.Name}
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat attachment target %s: %w", path, err)
		}

		if err := os.WriteFile(path, att.Content, 0o644); err != nil {
			return nil, fmt.Errorf("write attachment %s: %w", att.Name, err)
		}

		paths = append(paths, path)
	}

	return paths, nil
}

// renamedPath finds the lowest numbered variant name(n).ext that does not
// exist yet. The unsuffixed name is known to exist when this is called, so
// counting starts at 1.
func renamedPath(dir, name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s(%d)%s", stem, n, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
