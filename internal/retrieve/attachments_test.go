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
	"os"
	"path/filepath"
	"testing"

	"github.com/flowtask/mailconnector/internal/mail"
)

// TestMaterialize_WritesFiles verifies content, ordering and absolute paths.
func TestMaterialize_WritesFiles(t *testing.T) {
	dir := t.TempDir()
	attachments := []mail.Attachment{
		{Name: "a.txt", Content: []byte("alpha")},
		{Name: "b.txt", Content: []byte("beta")},
	}

	paths, err := Materialize(attachments, dir, Abort)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %d, want 2", len(paths))
	}
	for i, want := range []string{"a.txt", "b.txt"} {
		if !filepath.IsAbs(paths[i]) {
			t.Errorf("path %q is not absolute", paths[i])
		}
		if filepath.Base(paths[i]) != want {
			t.Errorf("path %d = %q, want base %q", i, paths[i], want)
		}
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "alpha" {
		t.Errorf("content = %q, want %q", data, "alpha")
	}
}

// TestMaterialize_CreatesDirectory verifies that a missing save directory is
// created.
func TestMaterialize_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "saves")

	paths, err := Materialize([]mail.Attachment{{Name: "x.bin", Content: []byte{1}}}, dir, Abort)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("paths = %d, want 1", len(paths))
	}
}

// TestMaterialize_SkipsItemAttachments verifies nested-message attachments
// produce no file.
func TestMaterialize_SkipsItemAttachments(t *testing.T) {
	dir := t.TempDir()
	attachments := []mail.Attachment{
		{Name: "forwarded message", Item: true},
		{Name: "real.txt", Content: []byte("data")},
	}

	paths, err := Materialize(attachments, dir, Abort)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "real.txt" {
		t.Errorf("paths = %v, want only real.txt", paths)
	}
}

// TestMaterialize_Overwrite verifies that an existing target is replaced and
// no numbered variant appears.
func TestMaterialize_Overwrite(t *testing.T) {
	dir := t.TempDir()
	att := []mail.Attachment{{Name: "a.txt", Content: []byte("first")}}

	if _, err := Materialize(att, dir, Overwrite); err != nil {
		t.Fatalf("first write: %v", err)
	}
	att[0].Content = []byte("second")
	paths, err := Materialize(att, dir, Overwrite)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory entries = %d, want 1", len(entries))
	}
}

// TestMaterialize_Rename verifies numbered variants a(1).txt, a(2).txt with
// counting from 1 and the extension preserved.
func TestMaterialize_Rename(t *testing.T) {
	dir := t.TempDir()
	att := []mail.Attachment{{Name: "a.txt", Content: []byte("v")}}

	for i := 0; i < 3; i++ {
		if _, err := Materialize(att, dir, Rename); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	for _, want := range []string{"a.txt", "a(1).txt", "a(2).txt"} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Errorf("missing expected file %s: %v", want, err)
		}
	}
}

// TestMaterialize_AbortCollision verifies the abort policy: exact error
// identity, files written before the collision stay, the original file is
// untouched.
func TestMaterialize_AbortCollision(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	attachments := []mail.Attachment{
		{Name: "a.txt", Content: []byte("early")},
		{Name: "b.txt", Content: []byte("colliding")},
	}

	_, err := Materialize(attachments, dir, Abort)
	var ce *CollisionError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want CollisionError", err)
	}
	if ce.Name != "b.txt" {
		t.Errorf("collision name = %q, want %q", ce.Name, "b.txt")
	}
	wantMsg := "Attachment file b.txt already exists in the given directory."
	if ce.Error() != wantMsg {
		t.Errorf("message = %q, want %q", ce.Error(), wantMsg)
	}

	// The attachment written before the collision stays on disk.
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
		t.Errorf("a.txt should remain: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "b.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "original" {
		t.Errorf("b.txt content = %q, want untouched original", data)
	}
}
