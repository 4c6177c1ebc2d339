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

import "testing"

// TestBuildSearch verifies term selection, ordering and conjunction.
func TestBuildSearch(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{
			name: "no filters",
			opts: Options{},
			want: "",
		},
		{
			name: "sender only",
			opts: Options{SenderFilter: "alice@example.com"},
			want: "from:alice@example.com",
		},
		{
			name: "subject only",
			opts: Options{SubjectFilter: "quarterly report"},
			want: "subject:quarterly report",
		},
		{
			name: "attachments only",
			opts: Options{AttachmentsOnly: true},
			want: "hasAttachments:true",
		},
		{
			name: "sender and subject",
			opts: Options{SenderFilter: "alice@example.com", SubjectFilter: "invoice"},
			want: "from:alice@example.com AND subject:invoice",
		},
		{
			name: "all three",
			opts: Options{
				SenderFilter:    "alice@example.com",
				SubjectFilter:   "invoice",
				AttachmentsOnly: true,
			},
			want: "from:alice@example.com AND subject:invoice AND hasAttachments:true",
		},
		{
			name: "blank filters are dropped",
			opts: Options{SenderFilter: "   ", SubjectFilter: "\t"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildSearch(tt.opts); got != tt.want {
				t.Errorf("BuildSearch() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestBuildSearch_NeverContainsReadState verifies read-state filtering stays
// out of the server expression regardless of the unread option.
func TestBuildSearch_NeverContainsReadState(t *testing.T) {
	got := BuildSearch(Options{UnreadOnly: true, SenderFilter: "a@b.c"})
	if got != "from:a@b.c" {
		t.Errorf("BuildSearch() = %q, want %q", got, "from:a@b.c")
	}
}
