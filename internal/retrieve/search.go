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

// BuildSearch translates the optional filter fields into a single
// server-side search expression. Present conditions are conjoined with AND
// in a fixed order — sender, subject, has-attachments — so the generated
// text is deterministic. An empty string means no server-side filter: the
// folder's full default-ordered set is fetched and capped at MaxMessages.
//
// UnreadOnly is deliberately absent here. The engine filters read state
// locally, so the expression never contains a read-state term.
func BuildSearch(opts Options) string {
	var terms []string

	if s := strings.TrimSpace(opts.SenderFilter); s != "" {
		terms = append(terms, "from:"+s)
	}
	if s := strings.TrimSpace(opts.SubjectFilter); s != "" {
		terms = append(terms, "subject:"+s)
	}
	if opts.AttachmentsOnly {
		terms = append(terms, "hasAttachments:true")
	}

	return strings.Join(terms, " AND ")
}
