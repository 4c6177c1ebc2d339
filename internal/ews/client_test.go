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

package ews

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flowtask/mailconnector/internal/retrieve"
)

// TestBuildRestriction verifies the restriction always requires attachments
// and adds conditions in a fixed order.
func TestBuildRestriction(t *testing.T) {
	tests := []struct {
		name        string
		opts        Options
		wantAnd     bool
		wantPieces  []string
		unwantPiece string
	}{
		{
			name:        "attachments only",
			opts:        Options{},
			wantAnd:     false,
			wantPieces:  []string{`item:HasAttachments`},
			unwantPiece: "<t:And>",
		},
		{
			name:    "unread added",
			opts:    Options{UnreadOnly: true},
			wantAnd: true,
			wantPieces: []string{
				`item:HasAttachments`,
				`message:IsRead`,
				`Value="false"`,
			},
		},
		{
			name:    "sender and subject",
			opts:    Options{SenderFilter: "a@b.c", SubjectFilter: "report"},
			wantAnd: true,
			wantPieces: []string{
				`message:Sender`,
				`Value="a@b.c"`,
				`ContainmentMode="Substring"`,
				`Value="report"`,
			},
		},
		{
			name:       "values escaped",
			opts:       Options{SubjectFilter: `a<b&"c"`},
			wantAnd:    true,
			wantPieces: []string{`a&lt;b&amp;&#34;c&#34;`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildRestriction(tt.opts)
			if strings.Contains(got, "<t:And>") != tt.wantAnd {
				t.Errorf("And wrapper presence = %v, want %v\n%s", !tt.wantAnd, tt.wantAnd, got)
			}
			for _, piece := range tt.wantPieces {
				if !strings.Contains(got, piece) {
					t.Errorf("restriction missing %q\n%s", piece, got)
				}
			}
			if tt.unwantPiece != "" && strings.Contains(got, tt.unwantPiece) {
				t.Errorf("restriction contains %q\n%s", tt.unwantPiece, got)
			}
		})
	}
}

// fakeEWS serves canned SOAP responses keyed on the operation element in the
// request body. It records which operations were called.
type fakeEWS struct {
	t         *testing.T
	server    *httptest.Server
	calls     []string
	responses map[string]string
}

func newFakeEWS(t *testing.T, responses map[string]string) *fakeEWS {
	f := &fakeEWS{t: t, responses: responses}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "svc" || pass != "hunter2" {
			t.Errorf("basic auth = %q/%q, want svc/hunter2", user, pass)
		}

		body, _ := io.ReadAll(r.Body)
		for _, op := range []string{"FindItem", "GetItem", "GetAttachment", "UpdateItem", "DeleteItem"} {
			if strings.Contains(string(body), "<m:"+op) {
				f.calls = append(f.calls, op)
				resp, found := f.responses[op]
				if !found {
					t.Errorf("unexpected operation %s", op)
					http.Error(w, "unexpected operation", http.StatusBadRequest)
					return
				}
				w.Header().Set("Content-Type", "text/xml; charset=utf-8")
				fmt.Fprint(w, resp)
				return
			}
		}
		t.Errorf("unrecognized SOAP body: %s", body)
		http.Error(w, "unrecognized", http.StatusBadRequest)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeEWS) client() *Client {
	return NewClient(Settings{
		ServerURL: f.server.URL,
		Username:  "svc",
		Password:  "hunter2",
	})
}

func soapResponse(inner string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<s:Body>` + inner + `</s:Body></s:Envelope>`
}

func findItemFixture() string {
	return soapResponse(`<m:FindItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages" xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">` +
		`<m:ResponseMessages><m:FindItemResponseMessage ResponseClass="Success">` +
		`<m:RootFolder><t:Items><t:Message>` +
		`<t:ItemId Id="item-1" ChangeKey="ck-1"/>` +
		`<t:Subject>Invoice attached</t:Subject>` +
		`<t:DateTimeReceived>2026-04-02T09:15:00Z</t:DateTimeReceived>` +
		`<t:From><t:Mailbox><t:EmailAddress>alice@example.com</t:EmailAddress></t:Mailbox></t:From>` +
		`</t:Message></t:Items></m:RootFolder>` +
		`</m:FindItemResponseMessage></m:ResponseMessages></m:FindItemResponse>`)
}

func getItemFixture() string {
	return soapResponse(`<m:GetItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages" xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">` +
		`<m:ResponseMessages><m:GetItemResponseMessage ResponseClass="Success">` +
		`<m:Items><t:Message>` +
		`<t:ToRecipients><t:Mailbox><t:EmailAddress>bob@example.com</t:EmailAddress></t:Mailbox></t:ToRecipients>` +
		`<t:CcRecipients><t:Mailbox><t:EmailAddress>carol@example.com</t:EmailAddress></t:Mailbox></t:CcRecipients>` +
		`<t:Attachments>` +
		`<t:FileAttachment><t:AttachmentId Id="att-1"/><t:Name>invoice.pdf</t:Name></t:FileAttachment>` +
		`<t:ItemAttachment><t:Name>forwarded</t:Name></t:ItemAttachment>` +
		`</t:Attachments>` +
		`</t:Message></m:Items>` +
		`</m:GetItemResponseMessage></m:ResponseMessages></m:GetItemResponse>`)
}

func getAttachmentFixture(content []byte) string {
	return soapResponse(`<m:GetAttachmentResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages" xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">` +
		`<m:ResponseMessages><m:GetAttachmentResponseMessage ResponseClass="Success">` +
		`<m:Attachments><t:FileAttachment>` +
		`<t:Name>invoice.pdf</t:Name>` +
		`<t:ContentType>application/pdf</t:ContentType>` +
		`<t:Content>` + base64.StdEncoding.EncodeToString(content) + `</t:Content>` +
		`</t:FileAttachment></m:Attachments>` +
		`</m:GetAttachmentResponseMessage></m:ResponseMessages></m:GetAttachmentResponse>`)
}

// TestFetchAttachments verifies the full fetch flow: find, resolve, download,
// materialize and mark read.
func TestFetchAttachments(t *testing.T) {
	dir := t.TempDir()
	fake := newFakeEWS(t, map[string]string{
		"FindItem":      findItemFixture(),
		"GetItem":       getItemFixture(),
		"GetAttachment": getAttachmentFixture([]byte("pdf bytes")),
		"UpdateItem":    soapResponse(`<m:UpdateItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"/>`),
	})

	results, err := fake.client().FetchAttachments(context.Background(), Options{
		AttachmentDir: dir,
		MarkAsRead:    true,
		OnCollision:   retrieve.Rename,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}

	res := results[0]
	if res.ID != "item-1" || res.Subject != "Invoice attached" || res.From != "alice@example.com" {
		t.Errorf("result = %+v, field mismatch", res)
	}
	if len(res.To) != 1 || res.To[0] != "bob@example.com" {
		t.Errorf("to = %v, want [bob@example.com]", res.To)
	}
	if len(res.Cc) != 1 || res.Cc[0] != "carol@example.com" {
		t.Errorf("cc = %v, want [carol@example.com]", res.Cc)
	}
	if res.ReceivedAt.IsZero() {
		t.Error("received time not parsed")
	}

	// The item attachment produces no file.
	if len(res.AttachmentPaths) != 1 {
		t.Fatalf("attachment paths = %v, want 1", res.AttachmentPaths)
	}
	data, err := os.ReadFile(filepath.Join(dir, "invoice.pdf"))
	if err != nil {
		t.Fatalf("read materialized attachment: %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Errorf("content = %q, want %q", data, "pdf bytes")
	}

	want := []string{"FindItem", "GetItem", "GetAttachment", "UpdateItem"}
	if len(fake.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", fake.calls, want)
	}
	for i := range want {
		if fake.calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, fake.calls[i], want[i])
		}
	}
}

// TestFetchAttachments_DeletePrecedence verifies DeleteItem is issued instead
// of UpdateItem when both mutations are requested.
func TestFetchAttachments_DeletePrecedence(t *testing.T) {
	fake := newFakeEWS(t, map[string]string{
		"FindItem":      findItemFixture(),
		"GetItem":       getItemFixture(),
		"GetAttachment": getAttachmentFixture([]byte("x")),
		"DeleteItem":    soapResponse(`<m:DeleteItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"/>`),
	})

	_, err := fake.client().FetchAttachments(context.Background(), Options{
		AttachmentDir:   t.TempDir(),
		MarkAsRead:      true,
		DeleteAfterRead: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, call := range fake.calls {
		if call == "UpdateItem" {
			t.Error("UpdateItem issued despite delete precedence")
		}
	}
	if fake.calls[len(fake.calls)-1] != "DeleteItem" {
		t.Errorf("calls = %v, want DeleteItem last", fake.calls)
	}
}

// TestFetchAttachments_Empty verifies the empty-result behaviors.
func TestFetchAttachments_Empty(t *testing.T) {
	empty := soapResponse(`<m:FindItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages" xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">` +
		`<m:ResponseMessages><m:FindItemResponseMessage ResponseClass="Success">` +
		`<m:RootFolder><t:Items/></m:RootFolder>` +
		`</m:FindItemResponseMessage></m:ResponseMessages></m:FindItemResponse>`)
	fake := newFakeEWS(t, map[string]string{"FindItem": empty})

	results, err := fake.client().FetchAttachments(context.Background(), Options{AttachmentDir: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}

	_, err = fake.client().FetchAttachments(context.Background(), Options{
		AttachmentDir: t.TempDir(),
		ErrorIfEmpty:  true,
	})
	if !errors.Is(err, retrieve.ErrNoMessages) {
		t.Errorf("error = %v, want ErrNoMessages", err)
	}
}

// TestFetchAttachments_MissingDir verifies the save directory is required up
// front.
func TestFetchAttachments_MissingDir(t *testing.T) {
	client := NewClient(Settings{ServerURL: "https://unused.example.com"})

	_, err := client.FetchAttachments(context.Background(), Options{})
	var ce *retrieve.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
}
