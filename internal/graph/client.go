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

// Package graph implements the retrieval gateway contract against the
// Microsoft Graph REST API. Authentication is the caller's concern: the
// injected http.Client is expected to attach OAuth2 bearer tokens (see
// golang.org/x/oauth2/clientcredentials).
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/flowtask/mailconnector/internal/mail"
	"github.com/flowtask/mailconnector/internal/retrieve"
)

// DefaultBaseURL is the production Graph API endpoint. Tests substitute a
// local server.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const messageSelect = "id,subject,from,toRecipients,ccRecipients,body,receivedDateTime,isRead,hasAttachments"

// Client talks to the Graph API for a single authenticated principal.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ retrieve.Gateway = (*Client)(nil)

// NewClient creates a Graph API client. An empty baseURL selects the
// production endpoint.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// foldersResponse represents the paged /mailFolders response.
type foldersResponse struct {
	Value []struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// ListFolders returns all mail folders of the mailbox, following
// @odata.nextLink pagination to the end.
func (c *Client) ListFolders(ctx context.Context, mailbox string) ([]retrieve.Folder, error) {
	params := url.Values{}
	params.Set("$select", "id,displayName")
	params.Set("$top", "100")

	listURL := fmt.Sprintf("%s/users/%s/mailFolders?%s", c.baseURL, url.PathEscape(mailbox), params.Encode())

	var folders []retrieve.Folder
	for nextURL := listURL; nextURL != ""; {
		var page foldersResponse
		if err := c.getJSON(ctx, nextURL, &page); err != nil {
			return nil, fmt.Errorf("list mail folders: %w", err)
		}

		for _, f := range page.Value {
			folders = append(folders, retrieve.Folder{ID: f.ID, DisplayName: f.DisplayName})
		}

		nextURL = page.NextLink
	}

	return folders, nil
}

// QueryMessages fetches a single page of at most limit messages from the
// folder. A non-empty search expression is passed as a quoted $search
// parameter and evaluated server side; ordering is the server default.
func (c *Client) QueryMessages(ctx context.Context, mailbox, folderID, search string, limit int) ([]mail.Message, error) {
	params := url.Values{}
	params.Set("$select", messageSelect)
	params.Set("$top", strconv.Itoa(limit))
	if search != "" {
		params.Set("$search", strconv.Quote(search))
	}

	queryURL := fmt.Sprintf("%s/users/%s/mailFolders/%s/messages?%s",
		c.baseURL, url.PathEscape(mailbox), url.PathEscape(folderID), params.Encode())

	var page messagesResponse
	if err := c.getJSON(ctx, queryURL, &page); err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	messages := make([]mail.Message, 0, len(page.Value))
	for _, gm := range page.Value {
		messages = append(messages, gm.toMessage())
	}

	return messages, nil
}

// GetAttachments returns the message's attachments with their content
// decoded. Item attachments carry no content bytes and are flagged so the
// materializer can skip them.
func (c *Client) GetAttachments(ctx context.Context, mailbox, messageID string) ([]mail.Attachment, error) {
	attachURL := fmt.Sprintf("%s/users/%s/messages/%s/attachments",
		c.baseURL, url.PathEscape(mailbox), url.PathEscape(messageID))

	var page attachmentsResponse
	if err := c.getJSON(ctx, attachURL, &page); err != nil {
		return nil, fmt.Errorf("get attachments for message %s: %w", messageID, err)
	}

	return page.toAttachments()
}

// MarkRead flags the message as read.
func (c *Client) MarkRead(ctx context.Context, mailbox, messageID string) error {
	patchURL := fmt.Sprintf("%s/users/%s/messages/%s",
		c.baseURL, url.PathEscape(mailbox), url.PathEscape(messageID))

	body := []byte(`{"isRead":true}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, patchURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mark-read request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req); err != nil {
		return fmt.Errorf("mark message %s read: %w", messageID, err)
	}
	return nil
}

// DeleteMessage hard-deletes the message.
func (c *Client) DeleteMessage(ctx context.Context, mailbox, messageID string) error {
	deleteURL := fmt.Sprintf("%s/users/%s/messages/%s",
		c.baseURL, url.PathEscape(mailbox), url.PathEscape(messageID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	if err := c.do(req); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

// SendMessage submits a message through the mailbox's sendMail endpoint.
func (c *Client) SendMessage(ctx context.Context, mailbox string, msg OutgoingMessage) (mail.SendResult, error) {
	sendURL := fmt.Sprintf("%s/users/%s/sendMail", c.baseURL, url.PathEscape(mailbox))

	payload, err := json.Marshal(sendMailRequest{Message: newGraphOutgoing(msg)})
	if err != nil {
		return mail.SendResult{}, fmt.Errorf("marshal outgoing message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(payload))
	if err != nil {
		return mail.SendResult{}, fmt.Errorf("build sendMail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req); err != nil {
		return mail.SendResult{}, fmt.Errorf("send message: %w", err)
	}

	return mail.SendResult{
		Sent:   true,
		Status: fmt.Sprintf("email sent to: %v", msg.To),
	}, nil
}

// getJSON issues a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("graph API error", "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("graph API returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// do issues a mutating request and accepts any 2xx status.
func (c *Client) do(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("graph API error", "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("graph API returned HTTP %d", resp.StatusCode)
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}
