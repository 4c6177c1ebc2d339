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
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/flowtask/mailconnector/internal/mail"
)

// foundItem is a message summary from a FindItem response.
type foundItem struct {
	ID        string
	ChangeKey string
	Subject   string
	From      string
	Received  time.Time
}

func soapEnvelope(body string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"` +
		` xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"` +
		` xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">` +
		`<soap:Header><t:RequestServerVersion Version="Exchange2013_SP1"/></soap:Header>` +
		`<soap:Body>` + body + `</soap:Body></soap:Envelope>`
}

// buildRestriction renders the FindItem restriction. HasAttachments=true is
// always required; unread, sender and subject-substring conditions are added
// when set. A single condition stands alone, several are wrapped in And.
func buildRestriction(opts Options) string {
	conditions := []string{
		`<t:IsEqualTo><t:FieldURI FieldURI="item:HasAttachments"/>` +
			`<t:FieldURIOrConstant><t:Constant Value="true"/></t:FieldURIOrConstant></t:IsEqualTo>`,
	}

	if opts.UnreadOnly {
		conditions = append(conditions,
			`<t:IsEqualTo><t:FieldURI FieldURI="message:IsRead"/>`+
				`<t:FieldURIOrConstant><t:Constant Value="false"/></t:FieldURIOrConstant></t:IsEqualTo>`)
	}
	if s := strings.TrimSpace(opts.SenderFilter); s != "" {
		conditions = append(conditions,
			`<t:IsEqualTo><t:FieldURI FieldURI="message:Sender"/>`+
				`<t:FieldURIOrConstant><t:Constant Value="`+xmlEscape(s)+`"/></t:FieldURIOrConstant></t:IsEqualTo>`)
	}
	if s := strings.TrimSpace(opts.SubjectFilter); s != "" {
		conditions = append(conditions,
			`<t:Contains ContainmentMode="Substring" ContainmentComparison="IgnoreCase">`+
				`<t:FieldURI FieldURI="item:Subject"/><t:Constant Value="`+xmlEscape(s)+`"/></t:Contains>`)
	}

	inner := conditions[0]
	if len(conditions) > 1 {
		inner = "<t:And>" + strings.Join(conditions, "") + "</t:And>"
	}
	return "<m:Restriction>" + inner + "</m:Restriction>"
}

func (c *Client) findItems(ctx context.Context, opts Options) ([]foundItem, error) {
	max := opts.MaxMessages
	if max <= 0 {
		max = 10
	}

	body := `<m:FindItem Traversal="Shallow">` +
		`<m:ItemShape><t:BaseShape>IdOnly</t:BaseShape><t:AdditionalProperties>` +
		`<t:FieldURI FieldURI="item:Subject"/>` +
		`<t:FieldURI FieldURI="item:DateTimeReceived"/>` +
		`<t:FieldURI FieldURI="message:From"/>` +
		`</t:AdditionalProperties></m:ItemShape>` +
		fmt.Sprintf(`<m:IndexedPageItemView MaxEntriesReturned="%d" Offset="0" BasePoint="Beginning"/>`, max) +
		buildRestriction(opts) +
		`<m:ParentFolderIds><t:DistinguishedFolderId Id="inbox"/></m:ParentFolderIds>` +
		`</m:FindItem>`

	raw, err := c.call(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}

	var resp findItemResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode FindItem response: %w", err)
	}

	items := make([]foundItem, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		item := foundItem{
			ID:        m.ItemID.ID,
			ChangeKey: m.ItemID.ChangeKey,
			Subject:   m.Subject,
			From:      m.From.Mailbox.EmailAddress,
		}
		if m.DateTimeReceived != "" {
			if t, err := time.Parse(time.RFC3339, m.DateTimeReceived); err == nil {
				item.Received = t
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// getItem resolves a message's attachment list (content included) and its
// recipient addresses.
func (c *Client) getItem(ctx context.Context, itemID string) (attachments []mail.Attachment, to, cc []string, err error) {
	body := `<m:GetItem>` +
		`<m:ItemShape><t:BaseShape>IdOnly</t:BaseShape><t:AdditionalProperties>` +
		`<t:FieldURI FieldURI="item:Attachments"/>` +
		`<t:FieldURI FieldURI="message:ToRecipients"/>` +
		`<t:FieldURI FieldURI="message:CcRecipients"/>` +
		`</t:AdditionalProperties></m:ItemShape>` +
		`<m:ItemIds><t:ItemId Id="` + xmlEscape(itemID) + `"/></m:ItemIds>` +
		`</m:GetItem>`

	raw, err := c.call(ctx, body)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get item %s: %w", itemID, err)
	}

	var resp getItemResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return nil, nil, nil, fmt.Errorf("decode GetItem response: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, nil, nil, fmt.Errorf("GetItem returned no item for %s", itemID)
	}

	msg := resp.Messages[0]
	for _, r := range msg.ToRecipients {
		to = append(to, r.EmailAddress)
	}
	for _, r := range msg.CcRecipients {
		cc = append(cc, r.EmailAddress)
	}

	for _, fa := range msg.FileAttachments {
		att, err := c.getAttachment(ctx, fa.AttachmentID.ID)
		if err != nil {
			return nil, nil, nil, err
		}
		attachments = append(attachments, att)
	}
	for _, ia := range msg.ItemAttachments {
		attachments = append(attachments, mail.Attachment{Name: ia.Name, Item: true})
	}

	return attachments, to, cc, nil
}

// getAttachment downloads a single file attachment's content.
func (c *Client) getAttachment(ctx context.Context, attachmentID string) (mail.Attachment, error) {
	body := `<m:GetAttachment><m:AttachmentIds>` +
		`<t:AttachmentId Id="` + xmlEscape(attachmentID) + `"/>` +
		`</m:AttachmentIds></m:GetAttachment>`

	raw, err := c.call(ctx, body)
	if err != nil {
		return mail.Attachment{}, fmt.Errorf("get attachment %s: %w", attachmentID, err)
	}

	var resp getAttachmentResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return mail.Attachment{}, fmt.Errorf("decode GetAttachment response: %w", err)
	}
	if len(resp.FileAttachments) == 0 {
		return mail.Attachment{}, fmt.Errorf("GetAttachment returned no content for %s", attachmentID)
	}

	fa := resp.FileAttachments[0]
	content, err := base64.StdEncoding.DecodeString(strings.TrimSpace(fa.Content))
	if err != nil {
		return mail.Attachment{}, fmt.Errorf("decode attachment %s content: %w", fa.Name, err)
	}

	return mail.Attachment{
		Name:        fa.Name,
		ContentType: fa.ContentType,
		Content:     content,
	}, nil
}

func (c *Client) markRead(ctx context.Context, item foundItem) error {
	body := `<m:UpdateItem MessageDisposition="SaveOnly" ConflictResolution="AutoResolve">` +
		`<m:ItemChanges><t:ItemChange>` +
		`<t:ItemId Id="` + xmlEscape(item.ID) + `" ChangeKey="` + xmlEscape(item.ChangeKey) + `"/>` +
		`<t:Updates><t:SetItemField><t:FieldURI FieldURI="message:IsRead"/>` +
		`<t:Message><t:IsRead>true</t:IsRead></t:Message></t:SetItemField></t:Updates>` +
		`</t:ItemChange></m:ItemChanges></m:UpdateItem>`

	if _, err := c.call(ctx, body); err != nil {
		return fmt.Errorf("mark item %s read: %w", item.ID, err)
	}
	return nil
}

func (c *Client) deleteItem(ctx context.Context, item foundItem) error {
	body := `<m:DeleteItem DeleteType="HardDelete">` +
		`<m:ItemIds><t:ItemId Id="` + xmlEscape(item.ID) + `"/></m:ItemIds>` +
		`</m:DeleteItem>`

	if _, err := c.call(ctx, body); err != nil {
		return fmt.Errorf("delete item %s: %w", item.ID, err)
	}
	return nil
}

func xmlEscape(s string) string {
	var buf strings.Builder
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// Response shapes. encoding/xml matches on local names, so the EWS
// namespaces need no explicit handling here.

type ewsItemID struct {
	ID        string `xml:"Id,attr"`
	ChangeKey string `xml:"ChangeKey,attr"`
}

type ewsMailbox struct {
	EmailAddress string `xml:"EmailAddress"`
}

type findItemResponse struct {
	Messages []struct {
		ItemID           ewsItemID `xml:"ItemId"`
		Subject          string    `xml:"Subject"`
		DateTimeReceived string    `xml:"DateTimeReceived"`
		From             struct {
			Mailbox ewsMailbox `xml:"Mailbox"`
		} `xml:"From"`
	} `xml:"Body>FindItemResponse>ResponseMessages>FindItemResponseMessage>RootFolder>Items>Message"`
}

type ewsAttachmentID struct {
	ID string `xml:"Id,attr"`
}

type getItemResponse struct {
	Messages []struct {
		ToRecipients []ewsMailbox `xml:"ToRecipients>Mailbox"`
		CcRecipients []ewsMailbox `xml:"CcRecipients>Mailbox"`

		FileAttachments []struct {
			AttachmentID ewsAttachmentID `xml:"AttachmentId"`
			Name         string          `xml:"Name"`
		} `xml:"Attachments>FileAttachment"`

		ItemAttachments []struct {
			Name string `xml:"Name"`
		} `xml:"Attachments>ItemAttachment"`
	} `xml:"Body>GetItemResponse>ResponseMessages>GetItemResponseMessage>Items>Message"`
}

type getAttachmentResponse struct {
	FileAttachments []struct {
		Name        string `xml:"Name"`
		ContentType string `xml:"ContentType"`
		Content     string `xml:"Content"`
	} `xml:"Body>GetAttachmentResponse>ResponseMessages>GetAttachmentResponseMessage>Attachments>FileAttachment"`
}
