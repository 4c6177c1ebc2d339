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

package graph

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/flowtask/mailconnector/internal/mail"
)

const fileAttachmentType = "#microsoft.graph.fileAttachment"

// graphRecipient mirrors the Graph API recipient shape.
type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
		Name    string `json:"name"`
	} `json:"emailAddress"`
}

// graphMessage represents the selected fields of a Graph API message.
type graphMessage struct {
	ID           string           `json:"id"`
	Subject      string           `json:"subject"`
	From         graphRecipient   `json:"from"`
	ToRecipients []graphRecipient `json:"toRecipients"`
	CcRecipients []graphRecipient `json:"ccRecipients"`
	Body         struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ReceivedDateTime string `json:"receivedDateTime"`
	IsRead           bool   `json:"isRead"`
	HasAttachments   bool   `json:"hasAttachments"`
}

// messagesResponse represents a page of a /messages query.
type messagesResponse struct {
	Value []graphMessage `json:"value"`
}

func (gm graphMessage) toMessage() mail.Message {
	msg := mail.Message{
		ID:             gm.ID,
		Subject:        gm.Subject,
		From:           toAddress(gm.From),
		To:             toAddresses(gm.ToRecipients),
		Cc:             toAddresses(gm.CcRecipients),
		IsRead:         gm.IsRead,
		HasAttachments: gm.HasAttachments,
	}

	// Graph reports exactly one body variant per message.
	switch strings.ToLower(gm.Body.ContentType) {
	case "html":
		msg.BodyHTML = gm.Body.Content
	default:
		msg.BodyText = gm.Body.Content
	}

	if gm.ReceivedDateTime != "" {
		if t, err := time.Parse(time.RFC3339, gm.ReceivedDateTime); err == nil {
			msg.ReceivedAt = t
		}
	}

	return msg
}

func toAddress(r graphRecipient) mail.Address {
	return mail.Address{
		Address: r.EmailAddress.Address,
		Name:    r.EmailAddress.Name,
	}
}

func toAddresses(rs []graphRecipient) []mail.Address {
	if len(rs) == 0 {
		return nil
	}
	out := make([]mail.Address, 0, len(rs))
	for _, r := range rs {
		out = append(out, toAddress(r))
	}
	return out
}

// graphAttachment represents an entry of the /attachments response.
type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}

// attachmentsResponse represents a /attachments response.
type attachmentsResponse struct {
	Value []graphAttachment `json:"value"`
}

func (ar attachmentsResponse) toAttachments() ([]mail.Attachment, error) {
	attachments := make([]mail.Attachment, 0, len(ar.Value))
	for _, ga := range ar.Value {
		att := mail.Attachment{
			Name:        ga.Name,
			ContentType: ga.ContentType,
			Item:        ga.ODataType != fileAttachmentType,
		}

		if !att.Item && ga.ContentBytes != "" {
			content, err := base64.StdEncoding.DecodeString(ga.ContentBytes)
			if err != nil {
				return nil, fmt.Errorf("decode attachment %s content: %w", ga.Name, err)
			}
			att.Content = content
		}

		attachments = append(attachments, att)
	}
	return attachments, nil
}

// OutgoingMessage is a message to be sent through the Graph sendMail
// endpoint.
type OutgoingMessage struct {
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	HTML        bool
	Attachments []mail.Attachment
}

// sendMailRequest is the wire shape of a sendMail call.
type sendMailRequest struct {
	Message graphOutgoing `json:"message"`
}

type graphOutgoing struct {
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ToRecipients  []graphRecipient      `json:"toRecipients"`
	CcRecipients  []graphRecipient      `json:"ccRecipients,omitempty"`
	BccRecipients []graphRecipient      `json:"bccRecipients,omitempty"`
	Attachments   []graphFileAttachment `json:"attachments,omitempty"`
}

type graphFileAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType,omitempty"`
	ContentBytes string `json:"contentBytes"`
}

func newGraphOutgoing(msg OutgoingMessage) graphOutgoing {
	out := graphOutgoing{
		Subject:       msg.Subject,
		ToRecipients:  toRecipients(msg.To),
		CcRecipients:  toRecipients(msg.Cc),
		BccRecipients: toRecipients(msg.Bcc),
	}
	out.Body.Content = msg.Body
	if msg.HTML {
		out.Body.ContentType = "html"
	} else {
		out.Body.ContentType = "text"
	}
	for _, att := range msg.Attachments {
		out.Attachments = append(out.Attachments, graphFileAttachment{
			ODataType:    fileAttachmentType,
			Name:         att.Name,
			ContentType:  att.ContentType,
			ContentBytes: base64.StdEncoding.EncodeToString(att.Content),
		})
	}
	return out
}

func toRecipients(addrs []string) []graphRecipient {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]graphRecipient, 0, len(addrs))
	for _, a := range addrs {
		var r graphRecipient
		r.EmailAddress.Address = a
		out = append(out, r)
	}
	return out
}
