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

package smtp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowtask/mailconnector/internal/mail"
)

// Message is an outgoing email.
type Message struct {
	From       string
	SenderName string
	To         []string
	Cc         []string
	Bcc        []string
	Subject    string
	Body       string
	HTML       bool

	// Headers are extra headers appended verbatim after the standard set.
	Headers map[string]string
}

// Attachment defines one attachment source for a send. Exactly one of Path
// or Name+Content should be set: Path references files on disk (the final
// path element may be a glob mask), Name+Content defines an inline
// attachment.
type Attachment struct {
	Path    string
	Name    string
	Content []byte

	// RequireMatch fails the send when the path mask matches no files.
	RequireMatch bool

	// SendWithoutMatch sends the message anyway when the mask matches no
	// files. When false, a no-match mask produces a not-sent result.
	SendWithoutMatch bool
}

// recipients returns the full envelope recipient list.
func (m *Message) recipients() []string {
	all := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	all = append(all, m.To...)
	all = append(all, m.Cc...)
	all = append(all, m.Bcc...)
	return all
}

// Resolve expands attachment definitions into concrete parts with their
// content loaded. The second return value is a non-empty status string when
// the send should be skipped as a normal outcome rather than failed.
func Resolve(attachments []Attachment) ([]mail.Attachment, string, error) {
	var parts []mail.Attachment
	for _, att := range attachments {
		if att.Path == "" {
			// Inline attachments are only added when content is present.
			if len(att.Content) > 0 {
				parts = append(parts, mail.Attachment{Name: att.Name, Content: att.Content})
			}
			continue
		}

		matches, err := expandMask(att.Path)
		if err != nil {
			return nil, "", fmt.Errorf("expand attachment path %s: %w", att.Path, err)
		}

		if len(matches) == 0 {
			if att.RequireMatch {
				return nil, "", fmt.Errorf("the given file path %q had no matching files", att.Path)
			}
			if !att.SendWithoutMatch {
				return nil, fmt.Sprintf("no attachments found matching path %q, no email sent", att.Path), nil
			}
			continue
		}

		for _, match := range matches {
			content, err := os.ReadFile(match)
			if err != nil {
				return nil, "", fmt.Errorf("read attachment %s: %w", match, err)
			}
			parts = append(parts, mail.Attachment{Name: filepath.Base(match), Content: content})
		}
	}
	return parts, "", nil
}

// expandMask lists the files matching a path whose final element may be a
// glob mask. A bare directory means every file in it.
func expandMask(path string) ([]string, error) {
	mask := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		mask = filepath.Join(path, "*")
	}

	matches, err := filepath.Glob(mask)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			files = append(files, m)
		}
	}
	return files, nil
}

// buildMessage renders the full RFC 5322 message, multipart when attachments
// are present.
func buildMessage(msg *Message, parts []mail.Attachment) ([]byte, error) {
	var buf bytes.Buffer

	from := netmail.Address{Name: msg.SenderName, Address: msg.From}
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", strings.Join(msg.Cc, ", "))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", encodeSubject(msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", uuid.New(), messageIDHost(msg.From))
	for key, value := range msg.Headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", key, value)
	}
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}

	if len(parts) == 0 {
		fmt.Fprintf(&buf, "Content-Type: %s; charset=utf-8\r\n", contentType)
		fmt.Fprintf(&buf, "\r\n")
		fmt.Fprintf(&buf, "%s\r\n", msg.Body)
		return buf.Bytes(), nil
	}

	mp := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n", mp.Boundary())
	fmt.Fprintf(&buf, "\r\n")

	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", contentType+"; charset=utf-8")
	body, err := mp.CreatePart(header)
	if err != nil {
		return nil, err
	}
	body.Write([]byte(msg.Body))

	for _, part := range parts {
		if err := writeAttachmentPart(mp, part); err != nil {
			return nil, err
		}
	}

	if err := mp.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeAttachmentPart(mp *multipart.Writer, part mail.Attachment) error {
	contentType := part.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(part.Name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", contentType)
	header.Set("Content-Transfer-Encoding", "base64")
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", part.Name))

	w, err := mp.CreatePart(header)
	if err != nil {
		return err
	}

	encoded := encodeBase64Wrapped(part.Content)
	_, err = w.Write(encoded)
	return err
}

// encodeBase64Wrapped base64-encodes content in 76-character lines.
func encodeBase64Wrapped(content []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(content)

	var out bytes.Buffer
	for len(encoded) > 76 {
		out.WriteString(encoded[:76])
		out.WriteString("\r\n")
		encoded = encoded[76:]
	}
	out.WriteString(encoded)
	return out.Bytes()
}

// encodeSubject applies RFC 2047 encoding when the subject contains
// non-ASCII characters.
func encodeSubject(subject string) string {
	for _, r := range subject {
		if r > 127 {
			return mime.QEncoding.Encode("utf-8", subject)
		}
	}
	return subject
}

// messageIDHost picks a host part for the Message-ID from the sender
// address.
func messageIDHost(from string) string {
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		return from[i+1:]
	}
	return "localhost"
}
