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

// Package smtp sends messages with optional attachments over a direct SMTP
// transport. It is a near-linear request/response wrapper: the only
// branching is the not-sent outcome when an attachment mask matches no files
// and the caller chose not to send without them.
package smtp

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/flowtask/mailconnector/internal/mail"
)

// TLSMode selects how the connection is secured.
type TLSMode string

const (
	// TLSNone uses a plain connection, upgrading via STARTTLS when the
	// server offers it.
	TLSNone TLSMode = "none"

	// TLSOnConnect wraps the connection in TLS before the SMTP handshake.
	TLSOnConnect TLSMode = "ssl"

	// TLSStartTLS requires a STARTTLS upgrade and fails without one.
	TLSStartTLS TLSMode = "starttls"
)

// Settings holds the SMTP server connection parameters.
type Settings struct {
	Host string
	Port int
	TLS  TLSMode

	// AcceptAllCerts disables certificate verification, for servers with
	// self-signed certificates.
	AcceptAllCerts bool

	// SkipAuth connects without authenticating; otherwise Username and
	// Password are required.
	SkipAuth bool
	Username string
	Password string
}

// Client sends messages through a single SMTP server.
type Client struct {
	settings Settings
}

// NewClient creates an SMTP sender for the given server settings.
func NewClient(settings Settings) *Client {
	return &Client{settings: settings}
}

// Send resolves the attachment definitions, builds the MIME message and
// submits it. A no-match attachment mask yields either an error or a
// not-sent result depending on the attachment's flags.
func (c *Client) Send(msg *Message, attachments []Attachment) (mail.SendResult, error) {
	parts, notSent, err := Resolve(attachments)
	if err != nil {
		return mail.SendResult{}, err
	}
	if notSent != "" {
		return mail.SendResult{Sent: false, Status: notSent}, nil
	}

	data, err := buildMessage(msg, parts)
	if err != nil {
		return mail.SendResult{}, fmt.Errorf("build message: %w", err)
	}

	if err := c.submit(msg, data); err != nil {
		return mail.SendResult{}, err
	}

	return mail.SendResult{
		Sent:   true,
		Status: fmt.Sprintf("email sent to: %s", strings.Join(msg.To, ", ")),
	}, nil
}

// submit performs the SMTP conversation for one message.
func (c *Client) submit(msg *Message, data []byte) error {
	addr := net.JoinHostPort(c.settings.Host, fmt.Sprintf("%d", c.settings.Port))

	tlsConfig := &tls.Config{
		ServerName:         c.settings.Host,
		InsecureSkipVerify: c.settings.AcceptAllCerts,
	}

	var client *smtp.Client
	var err error

	if c.settings.TLS == TLSOnConnect {
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("smtp tls dial %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, c.settings.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp new client: %w", err)
		}
	} else {
		client, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp dial %s: %w", addr, err)
		}
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return fmt.Errorf("smtp starttls: %w", err)
			}
		} else if c.settings.TLS == TLSStartTLS {
			client.Close()
			return fmt.Errorf("smtp server %s does not support STARTTLS", addr)
		}
	}
	defer client.Close()

	if !c.settings.SkipAuth {
		if c.settings.Username == "" || c.settings.Password == "" {
			return fmt.Errorf("smtp credentials were not given for authentication")
		}
		auth := smtp.PlainAuth("", c.settings.Username, c.settings.Password, c.settings.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}

	for _, rcpt := range msg.recipients() {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}
