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

// Package imapread reads messages from an IMAP server. Unlike the cloud
// mailbox engine this variant is nearly linear: unread filtering happens
// server side via the UNSEEN search, and no attachments are materialized.
package imapread

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomail "github.com/emersion/go-message/mail"

	"github.com/flowtask/mailconnector/internal/mail"
)

// Settings holds the IMAP server connection parameters.
type Settings struct {
	Host string
	Port int

	// UseTLS dials an implicit-TLS (IMAPS) connection.
	UseTLS bool

	// AcceptAllCerts disables certificate verification.
	AcceptAllCerts bool

	Username string
	Password string

	// Folder defaults to INBOX.
	Folder string
}

// Options control filtering and post-read mutation.
type Options struct {
	MaxMessages     int
	UnreadOnly      bool
	MarkAsRead      bool
	DeleteAfterRead bool
}

// Read connects to the server, searches the folder and returns up to
// MaxMessages results. With DeleteAfterRead the returned messages are
// flagged \Deleted and expunged; otherwise MarkAsRead flags them \Seen.
func Read(settings Settings, opts Options) ([]mail.RetrievalResult, error) {
	addr := net.JoinHostPort(settings.Host, fmt.Sprintf("%d", settings.Port))

	var client *imapclient.Client
	var err error

	if settings.UseTLS {
		client, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{
				ServerName:         settings.Host,
				InsecureSkipVerify: settings.AcceptAllCerts,
			},
		})
	} else {
		client, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("imap connect %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Login(settings.Username, settings.Password).Wait(); err != nil {
		return nil, fmt.Errorf("imap login %s: %w", settings.Username, err)
	}
	defer client.Logout()

	folder := settings.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", folder, err)
	}

	criteria := &imap.SearchCriteria{}
	if opts.UnreadOnly {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}

	searchData, err := client.Search(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}

	seqNums := searchData.AllSeqNums()
	if len(seqNums) == 0 {
		return nil, nil
	}
	if opts.MaxMessages > 0 && len(seqNums) > opts.MaxMessages {
		seqNums = seqNums[:opts.MaxMessages]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOptions := &imap.FetchOptions{
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	buffers, err := client.Fetch(imap.SeqSetNum(seqNums...), fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	var results []mail.RetrievalResult
	for _, buf := range buffers {
		res := resultFromBuffer(buf, bodySection)
		results = append(results, res)

		if !opts.DeleteAfterRead && opts.MarkAsRead {
			store := client.Store(imap.SeqSetNum(buf.SeqNum), &imap.StoreFlags{
				Op:     imap.StoreFlagsAdd,
				Silent: true,
				Flags:  []imap.Flag{imap.FlagSeen},
			}, nil)
			if err := store.Close(); err != nil {
				return nil, fmt.Errorf("imap mark seen: %w", err)
			}
		}
	}

	if opts.DeleteAfterRead && len(buffers) > 0 {
		nums := make([]uint32, 0, len(buffers))
		for _, buf := range buffers {
			nums = append(nums, buf.SeqNum)
		}
		store := client.Store(imap.SeqSetNum(nums...), &imap.StoreFlags{
			Op:    imap.StoreFlagsAdd,
			Flags: []imap.Flag{imap.FlagDeleted},
		}, nil)
		if err := store.Close(); err != nil {
			return nil, fmt.Errorf("imap flag deleted: %w", err)
		}
		if err := client.Expunge().Close(); err != nil {
			return nil, fmt.Errorf("imap expunge: %w", err)
		}
	}

	slog.Debug("imap read complete", "folder", folder, "results", len(results))
	return results, nil
}

func resultFromBuffer(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) mail.RetrievalResult {
	var res mail.RetrievalResult

	if env := buf.Envelope; env != nil {
		res.ID = env.MessageID
		res.ReceivedAt = env.Date
		res.Subject = env.Subject
		if len(env.From) > 0 {
			res.From = env.From[0].Addr()
		}
		res.To = imapAddresses(env.To)
		res.Cc = imapAddresses(env.Cc)
	}

	if content := buf.FindBodySection(section); len(content) > 0 {
		res.BodyText, res.BodyHTML = extractBodies(content)
	}

	return res
}

func imapAddresses(addrs []imap.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Addr())
	}
	return out
}

// extractBodies pulls the text and HTML parts out of a raw RFC 5322 message.
func extractBodies(raw []byte) (text, html string) {
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Not MIME-parseable; treat the whole body as plain text.
		return string(raw), ""
	}
	defer reader.Close()

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, err := header.ContentType()
		if err != nil {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.EqualFold(contentType, "text/plain") && text == "":
			text = string(body)
		case strings.EqualFold(contentType, "text/html") && html == "":
			html = string(body)
		}
	}

	return text, html
}
