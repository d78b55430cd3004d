package parser

import (
	"bytes"
	"io"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// envelope is what the MIME stage hands to the HTML stage: the headers the
// receipt needs plus the first inline text/html part, decoded to UTF-8.
type envelope struct {
	Subject   string
	Date      time.Time
	Recipient string
	HTML      string
}

// extractEnvelope decodes the raw RFC822 message. A missing HTML part is not
// an error; the caller treats it as non-receipt mail.
func extractEnvelope(raw []byte) (*envelope, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	env := &envelope{}
	env.Subject, _ = mr.Header.Subject()
	env.Date, _ = mr.Header.Date()
	if addrs, err := mr.Header.AddressList("To"); err == nil && len(addrs) > 0 {
		env.Recipient = addrs[0].Address
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue // attachment
		}
		contentType, _, err := header.ContentType()
		if err != nil {
			continue
		}
		if contentType == "text/html" && env.HTML == "" {
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, err
			}
			env.HTML = string(body)
		}
	}
	return env, nil
}
