// Package mailsource supplies raw receipt emails to the pipeline. The core
// only sees the Source interface; the IMAP client lives behind it so the
// pipeline stays unit-testable without a network.
package mailsource

import (
	"context"
	"time"
)

// Message is one fetched email: the full RFC822 bytes plus the metadata the
// run summary needs to point at a failing message.
type Message struct {
	Raw        []byte
	Subject    string
	ReceivedAt time.Time
}

// Window bounds a fetch: one folder, messages received since a date, subject
// filtered server-side.
type Window struct {
	Folder  string
	Since   time.Time
	Subject string
}

// Source returns the bounded set of messages for one batch run.
type Source interface {
	Fetch(ctx context.Context, w Window) ([]Message, error)
}
