package mailsource

import (
	"context"
	"log/slog"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/mfenwick/receipts2ofx/internal/common"
)

// IMAPSource fetches receipt mail over IMAP with implicit TLS. A fresh
// connection is dialed per call; a batch run needs exactly one.
type IMAPSource struct {
	Addr     string // host:port
	Email    string
	Password string
	Logger   *slog.Logger
}

func NewIMAPSource(addr, email, password string, logger *slog.Logger) *IMAPSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &IMAPSource{Addr: addr, Email: email, Password: password, Logger: logger}
}

func (s *IMAPSource) dial() (*imapclient.Client, error) {
	c, err := imapclient.DialTLS(s.Addr, nil)
	if err != nil {
		return nil, common.NewMailError("connecting to "+s.Addr, err)
	}
	if err := c.Login(s.Email, s.Password).Wait(); err != nil {
		_ = c.Close()
		return nil, common.NewMailError("login failed for "+s.Email, err)
	}
	s.Logger.Info("imap.login.ok", "server", s.Addr, "email", s.Email)
	return c, nil
}

// Fetch selects the folder, searches by internal date and subject, and
// downloads the full body of every hit.
func (s *IMAPSource) Fetch(ctx context.Context, w Window) ([]Message, error) {
	c, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.Logout().Wait(); err != nil {
			s.Logger.Warn("imap.logout.failed", "err", err)
		}
	}()

	if _, err := c.Select(w.Folder, nil).Wait(); err != nil {
		return nil, common.NewMailError("selecting folder "+w.Folder, err)
	}

	criteria := &imap.SearchCriteria{Since: w.Since}
	if w.Subject != "" {
		criteria.Header = []imap.SearchCriteriaHeaderField{
			{Key: "Subject", Value: w.Subject},
		}
	}
	found, err := c.Search(criteria, nil).Wait()
	if err != nil {
		return nil, common.NewMailError("searching folder "+w.Folder, err)
	}
	nums := found.AllSeqNums()
	s.Logger.Info("imap.search.ok",
		"folder", w.Folder,
		"since", w.Since.Format("2006-01-02"),
		"matches", len(nums),
	)
	if len(nums) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{}
	fetched, err := c.Fetch(imap.SeqSetNum(nums...), &imap.FetchOptions{
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}).Collect()
	if err != nil {
		return nil, common.NewMailError("fetching messages", err)
	}

	msgs := make([]Message, 0, len(fetched))
	for _, m := range fetched {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := m.FindBodySection(bodySection)
		if len(raw) == 0 {
			s.Logger.Warn("imap.fetch.empty_body", "seq", m.SeqNum)
			continue
		}
		msg := Message{Raw: raw, ReceivedAt: m.InternalDate}
		if m.Envelope != nil {
			msg.Subject = m.Envelope.Subject
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ListFolders names every mailbox on the server; used by the mailfolders
// utility to discover the receipts folder for the config file.
func (s *IMAPSource) ListFolders(ctx context.Context) ([]string, error) {
	c, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.Logout().Wait(); err != nil {
			s.Logger.Warn("imap.logout.failed", "err", err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	boxes, err := c.List("", "*", nil).Collect()
	if err != nil {
		return nil, common.NewMailError("listing folders", err)
	}
	names := make([]string, 0, len(boxes))
	for _, b := range boxes {
		names = append(names, b.Mailbox)
	}
	return names, nil
}
