package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfenwick/receipts2ofx/internal/common"
	"github.com/mfenwick/receipts2ofx/internal/mailsource"
)

// fakeSource is an in-memory MailSource for pipeline tests.
type fakeSource struct {
	msgs []mailsource.Message
	err  error
}

func (f *fakeSource) Fetch(ctx context.Context, w mailsource.Window) ([]mailsource.Message, error) {
	return f.msgs, f.err
}

func receiptMessage(orderID, title, price, total string) mailsource.Message {
	html := `<html><body><div class="aapl-desktop-div">
<table>
<tr><td>APPLE ACCOUNT user@example.com</td></tr>
<tr><td>ORDER ID ` + orderID + `</td></tr>
</table>
<table>
<tr><td><a class="item-links" href="#"><span class="title">` + title + `</span></a></td><td>` + price + `</td></tr>
</table>
<table>
<tr><td>Subtotal</td><td>` + total + `</td></tr>
<tr><td>Total</td><td>` + total + `</td></tr>
</table>
</div></body></html>`
	raw := "From: Apple <no_reply@email.apple.com>\r\n" +
		"To: user@example.com\r\n" +
		"Subject: Your receipt from Apple.\r\n" +
		"Date: Tue, 14 May 2024 09:30:00 +0000\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" + html
	return mailsource.Message{
		Raw:        []byte(raw),
		Subject:    "Your receipt from Apple.",
		ReceivedAt: time.Date(2024, 5, 14, 9, 31, 0, 0, time.UTC),
	}
}

func driftedMessage() mailsource.Message {
	raw := "From: Apple <no_reply@email.apple.com>\r\n" +
		"To: user@example.com\r\n" +
		"Subject: Your receipt from Apple.\r\n" +
		"Date: Wed, 15 May 2024 09:30:00 +0000\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" + `<html><body><div class="aapl-desktop-div"><p>redesigned template</p></div></body></html>`
	return mailsource.Message{
		Raw:        []byte(raw),
		Subject:    "Your receipt from Apple.",
		ReceivedAt: time.Date(2024, 5, 15, 9, 31, 0, 0, time.UTC),
	}
}

func newsletterMessage() mailsource.Message {
	raw := "From: news@example.com\r\n" +
		"To: user@example.com\r\n" +
		"Subject: weekly digest\r\n" +
		"Date: Thu, 16 May 2024 09:30:00 +0000\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\nhello\r\n"
	return mailsource.Message{Raw: []byte(raw), Subject: "weekly digest"}
}

func TestRunEndToEnd(t *testing.T) {
	src := &fakeSource{msgs: []mailsource.Message{
		receiptMessage("A1", "Apple Music", "$9.99", "$9.99"),
		newsletterMessage(),
		driftedMessage(),
	}}
	proc := NewProcessor(src, nil, nil)

	res, err := proc.Run(context.Background(), "user@example.com", mailsource.Window{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Fetched != 3 {
		t.Errorf("fetched = %d, want 3", res.Fetched)
	}
	if res.Receipts != 1 {
		t.Errorf("receipts = %d, want 1", res.Receipts)
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(res.Failures))
	}
	f := res.Failures[0]
	if !common.IsParseError(f.Err) {
		t.Errorf("failure err = %v, want parse error", f.Err)
	}
	if !strings.Contains(f.Subject, "Your receipt from Apple.") || f.ReceivedAt.IsZero() {
		t.Errorf("failure lacks locating context: %+v", f)
	}

	if len(res.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(res.Transactions))
	}
	tx := res.Transactions[0]
	if tx.AccountID != res.AccountID {
		t.Errorf("result account id %q != transaction account id %q", res.AccountID, tx.AccountID)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("amount = %s, want 9.99", tx.Amount)
	}
	if res.Currency != "USD" {
		t.Errorf("currency = %q, want USD", res.Currency)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	src := &fakeSource{msgs: []mailsource.Message{
		receiptMessage("B2", "iCloud+ 200GB", "$2.99", "$2.99"),
		receiptMessage("C3", "Apple TV+", "$9.99", "$9.99"),
	}}
	proc := NewProcessor(src, nil, nil)

	ids := func() map[string]bool {
		res, err := proc.Run(context.Background(), "user@example.com", mailsource.Window{})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		set := make(map[string]bool, len(res.Transactions))
		for _, tx := range res.Transactions {
			set[tx.TransactionID] = true
		}
		return set
	}

	first, second := ids(), ids()
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("id sets = %d, %d, want 2, 2", len(first), len(second))
	}
	for id := range first {
		if !second[id] {
			t.Errorf("id %s from first run missing in second run", id)
		}
	}
}

func TestRunResentReceiptCollapses(t *testing.T) {
	src := &fakeSource{msgs: []mailsource.Message{
		receiptMessage("B2", "iCloud+ 200GB", "$2.99", "$2.99"),
		receiptMessage("B2", "iCloud+ 200GB", "$2.99", "$2.99"),
	}}
	proc := NewProcessor(src, nil, nil)

	res, err := proc.Run(context.Background(), "user@example.com", mailsource.Window{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Receipts != 2 {
		t.Errorf("receipts = %d, want 2", res.Receipts)
	}
	if len(res.Transactions) != 1 {
		t.Errorf("transactions = %d, want 1 after dedupe", len(res.Transactions))
	}
}

func TestRunSortsByPostedDate(t *testing.T) {
	later := receiptMessage("D4", "Arcade", "$4.99", "$4.99")
	later.Raw = []byte(strings.Replace(string(later.Raw), "14 May 2024", "20 May 2024", 1))
	src := &fakeSource{msgs: []mailsource.Message{
		later,
		receiptMessage("E5", "Fitness+", "$9.99", "$9.99"),
	}}
	proc := NewProcessor(src, nil, nil)

	res, err := proc.Run(context.Background(), "user@example.com", mailsource.Window{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(res.Transactions))
	}
	if res.Transactions[0].PostedDate.After(res.Transactions[1].PostedDate) {
		t.Error("transactions not sorted by posted date ascending")
	}
}

func TestRunEmptySeedAborts(t *testing.T) {
	src := &fakeSource{msgs: []mailsource.Message{
		receiptMessage("A1", "Apple Music", "$9.99", "$9.99"),
	}}
	proc := NewProcessor(src, nil, nil)

	if _, err := proc.Run(context.Background(), "", mailsource.Window{}); !errors.Is(err, common.ErrNormalization) {
		t.Errorf("error = %v, want normalization error", err)
	}
}

func TestRunSourceErrorPropagates(t *testing.T) {
	src := &fakeSource{err: common.NewMailError("boom", nil)}
	proc := NewProcessor(src, nil, nil)

	if _, err := proc.Run(context.Background(), "user@example.com", mailsource.Window{}); !errors.Is(err, common.ErrMail) {
		t.Errorf("error = %v, want mail error", err)
	}
}

func TestRunEmptyMailboxSucceeds(t *testing.T) {
	proc := NewProcessor(&fakeSource{}, nil, nil)

	res, err := proc.Run(context.Background(), "user@example.com", mailsource.Window{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Transactions) != 0 || res.AccountID == "" {
		t.Errorf("empty run should still derive the account id: %+v", res)
	}
	if res.Currency != "USD" {
		t.Errorf("empty run currency = %q, want the USD default", res.Currency)
	}
}
