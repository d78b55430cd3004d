// Package pipeline coordinates one batch run: fetch receipt mail, parse each
// message, normalize the line items and hand the transactions to the
// exporter. Single-threaded by design; a run fetches a bounded set and
// exits.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/mfenwick/receipts2ofx/constants"
	"github.com/mfenwick/receipts2ofx/internal/mailsource"
	"github.com/mfenwick/receipts2ofx/internal/normalize"
	"github.com/mfenwick/receipts2ofx/internal/parser"
)

// Failure records one message the parser rejected, with enough context to
// locate it in the mailbox.
type Failure struct {
	Subject    string
	ReceivedAt time.Time
	Err        error
}

// Result is the outcome of one run. Parse failures are collected here, not
// fatal: one malformed receipt must not sink the batch.
type Result struct {
	Fetched      int
	Receipts     int
	Skipped      int
	Failures     []Failure
	AccountID    string
	Currency     string
	Transactions []normalize.Transaction
}

// Processor wires the stages together.
type Processor struct {
	Source mailsource.Source
	Parser *parser.Parser
	Logger *slog.Logger
}

func NewProcessor(source mailsource.Source, p *parser.Parser, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = parser.NewParser(logger)
	}
	return &Processor{Source: source, Parser: p, Logger: logger}
}

// Run fetches the window and processes every message sequentially. Messages
// without receipt markup are skipped; unrecognized receipt layouts are
// collected as failures; a normalization error aborts the run since it means
// the account seed is misconfigured. Transactions come back sorted by posted
// date ascending, which the OFX formatter expects of its caller.
func (p *Processor) Run(ctx context.Context, accountSeed string, w mailsource.Window) (*Result, error) {
	msgs, err := p.Source.Fetch(ctx, w)
	if err != nil {
		return nil, err
	}

	res := &Result{Fetched: len(msgs)}
	var items []parser.LineItem
	for _, msg := range msgs {
		receipt, err := p.Parser.Parse(msg)
		if err != nil {
			p.Logger.Error("pipeline.parse.failed",
				"subject", msg.Subject,
				"received_at", msg.ReceivedAt,
				"err", err,
			)
			res.Failures = append(res.Failures, Failure{
				Subject:    msg.Subject,
				ReceivedAt: msg.ReceivedAt,
				Err:        err,
			})
			continue
		}
		if receipt == nil {
			res.Skipped++
			continue
		}
		res.Receipts++
		items = append(items, receipt.Items...)
		p.Logger.Info("pipeline.parse.ok",
			"order_id", receipt.OrderID,
			"items", len(receipt.Items),
		)
	}

	txns, err := normalize.Normalize(accountSeed, items)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].PostedDate.Before(txns[j].PostedDate)
	})
	res.Transactions = txns
	// Normalize validated the seed, so this cannot fail now
	res.AccountID, _ = normalize.AccountID(accountSeed)
	res.Currency = constants.DefaultCurrency
	if len(txns) > 0 {
		res.Currency = txns[0].Currency
	}

	p.Logger.Info("pipeline.run.ok",
		"fetched", res.Fetched,
		"receipts", res.Receipts,
		"skipped", res.Skipped,
		"failed", len(res.Failures),
		"transactions", len(res.Transactions),
	)
	return res, nil
}
