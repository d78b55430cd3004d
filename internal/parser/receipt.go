// Package parser turns one raw receipt email into structured line items.
// Parsing is a pure function over the message bytes: no I/O, no state.
package parser

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/mfenwick/receipts2ofx/constants"
	"github.com/mfenwick/receipts2ofx/internal/common"
	"github.com/mfenwick/receipts2ofx/internal/mailsource"
)

// Receipt is one parsed purchase confirmation: a single order with one or
// more line items and the totals printed on the receipt.
type Receipt struct {
	OrderID        string
	AppleID        string
	RecipientEmail string
	Date           time.Time
	Currency       string
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal
	Items          []LineItem
}

// LineItem is one purchased item. Amount is the tax-inclusive share of the
// receipt total allocated to this item. Ordinal is the item's 0-based
// position within its receipt, which together with OrderID identifies the
// item stably across re-imports.
type LineItem struct {
	OrderID     string
	Ordinal     int
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Currency    string
	Memo        string
}

// Parser extracts line items from Apple receipt HTML.
type Parser struct {
	Logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{Logger: logger}
}

var (
	wsRe         = regexp.MustCompile(`\s+`)
	orderLabelRe = regexp.MustCompile(`ORDER\s+ID`)
	appleLabelRe = regexp.MustCompile(`APPLE\s+(ACCOUNT|ID)`)
)

// cleanText decodes non-breaking spaces, collapses runs of whitespace and
// trims. Applied to every string read out of the markup.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

// Parse extracts the receipt from one message. A message without an HTML
// part, or whose HTML lacks the receipt container, is not a receipt and
// yields (nil, nil). A present container with an unrecognized layout is a
// parse error so vendor template drift is reported rather than dropped.
func (p *Parser) Parse(msg mailsource.Message) (*Receipt, error) {
	env, err := extractEnvelope(msg.Raw)
	if err != nil {
		return nil, common.NewParseError("decoding message", err)
	}
	if env.HTML == "" {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(env.HTML))
	if err != nil {
		return nil, common.NewParseError("parsing html body", err)
	}
	div := doc.Find("div." + constants.ReceiptContainerClass).First()
	if div.Length() == 0 {
		return nil, nil
	}

	date := env.Date
	if date.IsZero() {
		date = msg.ReceivedAt
	}
	if date.IsZero() {
		return nil, common.NewParseError("message carries no date", nil)
	}

	r := &Receipt{RecipientEmail: env.Recipient, Date: date}

	r.OrderID = labeledToken(div, orderLabelRe)
	if r.OrderID == "" {
		return nil, common.NewParseError("order id not found in receipt markup", nil)
	}
	if appleID := labeledToken(div, appleLabelRe); strings.Contains(appleID, "@") {
		r.AppleID = appleID
	}

	if err := p.parseItems(div, r); err != nil {
		return nil, err
	}
	if err := p.parseTotals(div, r); err != nil {
		return nil, err
	}
	if err := p.allocateTax(r); err != nil {
		return nil, err
	}
	p.buildMemos(r)
	return r, nil
}

// labeledToken locates the innermost <td> whose text matches the label and
// returns the last whitespace-separated token of that cell, which is where
// the receipt layout puts the value.
func labeledToken(div *goquery.Selection, label *regexp.Regexp) string {
	token := ""
	div.Find("td").Each(func(_ int, cell *goquery.Selection) {
		text := cleanText(cell.Text())
		if !label.MatchString(text) {
			return
		}
		fields := strings.Fields(text)
		if len(fields) > 0 {
			// descendants match after ancestors, so the last hit wins
			token = fields[len(fields)-1]
		}
	})
	return token
}

// parseMoney parses a price cell like "$4.99" or "-C$12.50".
func parseMoney(text string) (decimal.Decimal, string, error) {
	s := cleanText(text)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	code, num, ok := constants.SplitCurrency(s)
	if !ok {
		code = constants.DefaultCurrency
	}
	num = strings.ReplaceAll(num, ",", "")
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, "", err
	}
	if neg {
		d = d.Neg()
	}
	return d, code, nil
}

func (p *Parser) parseItems(div *goquery.Selection, r *Receipt) error {
	var firstErr error
	div.Find("a.item-links").Each(func(_ int, link *goquery.Selection) {
		cell := link.Closest("td")
		if cell.Length() == 0 {
			return
		}
		title := cleanText(cell.Find("span.title").First().Text())
		if title == "" {
			return
		}
		if renamed, ok := constants.TitleRenames[title]; ok {
			title = renamed
		}
		duration := cleanText(cell.Find("span.duration").First().Text())

		row := cell.Closest("tr")
		if row.Length() == 0 {
			return
		}
		price, currency, err := parseMoney(row.Find("td").Last().Text())
		if err != nil {
			if firstErr == nil {
				firstErr = common.NewParseError("unparseable price for item "+title, err)
			}
			return
		}
		// balance top-ups are the one credit the layout encodes
		if strings.HasPrefix(title, constants.TopUpPrefix) {
			price = price.Neg()
		}
		if r.Currency == "" {
			r.Currency = currency
		}
		r.Items = append(r.Items, LineItem{
			OrderID:     r.OrderID,
			Ordinal:     len(r.Items),
			Date:        r.Date,
			Description: title,
			Amount:      price,
			Currency:    currency,
			Memo:        duration,
		})
	})
	if firstErr != nil {
		return firstErr
	}
	if len(r.Items) == 0 {
		return common.NewParseError("no line items found under order "+r.OrderID, nil)
	}
	return nil
}

func (p *Parser) parseTotals(div *goquery.Selection, r *Receipt) error {
	amount := func(label string) decimal.Decimal {
		var found decimal.Decimal
		div.Find("td").Each(func(_ int, cell *goquery.Selection) {
			if !strings.EqualFold(cleanText(cell.Text()), label) {
				return
			}
			row := cell.Closest("tr")
			if row.Length() == 0 {
				return
			}
			if d, _, err := parseMoney(row.Find("td").Last().Text()); err == nil {
				found = d
			}
		})
		return found
	}

	r.Subtotal = amount("Subtotal")
	r.Tax = amount("Tax")
	r.Total = amount("Total")
	if r.Tax.IsZero() && r.Subtotal.IsZero() {
		r.Subtotal = r.Total
	}

	itemSum := decimal.Zero
	for _, it := range r.Items {
		itemSum = itemSum.Add(it.Amount)
	}
	if !itemSum.Equal(r.Subtotal) {
		p.Logger.Warn("parser.subtotal_mismatch",
			"order_id", r.OrderID,
			"calculated", itemSum.String(),
			"expected", r.Subtotal.String(),
		)
	}
	return nil
}

// allocateTax spreads the receipt tax across items proportionally to price,
// pushing any rounding difference onto the last item so the allocated
// amounts always sum to the printed total.
func (p *Parser) allocateTax(r *Receipt) error {
	if r.Total.IsZero() {
		return nil
	}
	sum := decimal.Zero
	for i := range r.Items {
		itemTax := r.Items[i].Amount.Mul(r.Tax).Div(r.Total).Round(2)
		r.Items[i].Amount = r.Items[i].Amount.Add(itemTax)
		sum = sum.Add(r.Items[i].Amount)
	}
	last := len(r.Items) - 1
	r.Items[last].Amount = r.Items[last].Amount.Add(r.Total.Sub(sum))

	sum = decimal.Zero
	for _, it := range r.Items {
		sum = sum.Add(it.Amount)
	}
	if !sum.Equal(r.Total) {
		return common.NewParseError(
			"allocated amounts do not sum to receipt total for order "+r.OrderID, nil)
	}
	return nil
}

// buildMemos records a differing Apple ID and any subscription duration so
// the statement entry stays traceable to its source.
func (p *Parser) buildMemos(r *Receipt) {
	prefix := ""
	if r.AppleID != "" && !strings.EqualFold(r.AppleID, r.RecipientEmail) {
		prefix = "Apple ID: " + r.AppleID
	}
	for i := range r.Items {
		memo := prefix
		if r.Items[i].Memo != "" {
			if memo != "" {
				memo += "; "
			}
			memo += "Subscription: " + r.Items[i].Memo
		}
		r.Items[i].Memo = memo
	}
}
