// Package export serializes the normalized transaction set: OFX for finance
// software, XLSX for eyeballing a run.
package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfenwick/receipts2ofx/constants"
	"github.com/mfenwick/receipts2ofx/internal/common"
	"github.com/mfenwick/receipts2ofx/internal/normalize"
)

// Formatter writes OFX 1.x bank statements. Transactions are emitted in the
// order given; callers wanting chronological output sort by posted date
// before calling.
type Formatter struct {
	BankID string
	Logger *slog.Logger

	now        func() time.Time
	newTranUID func() string
}

func NewFormatter(logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{
		BankID:     constants.BankID,
		Logger:     logger,
		now:        time.Now,
		newTranUID: uuid.NewString,
	}
}

const (
	dateFormat     = "20060102"
	datetimeFormat = "20060102150405"
)

// FormatOFX serializes one account statement. An empty transaction set still
// produces a valid, empty statement.
func (f *Formatter) FormatOFX(accountID string, txns []normalize.Transaction) ([]byte, error) {
	if accountID == "" {
		return nil, common.NewFormatError("account id is empty")
	}

	currency := constants.DefaultCurrency
	start, end := f.now(), f.now()
	if len(txns) > 0 {
		currency = txns[0].Currency
		start, end = txns[0].PostedDate, txns[0].PostedDate
		for _, t := range txns {
			if t.PostedDate.Before(start) {
				start = t.PostedDate
			}
			if t.PostedDate.After(end) {
				end = t.PostedDate
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString("OFXHEADER:100\nDATA:OFXSGML\nVERSION:102\nSECURITY:NONE\n")
	buf.WriteString("ENCODING:USASCII\nCHARSET:1252\nCOMPRESSION:NONE\n")
	buf.WriteString("OLDFILEUID:NONE\nNEWFILEUID:NONE\n\n")

	buf.WriteString("<OFX>\n")
	buf.WriteString("  <SIGNONMSGSRSV1>\n    <SONRS>\n")
	buf.WriteString("      <STATUS>\n        <CODE>0</CODE>\n        <SEVERITY>INFO</SEVERITY>\n      </STATUS>\n")
	fmt.Fprintf(&buf, "      <DTSERVER>%s</DTSERVER>\n", f.now().Format(datetimeFormat))
	buf.WriteString("      <LANGUAGE>ENG</LANGUAGE>\n    </SONRS>\n  </SIGNONMSGSRSV1>\n")

	buf.WriteString("  <BANKMSGSRSV1>\n    <STMTTRNRS>\n")
	fmt.Fprintf(&buf, "      <TRNUID>%s</TRNUID>\n", f.newTranUID())
	buf.WriteString("      <STATUS>\n        <CODE>0</CODE>\n        <SEVERITY>INFO</SEVERITY>\n      </STATUS>\n")
	buf.WriteString("      <STMTRS>\n")
	fmt.Fprintf(&buf, "        <CURDEF>%s</CURDEF>\n", currency)
	buf.WriteString("        <BANKACCTFROM>\n")
	fmt.Fprintf(&buf, "          <BANKID>%s</BANKID>\n", f.BankID)
	fmt.Fprintf(&buf, "          <ACCTID>%s</ACCTID>\n", accountID)
	buf.WriteString("          <ACCTTYPE>CHECKING</ACCTTYPE>\n        </BANKACCTFROM>\n")

	buf.WriteString("        <BANKTRANLIST>\n")
	fmt.Fprintf(&buf, "          <DTSTART>%s</DTSTART>\n", start.Format(dateFormat))
	fmt.Fprintf(&buf, "          <DTEND>%s</DTEND>\n", end.Format(dateFormat))
	for _, t := range txns {
		if err := writeStmtTrn(&buf, t); err != nil {
			return nil, err
		}
	}
	buf.WriteString("        </BANKTRANLIST>\n")

	buf.WriteString("        <LEDGERBAL>\n          <BALAMT>0.00</BALAMT>\n")
	fmt.Fprintf(&buf, "          <DTASOF>%s</DTASOF>\n", f.now().Format(datetimeFormat))
	buf.WriteString("        </LEDGERBAL>\n      </STMTRS>\n    </STMTTRNRS>\n  </BANKMSGSRSV1>\n</OFX>\n")

	f.Logger.Info("export.ofx.ok", "account_id", accountID, "transactions", len(txns))
	return buf.Bytes(), nil
}

func writeStmtTrn(buf *bytes.Buffer, t normalize.Transaction) error {
	if t.TransactionID == "" {
		return common.NewFormatError("transaction has no id")
	}
	if t.Description == "" {
		return common.NewFormatError("transaction " + t.TransactionID + " has no description")
	}
	if t.PostedDate.IsZero() {
		return common.NewFormatError("transaction " + t.TransactionID + " has no posted date")
	}

	// purchases post as negative amounts; the rare top-up credit flips back
	// to positive
	trnType := constants.TrnTypeDebit
	if t.Amount.LessThan(decimal.Zero) {
		trnType = constants.TrnTypeCredit
	}

	buf.WriteString("          <STMTTRN>\n")
	fmt.Fprintf(buf, "            <TRNTYPE>%s</TRNTYPE>\n", trnType)
	fmt.Fprintf(buf, "            <DTPOSTED>%s</DTPOSTED>\n", t.PostedDate.Format(dateFormat))
	fmt.Fprintf(buf, "            <TRNAMT>%s</TRNAMT>\n", t.Amount.Neg().StringFixed(2))
	fmt.Fprintf(buf, "            <FITID>%s</FITID>\n", t.TransactionID)
	fmt.Fprintf(buf, "            <NAME>%s</NAME>\n", escapeSGML(t.Description))
	if t.Memo != "" {
		fmt.Fprintf(buf, "            <MEMO>%s</MEMO>\n", escapeSGML(t.Memo))
	}
	buf.WriteString("          </STMTTRN>\n")
	return nil
}

var sgmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeSGML(s string) string {
	return sgmlEscaper.Replace(s)
}
