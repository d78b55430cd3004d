// Package normalize assigns stable identifiers to accounts and transactions.
// The pipeline keeps no state between runs; stability comes entirely from
// deterministic derivation over the mailbox address and the receipt fields.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfenwick/receipts2ofx/internal/common"
	"github.com/mfenwick/receipts2ofx/internal/parser"
)

// Fixed namespaces for SHA1-based UUID derivation. Changing either would
// re-key every exported statement, so they are frozen.
var (
	nsAccount     = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") // RFC 4122 DNS namespace
	nsTransaction = uuid.MustParse("91f1c6a7-4f6a-4b57-9b2e-4a1d51c20bd4")
)

// Transaction is the unit written to the export file.
type Transaction struct {
	AccountID     string
	TransactionID string
	PostedDate    time.Time
	Amount        decimal.Decimal
	Currency      string
	Description   string
	Memo          string
	OrderID       string
}

// AccountID derives the stable account identifier from the mailbox address.
// The same seed yields the same ID on every run and every machine.
func AccountID(accountSeed string) (string, error) {
	seed := strings.ToLower(strings.TrimSpace(accountSeed))
	if seed == "" {
		return "", common.NewNormalizationError("account seed is empty")
	}
	return uuid.NewSHA1(nsAccount, []byte(seed)).String(), nil
}

// transactionID hashes the account, order and the item's position within its
// receipt. Re-parsing the same receipt reproduces the same IDs; two distinct
// items in one order never collide; a resent confirmation collapses onto the
// transactions of the first copy.
func transactionID(accountID, orderID string, ordinal int) string {
	key := accountID + "|" + orderID + "|" + strconv.Itoa(ordinal)
	return uuid.NewSHA1(nsTransaction, []byte(key)).String()
}

// Normalize maps line items to transactions, dropping within-run duplicates.
// Cross-run deduplication is left to the importing finance software, which
// matches on the stable transaction ID.
func Normalize(accountSeed string, items []parser.LineItem) ([]Transaction, error) {
	accountID, err := AccountID(accountSeed)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(items))
	txns := make([]Transaction, 0, len(items))
	for _, it := range items {
		id := transactionID(accountID, it.OrderID, it.Ordinal)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		txns = append(txns, Transaction{
			AccountID:     accountID,
			TransactionID: id,
			PostedDate:    it.Date,
			Amount:        it.Amount,
			Currency:      it.Currency,
			Description:   it.Description,
			Memo:          it.Memo,
			OrderID:       it.OrderID,
		})
	}
	return txns, nil
}
