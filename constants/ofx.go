package constants

// TrnType is the OFX transaction type written per statement entry.
type TrnType string

// Stable values (finance software matches on these exact strings).
const (
	TrnTypeDebit  TrnType = "DEBIT"
	TrnTypeCredit TrnType = "CREDIT"
)

// BankID identifies this exporter in the OFX BANKACCTFROM block.
const BankID = "receipts2ofx"
