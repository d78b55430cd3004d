package constants

// ReceiptSubject is the subject line Apple uses for purchase receipts; the
// mailbox search and the parser both key on it.
const ReceiptSubject = "Your receipt from Apple."

// ReceiptContainerClass marks the desktop layout div that holds every field
// the parser reads. A message without it is not a receipt.
const ReceiptContainerClass = "aapl-desktop-div"

// TitleRenames fixes up item titles Apple leaves ambiguous.
var TitleRenames = map[string]string{
	"Premier (Automatic Renewal)": "Apple One Premier",
}

// TopUpPrefix marks balance top-up items, the one line type the receipt
// layout encodes as a credit rather than a purchase.
const TopUpPrefix = "Money added to"
