package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mfenwick/receipts2ofx/internal/normalize"
)

// FormatXLSX returns an XLSX workbook (as bytes) with one row per
// transaction, for reviewing a run before handing the OFX to finance
// software.
func (f *Formatter) FormatXLSX(accountID string, txns []normalize.Transaction) ([]byte, error) {
	wb := excelize.NewFile()
	const sheet = "Transactions"
	if index, _ := wb.GetSheetIndex(sheet); index == -1 {
		if _, err := wb.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := wb.GetSheetIndex(sheet)
	wb.SetActiveSheet(activeIndex)
	if defaultIndex, _ := wb.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = wb.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Posted Date",
		"Description",
		"Amount",
		"Currency",
		"Order ID",
		"Transaction ID",
		"Memo",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = wb.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, t := range txns {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = wb.SetCellValue(sheet, cell, v)
		}
		write(1, t.PostedDate.Format("2006-01-02"))
		write(2, t.Description)
		write(3, t.Amount.StringFixed(2))
		write(4, t.Currency)
		write(5, t.OrderID)
		write(6, t.TransactionID)
		write(7, t.Memo)
		row++
	}

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	f.Logger.Info("export.xlsx.ok", "account_id", accountID, "transactions", len(txns))
	return buf.Bytes(), nil
}
