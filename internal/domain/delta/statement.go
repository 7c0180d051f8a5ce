package delta

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tealeg/xlsx"

	"github.com/dsatschool/delta-api/internal/pkg/logger"
)

const (
	statementMaxRows     = 10000
	statementContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	statementDateLayout  = "2006-01-02"
)

var statementHeaders = []string{
	"Date", "Transaction ID", "Type", "Description", "Amount", "Balance Before", "Balance After", "Status", "Reversed",
}

// StatementLink points at an uploaded statement
type StatementLink struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportStatement writes the user's transactions in [from, to) to a workbook, uploads it
// and returns a presigned download link.
func (s *Service) ExportStatement(ctx context.Context, userID uuid.UUID, from, to time.Time) (*StatementLink, error) {
	if s.store == nil {
		return nil, ErrExportDisabled
	}
	if !from.Before(to) {
		return nil, ErrInvalidDateRange
	}

	w, err := s.repo.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := s.repo.TransactionsInRange(ctx, userID, from, to, statementMaxRows)
	if err != nil {
		return nil, err
	}

	file, err := buildStatement(w, txs, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: build statement", ErrInternal)
	}
	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("%w: write statement", ErrInternal)
	}

	key := fmt.Sprintf("statements/%s/%s_%s_%s.xlsx",
		userID, from.UTC().Format(statementDateLayout), to.UTC().Format(statementDateLayout), uuid.NewString())
	size := int64(buf.Len())
	if err := s.store.Put(ctx, key, &buf, size, statementContentType); err != nil {
		return nil, fmt.Errorf("%w: upload statement: %v", ErrInternal, err)
	}

	url, err := s.store.PresignGet(ctx, key, s.linkTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: presign statement: %v", ErrInternal, err)
	}

	logger.LogInfo(ctx, "statement exported", "user_id", userID.String(), "key", key, "rows", len(txs), "bytes", size)
	return &StatementLink{
		URL:       url,
		Key:       key,
		Rows:      len(txs),
		ExpiresAt: time.Now().Add(s.linkTTL).UTC(),
	}, nil
}

func buildStatement(w *Wallet, txs []Transaction, from, to time.Time) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Statement")
	if err != nil {
		return nil, err
	}

	bold := xlsx.NewStyle()
	font := xlsx.DefaultFont()
	font.Bold = true
	bold.Font = *font

	title := sheet.AddRow()
	title.AddCell().SetString("Delta statement")
	title.Cells[0].SetStyle(bold)
	sheet.AddRow().AddCell().SetString("Period: " + from.UTC().Format(statementDateLayout) + " to " + to.UTC().Format(statementDateLayout))
	sheet.AddRow().AddCell().SetString("Current balance: " + Format(w.Balance))
	sheet.AddRow()

	header := sheet.AddRow()
	for _, h := range statementHeaders {
		cell := header.AddCell()
		cell.SetString(h)
		cell.SetStyle(bold)
	}

	for i := range txs {
		t := &txs[i]
		row := sheet.AddRow()
		row.AddCell().SetString(t.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		row.AddCell().SetString(t.ID.String())
		row.AddCell().SetString(string(t.Type))
		row.AddCell().SetString(t.Description)
		row.AddCell().SetFloat(t.SignedAmount().InexactFloat64())
		row.AddCell().SetFloat(t.BalanceBefore.InexactFloat64())
		row.AddCell().SetFloat(t.BalanceAfter.InexactFloat64())
		row.AddCell().SetString(string(t.Status))
		if t.IsReversed {
			row.AddCell().SetString("yes")
		} else {
			row.AddCell().SetString("no")
		}
	}

	sheet.AddRow()
	footer := sheet.AddRow()
	footer.AddCell().SetString("Net change")
	footer.Cells[0].SetStyle(bold)
	footer.AddCell().SetString(Format(sumSigned(txs)))

	return file, nil
}
