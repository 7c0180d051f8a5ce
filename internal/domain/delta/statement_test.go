package delta

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStatement(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	w := &Wallet{Balance: d("70")}
	txs := []Transaction{
		{ID: uuid.New(), Type: TxEarn, Amount: d("100"), BalanceBefore: d("0"), BalanceAfter: d("100"), Status: StatusCompleted, Description: "Daily login bonus", CreatedAt: from.Add(time.Hour)},
		{ID: uuid.New(), Type: TxSpend, Amount: d("30"), BalanceBefore: d("100"), BalanceAfter: d("70"), Status: StatusCompleted, Description: "Purchased Hint x1", CreatedAt: from.Add(2 * time.Hour)},
	}

	file, err := buildStatement(w, txs, from, to)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)

	sheet := file.Sheets[0]
	assert.Equal(t, "Statement", sheet.Name)
	// title, period, balance, blank, header, two rows, blank, footer
	require.Len(t, sheet.Rows, 9)
	assert.Equal(t, "Current balance: 70.00 Δ", sheet.Rows[2].Cells[0].Value)
	assert.Equal(t, "Date", sheet.Rows[4].Cells[0].Value)
	assert.Equal(t, "spend", sheet.Rows[6].Cells[2].Value)
	assert.Equal(t, "Net change", sheet.Rows[8].Cells[0].Value)
	assert.Equal(t, "70.00 Δ", sheet.Rows[8].Cells[1].Value)
}
