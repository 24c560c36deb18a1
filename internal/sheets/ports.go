package sheets

import (
	"context"

	"saldo/internal/core"
)

// Ports for outbound spreadsheet adapters.
type (
	// AlertWriter appends one alert as a row to the alert log.
	AlertWriter interface {
		AppendAlert(ctx context.Context, a core.Alert) (rowRef string, err error)
	}

	// TransactionsWriter replaces the transactions sheet with the given rows.
	TransactionsWriter interface {
		WriteTransactions(ctx context.Context, rows []TransactionRow) (int, error)
	}
)

// TransactionRow is one ledger entry flattened for a spreadsheet.
type TransactionRow struct {
	Kind        core.TransactionKind
	Date        core.Date
	Description string
	Amount      core.Money
	Category    string
}

// TransactionHeader names the columns written by TransactionsWriter implementations.
var TransactionHeader = []string{"Tipo", "Data", "Descrição", "Valor", "Categoria"}

// Values returns the row cells in TransactionHeader order.
func (r TransactionRow) Values() []any {
	kind := "Receita"
	if r.Kind == core.Expense {
		kind = "Despesa"
	}
	return []any{kind, r.Date.FormatBR(), r.Description, r.Amount.String(), r.Category}
}

// TransactionRows flattens a ledger snapshot, incomes first, resolving
// category ids to names. Expenses without a known category get "Sem Categoria".
func TransactionRows(snap core.LedgerSnapshot) []TransactionRow {
	names := make(map[string]string, len(snap.Categories))
	for _, c := range snap.Categories {
		names[c.ID] = c.Name
	}

	rows := make([]TransactionRow, 0, len(snap.Incomes)+len(snap.Expenses))
	for _, t := range snap.Incomes {
		rows = append(rows, TransactionRow{
			Kind:        core.Income,
			Date:        t.Date,
			Description: t.Description,
			Amount:      t.Amount,
		})
	}
	for _, t := range snap.Expenses {
		name, ok := names[t.CategoryID]
		if !ok {
			name = core.UncategorizedName
		}
		rows = append(rows, TransactionRow{
			Kind:        core.Expense,
			Date:        t.Date,
			Description: t.Description,
			Amount:      t.Amount,
			Category:    name,
		})
	}
	return rows
}

// AlertValues returns the alert log cells: timestamp, kind, message and id.
func AlertValues(a core.Alert) []any {
	return []any{a.CreatedAt.UTC().Format("02/01/2006 15:04"), string(a.Kind), a.Message, a.ID}
}
