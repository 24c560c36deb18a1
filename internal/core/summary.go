package core

const (
	UncategorizedName  = "Sem Categoria"
	UncategorizedColor = "#CCCCCC"
)

// Palette is the rotation of display colors for new categories and goals.
var Palette = []string{
	"#3B82F6", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#EC4899", "#14B8A6", "#6366F1", "#D946EF", "#F97316",
}

// PaletteColor picks the color for the n-th item.
func PaletteColor(n int) string {
	return Palette[n%len(Palette)]
}

// CategoryAmount represents expenses aggregated by category.
type CategoryAmount struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	Amount     Money  `json:"amount"`
}

// MonthTotals holds income and expense totals for one calendar month.
type MonthTotals struct {
	Month   int   `json:"month"` // 1-12
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
}

// Summary is the dashboard view of the ledger for a period.
type Summary struct {
	Period     Period           `json:"period"`
	Income     Money            `json:"income"`
	Expense    Money            `json:"expense"`
	Balance    Money            `json:"balance"`
	ByCategory []CategoryAmount `json:"byCategory"`
}

// Snapshot payloads exchanged with the persistence port.
type (
	LedgerSnapshot struct {
		Incomes    []Transaction `json:"receitas"`
		Expenses   []Transaction `json:"despesas"`
		Categories []Category    `json:"categorias"`
	}

	GoalsSnapshot struct {
		Goals []Goal `json:"metas"`
	}

	AlertsSnapshot struct {
		Alerts []Alert `json:"alertas"`
	}
)
