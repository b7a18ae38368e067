package sheets

import (
	"time"

	"labfunds/internal/core"
	"labfunds/internal/funds"
)

// Header is the first row of a balance sheet.
var Header = []any{"Project ID", "Project", "Head", "Period", "Allocation", "Carry In", "Spent", "Remaining", "Updated"}

// Columns is the number of cells per balance row.
const Columns = 9

// Key identifies a row: project id and head name.
type Key struct {
	ProjectID string
	Head      string
}

// Rows renders b as sheet rows in head order. Amounts are fixed two-decimal
// strings so a spreadsheet parses them as numbers.
func Rows(b funds.ProjectBalance, at time.Time) [][]any {
	stamp := at.UTC().Format(time.RFC3339)
	out := make([][]any, 0, len(b.Heads))
	for _, h := range b.Heads {
		out = append(out, []any{
			b.ProjectID.String(),
			b.Name,
			h.Head,
			b.Period,
			core.FormatAmount(h.Allocation),
			core.FormatAmount(h.CarryIn),
			core.FormatAmount(h.Spent),
			core.FormatAmount(h.Remaining),
			stamp,
		})
	}
	return out
}

// RowKey reads the key cells of a row; ok is false for short rows.
func RowKey(row []any) (Key, bool) {
	if len(row) < 3 {
		return Key{}, false
	}
	id, _ := row[0].(string)
	head, _ := row[2].(string)
	if id == "" || head == "" {
		return Key{}, false
	}
	return Key{ProjectID: id, Head: head}, true
}
