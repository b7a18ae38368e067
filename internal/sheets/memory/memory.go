// Package memory is an in-process balance sink for local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"labfunds/internal/funds"
	"labfunds/internal/sheets"
)

type Exporter struct {
	mu    sync.Mutex
	order []sheets.Key
	rows  map[sheets.Key][]any
	now   func() time.Time
	// Snapshots counts ExportAll calls.
	Snapshots int
}

var _ sheets.BalanceExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: make(map[sheets.Key][]any), now: time.Now}
}

func (e *Exporter) ExportProject(_ context.Context, b funds.ProjectBalance) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.put(sheets.Rows(b, e.now()))
	return nil
}

func (e *Exporter) ExportAll(_ context.Context, all []funds.ProjectBalance) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.order = nil
	e.rows = make(map[sheets.Key][]any)
	now := e.now()
	for _, b := range all {
		e.put(sheets.Rows(b, now))
	}
	e.Snapshots++
	return nil
}

func (e *Exporter) put(rows [][]any) {
	for _, row := range rows {
		k, ok := sheets.RowKey(row)
		if !ok {
			continue
		}
		if _, seen := e.rows[k]; !seen {
			e.order = append(e.order, k)
		}
		e.rows[k] = row
	}
}

// Rows returns the stored rows in first-written order.
func (e *Exporter) Rows() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]any, 0, len(e.order))
	for _, k := range e.order {
		out = append(out, e.rows[k])
	}
	return out
}

// Row returns the row of one project head.
func (e *Exporter) Row(projectID, head string) ([]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	row, ok := e.rows[sheets.Key{ProjectID: projectID, Head: head}]
	return row, ok
}
