package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labfunds/internal/funds"
)

func TestExporterUpsertsAndReplaces(t *testing.T) {
	ctx := context.Background()
	e := New()
	id := uuid.New()
	b := funds.ProjectBalance{ProjectID: id, Name: "P", Heads: []funds.HeadBalance{
		{Head: "H1", Remaining: decimal.NewFromInt(10)},
		{Head: "H2", Remaining: decimal.NewFromInt(20)},
	}}

	require.NoError(t, e.ExportProject(ctx, b))
	b.Heads[0].Remaining = decimal.NewFromInt(5)
	require.NoError(t, e.ExportProject(ctx, b))
	assert.Len(t, e.Rows(), 2)
	row, ok := e.Row(id.String(), "H1")
	require.True(t, ok)
	assert.Equal(t, "5.00", row[7])

	require.NoError(t, e.ExportAll(ctx, nil))
	assert.Empty(t, e.Rows())
	assert.Equal(t, 1, e.Snapshots)
}
