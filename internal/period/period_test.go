package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"labfunds/internal/core"
)

func day(s string) time.Time { return core.MustDate(s).Time }

func yearly(start, end string) *core.Project {
	return &core.Project{
		Type:      core.Yearly,
		StartDate: core.MustDate(start),
		EndDate:   core.MustDate(end),
	}
}

func invoice(ranges ...[2]string) *core.Project {
	p := &core.Project{Type: core.Invoice}
	for _, r := range ranges {
		p.Installments = append(p.Installments, core.Installment{
			StartDate: core.MustDate(r[0]),
			EndDate:   core.MustDate(r[1]),
		})
	}
	return p
}

func TestFiscalYear(t *testing.T) {
	cases := map[string]int{
		"2024-03-31": 2023,
		"2024-04-01": 2024,
		"2024-01-15": 2023,
		"2024-12-31": 2024,
	}
	for in, want := range cases {
		assert.Equal(t, want, FiscalYear(core.MustDate(in)), in)
	}
}

func TestYearlyCount(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		want       int
	}{
		{"spans three fiscal years", "2023-06-01", "2025-05-31", 3},
		{"inside one fiscal year", "2023-04-01", "2024-03-31", 1},
		{"starts in march", "2024-03-01", "2024-04-30", 2},
		{"end before start", "2025-01-01", "2023-01-01", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Count(yearly(tt.start, tt.end)))
		})
	}
}

func TestYearlyCurrentIndex(t *testing.T) {
	p := yearly("2023-06-01", "2025-05-31")
	tests := []struct {
		today string
		want  int
	}{
		{"2023-06-01", 0},
		{"2024-03-31", 0},
		{"2024-04-01", 1},
		{"2024-08-15", 1},
		{"2025-04-01", 2},
		{"2025-05-31", 2},
		{"2025-06-01", Expired},
		{"2023-01-10", 0},
	}
	for _, tt := range tests {
		t.Run(tt.today, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentIndex(p, day(tt.today)))
		})
	}
}

func TestInvoiceCurrentIndex(t *testing.T) {
	p := invoice(
		[2]string{"2024-01-01", "2024-06-30"},
		[2]string{"2024-07-01", "2024-12-31"},
		[2]string{"2025-03-01", "2025-06-30"},
	)
	assert.Equal(t, 3, Count(p))

	tests := []struct {
		today string
		want  int
	}{
		{"2023-12-31", Expired},
		{"2024-01-01", 0},
		{"2024-06-30", 0},
		{"2024-08-15", 1},
		{"2025-01-15", Expired},
		{"2025-06-30", 2},
		{"2025-07-01", Expired},
	}
	for _, tt := range tests {
		t.Run(tt.today, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentIndex(p, day(tt.today)))
		})
	}
}

func TestInvoiceIgnoresTimeOfDay(t *testing.T) {
	p := invoice([2]string{"2024-01-01", "2024-06-30"})
	late := time.Date(2024, 6, 30, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 0, CurrentIndex(p, late))
}

func TestOverrideWins(t *testing.T) {
	p := yearly("2023-06-01", "2025-05-31")
	p.Override = &core.Override{Type: core.Yearly, Index: 2}
	assert.Equal(t, 2, CurrentIndex(p, day("2023-07-01")))
	assert.Equal(t, 2, CurrentIndex(p, day("2030-01-01")))

	inv := invoice([2]string{"2024-01-01", "2024-06-30"}, [2]string{"2024-07-01", "2024-12-31"})
	inv.Override = &core.Override{Type: core.Invoice, Index: 1}
	assert.Equal(t, 1, CurrentIndex(inv, day("2023-01-01")))
}

func TestUnknownTypeIsExpired(t *testing.T) {
	p := &core.Project{Type: "monthly"}
	assert.Equal(t, Expired, CurrentIndex(p, day("2024-01-01")))
	assert.Equal(t, 0, Count(p))
	_, err := CalendarFor("monthly")
	assert.ErrorIs(t, err, core.ErrInvalidType)
}

func TestBoundsAndLabels(t *testing.T) {
	p := yearly("2023-06-01", "2025-05-31")
	start, end, ok := Bounds(p, 0)
	assert.True(t, ok)
	assert.Equal(t, "2023-06-01", start.String())
	assert.Equal(t, "2024-03-31", end.String())

	start, end, ok = Bounds(p, 2)
	assert.True(t, ok)
	assert.Equal(t, "2025-04-01", start.String())
	assert.Equal(t, "2025-05-31", end.String())

	_, _, ok = Bounds(p, 3)
	assert.False(t, ok)

	assert.Equal(t, "FY 2024-25", Label(p, 1))
	assert.Equal(t, "expired", Label(p, Expired))
	assert.Equal(t, "Installment 2", Label(invoice(), 1))

	assert.True(t, IsLast(p, 2))
	assert.False(t, IsLast(p, 1))
	assert.False(t, IsLast(p, Expired))
}
