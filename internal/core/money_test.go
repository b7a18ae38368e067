package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"12.345", "12.35", true},
		{" 2.50 ", "2.5", true},
		{"0", "", false},
		{"-1", "", false},
		{"+1", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tc.out).Equal(got), "got %s", got)
		})
	}
}

func TestCentsConversion(t *testing.T) {
	assert.Equal(t, int64(1234), ToCents(decimal.RequireFromString("12.34")))
	assert.Equal(t, int64(-50), ToCents(decimal.RequireFromString("-0.5")))
	assert.Equal(t, int64(1), ToCents(decimal.RequireFromString("0.005")))
	assert.True(t, FromCents(1234).Equal(decimal.RequireFromString("12.34")))
	assert.Equal(t, "12.30", FormatAmount(FromCents(1230)))
}

func TestComputeBalances(t *testing.T) {
	entries := []AccountEntry{
		{Type: AccountCurrent, Amount: decimal.NewFromInt(1000), Credited: true},
		{Type: AccountCurrent, Amount: decimal.NewFromInt(300), Credited: false, Transferable: decimal.NewFromInt(100)},
		{Type: AccountSavings, Amount: decimal.NewFromInt(500), Credited: true, Transferable: decimal.NewFromInt(200)},
		{Type: AccountPD, Amount: decimal.NewFromInt(40), Credited: true},
	}
	b := ComputeBalances(entries)
	assert.True(t, b.Current.Equal(decimal.NewFromInt(700)))
	assert.True(t, b.Savings.Equal(decimal.NewFromInt(500)))
	assert.True(t, b.PD.Equal(decimal.NewFromInt(40)))
	assert.True(t, b.Transferable.Equal(decimal.NewFromInt(100)))
}

func TestAccountEntryValidate(t *testing.T) {
	ok := AccountEntry{Type: AccountSavings, Amount: decimal.NewFromInt(10)}
	require.NoError(t, ok.Validate())

	bad := AccountEntry{Type: "Cash", Amount: decimal.NewFromInt(10)}
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	over := AccountEntry{Type: AccountCurrent, Amount: decimal.NewFromInt(10), Transferable: decimal.NewFromInt(11)}
	assert.ErrorIs(t, over.Validate(), ErrValidation)
}

func TestSubCentAmountsAreRejected(t *testing.T) {
	assert.True(t, HasCents(decimal.RequireFromString("12.30")))
	assert.False(t, HasCents(decimal.RequireFromString("0.004")))

	for _, amount := range []string{"0.004", "12.345"} {
		t.Run(amount, func(t *testing.T) {
			e := Expense{Reason: "cables", Amount: decimal.RequireFromString(amount)}
			err := e.Validate()
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorIs(t, err, ErrInvalidAmount)

			entry := AccountEntry{Type: AccountCurrent, Amount: decimal.RequireFromString(amount)}
			assert.ErrorIs(t, entry.Validate(), ErrValidation)
		})
	}

	entry := AccountEntry{
		Type:         AccountSavings,
		Amount:       decimal.NewFromInt(10),
		Transferable: decimal.RequireFromString("1.001"),
	}
	assert.ErrorIs(t, entry.Validate(), ErrInvalidAmount)

	p := yearlyProject()
	p.Heads.Set("Travel", []decimal.Decimal{decimal.NewFromInt(10), decimal.RequireFromString("20.005"), decimal.NewFromInt(30)})
	assert.ErrorIs(t, p.ValidateSeries(3), ErrInvalidAmount)
}
