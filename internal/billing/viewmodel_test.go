package billing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleGroups() []CustomerBillGroup {
	return []CustomerBillGroup{
		{
			CustomerID:     1,
			Customer:       "Banda",
			TotalAmountDue: 1500,
			Bills: []Bill{
				{ID: 10, CustomerID: 1, Customer: "Banda", MeterNumber: "MW-0001", AmountDue: 1000, Status: BillUnpaid},
				{ID: 11, CustomerID: 1, Customer: "Banda", MeterNumber: "MW-0001", AmountDue: 500, Status: BillPaid},
			},
		},
		{
			CustomerID:     2,
			Customer:       "Phiri",
			TotalAmountDue: 2000,
			Bills: []Bill{
				{ID: 20, CustomerID: 2, Customer: "Phiri", MeterNumber: "1234ban5", AmountDue: 2000, Status: BillUnpaid},
			},
		},
		{
			CustomerID:     3,
			Customer:       "Gondwe",
			TotalAmountDue: 0,
			Bills: []Bill{
				{ID: 30, CustomerID: 3, Customer: "Gondwe", MeterNumber: "MW-0003", AmountDue: 750, Status: BillPaid},
				{ID: 31, CustomerID: 3, Customer: "Gondwe", MeterNumber: "MW-0003", AmountDue: 250, Status: BillPaid},
			},
		},
	}
}

func TestFilterGroupsEmptyTermReturnsInput(t *testing.T) {
	groups := sampleGroups()
	require.Equal(t, groups, FilterGroups(groups, ""))
	require.Equal(t, groups, FilterGroups(groups, "   "))
}

func TestFilterGroupsMatchesNameOrMeter(t *testing.T) {
	groups := sampleGroups()

	// "ban" matches customer "Banda" by name and Phiri's meter "1234ban5".
	got := FilterGroups(groups, "ban")
	require.Len(t, got, 2)
	require.Equal(t, "Banda", got[0].Customer)
	require.Equal(t, "Phiri", got[1].Customer)

	// The meter match keeps the whole group, all bills included.
	require.Len(t, got[1].Bills, 1)
}

func TestFilterGroupsCaseInsensitive(t *testing.T) {
	got := FilterGroups(sampleGroups(), "GONDWE")
	require.Len(t, got, 1)
	require.Equal(t, int64(3), got[0].CustomerID)
}

func TestFilterGroupsReturnsSubset(t *testing.T) {
	groups := sampleGroups()
	got := FilterGroups(groups, "MW-")
	require.LessOrEqual(t, len(got), len(groups))
	for _, g := range got {
		require.Contains(t, groups, g)
	}
	require.Empty(t, FilterGroups(groups, "no such customer"))
}

func TestExpansionSingleSelection(t *testing.T) {
	var e Expansion
	require.False(t, e.Expanded(1))

	e.Toggle(1)
	require.True(t, e.Expanded(1))
	require.Equal(t, int64(1), e.Current())

	// Expanding another customer collapses the first.
	e.Toggle(2)
	require.False(t, e.Expanded(1))
	require.True(t, e.Expanded(2))
}

func TestExpansionDoubleToggleIsInverse(t *testing.T) {
	var e Expansion
	e.Toggle(7)
	e.Toggle(7)
	require.False(t, e.Expanded(7))
	require.Equal(t, int64(0), e.Current())

	e.Toggle(1)
	e.Toggle(7)
	e.Toggle(7)
	require.False(t, e.Expanded(7))
	require.False(t, e.Expanded(1))
}

func TestPaidOnlyKeepsPaidBillsAndRecomputesTotals(t *testing.T) {
	got := PaidOnly(sampleGroups())
	require.Len(t, got, 2)

	require.Equal(t, "Banda", got[0].Customer)
	require.Len(t, got[0].Bills, 1)
	require.Equal(t, 500.0, got[0].TotalAmountDue)

	require.Equal(t, "Gondwe", got[1].Customer)
	require.Len(t, got[1].Bills, 2)
	require.Equal(t, 1000.0, got[1].TotalAmountDue)
}

func TestPaidOnlyDropsGroupsWithoutPaidBills(t *testing.T) {
	got := PaidOnly(sampleGroups())
	for _, g := range got {
		require.NotEqual(t, "Phiri", g.Customer)
	}
}

func TestPaidOnlyIdempotent(t *testing.T) {
	once := PaidOnly(sampleGroups())
	twice := PaidOnly(once)
	require.Equal(t, once, twice)
}

func TestPaidOnlyDoesNotModifyInput(t *testing.T) {
	groups := sampleGroups()
	_ = PaidOnly(groups)
	require.Equal(t, sampleGroups(), groups)
}
