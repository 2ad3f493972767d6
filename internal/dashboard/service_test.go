package dashboard

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aquabill/aquabill-web/internal/billing"
)

type fakeStats struct {
	summaryCalls atomic.Int64
	monthlyCalls atomic.Int64
}

func (f *fakeStats) DashboardSummary(ctx context.Context) (*billing.DashboardSummary, error) {
	f.summaryCalls.Add(1)
	return &billing.DashboardSummary{
		TotalCustomers: 12,
		TotalPaid:      34000,
		TotalUnpaid:    8000,
		TotalPayments:  40,
	}, nil
}

func (f *fakeStats) DashboardMonthly(ctx context.Context) ([]billing.MonthlyPoint, error) {
	f.monthlyCalls.Add(1)
	return []billing.MonthlyPoint{
		{Month: "Jan", Paid: 1000, Unpaid: 500},
		{Month: "Feb", Paid: 1500, Unpaid: 200},
	}, nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestOverviewFetchesBothFigures(t *testing.T) {
	api := &fakeStats{}
	svc := NewService(api, newTestCache(t))

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 12, overview.Summary.TotalCustomers)
	require.Len(t, overview.Monthly, 2)
}

func TestOverviewReadsThroughCache(t *testing.T) {
	api := &fakeStats{}
	svc := NewService(api, newTestCache(t))

	_, err := svc.Overview(context.Background())
	require.NoError(t, err)
	_, err = svc.Overview(context.Background())
	require.NoError(t, err)

	require.EqualValues(t, 1, api.summaryCalls.Load())
	require.EqualValues(t, 1, api.monthlyCalls.Load())
}

func TestRefreshRepopulatesCache(t *testing.T) {
	api := &fakeStats{}
	cache := newTestCache(t)
	svc := NewService(api, cache)

	require.NoError(t, svc.Refresh(context.Background()))
	require.NoError(t, svc.Refresh(context.Background()))
	require.EqualValues(t, 2, api.summaryCalls.Load())

	// A page load after refresh hits warm data only.
	_, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, api.summaryCalls.Load())
}

func TestMonthlyChartRendersAllMonths(t *testing.T) {
	points := []billing.MonthlyPoint{
		{Month: "Jan", Paid: 100, Unpaid: 40},
		{Month: "Feb", Paid: 200, Unpaid: 0},
	}
	chart, err := MonthlyChart(points)
	require.NoError(t, err)

	html := string(chart)
	require.True(t, strings.HasPrefix(html, "<svg"))
	require.Contains(t, html, ">Jan<")
	require.Contains(t, html, ">Feb<")
	require.Contains(t, html, "fill=\"#3b82f6\"")
	require.Contains(t, html, "fill=\"#ef4444\"")
}

func TestMonthlyChartRequiresData(t *testing.T) {
	_, err := MonthlyChart(nil)
	require.Error(t, err)
}
