package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/trunkline-ops/trunkline/internal/jobs"
	"github.com/trunkline-ops/trunkline/internal/reporting"
	"github.com/trunkline-ops/trunkline/internal/shared"
	"github.com/trunkline-ops/trunkline/jobs"
	_ "github.com/trunkline-ops/trunkline/testing"
)

var warmupNow = time.Date(2025, 7, 15, 9, 30, 0, 0, time.UTC)

type warmupKPIClient struct {
	fail        error
	revenue     int
	collections int
	receivables int
	fleet       int
}

func (c *warmupKPIClient) Ping(ctx context.Context) error {
	return c.fail
}

func (c *warmupKPIClient) RevenueKPIs(ctx context.Context, period string) (reporting.RevenueKPIs, error) {
	c.revenue++
	if c.fail != nil {
		return reporting.RevenueKPIs{}, c.fail
	}
	return reporting.RevenueKPIs{Period: period, BilledDZD: 1_000_000, CollectedDZD: 900_000}, nil
}

func (c *warmupKPIClient) CollectionsKPIs(ctx context.Context, period string) (reporting.CollectionsKPIs, error) {
	c.collections++
	if c.fail != nil {
		return reporting.CollectionsKPIs{}, c.fail
	}
	return reporting.CollectionsKPIs{Period: period, TargetDZD: 950_000, CollectedDZD: 900_000, RatePct: 94.7}, nil
}

func (c *warmupKPIClient) ReceivablesKPIs(ctx context.Context) (reporting.ReceivablesKPIs, error) {
	c.receivables++
	if c.fail != nil {
		return reporting.ReceivablesKPIs{}, c.fail
	}
	return reporting.ReceivablesKPIs{OutstandingDZD: 400_000, OverdueDZD: 90_000}, nil
}

func (c *warmupKPIClient) VehicleParkStats(ctx context.Context) (reporting.VehicleParkStats, error) {
	c.fleet++
	if c.fail != nil {
		return reporting.VehicleParkStats{}, c.fail
	}
	return reporting.VehicleParkStats{Total: 10, Active: 8, InMaintenance: 1, OutOfService: 1}, nil
}

func newWarmupJob(t *testing.T, stub *warmupKPIClient) (*jobs.ReportWarmupJob, *reporting.Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reports := reporting.NewService(stub, reporting.NewCache(client, time.Minute), nil, false)
	reports.WithNow(func() time.Time { return warmupNow })

	job := jobs.NewReportWarmupJob(reports, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	return job, reports
}

func TestReportWarmupJobPrimesCache(t *testing.T) {
	stub := &warmupKPIClient{}
	job, reports := newWarmupJob(t, stub)

	task, err := jobs.NewReportWarmupTask(jobs.ReportWarmupPayload{Reason: "test"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, 1, stub.revenue)
	require.Equal(t, 1, stub.collections)
	require.Equal(t, 1, stub.receivables)
	require.Equal(t, 1, stub.fleet)

	// A dashboard read straight after warmup is served from cache.
	_, err = reports.Summary(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 1, stub.revenue)
}

func TestReportWarmupJobRejectsMalformedPayload(t *testing.T) {
	stub := &warmupKPIClient{}
	job, _ := newWarmupJob(t, stub)

	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskReportWarmup, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, stub.revenue)
}

func TestReportWarmupJobSurfacesOutage(t *testing.T) {
	stub := &warmupKPIClient{fail: shared.ErrServiceUnavailable}
	job, _ := newWarmupJob(t, stub)

	task, err := jobs.NewReportWarmupTask(jobs.ReportWarmupPayload{})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, shared.ErrServiceUnavailable)
}
