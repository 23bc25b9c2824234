package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storage-service/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startPool(t *testing.T, pool *WorkingPool) (context.CancelFunc, *sync.WaitGroup) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go pool.Start(ctx, &wg)
	return cancel, &wg
}

func TestWorkingPool_RunsJobs(t *testing.T) {
	pool := NewWorkingPool("test", 3, 4)
	cancel, wg := startPool(t, pool)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.SubmitJob(context.Background(), func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	assert.Eventually(t, func() bool { return ran.Load() == 10 }, time.Second, 5*time.Millisecond)
	cancel()
	wg.Wait()
}

func TestWorkingPool_RecoversFromPanics(t *testing.T) {
	pool := NewWorkingPool("test", 1, 1)
	cancel, wg := startPool(t, pool)

	done := make(chan struct{})
	require.NoError(t, pool.SubmitJob(context.Background(), func(context.Context) error { panic("boom") }))
	require.NoError(t, pool.SubmitJob(context.Background(), func(context.Context) error {
		close(done)
		return nil
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive a panicking job")
	}
	cancel()
	wg.Wait()
}

func TestWorkingPool_RejectsAfterStop(t *testing.T) {
	pool := NewWorkingPool("test", 1, 0)
	cancel, wg := startPool(t, pool)
	cancel()
	wg.Wait()

	err := pool.SubmitJob(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestWorkingPool_SubmitHonoursContext(t *testing.T) {
	pool := NewWorkingPool("test", 1, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.SubmitJob(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJobScheduler_RunsImmediatelyAndRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	pool := NewWorkingPool("sweeps", 1, 4)
	poolCancel, poolWg := startPool(t, pool)

	var runs atomic.Int32
	scheduler := NewJobScheduler("maintenance", time.Hour, pool, m)
	scheduler.AddJob("expiry-sweep", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	scheduler.AddJob("space-audit", func(context.Context) error {
		return errors.New("db unavailable")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		count, err := testutil.GatherAndCount(registry, "storage_service_scheduled_job_runs_total")
		return err == nil && count == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	cancel()
	<-done
	poolCancel()
	poolWg.Wait()
}

func TestNewJobScheduler_ClampsNonPositiveInterval(t *testing.T) {
	pool := NewWorkingPool("sweeps", 1, 1)
	for _, interval := range []time.Duration{0, -5 * time.Minute} {
		scheduler := NewJobScheduler("maintenance", interval, pool, nil)
		assert.Equal(t, DefaultSchedulerInterval, scheduler.Interval)
	}
	assert.Equal(t, 15*time.Minute, NewJobScheduler("maintenance", 15*time.Minute, pool, nil).Interval)
}
