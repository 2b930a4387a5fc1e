package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepHistory(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	for _, age := range []time.Duration{time.Hour, 30 * 24 * time.Hour, 400 * 24 * time.Hour} {
		require.NoError(t, f.store.RecordImportRun(ctx, ImportRun{OwnerID: owner, Kind: KindGrade, State: StateReported, FinishedAt: now.Add(-age)}))
	}

	assert.Equal(t, int64(1), svc.sweepHistory(ctx, 180*24*time.Hour))

	runs, err := svc.History(ctx, owner, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	assert.Equal(t, int64(1), svc.sweepHistory(ctx, 7*24*time.Hour))
	assert.Equal(t, int64(0), svc.sweepHistory(ctx, 7*24*time.Hour))
}

func TestStartRetentionSweeper_StopsOnCancel(t *testing.T) {
	svc, f := newTestService(t)
	require.NoError(t, f.store.RecordImportRun(context.Background(), ImportRun{OwnerID: owner, FinishedAt: time.Now().Add(-time.Hour)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartRetentionSweeper(ctx, RetentionConfig{KeepFor: time.Minute, CheckInterval: time.Hour})
		close(done)
	}()

	require.Eventually(t, func() bool {
		runs, _ := f.store.ListImportRuns(context.Background(), owner, 0)
		return len(runs) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
