package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	btserrors "github.com/dwhkit/warehouse-bootstrap/cmd/internal/bootstrap/errors"
	v1 "github.com/dwhkit/warehouse-bootstrap/pkg/api/v1"
	"github.com/dwhkit/warehouse-bootstrap/pkg/constants"
)

type fakeDatabase struct {
	// readyAfter is the attempt from which probes succeed, 0 means never
	readyAfter int
	probes     int

	checkNeeded bool
	checkErr    error

	applies  int
	applyErr error
}

func (f *fakeDatabase) Probe(_ context.Context) error {
	f.probes++
	if f.readyAfter > 0 && f.probes >= f.readyAfter {
		return nil
	}
	return btserrors.NotReadyError{Err: errors.New("connection refused")}
}

func (f *fakeDatabase) Check(_ context.Context) (bool, error) {
	return f.checkNeeded, f.checkErr
}

func (f *fakeDatabase) Apply(_ context.Context, _ string) error {
	f.applies++
	return f.applyErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_NeverReadyExhaustsAttemptCap(t *testing.T) {
	db := &fakeDatabase{}

	b := New(testLogger(), "source", db, nil, Opts{
		MaxAttempts:   5,
		ProbeInterval: time.Millisecond,
	})

	outcome, err := b.Run(context.Background(), "init.sql")
	require.Error(t, err)
	assert.Equal(t, Exhausted, outcome)

	var exhausted btserrors.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, uint(5), exhausted.Attempts)

	assert.Equal(t, 5, db.probes)
	assert.Equal(t, 0, db.applies)
}

func TestRun_ReadyAfterRetries(t *testing.T) {
	interval := 20 * time.Millisecond
	db := &fakeDatabase{
		readyAfter:  4,
		checkNeeded: true,
	}

	b := New(testLogger(), "source", db, nil, Opts{
		MaxAttempts:   5,
		ProbeInterval: interval,
	})

	start := time.Now()
	outcome, err := b.Run(context.Background(), "init.sql")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, Success, outcome)
	assert.Equal(t, 4, db.probes)
	assert.Equal(t, 1, db.applies)

	// three failed probes mean three sleeps
	assert.GreaterOrEqual(t, elapsed, 3*interval)
}

func TestRun_SingleAttemptExhaustsWithoutSleeping(t *testing.T) {
	interval := 500 * time.Millisecond
	db := &fakeDatabase{}

	b := New(testLogger(), "source", db, nil, Opts{
		MaxAttempts:   1,
		ProbeInterval: interval,
	})

	start := time.Now()
	outcome, err := b.Run(context.Background(), "init.sql")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, Exhausted, outcome)
	assert.Equal(t, 1, db.probes)
	assert.Less(t, elapsed, interval)
}

func TestRun_AlreadyInitialized(t *testing.T) {
	db := &fakeDatabase{
		readyAfter:  1,
		checkNeeded: false,
	}

	b := New(testLogger(), "source", db, nil, Opts{
		MaxAttempts:   5,
		ProbeInterval: time.Millisecond,
	})

	outcome, err := b.Run(context.Background(), "init.sql")
	require.NoError(t, err)
	assert.Equal(t, Success, outcome)
	assert.Equal(t, 1, db.probes)
	assert.Equal(t, 0, db.applies)
}

func TestRun_BrokenScriptFailsFast(t *testing.T) {
	db := &fakeDatabase{
		readyAfter:  1,
		checkNeeded: true,
		applyErr:    btserrors.ScriptError{Batch: 2, Err: errors.New("incorrect syntax near 'RESTORE'")},
	}

	b := New(testLogger(), "source", db, nil, Opts{
		MaxAttempts:   5,
		ProbeInterval: time.Millisecond,
	})

	outcome, err := b.Run(context.Background(), "init.sql")
	require.Error(t, err)
	assert.Equal(t, ScriptFailed, outcome)

	var scriptErr btserrors.ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, 2, scriptErr.Batch)

	// a broken script is not retried until the budget is gone
	assert.Equal(t, 1, db.applies)
}

func TestRun_CancellationAbortsWaiting(t *testing.T) {
	db := &fakeDatabase{}

	b := New(testLogger(), "source", db, nil, Opts{
		MaxAttempts:   100,
		ProbeInterval: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	outcome, err := b.Run(ctx, "init.sql")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, Aborted, outcome)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// nowhere near the 100 * 50ms the attempt budget would allow
	assert.Less(t, elapsed, time.Second)
}

func TestRun_ReportsPhases(t *testing.T) {
	var statuses []v1.Status

	db := &fakeDatabase{
		readyAfter:  2,
		checkNeeded: true,
	}

	b := New(testLogger(), "source", db, nil, Opts{
		MaxAttempts:   5,
		ProbeInterval: time.Millisecond,
		OnStatus: func(status v1.Status, _ string) {
			statuses = append(statuses, status)
		},
	})

	outcome, err := b.Run(context.Background(), "init.sql")
	require.NoError(t, err)
	assert.Equal(t, Success, outcome)
	assert.Equal(t, []v1.Status{v1.StatusWaiting, v1.StatusApplying}, statuses)
}

func TestNew_AppliesDefaults(t *testing.T) {
	b := New(testLogger(), "source", &fakeDatabase{}, nil, Opts{})

	assert.Equal(t, uint(constants.DefaultMaxAttempts), b.opts.MaxAttempts)
	assert.Equal(t, constants.DefaultProbeInterval, b.opts.ProbeInterval)
}
