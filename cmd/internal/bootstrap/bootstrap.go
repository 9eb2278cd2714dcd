package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	btserrors "github.com/dwhkit/warehouse-bootstrap/cmd/internal/bootstrap/errors"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/database"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/metrics"
	v1 "github.com/dwhkit/warehouse-bootstrap/pkg/api/v1"
	"github.com/dwhkit/warehouse-bootstrap/pkg/constants"
)

// Outcome is the terminal state of a bootstrap run.
type Outcome int

const (
	Success Outcome = iota
	Exhausted
	ScriptFailed
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Exhausted:
		return "exhausted"
	case ScriptFailed:
		return "script-failed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

type Opts struct {
	// MaxAttempts caps the number of readiness probes before giving up.
	MaxAttempts uint
	// ProbeInterval is the pause between two readiness probes.
	ProbeInterval time.Duration
	// OnStatus is called when the bootstrap transitions into a new phase, may be nil.
	OnStatus func(status v1.Status, message string)
}

// Bootstrap waits for a database to become reachable and then runs its
// one-time initialization.
type Bootstrap struct {
	log    *slog.Logger
	db     database.Database
	mtr    *metrics.Metrics
	target string
	opts   Opts
}

// New instantiates a bootstrap for the given database. The target name is used
// for logs and metric labels.
func New(log *slog.Logger, target string, db database.Database, mtr *metrics.Metrics, opts Opts) *Bootstrap {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = constants.DefaultMaxAttempts
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = constants.DefaultProbeInterval
	}

	return &Bootstrap{
		log:    log,
		db:     db,
		mtr:    mtr,
		target: target,
		opts:   opts,
	}
}

// WaitUntilReady polls the database until it accepts connections or the attempt
// cap is reached. It performs at most MaxAttempts probes with a fixed pause in
// between and returns early when the context is cancelled.
func (b *Bootstrap) WaitUntilReady(ctx context.Context) error {
	var attempts uint

	err := retry.Do(
		func() error {
			attempts++
			b.mtr.CountProbe(b.target)
			return b.db.Probe(ctx)
		},
		retry.Attempts(b.opts.MaxAttempts),
		retry.Delay(b.opts.ProbeInterval),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			b.log.Info("database not ready yet, retrying", "target", b.target, "attempt", n+1, "max-attempts", b.opts.MaxAttempts, "error", err)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return btserrors.ExhaustedError{Attempts: attempts, Err: err}
	}

	b.log.Info("database is reachable", "target", b.target, "attempts", attempts)

	return nil
}

// Run executes the full bootstrap sequence: wait for readiness, check whether
// initialization is still required and apply the initialization script exactly
// once. The script itself is required to be idempotent, the check only guards
// against re-running it on an already initialized database.
func (b *Bootstrap) Run(ctx context.Context, scriptPath string) (Outcome, error) {
	start := time.Now()

	b.status(v1.StatusWaiting, fmt.Sprintf("waiting for %s database", b.target))

	if err := b.WaitUntilReady(ctx); err != nil {
		b.mtr.CountError(b.target, "wait")

		var exhausted btserrors.ExhaustedError
		if errors.As(err, &exhausted) {
			return Exhausted, err
		}
		return Aborted, err
	}

	b.mtr.SetReadySeconds(b.target, time.Since(start).Seconds())

	required, err := b.db.Check(ctx)
	if err != nil {
		b.mtr.CountError(b.target, "check")
		return ScriptFailed, fmt.Errorf("unable to check whether %s database needs initialization: %w", b.target, err)
	}

	if !required {
		b.log.Info("database is already initialized, nothing to do", "target", b.target)
		return Success, nil
	}

	b.status(v1.StatusApplying, fmt.Sprintf("initializing %s database", b.target))

	if err := b.db.Apply(ctx, scriptPath); err != nil {
		b.mtr.CountError(b.target, "apply")

		if ctx.Err() != nil {
			return Aborted, err
		}
		return ScriptFailed, err
	}

	b.log.Info("database initialized", "target", b.target, "elapsed", time.Since(start).String())

	return Success, nil
}

func (b *Bootstrap) status(status v1.Status, message string) {
	if b.opts.OnStatus != nil {
		b.opts.OnStatus(status, message)
	}
}
