package initializer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/bootstrap"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/database"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/metrics"
	v1 "github.com/dwhkit/warehouse-bootstrap/pkg/api/v1"
)

// mediaStager is implemented by database adapters that need their backup media
// staged into a shared volume before the initialization script can restore it.
type mediaStager interface {
	StageBackupMedia(mediaDir, stageDir string) error
}

type Config struct {
	// ScriptPath is the path of the source initialization script.
	ScriptPath string
	// BackupMediaDir holds the backup media to stage before initialization,
	// staging is skipped when empty.
	BackupMediaDir string
	// BackupStageDir is the directory the restore statements read from.
	BackupStageDir string
	// Linger keeps the status server running after a successful initialization
	// so that dependent containers can block on the wait command.
	Linger bool

	Opts bootstrap.Opts
}

type Initializer struct {
	log  *slog.Logger
	addr string
	svc  *service
	mtr  *metrics.Metrics
	cfg  Config

	source bootstrapTarget
	dest   bootstrapTarget
}

type bootstrapTarget struct {
	name       string
	db         database.Database
	boot       *bootstrap.Bootstrap
	scriptPath string
}

// New creates an initializer that bootstraps the source and destination
// databases and publishes its progress over an HTTP status endpoint.
func New(log *slog.Logger, addr string, source database.Database, dest database.Database, mtr *metrics.Metrics, cfg Config) *Initializer {
	i := &Initializer{
		log:  log,
		addr: addr,
		svc:  newService(log),
		mtr:  mtr,
		cfg:  cfg,
	}

	opts := cfg.Opts
	opts.OnStatus = i.svc.set

	i.source = bootstrapTarget{
		name:       "source",
		db:         source,
		boot:       bootstrap.New(log.With("target", "source"), "source", source, mtr, opts),
		scriptPath: cfg.ScriptPath,
	}
	i.dest = bootstrapTarget{
		name: "dest",
		db:   dest,
		boot: bootstrap.New(log.With("target", "dest"), "dest", dest, mtr, opts),
	}

	return i
}

// Start runs the status server and the initialization sequence. It returns nil
// after a successful initialization (or blocks until the context is cancelled
// when lingering is enabled) and an error when the bootstrap failed, in which
// case the process must exit non-zero.
func (i *Initializer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", i.svc.statusHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte(`<html>
			<head><title>warehouse-bootstrap</title></head>
			<body>
			<h1>warehouse-bootstrap</h1>
			<p><a href='/status'>Status</a></p>
			<p><a href='/metrics'>Metrics</a></p>
			</body>
			</html>`))
		if err != nil {
			i.log.Error("error handling index endpoint", "error", err)
		}
	})

	server := &http.Server{
		Addr:              i.addr,
		Handler:           mux,
		ReadHeaderTimeout: 1 * time.Minute,
	}

	i.log.Info("start initializer server", "address", i.addr)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		if err := i.initialize(ctx); err != nil {
			i.svc.set(v1.StatusFailed, err.Error())
			i.mtr.SetSuccess(false)
			return err
		}

		i.svc.set(v1.StatusDone, "database initialization complete")
		i.mtr.SetSuccess(true)
		i.log.Info("initializer done")

		if i.cfg.Linger {
			i.log.Info("keeping status server running until shutdown")
			<-ctx.Done()
		}

		return nil
	})

	return g.Wait()
}

func (i *Initializer) initialize(ctx context.Context) error {
	i.log.Info("start running initializer")

	if i.cfg.BackupMediaDir != "" {
		stager, ok := i.source.db.(mediaStager)
		if !ok {
			return fmt.Errorf("backup media dir is configured but the source database cannot stage media")
		}

		i.svc.set(v1.StatusChecking, "staging backup media")
		if err := stager.StageBackupMedia(i.cfg.BackupMediaDir, i.cfg.BackupStageDir); err != nil {
			return fmt.Errorf("unable to stage backup media: %w", err)
		}
	}

	for _, target := range []bootstrapTarget{i.source, i.dest} {
		outcome, err := target.boot.Run(ctx, target.scriptPath)
		if err != nil {
			return fmt.Errorf("bootstrap of %s database failed with outcome %q: %w", target.name, outcome, err)
		}

		i.log.Info("bootstrap finished", "target", target.name, "outcome", outcome.String())
	}

	return nil
}
