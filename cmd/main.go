package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/bootstrap"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/database"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/database/postgres"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/database/sqlserver"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/initializer"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/metrics"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/utils"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/wait"
	"github.com/dwhkit/warehouse-bootstrap/pkg/constants"
)

const (
	moduleName  = "warehouse-bootstrap"
	cfgFileType = "yaml"

	// Flags
	logLevelFlg = "log-level"

	serverAddrFlg = "initializer-endpoint"

	bindAddrFlg = "bind-addr"
	portFlg     = "port"

	sourceHostFlg     = "source-host"
	sourcePortFlg     = "source-port"
	sourceUserFlg     = "source-user"
	sourcePasswordFlg = "source-password"
	sourceDatabaseFlg = "source-database"

	destHostFlg     = "dest-host"
	destPortFlg     = "dest-port"
	destUserFlg     = "dest-user"
	destPasswordFlg = "dest-password"
	destDatabaseFlg = "dest-database"

	etlUserFlg     = "etl-user"
	etlPasswordFlg = "etl-password"

	initScriptFlg    = "init-script"
	useSqlcmdFlg     = "use-sqlcmd"
	backupMediaFlg   = "backup-media-dir"
	backupStageFlg   = "backup-stage-dir"
	maxAttemptsFlg   = "max-attempts"
	probeIntervalFlg = "probe-interval"
	lingerFlg        = "linger"

	preExecCommandsFlg  = "pre-exec-cmds"
	postExecCommandsFlg = "post-exec-cmds"

	waitIntervalFlg = "wait-interval"
	probeTargetFlg  = "target"
)

var (
	logger *slog.Logger
	src    database.Database
	dst    database.Database
	stop   context.Context
)

var rootCmd = &cobra.Command{
	Use:          moduleName,
	Short:        "a bootstrap sidecar that initializes the databases of the warehouse tutorial stack",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initConfig()
		return initLogging()
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "starts the bootstrap sidecar",
	Long:  "waits until the source database engine accepts connections, runs the one-time initialization script (restore the sample backups, create the restricted etl login), ensures the destination database exists and exits zero on success. The attempt cap and probe interval are tunable. Progress is published on an HTTP status endpoint for dependent containers.",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		initSignalHandlers()
		return initDatabases()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, cmd := range viper.GetStringSlice(preExecCommandsFlg) {
			logger.Info("running pre-exec command", "cmd", cmd)

			executor := utils.NewExecutor(logger.With("component", "pre-executor"))

			err := executor.ExecWithStreamingOutput(stop, cmd)
			if err != nil {
				return err
			}
		}

		addr := fmt.Sprintf("%s:%d", viper.GetString(bindAddrFlg), viper.GetInt(portFlg))

		logger.Info("starting warehouse-bootstrap", "bind-addr", addr)

		mtr := metrics.New()

		i := initializer.New(logger.With("component", "initializer"), addr, src, dst, mtr, initializer.Config{
			ScriptPath:     viper.GetString(initScriptFlg),
			BackupMediaDir: viper.GetString(backupMediaFlg),
			BackupStageDir: viper.GetString(backupStageFlg),
			Linger:         viper.GetBool(lingerFlg),
			Opts: bootstrap.Opts{
				MaxAttempts:   uint(viper.GetInt(maxAttemptsFlg)), // nolint:gosec
				ProbeInterval: viper.GetDuration(probeIntervalFlg),
			},
		})

		return i.Start(stop)
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "waits for the initializer to be done",
	PreRun: func(cmd *cobra.Command, args []string) {
		initSignalHandlers()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := wait.Start(stop, logger.With("component", "wait"), viper.GetString(serverAddrFlg), viper.GetDuration(waitIntervalFlg)); err != nil {
			return err
		}

		for _, cmd := range viper.GetStringSlice(postExecCommandsFlg) {
			logger.Info("running post-exec command", "cmd", cmd)
			executor := utils.NewExecutor(logger.With("component", "post-executor"))

			err := executor.ExecWithStreamingOutput(stop, cmd)
			if err != nil {
				return err
			}
		}

		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "runs a single readiness probe, usable as a container health check",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		initSignalHandlers()
		return initDatabases()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		db := src
		target := viper.GetString(probeTargetFlg)
		if target == "dest" {
			db = dst
		}

		ctx, cancel := context.WithTimeout(stop, 10*time.Second)
		defer cancel()

		if err := db.Probe(ctx); err != nil {
			return fmt.Errorf("%s database is not ready: %w", target, err)
		}

		logger.Info("database is ready", "target", target)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger == nil {
			panic(err)
		}
		logger.Error("failed executing root command", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(startCmd, waitCmd, probeCmd)

	rootCmd.PersistentFlags().StringP(logLevelFlg, "", "info", "sets the application log level")

	rootCmd.PersistentFlags().StringP(sourceHostFlg, "", "sqlserver", "the source database address")
	rootCmd.PersistentFlags().IntP(sourcePortFlg, "", 1433, "the source database port")
	rootCmd.PersistentFlags().StringP(sourceUserFlg, "", "sa", "the source database admin user")
	rootCmd.PersistentFlags().StringP(sourcePasswordFlg, "", "", "the source database admin password")
	rootCmd.PersistentFlags().StringP(sourceDatabaseFlg, "", constants.SourceDatabase, "the sample database to restore into the source engine")

	rootCmd.PersistentFlags().StringP(destHostFlg, "", "postgres", "the destination database address")
	rootCmd.PersistentFlags().IntP(destPortFlg, "", 5432, "the destination database port")
	rootCmd.PersistentFlags().StringP(destUserFlg, "", "postgres", "the destination database admin user")
	rootCmd.PersistentFlags().StringP(destPasswordFlg, "", "", "the destination database admin password")
	rootCmd.PersistentFlags().StringP(destDatabaseFlg, "", constants.SourceDatabase, "the destination database to create")

	rootCmd.PersistentFlags().StringP(etlUserFlg, "", "etl", "the restricted login created for the workflow engine")
	rootCmd.PersistentFlags().StringP(etlPasswordFlg, "", "", "the password of the restricted login")

	err := viper.BindPFlags(rootCmd.PersistentFlags())
	if err != nil {
		fmt.Printf("unable to construct root command: %v", err)
		os.Exit(1)
	}

	startCmd.Flags().StringP(bindAddrFlg, "", "0.0.0.0", "the bind addr of the status server")
	startCmd.Flags().IntP(portFlg, "", 8000, "the port to serve on")

	startCmd.Flags().StringSlice(preExecCommandsFlg, nil, "runs given commands prior to executing the warehouse-bootstrap functionality")

	startCmd.Flags().StringP(initScriptFlg, "", constants.DefaultInitScript, "the path of the source initialization script")
	startCmd.Flags().BoolP(useSqlcmdFlg, "", false, "executes the initialization script through the sqlcmd client instead of the driver")
	startCmd.Flags().StringP(backupMediaFlg, "", "", "directory holding the backup media to stage before initialization (optional)")
	startCmd.Flags().StringP(backupStageFlg, "", constants.DefaultBackupStageDir, "directory inside the source database container the restore reads from")
	startCmd.Flags().IntP(maxAttemptsFlg, "", constants.DefaultMaxAttempts, "the attempt cap for readiness polling")
	startCmd.Flags().DurationP(probeIntervalFlg, "", constants.DefaultProbeInterval, "the pause between two readiness probes")
	startCmd.Flags().BoolP(lingerFlg, "", false, "keeps the status server running after a successful initialization")

	err = viper.BindPFlags(startCmd.Flags())
	if err != nil {
		fmt.Printf("unable to construct start command: %v", err)
		os.Exit(1)
	}

	waitCmd.Flags().StringP(serverAddrFlg, "", "http://127.0.0.1:8000", "the url of the initializer status server")
	waitCmd.Flags().DurationP(waitIntervalFlg, "", 3*time.Second, "the pause between two status polls")

	waitCmd.Flags().StringSlice(postExecCommandsFlg, nil, "runs given commands after finished waiting for the initializer (typically used for starting the dependent service)")

	err = viper.BindPFlags(waitCmd.Flags())
	if err != nil {
		fmt.Printf("unable to construct wait command: %v", err)
		os.Exit(1)
	}

	probeCmd.Flags().StringP(probeTargetFlg, "", "source", "the database to probe [source|dest]")

	err = viper.BindPFlags(probeCmd.Flags())
	if err != nil {
		fmt.Printf("unable to construct probe command: %v", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("WAREHOUSE_BOOTSTRAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// the environment names of the original compose scaffold keep working
	for flg, env := range map[string]string{
		etlUserFlg:        "ETL_USER",
		etlPasswordFlg:    "ETL_PASS",
		sourcePortFlg:     "SA_PORT",
		sourcePasswordFlg: "SA_PASSWORD",
		destPortFlg:       "PG_PORT",
		destPasswordFlg:   "POSTGRES_PASSWORD",
	} {
		if err := viper.BindEnv(flg, env); err != nil {
			fmt.Printf("unable to bind environment: %v", err)
			os.Exit(1)
		}
	}

	viper.SetConfigType(cfgFileType)
	viper.SetConfigName("config")
	viper.AddConfigPath("/etc/" + moduleName)
	viper.AddConfigPath("$HOME/." + moduleName)
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		usedCfg := viper.ConfigFileUsed()
		if usedCfg != "" {
			fmt.Printf("config file unreadable: %s: %v", usedCfg, err)
			os.Exit(1)
		}
	}
}

func initLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString(logLevelFlg))); err != nil {
		return fmt.Errorf("can't initialize logger: %w", err)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	usedCfg := viper.ConfigFileUsed()
	if usedCfg != "" {
		logger.Info("read config file", "config-file", usedCfg)
	}

	return nil
}

func initSignalHandlers() {
	// don't need to store the cancel func
	stop, _ = signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
}

func initDatabases() error {
	if viper.GetString(sourcePasswordFlg) == "" {
		return fmt.Errorf("source database password (%s) must be set", sourcePasswordFlg)
	}

	vars := map[string]string{
		"ETL_USER":   viper.GetString(etlUserFlg),
		"ETL_PASS":   viper.GetString(etlPasswordFlg),
		"BACKUP_DIR": viper.GetString(backupStageFlg),
	}

	src = sqlserver.New(
		logger.With("component", "sqlserver"),
		viper.GetString(sourceHostFlg),
		viper.GetInt(sourcePortFlg),
		viper.GetString(sourceUserFlg),
		viper.GetString(sourcePasswordFlg),
		viper.GetString(sourceDatabaseFlg),
		vars,
		viper.GetBool(useSqlcmdFlg),
	)

	dst = postgres.New(
		logger.With("component", "postgres"),
		viper.GetString(destHostFlg),
		viper.GetInt(destPortFlg),
		viper.GetString(destUserFlg),
		viper.GetString(destPasswordFlg),
		viper.GetString(destDatabaseFlg),
		viper.GetString(etlUserFlg),
		viper.GetString(etlPasswordFlg),
	)

	logger.Info("initialized database adapters",
		"source", fmt.Sprintf("%s:%d", viper.GetString(sourceHostFlg), viper.GetInt(sourcePortFlg)),
		"dest", fmt.Sprintf("%s:%d", viper.GetString(destHostFlg), viper.GetInt(destPortFlg)),
	)

	return nil
}
