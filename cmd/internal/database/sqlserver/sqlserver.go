package sqlserver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"path"
	"strconv"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/spf13/afero"

	btserrors "github.com/dwhkit/warehouse-bootstrap/cmd/internal/bootstrap/errors"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/script"
	"github.com/dwhkit/warehouse-bootstrap/cmd/internal/utils"
)

const (
	sqlcmdCmd = "sqlcmd"

	backupMediaSuffix = ".bak"
)

// SQLServer implements the database interface for the warehouse source engine.
type SQLServer struct {
	log      *slog.Logger
	fs       afero.Fs
	executor *utils.CmdExecutor

	host     string
	port     int
	user     string
	password string
	database string

	// vars are sqlcmd scripting variables available to the init script
	vars map[string]string

	// useSqlcmd executes the script through the sqlcmd client instead of the
	// driver. This preserves the original scaffold behavior but loses the
	// separation of "not ready" and "script broken" errors.
	useSqlcmd bool
}

// New instantiates a new sqlserver database
func New(log *slog.Logger, host string, port int, user string, password string, database string, vars map[string]string, useSqlcmd bool) *SQLServer {
	return &SQLServer{
		log:       log,
		fs:        afero.NewOsFs(),
		executor:  utils.NewExecutor(log),
		host:      host,
		port:      port,
		user:      user,
		password:  password,
		database:  database,
		vars:      vars,
		useSqlcmd: useSqlcmd,
	}
}

func (db *SQLServer) connString(database string) string {
	query := url.Values{}
	query.Set("database", database)
	query.Set("trustservercertificate", "true")

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(db.user, db.password),
		Host:     net.JoinHostPort(db.host, strconv.Itoa(db.port)),
		RawQuery: query.Encode(),
	}

	return u.String()
}

// Probe figures out if the database engine accepts connections.
func (db *SQLServer) Probe(ctx context.Context) error {
	dbc, err := sql.Open("sqlserver", db.connString("master"))
	if err != nil {
		return fmt.Errorf("unable to open sqlserver connection: %w", err)
	}
	defer func() {
		_ = dbc.Close()
	}()

	if err := dbc.PingContext(ctx); err != nil {
		return btserrors.NotReadyError{Err: err}
	}

	return nil
}

// Check indicates whether the sample database still needs to be restored.
func (db *SQLServer) Check(ctx context.Context) (bool, error) {
	dbc, err := sql.Open("sqlserver", db.connString("master"))
	if err != nil {
		return false, fmt.Errorf("unable to open sqlserver connection: %w", err)
	}
	defer func() {
		_ = dbc.Close()
	}()

	var id sql.NullInt64
	if err := dbc.QueryRowContext(ctx, "SELECT DB_ID(@p1)", db.database).Scan(&id); err != nil {
		return false, fmt.Errorf("unable to query database id: %w", err)
	}

	if !id.Valid {
		db.log.Info("database does not exist yet, restore required", "database", db.database)
		return true, nil
	}

	return false, nil
}

// Apply runs the initialization script against the engine.
func (db *SQLServer) Apply(ctx context.Context, scriptPath string) error {
	if db.useSqlcmd {
		return db.applyWithSqlcmd(ctx, scriptPath)
	}

	s, err := script.Load(db.fs, scriptPath, db.vars)
	if err != nil {
		return btserrors.ScriptError{Err: err}
	}

	dbc, err := sql.Open("sqlserver", db.connString("master"))
	if err != nil {
		return fmt.Errorf("unable to open sqlserver connection: %w", err)
	}
	defer func() {
		_ = dbc.Close()
	}()

	for i, batch := range s.Batches() {
		if _, err := dbc.ExecContext(ctx, batch); err != nil {
			return classifyExecError(i+1, err)
		}
	}

	db.log.Info("initialization script applied", "script", scriptPath, "batches", len(s.Batches()))

	return nil
}

func (db *SQLServer) applyWithSqlcmd(ctx context.Context, scriptPath string) error {
	if !utils.IsCommandPresent(sqlcmdCmd) {
		return fmt.Errorf("%s is not present in path", sqlcmdCmd)
	}

	args := []string{
		"-S", fmt.Sprintf("%s,%d", db.host, db.port),
		"-U", db.user,
		"-C", // trust the server certificate
		"-b", // terminate with a non-zero exit code on script errors
		"-i", scriptPath,
	}
	for name, value := range db.vars {
		args = append(args, "-v", fmt.Sprintf("%s=%s", name, value))
	}

	env := []string{"SQLCMDPASSWORD=" + db.password}

	out, err := db.executor.ExecuteCommandWithOutput(ctx, sqlcmdCmd, env, args...)
	if err != nil {
		// a bare exit code cannot separate unreachability from a broken script
		return btserrors.ScriptError{Err: fmt.Errorf("error running %s: %s: %w", sqlcmdCmd, out, err)}
	}

	db.log.Debug("initialization script applied", "script", scriptPath, "output", out)

	return nil
}

// StageBackupMedia copies the backup media from the mounted media directory into
// the directory the RESTORE statements read from. The media and stage
// directories live on a volume shared with the database container.
func (db *SQLServer) StageBackupMedia(mediaDir, stageDir string) error {
	entries, err := afero.ReadDir(db.fs, mediaDir)
	if err != nil {
		return fmt.Errorf("unable to read backup media directory: %w", err)
	}

	if err := db.fs.MkdirAll(stageDir, 0777); err != nil {
		return fmt.Errorf("unable to create stage directory: %w", err)
	}

	var staged int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), backupMediaSuffix) {
			continue
		}

		src := path.Join(mediaDir, entry.Name())
		dst := path.Join(stageDir, entry.Name())

		if err := utils.Copy(db.fs, src, dst); err != nil {
			return fmt.Errorf("unable to stage backup media %s: %w", entry.Name(), err)
		}

		db.log.Info("staged backup media", "file", entry.Name(), "to", stageDir)
		staged++
	}

	if staged == 0 {
		return fmt.Errorf("no %s files found in %s", backupMediaSuffix, mediaDir)
	}

	return nil
}

// classifyExecError separates "the engine rejected the script" from "the engine
// went away". Only the latter is worth retrying.
func classifyExecError(batch int, err error) error {
	var serverErr mssql.Error
	if errors.As(err, &serverErr) {
		return btserrors.ScriptError{Batch: batch, Err: err}
	}

	if errors.Is(err, driver.ErrBadConn) {
		return btserrors.NotReadyError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return btserrors.NotReadyError{Err: err}
	}

	return btserrors.ScriptError{Batch: batch, Err: err}
}
