package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	btserrors "github.com/dwhkit/warehouse-bootstrap/cmd/internal/bootstrap/errors"
)

// Postgres implements the database interface for the warehouse destination.
// Initialization ensures that the destination database and the restricted ETL
// role exist, it does not run a script.
type Postgres struct {
	log      *slog.Logger
	host     string
	port     int
	user     string
	password string

	database    string
	etlUser     string
	etlPassword string
}

// New instantiates a new postgres database
func New(log *slog.Logger, host string, port int, user string, password string, database string, etlUser string, etlPassword string) *Postgres {
	return &Postgres{
		log:         log,
		host:        host,
		port:        port,
		user:        user,
		password:    password,
		database:    database,
		etlUser:     etlUser,
		etlPassword: etlPassword,
	}
}

func (db *Postgres) connString(dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", db.host, db.port, db.user, db.password, dbname)
}

// Probe figures out if the database engine accepts connections.
func (db *Postgres) Probe(ctx context.Context) error {
	dbc, err := sql.Open("postgres", db.connString("postgres"))
	if err != nil {
		return fmt.Errorf("unable to open postgres connection: %w", err)
	}
	defer func() {
		_ = dbc.Close()
	}()

	if err := dbc.PingContext(ctx); err != nil {
		return btserrors.NotReadyError{Err: err}
	}

	return nil
}

// Check indicates whether the destination database or the ETL role are still missing.
func (db *Postgres) Check(ctx context.Context) (bool, error) {
	dbc, err := sql.Open("postgres", db.connString("postgres"))
	if err != nil {
		return false, fmt.Errorf("unable to open postgres connection: %w", err)
	}
	defer func() {
		_ = dbc.Close()
	}()

	var exists bool

	if err := dbc.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", db.etlUser).Scan(&exists); err != nil {
		return false, fmt.Errorf("unable to query roles: %w", err)
	}
	if !exists {
		db.log.Info("etl role does not exist yet", "role", db.etlUser)
		return true, nil
	}

	if err := dbc.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", db.database).Scan(&exists); err != nil {
		return false, fmt.Errorf("unable to query databases: %w", err)
	}
	if !exists {
		db.log.Info("destination database does not exist yet", "database", db.database)
		return true, nil
	}

	return false, nil
}

// Apply idempotently creates the destination database and the ETL role. The
// script path is unused, the statements are generated.
func (db *Postgres) Apply(ctx context.Context, _ string) error {
	dbc, err := sql.Open("postgres", db.connString("postgres"))
	if err != nil {
		return fmt.Errorf("unable to open postgres connection: %w", err)
	}
	defer func() {
		_ = dbc.Close()
	}()

	var exists bool

	if err := dbc.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", db.etlUser).Scan(&exists); err != nil {
		return classifyExecError(err)
	}
	if !exists {
		if _, err := dbc.ExecContext(ctx, createRoleStmt(db.etlUser, db.etlPassword)); err != nil {
			return classifyExecError(err)
		}
		db.log.Info("created etl role", "role", db.etlUser)
	}

	if err := dbc.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", db.database).Scan(&exists); err != nil {
		return classifyExecError(err)
	}
	if !exists {
		// CREATE DATABASE cannot run inside a transaction, plain exec is required
		if _, err := dbc.ExecContext(ctx, createDatabaseStmt(db.database, db.etlUser)); err != nil {
			return classifyExecError(err)
		}
		db.log.Info("created destination database", "database", db.database, "owner", db.etlUser)
	}

	if _, err := dbc.ExecContext(ctx, grantConnectStmt(db.database, db.etlUser)); err != nil {
		return classifyExecError(err)
	}

	db.log.Info("destination database initialized", "database", db.database)

	return nil
}

func createRoleStmt(name, password string) string {
	return fmt.Sprintf("CREATE ROLE %s WITH LOGIN PASSWORD %s", pq.QuoteIdentifier(name), pq.QuoteLiteral(password))
}

func createDatabaseStmt(name, owner string) string {
	return fmt.Sprintf("CREATE DATABASE %s OWNER %s", pq.QuoteIdentifier(name), pq.QuoteIdentifier(owner))
}

func grantConnectStmt(database, role string) string {
	return fmt.Sprintf("GRANT CONNECT ON DATABASE %s TO %s", pq.QuoteIdentifier(database), pq.QuoteIdentifier(role))
}

// classifyExecError separates server-reported errors from connection failures.
func classifyExecError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return btserrors.ScriptError{Err: err}
	}

	return btserrors.NotReadyError{Err: err}
}
