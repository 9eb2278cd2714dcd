package postgres

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	btserrors "github.com/dwhkit/warehouse-bootstrap/cmd/internal/bootstrap/errors"
)

func TestStatementBuilding(t *testing.T) {
	assert.Equal(t, `CREATE ROLE "etl" WITH LOGIN PASSWORD 'secret'`, createRoleStmt("etl", "secret"))
	assert.Equal(t, `CREATE DATABASE "AdventureWorksDW2022" OWNER "etl"`, createDatabaseStmt("AdventureWorksDW2022", "etl"))
	assert.Equal(t, `GRANT CONNECT ON DATABASE "AdventureWorksDW2022" TO "etl"`, grantConnectStmt("AdventureWorksDW2022", "etl"))
}

func TestStatementBuilding_QuotesHostileInput(t *testing.T) {
	// a password containing a quote must not break out of the literal
	assert.Equal(t, `CREATE ROLE "etl" WITH LOGIN PASSWORD 'it''s'`, createRoleStmt("etl", "it's"))

	// identifiers are double-quote escaped
	assert.Equal(t, `CREATE DATABASE "we""ird" OWNER "etl"`, createDatabaseStmt(`we"ird`, "etl"))
}

func Test_classifyExecError(t *testing.T) {
	var scriptErr btserrors.ScriptError
	var notReady btserrors.NotReadyError

	got := classifyExecError(&pq.Error{Code: "42601", Message: "syntax error"})
	assert.True(t, errors.As(got, &scriptErr))

	got = classifyExecError(errors.New("dial tcp: connection refused"))
	assert.True(t, errors.As(got, &notReady))
}
