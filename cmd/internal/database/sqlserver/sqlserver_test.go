package sqlserver

import (
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"testing"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	btserrors "github.com/dwhkit/warehouse-bootstrap/cmd/internal/bootstrap/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSQLServer_connString(t *testing.T) {
	db := New(testLogger(), "sqlserver", 1433, "sa", "secret!pass", "AdventureWorksDW2022", nil, false)

	got := db.connString("master")

	assert.Contains(t, got, "sqlserver://")
	assert.Contains(t, got, "sqlserver:1433")
	assert.Contains(t, got, "database=master")
	assert.Contains(t, got, "trustservercertificate=true")
	// the password must be escaped into the userinfo section
	assert.Contains(t, got, "sa:secret%21pass@")
}

func Test_classifyExecError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantScript   bool
		wantNotReady bool
	}{
		{
			name:       "server reported error is a script failure",
			err:        mssql.Error{Number: 102, Message: "Incorrect syntax near 'RESTORE'."},
			wantScript: true,
		},
		{
			name:         "bad connection is retriable",
			err:          driver.ErrBadConn,
			wantNotReady: true,
		},
		{
			name:         "network error is retriable",
			err:          &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			wantNotReady: true,
		},
		{
			name:       "unknown error counts as script failure",
			err:        errors.New("something else"),
			wantScript: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyExecError(3, tt.err)

			var scriptErr btserrors.ScriptError
			assert.Equal(t, tt.wantScript, errors.As(got, &scriptErr))
			if tt.wantScript {
				assert.Equal(t, 3, scriptErr.Batch)
			}

			var notReady btserrors.NotReadyError
			assert.Equal(t, tt.wantNotReady, errors.As(got, &notReady))
		})
	}
}

func TestSQLServer_StageBackupMedia(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := &SQLServer{
		log: testLogger(),
		fs:  fs,
	}

	require.NoError(t, fs.MkdirAll("/media", 0777))
	require.NoError(t, afero.WriteFile(fs, "/media/AdventureWorksDW2022.bak", []byte("backup"), 0600))
	require.NoError(t, afero.WriteFile(fs, "/media/README.md", []byte("not media"), 0600))

	err := db.StageBackupMedia("/media", "/var/opt/mssql/backup")
	require.NoError(t, err)

	staged, err := afero.ReadFile(fs, "/var/opt/mssql/backup/AdventureWorksDW2022.bak")
	require.NoError(t, err)
	assert.Equal(t, []byte("backup"), staged)

	// only backup media is staged
	_, err = fs.Stat("/var/opt/mssql/backup/README.md")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSQLServer_StageBackupMedia_NoMedia(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := &SQLServer{
		log: testLogger(),
		fs:  fs,
	}

	require.NoError(t, fs.MkdirAll("/media", 0777))

	err := db.StageBackupMedia("/media", "/var/opt/mssql/backup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .bak files found")
}
