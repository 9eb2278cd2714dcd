package wait

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/dwhkit/warehouse-bootstrap/pkg/api/v1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func statusServer(t *testing.T, responses []v1.StatusResponse) *httptest.Server {
	t.Helper()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		resp := responses[min(int(n)-1, len(responses)-1)]

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestStart_ReturnsWhenInitializerIsDone(t *testing.T) {
	server := statusServer(t, []v1.StatusResponse{
		{Status: v1.StatusWaiting, Message: "waiting for source database"},
		{Status: v1.StatusApplying, Message: "initializing source database"},
		{Status: v1.StatusDone, Message: "database initialization complete"},
	})

	err := Start(context.Background(), testLogger(), server.URL, 5*time.Millisecond)
	require.NoError(t, err)
}

func TestStart_FailsWhenInitializerFailed(t *testing.T) {
	server := statusServer(t, []v1.StatusResponse{
		{Status: v1.StatusFailed, Message: "database did not become ready within 60 attempts"},
	})

	err := Start(context.Background(), testLogger(), server.URL, 5*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initializer failed")
}

func TestStart_StopsOnCancellation(t *testing.T) {
	server := statusServer(t, []v1.StatusResponse{
		{Status: v1.StatusWaiting, Message: "waiting for source database"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := Start(ctx, testLogger(), server.URL, 5*time.Millisecond)
	require.NoError(t, err)
}

func TestStart_InvalidServerAddress(t *testing.T) {
	err := Start(context.Background(), testLogger(), "not-a-url", time.Millisecond)
	require.Error(t, err)
}
