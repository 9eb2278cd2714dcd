package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/dwhkit/warehouse-bootstrap/pkg/api/v1"
)

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("not-a-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be in the form")
}

func TestClient_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"applying","message":"initializing source database"}`))
	}))
	defer server.Close()

	c, err := New(server.URL)
	require.NoError(t, err)

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, v1.StatusApplying, status.Status)
	assert.Equal(t, "initializing source database", status.Message)
}

func TestClient_Status_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c, err := New(server.URL)
	require.NoError(t, err)

	_, err = c.Status(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status endpoint returned")
}
