package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	v1 "github.com/dwhkit/warehouse-bootstrap/pkg/api/v1"
)

type Client struct {
	baseURL string
	hc      *http.Client
}

// New returns a new warehouse-bootstrap status client.
func New(rawurl string) (*Client, error) {
	parsedurl, err := url.Parse(rawurl)
	if err != nil {
		return nil, err
	}
	if parsedurl.Host == "" {
		return nil, fmt.Errorf("invalid url:%s, must be in the form scheme://host[:port]", rawurl)
	}

	return &Client{
		baseURL: strings.TrimSuffix(rawurl, "/"),
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Status retrieves the current initializer status.
func (c *Client) Status(ctx context.Context) (*v1.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}

	var status v1.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("unable to decode status response: %w", err)
	}

	return &status, nil
}
