package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pulsefit/checkin-sync/schema"
)

// HTTPClient talks JSON over HTTP to the session server's /v1 endpoints.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the given server base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type checkInRequest struct {
	MemberID  string  `json:"member_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type checkOutRequest struct {
	MemberID string `json:"member_id"`
}

func (c *HTTPClient) CheckIn(ctx context.Context, memberID string, lat, lon float64) (*schema.SessionRecord, error) {
	return c.post(ctx, "/v1/checkin", checkInRequest{MemberID: memberID, Latitude: lat, Longitude: lon})
}

func (c *HTTPClient) CheckOut(ctx context.Context, memberID string) (*schema.SessionRecord, error) {
	rec, err := c.post(ctx, "/v1/checkout", checkOutRequest{MemberID: memberID})
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return nil, ErrNoOpenSession
		}
		return nil, err
	}
	return rec, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any) (*schema.SessionRecord, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var rec schema.SessionRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode session record: %w", err)
	}
	return &rec, nil
}
