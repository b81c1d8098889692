package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"budgetsim/internal/broadcast"
	"budgetsim/internal/core"
)

// remote is a thin client for the budgetsim HTTP API.
type remote struct {
	base   string
	client *http.Client
}

func newRemote(base string) *remote {
	return &remote{base: base, client: &http.Client{Timeout: 10 * time.Second}}
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (r *remote) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&msg)
		return &apiError{Status: resp.StatusCode, Message: msg.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// ListFamilies satisfies broadcast.Lister so a Poller can drive the watch loop.
func (r *remote) ListFamilies(ctx context.Context) ([]core.Family, error) {
	var snap broadcast.Snapshot
	if err := r.do(ctx, http.MethodGet, "/families/", nil, &snap); err != nil {
		return nil, err
	}
	return snap.Data, nil
}

func (r *remote) GetFamily(ctx context.Context, id int64) (*core.Family, error) {
	var snap broadcast.Snapshot
	if err := r.do(ctx, http.MethodGet, "/families/"+strconv.FormatInt(id, 10), nil, &snap); err != nil {
		return nil, err
	}
	if len(snap.Data) == 0 {
		return nil, core.NewNotFound("family", id)
	}
	return &snap.Data[0], nil
}

// transact posts to one of the /api/transactions endpoints.
func (r *remote) transact(ctx context.Context, op string, body map[string]any) error {
	return r.do(ctx, http.MethodPost, "/api/transactions/"+op, body, nil)
}
