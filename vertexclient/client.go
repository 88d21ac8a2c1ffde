// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package vertexclient is the dispatcher's RPC client for talking to a
// single vertex's HTTP control plane: fetching free resources, the
// set of currently-running task ids, and submitting new jobs.
package vertexclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"github.com/qihexiang/jobs-dispatcher/job"
	"github.com/qihexiang/jobs-dispatcher/resources"
	"github.com/qihexiang/jobs-dispatcher/vertex"
)

// Config names a vertex and how to reach it (spec's VertexClient).
type Config struct {
	URL      string
	Username string
	Password string
}

// Client is a persistent HTTP client bound to one vertex.
type Client struct {
	cfg    Config
	client *http.Client
}

// New builds a Client using a pooled, keep-alive transport — the same
// construction Nomad's own RPC clients use via go-cleanhttp rather
// than http.DefaultClient.
func New(cfg Config) *Client {
	return &Client{cfg: cfg, client: cleanhttp.DefaultPooledClient()}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

// Free fetches the vertex's currently free resources (GET /free).
func (c *Client) Free(ctx context.Context) (resources.Provider, error) {
	var provider resources.Provider
	resp, err := c.do(ctx, http.MethodGet, "/free", nil)
	if err != nil {
		return provider, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return provider, fmt.Errorf("vertexclient: /free returned %s", resp.Status)
	}
	err = json.NewDecoder(resp.Body).Decode(&provider)
	return provider, err
}

// Jobs fetches the vertex's currently-known job statuses, filtered by
// the server to this client's authenticated user (GET /jobs).
func (c *Client) Jobs(ctx context.Context) (map[string]vertex.JobStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/jobs", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vertexclient: /jobs returned %s", resp.Status)
	}
	out := make(map[string]vertex.JobStatus)
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

// ErrResourcesNotEnough is returned by SubmitJob when the vertex
// refuses the job with 503 (spec §4.7/§7: retryable, not fatal).
var ErrResourcesNotEnough = fmt.Errorf("vertexclient: resources not enough")

// SubmitJob posts a job to the vertex (POST /job/{task_id}) and
// returns the vertex-assigned task id. taskID is the dispatcher's own
// id for this claim; it is accepted by the path for logging purposes
// only — the vertex always mints its own id (spec §4.7).
func (c *Client) SubmitJob(ctx context.Context, taskID string, j job.Configuration) (string, error) {
	payload, err := json.Marshal(j)
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, http.MethodPost, "/job/"+taskID, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return string(data), nil
	case http.StatusServiceUnavailable:
		return "", ErrResourcesNotEnough
	default:
		return "", fmt.Errorf("vertexclient: submit returned %s: %s", resp.Status, string(data))
	}
}
