package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"artdedup/internal/api"
	"artdedup/internal/services"
)

// Client provides HTTP access to the daemon API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for baseURL without contacting the daemon.
func New(baseURL, token string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL != "" && !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Dial connects to the daemon and confirms it answers a status request.
func Dial(ctx context.Context, baseURL, token string) (*Client, error) {
	client := New(baseURL, token)
	if client.baseURL == "" {
		return nil, fmt.Errorf("daemon address is empty")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := client.Status(pingCtx); err != nil {
		return nil, err
	}
	return client, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var resp api.DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartScan launches a full scan.
func (c *Client) StartScan(ctx context.Context, req api.ScanRequest) (*api.ScanStatus, error) {
	var resp api.ScanStatus
	if err := c.do(ctx, http.MethodPost, "/api/scans", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanStatus reports one scan.
func (c *Client) ScanStatus(ctx context.Context, handle string) (*api.ScanStatus, error) {
	var resp api.ScanStatus
	if err := c.do(ctx, http.MethodGet, "/api/scans/"+url.PathEscape(handle), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListScans returns every retained scan.
func (c *Client) ListScans(ctx context.Context) ([]api.ScanStatus, error) {
	var resp api.ScanListResponse
	if err := c.do(ctx, http.MethodGet, "/api/scans", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Scans, nil
}

// CancelScan requests cancellation of a running scan.
func (c *Client) CancelScan(ctx context.Context, handle string) (*api.ScanStatus, error) {
	var resp api.ScanStatus
	if err := c.do(ctx, http.MethodPost, "/api/scans/"+url.PathEscape(handle)+"/cancel", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckRecord compares one artwork against the rest of the catalog.
func (c *Client) CheckRecord(ctx context.Context, id int64) (*api.CheckResponse, error) {
	var resp api.CheckResponse
	if err := c.do(ctx, http.MethodPost, "/api/artworks/"+idPath(id)+"/check", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListCandidates returns a page of candidates.
func (c *Client) ListCandidates(ctx context.Context, q api.CandidateQuery) (*api.CandidateListResponse, error) {
	values := url.Values{}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.Method != "" {
		values.Set("method", q.Method)
	}
	if q.MinScore > 0 {
		values.Set("min_score", strconv.FormatFloat(q.MinScore, 'f', -1, 64))
	}
	if q.ArtworkID > 0 {
		values.Set("artwork_id", idPath(q.ArtworkID))
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("page_size", strconv.Itoa(q.PageSize))
	}
	path := "/api/candidates"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp api.CandidateListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetCandidate returns one candidate with both artworks.
func (c *Client) GetCandidate(ctx context.Context, id int64) (*api.CandidateDetail, error) {
	var resp api.CandidateDetail
	if err := c.do(ctx, http.MethodGet, "/api/candidates/"+idPath(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveCandidate records a decision for one candidate.
func (c *Client) ResolveCandidate(ctx context.Context, id int64, req api.ResolveRequest) (*api.ResolveResponse, error) {
	var resp api.ResolveResponse
	if err := c.do(ctx, http.MethodPost, "/api/candidates/"+idPath(id)+"/resolve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BulkResolve applies one decision to many candidates.
func (c *Client) BulkResolve(ctx context.Context, req api.BulkResolveRequest) (*api.BulkResolveResponse, error) {
	var resp api.BulkResolveResponse
	if err := c.do(ctx, http.MethodPost, "/api/candidates/bulk-resolve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetCandidate clears a resolved candidate so the pair can be detected again.
func (c *Client) ResetCandidate(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, "/api/candidates/"+idPath(id)+"/reset", nil, nil)
}

// Merge folds one artwork into another, or previews the result when
// req.DryRun is set.
func (c *Client) Merge(ctx context.Context, req api.MergeRequest) (*api.MergeSummary, error) {
	var resp api.MergeSummary
	if err := c.do(ctx, http.MethodPost, "/api/merges", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MergeHistory returns recent merge audits, newest first.
func (c *Client) MergeHistory(ctx context.Context, limit int) ([]api.MergeAudit, error) {
	path := "/api/merges"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp api.MergeHistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Merges, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload api.ErrorResponse
	if err := json.Unmarshal(data, &payload); err != nil || (payload.Error == "" && payload.Kind == "") {
		message := strings.TrimSpace(string(data))
		if message == "" {
			message = resp.Status
		}
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, message)
	}
	return services.FromKind(payload.Kind, payload.Error)
}

func idPath(id int64) string {
	return strconv.FormatInt(id, 10)
}
