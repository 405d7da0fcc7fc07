package grid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sahilchouksey/gradgrid/model"
)

// CellDatum is one computed cell value in a batch response.
type CellDatum struct {
	Value       string    `json:"value"`
	LastUpdated time.Time `json:"last_updated"`
}

// CellData maps entity id -> column id -> datum. Entities the backend
// had nothing for are simply absent.
type CellData map[string]map[string]CellDatum

// API is the backend contract the engine consumes. The engine never
// cares how answers are computed; the retrieval backend is opaque
// behind Ask.
type API interface {
	ListUniversities(ctx context.Context) ([]Entity, error)
	FetchDetails(ctx context.Context, ids []string) ([]Entity, error)
	ListColumns(ctx context.Context) ([]model.Column, error)
	CreateColumn(ctx context.Context, title string) (model.Column, error)
	DeleteColumn(ctx context.Context, id string) error
	SaveCellValue(ctx context.Context, universityID, columnID, value string) error
	FetchCellData(ctx context.Context, ids []string) (CellData, error)
	Ask(ctx context.Context, question, universityID string) (string, error)
	SubscriptionStatus(ctx context.Context) (VisibilityPolicy, error)
}

// Client is the HTTP implementation of API against the dashboard
// server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an API client. token is the session bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// envelope is the server's standard response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// doRequest issues one JSON request and decodes the data payload into
// out (which may be nil for fire-and-forget calls).
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 || (!env.Success && env.Error != nil) {
		if env.Error != nil {
			return fmt.Errorf("api error %s: %s", env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("api error: status %d", resp.StatusCode)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// ListUniversities fetches the session user's full entity list.
func (c *Client) ListUniversities(ctx context.Context) ([]Entity, error) {
	var out []Entity
	if err := c.doRequest(ctx, http.MethodGet, "/api/universities", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchDetails bulk-fetches entity snapshots for the given ids.
func (c *Client) FetchDetails(ctx context.Context, ids []string) ([]Entity, error) {
	req := map[string][]string{"universities": ids}
	var out []Entity
	if err := c.doRequest(ctx, http.MethodPost, "/api/universities/details", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListColumns fetches all columns visible to the session user.
func (c *Client) ListColumns(ctx context.Context) ([]model.Column, error) {
	var out []model.Column
	if err := c.doRequest(ctx, http.MethodGet, "/api/columns", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateColumn creates a user column with the given title.
func (c *Client) CreateColumn(ctx context.Context, title string) (model.Column, error) {
	req := map[string]string{"name": title}
	var out struct {
		Column model.Column `json:"column"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/columns", req, &out); err != nil {
		return model.Column{}, err
	}
	return out.Column, nil
}

// DeleteColumn removes a column by id.
func (c *Client) DeleteColumn(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/columns/"+id, nil, nil)
}

// SaveCellValue persists one cell value.
func (c *Client) SaveCellValue(ctx context.Context, universityID, columnID, value string) error {
	req := map[string]string{
		"university_id": universityID,
		"column_id":     columnID,
		"value":         value,
	}
	return c.doRequest(ctx, http.MethodPost, "/api/columns/data", req, nil)
}

// FetchCellData issues one batched fetch covering ids.
func (c *Client) FetchCellData(ctx context.Context, ids []string) (CellData, error) {
	req := map[string][]string{"university_ids": ids}
	var out CellData
	if err := c.doRequest(ctx, http.MethodPost, "/api/columns/data/batch", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ask runs one retrieval question against a university.
func (c *Client) Ask(ctx context.Context, question, universityID string) (string, error) {
	req := map[string]string{
		"question":      question,
		"university_id": universityID,
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/rag", req, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// SubscriptionStatus polls the session user's visibility tier.
func (c *Client) SubscriptionStatus(ctx context.Context) (VisibilityPolicy, error) {
	var out struct {
		SubscriptionStatus model.SubscriptionStatus `json:"subscription_status"`
		IsPremium          bool                     `json:"is_premium"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/subscription/status", nil, &out); err != nil {
		return VisibilityPolicy{}, err
	}
	return VisibilityPolicy{
		SubscriptionStatus: out.SubscriptionStatus,
		IsPremium:          out.IsPremium,
	}, nil
}

var _ API = (*Client)(nil)
