// Package knowledge provides a client for the knowledge-base semantic search
// service and the tool that exposes it to agents.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultLimit = 5
	MaxLimit     = 20
)

// SearchRequest is the body sent to the search endpoint.
type SearchRequest struct {
	Query        string `json:"query"`
	CollectionID string `json:"collectionId,omitempty"`
	Limit        int    `json:"limit"`
}

// Document is one ranked search hit.
type Document struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Similarity   float64   `json:"similarity"`
	Type         string    `json:"type,omitempty"`
	CollectionID string    `json:"collectionId,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// SearchResponse is the decoded search result. An empty Results slice is valid.
type SearchResponse struct {
	Results      []Document `json:"results"`
	TotalResults int        `json:"totalResults"`
}

// Searcher is implemented by Client and by test doubles.
type Searcher interface {
	Search(ctx context.Context, tenantID string, req SearchRequest) (*SearchResponse, error)
}

// Config configures the search client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls POST {BaseURL}/knowledge/search?workspaceId={tenant}.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("knowledge base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid knowledge base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// ClampLimit maps a requested limit into [1, MaxLimit], using DefaultLimit for zero.
func ClampLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

func (c *Client) Search(ctx context.Context, tenantID string, sr SearchRequest) (*SearchResponse, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("knowledge search requires a tenant")
	}
	sr.Limit = ClampLimit(sr.Limit)

	jsonData, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/knowledge/search?workspaceId=" + url.QueryEscape(tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call search API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("search API error (status %d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("search API error (status %d): %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var result SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
