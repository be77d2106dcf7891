package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
)

// Fetcher lists the match documents in a collection for the watched pair.
type Fetcher interface {
	FetchMatches(ctx context.Context, collection string, filter feed.Filter) ([]match.Snapshot, error)
}

// Config controls how the client reaches the document store.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	MaxPages   int
}

// Client queries the document store REST API and decodes match documents.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpDoer
	now        func() time.Time
	maxPages   int
}

// NewClient constructs a document store client with the provided configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:    normalizeBaseURL(cfg.BaseURL),
		apiKey:     cfg.APIKey,
		httpClient: resolveHTTPClient(cfg.HTTPClient),
		now:        time.Now,
		maxPages:   resolveMaxPages(cfg.MaxPages),
	}
}

// FetchMatches pages through the collection. Documents that are not JSON
// objects are skipped; the rest decode leniently.
func (c *Client) FetchMatches(ctx context.Context, collection string, filter feed.Filter) ([]match.Snapshot, error) {
	var (
		out       []match.Snapshot
		pageToken string
	)
	for page := 1; ; page++ {
		req, err := c.buildRequest(ctx, collection, filter, pageToken)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		payload, err := c.readPage(resp, collection)
		if err != nil {
			return nil, err
		}

		for _, raw := range payload.Documents {
			snap, err := match.Decode(raw)
			if err != nil {
				continue
			}
			out = append(out, snap)
		}

		pageToken = payload.NextPageToken
		if pageToken == "" || page >= c.maxPages {
			break
		}
	}
	return out, nil
}

func (c *Client) readPage(resp *http.Response, collection string) (documentsResponse, error) {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return documentsResponse{}, &RateLimitError{
			Source:     collection,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
			Remaining:  resp.Header.Get("X-RateLimit-Remaining"),
			Message:    strings.TrimSpace(string(body)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return documentsResponse{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload documentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return documentsResponse{}, fmt.Errorf("docstore: decode page: %w", err)
	}
	return payload, nil
}

func (c *Client) buildRequest(ctx context.Context, collection string, filter feed.Filter, pageToken string) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/collections/%s/documents", c.baseURL, url.PathEscape(collection))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	q := req.URL.Query()
	q.Set("eventID", filter.EventID)
	q.Set("court", filter.CourtID)
	if filter.LiveOnly {
		q.Set("live", "true")
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	req.URL.RawQuery = q.Encode()

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}
