package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

// TVDB v4 client (token auth, series/episode/search endpoints we need)

const (
	// DefaultBaseURL is the TVDB v4 API root.
	DefaultBaseURL = "https://api4.thetvdb.com/v4"
	// DefaultPageSize is the provider's full-page episode count. A page
	// shorter than this is treated as the last page.
	DefaultPageSize = 50
)

// Client authenticates against the metadata provider and exposes typed
// fetch operations. The token lives in memory only; persistence and expiry
// are the caller's concern.
type Client struct {
	apiKey  string
	pin     string
	baseURL string
	httpc   *http.Client

	// PageSize is the assumed full-page size for the end-of-data
	// heuristic in FetchAllEpisodes.
	PageSize int

	mu    sync.Mutex
	token string
}

// NewClient creates a client for the given API key and subscriber PIN.
func NewClient(apiKey, pin string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		apiKey:   apiKey,
		pin:      pin,
		baseURL:  DefaultBaseURL,
		httpc:    httpc,
		PageSize: DefaultPageSize,
	}
}

// SetBaseURL overrides the API root. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// Token returns the cached bearer token, empty when not logged in.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetToken seeds the client with a previously issued token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Login exchanges the API key and PIN for a bearer token. It never retries:
// a rejected credential should surface immediately, not be hammered.
func (c *Client) Login(ctx context.Context) error {
	body, _ := json.Marshal(map[string]string{"apikey": c.apiKey, "pin": c.pin})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("tvdb login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &AuthError{Status: resp.StatusCode}
	}

	var data struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return &AuthError{Reason: "malformed login response"}
	}
	if data.Data.Token == "" {
		return &AuthError{Reason: "login response missing token"}
	}

	c.mu.Lock()
	c.token = data.Data.Token
	c.mu.Unlock()
	return nil
}

// EnsureToken returns the cached token, logging in first when there is
// none. No expiry check happens here; expiry is managed by the caller.
func (c *Client) EnsureToken(ctx context.Context) (string, error) {
	if token := c.Token(); token != "" {
		return token, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	return c.Token(), nil
}

// doGET performs an authenticated GET and decodes the JSON response into v.
// Transient upstream failures (429, 5xx) are retried with backoff.
func (c *Client) doGET(ctx context.Context, path string, q url.Values, v any) error {
	token, err := c.EnsureToken(ctx)
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("build request: %w", err))
			}
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := c.httpc.Do(req)
			if err != nil {
				return fmt.Errorf("tvdb get %s: %w", path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 300 {
				uerr := &UpstreamError{Status: resp.StatusCode, Path: path}
				if !uerr.retryable() {
					return retry.Unrecoverable(uerr)
				}
				return uerr
			}
			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode tvdb response for %s: %w", path, err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// FetchShow fetches the show summary record.
func (c *Client) FetchShow(ctx context.Context, id string) (Show, error) {
	var resp struct {
		Data wireShow `json:"data"`
	}
	if err := c.doGET(ctx, "/series/"+url.PathEscape(id), nil, &resp); err != nil {
		return Show{}, err
	}
	return resp.Data.normalize(), nil
}

// FetchShowExtended fetches the extended show record including seasons.
func (c *Client) FetchShowExtended(ctx context.Context, id string) (ShowExtended, error) {
	var resp struct {
		Data wireShowExtended `json:"data"`
	}
	if err := c.doGET(ctx, "/series/"+url.PathEscape(id)+"/extended", nil, &resp); err != nil {
		return ShowExtended{}, err
	}
	return resp.Data.normalize(), nil
}

// FetchEpisodes fetches one page of a show's episode list.
func (c *Client) FetchEpisodes(ctx context.Context, id string, page int) ([]Episode, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	var resp struct {
		Data struct {
			Episodes []wireEpisode `json:"episodes"`
		} `json:"data"`
	}
	if err := c.doGET(ctx, "/series/"+url.PathEscape(id)+"/episodes/default", params, &resp); err != nil {
		return nil, err
	}
	episodes := make([]Episode, 0, len(resp.Data.Episodes))
	for _, w := range resp.Data.Episodes {
		episodes = append(episodes, w.normalize())
	}
	return episodes, nil
}

// FetchAllEpisodes pages through the episode list, up to maxPages pages. A
// page shorter than PageSize signals end-of-data. This is a heuristic, not
// a guaranteed last-page marker: an upstream total that is an exact
// multiple of the page size costs one extra (empty) request.
func (c *Client) FetchAllEpisodes(ctx context.Context, id string, maxPages int) ([]Episode, error) {
	if maxPages <= 0 {
		maxPages = 1
	}
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	all := make([]Episode, 0, pageSize)
	for page := 0; page < maxPages; page++ {
		episodes, err := c.FetchEpisodes(ctx, id, page)
		if err != nil {
			return nil, err
		}
		all = append(all, episodes...)
		if len(episodes) < pageSize {
			break
		}
	}
	return all, nil
}

// SearchShows queries the provider's search endpoint, drops results with a
// missing id or name, and truncates to limit, preserving upstream order.
func (c *Client) SearchShows(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "series")
	var resp struct {
		Data []wireSearchResult `json:"data"`
	}
	if err := c.doGET(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Data))
	for _, w := range resp.Data {
		r, ok := w.normalize()
		if !ok {
			continue
		}
		results = append(results, r)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// IsAuthError reports whether err is a credential failure.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
