package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// CursorStart is the cursor value for the first page of a listing.
	CursorStart = "-1"
	// CursorEnd is the terminal cursor returned with the final page.
	CursorEnd = "0"
)

// Client talks to the remote platform's REST API. Listing calls authenticate
// with the tracked account's own token; bulk lookups use the shared app token.
type Client struct {
	host       string
	appToken   string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

// IsRateLimited reports whether err is the platform's rate-limit response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}

// IsNotFound reports whether err is the platform's "no records matched"
// response, which the bulk lookup returns when every requested id is gone.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func NewClient(httpClient *http.Client, host, appToken string) *Client {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	return &Client{
		host:       host,
		appToken:   appToken,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path, token string, query url.Values, form url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(payload)}
	}
	return payload, nil
}

// ListBlocks fetches one page of the account's block list. The identifiers are
// requested in stringified form; cursor "-1" starts a listing and the response
// cursor "0" marks its end.
func (c *Client) ListBlocks(ctx context.Context, accessToken, cursor string) (*BlocksPage, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	if cursor == "" {
		cursor = CursorStart
	}
	query := url.Values{}
	query.Set("cursor", cursor)
	query.Set("stringify_ids", "true")
	payload, err := c.doRequest(ctx, http.MethodGet, "/1.1/blocks/ids.json", accessToken, query, nil)
	if err != nil {
		return nil, err
	}
	return parseBlocksPage(payload)
}

// LookupUsers resolves up to 100 identifiers at once with the shared app
// token. Identifiers absent from the result no longer resolve; a 404 means
// none of them do.
func (c *Client) LookupUsers(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > LookupMaxIDs {
		return nil, fmt.Errorf("lookup limited to %d ids, got %d", LookupMaxIDs, len(ids))
	}
	form := url.Values{}
	form.Set("user_id", strings.Join(ids, ","))
	payload, err := c.doRequest(ctx, http.MethodPost, "/1.1/users/lookup.json", c.appToken, nil, form)
	if err != nil {
		return nil, err
	}
	return parseUsers(payload)
}
