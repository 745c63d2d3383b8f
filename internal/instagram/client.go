package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"time"
)

// MediaFields is the field selection requested from the media edge.
const MediaFields = "id,caption,media_type,media_url,permalink,thumbnail_url,timestamp," +
	"children{id,media_type,media_url,permalink,thumbnail_url,timestamp}"

// TimestampLayout is the Graph API timestamp format, e.g. 2021-05-01T10:00:00+0000.
const TimestampLayout = "2006-01-02T15:04:05-0700"

// Client is an Instagram Graph API client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new Graph API client
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://graph.instagram.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx response from the Graph API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("instagram: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("instagram: %s (status %d, %s)", e.Message, e.StatusCode, e.Type)
}

// firstPageURL builds the /me/media request for the first page
func (c *Client) firstPageURL() string {
	q := url.Values{}
	q.Set("fields", MediaFields)
	q.Set("access_token", c.token)
	return c.baseURL + "/me/media?" + q.Encode()
}

// Pages yields media pages lazily. The next-page cursor is followed only
// when paginate is set; the sequence ends when no cursor is present. A
// request failure is yielded once and ends the sequence.
func (c *Client) Pages(ctx context.Context, paginate bool) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		next := c.firstPageURL()
		for next != "" {
			page, err := c.getPage(ctx, next)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}
			if !paginate {
				return
			}
			next = page.Paging.Next
		}
	}
}

// getPage fetches one page
func (c *Client) getPage(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil {
			apiErr.Message = envelope.Error.Message
			apiErr.Type = envelope.Error.Type
		}
		return nil, apiErr
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("unmarshal page: %w", err)
	}
	return &page, nil
}

// ParseTimestamp converts a Graph API timestamp to UTC, dropping the offset.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
