// Package ghost is a minimal Ghost Admin API client.
package ghost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/ratelimit"
)

const (
	apiPath        = "/ghost/api/admin"
	acceptVersion  = "v5.0"
	defaultTimeout = 60 * time.Second
)

// Client is a Ghost Admin API client
type Client struct {
	siteURL    string
	key        adminKey
	httpClient *http.Client
	limiter    ratelimit.Limiter
	now        func() time.Time
}

// NewClient creates a client for the site at siteURL. requestsPerSecond
// paces every call; zero disables pacing.
func NewClient(siteURL, adminAPIKey string, requestsPerSecond int, timeout time.Duration) (*Client, error) {
	key, err := parseAdminKey(adminAPIKey)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limiter := ratelimit.NewUnlimited()
	if requestsPerSecond > 0 {
		limiter = ratelimit.New(requestsPerSecond)
	}
	return &Client{
		siteURL:    strings.TrimRight(siteURL, "/"),
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		now:        time.Now,
	}, nil
}

// APIError is a non-2xx response from the Admin API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Context    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("ghost: status %d", e.StatusCode)
	if e.Type != "" {
		msg += " " + e.Type
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

// do performs an authenticated request and decodes a JSON response into result
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, result any) error {
	token, err := c.key.sign(c.now())
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.siteURL+apiPath+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Ghost "+token)
	req.Header.Set("Accept-Version", acceptVersion)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.limiter.Take()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if result == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	apiErr := &APIError{StatusCode: status}
	var envelope struct {
		Errors []struct {
			Message string `json:"message"`
			Context string `json:"context"`
			Type    string `json:"type"`
		} `json:"errors"`
	}
	if json.Unmarshal(data, &envelope) == nil && len(envelope.Errors) > 0 {
		apiErr.Message = envelope.Errors[0].Message
		apiErr.Context = envelope.Errors[0].Context
		apiErr.Type = envelope.Errors[0].Type
	}
	return apiErr
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, body, result)
}

// UploadImage stores a local image in the site's image store and returns its URL.
func (c *Client) UploadImage(ctx context.Context, path string) (string, error) {
	var out uploadEnvelope
	if err := c.upload(ctx, "/images/upload/", path, map[string]string{"purpose": "image"}, &out); err != nil {
		return "", fmt.Errorf("upload image %s: %w", filepath.Base(path), err)
	}
	if len(out.Images) == 0 || out.Images[0].URL == "" {
		return "", fmt.Errorf("upload image %s: empty response", filepath.Base(path))
	}
	return out.Images[0].URL, nil
}

// UploadMedia stores a local video or audio file and returns its URL.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	var out uploadEnvelope
	if err := c.upload(ctx, "/media/upload/", path, nil, &out); err != nil {
		return "", fmt.Errorf("upload media %s: %w", filepath.Base(path), err)
	}
	if len(out.Media) == 0 || out.Media[0].URL == "" {
		return "", fmt.Errorf("upload media %s: empty response", filepath.Base(path))
	}
	return out.Media[0].URL, nil
}

func (c *Client) upload(ctx context.Context, endpoint, path string, fields map[string]string, result any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := filepath.Base(path)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	header.Set("Content-Type", contentTypeFor(name))
	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := w.WriteField("ref", name); err != nil {
		return fmt.Errorf("write field ref: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	return c.do(ctx, http.MethodPost, endpoint, w.FormDataContentType(), &buf, result)
}

// CreatePost adds a post and returns the stored resource.
func (c *Client) CreatePost(ctx context.Context, post *Post) (*Post, error) {
	var out postsEnvelope
	payload := createEnvelope{Posts: []newPost{{Post: post, Title: post.Title}}}
	if err := c.doJSON(ctx, http.MethodPost, "/posts/", payload, &out); err != nil {
		return nil, fmt.Errorf("create post %q: %w", post.Title, err)
	}
	if len(out.Posts) == 0 || out.Posts[0].ID == "" {
		return nil, fmt.Errorf("create post %q: empty response", post.Title)
	}
	return out.Posts[0], nil
}

// BrowsePosts lists every post matching an NQL filter.
func (c *Client) BrowsePosts(ctx context.Context, filter string) ([]*Post, error) {
	q := url.Values{}
	q.Set("limit", "all")
	q.Set("include", "tags,authors")
	if filter != "" {
		q.Set("filter", filter)
	}
	var out postsEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/posts/?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("browse posts: %w", err)
	}
	return out.Posts, nil
}

// EditPost updates a post. Ghost requires the post's current updated_at.
func (c *Client) EditPost(ctx context.Context, id string, changes *Post) (*Post, error) {
	var out postsEnvelope
	path := "/posts/" + url.PathEscape(id) + "/"
	if err := c.doJSON(ctx, http.MethodPut, path, postsEnvelope{Posts: []*Post{changes}}, &out); err != nil {
		return nil, fmt.Errorf("edit post %s: %w", id, err)
	}
	if len(out.Posts) == 0 {
		return nil, fmt.Errorf("edit post %s: empty response", id)
	}
	return out.Posts[0], nil
}

// DeletePost removes a post.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id)+"/", "", nil, nil); err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	return nil
}

// mediaTypes covers the upload formats Ghost accepts that the system mime
// table may lack.
var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
