package apiclient

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

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const defaultTimeout = 30 * time.Second

var errNoBaseURL = errors.New("api base URL is required")

type ctxKey int

const tokenKey ctxKey = iota

// WithToken returns a copy of ctx carrying the backend bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFrom returns the bearer token stored by WithToken, if any.
func TokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey).(string)
	return tok
}

type (
	Option func(*Client)

	// Client sends JSON requests to the REST backend.
	// Every repository goes through it; nothing else talks HTTP to the backend.
	Client struct {
		base   *url.URL
		http   *http.Client
		logger core.Logger
		token  string
	}
)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying *http.Client (tests use httptest's).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithStaticToken sets a token used when the context carries none (CLI sessions).
func WithStaticToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(core.CleanString(baseURL), "/")
	if baseURL == "" {
		return nil, errNoBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing api base URL")
	}
	if !base.IsAbs() {
		return nil, errors.Errorf("api base URL must be absolute, got %q", baseURL)
	}

	c := &Client{
		base: base,
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken changes the fallback token.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) BaseURL() string { return c.base.String() }

// Do sends body (JSON encoded, if not nil) and decodes the JSON answer into out (if not nil).
// A 2xx answer with an empty body leaves out untouched; callers detect that to refetch.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	data, _, err := c.send(ctx, method, path, query, body, "application/json")
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decoding %s %s response", method, path)
	}
	return nil
}

// Raw sends body and returns the answer as is, with its content type (file exports).
func (c *Client) Raw(ctx context.Context, method, path string, body interface{}) ([]byte, string, error) {
	return c.send(ctx, method, path, nil, body, "*/*")
}

// Upload posts a multipart form holding one file field.
func (c *Client) Upload(ctx context.Context, path, field, filename string, content io.Reader, fields map[string]string, out interface{}) error {
	buf, contentType, err := multipartBody(field, filename, content, fields)
	if err != nil {
		return errors.Wrap(err, "building multipart body")
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	data, _, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(data, out), "decoding POST %s response", path)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body interface{}, accept string) ([]byte, string, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", errors.Wrapf(err, "encoding %s %s body", method, path)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, query, rdr)
	if err != nil {
		return nil, "", err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)
	return c.roundTrip(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s %s request", method, path)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	token := TokenFrom(ctx)
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) roundTrip(req *http.Request) ([]byte, string, error) {
	path := strings.TrimPrefix(req.URL.Path, strings.TrimRight(c.base.Path, "/"))
	start := time.Now()

	res, err := c.http.Do(req)
	if err != nil {
		return nil, "", errors.Wrapf(err, "%s %s", req.Method, path)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", errors.Wrapf(err, "reading %s %s response", req.Method, path)
	}
	if c.logger != nil {
		c.logger.Debug(fmt.Sprintf("%s %s -> %d (%s)", req.Method, path, res.StatusCode, time.Since(start)),
			map[string]interface{}{"requestId": req.Header.Get("X-Request-ID")})
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, "", &core.APIError{
			Method:     req.Method,
			Path:       path,
			StatusCode: res.StatusCode,
			Message:    errorMessage(data),
		}
	}
	return data, res.Header.Get("Content-Type"), nil
}

// errorMessage digs a message out of the usual error payloads ({"message"}, {"error"}, ASP.NET problem details).
func errorMessage(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		case payload.Title != "":
			return payload.Title
		}
		return ""
	}
	msg := string(data)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
