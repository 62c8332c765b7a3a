// Package remote is a one-shot adapter over the contacts REST API. Every call
// either returns the unwrapped data of a successful envelope or an
// *OperationError; nothing is retried here.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds every call, including reading the response body.
	DefaultTimeout = 30 * time.Second

	// ImageField is the multipart field name of an uploaded image.
	ImageField = "image"
	// ImageContentType is the part content type of an uploaded image.
	ImageContentType = "image/*"

	maxResponseBytes = 8 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL    string // e.g. http://localhost:8080/api
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the contacts API.
type Client struct {
	baseURL *url.URL
	apiKey  string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger
}

// New creates a Client for the API rooted at opts.BaseURL.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", opts.BaseURL)
	}

	c := &Client{
		baseURL: u,
		apiKey:  opts.APIKey,
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		logger:  opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// CreateContact posts a new contact and returns the server's record.
func (c *Client) CreateContact(ctx context.Context, dto ContactDTO) (ContactDTO, error) {
	var out ContactDTO
	err := c.doJSON(ctx, OpCreate, http.MethodPost, "User", dto, &out)
	return out, err
}

// GetContact fetches one contact by id.
func (c *Client) GetContact(ctx context.Context, id string) (ContactDTO, error) {
	var out ContactDTO
	err := c.doJSON(ctx, OpGet, http.MethodGet, "User/"+url.PathEscape(id), nil, &out)
	return out, err
}

// UpdateContact replaces the contact with the given id and returns the
// server's record.
func (c *Client) UpdateContact(ctx context.Context, id string, dto ContactDTO) (ContactDTO, error) {
	var out ContactDTO
	err := c.doJSON(ctx, OpUpdate, http.MethodPut, "User/"+url.PathEscape(id), dto, &out)
	return out, err
}

// DeleteContact deletes the contact with the given id. The response carries
// no data.
func (c *Client) DeleteContact(ctx context.Context, id string) error {
	return c.doJSON(ctx, OpDelete, http.MethodDelete, "User/"+url.PathEscape(id), nil, nil)
}

// ListContacts fetches every contact known to the server.
func (c *Client) ListContacts(ctx context.Context) ([]ContactDTO, error) {
	var out []ContactDTO
	err := c.doJSON(ctx, OpList, http.MethodGet, "User/GetAll", nil, &out)
	return out, err
}

// UploadImage uploads raw image bytes as a multipart form and returns the
// hosted URL.
func (c *Client) UploadImage(ctx context.Context, data []byte, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, ImageField, filename))
	h.Set("Content-Type", ImageContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", newOperationError(OpUpload, 0, nil, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", newOperationError(OpUpload, 0, nil, err)
	}
	if err := mw.Close(); err != nil {
		return "", newOperationError(OpUpload, 0, nil, err)
	}

	env, status, err := c.do(ctx, OpUpload, http.MethodPost, "User/UploadImage", &body, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	if !env.HasData() {
		return "", newOperationError(OpUpload, status, env.Message, nil)
	}

	var upload ImageUpload
	if err := json.Unmarshal(env.Data, &upload); err == nil && upload.ImageURL != "" {
		return upload.ImageURL, nil
	}
	var bare string
	if err := json.Unmarshal(env.Data, &bare); err == nil && bare != "" {
		return bare, nil
	}
	return "", newOperationError(OpUpload, status, env.Message, errors.New("no image url in response"))
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return newOperationError(op, 0, nil, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	env, status, err := c.do(ctx, op, method, path, body, "application/json")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if !env.HasData() {
		return newOperationError(op, status, env.Message, nil)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return newOperationError(op, status, nil, fmt.Errorf("decode data: %w", err))
	}
	return nil
}

// do sends one request and decodes the envelope. A nil error means the
// envelope reported success.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*Envelope, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return nil, 0, newOperationError(op, 0, nil, err)
	}
	req.Header.Set("ApiKey", c.apiKey)
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("remote request failed",
			zap.String("op", op),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, 0, newOperationError(op, 0, nil, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, newOperationError(op, resp.StatusCode, nil, fmt.Errorf("read body: %w", err))
	}

	c.logger.Debug("remote request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg *string
		if decodeErr == nil {
			msg = env.Message
		}
		return nil, resp.StatusCode, newOperationError(op, resp.StatusCode, msg, nil)
	}
	if decodeErr != nil {
		return nil, resp.StatusCode, newOperationError(op, resp.StatusCode, nil, fmt.Errorf("decode envelope: %w", decodeErr))
	}
	if !env.Success {
		return nil, resp.StatusCode, newOperationError(op, resp.StatusCode, env.Message, nil)
	}
	return &env, resp.StatusCode, nil
}
