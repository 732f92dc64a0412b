package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"rehla/internal/platform/metrics"
	"rehla/pkg/platform/sentinel"
)

const (
	tracerName       = "rehla/internal/cms"
	defaultTimeout   = 15 * time.Second
	maxErrorBodySize = 64 << 10
)

// Client talks to the Strapi REST API that stores tree records.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tracer     trace.Tracer
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, e.g. with an instrumented one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// NewClient builds a client for baseURL (scheme and host, no /api suffix).
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("cms: invalid base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MediaURL turns the relative upload path the CMS returns into an absolute URL.
func (c *Client) MediaURL(m Media) string {
	if strings.HasPrefix(m.URL, "http://") || strings.HasPrefix(m.URL, "https://") {
		return m.URL
	}
	return c.baseURL.JoinPath(m.URL).String()
}

// Login exchanges credentials for a JWT.
func (c *Client) Login(ctx context.Context, identifier, password string) (*AuthResponse, error) {
	body, err := json.Marshal(map[string]string{"identifier": identifier, "password": password})
	if err != nil {
		return nil, err
	}
	var out AuthResponse
	if err := c.do(ctx, "login", http.MethodPost, "/api/auth/local", nil, "", "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends files in one multipart request under the "files" field.
func (c *Client) Upload(ctx context.Context, token string, files []UploadFile) ([]Media, error) {
	if len(files) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", multipart.FileContentDisposition("files", f.Name))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("cms upload: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("cms upload %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("cms upload: %w", err)
	}

	var out []Media
	if err := c.do(ctx, "upload", http.MethodPost, "/api/upload", nil, token, mw.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTree stores a new tree record.
func (c *Client) CreateTree(ctx context.Context, token string, in TreeInput) (*Tree, error) {
	body, err := json.Marshal(dataRequest[TreeInput]{Data: in})
	if err != nil {
		return nil, err
	}
	var out dataRequest[treeEntry]
	if err := c.do(ctx, "create_tree", http.MethodPost, "/api/trees", nil, token, "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return out.Data.toTree(), nil
}

// FindTreeBySerial returns the tree tagged with serial, photos populated.
func (c *Client) FindTreeBySerial(ctx context.Context, serial string) (*Tree, error) {
	q := url.Values{}
	q.Set("filters[serial_number][$eq]", serial)
	q.Set("populate", "*")

	var out dataRequest[[]treeEntry]
	if err := c.do(ctx, "find_tree", http.MethodGet, "/api/trees", q, "", "", nil, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("tree %q: %w", serial, sentinel.ErrNotFound)
	}
	return out.Data[0].toTree(), nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, token, contentType string, body io.Reader, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "cms."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		c.metrics.ObserveCMSRequest(op, outcome, time.Since(start).Seconds())
		span.End()
	}()

	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("cms %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cms %s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cms %s: %w", op, decodeError(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cms %s: decode response: %w", op, err)
	}
	return nil
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		apiErr.Name = env.Error.Name
		apiErr.Message = env.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	return apiErr
}
