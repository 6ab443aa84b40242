// Package source talks to the REST collaborator that owns the records shown
// on each screen.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/view"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/rpggio/deskview/internal/source"

	maxBodyBytes  = 32 << 20
	maxErrorBytes = 64 << 10
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Client performs tenant-scoped requests against the backend.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	tracer trace.Tracer
	logger *slog.Logger
}

// NewClient validates opts and returns a Client.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Client{
		base:   base,
		token:  opts.Token,
		http:   hc,
		tracer: tp.Tracer(tracerName),
		logger: logger,
	}, nil
}

// List fetches a collection. The payload may be a bare array or an object
// holding the array under envelope ("items" or "data" when empty).
func (c *Client) List(ctx context.Context, sess identity.Session, path, envelope string) ([]view.Record, error) {
	ctx, span := c.start(ctx, "source.List", http.MethodGet, path, sess)
	defer span.End()

	body, err := c.get(ctx, sess, path)
	if err != nil {
		return nil, fail(span, err)
	}
	records, err := decodeList(body, envelope)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("deskview.records", len(records)))
	return records, nil
}

// Get fetches a single record. A 404 matches ErrNotFound.
func (c *Client) Get(ctx context.Context, sess identity.Session, path string) (view.Record, error) {
	ctx, span := c.start(ctx, "source.Get", http.MethodGet, path, sess)
	defer span.End()

	body, err := c.get(ctx, sess, path)
	if err != nil {
		return nil, fail(span, err)
	}
	var rec view.Record
	if err := decodeJSON(body, &rec); err != nil {
		return nil, fail(span, &FetchError{Status: http.StatusOK, Message: "invalid record payload"})
	}
	return rec, nil
}

// Upload posts content as the multipart field "file".
func (c *Client) Upload(ctx context.Context, sess identity.Session, path, filename string, content io.Reader) error {
	ctx, span := c.start(ctx, "source.Upload", http.MethodPost, path, sess)
	defer span.End()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fail(span, fmt.Errorf("create form file: %w", err))
	}
	if _, err := io.Copy(part, content); err != nil {
		return fail(span, fmt.Errorf("read upload: %w", err))
	}
	if err := mw.Close(); err != nil {
		return fail(span, fmt.Errorf("close multipart: %w", err))
	}

	req, err := c.newRequest(ctx, sess, http.MethodPost, path, &buf)
	if err != nil {
		return fail(span, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if _, err := c.do(req); err != nil {
		return fail(span, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, sess identity.Session, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, sess, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) newRequest(ctx context.Context, sess identity.Session, method, path string, body io.Reader) (*http.Request, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Tenant-ID", sess.TenantID)
	if sess.UserID != "" {
		req.Header.Set("X-User-ID", sess.UserID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawPath = strings.TrimRight(c.base.EscapedPath(), "/") + "/" + strings.TrimLeft(ref.EscapedPath(), "/")
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, &FetchError{Message: networkMessage(err)}
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, &FetchError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, raw)}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Message: networkMessage(err)}
	}
	return raw, nil
}

func (c *Client) start(ctx context.Context, name, method, path string, sess identity.Session) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("deskview.tenant_id", sess.TenantID),
		),
	)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var fe *FetchError
	if errors.As(err, &fe) && fe.Status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", fe.Status))
	}
	return err
}

// errorMessage picks the body's "message", then "error", then the status
// text.
func errorMessage(status int, raw []byte) string {
	var body struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if msg := strings.TrimSpace(body.Message); msg != "" {
			return msg
		}
		if msg := rawErrorText(body.Error); msg != "" {
			return msg
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}

// rawErrorText accepts "error" as a string or as {"message": ...}.
func rawErrorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Message)
	}
	return ""
}

func networkMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return err.Error()
}

func decodeList(raw []byte, envelope string) ([]view.Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &FetchError{Status: http.StatusOK, Message: "empty response"}
	}
	if trimmed[0] == '[' {
		var records []view.Record
		if err := decodeJSON(trimmed, &records); err != nil {
			return nil, &FetchError{Status: http.StatusOK, Message: "invalid list payload"}
		}
		return records, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, &FetchError{Status: http.StatusOK, Message: "invalid list payload"}
	}
	keys := []string{"items", "data"}
	if envelope != "" {
		keys = []string{envelope}
	}
	for _, key := range keys {
		inner, ok := obj[key]
		if !ok {
			continue
		}
		var records []view.Record
		if err := decodeJSON(inner, &records); err != nil {
			return nil, &FetchError{Status: http.StatusOK, Message: fmt.Sprintf("invalid %q list payload", key)}
		}
		return records, nil
	}
	return nil, &FetchError{Status: http.StatusOK, Message: fmt.Sprintf("response has no %q list", keys[0])}
}

func decodeJSON(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}

// Lister lists a backend collection. *Client implements it.
type Lister interface {
	List(ctx context.Context, sess identity.Session, path, envelope string) ([]view.Record, error)
}

// Endpoint binds a collection path to one session. It implements
// view.Source.
type Endpoint struct {
	Client   Lister
	Session  identity.Session
	Path     string
	Envelope string
}

// Fetch lists the endpoint's collection.
func (e Endpoint) Fetch(ctx context.Context) ([]view.Record, error) {
	return e.Client.List(ctx, e.Session, e.Path, e.Envelope)
}
