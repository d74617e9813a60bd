package playerok

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/velden/playerok-bridge/internal/logger"
)

// Operation describes one GraphQL request. Query documents are opaque to the
// transport. A non-empty PersistedHash selects the GET persisted-query form
// instead of a plain POST.
type Operation struct {
	Name          string
	Query         string
	Variables     map[string]any
	PersistedHash string
}

// TransportConfig configures a Transport.
type TransportConfig struct {
	Endpoint       string
	Token          string
	MaxRetries     int
	RetryDelay     time.Duration
	RequestsPerSec float64
	HTTPClient     *http.Client
	Logger         *logger.Logger
}

// Transport issues authenticated calls against the single GraphQL endpoint.
// It retries transient failures, classifies the rest, and rotates its
// identity when the API blocks the current one. The identity is shared
// mutable state: a rotation triggered by one call changes the headers of
// every subsequent call.
type Transport struct {
	endpoint   string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	log        *logger.Logger

	mu       sync.Mutex
	token    string
	identity Identity
}

// NewTransport creates a transport with a fresh identity.
func NewTransport(cfg TransportConfig) *Transport {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2500 * time.Millisecond
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 2.0
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get()
	}
	return &Transport{
		endpoint:   cfg.Endpoint,
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		log:        cfg.Logger,
		token:      cfg.Token,
		identity:   NewIdentity(),
	}
}

// RotateIdentity regenerates the fingerprint used by all subsequent calls.
func (t *Transport) RotateIdentity() {
	t.mu.Lock()
	t.identity = NewIdentity()
	profile := t.identity.Impersonate
	t.mu.Unlock()

	t.log.Warn().Str("profile", profile).Msg("rotated request identity")
}

// Identity returns a snapshot of the current fingerprint.
func (t *Transport) Identity() Identity {
	t.mu.Lock()
	defer t.mu.Unlock()

	headers := make(map[string]string, len(t.identity.Headers))
	for k, v := range t.identity.Headers {
		headers[k] = v
	}
	return Identity{Headers: headers, Impersonate: t.identity.Impersonate}
}

// Call executes an operation, retrying transient failures up to the attempt
// bound with a fixed delay. A block detection rotates the identity and fails
// fast with ErrBlocked; GraphQL-level errors surface as *APIError without
// retry; exhausted attempts surface as *MaxRetriesError.
func (t *Transport) Call(ctx context.Context, op Operation) (map[string]any, error) {
	return t.callWith(ctx, op, func(c context.Context) (*http.Request, error) {
		return t.buildRequest(c, op)
	})
}

// Upload executes a mutation as a multipart POST attaching the file at path
// as the operation's single Upload variable. Retry semantics match Call.
func (t *Transport) Upload(ctx context.Context, op Operation, path string) (map[string]any, error) {
	return t.callWith(ctx, op, func(c context.Context) (*http.Request, error) {
		return t.buildMultipartRequest(c, op, path)
	})
}

func (t *Transport) callWith(ctx context.Context, op Operation, build func(context.Context) (*http.Request, error)) (map[string]any, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(t.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, err
		}

		data, err := t.doOnce(req, op)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrBlocked) {
			return nil, err
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		t.log.Debug().
			Err(err).
			Str("operation", op.Name).
			Int("attempt", attempt).
			Msg("request failed")
	}

	return nil, &MaxRetriesError{Attempts: t.maxRetries, Last: lastErr}
}

func (t *Transport) doOnce(req *http.Request, op Operation) (map[string]any, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	// a 403 means the current identity is burned: rotate and fail fast,
	// retrying under the same fingerprint cannot succeed
	if resp.StatusCode == http.StatusForbidden {
		t.RotateIdentity()
		return nil, fmt.Errorf("%w (status %d)", ErrBlocked, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var envelope struct {
		Data   map[string]any `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		if isBlockPage(body) {
			t.RotateIdentity()
			return nil, fmt.Errorf("%w (denial page)", ErrBlocked)
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(envelope.Errors) > 0 {
		return nil, &APIError{Operation: op.Name, Message: envelope.Errors[0].Message}
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("response has no data envelope")
	}
	return envelope.Data, nil
}

func (t *Transport) buildRequest(ctx context.Context, op Operation) (*http.Request, error) {
	if op.PersistedHash != "" {
		return t.buildPersistedRequest(ctx, op)
	}

	payload, err := json.Marshal(map[string]any{
		"operationName": op.Name,
		"variables":     op.Variables,
		"query":         op.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	t.setHeaders(req, "")
	return req, nil
}

// buildPersistedRequest builds the GET persisted-query form: the query text
// is replaced by its precomputed hash, variables travel URL-encoded.
func (t *Transport) buildPersistedRequest(ctx context.Context, op Operation) (*http.Request, error) {
	variables, err := json.Marshal(op.Variables)
	if err != nil {
		return nil, fmt.Errorf("marshal variables: %w", err)
	}
	extensions, err := json.Marshal(map[string]any{
		"persistedQuery": map[string]any{
			"version":    1,
			"sha256Hash": op.PersistedHash,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal extensions: %w", err)
	}

	q := url.Values{}
	q.Set("operationName", op.Name)
	q.Set("variables", string(variables))
	q.Set("extensions", string(extensions))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	t.setHeaders(req, "")
	req.Header.Del("Content-Type")
	return req, nil
}

func (t *Transport) buildMultipartRequest(ctx context.Context, op Operation, path string) (*http.Request, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	operations, err := json.Marshal(map[string]any{
		"operationName": op.Name,
		"variables":     op.Variables,
		"query":         op.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal operations: %w", err)
	}
	if err := w.WriteField("operations", string(operations)); err != nil {
		return nil, err
	}
	if err := w.WriteField("map", `{"1":["variables.file"]}`); err != nil {
		return nil, err
	}

	part, err := w.CreateFormFile("1", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy upload file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &buf)
	if err != nil {
		return nil, err
	}
	t.setHeaders(req, w.FormDataContentType())
	return req, nil
}

// setHeaders applies the current identity snapshot and auth cookie.
// contentType, when non-empty, overrides the identity's Content-Type.
func (t *Transport) setHeaders(req *http.Request, contentType string) {
	t.mu.Lock()
	for k, v := range t.identity.Headers {
		req.Header.Set(k, v)
	}
	token := t.token
	t.mu.Unlock()

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
}

var blockMarkers = []string{
	"Just a moment",
	"Attention Required",
	"Access denied",
	"cf-chl",
}

func isBlockPage(body []byte) bool {
	s := string(body)
	for _, marker := range blockMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
