package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/http/api"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

// StatusError is a response with an unexpected status.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// client calls the API as one person of one group.
type client struct {
	http    *http.Client
	baseURL string
	secret  string
	verbose bool
	log     logger.Logger
}

func newClient(cfg *Config, l logger.Logger) *client {
	return &client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		secret:  cfg.JWTSecret,
		verbose: cfg.Verbose,
		log:     l,
	}
}

type request struct {
	method         string
	path           string
	as             api.Identity
	body           any
	idempotencyKey string
}

// do sends req and decodes a 2xx body into out. It returns the status.
func (c *client) do(ctx context.Context, req request, out any) (int, error) {
	var body io.Reader = http.NoBody
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	r, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	r.Header.Set("Content-Type", "application/json")
	if req.idempotencyKey != "" {
		r.Header.Set(api.HeaderIdempotencyKey, req.idempotencyKey)
	}
	if err := c.authenticate(r, req.as); err != nil {
		return 0, err
	}

	start := time.Now()
	res, err := c.http.Do(r)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if c.verbose {
		c.log.Debug(ctx, "request",
			logger.String("method", req.method),
			logger.String("path", req.path),
			logger.Int("status", res.StatusCode),
			logger.Duration("took", time.Since(start)))
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return res.StatusCode, &StatusError{Method: req.method, Path: req.path, Status: res.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return res.StatusCode, fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
		}
	}
	return res.StatusCode, nil
}

func (c *client) authenticate(r *http.Request, id api.Identity) error {
	if id.PersonID == "" {
		return nil
	}
	if c.secret == "" {
		r.Header.Set("X-Person-Id", id.PersonID)
		r.Header.Set("X-Group-Id", id.GroupID)
		return nil
	}
	token, err := api.SignToken(c.secret, id)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func newKey() string { return uuid.NewString() }
