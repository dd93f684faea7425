package tools

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

	"stagebased/config"
	"stagebased/errors"

	"golang.org/x/time/rate"
)

// APIError is a non-2xx answer from a collaborator service.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status=%d body=%s", e.Service, e.StatusCode, e.Body)
}

// Client is a small JSON-over-HTTP client shared by the collaborator
// adapters. It authenticates with "Authorization: Token <token>" and waits
// on a token bucket before each request when a rate is configured.
type Client struct {
	service string
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(service string, conf config.ServiceConfig) *Client {
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		service: service,
		base:    strings.TrimRight(conf.URL, "/") + "/",
		token:   strings.TrimSpace(conf.Token),
		http:    &http.Client{Timeout: timeout},
	}
	if conf.RatePerSec > 0 {
		burst := int(conf.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(conf.RatePerSec), burst)
	}
	return c
}

func (c *Client) Service() string { return c.service }

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do sends body (JSON encoded when non-nil) and decodes the response into
// out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Mark(errors.Wrapf(err, "%s rate limit", c.service), errors.ErrCollaborator)
		}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encode %s request", c.service)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return errors.Wrapf(err, "build %s request", c.service)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "%s %s %s", c.service, method, path), errors.ErrCollaborator)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Service: c.service, StatusCode: resp.StatusCode, Body: string(raw)}
		return errors.Mark(errors.WithStack(apiErr), errors.ErrCollaborator)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Mark(errors.Wrapf(err, "decode %s response", c.service), errors.ErrCollaborator)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}
