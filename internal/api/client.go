// Package api is the HTTP client for the bookstore REST API.
//
// Every call takes the caller's context and, where the endpoint requires it, the bearer
// token. The client never retries: a failed call is reported once and the caller decides
// what to do with its local state.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-ID"

// ErrUnexpectedResponse is returned when a 2xx body does not have the expected shape.
var ErrUnexpectedResponse = errors.New("unexpected response from bookstore api")

// HTTPError is a non-2xx answer from the API.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// IsStatus reports whether err is an HTTPError with the given status code.
func IsStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == status
}

type errorBody struct {
	Message string `json:"message"`
	Err     string `json:"error"`
}

type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

func New(baseURL string, timeout time.Duration) *Client {
	logger := log.With().Str("component", "api").Str("base_url", baseURL).Logger()
	hc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	hc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if r.Header.Get(requestIDHeader) == "" {
			r.SetHeader(requestIDHeader, uuid.NewString())
		}
		return nil
	})
	hc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Str("request_id", resp.Request.Header.Get(requestIDHeader)).
			Int("status", resp.StatusCode()).
			Dur("took", resp.Time()).
			Msg("api call")
		return nil
	})

	return &Client{http: hc, log: logger}
}

// request builds a request bound to ctx. An empty token sends no Authorization header.
func (c *Client) request(ctx context.Context, token string) *resty.Request {
	r := c.http.R().SetContext(ctx).SetError(&errorBody{})
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

// check folds a transport error or a non-2xx status into a single error.
func check(resp *resty.Response, err error, method, path string) error {
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.IsError() {
		return nil
	}
	he := &HTTPError{Method: method, Path: path, Status: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		he.Message = body.Message
		if he.Message == "" {
			he.Message = body.Err
		}
	}
	if he.Message == "" {
		he.Message = truncate(strings.TrimSpace(resp.String()), 200)
	}
	return he
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
