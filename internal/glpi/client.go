package glpi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPDoer abstracts the HTTP client for testing
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config represents the GLPI connection settings
type Config struct {
	BaseURL   string
	AppToken  string
	UserToken string
	Timeout   time.Duration
}

// Client is the GLPI REST adapter. It owns the session handle and the
// discovered field map; every external call in the system goes through
// it. Safe for concurrent use: count queries share the session
// read-mostly, renewal happens under the mutex.
type Client struct {
	baseURL   string
	appToken  string
	userToken string
	http      HTTPDoer
	log       *logrus.Entry
	retry     retryPolicy

	mu           sync.Mutex
	sessionToken string

	schemaMu sync.Mutex
	fields   FieldMap
}

// NewClient creates a new GLPI client
func NewClient(cfg Config, log *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		appToken:  cfg.AppToken,
		userToken: cfg.UserToken,
		http:      &http.Client{Timeout: timeout},
		log:       log.WithField("component", "glpi"),
		retry:     defaultRetryPolicy(),
	}
}

// SetHTTPDoer replaces the underlying HTTP client (tests)
func (c *Client) SetHTTPDoer(d HTTPDoer) { c.http = d }

// getJSON performs an authenticated GET and decodes the 2xx body into out.
// A 401 triggers exactly one re-authentication and one replay; a second
// 401 is a fatal AuthError. Transient 5xx and network failures follow the
// retry policy. The response header set is returned for callers that need
// Content-Range.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) (http.Header, error) {
	var header http.Header

	for authAttempt := 0; authAttempt < 2; authAttempt++ {
		token, err := c.Acquire(ctx)
		if err != nil {
			return nil, err
		}

		var body []byte
		err = c.retry.Do(ctx, func() (bool, error) {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(path, query), nil)
			if reqErr != nil {
				return false, &TransportError{Op: path, Err: reqErr}
			}
			req.Header.Set("App-Token", c.appToken)
			req.Header.Set("Session-Token", token)
			req.Header.Set("Content-Type", "application/json")

			resp, doErr := c.http.Do(req)
			if doErr != nil {
				return true, &TransportError{Op: path, Err: doErr}
			}
			defer resp.Body.Close()

			body, reqErr = io.ReadAll(resp.Body)
			if reqErr != nil {
				return true, &TransportError{Op: path, Err: reqErr}
			}
			header = resp.Header

			switch {
			case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
				return false, nil
			case resp.StatusCode == http.StatusUnauthorized:
				return false, errSessionExpired
			case resp.StatusCode == http.StatusTooManyRequests:
				return false, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header)}
			case resp.StatusCode >= 500:
				return true, &TransportError{Op: path, Status: resp.StatusCode}
			default:
				return false, &TransportError{Op: path, Status: resp.StatusCode}
			}
		})

		if err == errSessionExpired {
			c.log.WithField("path", path).Warn("Session expired, re-authenticating")
			c.expireSession()
			continue
		}
		if err != nil {
			return header, err
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return header, &TransportError{Op: path, Err: fmt.Errorf("decode response: %w", err)}
			}
		}
		return header, nil
	}

	return header, &AuthError{Reason: "session rejected twice"}
}

// errSessionExpired is an internal marker for the single 401 replay
var errSessionExpired = fmt.Errorf("glpi session expired")

func (c *Client) buildURL(path string, query url.Values) string {
	u := c.baseURL + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func parseRetryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}
