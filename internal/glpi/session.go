package glpi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type initSessionResponse struct {
	SessionToken string `json:"session_token"`
}

// Acquire returns the active session token, authenticating lazily on
// first use. The token lives in memory only.
func (c *Client) Acquire(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionToken != "" {
		return c.sessionToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("initSession", nil), nil)
	if err != nil {
		return "", &AuthError{Reason: "build init request", Err: err}
	}
	req.Header.Set("App-Token", c.appToken)
	req.Header.Set("Authorization", "user_token "+c.userToken)
	req.Header.Set("Content-Type", "application/json")

	var session initSessionResponse
	err = c.retry.Do(ctx, func() (bool, error) {
		resp, doErr := c.http.Do(req.Clone(ctx))
		if doErr != nil {
			return true, &AuthError{Reason: "init session", Err: doErr}
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return true, &AuthError{Reason: "read init response", Err: readErr}
		}
		if resp.StatusCode >= 500 {
			return true, &AuthError{Reason: fmt.Sprintf("init session status %d", resp.StatusCode)}
		}
		if resp.StatusCode != http.StatusOK {
			return false, &AuthError{Reason: fmt.Sprintf("init session status %d", resp.StatusCode)}
		}
		if decErr := json.Unmarshal(body, &session); decErr != nil {
			return false, &AuthError{Reason: "decode init response", Err: decErr}
		}
		return false, nil
	})
	if err != nil {
		return "", err
	}
	if session.SessionToken == "" {
		return "", &AuthError{Reason: "empty session token"}
	}

	c.sessionToken = session.SessionToken
	c.log.Info("GLPI session established")
	return c.sessionToken, nil
}

// expireSession drops the local session state after the server rejected
// the token. No killSession round trip: the session is already dead
// server-side. Takes schemaMu, so callers must not hold it; Discover
// releases the lock before issuing its request.
func (c *Client) expireSession() {
	c.mu.Lock()
	c.sessionToken = ""
	c.mu.Unlock()
	c.dropSchema()
}

// dropSchema clears the cached field map so the next call re-discovers
// the schema under the new session
func (c *Client) dropSchema() {
	c.schemaMu.Lock()
	c.fields = nil
	c.schemaMu.Unlock()
}

// Invalidate drops the current session, closing it server-side on a
// best-effort basis. Safe to call when no session exists, and safe to
// call repeatedly. The cached field map is dropped with the session so
// the next call re-discovers the schema.
func (c *Client) Invalidate(ctx context.Context) {
	c.mu.Lock()
	token := c.sessionToken
	c.sessionToken = ""
	c.mu.Unlock()

	c.dropSchema()

	if token == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("killSession", nil), nil)
	if err != nil {
		return
	}
	req.Header.Set("App-Token", c.appToken)
	req.Header.Set("Session-Token", token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).Debug("killSession failed, token dropped locally")
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	c.log.Info("GLPI session closed")
}
