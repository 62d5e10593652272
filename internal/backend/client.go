// Package backend is the client of the remote avatar store.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/models"
)

const (
	defaultTimeout = 15 * time.Second
	// maxErrorBody bounds how much of a failed response is read for its message.
	maxErrorBody = 64 << 10
)

// Client talks to the avatar REST API. Every call is scoped to the user it authenticates as.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for baseURL. A nil httpClient gets a default one with a timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger.With("source", "BackendClient"),
	}
}

type listResponse struct {
	Items []Record `json:"items"`
}

// List returns the avatars of user.
func (c *Client) List(ctx context.Context, user models.User) ([]Record, error) {
	var (
		err  error
		body []byte
	)
	if body, err = c.do(ctx, user, http.MethodGet, "", nil); err != nil {
		return nil, errors.Wrap(err, "list avatars")
	}
	// Older deployments return a bare array.
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		var records []Record
		if err = json.Unmarshal(trimmed, &records); err != nil {
			return nil, errors.Wrap(err, "unmarshal avatar list")
		}
		c.logWarnings(ctx, records...)
		return records, nil
	}
	var resp listResponse
	if err = json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "unmarshal avatar list")
	}
	c.logWarnings(ctx, resp.Items...)
	return resp.Items, nil
}

// Get fetches one avatar.
func (c *Client) Get(ctx context.Context, user models.User, avatarID string) (Record, error) {
	var (
		err    error
		body   []byte
		record Record
	)
	if body, err = c.do(ctx, user, http.MethodGet, avatarID, nil); err != nil {
		return Record{}, errors.Wrap(err, "get avatar", slog.String("avatarID", avatarID))
	}
	if err = json.Unmarshal(body, &record); err != nil {
		return Record{}, errors.Wrap(err, "unmarshal avatar", slog.String("avatarID", avatarID))
	}
	c.logWarnings(ctx, record)
	return record, nil
}

// Create stores a new avatar. The returned record is nil when the backend acknowledged without echoing it.
func (c *Client) Create(ctx context.Context, user models.User, payload Payload) (*Record, error) {
	body, err := c.do(ctx, user, http.MethodPost, "", payload.Sanitized())
	if err != nil {
		return nil, errors.Wrap(err, "create avatar")
	}
	return c.decodeEcho(ctx, body)
}

// Update replaces an avatar. The returned record is nil when the backend acknowledged without echoing it.
func (c *Client) Update(ctx context.Context, user models.User, avatarID string, payload Payload) (*Record, error) {
	body, err := c.do(ctx, user, http.MethodPut, avatarID, payload.Sanitized())
	if err != nil {
		return nil, errors.Wrap(err, "update avatar", slog.String("avatarID", avatarID))
	}
	return c.decodeEcho(ctx, body)
}

// Delete removes an avatar.
func (c *Client) Delete(ctx context.Context, user models.User, avatarID string) error {
	if _, err := c.do(ctx, user, http.MethodDelete, avatarID, nil); err != nil {
		return errors.Wrap(err, "delete avatar", slog.String("avatarID", avatarID))
	}
	return nil
}

func (c *Client) decodeEcho(ctx context.Context, body []byte) (*Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil //nolint:nilnil // an empty acknowledgement is not an error
	}
	var record Record
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return nil, errors.Wrap(err, "unmarshal avatar")
	}
	if record.ID == "" {
		return nil, nil //nolint:nilnil // not a record, the caller re-fetches
	}
	c.logWarnings(ctx, record)
	return &record, nil
}

func (c *Client) logWarnings(ctx context.Context, records ...Record) {
	for _, r := range records {
		for _, w := range r.Warnings {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "dropped invalid avatar field",
				slog.String("avatarID", r.ID), slog.String("field", w))
		}
	}
}

func (c *Client) avatarsURL(user models.User, avatarID string) string {
	u := c.baseURL + "/api/users/" + url.PathEscape(user.ID) + "/avatars"
	if avatarID != "" {
		u += "/" + url.PathEscape(avatarID)
	}
	return u
}

// do sends one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, user models.User, method, avatarID string, payload any) ([]byte, error) {
	if !user.Complete() {
		return nil, errors.Wrap(ErrSessionIncomplete, "check identity")
	}
	var (
		err     error
		reqBody io.Reader
		req     *http.Request
		resp    *http.Response
		body    []byte
		start   = time.Now()
	)
	if payload != nil {
		var encoded []byte
		if encoded, err = json.Marshal(payload); err != nil {
			return nil, errors.Wrap(err, "marshal payload")
		}
		reqBody = bytes.NewReader(encoded)
	}
	if req, err = http.NewRequestWithContext(ctx, method, c.avatarsURL(user, avatarID), reqBody); err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+user.Token)
	req.Header.Set("X-User-Email", user.Email)
	req.Header.Set("X-Session-Id", user.SessionID)
	if user.RefreshToken != "" {
		req.Header.Set("X-Refresh-Token", user.RefreshToken)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	if resp, err = c.httpClient.Do(req); err != nil {
		return nil, errors.Wrap(&transportError{cause: err}, "send request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger.LogAttrs(ctx, slog.LevelDebug, "avatar backend call",
		slog.String("method", method),
		slog.String("avatarID", avatarID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrap(statusError(resp), "unexpected status", slog.Int("status", resp.StatusCode))
	}
	if body, err = io.ReadAll(resp.Body); err != nil {
		return nil, errors.Wrap(&transportError{cause: err}, "read response body")
	}
	return body, nil
}

type errorBody struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

// statusError prefers the server's own explanation over the bare status line.
func statusError(resp *http.Response) *StatusError {
	statusErr := &StatusError{StatusCode: resp.StatusCode, Message: resp.Status}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return statusErr
	}
	var body errorBody
	if err = json.Unmarshal(data, &body); err != nil {
		return statusErr
	}
	for _, msg := range []string{body.Message, body.Error, body.Description} {
		if msg = strings.TrimSpace(msg); msg != "" {
			statusErr.Message = msg
			break
		}
	}
	return statusErr
}
