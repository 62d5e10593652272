package e2etest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/models"
	"github.com/justinas/nosurf"
)

const maxEventBytes = 1 << 20

// Client talks to the companion service like a browser would: it keeps the session cookie and sends the CSRF token
// with every mutating request.
type Client struct {
	client    *http.Client
	url       string
	csrfToken string
}

// Session mirrors the GET /api/session response.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId"`
	CSRFToken     string `json:"csrfToken"`
}

// Event is one Server Sent Event.
type Event struct {
	Name string
	Data json.RawMessage
}

// StatusError is returned by DoJSON when the server did not answer with a 2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + e.Body
}

// NewClient creates a cookie-aware JSON client for the server at url.
func NewClient(url string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, errors.Wrap(err, "create unsafe cookie jar")
	}
	return &Client{
		client: &http.Client{Jar: jar},
		url:    url,
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.url+urlPath,
			nil,
		); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = c.client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return errors.Wrap(err, "close response body")
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	if req, err = c.newRequestWithContext(ctx, http.MethodGet, urlPath, nil); err != nil {
		return nil, errors.Wrap(err, "create request with context")
	}
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return resp, nil
}

// Session fetches the session and remembers its CSRF token for later requests.
func (c *Client) Session(ctx context.Context) (Session, error) {
	var session Session
	if _, err := c.DoJSON(ctx, http.MethodGet, "/api/session", nil, &session); err != nil {
		return Session{}, errors.Wrap(err, "get session")
	}
	c.csrfToken = session.CSRFToken
	return session, nil
}

// SignIn hands the identity tokens to the server.
func (c *Client) SignIn(ctx context.Context, user models.User) (Session, error) {
	var (
		err     error
		session Session
	)
	if c.csrfToken == "" {
		if _, err = c.Session(ctx); err != nil {
			return Session{}, err
		}
	}
	if _, err = c.DoJSON(ctx, http.MethodPut, "/api/session", user, &session); err != nil {
		return Session{}, errors.Wrap(err, "sign in")
	}
	c.csrfToken = session.CSRFToken
	return session, nil
}

// DoJSON sends in as JSON and decodes a 2xx response into out. Either may be nil. Non-2xx responses return a
// *StatusError together with the status code.
func (c *Client) DoJSON(ctx context.Context, method, urlPath string, in, out any) (int, error) {
	var (
		err  error
		body io.Reader
		req  *http.Request
		resp *http.Response
	)
	if in != nil {
		var data []byte
		if data, err = json.Marshal(in); err != nil {
			return 0, errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(data)
	}
	if req, err = c.newRequestWithContext(ctx, method, urlPath, body); err != nil {
		return 0, errors.Wrap(err, "new request with context")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.csrfToken != "" {
		req.Header.Set(nosurf.HeaderName, c.csrfToken)
	}
	if resp, err = c.client.Do(req); err != nil {
		return 0, errors.Wrap(err, "do request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var data []byte
	if data, err = io.ReadAll(resp.Body); err != nil {
		return resp.StatusCode, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out != nil && len(data) > 0 {
		if err = json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, errors.Wrap(err, "unmarshal response", slog.String("body", string(data)))
		}
	}
	return resp.StatusCode, nil
}

// Events subscribes to the Server Sent Events at urlPath. The channel is closed when the stream ends or ctx is
// cancelled.
func (c *Client) Events(ctx context.Context, urlPath string) (<-chan Event, error) {
	var (
		err  error
		resp *http.Response
	)
	if resp, err = c.Get(ctx, urlPath); err != nil {
		return nil, errors.Wrap(err, "subscribe")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, errors.New("unexpected status code", slog.Int("status", resp.StatusCode))
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer func() {
			_ = resp.Body.Close()
		}()
		var (
			scanner = bufio.NewScanner(resp.Body)
			current Event
		)
		// A full avatar does not fit the default 64 KiB line limit.
		scanner.Buffer(make([]byte, 0, 64*1024), maxEventBytes) //nolint:mnd // 64 KiB
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				current.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				current.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
			case line == "" && current.Name != "":
				select {
				case events <- current:
				case <-ctx.Done():
					return
				}
				current = Event{}
			}
		}
	}()
	return events, nil
}

// newRequestWithContext creates a new HTTP request to the server that respects the given context.
func (c *Client) newRequestWithContext(
	ctx context.Context,
	method, urlPath string,
	body io.Reader,
) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if req, err = http.NewRequestWithContext(ctx, method, c.url+urlPath, body); err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	return req, nil
}
