// Package client talks to the game store REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/erazemk/gamelog/internal/model"
)

// Client is a game store API client. Game calls are safe for concurrent
// use; Login and Logout replace the token and must not race with them.
type Client struct {
	baseURL   string
	http      *http.Client
	token     string
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New returns a client for the store at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      http.DefaultClient,
		userAgent: "gamelog",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token in use.
func (c *Client) Token() string {
	return c.token
}

// Login exchanges credentials for a token and starts using it.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", bytes.NewReader(body), "application/json", &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &RemoteCallError{Op: "login", Status: http.StatusOK, Message: "empty token in response"}
	}
	c.token = resp.Token
	return resp.Token, nil
}

// Logout revokes the current token on the server.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, "logout", http.MethodPost, "/api/auth/logout", nil, "", nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// ListGames returns the full collection in store order.
func (c *Client) ListGames(ctx context.Context) ([]model.Game, error) {
	var games []model.Game
	if err := c.do(ctx, "list games", http.MethodGet, "/api/games", nil, "", &games); err != nil {
		return nil, err
	}
	if games == nil {
		games = []model.Game{}
	}
	return games, nil
}

// GetGame returns one game.
func (c *Client) GetGame(ctx context.Context, id int64) (*model.Game, error) {
	var g model.Game
	if err := c.do(ctx, "get game", http.MethodGet, gamePath(id, ""), nil, "", &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGame submits a new game and returns the stored record.
func (c *Client) CreateGame(ctx context.Context, s Submission) (*model.Game, error) {
	return c.submit(ctx, "create game", http.MethodPost, "/api/games", s)
}

// UpdateGame replaces a game's fields and returns the stored record.
func (c *Client) UpdateGame(ctx context.Context, id int64, s Submission) (*model.Game, error) {
	return c.submit(ctx, "update game", http.MethodPut, gamePath(id, ""), s)
}

// DeleteGame removes a game.
func (c *Client) DeleteGame(ctx context.Context, id int64) error {
	return c.do(ctx, "delete game", http.MethodDelete, gamePath(id, ""), nil, "", nil)
}

// RemoveCoverImage clears a game's cover and returns the stored record.
func (c *Client) RemoveCoverImage(ctx context.Context, id int64) (*model.Game, error) {
	var g model.Game
	if err := c.do(ctx, "remove cover", http.MethodPut, gamePath(id, "/remove-image"), nil, "", &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetCover downloads a game's cover image and its content type.
func (c *Client) GetCover(ctx context.Context, id int64) ([]byte, string, error) {
	resp, err := c.send(ctx, "get cover", http.MethodGet, gamePath(id, "/cover"), nil, "")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &RemoteCallError{Op: "get cover", Status: resp.StatusCode, Err: err}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) submit(ctx context.Context, op, method, path string, s Submission) (*model.Game, error) {
	body, contentType, err := s.encode()
	if err != nil {
		return nil, &RemoteCallError{Op: op, Err: err}
	}

	var g model.Game
	if err := c.do(ctx, op, method, path, body, contentType, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// do sends a request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	resp, err := c.send(ctx, op, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteCallError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// send performs the request. Non-2xx responses are turned into a
// RemoteCallError and their body is consumed.
func (c *Client) send(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &RemoteCallError{Op: op, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteCallError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &apiErr) != nil {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return nil, &RemoteCallError{Op: op, Status: resp.StatusCode, Message: apiErr.Error}
	}
	return resp, nil
}

func gamePath(id int64, suffix string) string {
	return fmt.Sprintf("/api/games/%d%s", id, suffix)
}
