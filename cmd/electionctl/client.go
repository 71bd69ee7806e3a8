package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"clubvote/internal/app"
	httpTransport "clubvote/internal/transport/http"
)

// APIError is a non-success response from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: %s", http.StatusText(e.Status), e.Message)
}

// Client talks to a clubvote server with a cookie session
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
	}, nil
}

// Login starts a session
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(&httpTransport.LoginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, "/auth/login", "application/json", body, http.StatusOK)
	return err
}

// List returns all elections keyed by ID
func (c *Client) List(ctx context.Context) (map[string]httpTransport.ElectionListEntry, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/elections", "", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var list map[string]httpTransport.ElectionListEntry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decoding election list: %w", err)
	}
	return list, nil
}

// Get returns one election as seen by the logged-in user
func (c *Client) Get(ctx context.Context, id string) (*app.ElectionDetail, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/elections/"+id, "", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var detail app.ElectionDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, fmt.Errorf("decoding election: %w", err)
	}
	return &detail, nil
}

// Open starts an election and returns its ID
func (c *Client) Open(ctx context.Context, title string, candidates []string) (string, error) {
	body, err := json.Marshal(&httpTransport.OpenElectionRequest{Title: title, Candidates: candidates})
	if err != nil {
		return "", err
	}
	data, err := c.do(ctx, http.MethodPost, "/api/elections", "application/json", body, http.StatusCreated)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Vote casts a ballot for candidate
func (c *Client) Vote(ctx context.Context, id, candidate string) error {
	_, err := c.do(ctx, http.MethodPut, "/api/elections/"+id, "text/plain", []byte(candidate), http.StatusNoContent)
	return err
}

// Close closes an election
func (c *Client) Close(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPatch, "/api/elections/"+id, "", nil, http.StatusNoContent)
	return err
}

// Destroy removes an election
func (c *Client) Destroy(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/elections/"+id, "", nil, http.StatusNoContent)
	return err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, want int) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != want {
		return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	return data, nil
}
