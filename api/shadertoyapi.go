package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the public Shadertoy REST endpoint.
	DefaultBaseURL = "https://www.shadertoy.com/api/v1"

	userAgent = "https://github.com/richinsley/glowsaver"

	// notFoundBody is the literal body returned for unknown or unlisted ids.
	notFoundBody    = `{"Error":"Shader not found"}`
	notFoundMessage = "Shader not found"
)

// ErrShaderNotFound is returned by ShaderByID when the catalog answers with
// its not-found sentinel.
var ErrShaderNotFound = errors.New("shader not found")

type headerTransport struct {
	Transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	return t.Transport.RoundTrip(req)
}

// --- Structs for Shadertoy API Response ---

type ShadertoyResponse struct {
	Shader *Shader `json:"Shader"`
	Error  string  `json:"Error,omitempty"`
}

type listResponse struct {
	Shaders int      `json:"Shaders"`
	Results []string `json:"Results"`
	Error   string   `json:"Error,omitempty"`
}

type Shader struct {
	Info       ShaderInfo   `json:"info"`
	RenderPass []RenderPass `json:"renderpass"`
}

type ShaderInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Username    string `json:"username"`
}

type RenderPass struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// ImageCode returns the source of the first render pass, or "" when the
// shader has none.
func (s *Shader) ImageCode() string {
	if s == nil || len(s.RenderPass) == 0 {
		return ""
	}
	return s.RenderPass[0].Code
}

// Client talks to the Shadertoy REST API with a single API key.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// NewClient returns a client for baseURL (DefaultBaseURL when empty). A nil
// httpClient uses a client honouring proxy settings from the environment.
// Every request carries the client's User-Agent.
func NewClient(baseURL, key string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	hc := *httpClient
	base := hc.Transport
	if base == nil {
		base = &http.Transport{Proxy: http.ProxyFromEnvironment}
	}
	hc.Transport = &headerTransport{Transport: base}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &hc,
	}
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s%s?key=%s", c.baseURL, path, url.QueryEscape(c.key))
}

// do issues the request and returns the body of a 200 response.
func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: bad response status: %s", path, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// ListShaders returns the ids of every shader in the catalog.
func (c *Client) ListShaders(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, http.MethodPost, "/shaders")
	if err != nil {
		return nil, err
	}

	var list listResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode shader list: %w", err)
	}
	if list.Error != "" {
		return nil, fmt.Errorf("shader list request failed: %s", list.Error)
	}
	if list.Results == nil {
		return nil, fmt.Errorf("shader list response has no Results")
	}
	return list.Results, nil
}

// ShaderByID fetches one shader definition. It returns ErrShaderNotFound
// when the catalog reports the id as missing.
func (c *Client) ShaderByID(ctx context.Context, id string) (*Shader, error) {
	body, err := c.do(ctx, http.MethodPost, "/shaders/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if string(bytes.TrimSpace(body)) == notFoundBody {
		return nil, fmt.Errorf("%s: %w", id, ErrShaderNotFound)
	}

	var shaderData ShadertoyResponse
	if err := json.Unmarshal(body, &shaderData); err != nil {
		return nil, fmt.Errorf("failed to decode shader %s: %w", id, err)
	}
	switch {
	case shaderData.Error == notFoundMessage:
		return nil, fmt.Errorf("%s: %w", id, ErrShaderNotFound)
	case shaderData.Error != "":
		return nil, fmt.Errorf("shader %s request failed: %s", id, shaderData.Error)
	case shaderData.Shader == nil:
		return nil, fmt.Errorf("shader %s response has no Shader", id)
	}
	return shaderData.Shader, nil
}

// ValidateKey checks that the API accepts the client's key.
func (c *Client) ValidateKey(ctx context.Context) error {
	if c.key == "" {
		return fmt.Errorf("no API key set. See https://www.shadertoy.com/howto#q2")
	}
	body, err := c.do(ctx, http.MethodGet, "/shaders/query/test")
	if err != nil {
		return fmt.Errorf("failed to use ShaderToy API with key: %w", err)
	}

	var apiError ShadertoyResponse
	if err := json.Unmarshal(body, &apiError); err != nil {
		return fmt.Errorf("failed to decode API key test response: %w", err)
	}
	if apiError.Error != "" {
		return fmt.Errorf("failed to use ShaderToy API with key: %s", apiError.Error)
	}
	return nil
}
