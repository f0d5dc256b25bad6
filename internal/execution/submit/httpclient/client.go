// Package httpclient submits runs to a remote run service over HTTP.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/animus-labs/flowlab/internal/domain"
	"github.com/animus-labs/flowlab/internal/execution/submit"
	"github.com/animus-labs/flowlab/internal/platform/requestid"
)

var (
	ErrUnauthorized = errors.New("run service request unauthorized")
	ErrForbidden    = errors.New("run service request forbidden")
)

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("run service error (status=%d)", e.StatusCode)
	}
	return fmt.Sprintf("run service error (status=%d): %s", e.StatusCode, body)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client. With token settings the underlying HTTP client
// fetches and refreshes client-credentials tokens; ctx scopes the token
// requests.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.authenticated() {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		httpClient = cc.Client(ctx)
		httpClient.Timeout = cfg.Timeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
	}, nil
}

func (c *Client) Submit(ctx context.Context, sub submit.Submission) (submit.Handle, error) {
	if err := sub.Validate(); err != nil {
		return submit.Handle{}, err
	}
	var out runResponse
	status, err := c.post(ctx, "/runs", runRequestFromSubmission(sub), &out)
	if err != nil {
		return submit.Handle{}, err
	}
	if status == http.StatusConflict {
		return submit.Handle{Name: sub.Name, Status: submit.StatusRunning, Existing: true}, nil
	}
	name := out.Name
	if name == "" {
		name = sub.Name
	}
	runStatus := out.Status
	if runStatus == "" {
		runStatus = submit.StatusRunning
	}
	return submit.Handle{Name: name, Status: runStatus}, nil
}

func (c *Client) EnsureConnection(ctx context.Context, conn domain.Connection) error {
	_, err := c.post(ctx, "/connections", connectionRequest{
		Name:       conn.Name,
		Type:       conn.Type,
		Properties: conn.Properties,
		Configs:    conn.Configs,
		Secrets:    conn.Secrets,
	}, nil)
	return err
}

// post sends body as JSON. A 409 is reported through the returned status
// rather than as an error.
func (c *Client) post(ctx context.Context, path string, body any, out any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if _, err := requestid.Set(req); err != nil {
		return 0, fmt.Errorf("request id: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return resp.StatusCode, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
			return resp.StatusCode, nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode run service response: %w", err)
		}
		return resp.StatusCode, nil
	case http.StatusConflict:
		return resp.StatusCode, nil
	case http.StatusUnauthorized:
		return resp.StatusCode, ErrUnauthorized
	case http.StatusForbidden:
		return resp.StatusCode, ErrForbidden
	default:
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
}

type runRequest struct {
	Name                 string            `json:"name"`
	DisplayName          string            `json:"display_name"`
	Experiment           string            `json:"experiment"`
	Fingerprint          string            `json:"fingerprint"`
	Flow                 string            `json:"flow"`
	Data                 string            `json:"data"`
	Variant              string            `json:"variant,omitempty"`
	ColumnMapping        map[string]string `json:"column_mapping"`
	EnvironmentVariables map[string]string `json:"environment_variables,omitempty"`
	Tags                 map[string]string `json:"tags,omitempty"`
	Runtime              string            `json:"runtime,omitempty"`
	Resources            map[string]string `json:"resources,omitempty"`
	Init                 map[string]any    `json:"init,omitempty"`
	Run                  string            `json:"run,omitempty"`
}

type runResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type connectionRequest struct {
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
	Configs    map[string]string `json:"configs,omitempty"`
	Secrets    map[string]string `json:"secrets,omitempty"`
}

func runRequestFromSubmission(sub submit.Submission) runRequest {
	mapping := sub.ColumnMapping
	if mapping == nil {
		mapping = map[string]string{}
	}
	return runRequest{
		Name:                 sub.Name,
		DisplayName:          sub.Name,
		Experiment:           sub.Experiment,
		Fingerprint:          sub.Fingerprint,
		Flow:                 sub.FlowPath,
		Data:                 sub.DataReference,
		Variant:              sub.Variant,
		ColumnMapping:        mapping,
		EnvironmentVariables: sub.EnvironmentVariables,
		Tags:                 sub.Tags,
		Runtime:              sub.Runtime,
		Resources:            sub.Resources,
		Init:                 sub.Init,
		Run:                  sub.Run,
	}
}
