package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielpatrickdp/hardening-controller/internal/policy"
)

// #region config

// ClientConfig holds remote evaluator connection settings.
type ClientConfig struct {
	Addr           string `yaml:"addr"` // e.g. http://policy-eval:8181
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// DefaultClientConfig returns the standard short-timeout settings. Gate calls
// are blocking remote operations; a few seconds is the ceiling.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Addr:           "http://localhost:8181",
		TimeoutSeconds: 3,
	}
}

// #endregion config

// #region client

// HTTPAuthorizer calls a remote policy evaluator over JSON/HTTP. Every
// failure mode (timeout, transport error, bad status, undecodable body)
// resolves to deny.
type HTTPAuthorizer struct {
	config ClientConfig
	client *http.Client
}

// NewHTTPAuthorizer creates a fail-closed remote authorizer.
func NewHTTPAuthorizer(config ClientConfig) *HTTPAuthorizer {
	return &HTTPAuthorizer{
		config: config,
		client: &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second},
	}
}

// Authorize implements Authorizer against POST {addr}/v1/authorize.
func (a *HTTPAuthorizer) Authorize(ctx context.Context, action policy.Action, gctx Context) Response {
	body, err := json.Marshal(Request{Action: action, Context: gctx})
	if err != nil {
		return deny(fmt.Sprintf("gate unavailable: encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.Addr+"/v1/authorize", bytes.NewReader(body))
	if err != nil {
		return deny(fmt.Sprintf("gate unavailable: build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return deny(fmt.Sprintf("gate unavailable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return deny(fmt.Sprintf("gate unavailable: status %d", resp.StatusCode))
	}

	var verdict Response
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return deny(fmt.Sprintf("gate unavailable: decode response: %v", err))
	}
	return verdict
}

func deny(reason string) Response {
	return Response{Allowed: false, Reason: reason}
}

// #endregion client
