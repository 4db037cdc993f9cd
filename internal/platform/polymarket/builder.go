package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/polytrade/internal/crypto"
)

// BuilderSigner produces the POLY_BUILDER_* attribution headers for an
// exchange request.
type BuilderSigner interface {
	BuilderHeaders(ctx context.Context, method, path, body string) (map[string]string, error)
}

// SignRequest is the payload a remote builder signer accepts.
type SignRequest struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Body   string `json:"body"`
}

// RemoteBuilder asks a signing service to compute builder headers so the
// builder secret never leaves that service.
type RemoteBuilder struct {
	url        string
	httpClient *http.Client
}

// NewRemoteBuilder creates a signer posting to url, e.g.
// "https://backend.example.com/api/polymarket/sign".
func NewRemoteBuilder(url string, timeout time.Duration) *RemoteBuilder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteBuilder{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// BuilderHeaders implements BuilderSigner.
func (b *RemoteBuilder) BuilderHeaders(ctx context.Context, method, path, body string) (map[string]string, error) {
	payload, err := json.Marshal(SignRequest{Method: method, Path: path, Body: body})
	if err != nil {
		return nil, fmt.Errorf("polymarket/builder: marshal sign request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("polymarket/builder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/builder: sign request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/builder: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("polymarket/builder: sign failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var headers map[string]string
	if err := json.Unmarshal(respBody, &headers); err != nil {
		return nil, fmt.Errorf("polymarket/builder: decode headers: %w", err)
	}
	if headers["POLY_BUILDER_SIGNATURE"] == "" {
		return nil, fmt.Errorf("polymarket/builder: response missing POLY_BUILDER_SIGNATURE")
	}
	return headers, nil
}

// LocalBuilder signs with builder credentials held in-process. The daemon's
// own /api/polymarket/sign endpoint is backed by one.
type LocalBuilder struct {
	auth crypto.HMACAuth
}

// NewLocalBuilder wraps a builder API key triple.
func NewLocalBuilder(auth crypto.HMACAuth) *LocalBuilder {
	return &LocalBuilder{auth: auth}
}

// BuilderHeaders implements BuilderSigner.
func (b *LocalBuilder) BuilderHeaders(_ context.Context, method, path, body string) (map[string]string, error) {
	return b.auth.BuilderHeaders(method, path, body), nil
}
