// Package conformance provides a test harness exercising the ArtKey service
// end-to-end over HTTP: record creation, multi-path resolution, guest
// submissions, moderation and lifecycle transitions.
package conformance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/artful-experience/artkey-go/internal/artkey"
	"github.com/artful-experience/artkey-go/internal/auth"
	"github.com/artful-experience/artkey-go/internal/event"
	"github.com/artful-experience/artkey-go/internal/schema"
	"github.com/artful-experience/artkey-go/internal/server"
	"github.com/artful-experience/artkey-go/internal/share"
	"github.com/artful-experience/artkey-go/internal/storage"
)

// Config holds configuration for the conformance test harness.
type Config struct {
	// JWTIssuer is the expected admin JWT issuer.
	JWTIssuer string

	// JWTAudience is the expected admin JWT audience.
	JWTAudience string

	// BaseURL is the public base URL used for share artifacts.
	BaseURL string
}

// Harness runs the service behind a real HTTP listener.
type Harness struct {
	server *httptest.Server
	store  storage.Store
	pub    event.Publisher
}

// NewHarness creates a conformance test harness backed by the in-memory
// store, a no-op publisher and the unverified test auth client.
func NewHarness(cfg Config) (*Harness, error) {
	store := storage.NewMemory()
	pub := event.NewNoop()

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schema validator: %w", err)
	}

	svc := artkey.NewService(store, pub, validator, nil, 2*time.Second)
	builder := share.NewBuilder(cfg.BaseURL, "https://qr.example/render")

	mux := server.NewMux(svc, builder, auth.NewTestClient(), nil,
		cfg.JWTIssuer, cfg.JWTAudience,
		10*1024*1024,
		[]string{"image/jpeg", "image/png", "image/gif", "video/mp4"},
		nil)

	return &Harness{
		server: httptest.NewServer(mux),
		store:  store,
		pub:    pub,
	}, nil
}

// URL returns the base URL of the test server.
func (h *Harness) URL() string {
	return h.server.URL
}

// Close shuts down the test server and cleans up resources.
func (h *Harness) Close() {
	h.server.Close()
	h.pub.Close()
}

// do performs one JSON request against the harness server and decodes the
// response body into out when non-nil.
func (h *Harness) do(method, path string, headers map[string]string, body interface{}, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, h.URL()+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response %s: %w", raw, err)
		}
	}
	return resp.StatusCode, nil
}
