// internal/server/mux_test.go
// Package server provides unit tests for the HTTP handlers and routing.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/artful-experience/artkey-go/internal/artkey"
	"github.com/artful-experience/artkey-go/internal/auth"
	"github.com/artful-experience/artkey-go/internal/model"
	"github.com/artful-experience/artkey-go/internal/schema"
	"github.com/artful-experience/artkey-go/internal/share"
	"github.com/artful-experience/artkey-go/internal/storage"
	"github.com/golang-jwt/jwt/v5"
)

// mockPublisher implements event.Publisher for testing purposes.
type mockPublisher struct{}

func (m *mockPublisher) Close() error { return nil }
func (m *mockPublisher) PublishArtKeyCreated(ctx context.Context, rec model.ArtKeyRecord) error {
	return nil
}
func (m *mockPublisher) PublishStatusChanged(ctx context.Context, rec model.ArtKeyRecord, from model.Status) error {
	return nil
}
func (m *mockPublisher) PublishGuestSubmission(ctx context.Context, artKeyID, kind, entryID string) error {
	return nil
}
func (m *mockPublisher) PublishApprovalChanged(ctx context.Context, artKeyID, kind, entryID string, state model.ApprovalState) error {
	return nil
}

// newTestMux builds a mux backed by the in-memory store and the unverified
// test auth client.
func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	validator, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	svc := artkey.NewService(storage.NewMemory(), &mockPublisher{}, validator, nil, 2*time.Second)
	builder := share.NewBuilder("http://localhost:8080", "https://qr.example/render")
	return NewMux(svc, builder, auth.NewTestClient(), nil,
		"test-issuer", "test-audience",
		10*1024*1024,
		[]string{"image/jpeg", "image/png", "image/gif", "video/mp4"},
		nil)
}

// adminJWT builds a token the test-mode auth client accepts without a
// signature check.
func adminJWT(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":  "test-issuer",
		"aud":  "test-audience",
		"sub":  "admin-user",
		"role": "admin",
		"exp":  float64(time.Now().Add(time.Hour).Unix()),
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("failed to sign test JWT: %v", err)
	}
	return signed
}

// createArtKey drives the save endpoint and returns the response.
func createArtKey(t *testing.T, mux *http.ServeMux, sessionID, body string) model.SaveResponse {
	t.Helper()
	req := httptest.NewRequest("POST", "/artkey/save", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("save returned status %d, body %s", rr.Code, rr.Body.String())
	}
	var resp model.SaveResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode save response: %v", err)
	}
	return resp
}

// TestHealthzEndpoint tests the healthz endpoint.
func TestHealthzEndpoint(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("handler returned unexpected body: got %v want ok", rr.Body.String())
	}
}

// TestReadyzEndpoint tests the readyz endpoint.
func TestReadyzEndpoint(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
}

// TestSaveCreatesRecord tests that a save without an id creates a record and
// returns the token and share artifacts.
func TestSaveCreatesRecord(t *testing.T) {
	mux := newTestMux(t)

	resp := createArtKey(t, mux, "sess-1", `{"artKeyData":{"title":"My Keepsake"}}`)

	if !resp.Success {
		t.Error("save response Success = false, want true")
	}
	if len(resp.Token) != 32 {
		t.Errorf("save response token length = %d, want 32", len(resp.Token))
	}
	if !strings.Contains(resp.ShareURL, resp.Token) {
		t.Errorf("share URL %q does not embed the token", resp.ShareURL)
	}
	if resp.QRCodeURL == "" {
		t.Error("save response QRCodeURL is empty")
	}
}

// TestSaveValidation tests schema rejection on save.
func TestSaveValidation(t *testing.T) {
	mux := newTestMux(t)

	long := strings.Repeat("x", 200)
	body := fmt.Sprintf(`{"artKeyData":{"title":"%s"}}`, long)
	req := httptest.NewRequest("POST", "/artkey/save", strings.NewReader(body))
	req.Header.Set(SessionHeader, "sess-1")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rr.Body.String(), "AK_VALIDATION") {
		t.Errorf("expected AK_VALIDATION in body, got %s", rr.Body.String())
	}
}

// TestSaveUpdateRequiresOwner tests that patching an existing record is
// refused for strangers and allowed for the owner.
func TestSaveUpdateRequiresOwner(t *testing.T) {
	mux := newTestMux(t)
	created := createArtKey(t, mux, "sess-owner", `{"artKeyData":{"title":"original"}}`)

	update := fmt.Sprintf(`{"artKeyId":%q,"artKeyData":{"title":"hijacked"}}`, created.ArtKeyID)
	req := httptest.NewRequest("POST", "/artkey/save", strings.NewReader(update))
	req.Header.Set(SessionHeader, "sess-stranger")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("stranger update: status = %d, want %d", rr.Code, http.StatusForbidden)
	}

	update = fmt.Sprintf(`{"artKeyId":%q,"artKeyData":{"title":"updated"}}`, created.ArtKeyID)
	req = httptest.NewRequest("POST", "/artkey/save", strings.NewReader(update))
	req.Header.Set(SessionHeader, "sess-owner")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("owner update: status = %d, body %s", rr.Code, rr.Body.String())
	}
}

// TestResolveByToken tests GET /artkey/{token}.
func TestResolveByToken(t *testing.T) {
	mux := newTestMux(t)
	created := createArtKey(t, mux, "sess-1", `{"artKeyData":{"title":"resolve me"}}`)

	req := httptest.NewRequest("GET", "/artkey/"+created.Token, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("resolve returned status %d, body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Data struct {
			ArtKey model.ArtKeyRecord   `json:"artKey"`
			Share  model.ShareArtifacts `json:"share"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode resolve response: %v", err)
	}
	if resp.Data.ArtKey.ID != created.ArtKeyID {
		t.Errorf("resolve returned record %q, want %q", resp.Data.ArtKey.ID, created.ArtKeyID)
	}
	if resp.Data.Share.ShareURL == "" || resp.Data.Share.QRCodeURL == "" {
		t.Error("resolve response missing share artifacts")
	}
}

// TestResolveUnknownIdentifier tests the not-found path.
func TestResolveUnknownIdentifier(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest("GET", "/artkey/doesnotexist", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusNotFound)
	}
	if !strings.Contains(rr.Body.String(), "AK_NOT_FOUND") {
		t.Errorf("expected AK_NOT_FOUND in body, got %s", rr.Body.String())
	}
}

// TestGuestbookModerationVisibility walks a guest submission through the
// public and owner views: pending entries are invisible to the public but
// visible, with state, to the owner.
func TestGuestbookModerationVisibility(t *testing.T) {
	mux := newTestMux(t)
	created := createArtKey(t, mux, "sess-owner",
		`{"artKeyData":{"features":{"show_guestbook":true,"gb_allow_entries":true,"gb_require_approval":true}}}`)

	// Guest submits a message.
	req := httptest.NewRequest("POST", "/artkey/"+created.ArtKeyID+"/guestbook",
		strings.NewReader(`{"name":"Ana","message":"Congratulations!"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("guestbook submit: status = %d, body %s", rr.Code, rr.Body.String())
	}

	decode := func(rr *httptest.ResponseRecorder) model.ArtKeyRecord {
		var resp struct {
			Data struct {
				ArtKey model.ArtKeyRecord `json:"artKey"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode resolve response: %v", err)
		}
		return resp.Data.ArtKey
	}

	// Public view: the pending entry is invisible.
	req = httptest.NewRequest("GET", "/artkey/"+created.Token, nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if got := decode(rr); len(got.Guestbook) != 0 {
		t.Errorf("public view shows %d guestbook entries, want 0", len(got.Guestbook))
	}

	// Owner view: the entry is visible with its pending state.
	req = httptest.NewRequest("GET", "/artkey/"+created.Token, nil)
	req.Header.Set(SessionHeader, "sess-owner")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	got := decode(rr)
	if len(got.Guestbook) != 1 {
		t.Fatalf("owner view shows %d guestbook entries, want 1", len(got.Guestbook))
	}
	if got.Guestbook[0].ApprovalState != model.ApprovalPending {
		t.Errorf("owner view entry state = %v, want pending", got.Guestbook[0].ApprovalState)
	}

	// Owner approves; the entry becomes publicly visible.
	approval := fmt.Sprintf(`{"kind":"guestbook","entryId":%q,"state":"approved"}`, got.Guestbook[0].EntryID)
	req = httptest.NewRequest("POST", "/artkey/"+created.ArtKeyID+"/approval", strings.NewReader(approval))
	req.Header.Set(SessionHeader, "sess-owner")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("approval: status = %d, body %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest("GET", "/artkey/"+created.Token, nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if got := decode(rr); len(got.Guestbook) != 1 {
		t.Errorf("public view after approval shows %d entries, want 1", len(got.Guestbook))
	}
}

// TestApprovalRequiresPrivilege tests that anonymous callers cannot moderate.
func TestApprovalRequiresPrivilege(t *testing.T) {
	mux := newTestMux(t)
	created := createArtKey(t, mux, "sess-owner", `{"artKeyData":{}}`)

	req := httptest.NewRequest("POST", "/artkey/"+created.ArtKeyID+"/approval",
		strings.NewReader(`{"kind":"guestbook","entryId":"x","state":"approved"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("anonymous approval: status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

// TestStatusTransitionByAdmin tests the admin JWT path for lifecycle
// transitions.
func TestStatusTransitionByAdmin(t *testing.T) {
	mux := newTestMux(t)
	created := createArtKey(t, mux, "sess-owner", `{"artKeyData":{}}`)

	req := httptest.NewRequest("POST", "/artkey/"+created.ArtKeyID+"/status",
		strings.NewReader(`{"status":"active"}`))
	req.Header.Set("Authorization", "Bearer "+adminJWT(t))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("admin status transition: status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Data struct {
			ArtKey model.ArtKeyRecord `json:"artKey"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode status response: %v", err)
	}
	if resp.Data.ArtKey.Status != model.StatusActive {
		t.Errorf("status after transition = %v, want active", resp.Data.ArtKey.Status)
	}
	if resp.Data.ArtKey.ActivatedAt == nil {
		t.Error("ActivatedAt not set after activation")
	}
}

// TestStatusInvalidTransition tests that forbidden lifecycle moves are
// rejected with a conflict.
func TestStatusInvalidTransition(t *testing.T) {
	mux := newTestMux(t)
	created := createArtKey(t, mux, "sess-owner", `{"artKeyData":{}}`)

	// draft -> active -> pending is forbidden.
	for i, body := range []string{`{"status":"active"}`, `{"status":"pending"}`} {
		req := httptest.NewRequest("POST", "/artkey/"+created.ArtKeyID+"/status", strings.NewReader(body))
		req.Header.Set(SessionHeader, "sess-owner")
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if i == 0 && rr.Code != http.StatusOK {
			t.Fatalf("activation: status = %d, body %s", rr.Code, rr.Body.String())
		}
		if i == 1 {
			if rr.Code != http.StatusConflict {
				t.Errorf("active->pending: status = %d, want %d", rr.Code, http.StatusConflict)
			}
			if !strings.Contains(rr.Body.String(), "AK_STATUS_INVALID") {
				t.Errorf("expected AK_STATUS_INVALID in body, got %s", rr.Body.String())
			}
		}
	}
}

// TestStoreListBySession tests GET /artkey/store?sessionId= scoping.
func TestStoreListBySession(t *testing.T) {
	mux := newTestMux(t)
	createArtKey(t, mux, "sess-a", `{"artKeyData":{"title":"one"}}`)
	createArtKey(t, mux, "sess-a", `{"artKeyData":{"title":"two"}}`)
	createArtKey(t, mux, "sess-b", `{"artKeyData":{"title":"other"}}`)

	// Matching session lists its own records.
	req := httptest.NewRequest("GET", "/artkey/store?sessionId=sess-a", nil)
	req.Header.Set(SessionHeader, "sess-a")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Data struct {
			ArtKeys []model.Summary `json:"artKeys"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	if len(resp.Data.ArtKeys) != 2 {
		t.Errorf("list returned %d records, want 2", len(resp.Data.ArtKeys))
	}

	// A stranger cannot list someone else's session.
	req = httptest.NewRequest("GET", "/artkey/store?sessionId=sess-a", nil)
	req.Header.Set(SessionHeader, "sess-b")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("cross-session list: status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

// TestStoreResolveByQuery tests GET /artkey/store?token= resolution.
func TestStoreResolveByQuery(t *testing.T) {
	mux := newTestMux(t)
	created := createArtKey(t, mux, "sess-1", `{"artKeyData":{"title":"query me"}}`)

	req := httptest.NewRequest("GET", "/artkey/store?token="+created.Token, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("store?token=: status = %d, body %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest("GET", "/artkey/store", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("store without params: status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// TestUploadInitLimits tests size and MIME type enforcement on upload init.
func TestUploadInitLimits(t *testing.T) {
	mux := newTestMux(t)

	// Oversized upload.
	req := httptest.NewRequest("POST", "/artkey/media/uploadInit",
		strings.NewReader(`{"mimeType":"image/jpeg","size":99999999999}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "AK_MEDIA_SIZE") {
		t.Errorf("oversized upload: status = %d, body %s", rr.Code, rr.Body.String())
	}

	// Disallowed MIME type.
	req = httptest.NewRequest("POST", "/artkey/media/uploadInit",
		strings.NewReader(`{"mimeType":"application/pdf","size":1024}`))
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "AK_MEDIA_TYPE") {
		t.Errorf("disallowed type: status = %d, body %s", rr.Code, rr.Body.String())
	}

	// Valid request but no object storage configured.
	req = httptest.NewRequest("POST", "/artkey/media/uploadInit",
		strings.NewReader(`{"mimeType":"image/jpeg","size":1024}`))
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("uploadInit without storage: status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

// TestMethodNotAllowed tests the method guard on exact routes.
func TestMethodNotAllowed(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest("GET", "/artkey/save", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("GET /artkey/save: status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// TestCorrelationIDPropagated tests that a supplied correlation id is echoed
// and one is minted when absent.
func TestCorrelationIDPropagated(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest("GET", "/artkey/store?token=missing", nil)
	req.Header.Set("X-Correlation-Id", "corr-123")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-Id"); got != "corr-123" {
		t.Errorf("correlation id echoed = %q, want corr-123", got)
	}
	if !strings.Contains(rr.Body.String(), "corr-123") {
		t.Error("correlation id missing from error body")
	}

	req = httptest.NewRequest("GET", "/artkey/store?token=missing", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Header().Get("X-Correlation-Id") == "" {
		t.Error("no correlation id minted for request without one")
	}
}
