// internal/server/mux.go
// Package server implements the HTTP surface of the ArtKey service: saving
// and patching records, multi-path resolution, guest submissions, moderation
// and lifecycle endpoints, plus upload presigning and health checks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"log/slog"

	"github.com/artful-experience/artkey-go/internal/artkey"
	"github.com/artful-experience/artkey-go/internal/auth"
	errordefs "github.com/artful-experience/artkey-go/internal/errors"
	"github.com/artful-experience/artkey-go/internal/media"
	"github.com/artful-experience/artkey-go/internal/metrics"
	"github.com/artful-experience/artkey-go/internal/model"
	"github.com/artful-experience/artkey-go/internal/share"
	"github.com/artful-experience/artkey-go/internal/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ContextKey is used for context values to avoid collisions.
type ContextKey string

const (
	// ContextKeyCorrelationID stores the per-request correlation id.
	ContextKeyCorrelationID ContextKey = "correlationId"

	// SessionHeader carries the anonymous owner session identifier.
	SessionHeader = "X-Session-Id"

	// presignTTL bounds how long an upload URL stays usable.
	presignTTL = 15 * time.Minute
)

// caller is the authenticated identity of a request: an optional session id
// and whether a valid admin JWT was presented.
type caller struct {
	sessionID string
	isAdmin   bool
}

// Mux handles HTTP requests for the ArtKey service.
type Mux struct {
	mux         *http.ServeMux
	svc         *artkey.Service
	share       *share.Builder
	authClient  *auth.Client
	mediaClient *media.S3Client // nil when object storage is not configured
	metrics     *metrics.Metrics

	jwtIssuer   string
	jwtAudience string

	maxMediaSize     int64
	allowedMimeTypes []string

	corsAllowedOrigins []string
}

// NewMux creates the HTTP mux with all ArtKey endpoints registered.
// authClient and mediaClient may be nil when the corresponding collaborator
// is not configured; the dependent endpoints then degrade to errors.
func NewMux(svc *artkey.Service, builder *share.Builder, authClient *auth.Client, mediaClient *media.S3Client, jwtIssuer, jwtAudience string, maxMediaSize int64, allowedMimeTypes, corsAllowedOrigins []string) *http.ServeMux {
	m := &Mux{
		mux:                http.NewServeMux(),
		svc:                svc,
		share:              builder,
		authClient:         authClient,
		mediaClient:        mediaClient,
		metrics:            metrics.NewMetrics(),
		jwtIssuer:          jwtIssuer,
		jwtAudience:        jwtAudience,
		maxMediaSize:       maxMediaSize,
		allowedMimeTypes:   allowedMimeTypes,
		corsAllowedOrigins: corsAllowedOrigins,
	}

	m.mux.HandleFunc("/healthz", m.handleHealthz)
	m.mux.HandleFunc("/readyz", m.handleReadyz)
	m.mux.Handle("/metrics", promhttp.Handler())

	m.mux.HandleFunc("/artkey/save", m.method("POST", m.withMiddleware(m.handleSave)))
	m.mux.HandleFunc("/artkey/store", m.method("GET", m.withMiddleware(m.handleStore)))
	m.mux.HandleFunc("/artkey/media/uploadInit", m.method("POST", m.withMiddleware(m.handleUploadInit)))

	// Everything else under /artkey/ is identifier-addressed:
	//   GET  /artkey/{identifier}
	//   POST /artkey/{id}/media | guestbook | approval | status
	m.mux.HandleFunc("/artkey/", m.withMiddleware(m.handleArtKeyPath))

	return m.mux
}

// method ensures the HTTP method matches the expected method.
func (m *Mux) method(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			m.writeErrorDef(w, errordefs.New(errordefs.AK_BAD_REQUEST, "method not allowed", ""))
			return
		}
		h(w, r)
	}
}

// withMiddleware applies CORS, correlation id, metrics and request logging.
func (m *Mux) withMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if origin := r.Header.Get("Origin"); origin != "" && m.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Correlation-Id, "+SessionHeader)
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeyCorrelationID, correlationID))
		w.Header().Set("X-Correlation-Id", correlationID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		status := fmt.Sprintf("%d", rec.status)
		m.metrics.HTTPRequestTotal.WithLabelValues(r.Method, routeLabel(r.URL.Path), status).Inc()
		m.metrics.HTTPRequestDuration.WithLabelValues(r.Method, routeLabel(r.URL.Path), status).Observe(time.Since(start).Seconds())
		m.logRequest(r, rec.status, time.Since(start), correlationID)
	}
}

func (m *Mux) originAllowed(origin string) bool {
	for _, allowed := range m.corsAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// routeLabel collapses identifier-addressed paths to a bounded label set so
// metrics cardinality stays fixed.
func routeLabel(p string) string {
	switch {
	case p == "/artkey/save", p == "/artkey/store", p == "/artkey/media/uploadInit":
		return p
	case strings.HasSuffix(p, "/media"):
		return "/artkey/{id}/media"
	case strings.HasSuffix(p, "/guestbook"):
		return "/artkey/{id}/guestbook"
	case strings.HasSuffix(p, "/approval"):
		return "/artkey/{id}/approval"
	case strings.HasSuffix(p, "/status"):
		return "/artkey/{id}/status"
	case strings.HasPrefix(p, "/artkey/"):
		return "/artkey/{identifier}"
	default:
		return p
	}
}

// identify extracts the caller's session id and, when a Bearer token is
// presented, validates it as an admin JWT. A missing Authorization header is
// not an error; a present but invalid one is.
func (m *Mux) identify(r *http.Request) (caller, *errordefs.Error) {
	c := caller{sessionID: r.Header.Get(SessionHeader)}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return c, nil
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return c, errordefs.New(errordefs.AK_AUTHN, "invalid Authorization header format", "")
	}
	if m.authClient == nil {
		return c, errordefs.New(errordefs.AK_AUTHN, "admin authentication is not configured", "")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	claims, err := m.authClient.ValidateAdminJWT(r.Context(), tokenString, m.jwtIssuer, m.jwtAudience)
	if err != nil {
		if strings.Contains(err.Error(), "expired") {
			return c, errordefs.New(errordefs.AK_JWT_EXPIRED, "JWT token expired", "")
		}
		return c, errordefs.New(errordefs.AK_JWT_INVALID, fmt.Sprintf("failed to validate JWT: %v", err), "")
	}
	if !auth.IsAdmin(claims) {
		return c, errordefs.New(errordefs.AK_AUTHZ, "token does not carry the admin role", "")
	}
	c.isAdmin = true
	return c, nil
}

func (m *Mux) correlationID(r *http.Request) string {
	if id, ok := r.Context().Value(ContextKeyCorrelationID).(string); ok {
		return id
	}
	return ""
}

// mapServiceError translates service and storage errors into the error
// taxonomy. Timeouts map to unavailable, never to not-found.
func mapServiceError(err error, correlationID string) *errordefs.Error {
	switch {
	case errors.Is(err, artkey.ErrInvalidInput):
		return errordefs.New(errordefs.AK_VALIDATION, err.Error(), correlationID)
	case errors.Is(err, artkey.ErrOrderUnfulfilled):
		return errordefs.New(errordefs.AK_STATUS_INVALID, "order is not fulfilled; activation refused", correlationID)
	case errors.Is(err, artkey.ErrUnavailable):
		return errordefs.New(errordefs.AK_UNAVAILABLE, "record store is unavailable", correlationID)
	case errors.Is(err, storage.ErrNotFound):
		return errordefs.New(errordefs.AK_NOT_FOUND, "ArtKey not found", correlationID)
	case errors.Is(err, storage.ErrConflict):
		return errordefs.New(errordefs.AK_CONFLICT, "conflicting write", correlationID)
	case errors.Is(err, storage.ErrInvalidStatus):
		return errordefs.New(errordefs.AK_STATUS_INVALID, err.Error(), correlationID)
	case errors.Is(err, storage.ErrInvalidApproval):
		return errordefs.New(errordefs.AK_APPROVAL_INVALID, err.Error(), correlationID)
	default:
		return errordefs.New(errordefs.AK_INTERNAL, "internal error", correlationID)
	}
}

// writeSuccess writes a successful response wrapped in a data envelope.
func (m *Mux) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

// writeErrorDef writes an error response following the error taxonomy.
func (m *Mux) writeErrorDef(w http.ResponseWriter, err *errordefs.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	body := map[string]interface{}{
		"code":          string(err.Code),
		"message":       err.Message,
		"correlationId": err.CorrelationID,
	}
	if err.Details != nil {
		body["details"] = err.Details
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": body})
}

func (m *Mux) logRequest(r *http.Request, status int, duration time.Duration, correlationID string) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("correlation_id", correlationID),
	}
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}
	slog.LogAttrs(r.Context(), level, "request completed", attrs...)
}

// handleHealthz handles liveness health check requests.
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz verifies the record store is answering.
func (m *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := m.svc.Ready(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleSave handles POST /artkey/save: create when no id is supplied,
// otherwise patch the named record's config.
func (m *Mux) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("artkey-service").Start(r.Context(), "handleSave")
	defer span.End()
	defer r.Body.Close()
	correlationID := m.correlationID(r)

	var req model.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.AK_VALIDATION, "invalid JSON", correlationID))
		return
	}

	c, authErr := m.identify(r)
	if authErr != nil {
		authErr.CorrelationID = correlationID
		m.writeErrorDef(w, authErr)
		return
	}
	ownerSession := req.OwnerSessionID
	if ownerSession == "" {
		ownerSession = c.sessionID
	}

	if req.ArtKeyID == "" {
		span.SetAttributes(attribute.String("save.mode", "create"))
		rec, err := m.svc.Create(ctx, ownerSession, req.ProductID, req.CartItemID, req.ArtKeyData)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			m.writeErrorDef(w, mapServiceError(err, correlationID))
			return
		}
		m.writeSaveResponse(w, http.StatusCreated, rec, "ArtKey created")
		return
	}

	span.SetAttributes(attribute.String("save.mode", "update"), attribute.String("artkey.id", req.ArtKeyID))
	existing, priv, err := m.svc.Resolve(ctx, req.ArtKeyID, c.sessionID, c.isAdmin)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.writeErrorDef(w, mapServiceError(err, correlationID))
		return
	}
	if !priv.CanModerate() {
		m.writeErrorDef(w, errordefs.New(errordefs.AK_AUTHZ, "only the owner or an admin may modify an ArtKey", correlationID))
		return
	}

	rec, err := m.svc.Update(ctx, existing.ID, req.ArtKeyData)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.writeErrorDef(w, mapServiceError(err, correlationID))
		return
	}
	m.writeSaveResponse(w, http.StatusOK, rec, "ArtKey updated")
}

func (m *Mux) writeSaveResponse(w http.ResponseWriter, status int, rec *model.ArtKeyRecord, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.SaveResponse{
		Success:   true,
		ArtKeyID:  rec.ID,
		Token:     rec.Token,
		ShareURL:  m.share.ShareURL(rec.Token),
		QRCodeURL: m.share.QRCodeURL(rec.Token),
		Message:   msg,
	})
}

// handleStore handles GET /artkey/store with token=, id= or sessionId=.
func (m *Mux) handleStore(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("artkey-service").Start(r.Context(), "handleStore")
	defer span.End()
	correlationID := m.correlationID(r)

	c, authErr := m.identify(r)
	if authErr != nil {
		authErr.CorrelationID = correlationID
		m.writeErrorDef(w, authErr)
		return
	}

	q := r.URL.Query()
	if sessionID := q.Get("sessionId"); sessionID != "" {
		if !c.isAdmin && sessionID != c.sessionID {
			m.writeErrorDef(w, errordefs.New(errordefs.AK_AUTHZ, "session listing requires the matching session or an admin", correlationID))
			return
		}
		summaries, err := m.svc.ListByOwner(ctx, sessionID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			m.writeErrorDef(w, mapServiceError(err, correlationID))
			return
		}
		m.writeSuccess(w, http.StatusOK, map[string]interface{}{"artKeys": summaries})
		return
	}

	identifier := q.Get("token")
	if identifier == "" {
		identifier = q.Get("id")
	}
	if identifier == "" {
		m.writeErrorDef(w, errordefs.New(errordefs.AK_BAD_REQUEST, "one of token, id or sessionId is required", correlationID))
		return
	}
	m.resolveAndWrite(ctx, w, identifier, c, correlationID, span)
}

// handleArtKeyPath dispatches identifier-addressed routes.
func (m *Mux) handleArtKeyPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/artkey/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			m.writeErrorDef(w, errordefs.New(errordefs.AK_BAD_REQUEST, "method not allowed", m.correlationID(r)))
			return
		}
		m.handleResolve(w, r, parts[0])
	case len(parts) == 2:
		if r.Method != http.MethodPost {
			m.writeErrorDef(w, errordefs.New(errordefs.AK_BAD_REQUEST, "method not allowed", m.correlationID(r)))
			return
		}
		switch parts[1] {
		case "media":
			m.handleMediaSubmit(w, r, parts[0])
		case "guestbook":
			m.handleGuestbookSubmit(w, r, parts[0])
		case "approval":
			m.handleApproval(w, r, parts[0])
		case "status":
			m.handleStatus(w, r, parts[0])
		default:
			m.writeErrorDef(w, errordefs.New(errordefs.AK_NOT_FOUND, "unknown route", m.correlationID(r)))
		}
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.AK_NOT_FOUND, "unknown route", m.correlationID(r)))
	}
}

// handleResolve handles GET /artkey/{identifier}.
func (m *Mux) handleResolve(w http.ResponseWriter, r *http.Request, identifier string) {
	ctx, span := otel.Tracer("artkey-service").Start(r.Context(), "handleResolve")
	defer span.End()
	correlationID := m.correlationID(r)

	c, authErr := m.identify(r)
	if authErr != nil {
		authErr.CorrelationID = correlationID
		m.writeErrorDef(w, authErr)
		return
	}
	m.resolveAndWrite(ctx, w, identifier, c, correlationID, span)
}

type spanStatusSetter interface {
	SetStatus(code codes.Code, description string)
}

func (m *Mux) resolveAndWrite(ctx context.Context, w http.ResponseWriter, identifier string, c caller, correlationID string, span spanStatusSetter) {
	rec, priv, err := m.svc.Resolve(ctx, identifier, c.sessionID, c.isAdmin)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.writeErrorDef(w, mapServiceError(err, correlationID))
		return
	}
	view := artkey.View(rec, priv)
	m.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"artKey": view,
		"share": model.ShareArtifacts{
			ShareURL:  m.share.ShareURL(rec.Token),
			QRCodeURL: m.share.QRCodeURL(rec.Token),
		},
	})
}

// handleMediaSubmit handles POST /artkey/{id}/media. Guests may submit; the
// approval default is derived inside the store.
func (m *Mux) handleMediaSubmit(w http.ResponseWriter, r *http.Request, id string) {
	ctx, span := otel.Tracer("artkey-service").Start(r.Context(), "handleMediaSubmit")
	defer span.End()
	defer r.Body.Close()
	correlationID := m.correlationID(r)

	var req model.MediaSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.AK_VALIDATION, "invalid JSON", correlationID))
		return
	}
	if req.Kind == "" {
		req.Kind = model.MediaImage
	}

	entry, err := m.svc.SubmitMedia(ctx, id, req.Kind, req.URL, req.SubmittedBy)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.writeErrorDef(w, mapServiceError(err, correlationID))
		return
	}
	m.writeSuccess(w, http.StatusCreated, map[string]interface{}{"entry": entry})
}

// handleGuestbookSubmit handles POST /artkey/{id}/guestbook.
func (m *Mux) handleGuestbookSubmit(w http.ResponseWriter, r *http.Request, id string) {
	ctx, span := otel.Tracer("artkey-service").Start(r.Context(), "handleGuestbookSubmit")
	defer span.End()
	defer r.Body.Close()
	correlationID := m.correlationID(r)

	var req model.GuestbookSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.AK_VALIDATION, "invalid JSON", correlationID))
		return
	}

	entry, err := m.svc.SubmitGuestbook(ctx, id, req.Name, req.Message)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.writeErrorDef(w, mapServiceError(err, correlationID))
		return
	}
	m.writeSuccess(w, http.StatusCreated, map[string]interface{}{"entry": entry})
}

// handleApproval handles POST /artkey/{id}/approval. Owner or admin only.
func (m *Mux) handleApproval(w http.ResponseWriter, r *http.Request, id string) {
	ctx, span := otel.Tracer("artkey-service").Start(r.Context(), "handleApproval")
	defer span.End()
	defer r.Body.Close()
	correlationID := m.correlationID(r)

	c, authErr := m.identify(r)
	if authErr != nil {
		authErr.CorrelationID = correlationID
		m.writeErrorDef(w, authErr)
		return
	}

	var req model.ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.AK_VALIDATION, "invalid JSON", correlationID))
		return
	}

	rec, priv, err := m.svc.Resolve(ctx, id, c.sessionID, c.isAdmin)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.writeErrorDef(w, mapServiceError(err, correlationID))
		return
	}
	if !priv.CanModerate() {
		m.writeErrorDef(w, errordefs.New(errordefs.AK_AUTHZ, "moderation requires the owner or an admin", correlationID))
		return
	}

	if err := m.svc.SetApproval(ctx, rec.ID, req.Kind, req.EntryID, req.State); err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.writeErrorDef(w, mapServiceError(err, correlationID))
		return
	}
	m.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"entryId": req.EntryID,
		"state":   req.State,
	})
}

// handleStatus handles POST /artkey/{id}/status. Owner or admin only.
func (m *Mux) handleStatus(w http.ResponseWriter, r *http.Request, id string) {
	ctx, span := otel.Tracer("artkey-service").Start(r.Context(), "handleStatus")
	defer span.End()
	defer r.Body.Close()
	correlationID := m.correlationID(r)

	c, authErr := m.identify(r)
	if authErr != nil {
		authErr.CorrelationID = correlationID
		m.writeErrorDef(w, authErr)
		return
	}

	var req model.StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.AK_VALIDATION, "invalid JSON", correlationID))
		return
	}

	existing, priv, err := m.svc.Resolve(ctx, id, c.sessionID, c.isAdmin)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.writeErrorDef(w, mapServiceError(err, correlationID))
		return
	}
	if !priv.CanModerate() {
		m.writeErrorDef(w, errordefs.New(errordefs.AK_AUTHZ, "status transitions require the owner or an admin", correlationID))
		return
	}

	rec, err := m.svc.Transition(ctx, existing.ID, req.Status, req.OrderID, req.CartItemID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.writeErrorDef(w, mapServiceError(err, correlationID))
		return
	}
	m.writeSuccess(w, http.StatusOK, map[string]interface{}{"artKey": artkey.View(rec, priv)})
}

// handleUploadInit handles POST /artkey/media/uploadInit by presigning a
// direct upload to object storage.
func (m *Mux) handleUploadInit(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("artkey-service").Start(r.Context(), "handleUploadInit")
	defer span.End()
	defer r.Body.Close()
	correlationID := m.correlationID(r)

	var req model.UploadInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.AK_VALIDATION, "invalid JSON", correlationID))
		return
	}

	if req.Size <= 0 || req.Size > m.maxMediaSize {
		m.writeErrorDef(w, errordefs.New(errordefs.AK_MEDIA_SIZE,
			fmt.Sprintf("media size must be between 1 and %d bytes", m.maxMediaSize), correlationID))
		return
	}
	allowed := false
	for _, mt := range m.allowedMimeTypes {
		if mt == req.MimeType {
			allowed = true
			break
		}
	}
	if !allowed {
		m.writeErrorDef(w, errordefs.New(errordefs.AK_MEDIA_TYPE,
			fmt.Sprintf("media type %s is not allowed", req.MimeType), correlationID))
		return
	}
	if m.mediaClient == nil {
		m.writeErrorDef(w, errordefs.New(errordefs.AK_UNAVAILABLE, "object storage is not configured", correlationID))
		return
	}

	key := fmt.Sprintf("uploads/%s/%s%s", time.Now().UTC().Format("2006/01/02"), uuid.New().String(), path.Ext(req.Filename))
	uploadURL, err := m.mediaClient.PresignUpload(ctx, key, presignTTL)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.writeErrorDef(w, errordefs.New(errordefs.AK_UNAVAILABLE, "failed to presign upload", correlationID))
		return
	}

	m.writeSuccess(w, http.StatusOK, model.UploadInitData{
		UploadURL: uploadURL,
		AssetURL:  m.mediaClient.ObjectURL(key),
		ExpiresAt: time.Now().UTC().Add(presignTTL),
	})
}
