// internal/artkey/service.go
// Package artkey implements the ArtKey record lifecycle: minting
// collision-resistant tokens, persisting and patching configuration
// documents, accepting guest submissions, moderating them, and driving the
// draft/pending/active/archived state machine. It is constructed once at
// process start with an injected storage backend and passed to the request
// handlers, never reached through ambient global state.
package artkey

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/artful-experience/artkey-go/internal/event"
	"github.com/artful-experience/artkey-go/internal/metrics"
	"github.com/artful-experience/artkey-go/internal/model"
	"github.com/artful-experience/artkey-go/internal/orders"
	"github.com/artful-experience/artkey-go/internal/schema"
	"github.com/artful-experience/artkey-go/internal/storage"
	"github.com/artful-experience/artkey-go/internal/token"
	"github.com/oklog/ulid/v2"
	"log/slog"
)

// Service-level errors layered above the storage sentinels.
var (
	// ErrUnavailable means the backing store or a collaborator timed out.
	// It is never conflated with not-found: a not-found has product-visible
	// consequences and must not be produced by a transient outage.
	ErrUnavailable = errors.New("store unavailable")

	// ErrInvalidInput wraps schema and precondition violations.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOrderUnfulfilled means activation was requested for an order the
	// commerce side has not confirmed yet.
	ErrOrderUnfulfilled = errors.New("order not fulfilled")
)

// tokenCreateAttempts bounds collision retries on create before the
// condition is surfaced as unavailable.
const tokenCreateAttempts = 5

// Service owns all record operations.
type Service struct {
	store     storage.Store
	pub       event.Publisher
	validator *schema.Validator
	orders    *orders.Client // nil when the commerce collaborator is not configured
	metrics   *metrics.Metrics
	timeout   time.Duration
}

// NewService wires a Service. orders may be nil.
func NewService(store storage.Store, pub event.Publisher, validator *schema.Validator, ordersClient *orders.Client, timeout time.Duration) *Service {
	return &Service{
		store:     store,
		pub:       pub,
		validator: validator,
		orders:    ordersClient,
		metrics:   metrics.NewMetrics(),
		timeout:   timeout,
	}
}

// withTimeout bounds a store call and maps a deadline hit to ErrUnavailable.
func (s *Service) withTimeout(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(cctx)
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s timed out", ErrUnavailable, op)
			status = "timeout"
		}
	}
	s.metrics.StorageOperationTotal.WithLabelValues(op, status).Inc()
	s.metrics.StorageOperationDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

// Create validates the config document, mints id and token, and persists a
// new draft record. A token collision is retried with a fresh token up to
// tokenCreateAttempts times; the store's uniqueness constraint is the
// arbiter, probability alone is never trusted.
func (s *Service) Create(ctx context.Context, ownerSessionID, productID, cartItemID string, patch model.ConfigPatch) (*model.ArtKeyRecord, error) {
	if err := s.validator.Validate(schema.ConfigDocument, patch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	rec := model.ArtKeyRecord{
		ID:             ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0)).String(),
		Status:         model.StatusDraft,
		OwnerSessionID: ownerSessionID,
		ProductID:      productID,
		CartItemID:     cartItemID,
		Config:         patch.Apply(model.ConfigDocument{}),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var lastErr error
	for attempt := 0; attempt < tokenCreateAttempts; attempt++ {
		tok, err := token.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		rec.Token = tok

		lastErr = s.withTimeout(ctx, "create", func(cctx context.Context) error {
			return s.store.CreateRecord(cctx, rec)
		})
		if lastErr == nil {
			if err := s.pub.PublishArtKeyCreated(ctx, rec); err != nil {
				slog.Warn("failed to publish artkey created event", "error", err)
			}
			out := rec.Clone()
			return &out, nil
		}
		if !errors.Is(lastErr, storage.ErrConflict) {
			return nil, lastErr
		}
		// Token collision: retryable, regenerate and go again.
	}
	return nil, fmt.Errorf("%w: token allocation kept colliding: %v", ErrUnavailable, lastErr)
}

// Update merges a shallow section patch into the record's config document.
// Id and token are never altered.
func (s *Service) Update(ctx context.Context, id string, patch model.ConfigPatch) (*model.ArtKeyRecord, error) {
	if err := s.validator.Validate(schema.ConfigDocument, patch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var rec *model.ArtKeyRecord
	err := s.withTimeout(ctx, "update_config", func(cctx context.Context) error {
		var err error
		rec, err = s.store.UpdateConfig(cctx, id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByOwner returns the lightweight projections for the owning session.
func (s *Service) ListByOwner(ctx context.Context, ownerSessionID string) ([]model.Summary, error) {
	var out []model.Summary
	err := s.withTimeout(ctx, "list_by_owner", func(cctx context.Context) error {
		var err error
		out, err = s.store.ListByOwner(cctx, ownerSessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitMedia appends a guest media reference. The entry's approval state is
// snapshotted from the record's current require-approval flag inside the
// store's critical section.
func (s *Service) SubmitMedia(ctx context.Context, id string, kind model.MediaKind, url, submittedBy string) (*model.MediaEntry, error) {
	if err := s.validator.Validate(schema.MediaDocument, model.MediaSubmitRequest{Kind: kind, URL: url, SubmittedBy: submittedBy}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	rec, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if kind == model.MediaVideo {
		if !rec.Config.Features.VidAllowUploads {
			return nil, fmt.Errorf("%w: video uploads are disabled for this ArtKey", ErrInvalidInput)
		}
	} else {
		if !rec.Config.Features.ImgAllowUploads {
			return nil, fmt.Errorf("%w: image uploads are disabled for this ArtKey", ErrInvalidInput)
		}
	}

	var entry *model.MediaEntry
	err = s.withTimeout(ctx, "append_media", func(cctx context.Context) error {
		var err error
		entry, err = s.store.AppendMedia(cctx, id, kind, url, submittedBy)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.pub.PublishGuestSubmission(ctx, id, string(kind), entry.EntryID); err != nil {
		slog.Warn("failed to publish guest submission event", "error", err)
	}
	return entry, nil
}

// SubmitGuestbook appends a guest message using the same derivation rule.
func (s *Service) SubmitGuestbook(ctx context.Context, id, name, message string) (*model.GuestbookEntry, error) {
	if err := s.validator.Validate(schema.GuestbookDocument, model.GuestbookSubmitRequest{Name: name, Message: message}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	rec, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Config.Features.GbAllowEntries {
		return nil, fmt.Errorf("%w: guestbook entries are disabled for this ArtKey", ErrInvalidInput)
	}

	var entry *model.GuestbookEntry
	err = s.withTimeout(ctx, "append_guestbook", func(cctx context.Context) error {
		var err error
		entry, err = s.store.AppendGuestbook(cctx, id, name, message)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.pub.PublishGuestSubmission(ctx, id, "guestbook", entry.EntryID); err != nil {
		slog.Warn("failed to publish guest submission event", "error", err)
	}
	return entry, nil
}

// SetApproval transitions one entry's approval state on behalf of the owner
// or an admin. Rejection keeps the entry; it only becomes invisible to the
// public.
func (s *Service) SetApproval(ctx context.Context, id, kind, entryID string, state model.ApprovalState) error {
	switch state {
	case model.ApprovalApproved, model.ApprovalRejected:
	default:
		return fmt.Errorf("%w: approval state must be approved or rejected", ErrInvalidInput)
	}
	switch kind {
	case "image", "video", "guestbook":
	default:
		return fmt.Errorf("%w: kind must be image, video or guestbook", ErrInvalidInput)
	}

	err := s.withTimeout(ctx, "set_approval", func(cctx context.Context) error {
		return s.store.SetApproval(cctx, id, kind, entryID, state)
	})
	if err != nil {
		return err
	}

	s.metrics.ModerationDecisionTotal.WithLabelValues(kind, string(state)).Inc()
	if err := s.pub.PublishApprovalChanged(ctx, id, kind, entryID, state); err != nil {
		slog.Warn("failed to publish approval changed event", "error", err)
	}
	return nil
}

// Transition drives the record lifecycle. When activation cites an order and
// the commerce collaborator is configured, fulfillment is confirmed first.
func (s *Service) Transition(ctx context.Context, id string, target model.Status, orderID, cartItemID string) (*model.ArtKeyRecord, error) {
	switch target {
	case model.StatusDraft, model.StatusPending, model.StatusActive, model.StatusArchived:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, target)
	}

	if target == model.StatusActive && orderID != "" && s.orders != nil {
		order, err := s.orders.Get(ctx, orderID)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				return nil, fmt.Errorf("%w: order %s not found", ErrInvalidInput, orderID)
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if !order.Fulfilled() {
			return nil, ErrOrderUnfulfilled
		}
	}

	before, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var rec *model.ArtKeyRecord
	err = s.withTimeout(ctx, "set_status", func(cctx context.Context) error {
		var err error
		rec, err = s.store.SetStatus(cctx, id, target, orderID, cartItemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if rec.Status != before.Status {
		if err := s.pub.PublishStatusChanged(ctx, *rec, before.Status); err != nil {
			slog.Warn("failed to publish status changed event", "error", err)
		}
	}
	return rec, nil
}

// Ready probes the backing store. A not-found for the probe id still proves
// the store answered, so it counts as healthy.
func (s *Service) Ready(ctx context.Context) error {
	err := s.withTimeout(ctx, "ready", func(cctx context.Context) error {
		_, err := s.store.GetByID(cctx, "readiness-probe")
		return err
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// getByID is the unexported timeout-bounded fetch used internally.
func (s *Service) getByID(ctx context.Context, id string) (*model.ArtKeyRecord, error) {
	var rec *model.ArtKeyRecord
	err := s.withTimeout(ctx, "get_by_id", func(cctx context.Context) error {
		var err error
		rec, err = s.store.GetByID(cctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
