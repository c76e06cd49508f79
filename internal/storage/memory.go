// internal/storage/memory.go
// Package storage provides implementations of the Store interface for both
// in-memory and PostgreSQL backends. The store is the only shared mutable
// resource in the service: mutations on the same record are serialized,
// while operations on different records proceed fully in parallel.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/artful-experience/artkey-go/internal/model"
	"github.com/artful-experience/artkey-go/internal/moderation"
)

// Standard errors returned by the storage layer.
var (
	ErrNotFound        = errors.New("not found")                    // No record (or entry) with that identifier
	ErrConflict        = errors.New("conflict")                     // Id or token already taken on create
	ErrInvalidStatus   = errors.New("invalid status transition")    // Lifecycle transition not allowed
	ErrInvalidApproval = errors.New("invalid approval transition")  // Approval transition not allowed
)

// Store defines the record operations required by the ArtKey service.
// Implementations must serialize mutations per record id and enforce token
// uniqueness on create; a token collision is reported as ErrConflict so the
// caller can regenerate and retry.
type Store interface {
	// CreateRecord persists a fully-built record. ErrConflict when the id or
	// token is already taken.
	CreateRecord(ctx context.Context, rec model.ArtKeyRecord) error

	// Lookup paths. Both return ErrNotFound rather than a default record.
	GetByID(ctx context.Context, id string) (*model.ArtKeyRecord, error)
	GetByToken(ctx context.Context, token string) (*model.ArtKeyRecord, error)

	// ListByOwner returns lightweight projections for the owning session,
	// most recently updated first.
	ListByOwner(ctx context.Context, ownerSessionID string) ([]model.Summary, error)

	// UpdateConfig merges a shallow section patch into the config document
	// and bumps UpdatedAt/Version. Never alters id or token.
	UpdateConfig(ctx context.Context, id string, patch model.ConfigPatch) (*model.ArtKeyRecord, error)

	// AppendMedia appends a guest media reference; the approval state is
	// derived from the record's current require-approval flag for that kind.
	AppendMedia(ctx context.Context, id string, kind model.MediaKind, url, submittedBy string) (*model.MediaEntry, error)

	// AppendGuestbook appends a guest message using the same derivation rule.
	AppendGuestbook(ctx context.Context, id, name, message string) (*model.GuestbookEntry, error)

	// SetApproval transitions a single entry's approval state. Kind is
	// "image", "video" or "guestbook". ErrInvalidApproval for transitions
	// the moderation state machine forbids.
	SetApproval(ctx context.Context, id, kind, entryID string, state model.ApprovalState) error

	// SetStatus transitions the record lifecycle, attaching commerce
	// identifiers when provided. ActivatedAt is set exactly once, on the
	// first transition to active.
	SetStatus(ctx context.Context, id string, status model.Status, orderID, cartItemID string) (*model.ArtKeyRecord, error)
}

// slot wraps one record with its own lock so that mutations on different
// records never contend.
type slot struct {
	mu  sync.RWMutex
	rec model.ArtKeyRecord
}

// memory implements Store with process-local maps. Intended for development
// and tests; production uses the postgres backend.
type memory struct {
	mu      sync.RWMutex       // Guards the three maps, not record contents
	records map[string]*slot   // id -> record
	byToken map[string]string  // token -> id, the uniqueness index
	byOwner map[string][]string // ownerSessionId -> ids in creation order
}

// NewMemory creates an in-memory store.
func NewMemory() Store {
	return &memory{
		records: make(map[string]*slot),
		byToken: make(map[string]string),
		byOwner: make(map[string][]string),
	}
}

func (m *memory) CreateRecord(ctx context.Context, rec model.ArtKeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.ID]; exists {
		return ErrConflict
	}
	if _, exists := m.byToken[rec.Token]; exists {
		return ErrConflict
	}

	m.records[rec.ID] = &slot{rec: rec.Clone()}
	m.byToken[rec.Token] = rec.ID
	m.byOwner[rec.OwnerSessionID] = append(m.byOwner[rec.OwnerSessionID], rec.ID)
	return nil
}

// getSlot resolves a record's slot under the map lock.
func (m *memory) getSlot(id string) (*slot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.records[id]
	return s, ok
}

func (m *memory) GetByID(ctx context.Context, id string) (*model.ArtKeyRecord, error) {
	s, ok := m.getSlot(id)
	if !ok {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.rec.Clone()
	return &rec, nil
}

func (m *memory) GetByToken(ctx context.Context, tok string) (*model.ArtKeyRecord, error) {
	m.mu.RLock()
	id, ok := m.byToken[tok]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *memory) ListByOwner(ctx context.Context, ownerSessionID string) ([]model.Summary, error) {
	m.mu.RLock()
	ids := append([]string(nil), m.byOwner[ownerSessionID]...)
	m.mu.RUnlock()

	out := make([]model.Summary, 0, len(ids))
	for _, id := range ids {
		s, ok := m.getSlot(id)
		if !ok {
			continue
		}
		s.mu.RLock()
		out = append(out, s.rec.Summarize())
		s.mu.RUnlock()
	}
	// Most recently updated first, matching the selector UI.
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// mutate runs fn against the record under its per-record write lock and
// bumps UpdatedAt/Version when fn succeeds.
func (m *memory) mutate(id string, fn func(rec *model.ArtKeyRecord) error) (*model.ArtKeyRecord, error) {
	s, ok := m.getSlot(id)
	if !ok {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(&s.rec); err != nil {
		return nil, err
	}
	s.rec.UpdatedAt = time.Now().UTC()
	s.rec.Version++
	rec := s.rec.Clone()
	return &rec, nil
}

func (m *memory) UpdateConfig(ctx context.Context, id string, patch model.ConfigPatch) (*model.ArtKeyRecord, error) {
	return m.mutate(id, func(rec *model.ArtKeyRecord) error {
		rec.Config = patch.Apply(rec.Config)
		return nil
	})
}

func (m *memory) AppendMedia(ctx context.Context, id string, kind model.MediaKind, url, submittedBy string) (*model.MediaEntry, error) {
	var entry model.MediaEntry
	_, err := m.mutate(id, func(rec *model.ArtKeyRecord) error {
		entry = model.MediaEntry{
			EntryID:     newEntryID(),
			URL:         url,
			SubmittedBy: submittedBy,
			SubmittedAt: time.Now().UTC(),
		}
		if kind == model.MediaVideo {
			entry.ApprovalState = moderation.DefaultState(rec.Config.Features.VidRequireApproval)
			rec.Videos = append(rec.Videos, entry)
		} else {
			entry.ApprovalState = moderation.DefaultState(rec.Config.Features.ImgRequireApproval)
			rec.Images = append(rec.Images, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (m *memory) AppendGuestbook(ctx context.Context, id, name, message string) (*model.GuestbookEntry, error) {
	var entry model.GuestbookEntry
	_, err := m.mutate(id, func(rec *model.ArtKeyRecord) error {
		entry = model.GuestbookEntry{
			EntryID:       newEntryID(),
			Name:          name,
			Message:       message,
			SubmittedAt:   time.Now().UTC(),
			ApprovalState: moderation.DefaultState(rec.Config.Features.GbRequireApproval),
		}
		rec.Guestbook = append(rec.Guestbook, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (m *memory) SetApproval(ctx context.Context, id, kind, entryID string, state model.ApprovalState) error {
	_, err := m.mutate(id, func(rec *model.ArtKeyRecord) error {
		return applyApproval(rec, kind, entryID, state)
	})
	return err
}

func (m *memory) SetStatus(ctx context.Context, id string, status model.Status, orderID, cartItemID string) (*model.ArtKeyRecord, error) {
	return m.mutate(id, func(rec *model.ArtKeyRecord) error {
		return applyStatus(rec, status, orderID, cartItemID)
	})
}

// applyApproval transitions one entry's approval state in place. Shared with
// the postgres backend, which applies it inside a row-lock transaction.
func applyApproval(rec *model.ArtKeyRecord, kind, entryID string, state model.ApprovalState) error {
	switch kind {
	case "guestbook":
		for i := range rec.Guestbook {
			if rec.Guestbook[i].EntryID == entryID {
				if !moderation.CanTransition(rec.Guestbook[i].ApprovalState, state) {
					return ErrInvalidApproval
				}
				rec.Guestbook[i].ApprovalState = state
				return nil
			}
		}
	case "video":
		for i := range rec.Videos {
			if rec.Videos[i].EntryID == entryID {
				if !moderation.CanTransition(rec.Videos[i].ApprovalState, state) {
					return ErrInvalidApproval
				}
				rec.Videos[i].ApprovalState = state
				return nil
			}
		}
	default: // image
		for i := range rec.Images {
			if rec.Images[i].EntryID == entryID {
				if !moderation.CanTransition(rec.Images[i].ApprovalState, state) {
					return ErrInvalidApproval
				}
				rec.Images[i].ApprovalState = state
				return nil
			}
		}
	}
	return ErrNotFound
}

// applyStatus transitions the lifecycle in place, setting ActivatedAt on the
// first transition to active only.
func applyStatus(rec *model.ArtKeyRecord, status model.Status, orderID, cartItemID string) error {
	if status == rec.Status {
		return nil
	}
	if !model.CanTransitionStatus(rec.Status, status) {
		return ErrInvalidStatus
	}
	rec.Status = status
	if orderID != "" {
		rec.OrderID = orderID
	}
	if cartItemID != "" {
		rec.CartItemID = cartItemID
	}
	if status == model.StatusActive && rec.ActivatedAt == nil {
		now := time.Now().UTC()
		rec.ActivatedAt = &now
	}
	return nil
}
