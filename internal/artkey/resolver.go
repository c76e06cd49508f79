// internal/artkey/resolver.go
package artkey

import (
	"context"
	"errors"

	"github.com/artful-experience/artkey-go/internal/model"
	"github.com/artful-experience/artkey-go/internal/moderation"
	"github.com/artful-experience/artkey-go/internal/storage"
)

// Resolve maps a public identifier to a record. The token namespace is
// authoritative: the token lookup always runs first, and the legacy id
// lookup runs only on a token miss. This holds even when the identifier
// happens to look like a token or an id; shape is never used to skip a
// lookup path.
//
// The effective privilege is derived from the resolved record: admin wins,
// then a session id matching the record's owner, else public. Archived
// records are invisible to the public and resolve as not found for them.
func (s *Service) Resolve(ctx context.Context, identifier, sessionID string, isAdmin bool) (*model.ArtKeyRecord, moderation.Privilege, error) {
	rec, path, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.ResolutionTotal.WithLabelValues("miss").Inc()
		}
		return nil, moderation.Public, err
	}
	s.metrics.ResolutionTotal.WithLabelValues(path).Inc()

	priv := moderation.Public
	switch {
	case isAdmin:
		priv = moderation.Admin
	case sessionID != "" && sessionID == rec.OwnerSessionID:
		priv = moderation.Owner
	}

	if rec.Status == model.StatusArchived && priv == moderation.Public {
		return nil, moderation.Public, storage.ErrNotFound
	}
	return rec, priv, nil
}

func (s *Service) lookup(ctx context.Context, identifier string) (*model.ArtKeyRecord, string, error) {
	var rec *model.ArtKeyRecord
	err := s.withTimeout(ctx, "get_by_token", func(cctx context.Context) error {
		var err error
		rec, err = s.store.GetByToken(cctx, identifier)
		return err
	})
	if err == nil {
		return rec, "token", nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, "", err
	}

	err = s.withTimeout(ctx, "get_by_id", func(cctx context.Context) error {
		var err error
		rec, err = s.store.GetByID(cctx, identifier)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return rec, "legacy_id", nil
}

// View applies privilege-based moderation filtering to a resolved record,
// producing the representation a caller at that privilege may see.
func View(rec *model.ArtKeyRecord, priv moderation.Privilege) *model.ArtKeyRecord {
	out := rec.Clone()
	out.Images = moderation.VisibleMedia(rec, model.MediaImage, priv)
	out.Videos = moderation.VisibleMedia(rec, model.MediaVideo, priv)
	out.Guestbook = moderation.VisibleGuestbook(rec, priv)
	return &out
}
