// Package moderation decides the visibility of guest-submitted content.
//
// Every submitted entry carries an approval state. Public viewers only see
// approved entries; owners and admins see everything, tagged with its state,
// so they can moderate. Rejection is a state, not a removal: entries are
// never hard-deleted, preserving an audit trail and allowing reversal.
package moderation

import (
	"github.com/artful-experience/artkey-go/internal/model"
)

// Privilege is the caller's access level, as determined by the server from
// the admin JWT or the session header. It parameterizes both resolution and
// visibility filtering.
type Privilege int

const (
	Public Privilege = iota // Anonymous viewer of the public page
	Owner                   // Session that created the record
	Admin                   // Authenticated storefront admin
)

// CanModerate reports whether the privilege level may transition approval
// states or see non-approved entries.
func (p Privilege) CanModerate() bool {
	return p == Owner || p == Admin
}

// CanTransition reports whether an approval-state transition is allowed.
// pending may resolve either way; approved and rejected may swap (the owner
// can revoke or reverse a decision); nothing ever goes back to pending.
func CanTransition(from, to model.ApprovalState) bool {
	switch from {
	case model.ApprovalPending:
		return to == model.ApprovalApproved || to == model.ApprovalRejected
	case model.ApprovalApproved:
		return to == model.ApprovalRejected
	case model.ApprovalRejected:
		return to == model.ApprovalApproved
	}
	return false
}

// DefaultState returns the approval state assigned to a new submission,
// snapshotted from the record's require-approval flag at submission time.
// Changing the flag later never rewrites already-submitted entries.
func DefaultState(requireApproval bool) model.ApprovalState {
	if requireApproval {
		return model.ApprovalPending
	}
	return model.ApprovalApproved
}

// VisibleMedia filters one of the record's media collections for a caller.
func VisibleMedia(rec *model.ArtKeyRecord, kind model.MediaKind, p Privilege) []model.MediaEntry {
	var entries []model.MediaEntry
	if kind == model.MediaVideo {
		entries = rec.Videos
	} else {
		entries = rec.Images
	}
	if p.CanModerate() {
		return append([]model.MediaEntry(nil), entries...)
	}
	out := make([]model.MediaEntry, 0, len(entries))
	for _, e := range entries {
		if e.ApprovalState == model.ApprovalApproved {
			out = append(out, e)
		}
	}
	return out
}

// VisibleGuestbook filters the guestbook for a caller.
func VisibleGuestbook(rec *model.ArtKeyRecord, p Privilege) []model.GuestbookEntry {
	if p.CanModerate() {
		return append([]model.GuestbookEntry(nil), rec.Guestbook...)
	}
	out := make([]model.GuestbookEntry, 0, len(rec.Guestbook))
	for _, e := range rec.Guestbook {
		if e.ApprovalState == model.ApprovalApproved {
			out = append(out, e)
		}
	}
	return out
}
