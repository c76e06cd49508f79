// Package moderation provides tests for the visibility and approval rules.
package moderation

import (
	"testing"

	"github.com/artful-experience/artkey-go/internal/model"
)

// TestCanTransition verifies the approval state machine. Nothing ever moves
// back to pending; approved and rejected may swap.
func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from model.ApprovalState
		to   model.ApprovalState
		want bool
	}{
		{"pending to approved", model.ApprovalPending, model.ApprovalApproved, true},
		{"pending to rejected", model.ApprovalPending, model.ApprovalRejected, true},
		{"approved to rejected", model.ApprovalApproved, model.ApprovalRejected, true},
		{"rejected to approved", model.ApprovalRejected, model.ApprovalApproved, true},
		{"approved to pending", model.ApprovalApproved, model.ApprovalPending, false},
		{"rejected to pending", model.ApprovalRejected, model.ApprovalPending, false},
		{"pending to pending", model.ApprovalPending, model.ApprovalPending, false},
		{"approved to approved", model.ApprovalApproved, model.ApprovalApproved, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

// TestDefaultState verifies the approval default derived at submission time.
func TestDefaultState(t *testing.T) {
	if got := DefaultState(true); got != model.ApprovalPending {
		t.Errorf("DefaultState(true) = %v, want pending", got)
	}
	if got := DefaultState(false); got != model.ApprovalApproved {
		t.Errorf("DefaultState(false) = %v, want approved", got)
	}
}

// TestCanModerate verifies which privilege levels may moderate.
func TestCanModerate(t *testing.T) {
	if Public.CanModerate() {
		t.Error("Public.CanModerate() = true, want false")
	}
	if !Owner.CanModerate() {
		t.Error("Owner.CanModerate() = false, want true")
	}
	if !Admin.CanModerate() {
		t.Error("Admin.CanModerate() = false, want true")
	}
}

// TestVisibleMedia verifies that public viewers only see approved entries
// while moderators see everything including its state.
func TestVisibleMedia(t *testing.T) {
	rec := &model.ArtKeyRecord{
		Images: []model.MediaEntry{
			{EntryID: "a", ApprovalState: model.ApprovalApproved},
			{EntryID: "b", ApprovalState: model.ApprovalPending},
			{EntryID: "c", ApprovalState: model.ApprovalRejected},
		},
		Videos: []model.MediaEntry{
			{EntryID: "v", ApprovalState: model.ApprovalPending},
		},
	}

	public := VisibleMedia(rec, model.MediaImage, Public)
	if len(public) != 1 || public[0].EntryID != "a" {
		t.Errorf("VisibleMedia(Public) = %v, want only the approved entry", public)
	}

	owner := VisibleMedia(rec, model.MediaImage, Owner)
	if len(owner) != 3 {
		t.Errorf("VisibleMedia(Owner) returned %d entries, want 3", len(owner))
	}

	publicVideos := VisibleMedia(rec, model.MediaVideo, Public)
	if len(publicVideos) != 0 {
		t.Errorf("VisibleMedia(Public, video) returned %d entries, want 0", len(publicVideos))
	}

	adminVideos := VisibleMedia(rec, model.MediaVideo, Admin)
	if len(adminVideos) != 1 {
		t.Errorf("VisibleMedia(Admin, video) returned %d entries, want 1", len(adminVideos))
	}
}

// TestVisibleGuestbook verifies guestbook filtering per privilege.
func TestVisibleGuestbook(t *testing.T) {
	rec := &model.ArtKeyRecord{
		Guestbook: []model.GuestbookEntry{
			{EntryID: "g1", ApprovalState: model.ApprovalPending},
			{EntryID: "g2", ApprovalState: model.ApprovalApproved},
		},
	}

	public := VisibleGuestbook(rec, Public)
	if len(public) != 1 || public[0].EntryID != "g2" {
		t.Errorf("VisibleGuestbook(Public) = %v, want only the approved entry", public)
	}

	admin := VisibleGuestbook(rec, Admin)
	if len(admin) != 2 {
		t.Errorf("VisibleGuestbook(Admin) returned %d entries, want 2", len(admin))
	}
}

// TestVisibleMediaDoesNotAliasRecord verifies moderator views are copies and
// mutating them does not write through to the record.
func TestVisibleMediaDoesNotAliasRecord(t *testing.T) {
	rec := &model.ArtKeyRecord{
		Images: []model.MediaEntry{{EntryID: "a", ApprovalState: model.ApprovalApproved}},
	}
	view := VisibleMedia(rec, model.MediaImage, Owner)
	view[0].EntryID = "mutated"
	if rec.Images[0].EntryID != "a" {
		t.Error("VisibleMedia(Owner) aliased the record's slice")
	}
}
