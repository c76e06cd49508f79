// internal/model/patch.go
package model

// Apply merges a shallow patch into a config document. Each non-nil section
// replaces the stored section wholesale; nothing nested is merged.
func (p ConfigPatch) Apply(doc ConfigDocument) ConfigDocument {
	if p.Title != nil {
		doc.Title = *p.Title
	}
	if p.Theme != nil {
		doc.Theme = *p.Theme
	}
	if p.Links != nil {
		doc.Links = append([]Link(nil), (*p.Links)...)
	}
	if p.Embed != nil {
		e := *p.Embed
		doc.Embed = &e
	}
	if p.FeaturedVideo != nil {
		doc.FeaturedVideo = *p.FeaturedVideo
	}
	if p.Features != nil {
		doc.Features = *p.Features
	}
	if p.Order != nil {
		doc.Order = append([]string(nil), (*p.Order)...)
	}
	return doc
}

// Clone returns a deep copy of the record so that callers can never alias
// the store's internal slices.
func (r ArtKeyRecord) Clone() ArtKeyRecord {
	out := r
	out.Config.Links = append([]Link(nil), r.Config.Links...)
	out.Config.Order = append([]string(nil), r.Config.Order...)
	if r.Config.Embed != nil {
		e := *r.Config.Embed
		out.Config.Embed = &e
	}
	out.Images = append([]MediaEntry(nil), r.Images...)
	out.Videos = append([]MediaEntry(nil), r.Videos...)
	out.Guestbook = append([]GuestbookEntry(nil), r.Guestbook...)
	if r.ActivatedAt != nil {
		t := *r.ActivatedAt
		out.ActivatedAt = &t
	}
	return out
}

// Summarize projects the record into the lightweight listing shape.
// The thumbnail is the first approved image, if any.
func (r ArtKeyRecord) Summarize() Summary {
	s := Summary{
		ID:        r.ID,
		Token:     r.Token,
		Title:     r.Config.Title,
		Status:    r.Status,
		UpdatedAt: r.UpdatedAt,
	}
	for _, img := range r.Images {
		if img.ApprovalState == ApprovalApproved {
			s.Thumbnail = img.URL
			break
		}
	}
	return s
}

// CanTransitionStatus reports whether a lifecycle transition is allowed.
// Archived records are retained, never physically deleted; restoring one
// goes back to active (if it had been activated) or draft.
func CanTransitionStatus(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusPending || to == StatusActive || to == StatusArchived
	case StatusPending:
		return to == StatusActive || to == StatusArchived
	case StatusActive:
		return to == StatusArchived
	case StatusArchived:
		return to == StatusActive || to == StatusDraft
	}
	return false
}
