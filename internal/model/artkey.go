// internal/model/artkey.go
// Package model defines the data structures used throughout the ArtKey service.
// An ArtKey is a token-addressed micro-page of personalized links, media
// galleries and a guestbook, tied to a purchased product and reached by
// scanning a QR code printed on the physical item.
package model

import (
	"time"
)

// Status is the lifecycle state of an ArtKey record.
type Status string

const (
	StatusDraft    Status = "draft"    // Created, not yet tied to a completed order
	StatusPending  Status = "pending"  // Tied to an order awaiting fulfillment
	StatusActive   Status = "active"   // Publicly resolvable and live
	StatusArchived Status = "archived" // Soft-deleted; invisible to the public, restorable by owner/admin
)

// ApprovalState is the moderation state of a single guest-submitted entry.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

// MediaKind distinguishes the two guest media collections.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Theme holds the visual configuration of the public page.
type Theme struct {
	Background string `json:"background,omitempty"`
	Font       string `json:"font,omitempty"`
	TextColor  string `json:"textColor,omitempty"`
	LinkColor  string `json:"linkColor,omitempty"`
}

// Link is one owner-authored label+URL pair shown on the public page.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Embed references an external media embed such as a playlist.
type Embed struct {
	URL      string `json:"url"`
	Autoplay bool   `json:"autoplay,omitempty"`
}

// Features enables or disables the optional sections of the page, each with
// independent guest-upload and approval-requirement flags. The require-
// approval flags are read at submission time only; flipping one later never
// rewrites the state of entries already submitted.
type Features struct {
	ShowGallery        bool `json:"show_gallery"`
	ImgAllowUploads    bool `json:"img_allow_uploads"`
	ImgRequireApproval bool `json:"img_require_approval"`

	ShowVideoGallery   bool `json:"show_video_gallery"`
	VidAllowUploads    bool `json:"vid_allow_uploads"`
	VidRequireApproval bool `json:"vid_require_approval"`

	ShowGuestbook     bool `json:"show_guestbook"`
	GbAllowEntries    bool `json:"gb_allow_entries"`
	GbRequireApproval bool `json:"gb_require_approval"`

	ShowFeaturedVideo bool `json:"show_featured_video"`
}

// ConfigDocument is the owner-authored content of an ArtKey page.
type ConfigDocument struct {
	Title         string   `json:"title,omitempty"`
	Theme         Theme    `json:"theme,omitempty"`
	Links         []Link   `json:"links,omitempty"`
	Embed         *Embed   `json:"embed,omitempty"`
	FeaturedVideo string   `json:"featuredVideo,omitempty"`
	Features      Features `json:"features,omitempty"`
	Order         []string `json:"order,omitempty"` // Feature keys controlling button ordering
}

// ConfigPatch is a shallow per-section patch of a ConfigDocument. A non-nil
// field replaces that section wholesale; clients always send a complete
// section when changing it, nested keys are never deep-merged.
type ConfigPatch struct {
	Title         *string   `json:"title,omitempty"`
	Theme         *Theme    `json:"theme,omitempty"`
	Links         *[]Link   `json:"links,omitempty"`
	Embed         *Embed    `json:"embed,omitempty"`
	FeaturedVideo *string   `json:"featuredVideo,omitempty"`
	Features      *Features `json:"features,omitempty"`
	Order         *[]string `json:"order,omitempty"`
}

// MediaEntry is one guest- or owner-submitted media reference. The service
// stores durable URLs only, never raw bytes.
type MediaEntry struct {
	EntryID       string        `json:"entryId" db:"entry_id"`
	URL           string        `json:"url" db:"url"`
	SubmittedBy   string        `json:"submittedBy,omitempty" db:"submitted_by"`
	SubmittedAt   time.Time     `json:"submittedAt" db:"submitted_at"`
	ApprovalState ApprovalState `json:"approvalState" db:"approval_state"`
}

// GuestbookEntry is one guest message. Entries are append-only from the
// guest side; only the owner/admin path transitions ApprovalState.
type GuestbookEntry struct {
	EntryID       string        `json:"entryId" db:"entry_id"`
	Name          string        `json:"name,omitempty" db:"name"`
	Message       string        `json:"message" db:"message"`
	SubmittedAt   time.Time     `json:"submittedAt" db:"submitted_at"`
	ApprovalState ApprovalState `json:"approvalState" db:"approval_state"`
}

// ArtKeyRecord is the central entity: one shareable micro-page.
// ID and Token are assigned at creation and immutable; re-keying is only
// possible by creating a new record, so already-distributed QR codes are
// never invalidated.
type ArtKeyRecord struct {
	ID             string `json:"id" db:"id"`                             // Internal identifier, opaque
	Token          string `json:"token" db:"token"`                       // Public URL-safe identifier, unique
	Status         Status `json:"status" db:"status"`                     // Lifecycle state
	OwnerSessionID string `json:"ownerSessionId" db:"owner_session_id"`   // Creating session, scopes listing and edits
	ProductID      string `json:"productId,omitempty" db:"product_id"`    // Commerce-side linkage, opaque
	CartItemID     string `json:"cartItemId,omitempty" db:"cart_item_id"` // Commerce-side linkage, opaque
	OrderID        string `json:"orderId,omitempty" db:"order_id"`        // Commerce-side linkage, opaque

	Config    ConfigDocument `json:"artKeyData" db:"config"`
	Images    []MediaEntry   `json:"images" db:"images"`
	Videos    []MediaEntry   `json:"videos" db:"videos"`
	Guestbook []GuestbookEntry `json:"guestbook" db:"guestbook"`

	Version     int64      `json:"version" db:"version"` // Bumped on every mutation
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty" db:"activated_at"` // Set exactly once, on activation
}

// Summary is the lightweight projection returned by owner listings,
// for the "use an existing ArtKey" selector.
type Summary struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
	Thumbnail string    `json:"thumbnail,omitempty"`
}

// ShareArtifacts holds the derived sharing surface for a record.
// Recomputed per request: the base URL differs across deployments.
type ShareArtifacts struct {
	ShareURL  string `json:"shareUrl"`
	QRCodeURL string `json:"qrCodeUrl"`
}

// SaveRequest is the body of POST /artkey/save. When ArtKeyID is empty a new
// record is created; otherwise the named record's config is patched.
type SaveRequest struct {
	ArtKeyID       string      `json:"artKeyId,omitempty"`
	OwnerSessionID string      `json:"ownerSessionId,omitempty"`
	ProductID      string      `json:"productId,omitempty"`
	CartItemID     string      `json:"cartItemId,omitempty"`
	ArtKeyData     ConfigPatch `json:"artKeyData"`
}

// SaveResponse is the body returned by POST /artkey/save.
type SaveResponse struct {
	Success   bool   `json:"success"`
	ArtKeyID  string `json:"artKeyId"`
	Token     string `json:"token,omitempty"`
	ShareURL  string `json:"shareUrl,omitempty"`
	QRCodeURL string `json:"qrCodeUrl,omitempty"`
	Message   string `json:"message,omitempty"`
}

// MediaSubmitRequest is the body of POST /artkey/{id}/media.
type MediaSubmitRequest struct {
	Kind        MediaKind `json:"kind"`
	URL         string    `json:"url"`
	SubmittedBy string    `json:"submittedBy,omitempty"`
}

// GuestbookSubmitRequest is the body of POST /artkey/{id}/guestbook.
type GuestbookSubmitRequest struct {
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

// ApprovalRequest is the body of POST /artkey/{id}/approval. Kind is
// "image", "video" or "guestbook".
type ApprovalRequest struct {
	Kind    string        `json:"kind"`
	EntryID string        `json:"entryId"`
	State   ApprovalState `json:"state"`
}

// StatusRequest is the body of POST /artkey/{id}/status.
type StatusRequest struct {
	Status     Status `json:"status"`
	OrderID    string `json:"orderId,omitempty"`
	CartItemID string `json:"cartItemId,omitempty"`
}

// UploadInitRequest is the body of POST /artkey/media/uploadInit.
type UploadInitRequest struct {
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Filename string `json:"filename,omitempty"`
}

// UploadInitData is the payload returned by a successful upload init.
type UploadInitData struct {
	UploadURL string    `json:"uploadUrl"` // Presigned PUT target
	AssetURL  string    `json:"assetUrl"`  // Durable URL to submit back after upload
	ExpiresAt time.Time `json:"expiresAt"`
}
