// Package share derives the sharing surface for a resolved ArtKey: the
// public page URL and the URL of a scannable QR code encoding it. QR
// rendering is delegated to an external collaborator; this package performs
// no image work of its own. Artifacts are recomputed per request because the
// base URL differs between preview and production deployments.
package share

import (
	"net/url"
	"strings"
)

// Builder builds share artifacts from a public token.
type Builder struct {
	baseURL     string
	rendererURL string
}

// NewBuilder creates a Builder. rendererURL is the external QR renderer
// endpoint; the share URL is passed to it as the encoded payload.
func NewBuilder(baseURL, rendererURL string) *Builder {
	return &Builder{
		baseURL:     strings.TrimRight(baseURL, "/"),
		rendererURL: rendererURL,
	}
}

// ShareURL returns the public page URL for a token.
func (b *Builder) ShareURL(token string) string {
	return b.baseURL + "/artkey/" + token
}

// QRCodeURL returns the renderer URL producing a QR image of the share URL.
func (b *Builder) QRCodeURL(token string) string {
	q := url.Values{}
	q.Set("data", b.ShareURL(token))
	q.Set("size", "300x300")
	sep := "?"
	if strings.Contains(b.rendererURL, "?") {
		sep = "&"
	}
	return b.rendererURL + sep + q.Encode()
}
