// internal/schema/validator.go
// Package schema validates inbound documents before they reach the record
// store. The ArtKey config schema is a product contract shipped with the
// service; schemas are compiled once at startup.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Document names accepted by Validate.
const (
	ConfigDocument    = "artkey.config"
	GuestbookDocument = "artkey.guestbook.entry"
	MediaDocument     = "artkey.media.entry"
)

// Validator validates documents against the embedded JSON schemas.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles all embedded schemas.
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema)}
	if err := v.loadSchemas(); err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}
	return v, nil
}

func (v *Validator) loadSchemas() error {
	// Config document: every section optional, sections replaced wholesale on
	// save, so each section must be complete and well-formed when present.
	configSchema := `{
		"type": "object",
		"properties": {
			"title": {"type": "string", "maxLength": 120},
			"theme": {
				"type": "object",
				"properties": {
					"background": {"type": "string", "maxLength": 256},
					"font": {"type": "string", "maxLength": 64},
					"textColor": {"type": "string", "maxLength": 32},
					"linkColor": {"type": "string", "maxLength": 32}
				}
			},
			"links": {
				"type": "array",
				"maxItems": 25,
				"items": {
					"type": "object",
					"required": ["label", "url"],
					"properties": {
						"label": {"type": "string", "maxLength": 80},
						"url": {"type": "string", "maxLength": 2048}
					}
				}
			},
			"embed": {
				"type": "object",
				"required": ["url"],
				"properties": {
					"url": {"type": "string", "maxLength": 2048},
					"autoplay": {"type": "boolean"}
				}
			},
			"featuredVideo": {"type": "string", "maxLength": 2048},
			"features": {"type": "object"},
			"order": {
				"type": "array",
				"maxItems": 8,
				"items": {"type": "string", "enum": ["gallery", "video_gallery", "guestbook", "featured_video", "links", "embed"]}
			}
		}
	}`
	if err := v.loadSchema(ConfigDocument, configSchema); err != nil {
		return fmt.Errorf("failed to load config schema: %w", err)
	}

	// Guestbook submission: message is required, name optional.
	guestbookSchema := `{
		"type": "object",
		"required": ["message"],
		"properties": {
			"name": {"type": "string", "maxLength": 80},
			"message": {"type": "string", "minLength": 1, "maxLength": 1000}
		}
	}`
	if err := v.loadSchema(GuestbookDocument, guestbookSchema); err != nil {
		return fmt.Errorf("failed to load guestbook schema: %w", err)
	}

	// Guest media submission: a durable URL plus the collection kind.
	mediaSchema := `{
		"type": "object",
		"required": ["kind", "url"],
		"properties": {
			"kind": {"type": "string", "enum": ["image", "video"]},
			"url": {"type": "string", "minLength": 1, "maxLength": 2048},
			"submittedBy": {"type": "string", "maxLength": 80}
		}
	}`
	if err := v.loadSchema(MediaDocument, mediaSchema); err != nil {
		return fmt.Errorf("failed to load media schema: %w", err)
	}

	return nil
}

func (v *Validator) loadSchema(name, raw string) error {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return err
	}
	v.schemas[name] = s
	return nil
}

// Validate checks a decoded document against the named schema. The returned
// error message lists every violated constraint.
func (v *Validator) Validate(name string, doc interface{}) error {
	s, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown document type: %s", name)
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("document invalid: %s", strings.Join(msgs, "; "))
	}
	return nil
}
