// internal/event/nats.go
// Package event publishes ArtKey lifecycle and moderation events to NATS
// JetStream, feeding the storefront dashboard and audit trail. Publishing is
// best effort: a failed publish is logged, never surfaced to the customer.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/artful-experience/artkey-go/internal/metrics"
	"github.com/artful-experience/artkey-go/internal/model"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Publisher defines the event operations required by the ArtKey service.
type Publisher interface {
	PublishArtKeyCreated(ctx context.Context, rec model.ArtKeyRecord) error
	PublishStatusChanged(ctx context.Context, rec model.ArtKeyRecord, from model.Status) error
	PublishGuestSubmission(ctx context.Context, artKeyID, kind, entryID string) error
	PublishApprovalChanged(ctx context.Context, artKeyID, kind, entryID string, state model.ApprovalState) error
	Close() error
}

// noop is used when NATS is not configured; the service runs without
// event streaming.
type noop struct{}

func (n *noop) Close() error { return nil }
func (n *noop) PublishArtKeyCreated(ctx context.Context, rec model.ArtKeyRecord) error { return nil }
func (n *noop) PublishStatusChanged(ctx context.Context, rec model.ArtKeyRecord, from model.Status) error {
	return nil
}
func (n *noop) PublishGuestSubmission(ctx context.Context, artKeyID, kind, entryID string) error {
	return nil
}
func (n *noop) PublishApprovalChanged(ctx context.Context, artKeyID, kind, entryID string, state model.ApprovalState) error {
	return nil
}

// NewNoop returns a publisher that discards every event.
func NewNoop() Publisher {
	return &noop{}
}

// natsPub is the JetStream implementation of Publisher.
type natsPub struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	metrics *metrics.Metrics
}

// NewPublisherFromEnv returns a JetStream publisher when ARTKEY_NATS_URL is
// set and reachable, and a no-op publisher otherwise.
func NewPublisherFromEnv() Publisher {
	url := os.Getenv("ARTKEY_NATS_URL")
	if url == "" {
		return &noop{}
	}

	nc, err := nats.Connect(url)
	if err != nil {
		slog.Warn("NATS connect failed, using noop publisher", "error", err)
		return &noop{}
	}

	js, err := nc.JetStream()
	if err != nil {
		slog.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	if err := initStreams(js); err != nil {
		slog.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	return &natsPub{nc: nc, js: js, metrics: metrics.NewMetrics()}
}

// initStreams creates the record and moderation streams.
func initStreams(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      "AK_RECORDS",
		Subjects:  []string{"artkey.records.*"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Discard:   nats.DiscardOld,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create AK_RECORDS stream: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      "AK_MODERATION",
		Subjects:  []string{"artkey.moderation.*"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Discard:   nats.DiscardOld,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create AK_MODERATION stream: %w", err)
	}

	return nil
}

// Envelope is the standard event envelope wrapping every published payload.
type Envelope struct {
	Type          string      `json:"type"`
	Version       string      `json:"version"`
	OccurredAt    time.Time   `json:"occurredAt"`
	CorrelationID string      `json:"correlationId"`
	Payload       interface{} `json:"payload"`
}

func (p *natsPub) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

func (p *natsPub) publish(subject string, payload interface{}) error {
	envelope := Envelope{
		Type:          subject,
		Version:       "1.0.0",
		OccurredAt:    time.Now().UTC(),
		CorrelationID: uuid.New().String(),
		Payload:       payload,
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, b)
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.EventPublishTotal.WithLabelValues(subject, status).Inc()
	return err
}

func (p *natsPub) PublishArtKeyCreated(ctx context.Context, rec model.ArtKeyRecord) error {
	return p.publish("artkey.records.created", map[string]interface{}{
		"id":             rec.ID,
		"token":          rec.Token,
		"ownerSessionId": rec.OwnerSessionID,
		"productId":      rec.ProductID,
	})
}

func (p *natsPub) PublishStatusChanged(ctx context.Context, rec model.ArtKeyRecord, from model.Status) error {
	return p.publish("artkey.records.status_changed", map[string]interface{}{
		"id":    rec.ID,
		"token": rec.Token,
		"from":  from,
		"to":    rec.Status,
	})
}

func (p *natsPub) PublishGuestSubmission(ctx context.Context, artKeyID, kind, entryID string) error {
	return p.publish("artkey.moderation.submitted", map[string]interface{}{
		"artKeyId": artKeyID,
		"kind":     kind,
		"entryId":  entryID,
	})
}

func (p *natsPub) PublishApprovalChanged(ctx context.Context, artKeyID, kind, entryID string, state model.ApprovalState) error {
	return p.publish("artkey.moderation.approval_changed", map[string]interface{}{
		"artKeyId": artKeyID,
		"kind":     kind,
		"entryId":  entryID,
		"state":    state,
	})
}
