// internal/storage/postgres.go
// PostgreSQL implementation of the Store interface, for production use.
// Records live in a single table addressed by id with a unique index on
// token; per-record serialization comes from a row lock held for the
// duration of each read-modify-write transaction.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/artful-experience/artkey-go/internal/model"
	"github.com/artful-experience/artkey-go/internal/moderation"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgres struct {
	db *pgxpool.Pool
}

// NewPostgres connects to the database, initializes the schema, and returns
// a Store backed by it.
func NewPostgres(dsn string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool}, nil
}

// initSchema creates the artkeys table and indexes if they don't exist.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		CREATE TABLE IF NOT EXISTS artkeys (
		    id TEXT PRIMARY KEY,                      -- Internal identifier, immutable
		    token TEXT NOT NULL UNIQUE,               -- Public identifier, immutable once issued
		    status TEXT NOT NULL,                     -- draft | pending | active | archived
		    owner_session_id TEXT NOT NULL,           -- Creating session
		    product_id TEXT NOT NULL DEFAULT '',
		    cart_item_id TEXT NOT NULL DEFAULT '',
		    order_id TEXT NOT NULL DEFAULT '',
		    config JSONB NOT NULL,                    -- Owner-authored config document
		    images JSONB NOT NULL DEFAULT '[]',       -- Guest-submitted image entries
		    videos JSONB NOT NULL DEFAULT '[]',       -- Guest-submitted video entries
		    guestbook JSONB NOT NULL DEFAULT '[]',    -- Guest-submitted messages
		    version BIGINT NOT NULL DEFAULT 0,        -- Bumped on every mutation
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		    updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
		    activated_at TIMESTAMP WITH TIME ZONE     -- Set exactly once, on activation
		);

		CREATE INDEX IF NOT EXISTS idx_artkeys_owner ON artkeys(owner_session_id, updated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_artkeys_status ON artkeys(status);
	`
	_, err := db.Exec(ctx, schema)
	return err
}

// Close closes the connection pool.
func (p *postgres) Close() {
	p.db.Close()
}

const recordColumns = `id, token, status, owner_session_id, product_id, cart_item_id, order_id,
	config, images, videos, guestbook, version, created_at, updated_at, activated_at`

// scanRecord scans one artkeys row, unmarshalling the JSONB collections.
func scanRecord(row pgx.Row) (*model.ArtKeyRecord, error) {
	var rec model.ArtKeyRecord
	var configJSON, imagesJSON, videosJSON, guestbookJSON []byte

	err := row.Scan(
		&rec.ID,
		&rec.Token,
		&rec.Status,
		&rec.OwnerSessionID,
		&rec.ProductID,
		&rec.CartItemID,
		&rec.OrderID,
		&configJSON,
		&imagesJSON,
		&videosJSON,
		&guestbookJSON,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.ActivatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan artkey record: %w", err)
	}

	if err := json.Unmarshal(configJSON, &rec.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := json.Unmarshal(imagesJSON, &rec.Images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal images: %w", err)
	}
	if err := json.Unmarshal(videosJSON, &rec.Videos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal videos: %w", err)
	}
	if err := json.Unmarshal(guestbookJSON, &rec.Guestbook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal guestbook: %w", err)
	}
	return &rec, nil
}

func (p *postgres) CreateRecord(ctx context.Context, rec model.ArtKeyRecord) error {
	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	imagesJSON, _ := json.Marshal(emptyIfNilMedia(rec.Images))
	videosJSON, _ := json.Marshal(emptyIfNilMedia(rec.Videos))
	guestbookJSON, _ := json.Marshal(emptyIfNilGuestbook(rec.Guestbook))

	query := `INSERT INTO artkeys (` + recordColumns + `)
	          VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	_, err = p.db.Exec(ctx, query,
		rec.ID,
		rec.Token,
		rec.Status,
		rec.OwnerSessionID,
		rec.ProductID,
		rec.CartItemID,
		rec.OrderID,
		configJSON,
		imagesJSON,
		videosJSON,
		guestbookJSON,
		rec.Version,
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.ActivatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Unique violation on id or token; the caller regenerates and retries.
			return ErrConflict
		}
		return fmt.Errorf("failed to create artkey record: %w", err)
	}
	return nil
}

func (p *postgres) GetByID(ctx context.Context, id string) (*model.ArtKeyRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM artkeys WHERE id = $1`
	return scanRecord(p.db.QueryRow(ctx, query, id))
}

func (p *postgres) GetByToken(ctx context.Context, tok string) (*model.ArtKeyRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM artkeys WHERE token = $1`
	return scanRecord(p.db.QueryRow(ctx, query, tok))
}

func (p *postgres) ListByOwner(ctx context.Context, ownerSessionID string) ([]model.Summary, error) {
	query := `SELECT ` + recordColumns + ` FROM artkeys
	          WHERE owner_session_id = $1 ORDER BY updated_at DESC`

	rows, err := p.db.Query(ctx, query, ownerSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artkeys: %w", err)
	}
	defer rows.Close()

	out := make([]model.Summary, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Summarize())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artkeys: %w", err)
	}
	return out, nil
}

// mutate runs fn against the record inside a transaction holding the row
// lock, then writes the mutated record back with UpdatedAt/Version bumped.
// The row lock is what serializes concurrent mutations on the same id.
func (p *postgres) mutate(ctx context.Context, id string, fn func(rec *model.ArtKeyRecord) error) (*model.ArtKeyRecord, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + recordColumns + ` FROM artkeys WHERE id = $1 FOR UPDATE`
	rec, err := scanRecord(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := fn(rec); err != nil {
		return nil, err
	}
	rec.UpdatedAt = time.Now().UTC()
	rec.Version++

	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	imagesJSON, _ := json.Marshal(emptyIfNilMedia(rec.Images))
	videosJSON, _ := json.Marshal(emptyIfNilMedia(rec.Videos))
	guestbookJSON, _ := json.Marshal(emptyIfNilGuestbook(rec.Guestbook))

	update := `UPDATE artkeys SET status=$2, product_id=$3, cart_item_id=$4, order_id=$5,
	           config=$6, images=$7, videos=$8, guestbook=$9, version=$10, updated_at=$11, activated_at=$12
	           WHERE id = $1`
	if _, err := tx.Exec(ctx, update,
		rec.ID,
		rec.Status,
		rec.ProductID,
		rec.CartItemID,
		rec.OrderID,
		configJSON,
		imagesJSON,
		videosJSON,
		guestbookJSON,
		rec.Version,
		rec.UpdatedAt,
		rec.ActivatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to update artkey record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit artkey update: %w", err)
	}
	return rec, nil
}

func (p *postgres) UpdateConfig(ctx context.Context, id string, patch model.ConfigPatch) (*model.ArtKeyRecord, error) {
	return p.mutate(ctx, id, func(rec *model.ArtKeyRecord) error {
		rec.Config = patch.Apply(rec.Config)
		return nil
	})
}

func (p *postgres) AppendMedia(ctx context.Context, id string, kind model.MediaKind, url, submittedBy string) (*model.MediaEntry, error) {
	var entry model.MediaEntry
	_, err := p.mutate(ctx, id, func(rec *model.ArtKeyRecord) error {
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

func (p *postgres) AppendGuestbook(ctx context.Context, id, name, message string) (*model.GuestbookEntry, error) {
	var entry model.GuestbookEntry
	_, err := p.mutate(ctx, id, func(rec *model.ArtKeyRecord) error {
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

func (p *postgres) SetApproval(ctx context.Context, id, kind, entryID string, state model.ApprovalState) error {
	_, err := p.mutate(ctx, id, func(rec *model.ArtKeyRecord) error {
		return applyApproval(rec, kind, entryID, state)
	})
	return err
}

func (p *postgres) SetStatus(ctx context.Context, id string, status model.Status, orderID, cartItemID string) (*model.ArtKeyRecord, error) {
	return p.mutate(ctx, id, func(rec *model.ArtKeyRecord) error {
		return applyStatus(rec, status, orderID, cartItemID)
	})
}

// JSONB columns are NOT NULL; nil slices marshal as "null" so they are
// normalized to empty arrays before writing.
func emptyIfNilMedia(in []model.MediaEntry) []model.MediaEntry {
	if in == nil {
		return []model.MediaEntry{}
	}
	return in
}

func emptyIfNilGuestbook(in []model.GuestbookEntry) []model.GuestbookEntry {
	if in == nil {
		return []model.GuestbookEntry{}
	}
	return in
}
