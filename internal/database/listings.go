package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/olx-scraper/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS olx_runs (
	run_id     UUID PRIMARY KEY,
	query      TEXT NOT NULL,
	strategy   TEXT NOT NULL DEFAULT '',
	listings   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS olx_listings (
	id          BIGSERIAL PRIMARY KEY,
	run_id      UUID NOT NULL REFERENCES olx_runs(run_id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	title       TEXT NOT NULL,
	price       TEXT NOT NULL,
	location    TEXT NOT NULL,
	date_posted TEXT NOT NULL,
	url         TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_olx_listings_url ON olx_listings(url);
`

const insertRunSQL = `
	INSERT INTO olx_runs (run_id, query, strategy, listings)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (run_id) DO NOTHING`

const insertListingSQL = `
	INSERT INTO olx_listings (run_id, position, title, price, location, date_posted, url)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (run_id, position) DO NOTHING`

// ListingRepository stores exported runs so listings can be queried across
// searches.
type ListingRepository struct {
	db *DB
}

func NewListingRepository(db *DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveRun writes the run and all of its listings in one transaction.
// Saving the same run twice is a no-op.
func (r *ListingRepository) SaveRun(ctx context.Context, runID uuid.UUID, query, strategy string, listings []models.Listing) error {
	batch := buildRunBatch(runID, query, strategy, listings)

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("batch insert failed at row %d: %w", i, err)
			}
		}
		return results.Close()
	})
}

func (r *ListingRepository) CountByRun(ctx context.Context, runID uuid.UUID) (int, error) {
	var n int
	err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM olx_listings WHERE run_id = $1`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return n, nil
}

func buildRunBatch(runID uuid.UUID, query, strategy string, listings []models.Listing) *pgx.Batch {
	batch := &pgx.Batch{}
	batch.Queue(insertRunSQL, runID, query, strategy, len(listings))

	for i, l := range listings {
		batch.Queue(insertListingSQL, runID, i+1, l.Title, l.Price, l.Location, l.DatePosted, l.URL)
	}
	return batch
}
